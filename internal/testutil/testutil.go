package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"

	"booklending/internal/domain"
	"booklending/internal/httpx"
	"booklending/internal/platform/crypto"
	"booklending/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Day returns the UTC midnight of the given calendar date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Fixture is a memory store seeded with two offices and their users.
type Fixture struct {
	Store *store.Memory

	Office      domain.Office
	OtherOffice domain.Office

	Alice domain.User // USER in Office
	Bob   domain.User // USER in Office
	Admin domain.User // ADMIN in Office
	Carol domain.User // USER in OtherOffice
}

func NewFixture(t testing.TB) *Fixture {
	t.Helper()
	f := &Fixture{
		Store:       store.NewMemory(),
		Office:      domain.Office{ID: "office-berlin", Name: "Berlin"},
		OtherOffice: domain.Office{ID: "office-lisbon", Name: "Lisbon"},
	}
	f.Alice = domain.User{ID: "user-alice", Name: "Alice", Email: "alice@example.com", OfficeID: f.Office.ID, Role: domain.RoleUser}
	f.Bob = domain.User{ID: "user-bob", Name: "Bob", Email: "bob@example.com", OfficeID: f.Office.ID, Role: domain.RoleUser}
	f.Admin = domain.User{ID: "user-admin", Name: "Admin", Email: "admin@example.com", OfficeID: f.Office.ID, Role: domain.RoleAdmin}
	f.Carol = domain.User{ID: "user-carol", Name: "Carol", Email: "carol@example.com", OfficeID: f.OtherOffice.ID, Role: domain.RoleUser}

	ctx := context.Background()
	require.NoError(t, f.Store.CreateOffice(ctx, f.Office))
	require.NoError(t, f.Store.CreateOffice(ctx, f.OtherOffice))
	for _, u := range []domain.User{f.Alice, f.Bob, f.Admin, f.Carol} {
		require.NoError(t, f.Store.CreateUser(ctx, u))
	}
	return f
}

// AddBook stores an IN_STOCK book of officeID.
func (f *Fixture) AddBook(t testing.TB, officeID, isbn string, pageCount int) domain.Book {
	t.Helper()
	b := domain.Book{
		ID:        "book-" + uuid.NewString(),
		ISBN:      isbn,
		OfficeID:  officeID,
		Title:     "Title " + isbn,
		Author:    "Author",
		PageCount: pageCount,
		Status:    domain.StatusInStock,
	}
	require.NoError(t, f.Store.CreateBook(context.Background(), b))
	return b
}

// AddCopy stores an AVAILABLE copy of bookID.
func (f *Fixture) AddCopy(t testing.TB, bookID string) domain.Copy {
	t.Helper()
	c := domain.Copy{ID: "copy-" + uuid.NewString(), BookID: bookID, State: domain.CopyAvailable}
	require.NoError(t, f.Store.CreateCopy(context.Background(), c))
	return c
}

// AddCheckout stores a checkout as is; returnedOn may be nil for an open one.
func (f *Fixture) AddCheckout(t testing.TB, borrower domain.User, c domain.Copy, b domain.Book, borrowedOn, dueOn time.Time, returnedOn *time.Time) domain.Checkout {
	t.Helper()
	co := domain.Checkout{
		ID:         "checkout-" + uuid.NewString(),
		BorrowerID: borrower.ID,
		CopyID:     c.ID,
		BookID:     b.ID,
		OfficeID:   b.OfficeID,
		BorrowedOn: borrowedOn,
		DueOn:      dueOn,
		ReturnedOn: returnedOn,
	}
	require.NoError(t, f.Store.CreateCheckout(context.Background(), co))
	return co
}

// GenerateTestToken generates a JWT token for testing
func GenerateTestToken(secret, userID, role string) string {
	token, _, _ := crypto.GenerateToken(secret, userID, role, time.Hour)
	return token
}

// GenerateExpiredToken generates an expired JWT token for testing
func GenerateExpiredToken(secret, userID, role string) string {
	c := crypto.Claims{
		Sub:  userID,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    crypto.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	token, _ := t.SignedString([]byte(secret))
	return token
}

// NewRequest creates a new HTTP request for testing
func NewRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	var r *http.Request
	if bodyBytes != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	return r
}

// NewRequestWithAuth creates a new HTTP request with JWT auth for testing
func NewRequestWithAuth(method, path string, body interface{}, token string) *http.Request {
	r := NewRequest(method, path, body)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

// AsUser returns r as seen by a handler behind AuthMiddleware.
func AsUser(r *http.Request, userID, role string) *http.Request {
	return r.WithContext(httpx.ContextWithUser(r.Context(), userID, role))
}

// RecordResponse records the HTTP response for testing
type RecordResponse struct {
	Code   int
	Header http.Header
	Body   map[string]interface{}
}

// RecordHTTPResponse records the HTTP response
func RecordHTTPResponse(w *httptest.ResponseRecorder) RecordResponse {
	result := w.Result()
	defer result.Body.Close()

	bodyBytes, _ := io.ReadAll(result.Body)

	var bodyMap map[string]interface{}
	if len(bodyBytes) > 0 {
		_ = json.Unmarshal(bodyBytes, &bodyMap)
	}

	return RecordResponse{
		Code:   result.StatusCode,
		Header: result.Header,
		Body:   bodyMap,
	}
}

// ErrorCode returns error.code of an error envelope, or "".
func (r RecordResponse) ErrorCode() string {
	e, _ := r.Body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

// Data returns the data member of a success envelope as an object.
func (r RecordResponse) Data() map[string]interface{} {
	d, _ := r.Body["data"].(map[string]interface{})
	return d
}
