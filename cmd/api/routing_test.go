package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booklending/internal/acquisition"
	"booklending/internal/book"
	"booklending/internal/circulation"
	"booklending/internal/clock"
	"booklending/internal/domain"
	"booklending/internal/testutil"
	"booklending/internal/user"
)

const testSecret = "routing-test-secret-0123456789"

func newTestServer(t *testing.T) (*httptest.Server, *testutil.Fixture) {
	t.Helper()
	f := testutil.NewFixture(t)
	fixed := clock.NewFixed(time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC))

	h := handlers{
		books:       book.NewHTTPHandler(book.NewService(f.Store)),
		users:       user.NewHTTPHandler(user.NewService(f.Store)),
		circulation: circulation.NewHTTPHandler(circulation.NewService(f.Store, circulation.WithClock(fixed))),
		acquisition: acquisition.NewHTTPHandler(acquisition.NewService(f.Store, acquisition.DefaultTransitions(), acquisition.WithClock(fixed))),
	}
	srv := httptest.NewServer(newRouter(routerConfig{
		jwtSecret:   testSecret,
		corsOrigins: []string{"http://localhost:3000"},
	}, h))
	t.Cleanup(srv.Close)
	return srv, f
}

func do(t *testing.T, srv *httptest.Server, method, path string, body interface{}, token string) testutil.RecordResponse {
	t.Helper()
	req := testutil.NewRequestWithAuth(method, path, body, token)
	w := httptest.NewRecorder()
	srv.Config.Handler.ServeHTTP(w, req)
	return testutil.RecordHTTPResponse(w)
}

func TestRouting_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	ready, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer ready.Body.Close()
	assert.Equal(t, http.StatusOK, ready.StatusCode)
}

func TestRouting_RequiresToken(t *testing.T) {
	srv, f := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	expired := testutil.GenerateExpiredToken(testSecret, f.Alice.ID, domain.RoleUser)
	resp = do(t, srv, http.MethodGet, "/me", nil, expired)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = do(t, srv, http.MethodGet, "/me", nil, testutil.GenerateTestToken(testSecret, f.Alice.ID, domain.RoleUser))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, f.Alice.Email, resp.Data()["email"])
}

func TestRouting_BorrowReturnCycle(t *testing.T) {
	srv, f := newTestServer(t)
	b := f.AddBook(t, f.Office.ID, "9780132350884", 51)
	c := f.AddCopy(t, b.ID)
	alice := testutil.GenerateTestToken(testSecret, f.Alice.ID, domain.RoleUser)

	resp := do(t, srv, http.MethodGet, "/copies/"+c.ID+"/eligibility", nil, alice)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, true, resp.Data()["eligible"])

	resp = do(t, srv, http.MethodPost, "/copies/"+c.ID+"/borrow", nil, alice)
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = do(t, srv, http.MethodGet, "/offices/"+f.Office.ID+"/books/9780132350884", nil, alice)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.EqualValues(t, 0, resp.Data()["available"])

	resp = do(t, srv, http.MethodGet, "/me/checkouts?open=true", nil, alice)
	require.Equal(t, http.StatusOK, resp.Code)
	items, _ := resp.Body["data"].([]interface{})
	assert.Len(t, items, 1)

	resp = do(t, srv, http.MethodPost, "/copies/"+c.ID+"/return", nil, alice)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = do(t, srv, http.MethodGet, "/copies/"+c.ID+"/borrow", nil, alice)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
}

func TestRouting_AdminOnly(t *testing.T) {
	srv, f := newTestServer(t)
	alice := testutil.GenerateTestToken(testSecret, f.Alice.ID, domain.RoleUser)
	admin := testutil.GenerateTestToken(testSecret, f.Admin.ID, domain.RoleAdmin)

	resp := do(t, srv, http.MethodPost, "/requests", map[string]any{"isbn": "9780134757599", "title": "Refactoring"}, alice)
	require.Equal(t, http.StatusCreated, resp.Code)
	request, _ := resp.Data()["request"].(map[string]interface{})
	id, _ := request["id"].(string)
	require.NotEmpty(t, id)

	resp = do(t, srv, http.MethodPatch, "/requests/"+id+"/status", map[string]any{"status": "PENDING_PURCHASE"}, alice)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = do(t, srv, http.MethodPatch, "/requests/"+id+"/status", map[string]any{"status": "PENDING_PURCHASE"}, admin)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = do(t, srv, http.MethodGet, "/offices/"+f.Office.ID+"/checkouts/overdue", nil, alice)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = do(t, srv, http.MethodGet, "/offices/"+f.Office.ID+"/checkouts/overdue", nil, admin)
	assert.Equal(t, http.StatusOK, resp.Code)
}
