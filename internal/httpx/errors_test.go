package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booklending/internal/domain"
)

func TestError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", domain.CopyNotFound("c1"), http.StatusNotFound, domain.CodeCopyNotFound},
		{"not borrowed", domain.NotBorrowed("c1"), http.StatusNotFound, domain.CodeNotBorrowed},
		{"limit reached", domain.LimitReached(3), http.StatusUnprocessableEntity, domain.CodeLimitReached},
		{"copy borrowed", domain.CopyAlreadyBorrowed("c1", domain.CopyBorrowed), http.StatusConflict, domain.CodeCopyAlreadyBorrowed},
		{"cooldown", domain.CooldownNotElapsed(14, "978"), http.StatusUnprocessableEntity, domain.CodeCooldownNotElapsed},
		{"transition", &domain.StatusTransitionError{From: domain.StatusRejected, To: domain.StatusInStock}, http.StatusUnprocessableEntity, domain.CodeInvalidStatusTransition},
		{"conflict", domain.ErrConcurrencyConflict, http.StatusConflict, domain.CodeConcurrencyConflict},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/copies/c1/borrow", nil)

			Error(w, r, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestError_LimitDetails(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/copies/c1/borrow", nil)

	Error(w, r, domain.LimitReached(3))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []ErrorDetail{{Field: "limit", Message: "3"}}, body.Error.Details)
}

func TestJSONSuccess_IncludesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r = r.WithContext(ContextWithRequestID(r.Context(), "req-1"))

	JSONSuccess(w, r, map[string]string{"id": "u1"}, map[string]any{"total": 1})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"data":{"id":"u1"},"meta":{"request_id":"req-1","total":1}}`, w.Body.String())
}
