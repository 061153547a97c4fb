package user

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"booklending/internal/domain"
	"booklending/internal/httpx"
)

func TestHTTPHandler_Me(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := NewMockRepository(ctrl)
	handler := NewHTTPHandler(NewService(mockRepo))

	u := &domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com", OfficeID: "o1", Role: domain.RoleUser}

	t.Run("success", func(t *testing.T) {
		mockRepo.EXPECT().GetUser(gomock.Any(), "u1").Return(u, nil)
		mockRepo.EXPECT().GetOffice(gomock.Any(), "o1").Return(&domain.Office{ID: "o1", Name: "Berlin"}, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/me", nil)
		r = r.WithContext(httpx.ContextWithUser(r.Context(), "u1", domain.RoleUser))

		handler.Me(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"name":"Berlin"`)
		assert.Contains(t, w.Body.String(), `"email":"ada@example.com"`)
		assert.Contains(t, w.Body.String(), `"token_role":"USER"`)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Me(w, httptest.NewRequest(http.MethodGet, "/me", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		mockRepo.EXPECT().GetUser(gomock.Any(), "ghost").Return(nil, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/me", nil)
		r = r.WithContext(httpx.ContextWithUser(r.Context(), "ghost", domain.RoleUser))

		handler.Me(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), domain.CodeUserNotFound)
	})

	t.Run("storage failure", func(t *testing.T) {
		mockRepo.EXPECT().GetUser(gomock.Any(), "u1").Return(nil, context.DeadlineExceeded)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/me", nil)
		r = r.WithContext(httpx.ContextWithUser(r.Context(), "u1", domain.RoleUser))

		handler.Me(w, r)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
