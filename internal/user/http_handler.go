package user

import (
	"net/http"

	"booklending/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// Me handles GET /me: the authenticated user with their office.
// The stored role is reported, which may be newer than the one in the token.
func (h *HTTPHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := httpx.UserIDFrom(r)
	if id == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	p, err := h.service.GetProfile(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSONSuccess(w, r, p, map[string]any{"token_role": httpx.RoleFrom(r)})
}
