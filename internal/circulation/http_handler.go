package circulation

import (
	"errors"
	"net/http"
	"strconv"

	"booklending/internal/domain"
	"booklending/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type eligibilityResponse struct {
	Eligible bool   `json:"eligible"`
	Code     string `json:"code,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Borrow handles POST /copies/{id}/borrow
func (h *HTTPHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	checkout, err := h.service.Borrow(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, checkout)
}

// Eligibility handles GET /copies/{id}/eligibility
func (h *HTTPHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	err := h.service.CanBorrow(r.Context(), userID, r.PathValue("id"))
	switch {
	case err == nil:
		httpx.JSONSuccess(w, r, eligibilityResponse{Eligible: true}, nil)
	case errors.Is(err, domain.ErrRuleViolation):
		httpx.JSONSuccess(w, r, eligibilityResponse{Code: domain.Code(err), Reason: err.Error()}, nil)
	default:
		httpx.Error(w, r, err)
	}
}

// Return handles POST /copies/{id}/return
func (h *HTTPHandler) Return(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Return(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, result, nil)
}

// History handles GET /me/checkouts
func (h *HTTPHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	query := r.URL.Query()
	q := HistoryQuery{
		BorrowerID: userID,
		OpenOnly:   query.Get("open") == "true",
	}
	q.Limit, _ = strconv.Atoi(query.Get("limit"))

	if cursor := query.Get("cursor"); cursor != "" {
		data, err := DecodeCursor(cursor)
		if err != nil || data.AfterID == "" {
			httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", []httpx.ErrorDetail{
				{Field: "cursor", Message: "cursor is invalid"},
			})
			return
		}
		q.After = &data
	}

	page, err := h.service.History(r.Context(), q)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if page.Items == nil {
		page.Items = []domain.Checkout{}
	}

	meta := map[string]any{"count": len(page.Items)}
	if page.NextCursor != "" {
		meta["next_cursor"] = page.NextCursor
	}
	httpx.JSONSuccess(w, r, page.Items, meta)
}

// Overdue handles GET /offices/{office}/checkouts/overdue
func (h *HTTPHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Overdue(r.Context(), r.PathValue("office"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, items, map[string]any{"total": len(items)})
}
