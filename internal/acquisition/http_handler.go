package acquisition

import (
	"errors"
	"net/http"
	"strings"

	"booklending/internal/domain"
	"booklending/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type createRequestBody struct {
	ISBN      string `json:"isbn" validate:"required,isbn"`
	OfficeID  string `json:"office_id" validate:"omitempty,uuid"`
	Title     string `json:"title" validate:"max=255"`
	Author    string `json:"author" validate:"max=255"`
	PageCount int    `json:"page_count" validate:"min=0,max=100000"`
}

type changeStatusBody struct {
	Status string `json:"status" validate:"required,acquisition_status"`
}

// Create handles POST /requests
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body", nil)
		return
	}
	if details := httpx.ValidateStruct(body); details != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", details)
		return
	}

	view, err := h.service.Request(r.Context(), RequestInput{
		ISBN:        httpx.NormalizeISBN(body.ISBN),
		OfficeID:    body.OfficeID,
		RequestedBy: httpx.UserIDFrom(r),
		Title:       strings.TrimSpace(body.Title),
		Author:      strings.TrimSpace(body.Author),
		PageCount:   body.PageCount,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, view)
}

// List handles GET /offices/{office}/requests
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	q := ListQuery{OfficeID: r.PathValue("office")}
	if status := r.URL.Query().Get("status"); status != "" {
		parsed, err := domain.ParseAcquisitionStatus(status)
		if err != nil {
			httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", []httpx.ErrorDetail{
				{Field: "status", Message: err.Error()},
			})
			return
		}
		q.Status = parsed
	}

	views, err := h.service.List(r.Context(), q)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if views == nil {
		views = []RequestView{}
	}
	httpx.JSONSuccess(w, r, views, map[string]any{"total": len(views)})
}

// ToggleLike handles POST /requests/{id}/like
func (h *HTTPHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ToggleLike(r.Context(), r.PathValue("id"), httpx.UserIDFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, view, map[string]any{
		"liked": view.Request.HasLiked(httpx.UserIDFrom(r)),
	})
}

// ChangeStatus handles PATCH /requests/{id}/status
func (h *HTTPHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var body changeStatusBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body", nil)
		return
	}
	if details := httpx.ValidateStruct(body); details != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", details)
		return
	}
	target, _ := domain.ParseAcquisitionStatus(body.Status)

	view, err := h.service.ChangeStatus(r.Context(), r.PathValue("id"), target)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, view, nil)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var st *domain.StatusTransitionError
	switch {
	case errors.Is(err, ErrTitleRequired):
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), []httpx.ErrorDetail{
			{Field: "title", Message: "title is required"},
		})
	case errors.As(err, &st):
		allowed := h.service.Targets(st.From)
		names := make([]string, len(allowed))
		for i, s := range allowed {
			names[i] = s.String()
		}
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, domain.CodeInvalidStatusTransition, st.Error(), []httpx.ErrorDetail{
			{Field: "from", Message: st.From.String()},
			{Field: "to", Message: st.To.String()},
			{Field: "allowed", Message: strings.Join(names, ",")},
		})
	default:
		httpx.Error(w, r, err)
	}
}
