package book

import (
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

// List handles GET /offices/{office}/books
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	params := Query{
		OfficeID: r.PathValue("office"),
		Q:        query.Get("q"),
		Sort:     query.Get("sort"),
		Desc:     query.Get("desc") == "true",
	}

	if status := query.Get("status"); status != "" {
		parsed, err := domain.ParseAcquisitionStatus(status)
		if err != nil {
			httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", []httpx.ErrorDetail{
				{Field: "status", Message: err.Error()},
			})
			return
		}
		params.Status = parsed
	}

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	params.Limit = pageSize
	params.Offset = (page - 1) * pageSize

	books, total, err := h.service.List(r.Context(), params)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if books == nil {
		books = []domain.Book{}
	}

	httpx.JSONSuccess(w, r, books, map[string]any{
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": (total + pageSize - 1) / pageSize,
	})
}

// GetByISBN handles GET /offices/{office}/books/{isbn}
func (h *HTTPHandler) GetByISBN(w http.ResponseWriter, r *http.Request) {
	isbn := httpx.NormalizeISBN(r.PathValue("isbn"))
	if isbn == "" {
		http.NotFound(w, r)
		return
	}

	detail, err := h.service.GetByISBN(r.Context(), isbn, r.PathValue("office"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, detail, nil)
}
