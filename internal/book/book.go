package book

import (
	"booklending/internal/domain"
)

// Query defines filters and pagination for listing the books of an office.
type Query struct {
	OfficeID string
	Status   domain.AcquisitionStatus
	Q        string
	Sort     string
	Desc     bool
	Limit    int
	Offset   int
}

// Detail is a book with its physical copies.
type Detail struct {
	domain.Book
	Copies    []domain.Copy `json:"copies"`
	Available int           `json:"available"`
}
