package domain

import (
	"fmt"
	"strings"
	"time"
)

// AcquisitionStatus is the procurement stage of a book.
type AcquisitionStatus string

const (
	StatusRequested       AcquisitionStatus = "REQUESTED"
	StatusRejected        AcquisitionStatus = "REJECTED"
	StatusPendingPurchase AcquisitionStatus = "PENDING_PURCHASE"
	StatusInStock         AcquisitionStatus = "IN_STOCK"
	// StatusArchived is set by catalog management when a title is withdrawn.
	StatusArchived AcquisitionStatus = "ARCHIVED"
)

// ParseAcquisitionStatus accepts any casing and surrounding whitespace.
func ParseAcquisitionStatus(s string) (AcquisitionStatus, error) {
	status := AcquisitionStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case StatusRequested, StatusRejected, StatusPendingPurchase, StatusInStock, StatusArchived:
		return status, nil
	default:
		return "", fmt.Errorf("unknown acquisition status: %q", s)
	}
}

func (s AcquisitionStatus) String() string {
	return string(s)
}

// Book is a catalog entry of one office. ISBN and OfficeID together identify it.
type Book struct {
	ID            string            `json:"id"`
	ISBN          string            `json:"isbn"`
	OfficeID      string            `json:"office_id"`
	Title         string            `json:"title"`
	Author        string            `json:"author,omitempty"`
	PageCount     int               `json:"page_count"`
	Status        AcquisitionStatus `json:"status"`
	RatingAverage float64           `json:"rating_average"`
	RatingCount   int               `json:"rating_count"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
