package domain

import "time"

// CopyState is the physical state of a copy.
type CopyState string

const (
	CopyAvailable CopyState = "AVAILABLE"
	CopyBorrowed  CopyState = "BORROWED"
	CopyDamaged   CopyState = "DAMAGED"
	CopyLost      CopyState = "LOST"
)

// Copy is one physical, borrowable item of a Book. Its office is the book's office.
type Copy struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	State     CopyState `json:"state"`
	Version   int       `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}
