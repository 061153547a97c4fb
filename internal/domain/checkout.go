package domain

import "time"

// Checkout records one borrow-to-return cycle of a copy.
// BorrowedOn, DueOn and ReturnedOn are calendar dates at UTC midnight.
type Checkout struct {
	ID         string     `json:"id"`
	BorrowerID string     `json:"borrower_id"`
	CopyID     string     `json:"copy_id"`
	BookID     string     `json:"book_id"`
	OfficeID   string     `json:"office_id"`
	BorrowedOn time.Time  `json:"borrowed_on"`
	DueOn      time.Time  `json:"due_on"`
	ReturnedOn *time.Time `json:"returned_on,omitempty"`
}

// IsOpen reports whether the copy has not been returned yet.
func (c Checkout) IsOpen() bool {
	return c.ReturnedOn == nil
}
