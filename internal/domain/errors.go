package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrRuleViolation matches every *RuleViolationError and *StatusTransitionError.
	ErrRuleViolation = errors.New("business rule violation")
	// ErrConcurrencyConflict is returned when a concurrent writer won the race; retry the whole operation.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// Stable error codes. Clients branch on these, so never rename them.
const (
	CodeCopyNotFound    = "COPY_NOT_FOUND"
	CodeNotBorrowed     = "NOT_BORROWED"
	CodeUserNotFound    = "USER_NOT_FOUND"
	CodeBookNotFound    = "BOOK_NOT_FOUND"
	CodeRequestNotFound = "REQUEST_NOT_FOUND"

	CodeLimitReached               = "LIMIT_REACHED"
	CodeCopyAlreadyBorrowed        = "COPY_ALREADY_BORROWED"
	CodeEntitiesInDifferentOffices = "ENTITIES_IN_DIFFERENT_OFFICES"
	CodeAlreadyBorrowedByUser      = "ALREADY_BORROWED_BY_USER"
	CodeCooldownNotElapsed         = "COOLDOWN_NOT_ELAPSED"
	CodeBookAlreadyExists          = "BOOK_ALREADY_EXISTS"
	CodeInvalidStatusTransition    = "INVALID_STATUS_TRANSITION"

	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
)

// NotFoundError reports a referenced entity that does not exist. Always client input.
type NotFoundError struct {
	Code string
	ID   string
}

func (e *NotFoundError) Error() string {
	switch e.Code {
	case CodeCopyNotFound:
		return fmt.Sprintf("copy %s not found", e.ID)
	case CodeNotBorrowed:
		return fmt.Sprintf("copy %s is not borrowed", e.ID)
	case CodeUserNotFound:
		return fmt.Sprintf("user %s not found", e.ID)
	case CodeBookNotFound:
		return fmt.Sprintf("book %s not found", e.ID)
	case CodeRequestNotFound:
		return fmt.Sprintf("book request %s not found", e.ID)
	default:
		return fmt.Sprintf("%s not found", e.ID)
	}
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func CopyNotFound(copyID string) error       { return &NotFoundError{Code: CodeCopyNotFound, ID: copyID} }
func NotBorrowed(copyID string) error        { return &NotFoundError{Code: CodeNotBorrowed, ID: copyID} }
func UserNotFound(userID string) error       { return &NotFoundError{Code: CodeUserNotFound, ID: userID} }
func BookNotFound(bookID string) error       { return &NotFoundError{Code: CodeBookNotFound, ID: bookID} }
func RequestNotFound(requestID string) error { return &NotFoundError{Code: CodeRequestNotFound, ID: requestID} }

// RuleViolationError reports a failed eligibility or catalog rule.
// Only the fields relevant to Code are set.
type RuleViolationError struct {
	Code     string
	Limit    int
	Days     int
	ISBN     string
	CopyID   string
	State    CopyState
	OfficeID string
	Expected string
}

func (e *RuleViolationError) Error() string {
	switch e.Code {
	case CodeLimitReached:
		return fmt.Sprintf("borrow limit of %d open checkouts reached", e.Limit)
	case CodeCopyAlreadyBorrowed:
		return fmt.Sprintf("copy %s is not available (state %s)", e.CopyID, e.State)
	case CodeEntitiesInDifferentOffices:
		return fmt.Sprintf("copy belongs to office %s, borrower belongs to office %s", e.OfficeID, e.Expected)
	case CodeAlreadyBorrowedByUser:
		return fmt.Sprintf("a copy of %s is already borrowed by this user", e.ISBN)
	case CodeCooldownNotElapsed:
		return fmt.Sprintf("%s was returned less than %d days ago", e.ISBN, e.Days)
	case CodeBookAlreadyExists:
		return fmt.Sprintf("book %s already exists in office %s", e.ISBN, e.OfficeID)
	default:
		return e.Code
	}
}

func (e *RuleViolationError) Is(target error) bool {
	return target == ErrRuleViolation
}

func LimitReached(limit int) error {
	return &RuleViolationError{Code: CodeLimitReached, Limit: limit}
}

func CopyAlreadyBorrowed(copyID string, state CopyState) error {
	return &RuleViolationError{Code: CodeCopyAlreadyBorrowed, CopyID: copyID, State: state}
}

func EntitiesInDifferentOffices(copyOffice, borrowerOffice string) error {
	return &RuleViolationError{Code: CodeEntitiesInDifferentOffices, OfficeID: copyOffice, Expected: borrowerOffice}
}

func AlreadyBorrowedByUser(isbn string) error {
	return &RuleViolationError{Code: CodeAlreadyBorrowedByUser, ISBN: isbn}
}

func CooldownNotElapsed(days int, isbn string) error {
	return &RuleViolationError{Code: CodeCooldownNotElapsed, Days: days, ISBN: isbn}
}

func BookAlreadyExists(isbn, officeID string) error {
	return &RuleViolationError{Code: CodeBookAlreadyExists, ISBN: isbn, OfficeID: officeID}
}

// StatusTransitionError reports a status change absent from the transition table.
type StatusTransitionError struct {
	From AcquisitionStatus
	To   AcquisitionStatus
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("status transition from %s to %s is not allowed", e.From, e.To)
}

func (e *StatusTransitionError) Is(target error) bool {
	return target == ErrRuleViolation
}

// Code returns the stable code carried by err, or "" for infrastructure errors.
func Code(err error) string {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Code
	}
	var rv *RuleViolationError
	if errors.As(err, &rv) {
		return rv.Code
	}
	var st *StatusTransitionError
	if errors.As(err, &st) {
		return CodeInvalidStatusTransition
	}
	if errors.Is(err, ErrConcurrencyConflict) {
		return CodeConcurrencyConflict
	}
	return ""
}
