package circulation

import (
	"context"
	"time"

	"booklending/internal/clock"
	"booklending/internal/domain"
)

// Facts is everything the eligibility rules look at.
type Facts struct {
	Borrower      domain.User
	Copy          domain.Copy
	Book          domain.Book
	OpenCheckouts int
	// History holds the borrower's checkouts of Book, open or closed.
	History []domain.Checkout
	Today   time.Time
}

// Check applies the lending rules in order and returns the first violation.
func Check(p Policy, f Facts) error {
	if p.MaxOpenCheckouts > 0 && f.OpenCheckouts >= p.MaxOpenCheckouts {
		return domain.LimitReached(p.MaxOpenCheckouts)
	}

	if f.Copy.State != domain.CopyAvailable {
		return domain.CopyAlreadyBorrowed(f.Copy.ID, f.Copy.State)
	}

	if f.Book.OfficeID != f.Borrower.OfficeID {
		return domain.EntitiesInDifferentOffices(f.Book.OfficeID, f.Borrower.OfficeID)
	}

	var lastReturn *time.Time
	for i := range f.History {
		c := f.History[i]
		if c.IsOpen() {
			return domain.AlreadyBorrowedByUser(f.Book.ISBN)
		}
		if lastReturn == nil || c.ReturnedOn.After(*lastReturn) {
			lastReturn = c.ReturnedOn
		}
	}

	if p.CooldownDays > 0 && lastReturn != nil && daysBetween(*lastReturn, f.Today) < p.CooldownDays {
		return domain.CooldownNotElapsed(p.CooldownDays, f.Book.ISBN)
	}

	return nil
}

// loadFacts reads the rule inputs. With lock set the copy and then the
// borrower are locked, which must happen inside a transaction.
func (s *Service) loadFacts(ctx context.Context, borrowerID, copyID string, lock bool) (Facts, error) {
	getCopy, getUser := s.repo.GetCopy, s.repo.GetUser
	if lock {
		getCopy, getUser = s.repo.GetCopyForUpdate, s.repo.GetUserForUpdate
	}

	c, err := getCopy(ctx, copyID)
	if err != nil {
		return Facts{}, err
	}
	if c == nil {
		return Facts{}, domain.CopyNotFound(copyID)
	}

	u, err := getUser(ctx, borrowerID)
	if err != nil {
		return Facts{}, err
	}
	if u == nil {
		return Facts{}, domain.UserNotFound(borrowerID)
	}

	b, err := s.repo.GetBook(ctx, c.BookID)
	if err != nil {
		return Facts{}, err
	}
	if b == nil {
		return Facts{}, domain.BookNotFound(c.BookID)
	}

	open, err := s.repo.CountOpenCheckouts(ctx, borrowerID)
	if err != nil {
		return Facts{}, err
	}

	history, err := s.repo.FindCheckoutsByBorrowerAndBook(ctx, borrowerID, b.ID)
	if err != nil {
		return Facts{}, err
	}

	return Facts{
		Borrower:      *u,
		Copy:          *c,
		Book:          *b,
		OpenCheckouts: open,
		History:       history,
		Today:         clock.Today(s.clock),
	}, nil
}
