package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"booklending/internal/clock"
	"booklending/internal/domain"
	"booklending/internal/platform/retry"
)

// Service is the checkout lifecycle manager.
type Service struct {
	repo   Repository
	clock  clock.Clock
	policy Policy
	newID  func() string
	retry  []retry.Option
}

// Option configures a Service.
type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithPolicy(p Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithRetryOptions tunes how a concurrency conflict is retried.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(s *Service) {
		s.retry = append(s.retry, opts...)
	}
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		clock:  clock.NewSystem(),
		policy: DefaultPolicy(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Policy() Policy {
	return s.policy
}

// CanBorrow reports whether borrowerID may borrow copyID right now. It only reads.
func (s *Service) CanBorrow(ctx context.Context, borrowerID, copyID string) error {
	facts, err := s.loadFacts(ctx, borrowerID, copyID, false)
	if err != nil {
		return err
	}
	return Check(s.policy, facts)
}

// Borrow opens a checkout of copyID for borrowerID and marks the copy BORROWED.
// Both writes commit together or not at all.
func (s *Service) Borrow(ctx context.Context, borrowerID, copyID string) (domain.Checkout, error) {
	var out domain.Checkout
	err := retry.OnConflict(ctx, func(ctx context.Context) error {
		return s.repo.WithTransaction(ctx, func(ctx context.Context) error {
			facts, err := s.loadFacts(ctx, borrowerID, copyID, true)
			if err != nil {
				return err
			}
			if err := Check(s.policy, facts); err != nil {
				return err
			}

			checkout := domain.Checkout{
				ID:         s.newID(),
				BorrowerID: borrowerID,
				CopyID:     facts.Copy.ID,
				BookID:     facts.Book.ID,
				OfficeID:   facts.Book.OfficeID,
				BorrowedOn: facts.Today,
				DueOn:      s.policy.ReturnDate(facts.Today, facts.Book.PageCount),
			}
			if err := s.repo.CreateCheckout(ctx, checkout); err != nil {
				return err
			}

			facts.Copy.State = domain.CopyBorrowed
			if err := s.repo.SaveCopy(ctx, facts.Copy); err != nil {
				return err
			}

			out = checkout
			return nil
		})
	}, s.retry...)
	if err != nil {
		return domain.Checkout{}, err
	}
	return out, nil
}

type OutcomeKind string

const (
	OutcomeEarly   OutcomeKind = "EARLY"
	OutcomeOnTime  OutcomeKind = "ON_TIME"
	OutcomeOverdue OutcomeKind = "OVERDUE"
)

// Outcome classifies a return. Days is the number of days early or late.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`
	Days int         `json:"days"`
}

func Classify(due, returned time.Time) Outcome {
	switch d := daysBetween(due, returned); {
	case d > 0:
		return Outcome{Kind: OutcomeOverdue, Days: d}
	case d < 0:
		return Outcome{Kind: OutcomeEarly, Days: -d}
	default:
		return Outcome{Kind: OutcomeOnTime}
	}
}

type ReturnResult struct {
	Checkout domain.Checkout `json:"checkout"`
	Outcome  Outcome         `json:"outcome"`
}

// Return closes the open checkout of copyID and makes the copy AVAILABLE again.
// The copy's current state is not checked, only the open checkout counts.
func (s *Service) Return(ctx context.Context, copyID string) (ReturnResult, error) {
	var out ReturnResult
	err := retry.OnConflict(ctx, func(ctx context.Context) error {
		return s.repo.WithTransaction(ctx, func(ctx context.Context) error {
			c, err := s.repo.GetCopyForUpdate(ctx, copyID)
			if err != nil {
				return err
			}
			if c == nil {
				return domain.CopyNotFound(copyID)
			}

			open, err := s.repo.FindOpenCheckoutByCopy(ctx, copyID)
			if err != nil {
				return err
			}
			if open == nil {
				return domain.NotBorrowed(copyID)
			}

			today := clock.Today(s.clock)
			open.ReturnedOn = &today
			if err := s.repo.SaveCheckout(ctx, *open); err != nil {
				return err
			}

			c.State = domain.CopyAvailable
			if err := s.repo.SaveCopy(ctx, *c); err != nil {
				return err
			}

			out = ReturnResult{Checkout: *open, Outcome: Classify(open.DueOn, today)}
			return nil
		})
	}, s.retry...)
	if err != nil {
		return ReturnResult{}, err
	}
	return out, nil
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HistoryQuery pages through a borrower's checkouts, newest first.
type HistoryQuery struct {
	BorrowerID string
	OpenOnly   bool
	Limit      int
	After      *CursorData
}

type HistoryPage struct {
	Items      []domain.Checkout
	NextCursor string
}

// History lists the checkouts of borrowerID ordered by borrowed date, newest first.
func (s *Service) History(ctx context.Context, q HistoryQuery) (HistoryPage, error) {
	if q.Limit <= 0 {
		q.Limit = defaultHistoryLimit
	}
	if q.Limit > maxHistoryLimit {
		q.Limit = maxHistoryLimit
	}

	u, err := s.repo.GetUser(ctx, q.BorrowerID)
	if err != nil {
		return HistoryPage{}, err
	}
	if u == nil {
		return HistoryPage{}, domain.UserNotFound(q.BorrowerID)
	}

	// One extra row tells whether another page exists.
	fetch := q
	fetch.Limit = q.Limit + 1
	items, err := s.repo.ListCheckouts(ctx, fetch)
	if err != nil {
		return HistoryPage{}, err
	}

	page := HistoryPage{Items: items}
	if len(items) > q.Limit {
		page.Items = items[:q.Limit]
		last := page.Items[q.Limit-1]
		page.NextCursor = EncodeCursor(CursorData{
			AfterID:    last.ID,
			BorrowedOn: last.BorrowedOn.Format(time.DateOnly),
		})
	}
	return page, nil
}

type OverdueCheckout struct {
	domain.Checkout
	DaysOverdue int `json:"days_overdue"`
}

// Overdue lists the open checkouts of officeID whose scheduled return date has passed.
func (s *Service) Overdue(ctx context.Context, officeID string) ([]OverdueCheckout, error) {
	today := clock.Today(s.clock)
	items, err := s.repo.ListOverdue(ctx, officeID, today)
	if err != nil {
		return nil, err
	}
	out := make([]OverdueCheckout, 0, len(items))
	for _, c := range items {
		out = append(out, OverdueCheckout{Checkout: c, DaysOverdue: daysBetween(c.DueOn, today)})
	}
	return out, nil
}
