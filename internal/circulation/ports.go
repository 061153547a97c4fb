package circulation

import (
	"context"
	"time"

	"booklending/internal/domain"
)

// Transactor runs fn atomically. Every repository call made with the ctx
// passed to fn joins the same transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CopyStore reads and writes copies. Lookups return nil, nil when the copy does not exist.
type CopyStore interface {
	GetCopy(ctx context.Context, copyID string) (*domain.Copy, error)
	// GetCopyForUpdate locks the copy until the surrounding transaction ends.
	GetCopyForUpdate(ctx context.Context, copyID string) (*domain.Copy, error)
	// SaveCopy fails with domain.ErrConcurrencyConflict when c.Version is stale.
	SaveCopy(ctx context.Context, c domain.Copy) error
}

type BookReader interface {
	GetBook(ctx context.Context, bookID string) (*domain.Book, error)
}

type UserReader interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	// GetUserForUpdate serializes concurrent borrows by the same user.
	GetUserForUpdate(ctx context.Context, userID string) (*domain.User, error)
}

type CheckoutStore interface {
	CountOpenCheckouts(ctx context.Context, borrowerID string) (int, error)
	FindOpenCheckoutByCopy(ctx context.Context, copyID string) (*domain.Checkout, error)
	FindCheckoutsByBorrowerAndBook(ctx context.Context, borrowerID, bookID string) ([]domain.Checkout, error)
	// CreateCheckout fails with domain.ErrConcurrencyConflict when the copy already has an open checkout.
	CreateCheckout(ctx context.Context, c domain.Checkout) error
	SaveCheckout(ctx context.Context, c domain.Checkout) error
	ListCheckouts(ctx context.Context, q HistoryQuery) ([]domain.Checkout, error)
	ListOverdue(ctx context.Context, officeID string, today time.Time) ([]domain.Checkout, error)
}

// Repository is everything the lifecycle manager needs from storage.
type Repository interface {
	Transactor
	CopyStore
	BookReader
	UserReader
	CheckoutStore
}
