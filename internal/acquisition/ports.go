package acquisition

import (
	"context"

	"booklending/internal/domain"
)

// Repository is everything the status manager needs from storage.
// Lookups return nil, nil when nothing matches.
type Repository interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	GetRequest(ctx context.Context, requestID string) (*domain.BookRequest, error)
	// GetRequestForUpdate locks the request until the surrounding transaction ends.
	GetRequestForUpdate(ctx context.Context, requestID string) (*domain.BookRequest, error)
	CreateRequest(ctx context.Context, r domain.BookRequest) error
	// SaveLikes persists the liking set and counter of r.
	SaveLikes(ctx context.Context, r domain.BookRequest) error
	ListRequests(ctx context.Context, q ListQuery) ([]RequestView, error)

	GetBook(ctx context.Context, bookID string) (*domain.Book, error)
	GetBookForUpdate(ctx context.Context, bookID string) (*domain.Book, error)
	FindByISBN(ctx context.Context, isbn, officeID string) (*domain.Book, error)
	// CreateBook fails with a BOOK_ALREADY_EXISTS violation for a duplicate ISBN in the office.
	CreateBook(ctx context.Context, b domain.Book) error
	SaveStatus(ctx context.Context, b domain.Book) error

	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// Metadata is what an external catalog knows about an ISBN.
type Metadata struct {
	Title     string
	Author    string
	PageCount int
}

// MetadataSource looks up book metadata. found is false when the ISBN is unknown.
type MetadataSource interface {
	Lookup(ctx context.Context, isbn string) (md Metadata, found bool, err error)
}
