package book

import (
	"context"

	"booklending/internal/domain"
)

// Repository defines the contract for book data storage.
type Repository interface {
	List(ctx context.Context, q Query) ([]domain.Book, int, error)
	// FindByISBN returns nil, nil when the office has no such book.
	FindByISBN(ctx context.Context, isbn, officeID string) (*domain.Book, error)
	ListCopies(ctx context.Context, bookID string) ([]domain.Copy, error)
}
