package book

import (
	"context"

	"booklending/internal/domain"
)

// Service provides catalog reads.
type Service struct {
	repo Repository
}

// NewService creates a new book service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the books of an office matching the query.
func (s *Service) List(ctx context.Context, q Query) ([]domain.Book, int, error) {
	return s.repo.List(ctx, q)
}

// GetByISBN returns a book of an office together with its copies.
func (s *Service) GetByISBN(ctx context.Context, isbn, officeID string) (Detail, error) {
	b, err := s.repo.FindByISBN(ctx, isbn, officeID)
	if err != nil {
		return Detail{}, err
	}
	if b == nil {
		return Detail{}, domain.BookNotFound(isbn)
	}

	copies, err := s.repo.ListCopies(ctx, b.ID)
	if err != nil {
		return Detail{}, err
	}

	d := Detail{Book: *b, Copies: copies}
	if d.Copies == nil {
		d.Copies = []domain.Copy{}
	}
	for _, c := range copies {
		if c.State == domain.CopyAvailable {
			d.Available++
		}
	}
	return d, nil
}
