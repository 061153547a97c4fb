package user

import (
	"context"

	"booklending/internal/domain"
)

// Repository reads users and offices. Lookups return nil, nil when nothing matches.
type Repository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetOffice(ctx context.Context, id string) (*domain.Office, error)
}
