package user

import (
	"context"

	"booklending/internal/domain"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Profile is a user together with the office it belongs to.
type Profile struct {
	domain.User
	Office domain.Office `json:"office"`
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if u == nil {
		return domain.User{}, domain.UserNotFound(id)
	}
	return *u, nil
}

func (s *Service) GetProfile(ctx context.Context, id string) (Profile, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}

	p := Profile{User: u, Office: domain.Office{ID: u.OfficeID}}
	o, err := s.repo.GetOffice(ctx, u.OfficeID)
	if err != nil {
		return Profile{}, err
	}
	if o != nil {
		p.Office = *o
	}
	return p, nil
}
