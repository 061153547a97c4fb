package acquisition

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"booklending/internal/clock"
	"booklending/internal/domain"
	"booklending/internal/platform/retry"
)

// ErrTitleRequired is returned by Request when no title was given and no metadata was found.
var ErrTitleRequired = errors.New("title is required when the ISBN is unknown to the metadata source")

// RequestView is a book request together with the book it asks for.
type RequestView struct {
	Request domain.BookRequest `json:"request"`
	Book    domain.Book        `json:"book"`
}

// ListQuery selects the requests of an office, optionally in one status.
type ListQuery struct {
	OfficeID string
	Status   domain.AcquisitionStatus
}

// RequestInput asks an office to acquire a book.
type RequestInput struct {
	ISBN        string
	OfficeID    string
	RequestedBy string
	Title       string
	Author      string
	PageCount   int
}

// Service is the acquisition status manager.
type Service struct {
	repo      Repository
	validator Validator
	metadata  MetadataSource
	clock     clock.Clock
	newID     func() string
	retry     []retry.Option
}

type Option func(*Service)

// WithMetadataSource enables metadata lookups for new requests.
func WithMetadataSource(src MetadataSource) Option {
	return func(s *Service) {
		s.metadata = src
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func WithRetryOptions(opts ...retry.Option) Option {
	return func(s *Service) {
		s.retry = append(s.retry, opts...)
	}
}

// NewService builds the manager around validator, usually DefaultTransitions().
func NewService(repo Repository, validator Validator, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		validator: validator,
		clock:     clock.NewSystem(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChangeStatus moves the requested book to target. Asking for the current
// status returns the request unchanged without consulting the validator.
func (s *Service) ChangeStatus(ctx context.Context, requestID string, target domain.AcquisitionStatus) (RequestView, error) {
	var out RequestView
	err := retry.OnConflict(ctx, func(ctx context.Context) error {
		return s.repo.WithTransaction(ctx, func(ctx context.Context) error {
			req, err := s.repo.GetRequest(ctx, requestID)
			if err != nil {
				return err
			}
			if req == nil {
				return domain.RequestNotFound(requestID)
			}

			book, err := s.repo.GetBookForUpdate(ctx, req.BookID)
			if err != nil {
				return err
			}
			if book == nil {
				return domain.BookNotFound(req.BookID)
			}

			if book.Status == target {
				out = RequestView{Request: *req, Book: *book}
				return nil
			}

			if !s.validator.IsValid(book.Status, target) {
				return &domain.StatusTransitionError{From: book.Status, To: target}
			}

			book.Status = target
			book.UpdatedAt = s.clock.Now()
			if err := s.repo.SaveStatus(ctx, *book); err != nil {
				return err
			}

			out = RequestView{Request: *req, Book: *book}
			return nil
		})
	}, s.retry...)
	if err != nil {
		return RequestView{}, err
	}
	return out, nil
}

// ToggleLike adds userID to the likes of the request, or removes it when already there.
func (s *Service) ToggleLike(ctx context.Context, requestID, userID string) (RequestView, error) {
	var out RequestView
	err := retry.OnConflict(ctx, func(ctx context.Context) error {
		return s.repo.WithTransaction(ctx, func(ctx context.Context) error {
			req, err := s.repo.GetRequestForUpdate(ctx, requestID)
			if err != nil {
				return err
			}
			if req == nil {
				return domain.RequestNotFound(requestID)
			}

			u, err := s.repo.GetUser(ctx, userID)
			if err != nil {
				return err
			}
			if u == nil {
				return domain.UserNotFound(userID)
			}

			req.ToggleLike(userID)
			if err := s.repo.SaveLikes(ctx, *req); err != nil {
				return err
			}

			book, err := s.repo.GetBook(ctx, req.BookID)
			if err != nil {
				return err
			}
			if book == nil {
				return domain.BookNotFound(req.BookID)
			}

			out = RequestView{Request: *req, Book: *book}
			return nil
		})
	}, s.retry...)
	if err != nil {
		return RequestView{}, err
	}
	return out, nil
}

// Request registers a new book in status REQUESTED and a request for it,
// liked by its requester.
func (s *Service) Request(ctx context.Context, in RequestInput) (RequestView, error) {
	requester, err := s.repo.GetUser(ctx, in.RequestedBy)
	if err != nil {
		return RequestView{}, err
	}
	if requester == nil {
		return RequestView{}, domain.UserNotFound(in.RequestedBy)
	}
	if in.OfficeID == "" {
		in.OfficeID = requester.OfficeID
	}

	existing, err := s.repo.FindByISBN(ctx, in.ISBN, in.OfficeID)
	if err != nil {
		return RequestView{}, err
	}
	if existing != nil {
		return RequestView{}, domain.BookAlreadyExists(in.ISBN, in.OfficeID)
	}

	// Network lookup stays outside the transaction.
	in = s.enrich(ctx, in)
	if strings.TrimSpace(in.Title) == "" {
		return RequestView{}, ErrTitleRequired
	}

	now := s.clock.Now()
	book := domain.Book{
		ID:        s.newID(),
		ISBN:      in.ISBN,
		OfficeID:  in.OfficeID,
		Title:     in.Title,
		Author:    in.Author,
		PageCount: in.PageCount,
		Status:    domain.StatusRequested,
		CreatedAt: now,
		UpdatedAt: now,
	}
	req := domain.BookRequest{
		ID:          s.newID(),
		BookID:      book.ID,
		RequestedBy: requester.ID,
		RequestedAt: now,
	}
	req.ToggleLike(requester.ID)

	err = s.repo.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateBook(ctx, book); err != nil {
			return err
		}
		return s.repo.CreateRequest(ctx, req)
	})
	if err != nil {
		return RequestView{}, err
	}
	return RequestView{Request: req, Book: book}, nil
}

// enrich fills blanks in in from the metadata source. Lookup failures leave in as is.
func (s *Service) enrich(ctx context.Context, in RequestInput) RequestInput {
	if s.metadata == nil {
		return in
	}
	md, found, err := s.metadata.Lookup(ctx, in.ISBN)
	if err != nil || !found {
		return in
	}
	if in.Title == "" {
		in.Title = md.Title
	}
	if in.Author == "" {
		in.Author = md.Author
	}
	if in.PageCount <= 0 {
		in.PageCount = md.PageCount
	}
	return in
}

// List returns the requests of an office, most liked first, then oldest first.
func (s *Service) List(ctx context.Context, q ListQuery) ([]RequestView, error) {
	return s.repo.ListRequests(ctx, q)
}

// Targets lists the statuses a request in status from may move to.
func (s *Service) Targets(from domain.AcquisitionStatus) []domain.AcquisitionStatus {
	if t, ok := s.validator.(interface {
		Targets(domain.AcquisitionStatus) []domain.AcquisitionStatus
	}); ok {
		return t.Targets(from)
	}
	return nil
}
