// Package seed writes a small demo data set: two offices, their staff,
// a stocked catalog and a few open book requests.
package seed

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"booklending/internal/domain"
)

// Target is where demo data is written. Both the postgres repositories and
// the memory store satisfy it.
type Target interface {
	GetOffice(ctx context.Context, id string) (*domain.Office, error)
	CreateOffice(ctx context.Context, o domain.Office) error
	CreateUser(ctx context.Context, u domain.User) error
	CreateBook(ctx context.Context, b domain.Book) error
	CreateCopy(ctx context.Context, c domain.Copy) error
	CreateRequest(ctx context.Context, r domain.BookRequest) error
}

var namespace = uuid.MustParse("6f1c3b52-1d8e-4c7a-9f1e-2b8a4d0c5e71")

// ID derives a stable UUID from name so reruns and tests see the same ids.
func ID(name string) string {
	return uuid.NewSHA1(namespace, []byte(name)).String()
}

type demoBook struct {
	isbn   string
	title  string
	author string
	pages  int
	copies int
}

var catalog = []demoBook{
	{"9780132350884", "Clean Code", "Robert C. Martin", 464, 2},
	{"9780201633610", "Design Patterns", "Erich Gamma, Richard Helm, Ralph Johnson, John Vlissides", 395, 1},
	{"9781491950357", "Building Microservices", "Sam Newman", 280, 2},
	{"9780134190440", "The Go Programming Language", "Alan A. A. Donovan, Brian W. Kernighan", 380, 3},
	{"9781449373320", "Designing Data-Intensive Applications", "Martin Kleppmann", 616, 1},
}

var requested = []demoBook{
	{"9780134757599", "Refactoring", "Martin Fowler", 448, 0},
	{"9781617294549", "Microservices Patterns", "Chris Richardson", 520, 0},
}

// Summary lists what Demo wrote.
type Summary struct {
	Skipped  bool
	Offices  []domain.Office
	Users    []domain.User
	Books    int
	Copies   int
	Requests int
}

// Demo writes the demo data set unless its first office already exists.
func Demo(ctx context.Context, t Target, now time.Time) (Summary, error) {
	offices := []domain.Office{
		{ID: ID("office/berlin"), Name: "Berlin"},
		{ID: ID("office/lisbon"), Name: "Lisbon"},
	}

	existing, err := t.GetOffice(ctx, offices[0].ID)
	if err != nil {
		return Summary{}, err
	}
	if existing != nil {
		return Summary{Skipped: true}, nil
	}

	var sum Summary
	for _, o := range offices {
		if err := t.CreateOffice(ctx, o); err != nil {
			return sum, errors.Wrapf(err, "seed office %s", o.Name)
		}
		sum.Offices = append(sum.Offices, o)

		for _, u := range staff(o) {
			if err := t.CreateUser(ctx, u); err != nil {
				return sum, errors.Wrapf(err, "seed user %s", u.Email)
			}
			sum.Users = append(sum.Users, u)
		}

		for _, item := range catalog {
			b := newBook(o, item, domain.StatusInStock, now)
			if err := t.CreateBook(ctx, b); err != nil {
				return sum, errors.Wrapf(err, "seed book %s", item.isbn)
			}
			sum.Books++
			for i := 0; i < item.copies; i++ {
				c := domain.Copy{
					ID:        ID("copy/" + o.Name + "/" + item.isbn + "/" + string(rune('a'+i))),
					BookID:    b.ID,
					State:     domain.CopyAvailable,
					UpdatedAt: now,
				}
				if err := t.CreateCopy(ctx, c); err != nil {
					return sum, errors.Wrapf(err, "seed copy of %s", item.isbn)
				}
				sum.Copies++
			}
		}

		users := staff(o)
		for i, item := range requested {
			b := newBook(o, item, domain.StatusRequested, now)
			if err := t.CreateBook(ctx, b); err != nil {
				return sum, errors.Wrapf(err, "seed requested book %s", item.isbn)
			}
			sum.Books++

			r := domain.BookRequest{
				ID:          ID("request/" + o.Name + "/" + item.isbn),
				BookID:      b.ID,
				RequestedBy: users[i].ID,
				RequestedAt: now.Add(-time.Duration(len(requested)-i) * 24 * time.Hour),
			}
			for _, u := range users[:i+1] {
				r.ToggleLike(u.ID)
			}
			if err := t.CreateRequest(ctx, r); err != nil {
				return sum, errors.Wrapf(err, "seed request for %s", item.isbn)
			}
			sum.Requests++
		}
	}
	return sum, nil
}

func staff(o domain.Office) []domain.User {
	mk := func(name, role string) domain.User {
		return domain.User{
			ID:       ID("user/" + o.Name + "/" + name),
			Name:     name + " (" + o.Name + ")",
			Email:    name + "." + strings.ToLower(o.Name) + "@example.com",
			OfficeID: o.ID,
			Role:     role,
		}
	}
	return []domain.User{
		mk("reader", domain.RoleUser),
		mk("colleague", domain.RoleUser),
		mk("librarian", domain.RoleAdmin),
	}
}

func newBook(o domain.Office, item demoBook, status domain.AcquisitionStatus, now time.Time) domain.Book {
	return domain.Book{
		ID:        ID("book/" + o.Name + "/" + item.isbn),
		ISBN:      item.isbn,
		OfficeID:  o.ID,
		Title:     item.title,
		Author:    item.author,
		PageCount: item.pages,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
