// Package store holds an in-memory implementation of every repository port.
// It backs the STORE=memory mode of the API and the service tests.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"booklending/internal/acquisition"
	"booklending/internal/book"
	"booklending/internal/circulation"
	"booklending/internal/domain"
	"booklending/internal/user"
)

type state struct {
	offices   map[string]domain.Office
	users     map[string]domain.User
	books     map[string]domain.Book
	copies    map[string]domain.Copy
	checkouts map[string]domain.Checkout
	requests  map[string]domain.BookRequest
}

func newState() *state {
	return &state{
		offices:   map[string]domain.Office{},
		users:     map[string]domain.User{},
		books:     map[string]domain.Book{},
		copies:    map[string]domain.Copy{},
		checkouts: map[string]domain.Checkout{},
		requests:  map[string]domain.BookRequest{},
	}
}

func (s *state) clone() *state {
	out := &state{
		offices:   cloneMap(s.offices),
		users:     cloneMap(s.users),
		books:     cloneMap(s.books),
		copies:    cloneMap(s.copies),
		checkouts: cloneMap(s.checkouts),
		requests:  make(map[string]domain.BookRequest, len(s.requests)),
	}
	for id, r := range s.requests {
		out.requests[id] = r.Clone()
	}
	return out
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type txKey struct{}

type tx struct {
	owner *Memory
	st    *state
}

// Memory is a transactional in-memory store. Transactions run one at a time
// on a private snapshot that replaces the committed state only when fn succeeds.
type Memory struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	committed *state
}

var (
	_ circulation.Repository = (*Memory)(nil)
	_ acquisition.Repository = (*Memory)(nil)
	_ book.Repository        = (*Memory)(nil)
	_ user.Repository        = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{committed: newState()}
}

func (m *Memory) txFrom(ctx context.Context) *tx {
	t, ok := ctx.Value(txKey{}).(*tx)
	if !ok || t.owner != m {
		return nil
	}
	return t
}

// WithTransaction runs fn atomically. Nested calls join the outer transaction.
func (m *Memory) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.txFrom(ctx) != nil {
		return fn(ctx)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	snapshot := m.committed.clone()
	m.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, &tx{owner: m, st: snapshot})); err != nil {
		return err
	}

	m.mu.Lock()
	m.committed = snapshot
	m.mu.Unlock()
	return nil
}

func (m *Memory) read(ctx context.Context, fn func(st *state) error) error {
	if t := m.txFrom(ctx); t != nil {
		return fn(t.st)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.committed)
}

func (m *Memory) write(ctx context.Context, fn func(st *state) error) error {
	return m.WithTransaction(ctx, func(ctx context.Context) error {
		return fn(m.txFrom(ctx).st)
	})
}

func (m *Memory) requireTx(ctx context.Context, op string) error {
	if m.txFrom(ctx) == nil {
		return errors.Errorf("%s: no transaction in context", op)
	}
	return nil
}

// Offices and users

func (m *Memory) CreateOffice(ctx context.Context, o domain.Office) error {
	return m.write(ctx, func(st *state) error {
		if _, ok := st.offices[o.ID]; ok {
			return errors.Wrapf(domain.ErrConcurrencyConflict, "create office %s: duplicate id", o.ID)
		}
		st.offices[o.ID] = o
		return nil
	})
}

func (m *Memory) GetOffice(ctx context.Context, id string) (*domain.Office, error) {
	var out *domain.Office
	err := m.read(ctx, func(st *state) error {
		if o, ok := st.offices[id]; ok {
			out = &o
		}
		return nil
	})
	return out, err
}

func (m *Memory) CreateUser(ctx context.Context, u domain.User) error {
	return m.write(ctx, func(st *state) error {
		if _, ok := st.users[u.ID]; ok {
			return errors.Wrapf(domain.ErrConcurrencyConflict, "create user %s: duplicate id", u.ID)
		}
		if _, ok := st.offices[u.OfficeID]; !ok {
			return errors.Errorf("create user %s: unknown office %s", u.ID, u.OfficeID)
		}
		st.users[u.ID] = u
		return nil
	})
}

func (m *Memory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := m.read(ctx, func(st *state) error {
		if u, ok := st.users[id]; ok {
			out = &u
		}
		return nil
	})
	return out, err
}

func (m *Memory) GetUserForUpdate(ctx context.Context, id string) (*domain.User, error) {
	if err := m.requireTx(ctx, "get user for update"); err != nil {
		return nil, err
	}
	return m.GetUser(ctx, id)
}

// Books and copies

func (m *Memory) CreateBook(ctx context.Context, b domain.Book) error {
	return m.write(ctx, func(st *state) error {
		for _, existing := range st.books {
			if existing.ISBN == b.ISBN && existing.OfficeID == b.OfficeID {
				return domain.BookAlreadyExists(b.ISBN, b.OfficeID)
			}
		}
		if _, ok := st.books[b.ID]; ok {
			return errors.Wrapf(domain.ErrConcurrencyConflict, "create book %s: duplicate id", b.ID)
		}
		st.books[b.ID] = b
		return nil
	})
}

func (m *Memory) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	var out *domain.Book
	err := m.read(ctx, func(st *state) error {
		if b, ok := st.books[id]; ok {
			out = &b
		}
		return nil
	})
	return out, err
}

func (m *Memory) GetBookForUpdate(ctx context.Context, id string) (*domain.Book, error) {
	if err := m.requireTx(ctx, "get book for update"); err != nil {
		return nil, err
	}
	return m.GetBook(ctx, id)
}

func (m *Memory) FindByISBN(ctx context.Context, isbn, officeID string) (*domain.Book, error) {
	var out *domain.Book
	err := m.read(ctx, func(st *state) error {
		for _, b := range st.books {
			if b.ISBN == isbn && b.OfficeID == officeID {
				b := b
				out = &b
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (m *Memory) SaveStatus(ctx context.Context, b domain.Book) error {
	return m.write(ctx, func(st *state) error {
		cur, ok := st.books[b.ID]
		if !ok {
			return domain.BookNotFound(b.ID)
		}
		cur.Status = b.Status
		cur.UpdatedAt = b.UpdatedAt
		st.books[b.ID] = cur
		return nil
	})
}

// List mirrors the filtering, sorting and paging of book.PostgresRepo.List.
func (m *Memory) List(ctx context.Context, q book.Query) ([]domain.Book, int, error) {
	var out []domain.Book
	var total int
	err := m.read(ctx, func(st *state) error {
		needle := strings.ToLower(q.Q)
		var matched []domain.Book
		for _, b := range st.books {
			if b.OfficeID != q.OfficeID {
				continue
			}
			if q.Status != "" && b.Status != q.Status {
				continue
			}
			if needle != "" &&
				!strings.Contains(strings.ToLower(b.ISBN), needle) &&
				!strings.Contains(strings.ToLower(b.Title), needle) &&
				!strings.Contains(strings.ToLower(b.Author), needle) {
				continue
			}
			matched = append(matched, b)
		}

		desc := q.Desc || q.Sort == "rating"
		sort.Slice(matched, func(i, j int) bool {
			a, b := matched[i], matched[j]
			var c int
			switch q.Sort {
			case "created_at":
				c = a.CreatedAt.Compare(b.CreatedAt)
			case "rating":
				c = compareFloat(a.RatingAverage, b.RatingAverage)
			case "pages":
				c = a.PageCount - b.PageCount
			default:
				c = strings.Compare(a.Title, b.Title)
			}
			if desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
			return a.ID < b.ID
		})

		total = len(matched)
		out = page(matched, q.Offset, q.Limit)
		return nil
	})
	return out, total, err
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (m *Memory) CreateCopy(ctx context.Context, c domain.Copy) error {
	return m.write(ctx, func(st *state) error {
		if _, ok := st.books[c.BookID]; !ok {
			return errors.Errorf("create copy %s: unknown book %s", c.ID, c.BookID)
		}
		if _, ok := st.copies[c.ID]; ok {
			return errors.Wrapf(domain.ErrConcurrencyConflict, "create copy %s: duplicate id", c.ID)
		}
		if c.State == "" {
			c.State = domain.CopyAvailable
		}
		st.copies[c.ID] = c
		return nil
	})
}

func (m *Memory) GetCopy(ctx context.Context, id string) (*domain.Copy, error) {
	var out *domain.Copy
	err := m.read(ctx, func(st *state) error {
		if c, ok := st.copies[id]; ok {
			out = &c
		}
		return nil
	})
	return out, err
}

func (m *Memory) GetCopyForUpdate(ctx context.Context, id string) (*domain.Copy, error) {
	if err := m.requireTx(ctx, "get copy for update"); err != nil {
		return nil, err
	}
	return m.GetCopy(ctx, id)
}

// SaveCopy writes c when c.Version matches the stored version and bumps it.
func (m *Memory) SaveCopy(ctx context.Context, c domain.Copy) error {
	return m.write(ctx, func(st *state) error {
		cur, ok := st.copies[c.ID]
		if !ok {
			return domain.CopyNotFound(c.ID)
		}
		if cur.Version != c.Version {
			return errors.Wrapf(domain.ErrConcurrencyConflict, "save copy %s: stale version %d", c.ID, c.Version)
		}
		c.Version++
		st.copies[c.ID] = c
		return nil
	})
}

func (m *Memory) ListCopies(ctx context.Context, bookID string) ([]domain.Copy, error) {
	var out []domain.Copy
	err := m.read(ctx, func(st *state) error {
		for _, c := range st.copies {
			if c.BookID == bookID {
				out = append(out, c)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

// Checkouts

func (m *Memory) CountOpenCheckouts(ctx context.Context, borrowerID string) (int, error) {
	n := 0
	err := m.read(ctx, func(st *state) error {
		for _, c := range st.checkouts {
			if c.BorrowerID == borrowerID && c.IsOpen() {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (m *Memory) FindOpenCheckoutByCopy(ctx context.Context, copyID string) (*domain.Checkout, error) {
	var out *domain.Checkout
	err := m.read(ctx, func(st *state) error {
		for _, c := range st.checkouts {
			if c.CopyID == copyID && c.IsOpen() {
				c := c
				out = &c
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (m *Memory) FindCheckoutsByBorrowerAndBook(ctx context.Context, borrowerID, bookID string) ([]domain.Checkout, error) {
	return m.filterCheckouts(ctx, func(c domain.Checkout) bool {
		return c.BorrowerID == borrowerID && c.BookID == bookID
	}, func(a, b domain.Checkout) bool {
		if !a.BorrowedOn.Equal(b.BorrowedOn) {
			return a.BorrowedOn.Before(b.BorrowedOn)
		}
		return a.ID < b.ID
	})
}

// CreateCheckout rejects a second open checkout of the same copy with a conflict.
func (m *Memory) CreateCheckout(ctx context.Context, c domain.Checkout) error {
	return m.write(ctx, func(st *state) error {
		if _, ok := st.checkouts[c.ID]; ok {
			return errors.Wrapf(domain.ErrConcurrencyConflict, "create checkout %s: duplicate id", c.ID)
		}
		if c.IsOpen() {
			for _, other := range st.checkouts {
				if other.CopyID == c.CopyID && other.IsOpen() {
					return errors.Wrapf(domain.ErrConcurrencyConflict, "create checkout: copy %s already has an open checkout", c.CopyID)
				}
			}
		}
		st.checkouts[c.ID] = copyCheckout(c)
		return nil
	})
}

func (m *Memory) SaveCheckout(ctx context.Context, c domain.Checkout) error {
	return m.write(ctx, func(st *state) error {
		if _, ok := st.checkouts[c.ID]; !ok {
			return errors.Errorf("save checkout %s: no such checkout", c.ID)
		}
		st.checkouts[c.ID] = copyCheckout(c)
		return nil
	})
}

// ListCheckouts pages newest first by borrowed date, ties broken by id descending.
func (m *Memory) ListCheckouts(ctx context.Context, q circulation.HistoryQuery) ([]domain.Checkout, error) {
	var after time.Time
	if q.After != nil {
		var err error
		if after, err = q.After.BorrowedDate(); err != nil {
			return nil, errors.Wrap(err, "invalid cursor")
		}
	}

	items, err := m.filterCheckouts(ctx, func(c domain.Checkout) bool {
		if c.BorrowerID != q.BorrowerID {
			return false
		}
		if q.OpenOnly && !c.IsOpen() {
			return false
		}
		if q.After != nil {
			return c.BorrowedOn.Before(after) || (c.BorrowedOn.Equal(after) && c.ID < q.After.AfterID)
		}
		return true
	}, func(a, b domain.Checkout) bool {
		if !a.BorrowedOn.Equal(b.BorrowedOn) {
			return a.BorrowedOn.After(b.BorrowedOn)
		}
		return a.ID > b.ID
	})
	if err != nil {
		return nil, err
	}
	return page(items, 0, q.Limit), nil
}

func (m *Memory) ListOverdue(ctx context.Context, officeID string, today time.Time) ([]domain.Checkout, error) {
	return m.filterCheckouts(ctx, func(c domain.Checkout) bool {
		return c.OfficeID == officeID && c.IsOpen() && c.DueOn.Before(today)
	}, func(a, b domain.Checkout) bool {
		if !a.DueOn.Equal(b.DueOn) {
			return a.DueOn.Before(b.DueOn)
		}
		return a.ID < b.ID
	})
}

func (m *Memory) filterCheckouts(ctx context.Context, keep func(domain.Checkout) bool, less func(a, b domain.Checkout) bool) ([]domain.Checkout, error) {
	var out []domain.Checkout
	err := m.read(ctx, func(st *state) error {
		for _, c := range st.checkouts {
			if keep(c) {
				out = append(out, copyCheckout(c))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, err
}

func copyCheckout(c domain.Checkout) domain.Checkout {
	if c.ReturnedOn != nil {
		returned := *c.ReturnedOn
		c.ReturnedOn = &returned
	}
	return c
}

// Book requests

func (m *Memory) CreateRequest(ctx context.Context, r domain.BookRequest) error {
	return m.write(ctx, func(st *state) error {
		if _, ok := st.books[r.BookID]; !ok {
			return errors.Errorf("create book request %s: unknown book %s", r.ID, r.BookID)
		}
		for _, other := range st.requests {
			if other.ID == r.ID || other.BookID == r.BookID {
				return errors.Wrapf(domain.ErrConcurrencyConflict, "create book request for book %s", r.BookID)
			}
		}
		r = r.Clone()
		r.Likes = len(r.LikedBy)
		st.requests[r.ID] = r
		return nil
	})
}

func (m *Memory) GetRequest(ctx context.Context, id string) (*domain.BookRequest, error) {
	var out *domain.BookRequest
	err := m.read(ctx, func(st *state) error {
		if r, ok := st.requests[id]; ok {
			r = r.Clone()
			out = &r
		}
		return nil
	})
	return out, err
}

func (m *Memory) GetRequestForUpdate(ctx context.Context, id string) (*domain.BookRequest, error) {
	if err := m.requireTx(ctx, "get book request for update"); err != nil {
		return nil, err
	}
	return m.GetRequest(ctx, id)
}

func (m *Memory) SaveLikes(ctx context.Context, r domain.BookRequest) error {
	return m.write(ctx, func(st *state) error {
		cur, ok := st.requests[r.ID]
		if !ok {
			return domain.RequestNotFound(r.ID)
		}
		cur.LikedBy = append([]string(nil), r.LikedBy...)
		sort.Strings(cur.LikedBy)
		cur.Likes = len(cur.LikedBy)
		st.requests[r.ID] = cur
		return nil
	})
}

// ListRequests orders by likes descending, then oldest request first.
func (m *Memory) ListRequests(ctx context.Context, q acquisition.ListQuery) ([]acquisition.RequestView, error) {
	var out []acquisition.RequestView
	err := m.read(ctx, func(st *state) error {
		for _, r := range st.requests {
			b, ok := st.books[r.BookID]
			if !ok || b.OfficeID != q.OfficeID {
				continue
			}
			if q.Status != "" && b.Status != q.Status {
				continue
			}
			out = append(out, acquisition.RequestView{Request: r.Clone(), Book: b})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Request, out[j].Request
		if a.Likes != b.Likes {
			return a.Likes > b.Likes
		}
		if !a.RequestedAt.Equal(b.RequestedAt) {
			return a.RequestedAt.Before(b.RequestedAt)
		}
		return a.ID < b.ID
	})
	return out, err
}
