package circulation

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"booklending/internal/book"
	"booklending/internal/domain"
	"booklending/internal/platform/postgres"
	"booklending/internal/user"
)

const dialectPostgres = "postgres"

var checkoutColumns = []any{
	"id", "borrower_id", "copy_id", "book_id", "office_id", "borrowed_on", "due_on", "returned_on",
}

// PostgresRepo reads books and users through the catalog and user repositories.
// All of them share db, so lookups join the transaction carried in the context.
type PostgresRepo struct {
	db    *postgres.DB
	books *book.PostgresRepo
	users *user.PostgresRepo
}

func NewPostgresRepo(db *postgres.DB) *PostgresRepo {
	return &PostgresRepo{
		db:    db,
		books: book.NewPostgresRepo(db),
		users: user.NewPostgresRepo(db),
	}
}

func (r *PostgresRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithTransaction(ctx, fn)
}

func (r *PostgresRepo) GetCopy(ctx context.Context, copyID string) (*domain.Copy, error) {
	return r.getCopy(ctx, copyID, "")
}

func (r *PostgresRepo) GetCopyForUpdate(ctx context.Context, copyID string) (*domain.Copy, error) {
	if !postgres.InTransaction(ctx) {
		return nil, errors.New("get copy for update: no transaction in context")
	}
	return r.getCopy(ctx, copyID, " FOR UPDATE")
}

func (r *PostgresRepo) getCopy(ctx context.Context, copyID, lock string) (*domain.Copy, error) {
	query := `SELECT id, book_id, state, version, updated_at FROM copies WHERE id = $1` + lock

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var c domain.Copy
	err := r.db.QueryRow(ctx, query, copyID).Scan(&c.ID, &c.BookID, &c.State, &c.Version, &c.UpdatedAt)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, postgres.MapError(err, "get copy")
	}
	return &c, nil
}

func (r *PostgresRepo) SaveCopy(ctx context.Context, c domain.Copy) error {
	const stmt = `
UPDATE copies
SET state = $2, version = version + 1, updated_at = NOW()
WHERE id = $1 AND version = $3`

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, stmt, c.ID, c.State, c.Version)
	if err != nil {
		return postgres.MapError(err, "save copy")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrConcurrencyConflict, "save copy %s: stale version %d", c.ID, c.Version)
	}
	return nil
}

func (r *PostgresRepo) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	return r.books.GetBook(ctx, bookID)
}

func (r *PostgresRepo) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return r.users.GetUser(ctx, userID)
}

func (r *PostgresRepo) GetUserForUpdate(ctx context.Context, userID string) (*domain.User, error) {
	return r.users.GetUserForUpdate(ctx, userID)
}

func (r *PostgresRepo) CountOpenCheckouts(ctx context.Context, borrowerID string) (int, error) {
	const query = `SELECT COUNT(*) FROM checkouts WHERE borrower_id = $1 AND returned_on IS NULL`

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var n int
	if err := r.db.QueryRow(ctx, query, borrowerID).Scan(&n); err != nil {
		return 0, postgres.MapError(err, "count open checkouts")
	}
	return n, nil
}

func (r *PostgresRepo) FindOpenCheckoutByCopy(ctx context.Context, copyID string) (*domain.Checkout, error) {
	const query = `
SELECT id, borrower_id, copy_id, book_id, office_id, borrowed_on, due_on, returned_on
FROM checkouts
WHERE copy_id = $1 AND returned_on IS NULL`

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	c, err := scanCheckout(r.db.QueryRow(ctx, query, copyID))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, postgres.MapError(err, "find open checkout")
	}
	return &c, nil
}

func (r *PostgresRepo) FindCheckoutsByBorrowerAndBook(ctx context.Context, borrowerID, bookID string) ([]domain.Checkout, error) {
	const query = `
SELECT id, borrower_id, copy_id, book_id, office_id, borrowed_on, due_on, returned_on
FROM checkouts
WHERE borrower_id = $1 AND book_id = $2
ORDER BY borrowed_on DESC, id DESC`

	return r.list(ctx, "find checkouts by borrower and book", query, borrowerID, bookID)
}

func (r *PostgresRepo) CreateCheckout(ctx context.Context, c domain.Checkout) error {
	const stmt = `
INSERT INTO checkouts (id, borrower_id, copy_id, book_id, office_id, borrowed_on, due_on, returned_on)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, stmt,
		c.ID, c.BorrowerID, c.CopyID, c.BookID, c.OfficeID, c.BorrowedOn, c.DueOn, c.ReturnedOn,
	)
	return postgres.MapError(err, "create checkout")
}

func (r *PostgresRepo) SaveCheckout(ctx context.Context, c domain.Checkout) error {
	const stmt = `UPDATE checkouts SET due_on = $2, returned_on = $3 WHERE id = $1`

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, stmt, c.ID, c.DueOn, c.ReturnedOn)
	if err != nil {
		return postgres.MapError(err, "save checkout")
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("save checkout %s: no such checkout", c.ID)
	}
	return nil
}

func (r *PostgresRepo) ListCheckouts(ctx context.Context, q HistoryQuery) ([]domain.Checkout, error) {
	query, args, err := buildHistoryQuery(q)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, "list checkouts", query, args...)
}

func buildHistoryQuery(q HistoryQuery) (string, []any, error) {
	ds := goqu.Dialect(dialectPostgres).
		From("checkouts").
		Select(checkoutColumns...).
		Where(goqu.C("borrower_id").Eq(q.BorrowerID))

	if q.OpenOnly {
		ds = ds.Where(goqu.C("returned_on").IsNull())
	}

	if q.After != nil {
		after, err := q.After.BorrowedDate()
		if err != nil {
			return "", nil, errors.Wrap(err, "invalid cursor")
		}
		ds = ds.Where(goqu.Or(
			goqu.C("borrowed_on").Lt(after),
			goqu.And(goqu.C("borrowed_on").Eq(after), goqu.C("id").Lt(q.After.AfterID)),
		))
	}

	ds = ds.Order(goqu.C("borrowed_on").Desc(), goqu.C("id").Desc())
	if q.Limit > 0 {
		ds = ds.Limit(uint(q.Limit))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return "", nil, errors.Wrap(err, "build history query")
	}
	return query, args, nil
}

func (r *PostgresRepo) ListOverdue(ctx context.Context, officeID string, today time.Time) ([]domain.Checkout, error) {
	const query = `
SELECT id, borrower_id, copy_id, book_id, office_id, borrowed_on, due_on, returned_on
FROM checkouts
WHERE office_id = $1 AND returned_on IS NULL AND due_on < $2
ORDER BY due_on ASC, id ASC`

	return r.list(ctx, "list overdue checkouts", query, officeID, today)
}

func (r *PostgresRepo) list(ctx context.Context, op, query string, args ...any) ([]domain.Checkout, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, postgres.MapError(err, op)
	}
	defer rows.Close()

	var out []domain.Checkout
	for rows.Next() {
		c, err := scanCheckout(rows)
		if err != nil {
			return nil, postgres.MapError(err, op)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, postgres.MapError(err, op)
	}
	return out, nil
}

func scanCheckout(row pgx.Row) (domain.Checkout, error) {
	var c domain.Checkout
	err := row.Scan(&c.ID, &c.BorrowerID, &c.CopyID, &c.BookID, &c.OfficeID, &c.BorrowedOn, &c.DueOn, &c.ReturnedOn)
	if err != nil {
		return domain.Checkout{}, err
	}
	c.BorrowedOn = c.BorrowedOn.UTC()
	c.DueOn = c.DueOn.UTC()
	if c.ReturnedOn != nil {
		d := c.ReturnedOn.UTC()
		c.ReturnedOn = &d
	}
	return c, nil
}
