package book

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"booklending/internal/domain"
	"booklending/internal/platform/postgres"
)

const bookColumns = `b.id, b.isbn, b.office_id, b.title, b.author, b.page_count, b.status,
       b.rating_average, b.rating_count, b.created_at, b.updated_at`

type PostgresRepo struct {
	db *postgres.DB
}

func NewPostgresRepo(db *postgres.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) List(ctx context.Context, q Query) ([]domain.Book, int, error) {
	clauses := []string{"b.office_id = $1"}
	args := []any{q.OfficeID}
	argn := 2

	if q.Status != "" {
		clauses = append(clauses, fmt.Sprintf("b.status = $%d", argn))
		args = append(args, q.Status)
		argn++
	}

	if q.Q != "" {
		clauses = append(clauses, fmt.Sprintf("(b.isbn ILIKE $%d OR b.title ILIKE $%d OR b.author ILIKE $%d)", argn, argn, argn))
		args = append(args, "%"+q.Q+"%")
		argn++
	}

	where := "WHERE " + strings.Join(clauses, " AND ")

	sortCol := "b.title"
	switch q.Sort {
	case "created_at":
		sortCol = "b.created_at"
	case "rating":
		sortCol = "b.rating_average"
	case "pages":
		sortCol = "b.page_count"
	}

	order := "ASC"
	if q.Desc || q.Sort == "rating" {
		order = "DESC"
	}

	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM books b %s", where)
	var total int
	timeoutCtx, cancel := r.db.WithTimeout(ctx)
	defer cancel()
	if err := r.db.QueryRow(timeoutCtx, countSQL, args...).Scan(&total); err != nil {
		if postgres.IsNoRows(err) {
			return nil, 0, nil
		}
		return nil, 0, postgres.MapError(err, "count books")
	}

	dataSQL := fmt.Sprintf(`
		SELECT %s
		FROM books b
		%s
		ORDER BY %s %s, b.id ASC
		LIMIT $%d OFFSET $%d`,
		bookColumns, where, sortCol, order, argn, argn+1)

	argsWithPage := append([]any{}, args...)
	argsWithPage = append(argsWithPage, q.Limit, q.Offset)
	timeoutCtx2, cancel2 := r.db.WithTimeout(ctx)
	defer cancel2()
	rows, err := r.db.Query(timeoutCtx2, dataSQL, argsWithPage...)
	if err != nil {
		return nil, 0, postgres.MapError(err, "list books")
	}
	defer rows.Close()

	var out []domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, postgres.MapError(err, "scan book")
		}
		out = append(out, b)
	}
	return out, total, postgres.MapError(rows.Err(), "list books")
}

func (r *PostgresRepo) FindByISBN(ctx context.Context, isbn, officeID string) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books b WHERE b.isbn = $1 AND b.office_id = $2`
	return r.getOne(ctx, "find book by isbn", query, isbn, officeID)
}

func (r *PostgresRepo) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books b WHERE b.id = $1`
	return r.getOne(ctx, "get book", query, bookID)
}

// GetBookForUpdate locks the book row until the surrounding transaction ends.
func (r *PostgresRepo) GetBookForUpdate(ctx context.Context, bookID string) (*domain.Book, error) {
	if !postgres.InTransaction(ctx) {
		return nil, errors.New("get book for update: no transaction in context")
	}
	query := `SELECT ` + bookColumns + ` FROM books b WHERE b.id = $1 FOR UPDATE`
	return r.getOne(ctx, "get book for update", query, bookID)
}

func (r *PostgresRepo) getOne(ctx context.Context, op, query string, args ...any) (*domain.Book, error) {
	timeoutCtx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	b, err := scanBook(r.db.QueryRow(timeoutCtx, query, args...))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, postgres.MapError(err, op)
	}
	return &b, nil
}

func (r *PostgresRepo) ListCopies(ctx context.Context, bookID string) ([]domain.Copy, error) {
	const query = `
		SELECT id, book_id, state, version, updated_at
		FROM copies
		WHERE book_id = $1
		ORDER BY id`

	timeoutCtx, cancel := r.db.WithTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, query, bookID)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, postgres.MapError(err, "list copies")
	}
	defer rows.Close()

	var out []domain.Copy
	for rows.Next() {
		var c domain.Copy
		if err := rows.Scan(&c.ID, &c.BookID, &c.State, &c.Version, &c.UpdatedAt); err != nil {
			return nil, postgres.MapError(err, "scan copy")
		}
		out = append(out, c)
	}
	return out, postgres.MapError(rows.Err(), "list copies")
}

// CreateBook inserts b. A second book with the same ISBN in the same office is a rule violation.
func (r *PostgresRepo) CreateBook(ctx context.Context, b domain.Book) error {
	const stmt = `
		INSERT INTO books (id, isbn, office_id, title, author, page_count, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`

	timeoutCtx, cancel := r.db.WithTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(timeoutCtx, stmt, b.ID, b.ISBN, b.OfficeID, b.Title, b.Author, b.PageCount, b.Status, b.CreatedAt)
	if postgres.IsUniqueViolation(err, "books_isbn_office_key") {
		return domain.BookAlreadyExists(b.ISBN, b.OfficeID)
	}
	return postgres.MapError(err, "create book")
}

// SaveStatus persists b.Status. Only the acquisition manager calls it.
func (r *PostgresRepo) SaveStatus(ctx context.Context, b domain.Book) error {
	const stmt = `UPDATE books SET status = $2, updated_at = NOW() WHERE id = $1`

	timeoutCtx, cancel := r.db.WithTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, stmt, b.ID, b.Status)
	if err != nil {
		return postgres.MapError(err, "save book status")
	}
	if tag.RowsAffected() == 0 {
		return domain.BookNotFound(b.ID)
	}
	return nil
}

func (r *PostgresRepo) CreateCopy(ctx context.Context, c domain.Copy) error {
	const stmt = `INSERT INTO copies (id, book_id, state) VALUES ($1, $2, $3)`

	timeoutCtx, cancel := r.db.WithTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(timeoutCtx, stmt, c.ID, c.BookID, c.State)
	return postgres.MapError(err, "create copy")
}

func scanBook(row pgx.Row) (domain.Book, error) {
	var b domain.Book
	err := row.Scan(
		&b.ID, &b.ISBN, &b.OfficeID, &b.Title, &b.Author, &b.PageCount, &b.Status,
		&b.RatingAverage, &b.RatingCount, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}
