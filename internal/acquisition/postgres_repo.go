package acquisition

import (
	"context"
	"sort"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"booklending/internal/book"
	"booklending/internal/domain"
	"booklending/internal/platform/postgres"
	"booklending/internal/user"
)

const likedByExpr = `COALESCE(ARRAY(
	SELECT l.user_id::text FROM book_request_likes l
	WHERE l.request_id = r.id
	ORDER BY l.user_id::text COLLATE "C"), '{}')`

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

func (r *PostgresRepo) GetRequest(ctx context.Context, requestID string) (*domain.BookRequest, error) {
	query := `
SELECT r.id, r.book_id, r.requested_by, r.requested_at, r.likes, ` + likedByExpr + `
FROM book_requests r
WHERE r.id = $1`

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	req, err := scanRequest(r.db.QueryRow(ctx, query, requestID))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, postgres.MapError(err, "get book request")
	}
	return &req, nil
}

func (r *PostgresRepo) GetRequestForUpdate(ctx context.Context, requestID string) (*domain.BookRequest, error) {
	if !postgres.InTransaction(ctx) {
		return nil, errors.New("get book request for update: no transaction in context")
	}

	lockCtx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var id string
	err := r.db.QueryRow(lockCtx, `SELECT id FROM book_requests WHERE id = $1 FOR UPDATE`, requestID).Scan(&id)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, postgres.MapError(err, "lock book request")
	}
	return r.GetRequest(ctx, requestID)
}

func (r *PostgresRepo) CreateRequest(ctx context.Context, req domain.BookRequest) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		const stmt = `
INSERT INTO book_requests (id, book_id, requested_by, requested_at, likes)
VALUES ($1, $2, $3, $4, $5)`

		execCtx, cancel := r.db.WithTimeout(ctx)
		defer cancel()

		if _, err := r.db.Exec(execCtx, stmt, req.ID, req.BookID, req.RequestedBy, req.RequestedAt, req.Likes); err != nil {
			return postgres.MapError(err, "create book request")
		}
		return r.insertLikes(execCtx, req)
	})
}

func (r *PostgresRepo) SaveLikes(ctx context.Context, req domain.BookRequest) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		execCtx, cancel := r.db.WithTimeout(ctx)
		defer cancel()

		tag, err := r.db.Exec(execCtx, `UPDATE book_requests SET likes = $2 WHERE id = $1`, req.ID, len(req.LikedBy))
		if err != nil {
			return postgres.MapError(err, "save likes")
		}
		if tag.RowsAffected() == 0 {
			return domain.RequestNotFound(req.ID)
		}
		if _, err := r.db.Exec(execCtx, `DELETE FROM book_request_likes WHERE request_id = $1`, req.ID); err != nil {
			return postgres.MapError(err, "save likes")
		}
		return r.insertLikes(execCtx, req)
	})
}

func (r *PostgresRepo) insertLikes(ctx context.Context, req domain.BookRequest) error {
	if len(req.LikedBy) == 0 {
		return nil
	}
	const stmt = `
INSERT INTO book_request_likes (request_id, user_id)
SELECT $1, u FROM unnest($2::uuid[]) AS u`

	_, err := r.db.Exec(ctx, stmt, req.ID, req.LikedBy)
	return postgres.MapError(err, "insert likes")
}

func (r *PostgresRepo) ListRequests(ctx context.Context, q ListQuery) ([]RequestView, error) {
	query, args, err := buildListQuery(q)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, postgres.MapError(err, "list book requests")
	}
	defer rows.Close()

	var out []RequestView
	for rows.Next() {
		var v RequestView
		err := rows.Scan(
			&v.Request.ID, &v.Request.BookID, &v.Request.RequestedBy, &v.Request.RequestedAt,
			&v.Request.Likes, &v.Request.LikedBy,
			&v.Book.ID, &v.Book.ISBN, &v.Book.OfficeID, &v.Book.Title, &v.Book.Author, &v.Book.PageCount,
			&v.Book.Status, &v.Book.RatingAverage, &v.Book.RatingCount, &v.Book.CreatedAt, &v.Book.UpdatedAt,
		)
		if err != nil {
			return nil, postgres.MapError(err, "scan book request")
		}
		sort.Strings(v.Request.LikedBy)
		out = append(out, v)
	}
	return out, postgres.MapError(rows.Err(), "list book requests")
}

func buildListQuery(q ListQuery) (string, []any, error) {
	ds := goqu.Dialect("postgres").
		From(goqu.T("book_requests").As("r")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("r.book_id")))).
		Select(
			goqu.I("r.id"), goqu.I("r.book_id"), goqu.I("r.requested_by"), goqu.I("r.requested_at"),
			goqu.I("r.likes"), goqu.L(likedByExpr),
			goqu.I("b.id"), goqu.I("b.isbn"), goqu.I("b.office_id"), goqu.I("b.title"), goqu.I("b.author"),
			goqu.I("b.page_count"), goqu.I("b.status"), goqu.I("b.rating_average"), goqu.I("b.rating_count"),
			goqu.I("b.created_at"), goqu.I("b.updated_at"),
		)

	where := []exp.Expression{goqu.I("b.office_id").Eq(q.OfficeID)}
	if q.Status != "" {
		where = append(where, goqu.I("b.status").Eq(string(q.Status)))
	}

	query, args, err := ds.
		Where(where...).
		Order(goqu.I("r.likes").Desc(), goqu.I("r.requested_at").Asc(), goqu.I("r.id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return "", nil, errors.Wrap(err, "build request list query")
	}
	return query, args, nil
}

func scanRequest(row pgx.Row) (domain.BookRequest, error) {
	var req domain.BookRequest
	if err := row.Scan(&req.ID, &req.BookID, &req.RequestedBy, &req.RequestedAt, &req.Likes, &req.LikedBy); err != nil {
		return domain.BookRequest{}, err
	}
	sort.Strings(req.LikedBy)
	req.Likes = len(req.LikedBy)
	return req, nil
}

func (r *PostgresRepo) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	return r.books.GetBook(ctx, bookID)
}

func (r *PostgresRepo) GetBookForUpdate(ctx context.Context, bookID string) (*domain.Book, error) {
	return r.books.GetBookForUpdate(ctx, bookID)
}

func (r *PostgresRepo) FindByISBN(ctx context.Context, isbn, officeID string) (*domain.Book, error) {
	return r.books.FindByISBN(ctx, isbn, officeID)
}

func (r *PostgresRepo) CreateBook(ctx context.Context, b domain.Book) error {
	return r.books.CreateBook(ctx, b)
}

func (r *PostgresRepo) SaveStatus(ctx context.Context, b domain.Book) error {
	return r.books.SaveStatus(ctx, b)
}

func (r *PostgresRepo) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return r.users.GetUser(ctx, userID)
}
