package user

import (
	"context"

	"github.com/pkg/errors"

	"booklending/internal/domain"
	"booklending/internal/platform/postgres"
)

type PostgresRepo struct {
	db *postgres.DB
}

func NewPostgresRepo(db *postgres.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return r.getUser(ctx, id, "")
}

// GetUserForUpdate locks the user row until the surrounding transaction ends.
func (r *PostgresRepo) GetUserForUpdate(ctx context.Context, id string) (*domain.User, error) {
	if !postgres.InTransaction(ctx) {
		return nil, errors.New("get user for update: no transaction in context")
	}
	return r.getUser(ctx, id, " FOR UPDATE")
}

func (r *PostgresRepo) getUser(ctx context.Context, id, lock string) (*domain.User, error) {
	query := `
	SELECT id, name, email, office_id, role
	FROM users WHERE id = $1` + lock

	var u domain.User
	timeoutCtx, cancel := r.db.WithTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.OfficeID, &u.Role)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, postgres.MapError(err, "get user")
	}
	return &u, nil
}

func (r *PostgresRepo) GetOffice(ctx context.Context, id string) (*domain.Office, error) {
	const query = `SELECT id, name FROM offices WHERE id = $1`

	var o domain.Office
	timeoutCtx, cancel := r.db.WithTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, query, id).Scan(&o.ID, &o.Name)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, postgres.MapError(err, "get office")
	}
	return &o, nil
}

func (r *PostgresRepo) CreateOffice(ctx context.Context, o domain.Office) error {
	const stmt = `INSERT INTO offices (id, name) VALUES ($1, $2)`

	timeoutCtx, cancel := r.db.WithTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(timeoutCtx, stmt, o.ID, o.Name)
	return postgres.MapError(err, "create office")
}

func (r *PostgresRepo) CreateUser(ctx context.Context, u domain.User) error {
	const stmt = `
	INSERT INTO users (id, name, email, office_id, role)
	VALUES ($1, $2, $3, $4, COALESCE(NULLIF($5, ''), 'USER'))`

	timeoutCtx, cancel := r.db.WithTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(timeoutCtx, stmt, u.ID, u.Name, u.Email, u.OfficeID, u.Role)
	return postgres.MapError(err, "create user")
}
