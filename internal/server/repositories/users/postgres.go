package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const userColumns = `id, email, password_hash, first_name, last_name, phone, role,
		 is_active, refresh_token_hash, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, nu models.NewUser) (*models.User, error) {
	query :=
		`INSERT INTO users (email, password_hash, first_name, last_name, phone, role)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING ` + userColumns

	role := nu.Role
	if role == "" {
		role = common.DefaultRole
	}

	row := r.db.QueryRowContext(ctx, query,
		nu.Email, nu.PasswordHash, nu.FirstName, nu.LastName, nullString(nu.Phone), role)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE email = $1`

	return r.findOne(ctx, query, email)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE id = $1`

	return r.findOne(ctx, query, id)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	query :=
		`UPDATE users SET password_hash = $1, updated_at = NOW()
		 WHERE email = $2`

	return r.exec(ctx, query, passwordHash, email)
}

func (r *PostgresRepository) UpdateRefreshTokenHash(ctx context.Context, id, hash string) error {
	query :=
		`UPDATE users SET refresh_token_hash = $1, updated_at = NOW()
		 WHERE id = $2`

	return r.exec(ctx, query, nullString(hash), id)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u       models.User
		phone   sql.NullString
		refresh sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &phone, &u.Role,
		&u.IsActive, &refresh, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Phone = phone.String
	u.RefreshTokenHash = refresh.String
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
