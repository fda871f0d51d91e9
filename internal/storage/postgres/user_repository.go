package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkwise/reservation-api/internal/domain"
)

const userColumns = `id, username, password_hash, is_admin, is_active, created_at`

type UserRepository struct {
	conn
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{conn: conn{pool: pool}}
}

func (r *UserRepository) CreateUserIfAbsent(ctx context.Context, user domain.User) (bool, error) {
	const stmt = `
INSERT INTO users (username, password_hash, is_admin, is_active, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (username) DO NOTHING`

	tag, err := r.exec(ctx, stmt, user.Username, user.PasswordHash, user.IsAdmin, user.IsActive, user.CreatedAt)
	if err != nil {
		return false, storeError("create user", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) getUser(ctx context.Context, query, arg string) (domain.User, error) {
	var u domain.User
	err := r.queryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, storeError("get user", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}
