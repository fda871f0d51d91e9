package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/parkwise/reservation-api/internal/domain"
)

const userColumns = `id, username, password_hash, is_admin, is_active, created_at`

type UserRepository struct {
	conn
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{conn: conn{db: db}}
}

func (r *UserRepository) CreateUserIfAbsent(ctx context.Context, user domain.User) (bool, error) {
	const stmt = `
INSERT INTO users (id, username, password_hash, is_admin, is_active, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (username) DO NOTHING`

	res, err := r.exec(ctx, stmt,
		uuid.NewString(),
		user.Username,
		user.PasswordHash,
		user.IsAdmin,
		user.IsActive,
		toMicros(user.CreatedAt),
	)
	if err != nil {
		return false, storeError("create user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeError("create user", err)
	}
	return n == 1, nil
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) getUser(ctx context.Context, query, arg string) (domain.User, error) {
	var (
		u         domain.User
		createdAt int64
	)
	err := r.queryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.IsActive, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, storeError("get user", err)
	}
	u.CreatedAt = fromMicros(createdAt)
	return u, nil
}
