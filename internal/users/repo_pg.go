package users

import (
	"context"
	"database/sql"
	"errors"
)

const userColumns = `id, email, full_name, created_at, updated_at`

// PGRepo persists the directory in the users table shared with the worker.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Upsert(ctx context.Context, user User) error {
	_, err := r.DB.ExecContext(ctx, `
INSERT INTO users (id, email, full_name, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), now(), now())
ON CONFLICT (id) DO UPDATE
SET email = EXCLUDED.email,
    full_name = COALESCE(EXCLUDED.full_name, users.full_name),
    updated_at = now()`, user.ID, user.Email, user.FullName)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func scanUser(row *sql.Row) (User, error) {
	var (
		u        User
		fullName sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &fullName, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.FullName = fullName.String
	return u, nil
}
