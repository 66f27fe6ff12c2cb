package user

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, u User) error {
	const q = `
	INSERT INTO users (user_id, name, email, role, password_hash, created_at, updated_at)
	VALUES (:user_id, :name, :email, :role, :password_hash, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, u); err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (User, error) {
	const q = `SELECT * FROM users WHERE user_id = $1`

	var u User
	if err := sqlx.GetContext(ctx, db, &u, q, id); err != nil {
		return User{}, fmt.Errorf("selecting user[%s]: %w", id, err)
	}
	return u, nil
}

func FetchByEmail(ctx context.Context, db sqlx.ExtContext, email string) (User, error) {
	const q = `SELECT * FROM users WHERE email = $1`

	var u User
	if err := sqlx.GetContext(ctx, db, &u, q, email); err != nil {
		return User{}, fmt.Errorf("selecting user by email: %w", err)
	}
	return u, nil
}
