package postgres

import (
	"context"

	"github.com/MrWong99/medshadow/pkg/store"
)

// CreateUser implements [store.UserStore].
func (s *Store) CreateUser(ctx context.Context, email string) (store.User, error) {
	const q = `
		INSERT INTO users (email)
		VALUES ($1)
		RETURNING id, email, created_at`

	var u store.User
	if err := s.pool.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
		return store.User{}, wrapErr("create user", err)
	}
	return u, nil
}

// UserByEmail implements [store.UserStore].
func (s *Store) UserByEmail(ctx context.Context, email string) (store.User, error) {
	const q = `SELECT id, email, created_at FROM users WHERE email = $1`

	var u store.User
	if err := s.pool.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
		return store.User{}, wrapErr("user by email", err)
	}
	return u, nil
}
