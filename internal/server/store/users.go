package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUserExists is returned by RegisterUser when email is already known.
var ErrUserExists = errors.New("user already registered")

type userRow struct {
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}

// RegisterUser records a new datasite owner. Returns ErrUserExists if
// email was already registered, per spec section 6's /auth/register
// semantics (bootstrapping a datasite root is a one-time operation).
func (s *Store) RegisterUser(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (email) VALUES (?)`, email)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return ErrUserExists
		}
		return fmt.Errorf("register user %s: %w", email, err)
	}
	return nil
}

// UserExists reports whether email has already registered a datasite.
func (s *Store) UserExists(ctx context.Context, email string) (bool, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT email, created_at FROM users WHERE email = ?`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup user %s: %w", email, err)
	}
	return true, nil
}

// ListUsers returns every registered datasite owner.
func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	var emails []string
	if err := s.db.SelectContext(ctx, &emails, `SELECT email FROM users ORDER BY email`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return emails, nil
}

// isUniqueConstraintErr reports whether err came from violating a UNIQUE
// constraint. Checked by message rather than driver error type since the
// store builds against either mattn/go-sqlite3 (cgo) or ncruces/go-sqlite3
// (default) depending on build tags.
func isUniqueConstraintErr(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
