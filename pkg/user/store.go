package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tracetrack/tracetrack/internal/platform"
	"github.com/tracetrack/tracetrack/internal/tterr"
)

// Store provides database operations for user accounts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a user Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts a new user account with an already-hashed password.
func (s *Store) Create(ctx context.Context, username, email, passwordHash, role string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, username_lower, email, email_lower, password_hash, role)
		VALUES ($1, lower($1), $2, lower($2), $3, $4)
		RETURNING id, username, email, role, totp_enabled, created_at`,
		username, email, passwordHash, role,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.TOTPEnabled, &u.CreatedAt)
	if platform.IsUniqueViolation(err) {
		return User{}, tterr.Conflict("a user with that username or email already exists")
	}
	if err != nil {
		return User{}, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// Get fetches a user by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, email, role, totp_enabled, created_at
		FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.TOTPEnabled, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, tterr.NotFound("user not found")
	}
	if err != nil {
		return User{}, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// List returns all user accounts ordered by username.
func (s *Store) List(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, email, role, totp_enabled, created_at
		FROM users ORDER BY username_lower`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	items := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.TOTPEnabled, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return items, nil
}

// UpdateRole changes id's role.
func (s *Store) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET role = $1, updated_at = now() WHERE id = $2`, role, id)
	if err != nil {
		return fmt.Errorf("updating role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tterr.NotFound("user not found")
	}
	return nil
}

// GetPasswordHash fetches id's current password hash, for reverification
// before a sensitive self-service change.
func (s *Store) GetPasswordHash(ctx context.Context, id uuid.UUID) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1`, id).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", tterr.NotFound("user not found")
	}
	if err != nil {
		return "", fmt.Errorf("getting password hash: %w", err)
	}
	return hash, nil
}

// UpdatePasswordHash replaces id's password hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tterr.NotFound("user not found")
	}
	return nil
}

// HasScans reports whether id has ever recorded a scan, used to protect
// scan history from being orphaned by a cascading user delete.
func (s *Store) HasScans(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT exists(SELECT 1 FROM scans WHERE user_id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking scan history: %w", err)
	}
	return exists, nil
}

// Delete removes a user account. Callers should check HasScans first —
// the scans.user_id foreign key cascades, which would silently erase scan
// history for an account that has ever been used operationally.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tterr.NotFound("user not found")
	}
	return nil
}
