package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/tracetrack/tracetrack/internal/tterr"
)

// ErrAccountLocked is returned when a user's lockout_until is in the future.
var ErrAccountLocked = errors.New("account temporarily locked")

// UserRecord is the subset of the users table login needs.
type UserRecord struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Role         string
	FailedLogins int
	LockoutUntil *time.Time
	TOTPEnabled  bool
}

// Authenticator implements password verification and the lockout state
// machine from spec §4.2: a run of LockoutThreshold consecutive failures
// locks the account for LockoutWindow, and any success resets the counter.
type Authenticator struct {
	pool             *pgxpool.Pool
	lockoutThreshold int
	lockoutWindow    time.Duration
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(pool *pgxpool.Pool, lockoutThreshold int, lockoutWindow time.Duration) *Authenticator {
	return &Authenticator{pool: pool, lockoutThreshold: lockoutThreshold, lockoutWindow: lockoutWindow}
}

// FindByUsername looks up a user by case-insensitive username.
func (a *Authenticator) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	var u UserRecord
	err := a.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, role, failed_logins, lockout_until, totp_enabled
		FROM users WHERE username_lower = lower($1)`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.FailedLogins, &u.LockoutUntil, &u.TOTPEnabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tterr.Auth("invalid username or password")
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	return &u, nil
}

// VerifyPassword checks u's lockout state and password, recording the
// outcome in either case. It returns tterr.Auth for bad credentials and
// ErrAccountLocked (wrapped as tterr.Auth) while locked out.
func (a *Authenticator) VerifyPassword(ctx context.Context, u *UserRecord, password string) error {
	if u.LockoutUntil != nil && time.Now().UTC().Before(*u.LockoutUntil) {
		return &tterr.Error{
			Kind:    tterr.KindAuth,
			Message: "account temporarily locked due to repeated failed logins",
			Cause:   ErrAccountLocked,
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if recErr := a.recordFailure(ctx, u.ID); recErr != nil {
			return fmt.Errorf("recording failed login: %w", recErr)
		}
		return tterr.Auth("invalid username or password")
	}

	if err := a.recordSuccess(ctx, u.ID); err != nil {
		return fmt.Errorf("recording successful login: %w", err)
	}
	return nil
}

func (a *Authenticator) recordFailure(ctx context.Context, userID uuid.UUID) error {
	if _, err := a.pool.Exec(ctx, `
		UPDATE users SET failed_logins = failed_logins + 1, updated_at = now()
		WHERE id = $1`, userID); err != nil {
		return err
	}

	var failedLogins int
	if err := a.pool.QueryRow(ctx, `SELECT failed_logins FROM users WHERE id = $1`, userID).Scan(&failedLogins); err != nil {
		return err
	}

	if failedLogins >= a.lockoutThreshold {
		until := time.Now().UTC().Add(a.lockoutWindow)
		if _, err := a.pool.Exec(ctx, `UPDATE users SET lockout_until = $1 WHERE id = $2`, until, userID); err != nil {
			return err
		}
	}
	return nil
}

func (a *Authenticator) recordSuccess(ctx context.Context, userID uuid.UUID) error {
	_, err := a.pool.Exec(ctx, `
		UPDATE users SET failed_logins = 0, lockout_until = NULL, updated_at = now()
		WHERE id = $1`, userID)
	return err
}

// HashPassword hashes a plaintext password with bcrypt at the default cost.
func HashPassword(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(b), nil
}
