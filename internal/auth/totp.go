package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/tracetrack/tracetrack/internal/tterr"
)

// TOTPManager implements RFC 6238 two-factor enrollment and verification.
// Any account may enroll; once enabled, login requires a code. A ±1 time-step window is
// accepted to tolerate clock drift between server and authenticator app.
type TOTPManager struct {
	pool   *pgxpool.Pool
	issuer string
}

// NewTOTPManager creates a TOTPManager.
func NewTOTPManager(pool *pgxpool.Pool, issuer string) *TOTPManager {
	return &TOTPManager{pool: pool, issuer: issuer}
}

// BeginEnrollment generates a new TOTP secret for username and returns the
// otpauth:// URI for QR rendering. The secret is not persisted until
// ConfirmEnrollment verifies the user can produce a valid code with it.
func (m *TOTPManager) BeginEnrollment(username string) (secret string, otpauthURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: username,
	})
	if err != nil {
		return "", "", fmt.Errorf("generating TOTP secret: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// ConfirmEnrollment verifies code against secret and, on success, persists
// the secret and marks the account as 2FA-enabled. Any outstanding sessions
// are invalidated by the caller so the change takes effect immediately.
func (m *TOTPManager) ConfirmEnrollment(ctx context.Context, userID uuid.UUID, secret, code string) error {
	if !totp.Validate(code, secret) {
		return tterr.Validation("invalid verification code")
	}

	_, err := m.pool.Exec(ctx, `
		UPDATE users SET totp_secret = $1, totp_enabled = true, updated_at = now()
		WHERE id = $2`, secret, userID)
	if err != nil {
		return fmt.Errorf("persisting TOTP enrollment: %w", err)
	}
	return nil
}

// Verify checks code against the stored secret for userID, allowing a ±1
// step (30s) window. The 5-minute code-entry window from spec §4.2 is
// enforced by the caller discarding the login challenge after that long.
func (m *TOTPManager) Verify(ctx context.Context, userID uuid.UUID, code string) error {
	var secret *string
	var enabled bool
	err := m.pool.QueryRow(ctx, `SELECT totp_secret, totp_enabled FROM users WHERE id = $1`, userID).Scan(&secret, &enabled)
	if err != nil {
		return fmt.Errorf("loading TOTP secret: %w", err)
	}
	if !enabled || secret == nil {
		return tterr.Conflict("two-factor authentication is not enabled for this account")
	}

	valid, err := totp.ValidateCustom(code, *secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return fmt.Errorf("validating TOTP code: %w", err)
	}
	if !valid {
		return tterr.Auth("invalid two-factor code")
	}
	return nil
}

// Disable requires the caller's current password before clearing 2FA, since
// turning off the second factor is a security-sensitive action.
func (m *TOTPManager) Disable(ctx context.Context, userID uuid.UUID, passwordHash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return tterr.Auth("invalid password")
	}

	_, err := m.pool.Exec(ctx, `
		UPDATE users SET totp_secret = NULL, totp_enabled = false, updated_at = now()
		WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("disabling TOTP: %w", err)
	}
	return nil
}
