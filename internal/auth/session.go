package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSessionNotFound is returned when a session token has no matching row,
// or the matching row has expired.
var ErrSessionNotFound = errors.New("session not found or expired")

// Session is a resolved, still-valid session record.
type Session struct {
	UserID         uuid.UUID
	CreatedAt      time.Time
	LastActivity   time.Time
	AbsoluteExpiry time.Time
}

// SessionStore is a server-side session store backed by Postgres. Unlike a
// stateless signed token, this supports true revocation — logout,
// password change, and role change all take effect immediately for every
// outstanding session of the affected user, which a self-verifying JWT
// cannot offer.
type SessionStore struct {
	pool       *pgxpool.Pool
	idleWindow time.Duration
	absoluteTTL time.Duration
}

// NewSessionStore creates a SessionStore. idleWindow is the inactivity
// timeout (sliding); absoluteTTL is the hard cap on session lifetime
// regardless of activity.
func NewSessionStore(pool *pgxpool.Pool, idleWindow, absoluteTTL time.Duration) *SessionStore {
	return &SessionStore{pool: pool, idleWindow: idleWindow, absoluteTTL: absoluteTTL}
}

// hashToken returns the SHA-256 hex digest of a raw session token. Only the
// hash is ever persisted, so a leaked database dump does not yield usable
// session tokens.
func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Create mints a new session for userID and persists it. The raw token
// (never the hash) is returned for the caller to set as a cookie.
func (s *SessionStore) Create(ctx context.Context, userID uuid.UUID, ip *netip.Addr, userAgent string) (string, error) {
	raw, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	var ipStr *string
	if ip != nil {
		v := ip.String()
		ipStr = &v
	}
	var ua *string
	if userAgent != "" {
		ua = &userAgent
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (token_hash, user_id, absolute_expiry, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5)`,
		hashToken(raw), userID, time.Now().UTC().Add(s.absoluteTTL), ipStr, ua)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	return raw, nil
}

// Resolve validates a raw session token, enforcing both the idle window and
// the absolute expiry. On success it slides the idle window forward by
// bumping last_activity.
func (s *SessionStore) Resolve(ctx context.Context, raw string) (*Session, error) {
	hash := hashToken(raw)

	var sess Session
	var lastActivity time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, created_at, last_activity, absolute_expiry
		FROM sessions WHERE token_hash = $1`, hash,
	).Scan(&sess.UserID, &sess.CreatedAt, &lastActivity, &sess.AbsoluteExpiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving session: %w", err)
	}
	sess.LastActivity = lastActivity

	now := time.Now().UTC()
	if now.After(sess.AbsoluteExpiry) {
		_ = s.Invalidate(ctx, raw)
		return nil, ErrSessionNotFound
	}
	if now.Sub(lastActivity) > s.idleWindow {
		_ = s.Invalidate(ctx, raw)
		return nil, ErrSessionNotFound
	}

	if _, err := s.pool.Exec(ctx, `UPDATE sessions SET last_activity = $1 WHERE token_hash = $2`, now, hash); err != nil {
		return nil, fmt.Errorf("sliding session activity: %w", err)
	}
	sess.LastActivity = now

	return &sess, nil
}

// Invalidate deletes a single session by its raw token (logout).
func (s *SessionStore) Invalidate(ctx context.Context, raw string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, hashToken(raw))
	return err
}

// InvalidateAllForUser deletes every session belonging to userID. Called on
// password change, role change, and 2FA enable/disable so that a stolen
// session cannot survive a security-relevant account change.
func (s *SessionStore) InvalidateAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func randomToken() (string, error) {
	b := make([]byte, 16) // 128 bits
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// constantTimeEqual compares two strings without leaking timing information.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
