package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tracetrack/tracetrack/internal/auth"
	"github.com/tracetrack/tracetrack/internal/tterr"
)

// Service implements account management: admin-provisioned accounts, role
// changes, and self-service password/2FA changes. Every security-relevant
// change invalidates the affected user's outstanding sessions.
type Service struct {
	store    *Store
	sessions *auth.SessionStore
	totp     *auth.TOTPManager
}

// NewService creates a user Service.
func NewService(store *Store, sessions *auth.SessionStore, totp *auth.TOTPManager) *Service {
	return &Service{store: store, sessions: sessions, totp: totp}
}

// Create provisions a new account with an admin-assigned role.
func (s *Service) Create(ctx context.Context, req CreateRequest) (User, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}
	return s.store.Create(ctx, req.Username, req.Email, hash, req.Role)
}

// Get fetches a user by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	return s.store.Get(ctx, id)
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.List(ctx)
}

// UpdateRole changes id's role and invalidates its sessions, since a role
// change must take effect immediately rather than waiting for the session
// to expire or be reissued.
func (s *Service) UpdateRole(ctx context.Context, id uuid.UUID, role string) (User, error) {
	if err := s.store.UpdateRole(ctx, id, role); err != nil {
		return User{}, err
	}
	if err := s.sessions.InvalidateAllForUser(ctx, id); err != nil {
		return User{}, fmt.Errorf("invalidating sessions after role change: %w", err)
	}
	return s.store.Get(ctx, id)
}

// ChangePassword verifies the caller's current password, then replaces it
// and invalidates every outstanding session, so re-authentication is
// required afterward.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, req ChangePasswordRequest) error {
	hash, err := s.store.GetPasswordHash(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.CurrentPassword)); err != nil {
		return tterr.Auth("current password is incorrect")
	}

	newHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hashing new password: %w", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, id, newHash); err != nil {
		return err
	}
	return s.sessions.InvalidateAllForUser(ctx, id)
}

// BeginTOTPEnrollment starts a 2FA enrollment for id.
func (s *Service) BeginTOTPEnrollment(ctx context.Context, id uuid.UUID, username string) (EnrollTOTPResponse, error) {
	secret, url, err := s.totp.BeginEnrollment(username)
	if err != nil {
		return EnrollTOTPResponse{}, err
	}
	return EnrollTOTPResponse{Secret: secret, OTPAuthURL: url}, nil
}

// ConfirmTOTPEnrollment finishes 2FA enrollment and invalidates all of the
// user's sessions, since enabling 2FA changes what a session is allowed to assert.
func (s *Service) ConfirmTOTPEnrollment(ctx context.Context, id uuid.UUID, req ConfirmTOTPRequest) error {
	if err := s.totp.ConfirmEnrollment(ctx, id, req.Secret, req.Code); err != nil {
		return err
	}
	return s.sessions.InvalidateAllForUser(ctx, id)
}

// DisableTOTP turns off 2FA for id after reverifying the password.
func (s *Service) DisableTOTP(ctx context.Context, id uuid.UUID, req DisableTOTPRequest) error {
	hash, err := s.store.GetPasswordHash(ctx, id)
	if err != nil {
		return err
	}
	if err := s.totp.Disable(ctx, id, hash, req.Password); err != nil {
		return err
	}
	return s.sessions.InvalidateAllForUser(ctx, id)
}

// Delete removes an account, refusing to do so if it has recorded scans —
// the scans.user_id foreign key cascades on delete, which would silently
// erase operational history.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	hasScans, err := s.store.HasScans(ctx, id)
	if err != nil {
		return err
	}
	if hasScans {
		return tterr.Conflict("user has recorded scan history and cannot be deleted")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	return s.sessions.InvalidateAllForUser(ctx, id)
}
