// Package auth implements the session, authentication, and RBAC
// components (C2): server-side sessions with idle/absolute expiry,
// password login with lockout, TOTP second-factor, and role checks.
package auth

import (
	"context"

	"github.com/google/uuid"
)

// Roles supported by the RBAC system, per spec §3.
const (
	RoleAdmin      = "admin"
	RoleBiller     = "biller"
	RoleDispatcher = "dispatcher"
)

// ValidRoles lists all known roles.
var ValidRoles = []string{RoleAdmin, RoleBiller, RoleDispatcher}

// IsValidRole reports whether role is a recognised RBAC role.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Identity represents the authenticated caller for the current request.
type Identity struct {
	UserID   uuid.UUID
	Username string
	Role     string
	// TwoFactorVerified is true once the caller has completed the TOTP
	// challenge for a session that requires it (TOTP enabled). A session for
	// which this is false may only reach the 2FA-verification endpoint.
	TwoFactorVerified bool
}

type ctxKey string

const identityKey ctxKey = "auth_identity"

// NewContext stores the identity in the context.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the identity from the context. Returns nil if no
// identity is set.
func FromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(identityKey).(*Identity)
	return v
}
