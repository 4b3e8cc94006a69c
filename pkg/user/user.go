// Package user implements account management (admin-provisioned accounts,
// role changes, and self-service password/2FA changes).
package user

import (
	"time"

	"github.com/google/uuid"
)

// User is the public projection of a users row — never includes
// password_hash or totp_secret.
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	TOTPEnabled bool      `json:"totp_enabled"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateRequest is the JSON body for POST /users (admin-only provisioning).
type CreateRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=12"`
	Role     string `json:"role" validate:"required,oneof=admin biller dispatcher"`
}

// UpdateRoleRequest is the JSON body for PUT /users/{id}/role.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin biller dispatcher"`
}

// ChangePasswordRequest is the JSON body for the self-service password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=12"`
}

// EnrollTOTPResponse returns the provisioning secret and otpauth URL for a
// client to render as a QR code.
type EnrollTOTPResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// ConfirmTOTPRequest confirms a TOTP enrollment with a live code.
type ConfirmTOTPRequest struct {
	Secret string `json:"secret" validate:"required"`
	Code   string `json:"code" validate:"required,len=6,numeric"`
}

// DisableTOTPRequest disables 2FA, requiring password reverification.
type DisableTOTPRequest struct {
	Password string `json:"password" validate:"required"`
}
