package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func TestTOTPManager_BeginEnrollment(t *testing.T) {
	m := NewTOTPManager(nil, "TraceTrack")

	secret, url, err := m.BeginEnrollment("dispatcher1")
	if err != nil {
		t.Fatalf("BeginEnrollment() error = %v", err)
	}
	if secret == "" {
		t.Error("expected a non-empty secret")
	}
	if !strings.Contains(url, "TraceTrack") || !strings.Contains(url, "dispatcher1") {
		t.Errorf("otpauth URL = %q, want it to reference issuer and account name", url)
	}
}

func TestTOTPManager_ConfirmEnrollment_InvalidCode(t *testing.T) {
	// A nil pool is safe here: an invalid code is rejected before any query runs.
	m := NewTOTPManager(nil, "TraceTrack")

	err := m.ConfirmEnrollment(context.Background(), uuid.New(), "JBSWY3DPEHPK3PXP", "000000")
	if err == nil {
		t.Fatal("expected an error for a wrong verification code")
	}
}

func TestTOTPManager_Disable_InvalidPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	m := NewTOTPManager(nil, "TraceTrack")
	err = m.Disable(context.Background(), uuid.New(), hash, "wrong-password")
	if err == nil {
		t.Fatal("expected an error for a wrong password")
	}
}

func TestTOTPManager_Disable_CorrectPasswordMatchesHash(t *testing.T) {
	password := "correct-horse-battery-staple"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		t.Fatalf("sanity check: hash should match password: %v", err)
	}
	// The remainder of Disable (Exec against a nil pool) cannot be exercised
	// without a real connection; that path is covered by integration testing.
}
