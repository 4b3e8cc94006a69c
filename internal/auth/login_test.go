package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "" {
		t.Fatal("expected a non-empty hash")
	}
	if hash == "correct-horse-battery-staple" {
		t.Fatal("hash must not equal the plaintext password")
	}
}

func TestVerifyPassword_LockedAccount(t *testing.T) {
	// A nil pool is safe here: the lockout check short-circuits before any
	// query runs.
	a := NewAuthenticator(nil, 5, 15*time.Minute)

	future := time.Now().UTC().Add(10 * time.Minute)
	u := &UserRecord{ID: uuid.New(), LockoutUntil: &future}

	err := a.VerifyPassword(context.Background(), u, "whatever")
	if err == nil {
		t.Fatal("expected locked account to be rejected")
	}
}
