package platform

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23505"}
	if !IsUniqueViolation(err) {
		t.Error("expected unique violation to be recognized")
	}
	if IsForeignKeyViolation(err) || IsCheckViolation(err) {
		t.Error("unique violation misclassified as another kind")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23503"}
	if !IsForeignKeyViolation(err) {
		t.Error("expected foreign key violation to be recognized")
	}
}

func TestIsCheckViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23514"}
	if !IsCheckViolation(err) {
		t.Error("expected check violation to be recognized")
	}
}

func TestPgErr_WrappedAndUnrelated(t *testing.T) {
	wrapped := fmt.Errorf("insert failed: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(wrapped) {
		t.Error("expected wrapped PgError to still be classified")
	}

	if IsUniqueViolation(errors.New("plain error")) {
		t.Error("plain error should not classify as a unique violation")
	}
	if IsUniqueViolation(nil) {
		t.Error("nil error should not classify as a unique violation")
	}
}
