package infra

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)) {
		t.Fatalf("wrapped ErrNoRows not detected")
	}
	if IsNoRows(errors.New("other")) {
		t.Fatalf("unrelated error matched")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("update: %w", &pgconn.PgError{Code: "23505", ConstraintName: "generation_jobs_success_hash_key"})
	if !IsUniqueViolation(err, "") {
		t.Fatalf("unique violation not detected")
	}
	if !IsUniqueViolation(err, "generation_jobs_success_hash_key") {
		t.Fatalf("named constraint not matched")
	}
	if IsUniqueViolation(err, "other_key") {
		t.Fatalf("different constraint matched")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatalf("foreign key violation matched")
	}
}
