package repository

import (
	"errors"
	"fmt"
	"testing"

	"raccordement_backend/platform/apperr"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDeleteWithPaymentsIsConflict(t *testing.T) {
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "rac_payments_request_id_fkey"}
	if err := deleteError(fmt.Errorf("exec: %w", fk)); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	other := errors.New("connection reset")
	err := deleteError(other)
	if apperr.Is(err, apperr.KindConflict) || !errors.Is(err, other) {
		t.Fatalf("unexpected mapping %v", err)
	}
}
