package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpNilError(t *testing.T) {
	d := Dump(nil)
	if d.TopMessage != "" || len(d.Chain) != 0 {
		t.Fatalf("expected zero dump for nil error, got %+v", d)
	}
}

func TestDumpFlattensChainAndCode(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeDependency, cause, "saving record")

	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", d.Code)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected wrapped chain, got %v", d.Chain)
	}
}

func TestDumpExtractsPgconnError(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "idx_users_email",
		TableName:      "users",
		ColumnName:     "email",
		Detail:         "Key (email)=(a@b.c) already exists.",
		Message:        "duplicate key value violates unique constraint",
	}
	err := Wrap(CodeConflict, fmt.Errorf("creating user: %w", pgErr), "insert failed")

	d := Dump(err)
	if d.PGCode != "23505" {
		t.Fatalf("expected pg code 23505, got %q", d.PGCode)
	}
	if d.PGConstraint != "idx_users_email" {
		t.Fatalf("unexpected constraint %q", d.PGConstraint)
	}
	if d.PGTable != "users" {
		t.Fatalf("unexpected table %q", d.PGTable)
	}
	if d.PGColumn != "email" {
		t.Fatalf("unexpected column %q", d.PGColumn)
	}
	if d.PGDetail == "" || d.PGMessage == "" {
		t.Fatalf("expected detail and message populated, got %+v", d)
	}
}

func TestDumpExtractsPqError(t *testing.T) {
	pqErr := &pq.Error{
		Code:       "23502",
		Constraint: "subscriptions_user_id_fkey",
		Table:      "subscriptions",
		Column:     "user_id",
		Detail:     "Failing row contains (null).",
		Message:    "null value in column violates not-null constraint",
	}
	err := fmt.Errorf("upserting subscription: %w", pqErr)

	d := Dump(err)
	if d.PGCode != "23502" {
		t.Fatalf("expected pg code 23502, got %q", d.PGCode)
	}
	if d.PGColumn != "user_id" {
		t.Fatalf("unexpected column %q", d.PGColumn)
	}
	if d.PGConstraint != "subscriptions_user_id_fkey" {
		t.Fatalf("unexpected constraint %q", d.PGConstraint)
	}
}
