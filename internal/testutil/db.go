// Package testutil holds in-memory repositories and database helpers shared
// by service and handler tests. Only _test.go files may import it, which keeps
// sqlmock out of the server binary.
package testutil

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// NewMockDB returns a sqlx handle backed by sqlmock. Expectations are
// checked when the test ends.
func NewMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("sql expectations: %v", err)
		}
		raw.Close()
	})
	return sqlx.NewDb(raw, "postgres"), mock
}

// UniqueViolation mimics the error lib/pq returns for SQLSTATE 23505.
func UniqueViolation(constraint string) error {
	return &pq.Error{Code: "23505", Constraint: constraint, Message: "duplicate key value violates unique constraint"}
}
