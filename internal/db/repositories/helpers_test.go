package repositories

import (
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var errDB = errors.New("db error")

// errUnique and errForeignKey mimic the driver errors Postgres raises on constraint violations.
var (
	errUnique     = &pq.Error{Code: pgUniqueViolation, Message: "duplicate key value"}
	errForeignKey = &pq.Error{Code: pgForeignKeyViolation, Message: "violates foreign key constraint"}
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }
