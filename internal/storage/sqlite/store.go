package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/sheikh-saqib/store-credit-ledger/internal/storage/migrations"
	"github.com/sheikh-saqib/store-credit-ledger/internal/storage/sqlstore"
)

// DriverName is the database/sql driver registered by mattn/go-sqlite3
const DriverName = "sqlite3"

// Dialect binds with '?' and reports UNIQUE constraint failures.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite",
	Placeholder:       func(int) string { return "?" },
	IsUniqueViolation: isUniqueViolation,
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// WithPragmas adds the connection parameters the ledger depends on to dsn:
// foreign keys must be enforced on every connection for cascades to run.
func WithPragmas(dsn string) string {
	params := []string{}
	if !strings.Contains(dsn, "_foreign_keys=") && !strings.Contains(dsn, "_fk=") {
		params = append(params, "_foreign_keys=1")
	}
	if !strings.Contains(dsn, "_busy_timeout=") && !strings.Contains(dsn, "_timeout=") {
		params = append(params, "_busy_timeout=5000")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// NewSQLiteLedgerStore wraps an open sqlite handle.
func NewSQLiteLedgerStore(db *sql.DB) *sqlstore.Store {
	// a single connection serialises writers on the file
	db.SetMaxOpenConns(1)
	return sqlstore.New(db, Dialect)
}

// Open connects to the sqlite database at dsn (a file path or file: URI).
func Open(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	db, err := sql.Open(DriverName, WithPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", dsn, err)
	}
	return NewSQLiteLedgerStore(db), nil
}

// Migrate applies the schema migrations to the database at dsn.
func Migrate(dsn string) error {
	db, err := sql.Open(DriverName, WithPragmas(dsn))
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	return migrations.Up(db, Dialect.Name)
}
