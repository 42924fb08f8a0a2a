package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"
	"github.com/sheikh-saqib/store-credit-ledger/internal/storage/migrations"
	"github.com/sheikh-saqib/store-credit-ledger/internal/storage/sqlstore"
)

const DriverName = "postgres"

// Dialect binds with $n and reports unique_violation (23505).
var Dialect = sqlstore.Dialect{
	Name:              "postgres",
	Placeholder:       func(n int) string { return "$" + strconv.Itoa(n) },
	IsUniqueViolation: isUniqueViolation,
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}

func NewPostgresLedgerStore(db *sql.DB) *sqlstore.Store {
	return sqlstore.New(db, Dialect)
}

func Open(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresLedgerStore(db), nil
}

// Migrate applies the schema migrations using a dedicated connection pool.
func Migrate(dsn string) error {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	return migrations.Up(db, Dialect.Name)
}
