package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/lib/pq"
	"github.com/sheikh-saqib/store-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/store-credit-ledger/internal/storage/storagetest"
)

// TEST_POSTGRES_DSN points at a disposable database; its tables are truncated.
func setupTestStore(t *testing.T) interfaces.LedgerStore {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	if err := Migrate(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := store.DB().Exec(`TRUNCATE payments_log, credits, clients RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return store
}

func TestPostgresLedgerStoreContract(t *testing.T) {
	storagetest.Run(t, setupTestStore)
}

func TestRebindUsesNumberedPlaceholders(t *testing.T) {
	got := Dialect.Rebind(`UPDATE credits SET versement = ?, reste = ? WHERE id = ?`)
	want := `UPDATE credits SET versement = $1, reste = $2 WHERE id = $3`
	if got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Fatalf("expected 23505 to be a unique violation")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Fatalf("foreign key violation is not a unique violation")
	}
	if isUniqueViolation(errors.New("other")) {
		t.Fatalf("plain error is not a unique violation")
	}
}
