package memory

import (
	"context"
	"testing"

	"github.com/sheikh-saqib/store-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/store-credit-ledger/internal/models"
	"github.com/sheikh-saqib/store-credit-ledger/internal/storage/storagetest"
	"github.com/shopspring/decimal"
)

func TestMemoryLedgerStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) interfaces.LedgerStore {
		return NewMemoryLedgerStore()
	})
}

func TestListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLedgerStore()
	c := models.Client{Name: "Amine", Phone: "0556000000", Credit: decimal.Zero}
	if err := s.InsertClient(ctx, &c); err != nil {
		t.Fatalf("insert: %v", err)
	}

	clients, err := s.ListClients(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	clients[0].Name = "changed"

	got, err := s.GetClient(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Amine" {
		t.Fatalf("store state leaked through list result: %s", got.Name)
	}
}

func TestWithinTxHonoursCancelledContext(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Fatalf("expected cancelled context to stop the transaction, err=%v called=%v", err, called)
	}
}
