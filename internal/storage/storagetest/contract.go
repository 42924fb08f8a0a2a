// Package storagetest holds the behaviour every interfaces.LedgerStore must share.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sheikh-saqib/store-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/store-credit-ledger/internal/models"
	"github.com/sheikh-saqib/store-credit-ledger/internal/storage"
	"github.com/shopspring/decimal"
)

// Factory returns an empty, migrated store for one subtest.
type Factory func(t *testing.T) interfaces.LedgerStore

// Run exercises store against the LedgerStore contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("ClientLifecycle", func(t *testing.T) { testClientLifecycle(t, newStore(t)) })
	t.Run("DuplicatePhone", func(t *testing.T) { testDuplicatePhone(t, newStore(t)) })
	t.Run("CreditsAndPayments", func(t *testing.T) { testCreditsAndPayments(t, newStore(t)) })
	t.Run("DeleteCascades", func(t *testing.T) { testDeleteCascades(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("Search", func(t *testing.T) { testSearch(t, newStore(t)) })
}

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func insertClient(t *testing.T, s interfaces.LedgerStore, name, phone string) models.Client {
	t.Helper()
	c := models.Client{Name: name, Phone: phone, Credit: decimal.Zero, CreatedAt: day}
	if err := s.InsertClient(context.Background(), &c); err != nil {
		t.Fatalf("insert client %s: %v", name, err)
	}
	if c.ID == 0 {
		t.Fatalf("expected generated id for %s", name)
	}
	return c
}

func insertCredit(t *testing.T, s interfaces.LedgerStore, clientID int64, amount string) models.Credit {
	t.Helper()
	c := models.Credit{
		ClientID:   clientID,
		CreditDate: day,
		Amount:     dec(amount),
		Versement:  decimal.Zero,
		Reste:      dec(amount),
		Status:     models.CreditNotPaid,
	}
	if err := s.InsertCredit(context.Background(), &c); err != nil {
		t.Fatalf("insert credit: %v", err)
	}
	return c
}

func testClientLifecycle(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	a := insertClient(t, s, "Amine", "0556000000")
	b := insertClient(t, s, "Karim", "0661000000")
	if b.ID <= a.ID {
		t.Fatalf("expected increasing ids, got %d then %d", a.ID, b.ID)
	}

	if err := s.UpdateClientCredit(ctx, a.ID, dec("150.5")); err != nil {
		t.Fatalf("update credit: %v", err)
	}
	got, err := s.GetClient(ctx, a.ID)
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if got.Name != "Amine" || got.Phone != "0556000000" || !got.Credit.Equal(dec("150.5")) {
		t.Fatalf("unexpected client %+v", got)
	}

	clients, err := s.ListClients(ctx)
	if err != nil {
		t.Fatalf("list clients: %v", err)
	}
	if len(clients) != 2 || clients[0].ID != a.ID || clients[1].ID != b.ID {
		t.Fatalf("expected clients ordered by id, got %+v", clients)
	}

	if _, err := s.GetClient(ctx, 9999); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
	if err := s.UpdateClientCredit(ctx, 9999, dec("1")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update got %v", err)
	}
}

func testDuplicatePhone(t *testing.T, s interfaces.LedgerStore) {
	insertClient(t, s, "Amine", "0556000000")
	dup := models.Client{Name: "Other", Phone: "0556000000", Credit: decimal.Zero}
	if err := s.InsertClient(context.Background(), &dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate got %v", err)
	}
}

func testCreditsAndPayments(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	c := insertClient(t, s, "Amine", "0556000000")
	first := insertCredit(t, s, c.ID, "1000")
	second := insertCredit(t, s, c.ID, "20.75")

	got, err := s.GetCredit(ctx, first.ID)
	if err != nil {
		t.Fatalf("get credit: %v", err)
	}
	if got.ClientID != c.ID || !got.Amount.Equal(dec("1000")) || !got.Reste.Equal(dec("1000")) ||
		got.Status != models.CreditNotPaid || !got.CreditDate.Equal(day) {
		t.Fatalf("unexpected credit %+v", got)
	}

	got.Versement = dec("1000")
	got.Reste = decimal.Zero
	got.Status = models.CreditPaid
	if err := s.UpdateCredit(ctx, got); err != nil {
		t.Fatalf("update credit: %v", err)
	}
	got, err = s.GetCredit(ctx, first.ID)
	if err != nil {
		t.Fatalf("get credit: %v", err)
	}
	if !got.IsPaid() || !got.Reste.IsZero() || !got.Versement.Equal(dec("1000")) {
		t.Fatalf("update not persisted %+v", got)
	}
	if err := s.UpdateCredit(ctx, models.Credit{ID: 9999}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}

	for _, amount := range []string{"400", "600"} {
		p := models.PaymentLogEntry{CreditID: first.ID, PaymentDate: day.Add(time.Hour), Amount: dec(amount)}
		if err := s.InsertPayment(ctx, &p); err != nil {
			t.Fatalf("insert payment: %v", err)
		}
	}
	payments, err := s.ListPayments(ctx, first.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 2 || !payments[0].Amount.Equal(dec("400")) || !payments[1].PaymentDate.Equal(day.Add(time.Hour)) {
		t.Fatalf("unexpected payments %+v", payments)
	}

	credits, err := s.ListCredits(ctx, c.ID)
	if err != nil {
		t.Fatalf("list credits: %v", err)
	}
	if len(credits) != 2 || credits[0].ID != first.ID || credits[1].ID != second.ID {
		t.Fatalf("expected credits ordered by id, got %+v", credits)
	}
	if !credits[1].Amount.Equal(dec("20.75")) {
		t.Fatalf("expected 20.75 got %s", credits[1].Amount)
	}
}

func testDeleteCascades(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	a := insertClient(t, s, "Amine", "0556000000")
	b := insertClient(t, s, "Karim", "0661000000")
	gone := insertCredit(t, s, a.ID, "100")
	kept := insertCredit(t, s, b.ID, "100")
	p := models.PaymentLogEntry{CreditID: gone.ID, PaymentDate: day, Amount: dec("10")}
	if err := s.InsertPayment(ctx, &p); err != nil {
		t.Fatalf("insert payment: %v", err)
	}

	if err := s.DeleteClient(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetClient(ctx, a.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected client gone, got %v", err)
	}
	if _, err := s.GetCredit(ctx, gone.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected credit gone, got %v", err)
	}
	payments, err := s.ListPayments(ctx, gone.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 0 {
		t.Fatalf("expected payments gone, got %d", len(payments))
	}
	if _, err := s.GetCredit(ctx, kept.ID); err != nil {
		t.Fatalf("other client's credit must survive: %v", err)
	}
	if err := s.DeleteClient(ctx, a.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete got %v", err)
	}
}

func testTxRollback(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	c := insertClient(t, s, "Amine", "0556000000")
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		if err := tx.UpdateClientCredit(ctx, c.ID, dec("500")); err != nil {
			return err
		}
		credit := models.Credit{ClientID: c.ID, CreditDate: day, Amount: dec("500"), Versement: decimal.Zero, Reste: dec("500"), Status: models.CreditNotPaid}
		if err := tx.InsertCredit(ctx, &credit); err != nil {
			return err
		}
		// writes are visible inside the transaction
		inside, err := tx.GetClient(ctx, c.ID)
		if err != nil {
			return err
		}
		if !inside.Credit.Equal(dec("500")) {
			t.Errorf("expected 500 inside tx got %s", inside.Credit)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom got %v", err)
	}

	got, err := s.GetClient(ctx, c.ID)
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if !got.Credit.IsZero() {
		t.Fatalf("expected rollback of client credit, got %s", got.Credit)
	}
	credits, err := s.ListCredits(ctx, c.ID)
	if err != nil {
		t.Fatalf("list credits: %v", err)
	}
	if len(credits) != 0 {
		t.Fatalf("expected rollback of credit insert, got %d credits", len(credits))
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = s.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
			if err := tx.UpdateClientCredit(ctx, c.ID, dec("42")); err != nil {
				return err
			}
			panic("boom")
		})
	}()
	got, err = s.GetClient(ctx, c.ID)
	if err != nil {
		t.Fatalf("get client after panic: %v", err)
	}
	if !got.Credit.IsZero() {
		t.Fatalf("expected rollback after panic, got %s", got.Credit)
	}

	if err := s.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		return tx.UpdateClientCredit(ctx, c.ID, dec("7"))
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, err = s.GetClient(ctx, c.ID)
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if !got.Credit.Equal(dec("7")) {
		t.Fatalf("expected committed 7 got %s", got.Credit)
	}
}

func testSearch(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	amine := insertClient(t, s, "Amine", "0556000000")
	insertClient(t, s, "karim_50%", "0661000000")
	paid := insertCredit(t, s, amine.ID, "30")
	insertCredit(t, s, amine.ID, "40")
	paid.Versement = dec("30")
	paid.Reste = decimal.Zero
	paid.Status = models.CreditPaid
	if err := s.UpdateCredit(ctx, paid); err != nil {
		t.Fatalf("update: %v", err)
	}

	cases := []struct {
		field   models.SearchField
		keyword string
		want    int
	}{
		{models.FieldName, "AMI", 1},
		{models.FieldName, "m", 2},
		{models.FieldName, "_50%", 1},
		{models.FieldName, "%", 1}, // wildcards are literal
		{models.FieldName, "zzz", 0},
		{models.FieldPhone, "0661", 1},
		{models.FieldPhone, "0", 2},
	}
	for _, tc := range cases {
		clients, err := s.SearchClients(ctx, tc.field, tc.keyword)
		if err != nil {
			t.Fatalf("search %s %q: %v", tc.field, tc.keyword, err)
		}
		if len(clients) != tc.want {
			t.Fatalf("search %s %q: expected %d got %d", tc.field, tc.keyword, tc.want, len(clients))
		}
	}

	credits, err := s.SearchCredits(ctx, models.FieldPaid, " Paid ")
	if err != nil {
		t.Fatalf("search paid: %v", err)
	}
	if len(credits) != 1 || credits[0].ID != paid.ID {
		t.Fatalf("expected exact paid match, got %+v", credits)
	}
	credits, err = s.SearchCredits(ctx, models.FieldPaid, "pai")
	if err != nil {
		t.Fatalf("search paid: %v", err)
	}
	if len(credits) != 0 {
		t.Fatalf("paid must not match on substring, got %d", len(credits))
	}
	credits, err = s.SearchCredits(ctx, models.FieldCreditDate, "2024-01-01")
	if err != nil {
		t.Fatalf("search date: %v", err)
	}
	if len(credits) != 2 {
		t.Fatalf("expected 2 credits by date got %d", len(credits))
	}
	credits, err = s.SearchCredits(ctx, models.FieldVersement, "30")
	if err != nil {
		t.Fatalf("search versement: %v", err)
	}
	if len(credits) != 1 {
		t.Fatalf("expected 1 credit by versement got %d", len(credits))
	}

	if _, err := s.SearchClients(ctx, models.FieldPaid, "x"); err == nil {
		t.Fatalf("expected error for unsupported client field")
	}
}
