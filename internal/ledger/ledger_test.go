package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sheikh-saqib/store-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/store-credit-ledger/internal/models"
	"github.com/sheikh-saqib/store-credit-ledger/internal/models/events"
	"github.com/sheikh-saqib/store-credit-ledger/internal/storage/memory"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func newTestLedger(t *testing.T, store interfaces.LedgerStore, opts ...Option) *Ledger {
	t.Helper()
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return fixedNow }),
	}
	return NewLedger(store, append(base, opts...)...)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func expectDecimal(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s got %s", what, want, got)
	}
}

func mustClient(t *testing.T, l *Ledger, name, phone string) models.Client {
	t.Helper()
	c, err := l.RegisterClient(context.Background(), name, phone)
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return c
}

func mustCredit(t *testing.T, l *Ledger, clientID int64, amount string) models.Credit {
	t.Helper()
	c, err := l.OpenCredit(context.Background(), clientID, dec(amount), time.Time{})
	if err != nil {
		t.Fatalf("open credit %s: %v", amount, err)
	}
	return c
}

func balanceOf(t *testing.T, l *Ledger, clientID int64) decimal.Decimal {
	t.Helper()
	badge, err := l.ComputeBadge(context.Background(), clientID)
	if err != nil {
		t.Fatalf("badge: %v", err)
	}
	return badge.Credit
}

func TestAmineScenario(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewMemoryLedgerStore())

	amine := mustClient(t, l, "Amine", "0556000000")
	expectDecimal(t, "initial balance", amine.Credit, "0")

	credit, err := l.OpenCredit(ctx, amine.ID, dec("1000"), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("open credit: %v", err)
	}
	expectDecimal(t, "balance after credit", balanceOf(t, l, amine.ID), "1000")
	expectDecimal(t, "credit", credit.Amount, "1000")
	expectDecimal(t, "versement", credit.Versement, "0")
	expectDecimal(t, "reste", credit.Reste, "1000")
	if credit.IsPaid() {
		t.Fatalf("new credit must not be paid")
	}

	credit, err = l.ApplyPayment(ctx, amine.ID, credit.ID, dec("400"))
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	expectDecimal(t, "versement", credit.Versement, "400")
	expectDecimal(t, "reste", credit.Reste, "600")
	if credit.IsPaid() {
		t.Fatalf("credit must not be paid with 600 left")
	}
	expectDecimal(t, "balance after first payment", balanceOf(t, l, amine.ID), "600")

	credit, err = l.ApplyPayment(ctx, amine.ID, credit.ID, dec("600"))
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	expectDecimal(t, "versement", credit.Versement, "1000")
	expectDecimal(t, "reste", credit.Reste, "0")
	if !credit.IsPaid() {
		t.Fatalf("expected credit paid")
	}
	expectDecimal(t, "balance after second payment", balanceOf(t, l, amine.ID), "0")

	payments, err := l.PaymentLog(ctx, credit.ID)
	if err != nil {
		t.Fatalf("payment log: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected 2 payments got %d", len(payments))
	}
	expectDecimal(t, "first logged payment", payments[0].Amount, "400")
	if !payments[1].PaymentDate.Equal(fixedNow) {
		t.Fatalf("expected payment date %v got %v", fixedNow, payments[1].PaymentDate)
	}
}

func TestRegisterClient(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewMemoryLedgerStore())

	if _, err := l.RegisterClient(ctx, "Amine", "0556000000"); err != nil {
		t.Fatalf("register: %v", err)
	}

	var ve *ValidationError
	if _, err := l.RegisterClient(ctx, "Bad", "0123456789"); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError got %v", err)
	}
	if _, err := l.RegisterClient(ctx, "Long", "05560000001"); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for long phone got %v", err)
	}
	if _, err := l.RegisterClient(ctx, "Other", "0556000000"); !errors.Is(err, ErrDuplicatePhone) {
		t.Fatalf("expected ErrDuplicatePhone got %v", err)
	}

	clients, err := l.ListClients(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(clients) != 1 {
		t.Fatalf("expected 1 client got %d", len(clients))
	}
}

func TestOpenCreditValidation(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewMemoryLedgerStore())
	c := mustClient(t, l, "Amine", "0556000000")

	for _, amount := range []string{"0", "-5"} {
		var ve *ValidationError
		if _, err := l.OpenCredit(ctx, c.ID, dec(amount), time.Time{}); !errors.As(err, &ve) {
			t.Fatalf("amount %s: expected ValidationError got %v", amount, err)
		}
	}
	if _, err := l.OpenCredit(ctx, 999, dec("10"), time.Time{}); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound got %v", err)
	}
	expectDecimal(t, "balance", balanceOf(t, l, c.ID), "0")

	credit := mustCredit(t, l, c.ID, "10")
	if !credit.CreditDate.Equal(fixedNow) {
		t.Fatalf("expected default date %v got %v", fixedNow, credit.CreditDate)
	}
}

func TestApplyPaymentRejections(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewMemoryLedgerStore())
	amine := mustClient(t, l, "Amine", "0556000000")
	karim := mustClient(t, l, "Karim", "0661000000")
	credit := mustCredit(t, l, amine.ID, "500")

	if _, err := l.ApplyPayment(ctx, amine.ID, credit.ID, dec("500.01")); !errors.Is(err, ErrExcessPayment) {
		t.Fatalf("expected ErrExcessPayment got %v", err)
	}
	var ve *ValidationError
	if _, err := l.ApplyPayment(ctx, amine.ID, credit.ID, dec("0")); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for zero payment got %v", err)
	}
	if _, err := l.ApplyPayment(ctx, karim.ID, credit.ID, dec("10")); !errors.Is(err, ErrCreditNotFound) {
		t.Fatalf("expected ErrCreditNotFound for foreign credit got %v", err)
	}
	if _, err := l.ApplyPayment(ctx, amine.ID, 999, dec("10")); !errors.Is(err, ErrCreditNotFound) {
		t.Fatalf("expected ErrCreditNotFound got %v", err)
	}

	// nothing moved
	got, err := l.GetCredit(ctx, credit.ID)
	if err != nil {
		t.Fatalf("get credit: %v", err)
	}
	expectDecimal(t, "reste", got.Reste, "500")
	expectDecimal(t, "versement", got.Versement, "0")
	expectDecimal(t, "balance", balanceOf(t, l, amine.ID), "500")
	if log, _ := l.PaymentLog(ctx, credit.ID); len(log) != 0 {
		t.Fatalf("expected empty payment log got %d", len(log))
	}

	if _, err := l.ApplyPayment(ctx, amine.ID, credit.ID, dec("500")); err != nil {
		t.Fatalf("full payment: %v", err)
	}
	if _, err := l.ApplyPayment(ctx, amine.ID, credit.ID, dec("1")); !errors.Is(err, ErrCreditAlreadyPaid) {
		t.Fatalf("expected ErrCreditAlreadyPaid got %v", err)
	}
	expectDecimal(t, "balance", balanceOf(t, l, amine.ID), "0")
}

func TestBalanceTracksCreditsAndPayments(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewMemoryLedgerStore())
	c := mustClient(t, l, "Amine", "0556000000")

	opened := []string{"100", "250.50", "75.25", "1000"}
	var credits []models.Credit
	for _, amount := range opened {
		credits = append(credits, mustCredit(t, l, c.ID, amount))
	}
	payments := []struct {
		credit int
		amount string
	}{
		{0, "40"}, {1, "250.50"}, {0, "60"}, {3, "0.75"}, {2, "10"},
	}
	for _, p := range payments {
		if _, err := l.ApplyPayment(ctx, c.ID, credits[p.credit].ID, dec(p.amount)); err != nil {
			t.Fatalf("pay %s on credit %d: %v", p.amount, p.credit, err)
		}
	}

	// 1425.75 opened, 361.25 paid
	expectDecimal(t, "balance", balanceOf(t, l, c.ID), "1064.50")

	list, err := l.ListCredits(ctx, c.ID)
	if err != nil {
		t.Fatalf("list credits: %v", err)
	}
	sum := decimal.Zero
	for _, cr := range list {
		if !cr.Reste.Equal(cr.Amount.Sub(cr.Versement)) {
			t.Fatalf("credit %d: reste %s != %s - %s", cr.ID, cr.Reste, cr.Amount, cr.Versement)
		}
		if cr.IsPaid() != cr.Reste.IsZero() {
			t.Fatalf("credit %d: paid=%v with reste %s", cr.ID, cr.IsPaid(), cr.Reste)
		}
		sum = sum.Add(cr.Reste)
	}
	expectDecimal(t, "sum of reste", sum, "1064.50")

	paidCount := 0
	for _, cr := range list {
		if cr.IsPaid() {
			paidCount++
		}
	}
	if paidCount != 2 {
		t.Fatalf("expected 2 paid credits got %d", paidCount)
	}

	totals, err := l.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Clients != 1 {
		t.Fatalf("expected 1 client got %d", totals.Clients)
	}
	expectDecimal(t, "total credit", totals.Credit, "1064.50")
}

func TestDeleteClientCascades(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewMemoryLedgerStore())
	amine := mustClient(t, l, "Amine", "0556000000")
	karim := mustClient(t, l, "Karim", "0661000000")
	credit := mustCredit(t, l, amine.ID, "300")
	kept := mustCredit(t, l, karim.ID, "50")
	if _, err := l.ApplyPayment(ctx, amine.ID, credit.ID, dec("100")); err != nil {
		t.Fatalf("pay: %v", err)
	}

	if err := l.DeleteClient(ctx, amine.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := l.ComputeBadge(ctx, amine.ID); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound got %v", err)
	}
	if _, err := l.GetCredit(ctx, credit.ID); !errors.Is(err, ErrCreditNotFound) {
		t.Fatalf("expected ErrCreditNotFound got %v", err)
	}
	if _, err := l.PaymentLog(ctx, credit.ID); !errors.Is(err, ErrCreditNotFound) {
		t.Fatalf("expected ErrCreditNotFound for payment log got %v", err)
	}
	if err := l.DeleteClient(ctx, amine.ID); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound on second delete got %v", err)
	}

	if _, err := l.GetCredit(ctx, kept.ID); err != nil {
		t.Fatalf("other client's credit should survive: %v", err)
	}
}

func TestSearchFirstMatchingFieldWins(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewMemoryLedgerStore())
	amine := mustClient(t, l, "Amine", "0556000000")
	karim := mustClient(t, l, "Karim 0556", "0661000000")
	mustClient(t, l, "Sara", "0770000055")

	res, err := l.Search(ctx, "0556", models.DomainClients)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Field != models.FieldName || len(res.Clients) != 1 || res.Clients[0].ID != karim.ID {
		t.Fatalf("expected only name match on Karim, got %+v", res)
	}

	res, err = l.Search(ctx, "AMI", models.DomainClients)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Field != models.FieldName || len(res.Clients) != 1 || res.Clients[0].ID != amine.ID {
		t.Fatalf("expected case-insensitive name match, got %+v", res)
	}

	res, err = l.Search(ctx, "0770", models.DomainClients)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Field != models.FieldPhone || len(res.Clients) != 1 {
		t.Fatalf("expected phone match, got %+v", res)
	}

	res, err = l.Search(ctx, "nobody", models.DomainClients)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Field != "" || len(res.Clients) != 0 {
		t.Fatalf("expected no match, got %+v", res)
	}
}

func TestSearchCreditsPaidIsExact(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewMemoryLedgerStore())
	c := mustClient(t, l, "Amine", "0556000000")
	paid := mustCredit(t, l, c.ID, "20")
	mustCredit(t, l, c.ID, "30")
	if _, err := l.ApplyPayment(ctx, c.ID, paid.ID, dec("20")); err != nil {
		t.Fatalf("pay: %v", err)
	}

	res, err := l.Search(ctx, "PAID", models.DomainCredits)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Field != models.FieldPaid || len(res.Credits) != 1 || res.Credits[0].ID != paid.ID {
		t.Fatalf("expected exact paid match on one credit, got %+v", res)
	}

	res, err = l.Search(ctx, "not paid", models.DomainCredits)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Field != models.FieldPaid || len(res.Credits) != 1 || res.Credits[0].ID == paid.ID {
		t.Fatalf("expected the unpaid credit, got %+v", res)
	}

	res, err = l.Search(ctx, "2024-03", models.DomainCredits)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Field != models.FieldCreditDate || len(res.Credits) != 2 {
		t.Fatalf("expected both credits by date, got %+v", res)
	}

	if _, err := l.Search(ctx, "x", models.SearchDomain("products")); err == nil {
		t.Fatalf("expected error for unknown domain")
	}
}

var errBoom = errors.New("boom")

// failingStore fails the named write inside transactions.
type failingStore struct {
	*memory.MemoryLedgerStore
	failOn string
}

func (f *failingStore) WithinTx(ctx context.Context, fn func(tx interfaces.LedgerTx) error) error {
	return f.MemoryLedgerStore.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		return fn(&failingTx{LedgerTx: tx, failOn: f.failOn})
	})
}

type failingTx struct {
	interfaces.LedgerTx
	failOn string
}

func (t *failingTx) InsertCredit(ctx context.Context, credit *models.Credit) error {
	if t.failOn == "credit" {
		return errBoom
	}
	return t.LedgerTx.InsertCredit(ctx, credit)
}

func (t *failingTx) InsertPayment(ctx context.Context, entry *models.PaymentLogEntry) error {
	if t.failOn == "payment" {
		return errBoom
	}
	return t.LedgerTx.InsertPayment(ctx, entry)
}

func TestCompositeWritesRollBack(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryLedgerStore: memory.NewMemoryLedgerStore()}
	l := newTestLedger(t, store)
	c := mustClient(t, l, "Amine", "0556000000")
	credit := mustCredit(t, l, c.ID, "1000")

	store.failOn = "payment"
	_, err := l.ApplyPayment(ctx, c.ID, credit.ID, dec("400"))
	var se *StorageError
	if !errors.As(err, &se) || !errors.Is(err, errBoom) {
		t.Fatalf("expected StorageError wrapping boom got %v", err)
	}
	got, err := l.GetCredit(ctx, credit.ID)
	if err != nil {
		t.Fatalf("get credit: %v", err)
	}
	expectDecimal(t, "reste after failed payment", got.Reste, "1000")
	expectDecimal(t, "balance after failed payment", balanceOf(t, l, c.ID), "1000")

	store.failOn = "credit"
	if _, err := l.OpenCredit(ctx, c.ID, dec("50"), time.Time{}); !errors.Is(err, errBoom) {
		t.Fatalf("expected boom got %v", err)
	}
	expectDecimal(t, "balance after failed credit", balanceOf(t, l, c.ID), "1000")
	list, err := l.ListCredits(ctx, c.ID)
	if err != nil {
		t.Fatalf("list credits: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 credit got %d", len(list))
	}
}

type recordingPublisher struct {
	events []events.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.LedgerEvent) error {
	p.events = append(p.events, event)
	return p.err
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	l := newTestLedger(t, memory.NewMemoryLedgerStore(), WithPublisher(pub))

	c := mustClient(t, l, "Amine", "0556000000")
	credit := mustCredit(t, l, c.ID, "100")
	if _, err := l.ApplyPayment(ctx, c.ID, credit.ID, dec("150")); !errors.Is(err, ErrExcessPayment) {
		t.Fatalf("expected ErrExcessPayment got %v", err)
	}
	if _, err := l.ApplyPayment(ctx, c.ID, credit.ID, dec("30")); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if err := l.DeleteClient(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []events.Type{events.ClientRegistered, events.CreditOpened, events.PaymentApplied, events.ClientDeleted}
	if len(pub.events) != len(want) {
		t.Fatalf("expected %d events got %d", len(want), len(pub.events))
	}
	for i, typ := range want {
		if pub.events[i].Type != typ {
			t.Fatalf("event %d: expected %s got %s", i, typ, pub.events[i].Type)
		}
		if pub.events[i].ID == "" || !pub.events[i].OccurredAt.Equal(fixedNow) {
			t.Fatalf("event %d missing id or time: %+v", i, pub.events[i])
		}
	}
	expectDecimal(t, "payment event balance", pub.events[2].Balance, "70")
	expectDecimal(t, "payment event reste", *pub.events[2].Reste, "70")
	expectDecimal(t, "deleted balance", pub.events[3].Balance, "70")
}

func TestPublisherFailureDoesNotUndoMutation(t *testing.T) {
	pub := &recordingPublisher{err: errBoom}
	l := newTestLedger(t, memory.NewMemoryLedgerStore(), WithPublisher(pub))

	c := mustClient(t, l, "Amine", "0556000000")
	mustCredit(t, l, c.ID, "100")
	expectDecimal(t, "balance", balanceOf(t, l, c.ID), "100")
}

func TestStatement(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewMemoryLedgerStore())
	c := mustClient(t, l, "Amine", "0556000000")
	first := mustCredit(t, l, c.ID, "100")
	second := mustCredit(t, l, c.ID, "200")
	if _, err := l.ApplyPayment(ctx, c.ID, second.ID, dec("50")); err != nil {
		t.Fatalf("pay: %v", err)
	}

	st, err := l.Statement(ctx, c.ID)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if len(st.Credits) != 2 || st.Credits[0].ID != first.ID {
		t.Fatalf("expected credits ordered by id, got %+v", st.Credits)
	}
	if len(st.Payments[first.ID]) != 0 || len(st.Payments[second.ID]) != 1 {
		t.Fatalf("unexpected payments %+v", st.Payments)
	}
	expectDecimal(t, "statement balance", st.Client.Credit, "250")

	if _, err := l.Statement(ctx, 999); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound got %v", err)
	}
}

func TestAmountsFinerThanACentAreRejected(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewMemoryLedgerStore())
	c := mustClient(t, l, "Amine", "0556000000")
	credit := mustCredit(t, l, c.ID, "100.50")

	cases := []struct {
		amount string
		ok     bool
	}{
		{"1234567890.123456789", false},
		{"0.001", false},
		{"10000000000000", false},
		{"0.01", true},
		{"1.500", true},
	}
	for _, tc := range cases {
		_, err := l.OpenCredit(ctx, c.ID, dec(tc.amount), time.Time{})
		var validation *ValidationError
		if tc.ok && err != nil {
			t.Fatalf("open credit %s: %v", tc.amount, err)
		}
		if !tc.ok && !errors.As(err, &validation) {
			t.Fatalf("open credit %s: expected ValidationError got %v", tc.amount, err)
		}
	}

	var validation *ValidationError
	if _, err := l.ApplyPayment(ctx, c.ID, credit.ID, dec("0.005")); !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError for sub-cent payment got %v", err)
	}
	expectDecimal(t, "balance", balanceOf(t, l, c.ID), "102.01")
}

type deadlinePublisher struct {
	hadDeadline bool
}

func (p *deadlinePublisher) Publish(ctx context.Context, _ events.LedgerEvent) error {
	_, p.hadDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func TestPublishIsBoundedByTimeout(t *testing.T) {
	pub := &deadlinePublisher{}
	l := newTestLedger(t, memory.NewMemoryLedgerStore(),
		WithPublisher(pub), WithPublishTimeout(20*time.Millisecond))

	start := time.Now()
	c := mustClient(t, l, "Amine", "0556000000")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("register waited %s on a stalled publisher", elapsed)
	}
	if !pub.hadDeadline {
		t.Fatalf("expected publish context to carry a deadline")
	}
	expectDecimal(t, "balance", balanceOf(t, l, c.ID), "0")
}
