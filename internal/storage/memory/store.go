package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/sheikh-saqib/store-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/store-credit-ledger/internal/models"
	"github.com/sheikh-saqib/store-credit-ledger/internal/storage"
	"github.com/shopspring/decimal"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// All access goes through mu. Transactions work on a copy of the state that
// replaces the live state only when the unit of work succeeds.
type MemoryLedgerStore struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	clients  map[int64]models.Client
	credits  map[int64]models.Credit
	payments map[int64]models.PaymentLogEntry

	lastClientID  int64
	lastCreditID  int64
	lastPaymentID int64
}

// NewMemoryLedgerStore creates and returns an empty MemoryLedgerStore
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		state: &state{
			clients:  make(map[int64]models.Client),
			credits:  make(map[int64]models.Credit),
			payments: make(map[int64]models.PaymentLogEntry),
		},
	}
}

func (s *state) clone() *state {
	c := *s
	c.clients = maps.Clone(s.clients)
	c.credits = maps.Clone(s.credits)
	c.payments = maps.Clone(s.payments)
	return &c
}

// WithinTx runs fn against a private copy of the store. The copy becomes the
// live state only if fn returns nil; on error or panic it is dropped.
func (m *MemoryLedgerStore) WithinTx(ctx context.Context, fn func(tx interfaces.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(&memoryTx{st: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryLedgerStore) Close() error { return nil }

func (m *MemoryLedgerStore) live() *memoryTx { return &memoryTx{st: m.state} }

func (m *MemoryLedgerStore) GetClient(ctx context.Context, id int64) (models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live().GetClient(ctx, id)
}

func (m *MemoryLedgerStore) ListClients(ctx context.Context) ([]models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live().ListClients(ctx)
}

func (m *MemoryLedgerStore) GetCredit(ctx context.Context, id int64) (models.Credit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live().GetCredit(ctx, id)
}

func (m *MemoryLedgerStore) ListCredits(ctx context.Context, clientID int64) ([]models.Credit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live().ListCredits(ctx, clientID)
}

func (m *MemoryLedgerStore) ListPayments(ctx context.Context, creditID int64) ([]models.PaymentLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live().ListPayments(ctx, creditID)
}

func (m *MemoryLedgerStore) SearchClients(ctx context.Context, field models.SearchField, keyword string) ([]models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live().SearchClients(ctx, field, keyword)
}

func (m *MemoryLedgerStore) SearchCredits(ctx context.Context, field models.SearchField, keyword string) ([]models.Credit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live().SearchCredits(ctx, field, keyword)
}

// Writes made outside WithinTx are applied through a single-statement transaction
// so they get the same all-or-nothing behaviour.

func (m *MemoryLedgerStore) InsertClient(ctx context.Context, client *models.Client) error {
	return m.WithinTx(ctx, func(tx interfaces.LedgerTx) error { return tx.InsertClient(ctx, client) })
}

func (m *MemoryLedgerStore) UpdateClientCredit(ctx context.Context, clientID int64, credit decimal.Decimal) error {
	return m.WithinTx(ctx, func(tx interfaces.LedgerTx) error { return tx.UpdateClientCredit(ctx, clientID, credit) })
}

func (m *MemoryLedgerStore) DeleteClient(ctx context.Context, clientID int64) error {
	return m.WithinTx(ctx, func(tx interfaces.LedgerTx) error { return tx.DeleteClient(ctx, clientID) })
}

func (m *MemoryLedgerStore) InsertCredit(ctx context.Context, credit *models.Credit) error {
	return m.WithinTx(ctx, func(tx interfaces.LedgerTx) error { return tx.InsertCredit(ctx, credit) })
}

func (m *MemoryLedgerStore) UpdateCredit(ctx context.Context, credit models.Credit) error {
	return m.WithinTx(ctx, func(tx interfaces.LedgerTx) error { return tx.UpdateCredit(ctx, credit) })
}

func (m *MemoryLedgerStore) InsertPayment(ctx context.Context, entry *models.PaymentLogEntry) error {
	return m.WithinTx(ctx, func(tx interfaces.LedgerTx) error { return tx.InsertPayment(ctx, entry) })
}

// memoryTx operates on a state without locking; callers hold MemoryLedgerStore.mu.
type memoryTx struct {
	st *state
}

func (t *memoryTx) GetClient(_ context.Context, id int64) (models.Client, error) {
	c, ok := t.st.clients[id]
	if !ok {
		return models.Client{}, fmt.Errorf("client %d: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (t *memoryTx) ListClients(_ context.Context) ([]models.Client, error) {
	return sortedByID(t.st.clients, func(c models.Client) bool { return true }), nil
}

func (t *memoryTx) GetCredit(_ context.Context, id int64) (models.Credit, error) {
	c, ok := t.st.credits[id]
	if !ok {
		return models.Credit{}, fmt.Errorf("credit %d: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (t *memoryTx) ListCredits(_ context.Context, clientID int64) ([]models.Credit, error) {
	return sortedByID(t.st.credits, func(c models.Credit) bool { return c.ClientID == clientID }), nil
}

func (t *memoryTx) ListPayments(_ context.Context, creditID int64) ([]models.PaymentLogEntry, error) {
	return sortedByID(t.st.payments, func(p models.PaymentLogEntry) bool { return p.CreditID == creditID }), nil
}

func (t *memoryTx) SearchClients(_ context.Context, field models.SearchField, keyword string) ([]models.Client, error) {
	var value func(models.Client) string
	switch field {
	case models.FieldName:
		value = func(c models.Client) string { return c.Name }
	case models.FieldPhone:
		value = func(c models.Client) string { return c.Phone }
	case models.FieldCredit:
		value = func(c models.Client) string { return c.Credit.String() }
	default:
		return nil, fmt.Errorf("search clients: unsupported field %q", field)
	}
	return sortedByID(t.st.clients, func(c models.Client) bool {
		return matches(field, value(c), keyword)
	}), nil
}

func (t *memoryTx) SearchCredits(_ context.Context, field models.SearchField, keyword string) ([]models.Credit, error) {
	var value func(models.Credit) string
	switch field {
	case models.FieldCreditDate:
		value = func(c models.Credit) string { return c.CreditDate.Format("2006-01-02") }
	case models.FieldVersement:
		value = func(c models.Credit) string { return c.Versement.String() }
	case models.FieldPaid:
		value = func(c models.Credit) string { return string(c.Status) }
	default:
		return nil, fmt.Errorf("search credits: unsupported field %q", field)
	}
	return sortedByID(t.st.credits, func(c models.Credit) bool {
		return matches(field, value(c), keyword)
	}), nil
}

func (t *memoryTx) InsertClient(_ context.Context, client *models.Client) error {
	for _, c := range t.st.clients {
		if c.Phone == client.Phone {
			return fmt.Errorf("client phone %s: %w", client.Phone, storage.ErrDuplicate)
		}
	}
	t.st.lastClientID++
	client.ID = t.st.lastClientID
	t.st.clients[client.ID] = *client
	return nil
}

func (t *memoryTx) UpdateClientCredit(_ context.Context, clientID int64, credit decimal.Decimal) error {
	c, ok := t.st.clients[clientID]
	if !ok {
		return fmt.Errorf("client %d: %w", clientID, storage.ErrNotFound)
	}
	c.Credit = credit
	t.st.clients[clientID] = c
	return nil
}

// DeleteClient removes the client together with its credits and their payments.
func (t *memoryTx) DeleteClient(_ context.Context, clientID int64) error {
	if _, ok := t.st.clients[clientID]; !ok {
		return fmt.Errorf("client %d: %w", clientID, storage.ErrNotFound)
	}
	for id, credit := range t.st.credits {
		if credit.ClientID != clientID {
			continue
		}
		for pid, p := range t.st.payments {
			if p.CreditID == id {
				delete(t.st.payments, pid)
			}
		}
		delete(t.st.credits, id)
	}
	delete(t.st.clients, clientID)
	return nil
}

func (t *memoryTx) InsertCredit(_ context.Context, credit *models.Credit) error {
	if _, ok := t.st.clients[credit.ClientID]; !ok {
		return fmt.Errorf("client %d: %w", credit.ClientID, storage.ErrNotFound)
	}
	t.st.lastCreditID++
	credit.ID = t.st.lastCreditID
	t.st.credits[credit.ID] = *credit
	return nil
}

func (t *memoryTx) UpdateCredit(_ context.Context, credit models.Credit) error {
	old, ok := t.st.credits[credit.ID]
	if !ok {
		return fmt.Errorf("credit %d: %w", credit.ID, storage.ErrNotFound)
	}
	old.Versement = credit.Versement
	old.Reste = credit.Reste
	old.Status = credit.Status
	t.st.credits[credit.ID] = old
	return nil
}

func (t *memoryTx) InsertPayment(_ context.Context, entry *models.PaymentLogEntry) error {
	if _, ok := t.st.credits[entry.CreditID]; !ok {
		return fmt.Errorf("credit %d: %w", entry.CreditID, storage.ErrNotFound)
	}
	t.st.lastPaymentID++
	entry.ID = t.st.lastPaymentID
	t.st.payments[entry.ID] = *entry
	return nil
}

// matches applies the search rule for field: exact and case-insensitive for
// paid, case-insensitive substring for everything else.
func matches(field models.SearchField, value, keyword string) bool {
	if field.Exact() {
		return strings.EqualFold(value, strings.TrimSpace(keyword))
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(keyword))
}

// sortedByID returns the values kept by keep, ordered by ID. The result is a copy.
func sortedByID[T any](rows map[int64]T, keep func(T) bool) []T {
	out := make([]T, 0, len(rows))
	for _, id := range slices.Sorted(maps.Keys(rows)) {
		if keep(rows[id]) {
			out = append(out, rows[id])
		}
	}
	return out
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
