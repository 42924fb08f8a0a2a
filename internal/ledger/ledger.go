package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/store-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/store-credit-ledger/internal/models"
	"github.com/sheikh-saqib/store-credit-ledger/internal/models/events"
	"github.com/sheikh-saqib/store-credit-ledger/internal/storage"
	"github.com/shopspring/decimal"
)

// Ledger owns the credit bookkeeping rules: it keeps every client's aggregate
// credit equal to the sum of the reste of its credits, and every credit's
// reste equal to its amount minus what has been paid.
type Ledger struct {
	store     interfaces.LedgerStore    // any storage implementation (memory, sqlite, postgres)
	publisher interfaces.EventPublisher // optional, nil disables events
	logger    *slog.Logger
	now       func() time.Time

	publishTimeout time.Duration
}

// DefaultPublishTimeout bounds how long a mutation waits for its event to be published.
const DefaultPublishTimeout = 3 * time.Second

// Option customises a Ledger built by NewLedger
type Option func(*Ledger)

// WithPublisher sends a LedgerEvent after every committed mutation.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithLogger sets the structured logger; slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithPublishTimeout overrides DefaultPublishTimeout. Zero or less disables the bound.
func WithPublishTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.publishTimeout = d }
}

// WithClock replaces time.Now, used for payment dates and default credit dates.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a Ledger on top of store.
func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,

		publishTimeout: DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RegisterClient validates the phone number and inserts a client with no credit.
func (l *Ledger) RegisterClient(ctx context.Context, name, phone string) (models.Client, error) {
	phone = strings.TrimSpace(phone)
	if err := ValidatePhone(phone); err != nil {
		return models.Client{}, err
	}

	client := models.Client{
		Name:      strings.TrimSpace(name),
		Phone:     phone,
		Credit:    decimal.Zero,
		CreatedAt: l.now(),
	}
	if err := l.store.InsertClient(ctx, &client); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return models.Client{}, ErrDuplicatePhone
		}
		return models.Client{}, &StorageError{Op: "register client", Err: err}
	}

	l.logger.InfoContext(ctx, "client registered", "client_id", client.ID)
	l.publish(ctx, events.LedgerEvent{
		Type:     events.ClientRegistered,
		ClientID: client.ID,
		Balance:  client.Credit,
	})
	return client, nil
}

// OpenCredit extends amount of credit to the client. The client's aggregate
// credit and the new credit row are written in one transaction.
// A zero date means today.
func (l *Ledger) OpenCredit(ctx context.Context, clientID int64, amount decimal.Decimal, date time.Time) (models.Credit, error) {
	if amount.IsZero() {
		return models.Credit{}, &ValidationError{Field: "amount", Reason: "you must add a credit"}
	}
	if err := validateAmount(amount); err != nil {
		return models.Credit{}, err
	}
	if date.IsZero() {
		date = l.now()
	}

	var credit models.Credit
	var balance decimal.Decimal
	err := l.store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		client, err := tx.GetClient(ctx, clientID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrClientNotFound
		}
		if err != nil {
			return err
		}

		balance = client.Credit.Add(amount)
		if err := tx.UpdateClientCredit(ctx, clientID, balance); err != nil {
			return err
		}

		credit = models.Credit{
			ClientID:   clientID,
			CreditDate: date,
			Amount:     amount,
			Versement:  decimal.Zero,
			Reste:      amount,
			Status:     models.CreditNotPaid,
		}
		return tx.InsertCredit(ctx, &credit)
	})
	if err != nil {
		return models.Credit{}, translate("open credit", err)
	}

	l.logger.InfoContext(ctx, "credit opened",
		"client_id", clientID,
		"credit_id", credit.ID,
		"amount", amount.String(),
		"balance", balance.String(),
	)
	l.publish(ctx, events.LedgerEvent{
		Type:     events.CreditOpened,
		ClientID: clientID,
		CreditID: credit.ID,
		Amount:   &amount,
		Balance:  balance,
		Reste:    &credit.Reste,
	})
	return credit, nil
}

// ApplyPayment records a payment of amount against one of the client's credits.
//
// The credit's versement and reste, the client's aggregate credit, the
// payment log and the paid flag all change in a single transaction. A payment
// larger than the reste is refused with ErrExcessPayment, and once a credit is
// paid every further payment is refused with ErrCreditAlreadyPaid.
func (l *Ledger) ApplyPayment(ctx context.Context, clientID, creditID int64, amount decimal.Decimal) (models.Credit, error) {
	if err := validateAmount(amount); err != nil {
		return models.Credit{}, err
	}

	var credit models.Credit
	var balance decimal.Decimal
	err := l.store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		var err error
		credit, err = tx.GetCredit(ctx, creditID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrCreditNotFound
		}
		if err != nil {
			return err
		}
		if credit.ClientID != clientID {
			return ErrCreditNotFound
		}
		if credit.IsPaid() || !credit.Reste.IsPositive() {
			return ErrCreditAlreadyPaid
		}
		if amount.GreaterThan(credit.Reste) {
			return fmt.Errorf("%w: %s > %s", ErrExcessPayment, amount, credit.Reste)
		}

		credit.Versement = credit.Versement.Add(amount)
		credit.Reste = credit.Amount.Sub(credit.Versement)
		if credit.Reste.IsZero() {
			credit.Status = models.CreditPaid
		}
		if err := tx.UpdateCredit(ctx, credit); err != nil {
			return err
		}

		client, err := tx.GetClient(ctx, clientID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrClientNotFound
		}
		if err != nil {
			return err
		}
		balance = client.Credit.Sub(amount)
		if err := tx.UpdateClientCredit(ctx, clientID, balance); err != nil {
			return err
		}

		return tx.InsertPayment(ctx, &models.PaymentLogEntry{
			CreditID:    creditID,
			PaymentDate: l.now(),
			Amount:      amount,
		})
	})
	if err != nil {
		return models.Credit{}, translate("apply payment", err)
	}

	l.logger.InfoContext(ctx, "payment applied",
		"client_id", clientID,
		"credit_id", creditID,
		"amount", amount.String(),
		"reste", credit.Reste.String(),
		"paid", credit.IsPaid(),
	)
	l.publish(ctx, events.LedgerEvent{
		Type:     events.PaymentApplied,
		ClientID: clientID,
		CreditID: creditID,
		Amount:   &amount,
		Balance:  balance,
		Reste:    &credit.Reste,
	})
	return credit, nil
}

// DeleteClient removes the client with all its credits and payment log
// entries. It cannot be undone.
func (l *Ledger) DeleteClient(ctx context.Context, clientID int64) error {
	var written decimal.Decimal
	err := l.store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		client, err := tx.GetClient(ctx, clientID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrClientNotFound
		}
		if err != nil {
			return err
		}
		written = client.Credit
		return tx.DeleteClient(ctx, clientID)
	})
	if err != nil {
		return translate("delete client", err)
	}

	l.logger.InfoContext(ctx, "client deleted", "client_id", clientID, "outstanding", written.String())
	l.publish(ctx, events.LedgerEvent{
		Type:     events.ClientDeleted,
		ClientID: clientID,
		Balance:  written,
	})
	return nil
}

// ComputeBadge returns the name, phone and current balance of a client.
func (l *Ledger) ComputeBadge(ctx context.Context, clientID int64) (models.Badge, error) {
	client, err := l.getClient(ctx, clientID)
	if err != nil {
		return models.Badge{}, err
	}
	return models.Badge{Name: client.Name, Phone: client.Phone, Credit: client.Credit}, nil
}

// GetClient returns the client with its current aggregate credit.
func (l *Ledger) GetClient(ctx context.Context, clientID int64) (models.Client, error) {
	return l.getClient(ctx, clientID)
}

func (l *Ledger) ListClients(ctx context.Context) ([]models.Client, error) {
	clients, err := l.store.ListClients(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list clients", Err: err}
	}
	return clients, nil
}

// ListCredits returns the credits of a client ordered by id.
func (l *Ledger) ListCredits(ctx context.Context, clientID int64) ([]models.Credit, error) {
	if _, err := l.getClient(ctx, clientID); err != nil {
		return nil, err
	}
	credits, err := l.store.ListCredits(ctx, clientID)
	if err != nil {
		return nil, &StorageError{Op: "list credits", Err: err}
	}
	return credits, nil
}

// GetCredit returns a credit by id, whichever client owns it.
func (l *Ledger) GetCredit(ctx context.Context, creditID int64) (models.Credit, error) {
	credit, err := l.store.GetCredit(ctx, creditID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Credit{}, ErrCreditNotFound
	}
	if err != nil {
		return models.Credit{}, &StorageError{Op: "get credit", Err: err}
	}
	return credit, nil
}

// PaymentLog returns the payments made against a credit, oldest first.
func (l *Ledger) PaymentLog(ctx context.Context, creditID int64) ([]models.PaymentLogEntry, error) {
	if _, err := l.GetCredit(ctx, creditID); err != nil {
		return nil, err
	}
	payments, err := l.store.ListPayments(ctx, creditID)
	if err != nil {
		return nil, &StorageError{Op: "payment log", Err: err}
	}
	return payments, nil
}

// Totals counts the clients and sums their outstanding credit.
func (l *Ledger) Totals(ctx context.Context) (models.Totals, error) {
	clients, err := l.ListClients(ctx)
	if err != nil {
		return models.Totals{}, err
	}
	total := decimal.Zero
	for _, c := range clients {
		total = total.Add(c.Credit)
	}
	return models.Totals{Clients: len(clients), Credit: total}, nil
}

func (l *Ledger) getClient(ctx context.Context, clientID int64) (models.Client, error) {
	client, err := l.store.GetClient(ctx, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Client{}, ErrClientNotFound
	}
	if err != nil {
		return models.Client{}, &StorageError{Op: "get client", Err: err}
	}
	return client, nil
}

// publish is best effort: the mutation is already committed, so a failing
// publisher is only logged.
func (l *Ledger) publish(ctx context.Context, event events.LedgerEvent) {
	if l.publisher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = l.now().UTC()

	if l.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.publishTimeout)
		defer cancel()
	}
	if err := l.publisher.Publish(ctx, event); err != nil {
		l.logger.WarnContext(ctx, "publish ledger event failed",
			"event_id", event.ID,
			"type", event.Type,
			"client_id", event.ClientID,
			"error", err,
		)
	}
}

// translate keeps the ledger's own errors and wraps anything else as a StorageError.
func translate(op string, err error) error {
	var validation *ValidationError
	switch {
	case errors.As(err, &validation),
		errors.Is(err, ErrClientNotFound),
		errors.Is(err, ErrCreditNotFound),
		errors.Is(err, ErrCreditAlreadyPaid),
		errors.Is(err, ErrExcessPayment),
		errors.Is(err, ErrDuplicatePhone):
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// Statement gathers a client with its credits and their payment logs.
func (l *Ledger) Statement(ctx context.Context, clientID int64) (models.Statement, error) {
	client, err := l.getClient(ctx, clientID)
	if err != nil {
		return models.Statement{}, err
	}
	credits, err := l.store.ListCredits(ctx, clientID)
	if err != nil {
		return models.Statement{}, &StorageError{Op: "statement", Err: err}
	}
	payments := make(map[int64][]models.PaymentLogEntry, len(credits))
	for _, c := range credits {
		entries, err := l.store.ListPayments(ctx, c.ID)
		if err != nil {
			return models.Statement{}, &StorageError{Op: "statement", Err: err}
		}
		payments[c.ID] = entries
	}
	return models.Statement{Client: client, Credits: credits, Payments: payments}, nil
}
