package interfaces

import (
	"context"

	"github.com/sheikh-saqib/store-credit-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// LedgerReader is the read side of the storage collaborator.
// Missing rows are reported with storage.ErrNotFound.
type LedgerReader interface {
	GetClient(ctx context.Context, id int64) (models.Client, error)
	ListClients(ctx context.Context) ([]models.Client, error)
	GetCredit(ctx context.Context, id int64) (models.Credit, error)
	ListCredits(ctx context.Context, clientID int64) ([]models.Credit, error)
	ListPayments(ctx context.Context, creditID int64) ([]models.PaymentLogEntry, error)
	SearchClients(ctx context.Context, field models.SearchField, keyword string) ([]models.Client, error)
	SearchCredits(ctx context.Context, field models.SearchField, keyword string) ([]models.Credit, error)
}

// LedgerWriter is the write side of the storage collaborator.
// Insert methods fill in the generated ID.
type LedgerWriter interface {
	InsertClient(ctx context.Context, client *models.Client) error
	UpdateClientCredit(ctx context.Context, clientID int64, credit decimal.Decimal) error
	DeleteClient(ctx context.Context, clientID int64) error
	InsertCredit(ctx context.Context, credit *models.Credit) error
	UpdateCredit(ctx context.Context, credit models.Credit) error
	InsertPayment(ctx context.Context, entry *models.PaymentLogEntry) error
}

// LedgerTx is the view of the store handed to a transactional unit of work
type LedgerTx interface {
	LedgerReader
	LedgerWriter
}

// LedgerStore persists clients, credits and the payment log.
// WithinTx runs fn so that either every write it makes is kept or none is.
type LedgerStore interface {
	LedgerTx
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
	Close() error
}
