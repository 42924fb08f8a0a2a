package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type names a ledger mutation
type Type string

const (
	ClientRegistered Type = "client_registered"
	CreditOpened     Type = "credit_opened"
	PaymentApplied   Type = "payment_applied"
	ClientDeleted    Type = "client_deleted"
)

// LedgerEvent is emitted once a ledger mutation has been committed.
// Balance is the client's aggregate credit after the mutation.
type LedgerEvent struct {
	ID         string           `json:"id"`
	Type       Type             `json:"type"`
	ClientID   int64            `json:"client_id"`
	CreditID   int64            `json:"credit_id,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Balance    decimal.Decimal  `json:"balance"`
	Reste      *decimal.Decimal `json:"reste,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
