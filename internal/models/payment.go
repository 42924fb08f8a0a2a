package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentLogEntry records one payment made against a credit.
// Entries are append-only and only disappear with their credit.
type PaymentLogEntry struct {
	ID          int64           `json:"id"`
	CreditID    int64           `json:"credit_id"`
	PaymentDate time.Time       `json:"payment_date"`
	Amount      decimal.Decimal `json:"payment"`
}
