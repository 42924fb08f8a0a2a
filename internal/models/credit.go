package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditStatus is the paid state of a credit.
// Values match the text stored in the paid column.
type CreditStatus string

const (
	CreditNotPaid CreditStatus = "not paid"
	CreditPaid    CreditStatus = "paid"
)

// Valid reports whether s is one of the known statuses.
func (s CreditStatus) Valid() bool {
	return s == CreditNotPaid || s == CreditPaid
}

// Credit is a single extension of store credit to a client.
// Reste always equals Amount - Versement.
type Credit struct {
	ID         int64           `json:"id"`
	ClientID   int64           `json:"client_id"`
	CreditDate time.Time       `json:"credit_date"`
	Amount     decimal.Decimal `json:"credit"`    // amount lent
	Versement  decimal.Decimal `json:"versement"` // paid so far
	Reste      decimal.Decimal `json:"reste"`     // still owed
	Status     CreditStatus    `json:"paid"`
}

// IsPaid reports whether nothing is left to pay on the credit.
func (c Credit) IsPaid() bool {
	return c.Status == CreditPaid
}
