package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client is a customer that can be extended store credit
type Client struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`  // unique, local mobile format
	Credit    decimal.Decimal `json:"credit"` // sum of the reste of every credit owned by the client
	CreatedAt time.Time       `json:"created_at"`
}

// Badge is the read-only summary shown for a selected client
type Badge struct {
	Name   string          `json:"name"`
	Phone  string          `json:"phone"`
	Credit decimal.Decimal `json:"credit"`
}

// Totals aggregates every client of the ledger
type Totals struct {
	Clients int             `json:"clients"`
	Credit  decimal.Decimal `json:"credit"`
}

// Statement is everything recorded for one client
type Statement struct {
	Client   Client                      `json:"client"`
	Credits  []Credit                    `json:"credits"`
	Payments map[int64][]PaymentLogEntry `json:"payments"` // keyed by credit id
}
