package ledger

import "github.com/shopspring/decimal"

// Money columns are NUMERIC(15, 2): two fraction digits, thirteen integer digits.
const amountScale = 2

var maxAmount = decimal.New(1, 13)

// validateAmount rejects amounts the stores cannot hold exactly. Anything
// finer than a cent would be rounded (postgres) or turned into a float
// (sqlite) on write, and the stored reste would no longer match.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if !amount.Equal(amount.Truncate(amountScale)) {
		return &ValidationError{Field: "amount", Reason: "at most 2 decimal places"}
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return &ValidationError{Field: "amount", Reason: "too large"}
	}
	return nil
}
