package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicatePhone    = errors.New("phone already exists")
	ErrExcessPayment     = errors.New("payment exceeds remaining balance")
	ErrCreditAlreadyPaid = errors.New("credit is already paid")
	ErrClientNotFound    = errors.New("client not found")
	ErrCreditNotFound    = errors.New("credit not found")
)

// ValidationError reports input rejected before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError wraps a failure of the storage collaborator during Op.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage failure: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
