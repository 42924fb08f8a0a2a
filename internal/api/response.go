package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sheikh-saqib/store-credit-ledger/internal/ledger"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string, details any) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// writeLedgerError maps the ledger's error taxonomy onto HTTP statuses.
func writeLedgerError(w http.ResponseWriter, err error) {
	var validation *ledger.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error(), map[string]string{"field": validation.Field})
	case errors.Is(err, ledger.ErrDuplicatePhone):
		writeError(w, http.StatusConflict, "this phone already exists", nil)
	case errors.Is(err, ledger.ErrExcessPayment), errors.Is(err, ledger.ErrCreditAlreadyPaid):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, ledger.ErrClientNotFound), errors.Is(err, ledger.ErrCreditNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
