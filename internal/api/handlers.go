package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/store-credit-ledger/internal/export"
	"github.com/sheikh-saqib/store-credit-ledger/internal/ledger"
	"github.com/sheikh-saqib/store-credit-ledger/internal/models"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Handler exposes the ledger over JSON HTTP.
type Handler struct {
	ledger   *ledger.Ledger
	currency string
	logger   *slog.Logger
}

// NewHandler returns the routed, logged http.Handler for l.
// currency is appended to display amounts (e.g. "DA").
func NewHandler(l *ledger.Ledger, currency string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{ledger: l, currency: currency, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /totals", h.totals)
	mux.HandleFunc("GET /search", h.search)
	mux.HandleFunc("GET /clients", h.listClients)
	mux.HandleFunc("POST /clients", h.registerClient)
	mux.HandleFunc("GET /clients/{id}", h.getClient)
	mux.HandleFunc("DELETE /clients/{id}", h.deleteClient)
	mux.HandleFunc("GET /clients/{id}/badge", h.badge)
	mux.HandleFunc("GET /clients/{id}/credits", h.listCredits)
	mux.HandleFunc("POST /clients/{id}/credits", h.openCredit)
	mux.HandleFunc("POST /clients/{id}/credits/{creditID}/payments", h.applyPayment)
	mux.HandleFunc("GET /clients/{id}/statement.xlsx", h.statement)
	mux.HandleFunc("GET /credits/{creditID}/payments", h.paymentLog)

	return h.withLogging(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (h *Handler) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.InfoContext(r.Context(), "request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return id, true
}

func (h *Handler) display(d decimal.Decimal) string {
	if h.currency == "" {
		return d.StringFixed(2)
	}
	return d.StringFixed(2) + " " + h.currency
}

func (h *Handler) totals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.ledger.Totals(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		models.Totals
		Display string `json:"display"`
	}{totals, h.display(totals.Credit)})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	domain, err := models.ParseSearchDomain(r.URL.Query().Get("domain"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	result, err := h.ledger.Search(r.Context(), r.URL.Query().Get("q"), domain)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.ledger.ListClients(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func (h *Handler) registerClient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	client, err := h.ledger.RegisterClient(r.Context(), req.Name, req.Phone)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	client, err := h.ledger.GetClient(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.ledger.DeleteClient(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) badge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	badge, err := h.ledger.ComputeBadge(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, badge)
}

func (h *Handler) listCredits(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	credits, err := h.ledger.ListCredits(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, credits)
}

func (h *Handler) openCredit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Date   string          `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	var date time.Time
	if req.Date != "" {
		d, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", nil)
			return
		}
		date = d
	}

	credit, err := h.ledger.OpenCredit(r.Context(), id, req.Amount, date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, credit)
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	clientID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	creditID, ok := pathID(w, r, "creditID")
	if !ok {
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	credit, err := h.ledger.ApplyPayment(r.Context(), clientID, creditID, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, credit)
}

func (h *Handler) paymentLog(w http.ResponseWriter, r *http.Request) {
	creditID, ok := pathID(w, r, "creditID")
	if !ok {
		return
	}
	payments, err := h.ledger.PaymentLog(r.Context(), creditID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	st, err := h.ledger.Statement(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+export.FileName(st))
	if err := export.WriteStatement(w, st, h.currency); err != nil {
		h.logger.ErrorContext(r.Context(), "write statement failed", "client_id", id, "error", err)
	}
}

// fail logs unexpected errors and writes the mapped response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var storageErr *ledger.StorageError
	if errors.As(err, &storageErr) {
		h.logger.ErrorContext(r.Context(), "ledger storage failure", "op", storageErr.Op, "error", storageErr.Err)
	}
	writeLedgerError(w, err)
}
