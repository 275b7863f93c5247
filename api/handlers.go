/*
handlers.go - HTTP API handlers for the treasury engine

PURPOSE:
  Exposes the fund ledger via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the domain processors.

ENDPOINTS:
  Funds:
    GET    /api/funds                  List funds with balances
    POST   /api/funds                  Create fund
    GET    /api/funds/{id}             Get fund details
    GET    /api/funds/{id}/transactions Transaction history for a fund

  Transactions (bare, no source entity):
    GET    /api/transactions           List all transactions
    POST   /api/transactions           Record income/expense
    PUT    /api/transactions/{id}      Edit (reversal + re-apply)
    DELETE /api/transactions/{id}      Delete (reversal first)

  Members:
    GET    /api/members                List members
    POST   /api/members                Create member

  Offerings, advances, bills, petty cash: see offerings.go, advances.go,
  bills.go.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, insufficient funds, owned-reference edits
  - 404: Entity not found
  - 409: Conflict (duplicate member link, duplicate posting)
  - 500: Internal errors, ledger inconsistencies

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - middleware.go: Bearer-token authentication
*/
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stewardly/treasury/advance"
	"github.com/stewardly/treasury/billing"
	"github.com/stewardly/treasury/ledger"
	"github.com/stewardly/treasury/offering"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     ledger.Store
	Writer    *ledger.Writer
	Offerings *offering.Processor
	Advances  *advance.Processor
	Billing   *billing.Processor

	log *slog.Logger
}

// NewHandler creates a handler over the given store, wiring the ledger
// writer and the entity processors.
func NewHandler(store ledger.Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	writer := ledger.NewWriter(store, store, log)
	return &Handler{
		Store:     store,
		Writer:    writer,
		Offerings: offering.NewProcessor(store, writer, log),
		Advances:  advance.NewProcessor(store, writer, log),
		Billing:   billing.NewProcessor(store, log),
		log:       log,
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case ledger.IsInconsistency(err):
		// Checked first: an inconsistency unwraps to its cause, and a cause
		// like a missing fund must not demote an operator problem to a 404.
		status = http.StatusInternalServerError
	case ledger.IsNotFound(err):
		status = http.StatusNotFound
	case ledger.IsConflict(err):
		status = http.StatusConflict
	case ledger.IsClientError(err):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

// idParam supports both /things/{id} and /things?id= forms.
func idParam(r *http.Request) string {
	if id := chi.URLParam(r, "id"); id != "" {
		return id
	}
	return r.URL.Query().Get("id")
}

// =============================================================================
// FUND HANDLERS
// =============================================================================

// ListFunds returns all funds with current balances.
func (h *Handler) ListFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := h.Store.ListFunds(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]FundDTO, len(funds))
	for i, f := range funds {
		dtos[i] = toFundDTO(f)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateFund creates a new fund, optionally with an opening balance.
func (h *Handler) CreateFund(w http.ResponseWriter, r *http.Request) {
	var req CreateFundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, ledger.Validationf("name", "is required"))
		return
	}
	if req.Balance.IsNegative() {
		writeError(w, ledger.Validationf("current_balance", "cannot be negative"))
		return
	}

	id := ledger.FundID(req.ID)
	if id == "" {
		id = ledger.FundID(uuid.New().String())
	}
	f := ledger.Fund{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Balance:     decimal.Zero,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Store.SaveFund(r.Context(), f); err != nil {
		writeError(w, err)
		return
	}

	// Opening balance arrives through the ledger like any other income, so
	// the balance invariant holds from day one.
	if req.Balance.IsPositive() {
		if _, err := h.Writer.Post(r.Context(), ledger.Posting{
			FundID:      f.ID,
			Delta:       req.Balance,
			Description: "Opening balance",
			Category:    "opening",
		}); err != nil {
			writeError(w, err)
			return
		}
		f.Balance = req.Balance
	}
	writeJSON(w, http.StatusCreated, toFundDTO(f))
}

// GetFund returns a single fund.
func (h *Handler) GetFund(w http.ResponseWriter, r *http.Request) {
	f, err := h.Store.GetFund(r.Context(), ledger.FundID(idParam(r)))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFundDTO(*f))
}

// GetFundTransactions returns the transaction history for one fund.
func (h *Handler) GetFundTransactions(w http.ResponseWriter, r *http.Request) {
	fundID := ledger.FundID(idParam(r))
	if _, err := h.Store.GetFund(r.Context(), fundID); err != nil {
		writeError(w, err)
		return
	}
	txs, err := h.Store.ListTransactionsByFund(r.Context(), fundID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// =============================================================================
// TRANSACTION HANDLERS (bare transactions)
// =============================================================================

// ListTransactions returns all transactions, newest first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Store.ListTransactions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

func postingFromRequest(req TransactionRequest) (ledger.Posting, error) {
	if !req.Amount.IsPositive() {
		return ledger.Posting{}, ledger.Validationf("amount", "must be positive")
	}
	delta := req.Amount
	switch req.Type {
	case string(ledger.TxIncome):
	case string(ledger.TxExpense):
		delta = delta.Neg()
	default:
		return ledger.Posting{}, ledger.Validationf("type", "must be income or expense")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return ledger.Posting{}, ledger.Validationf("transaction_date", "must be YYYY-MM-DD")
	}
	return ledger.Posting{
		FundID:      ledger.FundID(req.FundID),
		Delta:       delta,
		Description: req.Description,
		Category:    req.Category,
		Date:        date,
	}, nil
}

// CreateTransaction records a bare income or expense against a fund.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := postingFromRequest(req)
	if err != nil {
		writeError(w, err)
		return
	}
	tx, err := h.Writer.Post(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// UpdateTransaction edits a bare transaction. The old balance effect is
// reversed before the new one lands; entity-owned transactions are rejected.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	old, err := h.Store.GetTransaction(r.Context(), ledger.TransactionID(idParam(r)))
	if err != nil {
		writeError(w, err)
		return
	}
	var req TransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := postingFromRequest(req)
	if err != nil {
		writeError(w, err)
		return
	}
	next, err := h.Writer.Amend(r.Context(), *old, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(next))
}

// DeleteTransaction deletes a bare transaction after reversing its effect.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Store.GetTransaction(r.Context(), ledger.TransactionID(idParam(r)))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Writer.Remove(r.Context(), *tx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers returns all members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListMembers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = MemberDTO{ID: string(m.ID), Name: m.Name, Email: m.Email}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateMember registers a contributor.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req MemberRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, ledger.Validationf("name", "is required"))
		return
	}
	id := ledger.MemberID(req.ID)
	if id == "" {
		id = ledger.MemberID(uuid.New().String())
	}
	m := ledger.Member{ID: id, Name: req.Name, Email: req.Email}
	if err := h.Store.SaveMember(r.Context(), m); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, MemberDTO{ID: string(m.ID), Name: m.Name, Email: m.Email})
}
