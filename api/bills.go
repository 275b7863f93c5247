/*
bills.go - HTTP handlers for bills and petty cash

ENDPOINTS:
  GET    /api/bills            List bills (status shown as derived)
  POST   /api/bills            Create bill
  PUT    /api/bills/{id}       Edit bill
  POST   /api/bills/{id}/toggle Toggle pending <-> paid
  DELETE /api/bills/{id}       Delete bill

  GET    /api/pettycash        List petty cash records
  POST   /api/pettycash        Record a disbursement request
  PUT    /api/pettycash/{id}   Edit record
  DELETE /api/pettycash/{id}   Delete record

Bills and petty cash never move money; no ledger postings occur here. The
status field in responses is the derived one, so a pending bill past its
due date reads "overdue" without ever being stored that way.
*/
package api

import (
	"net/http"
	"time"

	"github.com/stewardly/treasury/billing"
	"github.com/stewardly/treasury/ledger"
)

func (h *Handler) toBillDTO(b ledger.Bill, now time.Time) BillDTO {
	dto := BillDTO{
		ID:         string(b.ID),
		VendorName: b.VendorName,
		Amount:     b.Amount,
		DueDate:    b.DueDate.Format(dateLayout),
		FundID:     string(b.FundID),
		Category:   b.Category,
		Frequency:  string(b.Frequency),
		Status:     string(b.EffectiveStatus(now)),
	}
	if next, ok := billing.NextDueDate(b); ok {
		dto.NextDue = next.Format(dateLayout)
	}
	return dto
}

func billInputFromRequest(req BillRequest) (billing.BillInput, error) {
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		return billing.BillInput{}, ledger.Validationf("due_date", "must be YYYY-MM-DD")
	}
	return billing.BillInput{
		VendorName: req.VendorName,
		Amount:     req.Amount,
		DueDate:    dueDate,
		FundID:     ledger.FundID(req.FundID),
		Category:   req.Category,
		Frequency:  ledger.BillFrequency(req.Frequency),
		Status:     ledger.BillStatus(req.Status),
	}, nil
}

// ListBills returns all bills with derived statuses.
func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := h.Billing.ListBills(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	now := time.Now()
	dtos := make([]BillDTO, len(bills))
	for i, b := range bills {
		dtos[i] = h.toBillDTO(b, now)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBill records a new bill.
func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var req BillRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := billInputFromRequest(req)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := h.Billing.CreateBill(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toBillDTO(*b, time.Now()))
}

// UpdateBill edits a bill.
func (h *Handler) UpdateBill(w http.ResponseWriter, r *http.Request) {
	var req BillRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := billInputFromRequest(req)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := h.Billing.UpdateBill(r.Context(), ledger.BillID(idParam(r)), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toBillDTO(*b, time.Now()))
}

// ToggleBill flips a bill between pending and paid.
func (h *Handler) ToggleBill(w http.ResponseWriter, r *http.Request) {
	b, err := h.Billing.ToggleBill(r.Context(), ledger.BillID(idParam(r)))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toBillDTO(*b, time.Now()))
}

// DeleteBill removes a bill.
func (h *Handler) DeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := h.Billing.DeleteBill(r.Context(), ledger.BillID(idParam(r))); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// PETTY CASH
// =============================================================================

func toPettyCashDTO(pc ledger.PettyCash) PettyCashDTO {
	return PettyCashDTO{
		ID:               string(pc.ID),
		Amount:           pc.Amount,
		Purpose:          pc.Purpose,
		Date:             pc.Date.Format(dateLayout),
		ApprovedBy:       pc.ApprovedBy,
		ReceiptAvailable: pc.ReceiptAvailable,
	}
}

func pettyCashInputFromRequest(req PettyCashRequest) (billing.PettyCashInput, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return billing.PettyCashInput{}, ledger.Validationf("transaction_date", "must be YYYY-MM-DD")
	}
	return billing.PettyCashInput{
		Amount:           req.Amount,
		Purpose:          req.Purpose,
		Date:             date,
		ApprovedBy:       req.ApprovedBy,
		ReceiptAvailable: req.ReceiptAvailable,
	}, nil
}

// ListPettyCash returns all petty cash records.
func (h *Handler) ListPettyCash(w http.ResponseWriter, r *http.Request) {
	records, err := h.Billing.ListPettyCash(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]PettyCashDTO, len(records))
	for i, pc := range records {
		dtos[i] = toPettyCashDTO(pc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePettyCash records a disbursement request.
func (h *Handler) CreatePettyCash(w http.ResponseWriter, r *http.Request) {
	var req PettyCashRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := pettyCashInputFromRequest(req)
	if err != nil {
		writeError(w, err)
		return
	}
	pc, err := h.Billing.CreatePettyCash(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPettyCashDTO(*pc))
}

// UpdatePettyCash edits a petty cash record.
func (h *Handler) UpdatePettyCash(w http.ResponseWriter, r *http.Request) {
	var req PettyCashRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := pettyCashInputFromRequest(req)
	if err != nil {
		writeError(w, err)
		return
	}
	pc, err := h.Billing.UpdatePettyCash(r.Context(), ledger.PettyCashID(idParam(r)), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPettyCashDTO(*pc))
}

// DeletePettyCash removes a petty cash record.
func (h *Handler) DeletePettyCash(w http.ResponseWriter, r *http.Request) {
	if err := h.Billing.DeletePettyCash(r.Context(), ledger.PettyCashID(idParam(r))); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
