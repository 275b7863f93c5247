/*
advances.go - HTTP handlers for advances and repayments

ENDPOINTS:
  GET    /api/advances         List advances
  POST   /api/advances         action=create disburses, action=repay repays
  GET    /api/advances/{id}    Get one advance
  PUT    /api/advances/{id}    Edit (amount/fund only while outstanding)
  DELETE /api/advances/{id}    Delete (undisbursed net restored)

The POST endpoint multiplexes on the "action" field: an empty action means
create. A repay carries the advance id and repayment_amount.
*/
package api

import (
	"net/http"

	"github.com/stewardly/treasury/advance"
	"github.com/stewardly/treasury/ledger"
)

// ListAdvances returns all advances.
func (h *Handler) ListAdvances(w http.ResponseWriter, r *http.Request) {
	advances, err := h.Advances.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]AdvanceDTO, len(advances))
	for i, a := range advances {
		dtos[i] = toAdvanceDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PostAdvance creates an advance or records a repayment, depending on the
// action field.
func (h *Handler) PostAdvance(w http.ResponseWriter, r *http.Request) {
	var req AdvanceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	switch req.Action {
	case "", "create":
		h.createAdvance(w, r, req)
	case "repay":
		h.repayAdvance(w, r, req)
	default:
		writeError(w, ledger.Validationf("action", "must be create or repay"))
	}
}

func (h *Handler) createAdvance(w http.ResponseWriter, r *http.Request, req AdvanceRequest) {
	advanceDate, err := parseDate(req.AdvanceDate)
	if err != nil {
		writeError(w, ledger.Validationf("advance_date", "must be YYYY-MM-DD"))
		return
	}
	returnDate, err := parseDate(req.ExpectedReturnDate)
	if err != nil {
		writeError(w, ledger.Validationf("expected_return_date", "must be YYYY-MM-DD"))
		return
	}

	a, err := h.Advances.Create(r.Context(), advance.CreateInput{
		RecipientName:      req.RecipientName,
		Amount:             req.Amount,
		Purpose:            req.Purpose,
		AdvanceDate:        advanceDate,
		ExpectedReturnDate: returnDate,
		FundID:             ledger.FundID(req.FundID),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdvanceDTO(*a))
}

func (h *Handler) repayAdvance(w http.ResponseWriter, r *http.Request, req AdvanceRequest) {
	if req.ID == "" {
		writeError(w, ledger.Validationf("id", "is required for repay"))
		return
	}
	a, err := h.Advances.Repay(r.Context(), ledger.AdvanceID(req.ID), req.RepaymentAmount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdvanceDTO(*a))
}

// GetAdvance returns one advance.
func (h *Handler) GetAdvance(w http.ResponseWriter, r *http.Request) {
	a, err := h.Advances.Get(r.Context(), ledger.AdvanceID(idParam(r)))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdvanceDTO(*a))
}

// UpdateAdvance edits an advance.
func (h *Handler) UpdateAdvance(w http.ResponseWriter, r *http.Request) {
	var req AdvanceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := advance.UpdateInput{}
	if req.RecipientName != "" {
		in.RecipientName = &req.RecipientName
	}
	if !req.Amount.IsZero() {
		in.Amount = &req.Amount
	}
	if req.Purpose != "" {
		in.Purpose = &req.Purpose
	}
	if req.FundID != "" {
		fundID := ledger.FundID(req.FundID)
		in.FundID = &fundID
	}
	if req.AdvanceDate != "" {
		d, err := parseDate(req.AdvanceDate)
		if err != nil {
			writeError(w, ledger.Validationf("advance_date", "must be YYYY-MM-DD"))
			return
		}
		in.AdvanceDate = &d
	}
	if req.ExpectedReturnDate != "" {
		d, err := parseDate(req.ExpectedReturnDate)
		if err != nil {
			writeError(w, ledger.Validationf("expected_return_date", "must be YYYY-MM-DD"))
			return
		}
		in.ExpectedReturnDate = &d
	}

	a, err := h.Advances.Update(r.Context(), ledger.AdvanceID(idParam(r)), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdvanceDTO(*a))
}

// DeleteAdvance removes an advance and its linked transactions.
func (h *Handler) DeleteAdvance(w http.ResponseWriter, r *http.Request) {
	if err := h.Advances.Delete(r.Context(), ledger.AdvanceID(idParam(r))); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
