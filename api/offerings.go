/*
offerings.go - HTTP handlers for offerings

ENDPOINTS:
  GET    /api/offerings        List offerings
  POST   /api/offerings        Record an offering (splits across funds)
  GET    /api/offerings/{id}   Get one offering with its contributor
  PUT    /api/offerings/{id}   Edit (old allocations reversed first)
  DELETE /api/offerings/{id}   Delete (funds restored exactly)

Allocations arrive keyed by fund ID and must sum to the offering amount;
the processor persists them keyed by fund name.
*/
package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/stewardly/treasury/ledger"
	"github.com/stewardly/treasury/offering"
)

func allocationsByFundID(in map[string]decimal.Decimal) map[ledger.FundID]decimal.Decimal {
	if in == nil {
		return nil
	}
	out := make(map[ledger.FundID]decimal.Decimal, len(in))
	for id, amount := range in {
		out[ledger.FundID(id)] = amount
	}
	return out
}

// ListOfferings returns all offerings with their member links.
func (h *Handler) ListOfferings(w http.ResponseWriter, r *http.Request) {
	offerings, err := h.Offerings.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]OfferingDTO, len(offerings))
	for i, o := range offerings {
		member, err := h.Store.GetOfferingMember(r.Context(), o.ID)
		if err != nil && !ledger.IsNotFound(err) {
			writeError(w, err)
			return
		}
		dtos[i] = toOfferingDTO(o, member)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateOffering records an offering and credits every allocated fund.
func (h *Handler) CreateOffering(w http.ResponseWriter, r *http.Request) {
	var req OfferingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	serviceDate, err := parseDate(req.ServiceDate)
	if err != nil {
		writeError(w, ledger.Validationf("service_date", "must be YYYY-MM-DD"))
		return
	}

	o, err := h.Offerings.Create(r.Context(), offering.CreateInput{
		Amount:      req.Amount,
		Type:        req.Type,
		Notes:       req.Notes,
		ServiceDate: serviceDate,
		Allocations: allocationsByFundID(req.Allocations),
		MemberID:    ledger.MemberID(req.MemberID),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOfferingDTO(*o, ledger.MemberID(req.MemberID)))
}

// GetOffering returns one offering with its contributor.
func (h *Handler) GetOffering(w http.ResponseWriter, r *http.Request) {
	o, member, err := h.Offerings.Get(r.Context(), ledger.OfferingID(idParam(r)))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfferingDTO(*o, member))
}

// UpdateOffering edits an offering. Changed allocations are reversed before
// the new split is applied.
func (h *Handler) UpdateOffering(w http.ResponseWriter, r *http.Request) {
	var req OfferingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	serviceDate, err := parseDate(req.ServiceDate)
	if err != nil {
		writeError(w, ledger.Validationf("service_date", "must be YYYY-MM-DD"))
		return
	}

	in := offering.UpdateInput{
		Allocations: allocationsByFundID(req.Allocations),
		MemberID:    ledger.MemberID(req.MemberID),
	}
	if !req.Amount.IsZero() {
		in.Amount = &req.Amount
	}
	if req.Type != "" {
		in.Type = &req.Type
	}
	if req.Notes != "" {
		in.Notes = &req.Notes
	}
	if !serviceDate.IsZero() {
		in.ServiceDate = &serviceDate
	}

	id := ledger.OfferingID(idParam(r))
	o, err := h.Offerings.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	member, err := h.Store.GetOfferingMember(r.Context(), id)
	if err != nil && !ledger.IsNotFound(err) {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfferingDTO(*o, member))
}

// DeleteOffering removes an offering, restoring every touched fund.
func (h *Handler) DeleteOffering(w http.ResponseWriter, r *http.Request) {
	if err := h.Offerings.Delete(r.Context(), ledger.OfferingID(idParam(r))); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
