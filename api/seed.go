/*
seed.go - Demo data loader

POST /api/seed populates an empty database with a small, recognizable data
set: three funds, two members, an offering split across two funds, an
outstanding advance, and a couple of bills. Useful for local development
and frontend work; everything flows through the normal processors so the
balance invariant holds on the seeded data too.
*/
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stewardly/treasury/advance"
	"github.com/stewardly/treasury/billing"
	"github.com/stewardly/treasury/ledger"
	"github.com/stewardly/treasury/offering"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Seed loads the demo data set. Refuses to run against a database that
// already has funds.
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	existing, err := h.Store.ListFunds(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(existing) > 0 {
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "database already has funds; seed only runs on an empty database"})
		return
	}

	now := time.Now().UTC()
	funds := []ledger.Fund{
		{ID: "general", Name: "General Fund", Description: "Day-to-day operations", CreatedAt: now},
		{ID: "building", Name: "Building Fund", Description: "Facility maintenance and expansion", CreatedAt: now},
		{ID: "missions", Name: "Missions Fund", Description: "Outreach support", CreatedAt: now},
	}
	for _, f := range funds {
		if err := h.Store.SaveFund(ctx, f); err != nil {
			writeError(w, err)
			return
		}
	}

	openings := map[ledger.FundID]decimal.Decimal{
		"general":  dec("2500.00"),
		"building": dec("10000.00"),
		"missions": dec("800.00"),
	}
	for fundID, amount := range openings {
		if _, err := h.Writer.Post(ctx, ledger.Posting{
			FundID:         fundID,
			Delta:          amount,
			Description:    "Opening balance",
			Category:       "opening",
			IdempotencyKey: fmt.Sprintf("seed-opening-%s", fundID),
		}); err != nil {
			writeError(w, err)
			return
		}
	}

	members := []ledger.Member{
		{ID: "m-ade", Name: "Ade Okafor", Email: "ade@example.org"},
		{ID: "m-june", Name: "June Park", Email: "june@example.org"},
	}
	for _, m := range members {
		if err := h.Store.SaveMember(ctx, m); err != nil {
			writeError(w, err)
			return
		}
	}

	if _, err := h.Offerings.Create(ctx, offering.CreateInput{
		Amount:      dec("500.00"),
		Type:        "tithe",
		Notes:       "Sunday service",
		ServiceDate: now.AddDate(0, 0, -7),
		Allocations: map[ledger.FundID]decimal.Decimal{
			"general":  dec("300.00"),
			"building": dec("200.00"),
		},
		MemberID: "m-ade",
	}); err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.Advances.Create(ctx, advance.CreateInput{
		RecipientName:      "June Park",
		Amount:             dec("400.00"),
		Purpose:            "Conference travel",
		AdvanceDate:        now.AddDate(0, 0, -3),
		ExpectedReturnDate: now.AddDate(0, 1, 0),
		FundID:             "general",
	}); err != nil {
		writeError(w, err)
		return
	}

	bills := []billing.BillInput{
		{VendorName: "City Power", Amount: dec("180.50"), DueDate: now.AddDate(0, 0, 10),
			FundID: "general", Category: "utilities", Frequency: ledger.FreqMonthly},
		{VendorName: "SafeRoof Ltd", Amount: dec("1200.00"), DueDate: now.AddDate(0, 0, -5),
			FundID: "building", Category: "maintenance", Frequency: ledger.FreqOneTime},
	}
	for _, in := range bills {
		if _, err := h.Billing.CreateBill(ctx, in); err != nil {
			writeError(w, err)
			return
		}
	}

	if _, err := h.Billing.CreatePettyCash(ctx, billing.PettyCashInput{
		Amount:     dec("45.00"),
		Purpose:    "Cleaning supplies",
		ApprovedBy: "Ade Okafor",
	}); err != nil {
		writeError(w, err)
		return
	}

	h.log.Info("demo data seeded", "funds", len(funds), "members", len(members))
	writeJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}
