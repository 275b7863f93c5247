/*
Package billing processes bills and petty cash.

Bills are payable obligations tracked for visibility: toggling a bill
between pending and paid moves no money through the ledger, and deleting a
bill needs no reversal because nothing was ever posted. "Overdue" is a
derived display status computed from the due date; it is never persisted
(a stored overdue value arriving on input is normalized to pending).

Petty cash records are audit-only disbursement requests with no fund
linkage at all.
*/
package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stewardly/treasury/ledger"
)

// Store is what the processor needs from persistence.
type Store interface {
	ledger.BillStore
	ledger.PettyCashStore
	ledger.FundStore
}

// Processor drives bill and petty cash lifecycle.
type Processor struct {
	store Store
	log   *slog.Logger
}

func NewProcessor(store Store, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{store: store, log: log}
}

// =============================================================================
// BILLS
// =============================================================================

// BillInput carries the fields for creating or replacing a bill.
type BillInput struct {
	VendorName string
	Amount     decimal.Decimal
	DueDate    time.Time
	FundID     ledger.FundID
	Category   string
	Frequency  ledger.BillFrequency
	Status     ledger.BillStatus
}

func (in *BillInput) validate() error {
	if in.VendorName == "" {
		return ledger.Validationf("vendor_name", "is required")
	}
	if !in.Amount.IsPositive() {
		return ledger.Validationf("amount", "must be positive")
	}
	if in.DueDate.IsZero() {
		return ledger.Validationf("due_date", "is required")
	}
	switch in.Frequency {
	case "":
		in.Frequency = ledger.FreqOneTime
	case ledger.FreqOneTime, ledger.FreqMonthly, ledger.FreqQuarterly, ledger.FreqYearly:
	default:
		return ledger.Validationf("frequency",
			"must be one of: one-time, monthly, quarterly, yearly")
	}
	switch in.Status {
	case "", ledger.BillOverdue:
		// Overdue is derived, never stored; unset and overdue both land
		// as pending.
		in.Status = ledger.BillPending
	case ledger.BillPending, ledger.BillPaid:
	default:
		return ledger.Validationf("status", "must be pending or paid")
	}
	return nil
}

// CreateBill records a new bill. No ledger posting occurs.
func (p *Processor) CreateBill(ctx context.Context, in BillInput) (*ledger.Bill, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.FundID != "" {
		if _, err := p.store.GetFund(ctx, in.FundID); err != nil {
			return nil, err
		}
	}

	b := ledger.Bill{
		ID:         ledger.BillID(uuid.New().String()),
		VendorName: in.VendorName,
		Amount:     in.Amount,
		DueDate:    in.DueDate,
		FundID:     in.FundID,
		Category:   in.Category,
		Frequency:  in.Frequency,
		Status:     in.Status,
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.store.SaveBill(ctx, b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBill returns a single bill.
func (p *Processor) GetBill(ctx context.Context, id ledger.BillID) (*ledger.Bill, error) {
	return p.store.GetBill(ctx, id)
}

// ListBills returns all bills.
func (p *Processor) ListBills(ctx context.Context) ([]ledger.Bill, error) {
	return p.store.ListBills(ctx)
}

// UpdateBill replaces a bill's fields.
func (p *Processor) UpdateBill(ctx context.Context, id ledger.BillID, in BillInput) (*ledger.Bill, error) {
	b, err := p.store.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.FundID != "" && in.FundID != b.FundID {
		if _, err := p.store.GetFund(ctx, in.FundID); err != nil {
			return nil, err
		}
	}

	next := *b
	next.VendorName = in.VendorName
	next.Amount = in.Amount
	next.DueDate = in.DueDate
	next.FundID = in.FundID
	next.Category = in.Category
	next.Frequency = in.Frequency
	next.Status = in.Status
	if err := p.store.SaveBill(ctx, next); err != nil {
		return nil, err
	}
	return &next, nil
}

// ToggleBill flips a bill between pending and paid. No money moves.
func (p *Processor) ToggleBill(ctx context.Context, id ledger.BillID) (*ledger.Bill, error) {
	b, err := p.store.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *b
	if b.Status == ledger.BillPaid {
		next.Status = ledger.BillPending
	} else {
		next.Status = ledger.BillPaid
	}
	if err := p.store.SaveBill(ctx, next); err != nil {
		return nil, err
	}
	return &next, nil
}

// DeleteBill removes a bill outright. No reversal: nothing was posted.
func (p *Processor) DeleteBill(ctx context.Context, id ledger.BillID) error {
	return p.store.DeleteBill(ctx, id)
}

// NextDueDate returns the due date of the following billing cycle, or
// false for one-time bills.
func NextDueDate(b ledger.Bill) (time.Time, bool) {
	switch b.Frequency {
	case ledger.FreqMonthly:
		return b.DueDate.AddDate(0, 1, 0), true
	case ledger.FreqQuarterly:
		return b.DueDate.AddDate(0, 3, 0), true
	case ledger.FreqYearly:
		return b.DueDate.AddDate(1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// =============================================================================
// PETTY CASH
// =============================================================================

// PettyCashInput carries the fields for a petty cash record.
type PettyCashInput struct {
	Amount           decimal.Decimal
	Purpose          string
	Date             time.Time
	ApprovedBy       string
	ReceiptAvailable bool
}

func (in PettyCashInput) validate() error {
	if !in.Amount.IsPositive() {
		return ledger.Validationf("amount", "must be positive")
	}
	if in.Purpose == "" {
		return ledger.Validationf("purpose", "is required")
	}
	return nil
}

// CreatePettyCash records a disbursement request. Audit only: no fund is
// touched.
func (p *Processor) CreatePettyCash(ctx context.Context, in PettyCashInput) (*ledger.PettyCash, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	pc := ledger.PettyCash{
		ID:               ledger.PettyCashID(uuid.New().String()),
		Amount:           in.Amount,
		Purpose:          in.Purpose,
		Date:             date,
		ApprovedBy:       in.ApprovedBy,
		ReceiptAvailable: in.ReceiptAvailable,
		CreatedAt:        time.Now().UTC(),
	}
	if err := p.store.SavePettyCash(ctx, pc); err != nil {
		return nil, err
	}
	return &pc, nil
}

// ListPettyCash returns all petty cash records.
func (p *Processor) ListPettyCash(ctx context.Context) ([]ledger.PettyCash, error) {
	return p.store.ListPettyCash(ctx)
}

// UpdatePettyCash replaces a petty cash record's fields.
func (p *Processor) UpdatePettyCash(ctx context.Context, id ledger.PettyCashID, in PettyCashInput) (*ledger.PettyCash, error) {
	pc, err := p.store.GetPettyCash(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	next := *pc
	next.Amount = in.Amount
	next.Purpose = in.Purpose
	if !in.Date.IsZero() {
		next.Date = in.Date
	}
	next.ApprovedBy = in.ApprovedBy
	next.ReceiptAvailable = in.ReceiptAvailable
	if err := p.store.SavePettyCash(ctx, next); err != nil {
		return nil, err
	}
	return &next, nil
}

// DeletePettyCash removes a petty cash record.
func (p *Processor) DeletePettyCash(ctx context.Context, id ledger.PettyCashID) error {
	return p.store.DeletePettyCash(ctx, id)
}
