/*
Package ledger is the fund-balance consistency core.

PURPOSE:
  This package owns the rules that keep every fund's stored balance equal to
  the net effect of every income/expense event ever recorded against it. It
  defines the data model (funds, transactions, references), the Writer — the
  only component allowed to change a balance — and the Reversal calculator
  used before editing or deleting historical effects.

KEY CONCEPTS IN THIS FILE (types.go):
  - Fund: A named pool of money with a running balance
  - Transaction: One signed balance effect on one fund, with audit context
  - Reference: A tagged link to the higher-level entity that caused a
    transaction (offering, advance, repayment, bill)
  - Posting: The input to Writer.Post — a signed delta plus audit fields

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64 arithmetic
  2. Type safety: distinct ID types so a fund ID can't be passed as a
     transaction ID
  3. Ownership: references are built through per-kind constructors, so a
     processor can only tag transactions with the entity kind it owns
  4. Single writer: only Writer.Post changes balances

SEE ALSO:
  - writer.go: The posting path (balance delta + audit row)
  - reversal.go: Computing the undo of a previous effect
  - store.go: Persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type FundID string
type TransactionID string
type OfferingID string
type AdvanceID string
type BillID string
type MemberID string
type PettyCashID string

// =============================================================================
// FUND - Named pool of money
// =============================================================================

// Fund is the single source of truth for "how much money is in X right now".
// Balance is mutated only through Writer.Post; never written directly.
type Fund struct {
	ID          FundID
	Name        string
	Description string
	Balance     decimal.Decimal
	CreatedAt   time.Time
}

// =============================================================================
// REFERENCE - Tagged link to the source entity of a transaction
// =============================================================================

type RefKind string

const (
	RefNone             RefKind = "none"
	RefOffering         RefKind = "offering"
	RefAdvance          RefKind = "advance"
	RefAdvanceRepayment RefKind = "advance_repayment"
	RefBill             RefKind = "bill"
)

// Reference identifies which higher-level entity caused a transaction.
// Construct through the per-kind helpers below; the zero value is RefNone.
type Reference struct {
	Kind RefKind
	ID   string
}

func NoReference() Reference             { return Reference{Kind: RefNone} }
func OfferingRef(id OfferingID) Reference { return Reference{Kind: RefOffering, ID: string(id)} }
func AdvanceRef(id AdvanceID) Reference   { return Reference{Kind: RefAdvance, ID: string(id)} }
func RepaymentRef(id AdvanceID) Reference {
	return Reference{Kind: RefAdvanceRepayment, ID: string(id)}
}
func BillRef(id BillID) Reference { return Reference{Kind: RefBill, ID: string(id)} }

// IsZero reports whether the reference points at nothing.
func (r Reference) IsZero() bool { return r.Kind == "" || r.Kind == RefNone }

// Owns reports whether the reference belongs to the given advance, covering
// both the disbursement and its repayments.
func (r Reference) OwnsAdvance(id AdvanceID) bool {
	return (r.Kind == RefAdvance || r.Kind == RefAdvanceRepayment) && r.ID == string(id)
}

// =============================================================================
// TRANSACTION - One signed balance effect on one fund
// =============================================================================

type TransactionType string

const (
	TxIncome  TransactionType = "income"
	TxExpense TransactionType = "expense"
)

// Transaction is the canonical record of a single balance change. Amount is
// always positive; the sign comes from Type. A transaction with a non-none
// reference is owned by its source entity and may only be changed through
// the processor owning that reference kind.
type Transaction struct {
	ID          TransactionID
	Type        TransactionType
	Amount      decimal.Decimal
	FundID      FundID
	Description string
	Category    string
	Date        time.Time
	Reference   Reference

	// IdempotencyKey guards against double-posting on retries. Optional.
	IdempotencyKey string

	CreatedAt time.Time
}

// Signed returns the balance effect: +Amount for income, -Amount for expense.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TxExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// typeForDelta maps a signed delta to the transaction type it records as.
func typeForDelta(delta decimal.Decimal) TransactionType {
	if delta.IsNegative() {
		return TxExpense
	}
	return TxIncome
}

// =============================================================================
// POSTING - Input to Writer.Post
// =============================================================================

// Posting describes one balance delta to apply and the audit context to
// record with it. Delta is signed: positive credits the fund, negative
// debits it.
type Posting struct {
	FundID         FundID
	Delta          decimal.Decimal
	Description    string
	Category       string
	Date           time.Time
	Reference      Reference
	IdempotencyKey string
}

// =============================================================================
// SOURCE ENTITIES
// =============================================================================

// Offering is a single incoming amount split across one or more funds.
// Allocations are keyed by fund NAME, not ID, for historical display: a
// renamed or re-created fund must not rewrite past offerings.
type Offering struct {
	ID          OfferingID
	Amount      decimal.Decimal
	Type        string
	Notes       string
	ServiceDate time.Time
	Allocations map[string]decimal.Decimal
	CreatedAt   time.Time
}

// Member is a contributor who can be linked to offerings. Exactly one member
// is associated with each offering.
type Member struct {
	ID    MemberID
	Name  string
	Email string
}

type AdvanceStatus string

const (
	AdvanceOutstanding AdvanceStatus = "outstanding"
	AdvancePartial     AdvanceStatus = "partial"
	AdvanceReturned    AdvanceStatus = "returned"
)

// Advance is money paid out ahead of time and repaid in installments.
// Invariants: 0 <= AmountReturned <= Amount, and Status is a pure function
// of (Amount, AmountReturned) — see AdvanceStatusFor.
type Advance struct {
	ID                 AdvanceID
	RecipientName      string
	Amount             decimal.Decimal
	Purpose            string
	AdvanceDate        time.Time
	ExpectedReturnDate time.Time
	Status             AdvanceStatus
	FundID             FundID
	AmountReturned     decimal.Decimal
	CreatedAt          time.Time
}

// Outstanding returns the amount not yet repaid.
func (a Advance) Outstanding() decimal.Decimal {
	return a.Amount.Sub(a.AmountReturned)
}

// AdvanceStatusFor derives the repayment status from cumulative history.
// This is the only place the status rules live.
func AdvanceStatusFor(amount, returned decimal.Decimal) AdvanceStatus {
	switch {
	case returned.GreaterThanOrEqual(amount):
		return AdvanceReturned
	case returned.IsPositive():
		return AdvancePartial
	default:
		return AdvanceOutstanding
	}
}

type BillStatus string

const (
	BillPending BillStatus = "pending"
	BillPaid    BillStatus = "paid"
	// BillOverdue exists only as a derived display status. It is never
	// persisted; see Bill.EffectiveStatus.
	BillOverdue BillStatus = "overdue"
)

type BillFrequency string

const (
	FreqOneTime   BillFrequency = "one-time"
	FreqMonthly   BillFrequency = "monthly"
	FreqQuarterly BillFrequency = "quarterly"
	FreqYearly    BillFrequency = "yearly"
)

// Bill is a payable obligation tracked for visibility. Marking a bill paid
// moves no money through the ledger.
type Bill struct {
	ID         BillID
	VendorName string
	Amount     decimal.Decimal
	DueDate    time.Time
	FundID     FundID
	Category   string
	Frequency  BillFrequency
	Status     BillStatus
	CreatedAt  time.Time
}

// EffectiveStatus computes the display status as of now: a pending bill past
// its due date reads as overdue. The persisted status stays pending/paid.
func (b Bill) EffectiveStatus(now time.Time) BillStatus {
	if b.Status != BillPaid && b.DueDate.Before(truncateDay(now)) {
		return BillOverdue
	}
	return b.Status
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// PettyCash is a lightweight disbursement request kept for audit. It has no
// fund linkage and no ledger effect.
type PettyCash struct {
	ID               PettyCashID
	Amount           decimal.Decimal
	Purpose          string
	Date             time.Time
	ApprovedBy       string
	ReceiptAvailable bool
	CreatedAt        time.Time
}
