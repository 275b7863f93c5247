/*
store.go - Persistence interfaces between the ledger core and the database

PURPOSE:
  Defines what the ledger and its processors need from storage without
  binding to a database. Two implementations exist:
  - store/sqlite: production store
  - store/memory: in-memory store for tests

BALANCE DISCIPLINE:
  Fund balances are changed only through ApplyDelta or Post. Both evaluate
  balance = balance + delta AT THE STORE, never read-compute-write in the
  application tier. Two concurrent postings against the same fund therefore
  cannot lose an update.

ATOMIC POSTING:
  Stores that can couple the balance delta and the audit row in one
  transactional envelope implement AtomicPoster. The Writer prefers that
  path; otherwise it falls back to delta-then-insert with best-effort
  compensation (see writer.go).
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FUNDS
// =============================================================================

type FundStore interface {
	SaveFund(ctx context.Context, f Fund) error
	GetFund(ctx context.Context, id FundID) (*Fund, error)
	GetFundByName(ctx context.Context, name string) (*Fund, error)
	ListFunds(ctx context.Context) ([]Fund, error)

	// ApplyDelta executes balance = balance + delta server-side.
	// Returns ErrFundNotFound if the fund does not exist and an
	// InsufficientFundsError if the result would be negative. The check and
	// the update are one atomic operation.
	ApplyDelta(ctx context.Context, id FundID, delta decimal.Decimal) error
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionStore interface {
	// InsertTransaction persists the audit row. Returns ErrDuplicatePosting
	// if the idempotency key was already recorded.
	InsertTransaction(ctx context.Context, tx Transaction) error

	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)
	UpdateTransaction(ctx context.Context, tx Transaction) error
	DeleteTransaction(ctx context.Context, id TransactionID) error

	ListTransactions(ctx context.Context) ([]Transaction, error)
	ListTransactionsByFund(ctx context.Context, fundID FundID) ([]Transaction, error)
	ListTransactionsByReference(ctx context.Context, ref Reference) ([]Transaction, error)

	// DeleteTransactionsByAdvance removes the disbursement and every
	// repayment row of an advance. Used when an advance is deleted outright.
	DeleteTransactionsByAdvance(ctx context.Context, id AdvanceID) error
	DeleteTransactionsByReference(ctx context.Context, ref Reference) error
}

// AtomicPoster couples the balance delta and the audit row in a single
// transactional envelope: both commit or neither does. Implemented by the
// sqlite store.
type AtomicPoster interface {
	// PostAtomic applies tx.Signed() to tx.FundID and inserts tx, atomically.
	// Error semantics match ApplyDelta + InsertTransaction.
	PostAtomic(ctx context.Context, tx Transaction) error
}

// =============================================================================
// SOURCE ENTITY STORES
// =============================================================================

type OfferingStore interface {
	SaveOffering(ctx context.Context, o Offering) error
	GetOffering(ctx context.Context, id OfferingID) (*Offering, error)
	ListOfferings(ctx context.Context) ([]Offering, error)
	DeleteOffering(ctx context.Context, id OfferingID) error

	// LinkMember associates exactly one contributor with an offering.
	// A second link for the same offering fails with ErrDuplicateMemberLink.
	LinkMember(ctx context.Context, id OfferingID, member MemberID) error
	UnlinkMember(ctx context.Context, id OfferingID) error
	GetOfferingMember(ctx context.Context, id OfferingID) (MemberID, error)
}

type AdvanceStore interface {
	SaveAdvance(ctx context.Context, a Advance) error
	GetAdvance(ctx context.Context, id AdvanceID) (*Advance, error)
	ListAdvances(ctx context.Context) ([]Advance, error)
	DeleteAdvance(ctx context.Context, id AdvanceID) error
}

type BillStore interface {
	SaveBill(ctx context.Context, b Bill) error
	GetBill(ctx context.Context, id BillID) (*Bill, error)
	ListBills(ctx context.Context) ([]Bill, error)
	DeleteBill(ctx context.Context, id BillID) error
}

type PettyCashStore interface {
	SavePettyCash(ctx context.Context, p PettyCash) error
	GetPettyCash(ctx context.Context, id PettyCashID) (*PettyCash, error)
	ListPettyCash(ctx context.Context) ([]PettyCash, error)
	DeletePettyCash(ctx context.Context, id PettyCashID) error
}

type MemberStore interface {
	SaveMember(ctx context.Context, m Member) error
	GetMember(ctx context.Context, id MemberID) (*Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
}

// Store is the full persistence surface the server wires together.
type Store interface {
	FundStore
	TransactionStore
	OfferingStore
	AdvanceStore
	BillStore
	PettyCashStore
	MemberStore
}
