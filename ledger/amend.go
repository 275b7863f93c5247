/*
amend.go - Editing and deleting bare transactions

A bare transaction (reference kind none) may be edited or deleted directly.
Both operations must reverse the previously applied balance delta before
the new state lands: undo -old_signed, then apply +new_signed against the
(possibly different) fund. Reversal first, so that when old and new target
the same fund the balance never transiently double-counts.

Transactions owned by a source entity (offering, advance, bill) are
rejected here; they change only through their owning processor.
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stewardly/treasury/metrics"
)

// Amend rewrites a bare transaction: the old balance effect is reversed,
// the new one applied, and the row updated in place. Old and new may
// target different funds.
func (w *Writer) Amend(ctx context.Context, old Transaction, p Posting) (Transaction, error) {
	if !old.Reference.IsZero() {
		return Transaction{}, ErrReferenceOwned
	}
	if p.Delta.IsZero() {
		return Transaction{}, Validationf("amount", "must be non-zero")
	}
	if p.FundID == "" {
		p.FundID = old.FundID
	}

	undo := TransactionReversal(old)
	if err := w.funds.ApplyDelta(ctx, old.FundID, undo.Delta); err != nil {
		return Transaction{}, err
	}

	if err := w.funds.ApplyDelta(ctx, p.FundID, p.Delta); err != nil {
		if compErr := w.funds.ApplyDelta(ctx, old.FundID, undo.Delta.Neg()); compErr != nil {
			return Transaction{}, w.inconsistency(old.FundID, undo.Delta, old.Reference, "amend-compensation", compErr)
		}
		return Transaction{}, err
	}

	next := old
	next.Type = typeForDelta(p.Delta)
	next.Amount = p.Delta.Abs()
	next.FundID = p.FundID
	next.Description = p.Description
	next.Category = p.Category
	if !p.Date.IsZero() {
		next.Date = p.Date
	}

	if err := w.txs.UpdateTransaction(ctx, next); err != nil {
		// Put both balances back the way they were.
		if compErr := w.funds.ApplyDelta(ctx, p.FundID, p.Delta.Neg()); compErr != nil {
			return Transaction{}, w.inconsistency(p.FundID, p.Delta, old.Reference, "amend-compensation", compErr)
		}
		if compErr := w.funds.ApplyDelta(ctx, old.FundID, undo.Delta.Neg()); compErr != nil {
			return Transaction{}, w.inconsistency(old.FundID, undo.Delta, old.Reference, "amend-compensation", compErr)
		}
		return Transaction{}, err
	}
	return next, nil
}

// Remove deletes a bare transaction, reversing its balance effect first.
func (w *Writer) Remove(ctx context.Context, tx Transaction) error {
	if !tx.Reference.IsZero() {
		return ErrReferenceOwned
	}

	undo := TransactionReversal(tx)
	if err := w.funds.ApplyDelta(ctx, tx.FundID, undo.Delta); err != nil {
		return err
	}
	if err := w.txs.DeleteTransaction(ctx, tx.ID); err != nil {
		if compErr := w.funds.ApplyDelta(ctx, tx.FundID, undo.Delta.Neg()); compErr != nil {
			return w.inconsistency(tx.FundID, undo.Delta, tx.Reference, "remove-compensation", compErr)
		}
		return err
	}
	return nil
}

func (w *Writer) inconsistency(fundID FundID, delta decimal.Decimal, ref Reference, stage string, cause error) error {
	inc := &InconsistencyError{
		FundID:    fundID,
		Delta:     delta,
		Reference: ref,
		Stage:     stage,
		Cause:     cause,
	}
	w.log.Error("ledger inconsistency: balance and audit trail disagree",
		"fund_id", fundID,
		"delta", delta.String(),
		"stage", stage,
		"error", cause,
	)
	metrics.Inconsistencies.Inc()
	return inc
}
