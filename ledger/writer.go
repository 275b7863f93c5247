/*
writer.go - The only path by which fund balances change

PURPOSE:
  Writer.Post applies one signed balance delta to one fund and records the
  transaction that explains it. Every processor (offerings, advances, bare
  transactions) funds its effects through here; nothing else touches
  balances.

TWO POSTING PATHS:
  1. Atomic (preferred): the store implements AtomicPoster and commits the
     balance delta and the audit row in one envelope. No partial-failure
     window exists.
  2. Compensated: the store only offers ApplyDelta + InsertTransaction. If
     the audit insert fails after the delta committed, the Writer re-applies
     the opposite delta. If THAT fails too, the fund balance has changed
     with no audit row - the Writer returns an InconsistencyError, logs it
     at Error level, and bumps the inconsistency counter. This error must
     reach operators; it is never folded into a generic failure.

IDEMPOTENCY:
  Postings may carry an idempotency key. A replay with a key already
  recorded fails with ErrDuplicatePosting before any balance effect, so a
  retried create cannot double a fund.
*/
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stewardly/treasury/metrics"
)

// Writer posts balance deltas and their audit rows. Construct with NewWriter.
type Writer struct {
	funds FundStore
	txs   TransactionStore
	log   *slog.Logger
}

func NewWriter(funds FundStore, txs TransactionStore, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{funds: funds, txs: txs, log: log}
}

// Post applies p.Delta to p.FundID and records the transaction.
// Delta must be non-zero. Returns the recorded transaction.
func (w *Writer) Post(ctx context.Context, p Posting) (Transaction, error) {
	if p.Delta.IsZero() {
		return Transaction{}, Validationf("amount", "must be non-zero")
	}
	if p.FundID == "" {
		return Transaction{}, Validationf("fund_id", "is required")
	}

	date := p.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	ref := p.Reference
	if ref.Kind == "" {
		ref = NoReference()
	}

	tx := Transaction{
		ID:             TransactionID(uuid.New().String()),
		Type:           typeForDelta(p.Delta),
		Amount:         p.Delta.Abs(),
		FundID:         p.FundID,
		Description:    p.Description,
		Category:       p.Category,
		Date:           date,
		Reference:      ref,
		IdempotencyKey: p.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}

	if ap, ok := w.funds.(AtomicPoster); ok {
		if err := ap.PostAtomic(ctx, tx); err != nil {
			return Transaction{}, err
		}
		metrics.Postings.WithLabelValues(string(ref.Kind)).Inc()
		return tx, nil
	}

	return w.postCompensated(ctx, tx)
}

// postCompensated is the fallback for stores without an atomic envelope:
// apply the delta, insert the row, undo the delta if the insert fails.
func (w *Writer) postCompensated(ctx context.Context, tx Transaction) (Transaction, error) {
	delta := tx.Signed()

	if err := w.funds.ApplyDelta(ctx, tx.FundID, delta); err != nil {
		return Transaction{}, err
	}

	if err := w.txs.InsertTransaction(ctx, tx); err != nil {
		metrics.Compensations.Inc()
		if compErr := w.funds.ApplyDelta(ctx, tx.FundID, delta.Neg()); compErr != nil {
			inc := &InconsistencyError{
				FundID:    tx.FundID,
				Delta:     delta,
				Reference: tx.Reference,
				Stage:     "compensation",
				Cause:     compErr,
			}
			w.log.Error("ledger inconsistency: balance changed with no audit row",
				"fund_id", tx.FundID,
				"delta", delta.String(),
				"ref_kind", tx.Reference.Kind,
				"ref_id", tx.Reference.ID,
				"insert_error", err,
				"compensation_error", compErr,
			)
			metrics.Inconsistencies.Inc()
			return Transaction{}, inc
		}
		w.log.Warn("posting compensated after audit-row failure",
			"fund_id", tx.FundID,
			"delta", delta.String(),
			"error", err,
		)
		return Transaction{}, err
	}

	metrics.Postings.WithLabelValues(string(tx.Reference.Kind)).Inc()
	return tx, nil
}
