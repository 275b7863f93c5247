/*
reversal.go - Computing the undo of a previously applied effect

PURPOSE:
  Before an edited or deleted entity's new state is applied, the balance
  effect of its OLD state must be reversed. These functions compute the
  compensating postings; they never touch the store themselves.

ORDER OF OPERATIONS:
  Always apply the reversal BEFORE the new effect. When old and new target
  the same fund, reversing first avoids a transient over- or
  under-correction of the balance.
*/
package ledger

import "fmt"

// TransactionReversal computes the posting that undoes a bare transaction's
// balance effect: the negated signed amount against the same fund.
func TransactionReversal(tx Transaction) Posting {
	return Posting{
		FundID:      tx.FundID,
		Delta:       tx.Signed().Neg(),
		Description: "Reversal: " + tx.Description,
		Category:    tx.Category,
		Reference:   tx.Reference,
	}
}

// AdvanceReversal computes the posting that restores an advance's
// undisbursed net (amount - amount_returned) to its fund. The second return
// is false when there is nothing to restore (net <= 0 or no fund linked).
func AdvanceReversal(a Advance) (Posting, bool) {
	net := a.Outstanding()
	if !net.IsPositive() || a.FundID == "" {
		return Posting{}, false
	}
	return Posting{
		FundID:      a.FundID,
		Delta:       net,
		Description: fmt.Sprintf("Advance reversal: %s", a.RecipientName),
		Category:    "advance",
		Reference:   AdvanceRef(a.ID),
	}, true
}

// OfferingReversal computes one negating posting per historical allocation.
// Allocations are stored by fund name; resolve maps a name back to a fund
// ID and reports false for funds that no longer exist (those allocations
// are skipped - there is no balance left to correct). Each posting carries
// a deterministic idempotency key, so a teardown that failed mid-way can be
// retried without reversing any fund twice.
func OfferingReversal(o Offering, resolve func(fundName string) (FundID, bool)) []Posting {
	postings := make([]Posting, 0, len(o.Allocations))
	for name, amount := range o.Allocations {
		if !amount.IsPositive() {
			continue
		}
		id, ok := resolve(name)
		if !ok {
			continue
		}
		postings = append(postings, Posting{
			FundID:         id,
			Delta:          amount.Neg(),
			Description:    fmt.Sprintf("Offering reversal: %s", o.Type),
			Category:       "offering",
			Reference:      OfferingRef(o.ID),
			IdempotencyKey: fmt.Sprintf("offering-rev-%s-%s", o.ID, id),
		})
	}
	return postings
}
