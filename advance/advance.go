/*
Package advance processes advances: money disbursed to a recipient and
repaid over time.

STATE MACHINE:
  outstanding -> partial -> returned, forward only under normal repayment.
  partial is skipped when a single repayment covers the full amount. The
  status is never stored independently of the numbers: it is always derived
  from (amount, amount_returned) via ledger.AdvanceStatusFor, so it cannot
  drift from the transaction history.

LEDGER EFFECTS:
  Create (outstanding): post -amount against the fund (disbursement).
  Repay:                post +repayment (reference advance_repayment).
  Edit of amount/fund while outstanding: reverse the old disbursement
                        against the old fund FIRST, then post the new one.
  Delete:               restore the undisbursed net (amount - returned),
                        then remove every linked transaction. The removed
                        rows sum to exactly the restored net's opposite, so
                        the balance invariant holds.
*/
package advance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stewardly/treasury/ledger"
)

// Store is what the processor needs from persistence.
type Store interface {
	ledger.AdvanceStore
	ledger.FundStore
	ledger.TransactionStore
}

// Processor drives advance lifecycle and repayment accounting.
type Processor struct {
	store  Store
	writer *ledger.Writer
	log    *slog.Logger
}

func NewProcessor(store Store, writer *ledger.Writer, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{store: store, writer: writer, log: log}
}

// CreateInput carries the fields for a new advance.
type CreateInput struct {
	RecipientName      string
	Amount             decimal.Decimal
	Purpose            string
	AdvanceDate        time.Time
	ExpectedReturnDate time.Time
	FundID             ledger.FundID
}

// UpdateInput carries the editable fields; nil means unchanged.
type UpdateInput struct {
	RecipientName      *string
	Amount             *decimal.Decimal
	Purpose            *string
	AdvanceDate        *time.Time
	ExpectedReturnDate *time.Time
	FundID             *ledger.FundID
}

func validateCreate(in CreateInput) error {
	if in.RecipientName == "" {
		return ledger.Validationf("recipient_name", "is required")
	}
	if !in.Amount.IsPositive() {
		return ledger.Validationf("amount", "must be positive")
	}
	if in.Purpose == "" {
		return ledger.Validationf("purpose", "is required")
	}
	if in.FundID == "" {
		return ledger.Validationf("fund_id", "is required")
	}
	if in.ExpectedReturnDate.IsZero() {
		return ledger.Validationf("expected_return_date", "is required")
	}
	return nil
}

// Create records a new advance and disburses the principal from its fund.
func (p *Processor) Create(ctx context.Context, in CreateInput) (*ledger.Advance, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	if _, err := p.store.GetFund(ctx, in.FundID); err != nil {
		return nil, err
	}

	advanceDate := in.AdvanceDate
	if advanceDate.IsZero() {
		advanceDate = time.Now().UTC()
	}

	a := ledger.Advance{
		ID:                 ledger.AdvanceID(uuid.New().String()),
		RecipientName:      in.RecipientName,
		Amount:             in.Amount,
		Purpose:            in.Purpose,
		AdvanceDate:        advanceDate,
		ExpectedReturnDate: in.ExpectedReturnDate,
		Status:             ledger.AdvanceOutstanding,
		FundID:             in.FundID,
		AmountReturned:     decimal.Zero,
		CreatedAt:          time.Now().UTC(),
	}
	if err := p.store.SaveAdvance(ctx, a); err != nil {
		return nil, err
	}

	_, err := p.writer.Post(ctx, ledger.Posting{
		FundID:         a.FundID,
		Delta:          a.Amount.Neg(),
		Description:    fmt.Sprintf("Advance to %s: %s", a.RecipientName, a.Purpose),
		Category:       "advance",
		Date:           a.AdvanceDate,
		Reference:      ledger.AdvanceRef(a.ID),
		IdempotencyKey: fmt.Sprintf("advance-%s", a.ID),
	})
	if err != nil {
		// The disbursement never landed; remove the advance row so no
		// phantom obligation survives.
		if delErr := p.store.DeleteAdvance(ctx, a.ID); delErr != nil {
			p.log.Error("failed to undo advance after disbursement failure",
				"advance_id", a.ID, "error", delErr)
		}
		return nil, err
	}
	return &a, nil
}

// Repay records a repayment against an advance, re-derives its status, and
// credits the fund.
func (p *Processor) Repay(ctx context.Context, id ledger.AdvanceID, amount decimal.Decimal) (*ledger.Advance, error) {
	a, err := p.store.GetAdvance(ctx, id)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, ledger.Validationf("repayment_amount", "must be positive")
	}
	if remaining := a.Outstanding(); amount.GreaterThan(remaining) {
		return nil, ledger.Validationf("repayment_amount",
			"exceeds outstanding amount %s", remaining)
	}

	next := *a
	next.AmountReturned = a.AmountReturned.Add(amount)
	next.Status = ledger.AdvanceStatusFor(next.Amount, next.AmountReturned)

	tx, err := p.writer.Post(ctx, ledger.Posting{
		FundID:      a.FundID,
		Delta:       amount,
		Description: fmt.Sprintf("Advance repayment from %s", a.RecipientName),
		Category:    "advance",
		Reference:   ledger.RepaymentRef(a.ID),
		IdempotencyKey: fmt.Sprintf("advance-repay-%s-%s",
			a.ID, next.AmountReturned.String()),
	})
	if err != nil {
		return nil, err
	}

	if err := p.store.SaveAdvance(ctx, next); err != nil {
		// Undo the repayment posting so the books match the stored advance,
		// then drop both rows: they net to zero, and removing them frees the
		// idempotency key for a legitimate retry of the same repayment.
		undoTx, revErr := p.writer.Post(ctx, ledger.TransactionReversal(tx))
		if revErr != nil {
			p.log.Error("failed to reverse repayment after advance save failure",
				"advance_id", a.ID, "error", revErr)
			return nil, err
		}
		for _, txID := range []ledger.TransactionID{tx.ID, undoTx.ID} {
			if delErr := p.store.DeleteTransaction(ctx, txID); delErr != nil {
				p.log.Error("failed to drop repayment row after advance save failure",
					"advance_id", a.ID, "transaction_id", txID, "error", delErr)
			}
		}
		return nil, err
	}
	return &next, nil
}

// Get returns a single advance.
func (p *Processor) Get(ctx context.Context, id ledger.AdvanceID) (*ledger.Advance, error) {
	return p.store.GetAdvance(ctx, id)
}

// List returns all advances.
func (p *Processor) List(ctx context.Context) ([]ledger.Advance, error) {
	return p.store.ListAdvances(ctx)
}

// Update edits an advance. When the amount or fund changes while the
// advance is still outstanding, the old disbursement is reversed against
// the old fund before the new one is posted.
func (p *Processor) Update(ctx context.Context, id ledger.AdvanceID, in UpdateInput) (*ledger.Advance, error) {
	a, err := p.store.GetAdvance(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *a
	if in.RecipientName != nil {
		next.RecipientName = *in.RecipientName
	}
	if in.Amount != nil {
		next.Amount = *in.Amount
	}
	if in.Purpose != nil {
		next.Purpose = *in.Purpose
	}
	if in.AdvanceDate != nil {
		next.AdvanceDate = *in.AdvanceDate
	}
	if in.ExpectedReturnDate != nil {
		next.ExpectedReturnDate = *in.ExpectedReturnDate
	}
	if in.FundID != nil {
		next.FundID = *in.FundID
	}
	if !next.Amount.IsPositive() {
		return nil, ledger.Validationf("amount", "must be positive")
	}
	if next.AmountReturned.GreaterThan(next.Amount) {
		return nil, ledger.Validationf("amount",
			"cannot be reduced below the amount already returned (%s)", next.AmountReturned)
	}

	moneyMoved := !next.Amount.Equal(a.Amount) || next.FundID != a.FundID
	if moneyMoved && a.Status != ledger.AdvanceOutstanding {
		return nil, ledger.Validationf("amount",
			"amount and fund can only change while the advance is outstanding")
	}

	if moneyMoved {
		if _, err := p.store.GetFund(ctx, next.FundID); err != nil {
			return nil, err
		}
		// Reverse the old disbursement first, then re-post against the
		// (possibly different) fund.
		if _, err := p.writer.Post(ctx, ledger.Posting{
			FundID:      a.FundID,
			Delta:       a.Amount,
			Description: fmt.Sprintf("Advance edit reversal: %s", a.RecipientName),
			Category:    "advance",
			Reference:   ledger.AdvanceRef(a.ID),
		}); err != nil {
			return nil, err
		}
		if err := p.store.DeleteTransactionsByAdvance(ctx, a.ID); err != nil {
			return nil, err
		}
		if _, err := p.writer.Post(ctx, ledger.Posting{
			FundID:         next.FundID,
			Delta:          next.Amount.Neg(),
			Description:    fmt.Sprintf("Advance to %s: %s", next.RecipientName, next.Purpose),
			Category:       "advance",
			Date:           next.AdvanceDate,
			Reference:      ledger.AdvanceRef(a.ID),
			IdempotencyKey: fmt.Sprintf("advance-%s-edit-%d", a.ID, time.Now().UnixNano()),
		}); err != nil {
			// The old disbursement is already reversed and its rows gone;
			// put it back so the advance row still matches the books and a
			// later delete cannot credit money that was never debited.
			if _, compErr := p.writer.Post(ctx, ledger.Posting{
				FundID:         a.FundID,
				Delta:          a.Amount.Neg(),
				Description:    fmt.Sprintf("Advance to %s: %s", a.RecipientName, a.Purpose),
				Category:       "advance",
				Date:           a.AdvanceDate,
				Reference:      ledger.AdvanceRef(a.ID),
				IdempotencyKey: fmt.Sprintf("advance-%s", a.ID),
			}); compErr != nil {
				p.log.Error("failed to restore disbursement after advance edit failure",
					"advance_id", a.ID, "fund_id", a.FundID, "error", compErr)
				return nil, &ledger.InconsistencyError{
					FundID:    a.FundID,
					Delta:     a.Amount.Neg(),
					Reference: ledger.AdvanceRef(a.ID),
					Stage:     "compensation",
					Cause:     compErr,
				}
			}
			return nil, err
		}
	}

	next.Status = ledger.AdvanceStatusFor(next.Amount, next.AmountReturned)
	if err := p.store.SaveAdvance(ctx, next); err != nil {
		return nil, err
	}
	return &next, nil
}

// Delete removes an advance, restoring the undisbursed net to its fund and
// dropping every linked transaction (disbursement and repayments). The
// dropped rows net to the opposite of the restored amount, so each fund's
// balance still equals the sum of its remaining transactions.
func (p *Processor) Delete(ctx context.Context, id ledger.AdvanceID) error {
	a, err := p.store.GetAdvance(ctx, id)
	if err != nil {
		return err
	}

	if undo, ok := ledger.AdvanceReversal(*a); ok {
		if _, err := p.writer.Post(ctx, undo); err != nil {
			return err
		}
	}
	if err := p.store.DeleteTransactionsByAdvance(ctx, id); err != nil {
		return err
	}
	return p.store.DeleteAdvance(ctx, id)
}
