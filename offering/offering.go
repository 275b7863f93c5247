/*
Package offering processes offerings: one incoming amount split across funds.

LIFECYCLE:
  Create: validate -> insert offering -> link the single contributor ->
          post +allocation per fund through the ledger Writer.
  Update: reverse the OLD allocations first, replace the member link, then
          post the new allocations. Reversal before re-apply avoids a
          transient over-correction when old and new hit the same fund.
  Delete: unlink member, delete the row, negate every historical
          allocation, drop the offering's audit rows.

COMPENSATION:
  The steps above span multiple store calls with no shared envelope. When a
  later step fails, the processor undoes the earlier ones (delete the
  offering, reverse the postings already applied). A compensation that
  itself fails surfaces as an InconsistencyError from the Writer - loud,
  never swallowed.

INVARIANTS:
  - Allocations sum to exactly the offering amount.
  - Exactly one member per offering; a duplicate link is a conflict, not a
    generic failure.
  - Allocations persist keyed by fund NAME for historical display.
*/
package offering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stewardly/treasury/ledger"
)

// Store is what the processor needs from persistence.
type Store interface {
	ledger.OfferingStore
	ledger.MemberStore
	ledger.FundStore
	ledger.TransactionStore
}

// Processor drives offering lifecycle and the ledger postings behind it.
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

// CreateInput carries the fields for a new offering. Allocations are keyed
// by fund ID at the boundary; the processor resolves and stores names.
type CreateInput struct {
	Amount      decimal.Decimal
	Type        string
	Notes       string
	ServiceDate time.Time
	Allocations map[ledger.FundID]decimal.Decimal
	MemberID    ledger.MemberID
}

// UpdateInput carries the editable fields. Nil maps/empty values mean
// "unchanged".
type UpdateInput struct {
	Amount      *decimal.Decimal
	Type        *string
	Notes       *string
	ServiceDate *time.Time
	Allocations map[ledger.FundID]decimal.Decimal
	MemberID    ledger.MemberID
}

func (p *Processor) validate(ctx context.Context, amount decimal.Decimal, serviceDate time.Time,
	allocations map[ledger.FundID]decimal.Decimal, member ledger.MemberID) error {

	if !amount.IsPositive() {
		return ledger.Validationf("amount", "must be positive")
	}
	if serviceDate.IsZero() {
		return ledger.Validationf("service_date", "is required")
	}
	if member == "" {
		return ledger.Validationf("member_id", "is required")
	}
	if _, err := p.store.GetMember(ctx, member); err != nil {
		return err
	}
	if len(allocations) == 0 {
		return ledger.Validationf("fund_allocations", "at least one allocation is required")
	}
	sum := decimal.Zero
	for fundID, alloc := range allocations {
		if !alloc.IsPositive() {
			return ledger.Validationf("fund_allocations", "allocation for fund %s must be positive", fundID)
		}
		sum = sum.Add(alloc)
	}
	if !sum.Equal(amount) {
		return ledger.Validationf("fund_allocations",
			"allocations sum to %s, offering amount is %s", sum, amount)
	}
	return nil
}

// resolveNames maps fund IDs to names, failing if any fund is missing.
func (p *Processor) resolveNames(ctx context.Context, allocations map[ledger.FundID]decimal.Decimal) (map[string]decimal.Decimal, error) {
	byName := make(map[string]decimal.Decimal, len(allocations))
	for fundID, alloc := range allocations {
		fund, err := p.store.GetFund(ctx, fundID)
		if err != nil {
			return nil, err
		}
		byName[fund.Name] = alloc
	}
	return byName, nil
}

// Create records a new offering and credits every allocated fund.
func (p *Processor) Create(ctx context.Context, in CreateInput) (*ledger.Offering, error) {
	if err := p.validate(ctx, in.Amount, in.ServiceDate, in.Allocations, in.MemberID); err != nil {
		return nil, err
	}
	byName, err := p.resolveNames(ctx, in.Allocations)
	if err != nil {
		return nil, err
	}

	o := ledger.Offering{
		ID:          ledger.OfferingID(uuid.New().String()),
		Amount:      in.Amount,
		Type:        in.Type,
		Notes:       in.Notes,
		ServiceDate: in.ServiceDate,
		Allocations: byName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.store.SaveOffering(ctx, o); err != nil {
		return nil, err
	}

	if err := p.store.LinkMember(ctx, o.ID, in.MemberID); err != nil {
		// Undo the offering row; the link is the only other effect so far.
		if delErr := p.store.DeleteOffering(ctx, o.ID); delErr != nil {
			p.log.Error("failed to undo offering after link failure",
				"offering_id", o.ID, "error", delErr)
		}
		return nil, err
	}

	if err := p.postAllocations(ctx, o, in.Allocations); err != nil {
		return nil, err
	}
	return &o, nil
}

// postAllocations credits each fund; on partial failure it reverses the
// postings already applied and removes the offering and its link.
func (p *Processor) postAllocations(ctx context.Context, o ledger.Offering, allocations map[ledger.FundID]decimal.Decimal) error {
	var applied []ledger.Posting
	for fundID, alloc := range allocations {
		posting := ledger.Posting{
			FundID:         fundID,
			Delta:          alloc,
			Description:    fmt.Sprintf("Offering: %s", o.Type),
			Category:       "offering",
			Date:           o.ServiceDate,
			Reference:      ledger.OfferingRef(o.ID),
			IdempotencyKey: fmt.Sprintf("offering-%s-%s", o.ID, fundID),
		}
		if _, err := p.writer.Post(ctx, posting); err != nil {
			p.compensateCreate(ctx, o, applied)
			return err
		}
		applied = append(applied, posting)
	}
	return nil
}

func (p *Processor) compensateCreate(ctx context.Context, o ledger.Offering, applied []ledger.Posting) {
	for _, posting := range applied {
		undo := posting
		undo.Delta = posting.Delta.Neg()
		undo.Description = "Compensation: " + posting.Description
		undo.IdempotencyKey = ""
		if _, err := p.writer.Post(ctx, undo); err != nil {
			p.log.Error("offering compensation failed",
				"offering_id", o.ID, "fund_id", posting.FundID, "error", err)
		}
	}
	if err := p.store.DeleteTransactionsByReference(ctx, ledger.OfferingRef(o.ID)); err != nil {
		p.log.Error("failed to remove offering audit rows during compensation",
			"offering_id", o.ID, "error", err)
	}
	if err := p.store.UnlinkMember(ctx, o.ID); err != nil {
		p.log.Error("failed to unlink member during compensation",
			"offering_id", o.ID, "error", err)
	}
	if err := p.store.DeleteOffering(ctx, o.ID); err != nil {
		p.log.Error("failed to delete offering during compensation",
			"offering_id", o.ID, "error", err)
	}
}

// Get returns an offering with its member link.
func (p *Processor) Get(ctx context.Context, id ledger.OfferingID) (*ledger.Offering, ledger.MemberID, error) {
	o, err := p.store.GetOffering(ctx, id)
	if err != nil {
		return nil, "", err
	}
	member, err := p.store.GetOfferingMember(ctx, id)
	if err != nil && !ledger.IsNotFound(err) {
		return nil, "", err
	}
	return o, member, nil
}

// List returns all offerings.
func (p *Processor) List(ctx context.Context) ([]ledger.Offering, error) {
	return p.store.ListOfferings(ctx)
}

// Update edits an offering. Changed allocations are reversed before the new
// ones are posted; a changed member replaces the link.
func (p *Processor) Update(ctx context.Context, id ledger.OfferingID, in UpdateInput) (*ledger.Offering, error) {
	o, err := p.store.GetOffering(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *o
	if in.Amount != nil {
		next.Amount = *in.Amount
	}
	if in.Type != nil {
		next.Type = *in.Type
	}
	if in.Notes != nil {
		next.Notes = *in.Notes
	}
	if in.ServiceDate != nil {
		next.ServiceDate = *in.ServiceDate
	}

	member := in.MemberID
	if member == "" {
		if member, err = p.store.GetOfferingMember(ctx, id); err != nil {
			return nil, err
		}
	}

	allocationsChanged := in.Allocations != nil
	if allocationsChanged {
		if err := p.validate(ctx, next.Amount, next.ServiceDate, in.Allocations, member); err != nil {
			return nil, err
		}
		byName, err := p.resolveNames(ctx, in.Allocations)
		if err != nil {
			return nil, err
		}

		// Reverse the old allocations before applying the new ones. A
		// duplicate posting means a previous attempt already reversed that
		// fund; skip it rather than debiting twice.
		for _, undo := range ledger.OfferingReversal(*o, p.fundByName(ctx)) {
			if _, err := p.writer.Post(ctx, undo); err != nil && !errors.Is(err, ledger.ErrDuplicatePosting) {
				return nil, err
			}
		}
		if err := p.store.DeleteTransactionsByReference(ctx, ledger.OfferingRef(id)); err != nil {
			return nil, err
		}

		next.Allocations = byName
		if err := p.store.SaveOffering(ctx, next); err != nil {
			return nil, err
		}
		if err := p.relinkMember(ctx, id, member); err != nil {
			return nil, err
		}
		if err := p.postAllocations(ctx, next, in.Allocations); err != nil {
			return nil, err
		}
		return &next, nil
	}

	// Even without new allocations, the effective (amount, allocations)
	// pair must stay coherent: an amount-only edit that no longer matches
	// the stored split is refused before anything is written.
	sum := decimal.Zero
	for _, alloc := range next.Allocations {
		sum = sum.Add(alloc)
	}
	if !sum.Equal(next.Amount) {
		return nil, ledger.Validationf("amount",
			"allocations sum to %s, offering amount is %s", sum, next.Amount)
	}

	if err := p.store.SaveOffering(ctx, next); err != nil {
		return nil, err
	}
	if in.MemberID != "" {
		if _, err := p.store.GetMember(ctx, in.MemberID); err != nil {
			return nil, err
		}
		if err := p.relinkMember(ctx, id, in.MemberID); err != nil {
			return nil, err
		}
	}
	return &next, nil
}

// relinkMember replaces the member link: delete-then-insert keeps the
// one-link constraint authoritative at the store.
func (p *Processor) relinkMember(ctx context.Context, id ledger.OfferingID, member ledger.MemberID) error {
	if err := p.store.UnlinkMember(ctx, id); err != nil {
		return err
	}
	return p.store.LinkMember(ctx, id, member)
}

// Delete removes an offering and restores every touched fund to its
// pre-offering balance, exactly.
func (p *Processor) Delete(ctx context.Context, id ledger.OfferingID) error {
	o, err := p.store.GetOffering(ctx, id)
	if err != nil {
		return err
	}

	// A duplicate posting means an earlier delete attempt already reversed
	// that fund before failing; skip it so a retry never debits twice.
	for _, undo := range ledger.OfferingReversal(*o, p.fundByName(ctx)) {
		if _, err := p.writer.Post(ctx, undo); err != nil && !errors.Is(err, ledger.ErrDuplicatePosting) {
			return err
		}
	}
	if err := p.store.DeleteTransactionsByReference(ctx, ledger.OfferingRef(id)); err != nil {
		return err
	}
	if err := p.store.UnlinkMember(ctx, id); err != nil {
		return err
	}
	return p.store.DeleteOffering(ctx, id)
}

func (p *Processor) fundByName(ctx context.Context) func(string) (ledger.FundID, bool) {
	return func(name string) (ledger.FundID, bool) {
		fund, err := p.store.GetFundByName(ctx, name)
		if err != nil {
			return "", false
		}
		return fund.ID, true
	}
}
