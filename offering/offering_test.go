package offering_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardly/treasury/ledger"
	"github.com/stewardly/treasury/offering"
	"github.com/stewardly/treasury/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestProcessor(t *testing.T) (*offering.Processor, *memory.Memory) {
	t.Helper()
	store := memory.New()
	writer := ledger.NewWriter(store, store, nil)
	return offering.NewProcessor(store, writer, nil), store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedFund(t *testing.T, store *memory.Memory, id ledger.FundID, name, balance string) {
	t.Helper()
	require.NoError(t, store.SaveFund(context.Background(), ledger.Fund{
		ID: id, Name: name, Balance: dec(balance),
	}))
}

func seedMember(t *testing.T, store *memory.Memory, id ledger.MemberID) {
	t.Helper()
	require.NoError(t, store.SaveMember(context.Background(), ledger.Member{
		ID: id, Name: "Member " + string(id),
	}))
}

func balance(t *testing.T, store *memory.Memory, id ledger.FundID) decimal.Decimal {
	t.Helper()
	f, err := store.GetFund(context.Background(), id)
	require.NoError(t, err)
	return f.Balance
}

func sundayInput(amount string, allocations map[ledger.FundID]decimal.Decimal) offering.CreateInput {
	return offering.CreateInput{
		Amount:      dec(amount),
		Type:        "tithe",
		ServiceDate: time.Date(2026, time.June, 7, 0, 0, 0, 0, time.UTC),
		Allocations: allocations,
		MemberID:    "m-1",
	}
}

// =============================================================================
// CREATE
// =============================================================================

func TestOffering_Create_SplitsAcrossFunds(t *testing.T) {
	// GIVEN: Funds A and B at 0, a registered member
	// WHEN: Recording a 500 offering split 300/200
	// THEN: A holds 300, B holds 200, one tagged row per fund, one link

	p, store := newTestProcessor(t)
	seedFund(t, store, "a", "General Fund", "0")
	seedFund(t, store, "b", "Building Fund", "0")
	seedMember(t, store, "m-1")
	ctx := context.Background()

	o, err := p.Create(ctx, sundayInput("500", map[ledger.FundID]decimal.Decimal{
		"a": dec("300"),
		"b": dec("200"),
	}))
	require.NoError(t, err)

	assert.True(t, balance(t, store, "a").Equal(dec("300")))
	assert.True(t, balance(t, store, "b").Equal(dec("200")))

	// Allocations persist keyed by fund name.
	assert.True(t, o.Allocations["General Fund"].Equal(dec("300")))
	assert.True(t, o.Allocations["Building Fund"].Equal(dec("200")))

	txs, err := store.ListTransactionsByReference(ctx, ledger.OfferingRef(o.ID))
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	member, err := store.GetOfferingMember(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.MemberID("m-1"), member)
}

func TestOffering_Create_AllocationSumMismatch_Rejected(t *testing.T) {
	// Allocations must sum to exactly the offering amount.
	p, store := newTestProcessor(t)
	seedFund(t, store, "a", "General Fund", "0")
	seedMember(t, store, "m-1")

	_, err := p.Create(context.Background(), sundayInput("500", map[ledger.FundID]decimal.Decimal{
		"a": dec("450"),
	}))

	var ve *ledger.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, balance(t, store, "a").IsZero())
}

func TestOffering_Create_UnknownMember_Rejected(t *testing.T) {
	p, store := newTestProcessor(t)
	seedFund(t, store, "a", "General Fund", "0")

	_, err := p.Create(context.Background(), sundayInput("100", map[ledger.FundID]decimal.Decimal{
		"a": dec("100"),
	}))

	assert.ErrorIs(t, err, ledger.ErrMemberNotFound)
}

func TestOffering_Create_UnknownFund_NothingLands(t *testing.T) {
	// A missing fund fails name resolution before anything is written.
	p, store := newTestProcessor(t)
	seedFund(t, store, "a", "General Fund", "0")
	seedMember(t, store, "m-1")
	ctx := context.Background()

	_, err := p.Create(ctx, sundayInput("500", map[ledger.FundID]decimal.Decimal{
		"a":     dec("300"),
		"ghost": dec("200"),
	}))
	require.ErrorIs(t, err, ledger.ErrFundNotFound)

	assert.True(t, balance(t, store, "a").IsZero())
	offerings, _ := p.List(ctx)
	assert.Empty(t, offerings)
}

func TestOffering_DuplicateMemberLink_Conflict(t *testing.T) {
	// An offering carries exactly one contributor; a second link is a
	// distinct conflict, not a generic failure.
	p, store := newTestProcessor(t)
	seedFund(t, store, "a", "General Fund", "0")
	seedMember(t, store, "m-1")
	seedMember(t, store, "m-2")
	ctx := context.Background()

	o, err := p.Create(ctx, sundayInput("100", map[ledger.FundID]decimal.Decimal{"a": dec("100")}))
	require.NoError(t, err)

	err = store.LinkMember(ctx, o.ID, "m-2")
	assert.ErrorIs(t, err, ledger.ErrDuplicateMemberLink)
	assert.True(t, ledger.IsConflict(err))
}

// =============================================================================
// UPDATE
// =============================================================================

func TestOffering_Update_AllocationsReversedBeforeReapplied(t *testing.T) {
	// GIVEN: A 500 offering split 300/200
	// WHEN: Re-splitting the same 500 as 100/400
	// THEN: Fund balances match the new split exactly

	p, store := newTestProcessor(t)
	seedFund(t, store, "a", "General Fund", "0")
	seedFund(t, store, "b", "Building Fund", "0")
	seedMember(t, store, "m-1")
	ctx := context.Background()

	o, err := p.Create(ctx, sundayInput("500", map[ledger.FundID]decimal.Decimal{
		"a": dec("300"), "b": dec("200"),
	}))
	require.NoError(t, err)

	_, err = p.Update(ctx, o.ID, offering.UpdateInput{
		Allocations: map[ledger.FundID]decimal.Decimal{"a": dec("100"), "b": dec("400")},
	})
	require.NoError(t, err)

	assert.True(t, balance(t, store, "a").Equal(dec("100")))
	assert.True(t, balance(t, store, "b").Equal(dec("400")))

	txs, err := store.ListTransactionsByReference(ctx, ledger.OfferingRef(o.ID))
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestOffering_Update_AmountOnly_MismatchRejected(t *testing.T) {
	// An amount edit without matching allocations would let the stored total
	// drift from the split; it is refused before anything is written.
	p, store := newTestProcessor(t)
	seedFund(t, store, "a", "General Fund", "0")
	seedMember(t, store, "m-1")
	ctx := context.Background()

	o, err := p.Create(ctx, sundayInput("500", map[ledger.FundID]decimal.Decimal{"a": dec("500")}))
	require.NoError(t, err)

	amount := dec("900")
	_, err = p.Update(ctx, o.ID, offering.UpdateInput{Amount: &amount})

	var ve *ledger.ValidationError
	require.ErrorAs(t, err, &ve)

	got, err := store.GetOffering(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("500")))
	assert.True(t, balance(t, store, "a").Equal(dec("500")))
}

func TestOffering_Update_AmountWithMatchingAllocations_Accepted(t *testing.T) {
	p, store := newTestProcessor(t)
	seedFund(t, store, "a", "General Fund", "0")
	seedMember(t, store, "m-1")
	ctx := context.Background()

	o, err := p.Create(ctx, sundayInput("500", map[ledger.FundID]decimal.Decimal{"a": dec("500")}))
	require.NoError(t, err)

	amount := dec("900")
	next, err := p.Update(ctx, o.ID, offering.UpdateInput{
		Amount:      &amount,
		Allocations: map[ledger.FundID]decimal.Decimal{"a": dec("900")},
	})
	require.NoError(t, err)

	assert.True(t, next.Amount.Equal(dec("900")))
	assert.True(t, balance(t, store, "a").Equal(dec("900")))
}

func TestOffering_Update_MetadataOnly_NoBalanceChange(t *testing.T) {
	p, store := newTestProcessor(t)
	seedFund(t, store, "a", "General Fund", "0")
	seedMember(t, store, "m-1")
	ctx := context.Background()

	o, err := p.Create(ctx, sundayInput("100", map[ledger.FundID]decimal.Decimal{"a": dec("100")}))
	require.NoError(t, err)

	notes := "corrected note"
	next, err := p.Update(ctx, o.ID, offering.UpdateInput{Notes: &notes})
	require.NoError(t, err)

	assert.Equal(t, "corrected note", next.Notes)
	assert.True(t, balance(t, store, "a").Equal(dec("100")))
}

// =============================================================================
// DELETE
// =============================================================================

func TestOffering_Delete_RestoresEveryFundExactly(t *testing.T) {
	// GIVEN: Funds pre-seeded at 50/75, then a 500 offering split 300/200
	// WHEN: Deleting the offering
	// THEN: Balances return to exactly 50/75 and no tagged rows survive

	p, store := newTestProcessor(t)
	seedFund(t, store, "a", "General Fund", "50")
	seedFund(t, store, "b", "Building Fund", "75")
	seedMember(t, store, "m-1")
	ctx := context.Background()

	o, err := p.Create(ctx, sundayInput("500", map[ledger.FundID]decimal.Decimal{
		"a": dec("300"), "b": dec("200"),
	}))
	require.NoError(t, err)
	require.True(t, balance(t, store, "a").Equal(dec("350")))

	require.NoError(t, p.Delete(ctx, o.ID))

	assert.True(t, balance(t, store, "a").Equal(dec("50")))
	assert.True(t, balance(t, store, "b").Equal(dec("75")))

	txs, _ := store.ListTransactionsByReference(ctx, ledger.OfferingRef(o.ID))
	assert.Empty(t, txs)
	_, err = store.GetOffering(ctx, o.ID)
	assert.ErrorIs(t, err, ledger.ErrOfferingNotFound)
	_, err = store.GetOfferingMember(ctx, o.ID)
	assert.ErrorIs(t, err, ledger.ErrMemberNotFound)
}

func TestOffering_Delete_BlockedWhenFundsAlreadySpent(t *testing.T) {
	// Reversals go through the same insufficient-funds guard as any debit:
	// if the allocated money has since been spent, the delete is refused.
	p, store := newTestProcessor(t)
	seedFund(t, store, "a", "General Fund", "0")
	seedMember(t, store, "m-1")
	ctx := context.Background()

	o, err := p.Create(ctx, sundayInput("100", map[ledger.FundID]decimal.Decimal{"a": dec("100")}))
	require.NoError(t, err)

	writer := ledger.NewWriter(store, store, nil)
	_, err = writer.Post(ctx, ledger.Posting{FundID: "a", Delta: dec("-80"), Description: "spent"})
	require.NoError(t, err)

	err = p.Delete(ctx, o.ID)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// The offering survives; only 20 remains but nothing was torn down.
	_, getErr := store.GetOffering(ctx, o.ID)
	assert.NoError(t, getErr)
}

func TestOffering_Delete_RetryAfterPartialReversal_NoDoubleDebit(t *testing.T) {
	// GIVEN: A 500 offering split 300/200, with fund B's share since spent
	// WHEN: A delete fails mid-teardown and is retried after B is topped up
	// THEN: Each fund is reversed exactly once, however far the first
	//       attempt got

	p, store := newTestProcessor(t)
	seedFund(t, store, "a", "General Fund", "0")
	seedFund(t, store, "b", "Building Fund", "0")
	seedMember(t, store, "m-1")
	ctx := context.Background()

	o, err := p.Create(ctx, sundayInput("500", map[ledger.FundID]decimal.Decimal{
		"a": dec("300"), "b": dec("200"),
	}))
	require.NoError(t, err)

	writer := ledger.NewWriter(store, store, nil)
	_, err = writer.Post(ctx, ledger.Posting{FundID: "b", Delta: dec("-200"), Description: "spent"})
	require.NoError(t, err)

	require.ErrorIs(t, p.Delete(ctx, o.ID), ledger.ErrInsufficientFunds)

	_, err = writer.Post(ctx, ledger.Posting{FundID: "b", Delta: dec("200"), Description: "replenished"})
	require.NoError(t, err)

	require.NoError(t, p.Delete(ctx, o.ID))

	assert.True(t, balance(t, store, "a").IsZero())
	assert.True(t, balance(t, store, "b").IsZero())
	txs, _ := store.ListTransactionsByReference(ctx, ledger.OfferingRef(o.ID))
	assert.Empty(t, txs)
	_, err = store.GetOffering(ctx, o.ID)
	assert.ErrorIs(t, err, ledger.ErrOfferingNotFound)
}
