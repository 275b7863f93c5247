package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardly/treasury/ledger"
	"github.com/stewardly/treasury/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedFund(t *testing.T, store *sqlite.Store, id ledger.FundID, name, balance string) {
	t.Helper()
	require.NoError(t, store.SaveFund(context.Background(), ledger.Fund{
		ID: id, Name: name, Balance: dec(balance),
	}))
}

func auditTx(id ledger.TransactionID, fund ledger.FundID, txType ledger.TransactionType, amount string) ledger.Transaction {
	return ledger.Transaction{
		ID:     id,
		Type:   txType,
		Amount: dec(amount),
		FundID: fund,
		Date:   time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// FUNDS + BALANCE ARITHMETIC
// =============================================================================

func TestStore_FundRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedFund(t, store, "general", "General Fund", "123.45")

	f, err := store.GetFund(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, "General Fund", f.Name)
	assert.True(t, f.Balance.Equal(dec("123.45")))

	byName, err := store.GetFundByName(ctx, "General Fund")
	require.NoError(t, err)
	assert.Equal(t, ledger.FundID("general"), byName.ID)

	_, err = store.GetFund(ctx, "ghost")
	assert.ErrorIs(t, err, ledger.ErrFundNotFound)
}

func TestStore_SaveFund_UpdateDoesNotResetBalance(t *testing.T) {
	// Re-saving a fund updates name/description only; the balance belongs to
	// the ledger and re-creation must not rewrite it.
	store := newTestStore(t)
	ctx := context.Background()

	seedFund(t, store, "general", "General Fund", "100")
	require.NoError(t, store.ApplyDelta(ctx, "general", dec("50")))

	require.NoError(t, store.SaveFund(ctx, ledger.Fund{
		ID: "general", Name: "Renamed Fund", Balance: decimal.Zero,
	}))

	f, err := store.GetFund(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, "Renamed Fund", f.Name)
	assert.True(t, f.Balance.Equal(dec("150")))
}

func TestStore_ApplyDelta_Arithmetic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedFund(t, store, "general", "General Fund", "100")

	require.NoError(t, store.ApplyDelta(ctx, "general", dec("25.25")))
	require.NoError(t, store.ApplyDelta(ctx, "general", dec("-0.25")))

	f, _ := store.GetFund(ctx, "general")
	assert.True(t, f.Balance.Equal(dec("125")))
}

func TestStore_ApplyDelta_NegativeResult_Rejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedFund(t, store, "general", "General Fund", "30")

	err := store.ApplyDelta(ctx, "general", dec("-31"))

	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	var ife *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	assert.True(t, ife.Available.Equal(dec("30")))

	f, _ := store.GetFund(ctx, "general")
	assert.True(t, f.Balance.Equal(dec("30")))
}

func TestStore_ApplyDelta_MissingFund(t *testing.T) {
	store := newTestStore(t)

	err := store.ApplyDelta(context.Background(), "ghost", dec("10"))
	assert.ErrorIs(t, err, ledger.ErrFundNotFound)
}

// =============================================================================
// ATOMIC POSTING
// =============================================================================

func TestStore_PostAtomic_CommitsBoth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedFund(t, store, "general", "General Fund", "100")

	tx := auditTx("tx-1", "general", ledger.TxIncome, "40")
	require.NoError(t, store.PostAtomic(ctx, tx))

	f, _ := store.GetFund(ctx, "general")
	assert.True(t, f.Balance.Equal(dec("140")))

	stored, err := store.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(dec("40")))
}

func TestStore_PostAtomic_InsufficientFunds_NothingCommits(t *testing.T) {
	// The insert and the delta share one SQL transaction: when the guard
	// rejects the delta, the already-inserted audit row rolls back too.
	store := newTestStore(t)
	ctx := context.Background()
	seedFund(t, store, "general", "General Fund", "30")

	err := store.PostAtomic(ctx, auditTx("tx-1", "general", ledger.TxExpense, "100"))
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	f, _ := store.GetFund(ctx, "general")
	assert.True(t, f.Balance.Equal(dec("30")))
	_, err = store.GetTransaction(ctx, "tx-1")
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

func TestStore_PostAtomic_DuplicateIdempotencyKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedFund(t, store, "general", "General Fund", "0")

	tx1 := auditTx("tx-1", "general", ledger.TxIncome, "25")
	tx1.IdempotencyKey = "offering-1-general"
	require.NoError(t, store.PostAtomic(ctx, tx1))

	tx2 := auditTx("tx-2", "general", ledger.TxIncome, "25")
	tx2.IdempotencyKey = "offering-1-general"
	err := store.PostAtomic(ctx, tx2)
	assert.ErrorIs(t, err, ledger.ErrDuplicatePosting)

	f, _ := store.GetFund(ctx, "general")
	assert.True(t, f.Balance.Equal(dec("25")))
}

func TestStore_DeleteTransaction_FreesIdempotencyKey(t *testing.T) {
	// The unique index lives on the row, so deleting the row frees its key.
	store := newTestStore(t)
	ctx := context.Background()
	seedFund(t, store, "general", "General Fund", "0")

	tx1 := auditTx("tx-1", "general", ledger.TxIncome, "25")
	tx1.IdempotencyKey = "offering-1-general"
	require.NoError(t, store.PostAtomic(ctx, tx1))
	require.NoError(t, store.DeleteTransaction(ctx, "tx-1"))

	tx2 := auditTx("tx-2", "general", ledger.TxIncome, "25")
	tx2.IdempotencyKey = "offering-1-general"
	assert.NoError(t, store.PostAtomic(ctx, tx2))
}

// =============================================================================
// TRANSACTION QUERIES
// =============================================================================

func TestStore_TransactionReferenceQueries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedFund(t, store, "general", "General Fund", "1000")

	disb := auditTx("tx-d", "general", ledger.TxExpense, "400")
	disb.Reference = ledger.AdvanceRef("adv-1")
	rep := auditTx("tx-r", "general", ledger.TxIncome, "150")
	rep.Reference = ledger.RepaymentRef("adv-1")
	bare := auditTx("tx-b", "general", ledger.TxIncome, "5")

	for _, tx := range []ledger.Transaction{disb, rep, bare} {
		require.NoError(t, store.PostAtomic(ctx, tx))
	}

	disbursements, err := store.ListTransactionsByReference(ctx, ledger.AdvanceRef("adv-1"))
	require.NoError(t, err)
	assert.Len(t, disbursements, 1)

	require.NoError(t, store.DeleteTransactionsByAdvance(ctx, "adv-1"))

	all, err := store.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, ledger.TransactionID("tx-b"), all[0].ID)
}

func TestStore_UpdateTransaction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedFund(t, store, "general", "General Fund", "0")

	tx := auditTx("tx-1", "general", ledger.TxIncome, "10")
	require.NoError(t, store.PostAtomic(ctx, tx))

	tx.Description = "corrected"
	tx.Amount = dec("12")
	require.NoError(t, store.UpdateTransaction(ctx, tx))

	stored, err := store.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "corrected", stored.Description)
	assert.True(t, stored.Amount.Equal(dec("12")))

	missing := auditTx("ghost", "general", ledger.TxIncome, "1")
	assert.ErrorIs(t, store.UpdateTransaction(ctx, missing), ledger.ErrTransactionNotFound)
}

// =============================================================================
// OFFERINGS + MEMBER LINKS
// =============================================================================

func TestStore_OfferingRoundTrip_AllocationsByName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	o := ledger.Offering{
		ID:          "off-1",
		Amount:      dec("500"),
		Type:        "tithe",
		ServiceDate: time.Date(2026, time.June, 7, 0, 0, 0, 0, time.UTC),
		Allocations: map[string]decimal.Decimal{
			"General Fund":  dec("300"),
			"Building Fund": dec("200"),
		},
	}
	require.NoError(t, store.SaveOffering(ctx, o))

	stored, err := store.GetOffering(ctx, "off-1")
	require.NoError(t, err)
	assert.True(t, stored.Allocations["General Fund"].Equal(dec("300")))
	assert.True(t, stored.Allocations["Building Fund"].Equal(dec("200")))
}

func TestStore_LinkMember_SecondLinkConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveOffering(ctx, ledger.Offering{
		ID: "off-1", Amount: dec("100"), Type: "tithe",
		ServiceDate: time.Now(), Allocations: map[string]decimal.Decimal{},
	}))

	require.NoError(t, store.LinkMember(ctx, "off-1", "m-1"))
	err := store.LinkMember(ctx, "off-1", "m-2")
	assert.ErrorIs(t, err, ledger.ErrDuplicateMemberLink)

	member, err := store.GetOfferingMember(ctx, "off-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.MemberID("m-1"), member)

	require.NoError(t, store.UnlinkMember(ctx, "off-1"))
	_, err = store.GetOfferingMember(ctx, "off-1")
	assert.ErrorIs(t, err, ledger.ErrMemberNotFound)
}

// =============================================================================
// ADVANCES / BILLS / PETTY CASH
// =============================================================================

func TestStore_AdvanceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := ledger.Advance{
		ID:                 "adv-1",
		RecipientName:      "Jordan Mills",
		Amount:             dec("400"),
		Purpose:            "Event deposit",
		AdvanceDate:        time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC),
		ExpectedReturnDate: time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
		Status:             ledger.AdvanceOutstanding,
		FundID:             "general",
		AmountReturned:     decimal.Zero,
	}
	require.NoError(t, store.SaveAdvance(ctx, a))

	a.AmountReturned = dec("150")
	a.Status = ledger.AdvancePartial
	require.NoError(t, store.SaveAdvance(ctx, a))

	stored, err := store.GetAdvance(ctx, "adv-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.AdvancePartial, stored.Status)
	assert.True(t, stored.AmountReturned.Equal(dec("150")))

	require.NoError(t, store.DeleteAdvance(ctx, "adv-1"))
	_, err = store.GetAdvance(ctx, "adv-1")
	assert.ErrorIs(t, err, ledger.ErrAdvanceNotFound)
}

func TestStore_BillRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := ledger.Bill{
		ID:         "bill-1",
		VendorName: "City Power",
		Amount:     dec("180.50"),
		DueDate:    time.Date(2026, time.June, 20, 0, 0, 0, 0, time.UTC),
		Frequency:  ledger.FreqMonthly,
		Status:     ledger.BillPending,
	}
	require.NoError(t, store.SaveBill(ctx, b))

	bills, err := store.ListBills(ctx)
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.True(t, bills[0].Amount.Equal(dec("180.50")))

	require.NoError(t, store.DeleteBill(ctx, "bill-1"))
	assert.ErrorIs(t, store.DeleteBill(ctx, "bill-1"), ledger.ErrBillNotFound)
}

func TestStore_PettyCashAndMembers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SavePettyCash(ctx, ledger.PettyCash{
		ID: "pc-1", Amount: dec("45"), Purpose: "Supplies",
		Date: time.Now().UTC(), ReceiptAvailable: true,
	}))
	pc, err := store.GetPettyCash(ctx, "pc-1")
	require.NoError(t, err)
	assert.True(t, pc.ReceiptAvailable)

	require.NoError(t, store.SaveMember(ctx, ledger.Member{ID: "m-1", Name: "Ade Okafor"}))
	members, err := store.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Ade Okafor", members[0].Name)
}
