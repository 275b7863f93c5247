package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardly/treasury/billing"
	"github.com/stewardly/treasury/ledger"
	"github.com/stewardly/treasury/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestProcessor(t *testing.T) (*billing.Processor, *memory.Memory) {
	t.Helper()
	store := memory.New()
	return billing.NewProcessor(store, nil), store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func powerBill(due time.Time) billing.BillInput {
	return billing.BillInput{
		VendorName: "City Power",
		Amount:     dec("180.50"),
		DueDate:    due,
		Category:   "utilities",
		Frequency:  ledger.FreqMonthly,
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestBill_Create_DefaultsPendingOneTime(t *testing.T) {
	p, _ := newTestProcessor(t)

	b, err := p.CreateBill(context.Background(), billing.BillInput{
		VendorName: "SafeRoof Ltd",
		Amount:     dec("1200"),
		DueDate:    time.Now().AddDate(0, 0, 10),
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.BillPending, b.Status)
	assert.Equal(t, ledger.FreqOneTime, b.Frequency)
}

func TestBill_Create_NoLedgerEffect(t *testing.T) {
	// Bills are visibility records; no transaction rows, no balance change.
	p, store := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, store.SaveFund(ctx, ledger.Fund{ID: "general", Name: "General", Balance: dec("100")}))

	in := powerBill(time.Now().AddDate(0, 0, 5))
	in.FundID = "general"
	_, err := p.CreateBill(ctx, in)
	require.NoError(t, err)

	f, err := store.GetFund(ctx, "general")
	require.NoError(t, err)
	assert.True(t, f.Balance.Equal(dec("100")))
	txs, _ := store.ListTransactions(ctx)
	assert.Empty(t, txs)
}

func TestBill_Create_OverdueStatusInput_NormalizedToPending(t *testing.T) {
	// Overdue is derived, never stored.
	p, _ := newTestProcessor(t)

	in := powerBill(time.Now().AddDate(0, 0, -30))
	in.Status = ledger.BillOverdue
	b, err := p.CreateBill(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, ledger.BillPending, b.Status)
}

func TestBill_Create_UnknownFund_Rejected(t *testing.T) {
	p, _ := newTestProcessor(t)

	in := powerBill(time.Now())
	in.FundID = "ghost"
	_, err := p.CreateBill(context.Background(), in)

	assert.ErrorIs(t, err, ledger.ErrFundNotFound)
}

func TestBill_Toggle_FlipsPendingAndPaid(t *testing.T) {
	p, _ := newTestProcessor(t)
	ctx := context.Background()

	b, err := p.CreateBill(ctx, powerBill(time.Now().AddDate(0, 0, 5)))
	require.NoError(t, err)

	paid, err := p.ToggleBill(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.BillPaid, paid.Status)

	pending, err := p.ToggleBill(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.BillPending, pending.Status)
}

func TestBill_Toggle_OverdueBill_TogglesToPaid(t *testing.T) {
	// A past-due pending bill is stored as pending, so toggling marks it
	// paid, not "un-overdue".
	p, _ := newTestProcessor(t)
	ctx := context.Background()

	b, err := p.CreateBill(ctx, powerBill(time.Now().AddDate(0, 0, -10)))
	require.NoError(t, err)
	require.Equal(t, ledger.BillOverdue, b.EffectiveStatus(time.Now()))

	paid, err := p.ToggleBill(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.BillPaid, paid.Status)
	assert.Equal(t, ledger.BillPaid, paid.EffectiveStatus(time.Now()))
}

// =============================================================================
// DERIVED STATUS
// =============================================================================

func TestBill_EffectiveStatus(t *testing.T) {
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		due    time.Time
		status ledger.BillStatus
		want   ledger.BillStatus
	}{
		{"pending, due in future", now.AddDate(0, 0, 5), ledger.BillPending, ledger.BillPending},
		{"pending, due today", now, ledger.BillPending, ledger.BillPending},
		{"pending, past due", now.AddDate(0, 0, -1), ledger.BillPending, ledger.BillOverdue},
		{"paid, past due", now.AddDate(0, 0, -30), ledger.BillPaid, ledger.BillPaid},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := ledger.Bill{DueDate: c.due, Status: c.status}
			assert.Equal(t, c.want, b.EffectiveStatus(now))
		})
	}
}

func TestNextDueDate(t *testing.T) {
	due := time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)

	monthly, ok := billing.NextDueDate(ledger.Bill{DueDate: due, Frequency: ledger.FreqMonthly})
	require.True(t, ok)
	assert.Equal(t, time.March, monthly.Month()) // Jan 31 + 1 month normalizes past February

	quarterly, ok := billing.NextDueDate(ledger.Bill{DueDate: due, Frequency: ledger.FreqQuarterly})
	require.True(t, ok)
	assert.Equal(t, time.May, quarterly.Month())

	yearly, ok := billing.NextDueDate(ledger.Bill{DueDate: due, Frequency: ledger.FreqYearly})
	require.True(t, ok)
	assert.Equal(t, 2027, yearly.Year())

	_, ok = billing.NextDueDate(ledger.Bill{DueDate: due, Frequency: ledger.FreqOneTime})
	assert.False(t, ok)
}

// =============================================================================
// PETTY CASH
// =============================================================================

func TestPettyCash_Lifecycle(t *testing.T) {
	p, store := newTestProcessor(t)
	ctx := context.Background()

	pc, err := p.CreatePettyCash(ctx, billing.PettyCashInput{
		Amount:     dec("45"),
		Purpose:    "Cleaning supplies",
		ApprovedBy: "Ade Okafor",
	})
	require.NoError(t, err)
	assert.False(t, pc.Date.IsZero())

	in := billing.PettyCashInput{Amount: dec("50"), Purpose: "Cleaning supplies", ReceiptAvailable: true}
	next, err := p.UpdatePettyCash(ctx, pc.ID, in)
	require.NoError(t, err)
	assert.True(t, next.Amount.Equal(dec("50")))
	assert.True(t, next.ReceiptAvailable)

	require.NoError(t, p.DeletePettyCash(ctx, pc.ID))
	_, err = store.GetPettyCash(ctx, pc.ID)
	assert.ErrorIs(t, err, ledger.ErrPettyCashNotFound)

	// No ledger effect at any point.
	txs, _ := store.ListTransactions(ctx)
	assert.Empty(t, txs)
}

func TestPettyCash_Validation(t *testing.T) {
	p, _ := newTestProcessor(t)

	_, err := p.CreatePettyCash(context.Background(), billing.PettyCashInput{
		Amount: decimal.Zero, Purpose: "x",
	})
	var ve *ledger.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = p.CreatePettyCash(context.Background(), billing.PettyCashInput{
		Amount: dec("10"),
	})
	assert.ErrorAs(t, err, &ve)
}
