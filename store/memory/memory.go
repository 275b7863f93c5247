// Package memory provides an in-memory ledger.Store for tests and dev.
//
// It implements the same semantics as the sqlite store, including the
// atomic balance+audit envelope (PostAtomic) and the one-member-per-offering
// constraint. All maps are guarded by a single mutex; good enough for tests,
// not meant for production.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/stewardly/treasury/ledger"
)

type Memory struct {
	mu sync.RWMutex

	funds        map[ledger.FundID]ledger.Fund
	transactions map[ledger.TransactionID]ledger.Transaction
	idempotency  map[string]bool
	offerings    map[ledger.OfferingID]ledger.Offering
	links        map[ledger.OfferingID]ledger.MemberID
	advances     map[ledger.AdvanceID]ledger.Advance
	bills        map[ledger.BillID]ledger.Bill
	pettyCash    map[ledger.PettyCashID]ledger.PettyCash
	members      map[ledger.MemberID]ledger.Member

	// FailNextInsert makes the next InsertTransaction fail with the given
	// error. Used by writer tests to exercise the compensation path.
	FailNextInsert error
	// FailDeltas makes ApplyDelta fail unconditionally after the first
	// n successful calls. Used to exercise compensation failure.
	FailDeltaAfter int
	deltaCalls     int
	// FailNextSaveAdvance makes the next SaveAdvance fail with the given
	// error. Used to exercise the repayment compensation path.
	FailNextSaveAdvance error
}

func New() *Memory {
	return &Memory{
		funds:          make(map[ledger.FundID]ledger.Fund),
		transactions:   make(map[ledger.TransactionID]ledger.Transaction),
		idempotency:    make(map[string]bool),
		offerings:      make(map[ledger.OfferingID]ledger.Offering),
		links:          make(map[ledger.OfferingID]ledger.MemberID),
		advances:       make(map[ledger.AdvanceID]ledger.Advance),
		bills:          make(map[ledger.BillID]ledger.Bill),
		pettyCash:      make(map[ledger.PettyCashID]ledger.PettyCash),
		members:        make(map[ledger.MemberID]ledger.Member),
		FailDeltaAfter: -1,
	}
}

// compensatedView exposes the fund operations without PostAtomic, forcing
// the Writer's compensated path. It deliberately does not embed Memory so
// the AtomicPoster assertion fails.
type compensatedView struct{ m *Memory }

func (v compensatedView) SaveFund(ctx context.Context, f ledger.Fund) error {
	return v.m.SaveFund(ctx, f)
}
func (v compensatedView) GetFund(ctx context.Context, id ledger.FundID) (*ledger.Fund, error) {
	return v.m.GetFund(ctx, id)
}
func (v compensatedView) GetFundByName(ctx context.Context, name string) (*ledger.Fund, error) {
	return v.m.GetFundByName(ctx, name)
}
func (v compensatedView) ListFunds(ctx context.Context) ([]ledger.Fund, error) {
	return v.m.ListFunds(ctx)
}
func (v compensatedView) ApplyDelta(ctx context.Context, id ledger.FundID, delta decimal.Decimal) error {
	return v.m.ApplyDelta(ctx, id, delta)
}

// AsCompensated returns a FundStore view without the atomic posting
// capability.
func (m *Memory) AsCompensated() ledger.FundStore { return compensatedView{m} }

// =============================================================================
// FUNDS
// =============================================================================

func (m *Memory) SaveFund(_ context.Context, f ledger.Fund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funds[f.ID] = f
	return nil
}

func (m *Memory) GetFund(_ context.Context, id ledger.FundID) (*ledger.Fund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.funds[id]
	if !ok {
		return nil, ledger.ErrFundNotFound
	}
	return &f, nil
}

func (m *Memory) GetFundByName(_ context.Context, name string) (*ledger.Fund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.funds {
		if f.Name == name {
			f := f
			return &f, nil
		}
	}
	return nil, ledger.ErrFundNotFound
}

func (m *Memory) ListFunds(_ context.Context) ([]ledger.Fund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	funds := make([]ledger.Fund, 0, len(m.funds))
	for _, f := range m.funds {
		funds = append(funds, f)
	}
	sort.Slice(funds, func(i, j int) bool { return funds[i].Name < funds[j].Name })
	return funds, nil
}

func (m *Memory) ApplyDelta(_ context.Context, id ledger.FundID, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyDeltaLocked(id, delta)
}

func (m *Memory) applyDeltaLocked(id ledger.FundID, delta decimal.Decimal) error {
	if m.FailDeltaAfter >= 0 && m.deltaCalls >= m.FailDeltaAfter {
		return ledger.ErrFundNotFound
	}
	f, ok := m.funds[id]
	if !ok {
		return ledger.ErrFundNotFound
	}
	next := f.Balance.Add(delta)
	if next.IsNegative() {
		return &ledger.InsufficientFundsError{
			FundID:    id,
			Available: f.Balance,
			Requested: delta.Abs(),
		}
	}
	f.Balance = next
	m.funds[id] = f
	m.deltaCalls++
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) PostAtomic(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
		return ledger.ErrDuplicatePosting
	}
	if err := m.applyDeltaLocked(tx.FundID, tx.Signed()); err != nil {
		return err
	}
	m.insertLocked(tx)
	return nil
}

func (m *Memory) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNextInsert != nil {
		err := m.FailNextInsert
		m.FailNextInsert = nil
		return err
	}
	if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
		return ledger.ErrDuplicatePosting
	}
	m.insertLocked(tx)
	return nil
}

func (m *Memory) insertLocked(tx ledger.Transaction) {
	m.transactions[tx.ID] = tx
	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
}

// deleteTxLocked removes a row and frees its idempotency key, matching the
// sqlite store where the uniqueness guarantee lives on the row itself.
func (m *Memory) deleteTxLocked(id ledger.TransactionID) {
	tx, ok := m.transactions[id]
	if !ok {
		return
	}
	if tx.IdempotencyKey != "" {
		delete(m.idempotency, tx.IdempotencyKey)
	}
	delete(m.transactions, id)
}

func (m *Memory) GetTransaction(_ context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	return &tx, nil
}

func (m *Memory) UpdateTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[tx.ID]; !ok {
		return ledger.ErrTransactionNotFound
	}
	m.transactions[tx.ID] = tx
	return nil
}

func (m *Memory) DeleteTransaction(_ context.Context, id ledger.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[id]; !ok {
		return ledger.ErrTransactionNotFound
	}
	m.deleteTxLocked(id)
	return nil
}

func (m *Memory) ListTransactions(_ context.Context) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(ledger.Transaction) bool { return true }), nil
}

func (m *Memory) ListTransactionsByFund(_ context.Context, fundID ledger.FundID) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(tx ledger.Transaction) bool { return tx.FundID == fundID }), nil
}

func (m *Memory) ListTransactionsByReference(_ context.Context, ref ledger.Reference) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(tx ledger.Transaction) bool { return tx.Reference == ref }), nil
}

func (m *Memory) DeleteTransactionsByAdvance(_ context.Context, id ledger.AdvanceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for txID, tx := range m.transactions {
		if tx.Reference.OwnsAdvance(id) {
			m.deleteTxLocked(txID)
		}
	}
	return nil
}

func (m *Memory) DeleteTransactionsByReference(_ context.Context, ref ledger.Reference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for txID, tx := range m.transactions {
		if tx.Reference == ref {
			m.deleteTxLocked(txID)
		}
	}
	return nil
}

func (m *Memory) collect(keep func(ledger.Transaction) bool) []ledger.Transaction {
	var txs []ledger.Transaction
	for _, tx := range m.transactions {
		if keep(tx) {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Date.Equal(txs[j].Date) {
			return txs[i].CreatedAt.Before(txs[j].CreatedAt)
		}
		return txs[i].Date.Before(txs[j].Date)
	})
	return txs
}

// =============================================================================
// OFFERINGS + MEMBER LINKS
// =============================================================================

func (m *Memory) SaveOffering(_ context.Context, o ledger.Offering) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offerings[o.ID] = o
	return nil
}

func (m *Memory) GetOffering(_ context.Context, id ledger.OfferingID) (*ledger.Offering, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.offerings[id]
	if !ok {
		return nil, ledger.ErrOfferingNotFound
	}
	return &o, nil
}

func (m *Memory) ListOfferings(_ context.Context) ([]ledger.Offering, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	offs := make([]ledger.Offering, 0, len(m.offerings))
	for _, o := range m.offerings {
		offs = append(offs, o)
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i].ServiceDate.Before(offs[j].ServiceDate) })
	return offs, nil
}

func (m *Memory) DeleteOffering(_ context.Context, id ledger.OfferingID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.offerings[id]; !ok {
		return ledger.ErrOfferingNotFound
	}
	delete(m.offerings, id)
	return nil
}

func (m *Memory) LinkMember(_ context.Context, id ledger.OfferingID, member ledger.MemberID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.links[id]; exists {
		return ledger.ErrDuplicateMemberLink
	}
	m.links[id] = member
	return nil
}

func (m *Memory) UnlinkMember(_ context.Context, id ledger.OfferingID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, id)
	return nil
}

func (m *Memory) GetOfferingMember(_ context.Context, id ledger.OfferingID) (ledger.MemberID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.links[id]
	if !ok {
		return "", ledger.ErrMemberNotFound
	}
	return member, nil
}

// =============================================================================
// ADVANCES / BILLS / PETTY CASH / MEMBERS
// =============================================================================

func (m *Memory) SaveAdvance(_ context.Context, a ledger.Advance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNextSaveAdvance != nil {
		err := m.FailNextSaveAdvance
		m.FailNextSaveAdvance = nil
		return err
	}
	m.advances[a.ID] = a
	return nil
}

func (m *Memory) GetAdvance(_ context.Context, id ledger.AdvanceID) (*ledger.Advance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.advances[id]
	if !ok {
		return nil, ledger.ErrAdvanceNotFound
	}
	return &a, nil
}

func (m *Memory) ListAdvances(_ context.Context) ([]ledger.Advance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	advs := make([]ledger.Advance, 0, len(m.advances))
	for _, a := range m.advances {
		advs = append(advs, a)
	}
	sort.Slice(advs, func(i, j int) bool { return advs[i].AdvanceDate.Before(advs[j].AdvanceDate) })
	return advs, nil
}

func (m *Memory) DeleteAdvance(_ context.Context, id ledger.AdvanceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.advances[id]; !ok {
		return ledger.ErrAdvanceNotFound
	}
	delete(m.advances, id)
	return nil
}

func (m *Memory) SaveBill(_ context.Context, b ledger.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bills[b.ID] = b
	return nil
}

func (m *Memory) GetBill(_ context.Context, id ledger.BillID) (*ledger.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bills[id]
	if !ok {
		return nil, ledger.ErrBillNotFound
	}
	return &b, nil
}

func (m *Memory) ListBills(_ context.Context) ([]ledger.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bills := make([]ledger.Bill, 0, len(m.bills))
	for _, b := range m.bills {
		bills = append(bills, b)
	}
	sort.Slice(bills, func(i, j int) bool { return bills[i].DueDate.Before(bills[j].DueDate) })
	return bills, nil
}

func (m *Memory) DeleteBill(_ context.Context, id ledger.BillID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bills[id]; !ok {
		return ledger.ErrBillNotFound
	}
	delete(m.bills, id)
	return nil
}

func (m *Memory) SavePettyCash(_ context.Context, p ledger.PettyCash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pettyCash[p.ID] = p
	return nil
}

func (m *Memory) GetPettyCash(_ context.Context, id ledger.PettyCashID) (*ledger.PettyCash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pettyCash[id]
	if !ok {
		return nil, ledger.ErrPettyCashNotFound
	}
	return &p, nil
}

func (m *Memory) ListPettyCash(_ context.Context) ([]ledger.PettyCash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]ledger.PettyCash, 0, len(m.pettyCash))
	for _, p := range m.pettyCash {
		records = append(records, p)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

func (m *Memory) DeletePettyCash(_ context.Context, id ledger.PettyCashID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pettyCash[id]; !ok {
		return ledger.ErrPettyCashNotFound
	}
	delete(m.pettyCash, id)
	return nil
}

func (m *Memory) SaveMember(_ context.Context, mem ledger.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[mem.ID] = mem
	return nil
}

func (m *Memory) GetMember(_ context.Context, id ledger.MemberID) (*ledger.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.members[id]
	if !ok {
		return nil, ledger.ErrMemberNotFound
	}
	return &mem, nil
}

func (m *Memory) ListMembers(_ context.Context) ([]ledger.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := make([]ledger.Member, 0, len(m.members))
	for _, mem := range m.members {
		members = append(members, mem)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}
