/*
entities.go - Persistence for the source entities that drive the ledger

Offerings, member links, advances, bills, petty cash, members. These rows
carry lifecycle state; their balance effects live exclusively in the
transactions table.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stewardly/treasury/ledger"
)

// =============================================================================
// OFFERINGS (ledger.OfferingStore)
// =============================================================================

func (s *Store) SaveOffering(ctx context.Context, o ledger.Offering) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	allocations, err := marshalAllocations(o.Allocations)
	if err != nil {
		return err
	}
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO offerings (id, amount_cents, offering_type, notes, service_date, allocations_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			offering_type = excluded.offering_type,
			notes = excluded.notes,
			service_date = excluded.service_date,
			allocations_json = excluded.allocations_json`,
		o.ID, toCents(o.Amount), o.Type, o.Notes,
		o.ServiceDate.Format(time.RFC3339), allocations, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save offering: %w", err)
	}
	return nil
}

func (s *Store) GetOffering(ctx context.Context, id ledger.OfferingID) (*ledger.Offering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, amount_cents, offering_type, notes, service_date, allocations_json, created_at
		FROM offerings WHERE id = ?`, string(id))

	o, err := scanOffering(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrOfferingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) ListOfferings(ctx context.Context) ([]ledger.Offering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount_cents, offering_type, notes, service_date, allocations_json, created_at
		FROM offerings ORDER BY service_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to list offerings: %w", err)
	}
	defer rows.Close()

	var offerings []ledger.Offering
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		offerings = append(offerings, o)
	}
	return offerings, rows.Err()
}

func scanOffering(row rowScanner) (ledger.Offering, error) {
	var (
		o           ledger.Offering
		amountCents int64
		notes       sql.NullString
		serviceDate string
		allocations string
		createdAt   string
	)
	err := row.Scan(&o.ID, &amountCents, &o.Type, &notes, &serviceDate, &allocations, &createdAt)
	if err == sql.ErrNoRows {
		return o, err
	}
	if err != nil {
		return o, fmt.Errorf("failed to scan offering: %w", err)
	}
	o.Amount = fromCents(amountCents)
	o.Notes = notes.String
	o.ServiceDate, _ = time.Parse(time.RFC3339, serviceDate)
	o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	o.Allocations, err = unmarshalAllocations(allocations)
	return o, err
}

func (s *Store) DeleteOffering(ctx context.Context, id ledger.OfferingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM offerings WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete offering: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrOfferingNotFound
	}
	return nil
}

// LinkMember inserts the single contributor link for an offering. The
// PRIMARY KEY on offering_id turns a second insert into a conflict, which
// surfaces as ErrDuplicateMemberLink - not a generic failure.
func (s *Store) LinkMember(ctx context.Context, id ledger.OfferingID, member ledger.MemberID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offering_members (offering_id, member_id, created_at)
		VALUES (?, ?, ?)`,
		string(id), string(member), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateMemberLink
		}
		return fmt.Errorf("failed to link member: %w", err)
	}
	return nil
}

func (s *Store) UnlinkMember(ctx context.Context, id ledger.OfferingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM offering_members WHERE offering_id = ?", string(id))
	if err != nil {
		return fmt.Errorf("failed to unlink member: %w", err)
	}
	return nil
}

func (s *Store) GetOfferingMember(ctx context.Context, id ledger.OfferingID) (ledger.MemberID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var member string
	err := s.db.QueryRowContext(ctx,
		"SELECT member_id FROM offering_members WHERE offering_id = ?", string(id)).Scan(&member)
	if err == sql.ErrNoRows {
		return "", ledger.ErrMemberNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get offering member: %w", err)
	}
	return ledger.MemberID(member), nil
}

// =============================================================================
// ADVANCES (ledger.AdvanceStore)
// =============================================================================

func (s *Store) SaveAdvance(ctx context.Context, a ledger.Advance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO advances
		(id, recipient_name, amount_cents, purpose, advance_date, expected_return_date,
		 status, fund_id, amount_returned_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			recipient_name = excluded.recipient_name,
			amount_cents = excluded.amount_cents,
			purpose = excluded.purpose,
			advance_date = excluded.advance_date,
			expected_return_date = excluded.expected_return_date,
			status = excluded.status,
			fund_id = excluded.fund_id,
			amount_returned_cents = excluded.amount_returned_cents`,
		a.ID, a.RecipientName, toCents(a.Amount), a.Purpose,
		a.AdvanceDate.Format(time.RFC3339), a.ExpectedReturnDate.Format(time.RFC3339),
		a.Status, a.FundID, toCents(a.AmountReturned), createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save advance: %w", err)
	}
	return nil
}

func (s *Store) GetAdvance(ctx context.Context, id ledger.AdvanceID) (*ledger.Advance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, recipient_name, amount_cents, purpose, advance_date, expected_return_date,
		       status, fund_id, amount_returned_cents, created_at
		FROM advances WHERE id = ?`, string(id))

	a, err := scanAdvance(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrAdvanceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAdvances(ctx context.Context) ([]ledger.Advance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient_name, amount_cents, purpose, advance_date, expected_return_date,
		       status, fund_id, amount_returned_cents, created_at
		FROM advances ORDER BY advance_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to list advances: %w", err)
	}
	defer rows.Close()

	var advances []ledger.Advance
	for rows.Next() {
		a, err := scanAdvance(rows)
		if err != nil {
			return nil, err
		}
		advances = append(advances, a)
	}
	return advances, rows.Err()
}

func scanAdvance(row rowScanner) (ledger.Advance, error) {
	var (
		a             ledger.Advance
		amountCents   int64
		returnedCents int64
		advanceDate   string
		returnDate    string
		createdAt     string
	)
	err := row.Scan(&a.ID, &a.RecipientName, &amountCents, &a.Purpose,
		&advanceDate, &returnDate, &a.Status, &a.FundID, &returnedCents, &createdAt)
	if err == sql.ErrNoRows {
		return a, err
	}
	if err != nil {
		return a, fmt.Errorf("failed to scan advance: %w", err)
	}
	a.Amount = fromCents(amountCents)
	a.AmountReturned = fromCents(returnedCents)
	a.AdvanceDate, _ = time.Parse(time.RFC3339, advanceDate)
	a.ExpectedReturnDate, _ = time.Parse(time.RFC3339, returnDate)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return a, nil
}

func (s *Store) DeleteAdvance(ctx context.Context, id ledger.AdvanceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM advances WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete advance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrAdvanceNotFound
	}
	return nil
}

// =============================================================================
// BILLS (ledger.BillStore)
// =============================================================================

func (s *Store) SaveBill(ctx context.Context, b ledger.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bills (id, vendor_name, amount_cents, due_date, fund_id, category, frequency, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vendor_name = excluded.vendor_name,
			amount_cents = excluded.amount_cents,
			due_date = excluded.due_date,
			fund_id = excluded.fund_id,
			category = excluded.category,
			frequency = excluded.frequency,
			status = excluded.status`,
		b.ID, b.VendorName, toCents(b.Amount), b.DueDate.Format(time.RFC3339),
		nullString(string(b.FundID)), b.Category, b.Frequency, b.Status,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save bill: %w", err)
	}
	return nil
}

func (s *Store) GetBill(ctx context.Context, id ledger.BillID) (*ledger.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, vendor_name, amount_cents, due_date, fund_id, category, frequency, status, created_at
		FROM bills WHERE id = ?`, string(id))

	b, err := scanBill(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrBillNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) ListBills(ctx context.Context) ([]ledger.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vendor_name, amount_cents, due_date, fund_id, category, frequency, status, created_at
		FROM bills ORDER BY due_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var bills []ledger.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func scanBill(row rowScanner) (ledger.Bill, error) {
	var (
		b           ledger.Bill
		amountCents int64
		dueDate     string
		fundID      sql.NullString
		category    sql.NullString
		createdAt   string
	)
	err := row.Scan(&b.ID, &b.VendorName, &amountCents, &dueDate,
		&fundID, &category, &b.Frequency, &b.Status, &createdAt)
	if err == sql.ErrNoRows {
		return b, err
	}
	if err != nil {
		return b, fmt.Errorf("failed to scan bill: %w", err)
	}
	b.Amount = fromCents(amountCents)
	b.FundID = ledger.FundID(fundID.String)
	b.Category = category.String
	b.DueDate, _ = time.Parse(time.RFC3339, dueDate)
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return b, nil
}

func (s *Store) DeleteBill(ctx context.Context, id ledger.BillID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM bills WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrBillNotFound
	}
	return nil
}

// =============================================================================
// PETTY CASH (ledger.PettyCashStore)
// =============================================================================

func (s *Store) SavePettyCash(ctx context.Context, p ledger.PettyCash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO petty_cash (id, amount_cents, purpose, tx_date, approved_by, receipt_available, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			purpose = excluded.purpose,
			tx_date = excluded.tx_date,
			approved_by = excluded.approved_by,
			receipt_available = excluded.receipt_available`,
		p.ID, toCents(p.Amount), p.Purpose, p.Date.Format(time.RFC3339),
		nullString(p.ApprovedBy), p.ReceiptAvailable, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save petty cash: %w", err)
	}
	return nil
}

func (s *Store) GetPettyCash(ctx context.Context, id ledger.PettyCashID) (*ledger.PettyCash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, amount_cents, purpose, tx_date, approved_by, receipt_available, created_at
		FROM petty_cash WHERE id = ?`, string(id))

	p, err := scanPettyCash(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrPettyCashNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPettyCash(ctx context.Context) ([]ledger.PettyCash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount_cents, purpose, tx_date, approved_by, receipt_available, created_at
		FROM petty_cash ORDER BY tx_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to list petty cash: %w", err)
	}
	defer rows.Close()

	var records []ledger.PettyCash
	for rows.Next() {
		p, err := scanPettyCash(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, p)
	}
	return records, rows.Err()
}

func scanPettyCash(row rowScanner) (ledger.PettyCash, error) {
	var (
		p           ledger.PettyCash
		amountCents int64
		txDate      string
		approvedBy  sql.NullString
		createdAt   string
	)
	err := row.Scan(&p.ID, &amountCents, &p.Purpose, &txDate,
		&approvedBy, &p.ReceiptAvailable, &createdAt)
	if err == sql.ErrNoRows {
		return p, err
	}
	if err != nil {
		return p, fmt.Errorf("failed to scan petty cash: %w", err)
	}
	p.Amount = fromCents(amountCents)
	p.ApprovedBy = approvedBy.String
	p.Date, _ = time.Parse(time.RFC3339, txDate)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return p, nil
}

func (s *Store) DeletePettyCash(ctx context.Context, id ledger.PettyCashID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM petty_cash WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete petty cash: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrPettyCashNotFound
	}
	return nil
}

// =============================================================================
// MEMBERS (ledger.MemberStore)
// =============================================================================

func (s *Store) SaveMember(ctx context.Context, m ledger.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, name, email) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email`,
		m.ID, m.Name, nullString(m.Email),
	)
	if err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return nil
}

func (s *Store) GetMember(ctx context.Context, id ledger.MemberID) (*ledger.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		m     ledger.Member
		email sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email FROM members WHERE id = ?", string(id)).
		Scan(&m.ID, &m.Name, &email)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	m.Email = email.String
	return &m, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]ledger.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, email FROM members ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []ledger.Member
	for rows.Next() {
		var (
			m     ledger.Member
			email sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Name, &email); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Email = email.String
		members = append(members, m)
	}
	return members, rows.Err()
}
