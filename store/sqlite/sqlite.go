/*
Package sqlite provides the SQLite-backed implementation of ledger.Store.

PURPOSE:
  Implements every persistence interface the ledger core needs. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

BALANCE ARITHMETIC:
  Balances and amounts are stored as integer cents. Balance changes execute
  as  UPDATE funds SET balance_cents = balance_cents + ?  inside the
  database, so two concurrent postings against the same fund serialize at
  the store and neither delta can be lost. The application tier never reads
  a balance to compute the next one.

ATOMIC POSTING:
  PostAtomic inserts the audit row and applies the balance delta in ONE
  SQL transaction. Both commit or neither does; there is no window where a
  balance has changed without its transaction row.

KEY TABLES:
  funds:            fund identity + current balance (cents)
  transactions:     one row per signed balance effect, reference-tagged
  offerings:        offering rows, allocations as JSON keyed by fund name
  offering_members: one-row-per-offering contributor link (PRIMARY KEY)
  advances:         advance lifecycle rows
  bills:            payable obligations (no ledger linkage)
  petty_cash:       audit-only disbursement requests
  members:          contributors

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single
  writer, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/treasury.db")
  writer := ledger.NewWriter(store, store, slog.Default())
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/stewardly/treasury/ledger"
)

// Store implements ledger.Store and ledger.AtomicPoster over SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers anyway; one connection keeps ":memory:"
	// databases coherent across the pool.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS funds (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		balance_cents INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		tx_type TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		fund_id TEXT NOT NULL,
		description TEXT,
		category TEXT,
		tx_date TEXT NOT NULL,
		ref_kind TEXT NOT NULL DEFAULT 'none',
		ref_id TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_fund
		ON transactions(fund_id, tx_date);
	CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(ref_kind, ref_id) WHERE ref_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS offerings (
		id TEXT PRIMARY KEY,
		amount_cents INTEGER NOT NULL,
		offering_type TEXT NOT NULL,
		notes TEXT,
		service_date TEXT NOT NULL,
		allocations_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one contributor per offering. A second link must fail.
	CREATE TABLE IF NOT EXISTS offering_members (
		offering_id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_offering_members_member
		ON offering_members(member_id);

	CREATE TABLE IF NOT EXISTS advances (
		id TEXT PRIMARY KEY,
		recipient_name TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		purpose TEXT NOT NULL,
		advance_date TEXT NOT NULL,
		expected_return_date TEXT NOT NULL,
		status TEXT NOT NULL,
		fund_id TEXT NOT NULL,
		amount_returned_cents INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_advances_status ON advances(status);

	CREATE TABLE IF NOT EXISTS bills (
		id TEXT PRIMARY KEY,
		vendor_name TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		fund_id TEXT,
		category TEXT,
		frequency TEXT NOT NULL DEFAULT 'one-time',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bills_due ON bills(status, due_date);

	CREATE TABLE IF NOT EXISTS petty_cash (
		id TEXT PRIMARY KEY,
		amount_cents INTEGER NOT NULL,
		purpose TEXT NOT NULL,
		tx_date TEXT NOT NULL,
		approved_by TEXT,
		receipt_available BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// FUNDS (ledger.FundStore)
// =============================================================================

func (s *Store) SaveFund(ctx context.Context, f ledger.Fund) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO funds (id, name, description, balance_cents, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description`,
		f.ID, f.Name, f.Description, toCents(f.Balance), createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save fund: %w", err)
	}
	return nil
}

func (s *Store) GetFund(ctx context.Context, id ledger.FundID) (*ledger.Fund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getFund(ctx, "id = ?", string(id))
}

func (s *Store) GetFundByName(ctx context.Context, name string) (*ledger.Fund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getFund(ctx, "name = ?", name)
}

func (s *Store) getFund(ctx context.Context, where string, arg any) (*ledger.Fund, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, balance_cents, created_at FROM funds WHERE "+where, arg)

	var (
		f         ledger.Fund
		desc      sql.NullString
		cents     int64
		createdAt string
	)
	if err := row.Scan(&f.ID, &f.Name, &desc, &cents, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrFundNotFound
		}
		return nil, fmt.Errorf("failed to get fund: %w", err)
	}
	f.Description = desc.String
	f.Balance = fromCents(cents)
	f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &f, nil
}

func (s *Store) ListFunds(ctx context.Context) ([]ledger.Fund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, description, balance_cents, created_at FROM funds ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list funds: %w", err)
	}
	defer rows.Close()

	var funds []ledger.Fund
	for rows.Next() {
		var (
			f         ledger.Fund
			desc      sql.NullString
			cents     int64
			createdAt string
		)
		if err := rows.Scan(&f.ID, &f.Name, &desc, &cents, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan fund: %w", err)
		}
		f.Description = desc.String
		f.Balance = fromCents(cents)
		f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		funds = append(funds, f)
	}
	return funds, rows.Err()
}

// ApplyDelta executes balance_cents = balance_cents + delta inside the
// database. The non-negative guard is part of the same statement, so the
// check and the update cannot race.
func (s *Store) ApplyDelta(ctx context.Context, id ledger.FundID, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyDelta(ctx, s.db, id, delta)
}

func (s *Store) applyDelta(ctx context.Context, db execer, id ledger.FundID, delta decimal.Decimal) error {
	cents := toCents(delta)
	res, err := db.ExecContext(ctx, `
		UPDATE funds SET balance_cents = balance_cents + ?
		WHERE id = ? AND balance_cents + ? >= 0`,
		cents, string(id), cents,
	)
	if err != nil {
		return fmt.Errorf("failed to apply delta: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to apply delta: %w", err)
	}
	if affected == 0 {
		// Guard rejected: either the fund is missing or the balance is short.
		var balanceCents int64
		scanErr := db.QueryRowContext(ctx,
			"SELECT balance_cents FROM funds WHERE id = ?", string(id)).Scan(&balanceCents)
		if scanErr != nil {
			return ledger.ErrFundNotFound
		}
		return &ledger.InsufficientFundsError{
			FundID:    id,
			Available: fromCents(balanceCents),
			Requested: delta.Abs(),
		}
	}
	return nil
}

// =============================================================================
// ATOMIC POSTING (ledger.AtomicPoster)
// =============================================================================

// PostAtomic applies the transaction's signed amount to its fund and inserts
// the audit row in a single SQL transaction.
func (s *Store) PostAtomic(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := s.insertTransaction(ctx, sqlTx, tx); err != nil {
		return err
	}
	if err := s.applyDelta(ctx, sqlTx, tx.FundID, tx.Signed()); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// TRANSACTIONS (ledger.TransactionStore)
// =============================================================================

const txColumns = `id, tx_type, amount_cents, fund_id, description, category,
	tx_date, ref_kind, ref_id, idempotency_key, created_at`

func (s *Store) InsertTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTransaction(ctx, s.db, tx)
}

func (s *Store) insertTransaction(ctx context.Context, db execer, tx ledger.Transaction) error {
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions
		(`+txColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.Type,
		toCents(tx.Amount),
		tx.FundID,
		tx.Description,
		tx.Category,
		tx.Date.Format(time.RFC3339),
		tx.Reference.Kind,
		nullString(tx.Reference.ID),
		nullString(tx.IdempotencyKey),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicatePosting
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE id = ?", string(id))
	tx, err := scanTransactionRow(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET tx_type = ?, amount_cents = ?, fund_id = ?, description = ?,
		    category = ?, tx_date = ?
		WHERE id = ?`,
		tx.Type, toCents(tx.Amount), tx.FundID, tx.Description,
		tx.Category, tx.Date.Format(time.RFC3339), tx.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryTransactions(ctx,
		"SELECT "+txColumns+" FROM transactions ORDER BY tx_date, created_at")
}

func (s *Store) ListTransactionsByFund(ctx context.Context, fundID ledger.FundID) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryTransactions(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE fund_id = ? ORDER BY tx_date, created_at",
		string(fundID))
}

func (s *Store) ListTransactionsByReference(ctx context.Context, ref ledger.Reference) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryTransactions(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE ref_kind = ? AND ref_id = ? ORDER BY tx_date, created_at",
		string(ref.Kind), ref.ID)
}

func (s *Store) DeleteTransactionsByAdvance(ctx context.Context, id ledger.AdvanceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM transactions WHERE ref_kind IN (?, ?) AND ref_id = ?",
		string(ledger.RefAdvance), string(ledger.RefAdvanceRepayment), string(id))
	if err != nil {
		return fmt.Errorf("failed to delete advance transactions: %w", err)
	}
	return nil
}

func (s *Store) DeleteTransactionsByReference(ctx context.Context, ref ledger.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM transactions WHERE ref_kind = ? AND ref_id = ?",
		string(ref.Kind), ref.ID)
	if err != nil {
		return fmt.Errorf("failed to delete transactions by reference: %w", err)
	}
	return nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransactionRow(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransactionRow(row rowScanner) (ledger.Transaction, error) {
	var (
		tx             ledger.Transaction
		amountCents    int64
		description    sql.NullString
		category       sql.NullString
		txDate         string
		refID          sql.NullString
		idempotencyKey sql.NullString
		createdAt      string
	)
	err := row.Scan(
		&tx.ID, &tx.Type, &amountCents, &tx.FundID, &description, &category,
		&txDate, &tx.Reference.Kind, &refID, &idempotencyKey, &createdAt,
	)
	if err == sql.ErrNoRows {
		return tx, err
	}
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}
	tx.Amount = fromCents(amountCents)
	tx.Description = description.String
	tx.Category = category.String
	tx.Reference.ID = refID.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.Date, _ = time.Parse(time.RFC3339, txDate)
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return tx, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// execer covers *sql.DB and *sql.Tx so the posting helpers run inside or
// outside an explicit transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var centsFactor = decimal.NewFromInt(100)

func toCents(d decimal.Decimal) int64 {
	return d.Mul(centsFactor).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(centsFactor)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func marshalAllocations(allocations map[string]decimal.Decimal) (string, error) {
	m := make(map[string]string, len(allocations))
	for name, amount := range allocations {
		m[name] = amount.String()
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal allocations: %w", err)
	}
	return string(b), nil
}

func unmarshalAllocations(data string) (map[string]decimal.Decimal, error) {
	var m map[string]string
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal allocations: %w", err)
	}
	allocations := make(map[string]decimal.Decimal, len(m))
	for name, amount := range m {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse allocation %q: %w", name, err)
		}
		allocations[name] = d
	}
	return allocations, nil
}
