/*
errors.go - Centralized error taxonomy for the ledger core

PURPOSE:
  All error types in one place. Processors and the API layer classify errors
  with the helpers at the bottom instead of matching strings.

ERROR CATEGORIES:
  1. Validation errors - caller-correctable input problems (HTTP 400)
  2. Not-found errors  - referenced fund/entity absent (HTTP 404)
  3. Conflict errors   - duplicate member link, duplicate posting (HTTP 409)
  4. Ledger errors     - insufficient funds, partial-failure inconsistency

USAGE:
  if ledger.IsNotFound(err) { ... }

  var inc *ledger.InconsistencyError
  if errors.As(err, &inc) { // balance changed with no audit row or vice versa
      ...
  }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrFundNotFound is returned when a posting or query references a fund
	// that does not exist.
	ErrFundNotFound = errors.New("fund not found")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrOfferingNotFound    = errors.New("offering not found")
	ErrAdvanceNotFound     = errors.New("advance not found")
	ErrBillNotFound        = errors.New("bill not found")
	ErrMemberNotFound      = errors.New("member not found")
	ErrPettyCashNotFound   = errors.New("petty cash record not found")

	// ErrInsufficientFunds is returned when a debit would take a fund
	// balance below zero. Always enforced, including on reversals.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateMemberLink is returned when an offering already has a
	// member associated. An offering has at most one contributor.
	ErrDuplicateMemberLink = errors.New("offering already linked to a member")

	// ErrDuplicatePosting is returned when a posting's idempotency key was
	// already recorded. Expected on client retries; the original posting
	// stands and no balance effect is repeated.
	ErrDuplicatePosting = errors.New("duplicate posting")

	// ErrReferenceOwned is returned when a bare-transaction edit or delete
	// targets a transaction owned by a source entity (offering, advance,
	// bill). Such transactions change only through their owning processor.
	ErrReferenceOwned = errors.New("transaction is owned by its source entity")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a caller-correctable input problem.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for a field.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientFundsError reports a debit that exceeds the fund balance.
type InsufficientFundsError struct {
	FundID    FundID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in %s: available %s, requested %s",
		e.FundID, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// InconsistencyError reports a partial failure that compensation could not
// repair: a balance changed with no matching audit row, or the reverse. It
// must be logged loudly and surfaced to operators, never swallowed.
type InconsistencyError struct {
	FundID    FundID
	Delta     decimal.Decimal
	Reference Reference
	Stage     string // which step failed, e.g. "audit-row", "compensation"
	Cause     error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("ledger inconsistency on fund %s (delta %s, ref %s/%s) at %s: %v",
		e.FundID, e.Delta, e.Reference.Kind, e.Reference.ID, e.Stage, e.Cause)
}

func (e *InconsistencyError) Unwrap() error { return e.Cause }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFundNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrOfferingNotFound) ||
		errors.Is(err, ErrAdvanceNotFound) ||
		errors.Is(err, ErrBillNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrPettyCashNotFound)
}

// IsConflict reports whether the error indicates a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateMemberLink) ||
		errors.Is(err, ErrDuplicatePosting)
}

// IsClientError reports whether the caller can correct the request.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrReferenceOwned) ||
		IsConflict(err)
}

// IsInconsistency reports whether the error left the ledger in a detectably
// inconsistent state requiring operator remediation.
func IsInconsistency(err error) bool {
	var inc *InconsistencyError
	return errors.As(err, &inc)
}
