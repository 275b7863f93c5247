/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupled from the domain model.
  Amounts travel as decimal strings (shopspring/decimal marshals quoted),
  dates as YYYY-MM-DD.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stewardly/treasury/ledger"
)

const dateLayout = "2006-01-02"

// =============================================================================
// FUNDS
// =============================================================================

type FundDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Balance     decimal.Decimal `json:"current_balance"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

type CreateFundRequest struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Balance     decimal.Decimal `json:"current_balance,omitempty"`
}

func toFundDTO(f ledger.Fund) FundDTO {
	return FundDTO{
		ID:          string(f.ID),
		Name:        f.Name,
		Description: f.Description,
		Balance:     f.Balance,
		CreatedAt:   f.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionDTO struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	FundID        string          `json:"fund_id"`
	Description   string          `json:"description,omitempty"`
	Category      string          `json:"category,omitempty"`
	Date          string          `json:"transaction_date"`
	ReferenceKind string          `json:"reference_kind"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	CreatedAt     string          `json:"created_at,omitempty"`
}

type TransactionRequest struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	FundID      string          `json:"fund_id"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        string          `json:"transaction_date,omitempty"`
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:            string(tx.ID),
		Type:          string(tx.Type),
		Amount:        tx.Amount,
		FundID:        string(tx.FundID),
		Description:   tx.Description,
		Category:      tx.Category,
		Date:          tx.Date.Format(dateLayout),
		ReferenceKind: string(tx.Reference.Kind),
		ReferenceID:   tx.Reference.ID,
		CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

// =============================================================================
// OFFERINGS
// =============================================================================

type OfferingDTO struct {
	ID          string                     `json:"id"`
	Amount      decimal.Decimal            `json:"amount"`
	Type        string                     `json:"type"`
	Notes       string                     `json:"notes,omitempty"`
	ServiceDate string                     `json:"service_date"`
	Allocations map[string]decimal.Decimal `json:"fund_allocations"`
	MemberID    string                     `json:"member_id,omitempty"`
}

type OfferingRequest struct {
	Amount      decimal.Decimal            `json:"amount"`
	Type        string                     `json:"type"`
	Notes       string                     `json:"notes"`
	ServiceDate string                     `json:"service_date"`
	Allocations map[string]decimal.Decimal `json:"fund_allocations"` // keyed by fund id
	MemberID    string                     `json:"member_id"`
}

func toOfferingDTO(o ledger.Offering, member ledger.MemberID) OfferingDTO {
	return OfferingDTO{
		ID:          string(o.ID),
		Amount:      o.Amount,
		Type:        o.Type,
		Notes:       o.Notes,
		ServiceDate: o.ServiceDate.Format(dateLayout),
		Allocations: o.Allocations,
		MemberID:    string(member),
	}
}

// =============================================================================
// ADVANCES
// =============================================================================

type AdvanceDTO struct {
	ID                 string          `json:"id"`
	RecipientName      string          `json:"recipient_name"`
	Amount             decimal.Decimal `json:"amount"`
	Purpose            string          `json:"purpose"`
	AdvanceDate        string          `json:"advance_date"`
	ExpectedReturnDate string          `json:"expected_return_date"`
	Status             string          `json:"status"`
	FundID             string          `json:"fund_id"`
	AmountReturned     decimal.Decimal `json:"amount_returned"`
}

type AdvanceRequest struct {
	Action             string          `json:"action,omitempty"` // create | repay
	ID                 string          `json:"id,omitempty"`
	RecipientName      string          `json:"recipient_name"`
	Amount             decimal.Decimal `json:"amount"`
	Purpose            string          `json:"purpose"`
	AdvanceDate        string          `json:"advance_date"`
	ExpectedReturnDate string          `json:"expected_return_date"`
	FundID             string          `json:"fund_id"`
	RepaymentAmount    decimal.Decimal `json:"repayment_amount,omitempty"`
}

func toAdvanceDTO(a ledger.Advance) AdvanceDTO {
	return AdvanceDTO{
		ID:                 string(a.ID),
		RecipientName:      a.RecipientName,
		Amount:             a.Amount,
		Purpose:            a.Purpose,
		AdvanceDate:        a.AdvanceDate.Format(dateLayout),
		ExpectedReturnDate: a.ExpectedReturnDate.Format(dateLayout),
		Status:             string(a.Status),
		FundID:             string(a.FundID),
		AmountReturned:     a.AmountReturned,
	}
}

// =============================================================================
// BILLS + PETTY CASH
// =============================================================================

type BillDTO struct {
	ID         string          `json:"id"`
	VendorName string          `json:"vendor_name"`
	Amount     decimal.Decimal `json:"amount"`
	DueDate    string          `json:"due_date"`
	FundID     string          `json:"fund_id,omitempty"`
	Category   string          `json:"category,omitempty"`
	Frequency  string          `json:"frequency"`
	Status     string          `json:"status"` // derived: may read "overdue"
	NextDue    string          `json:"next_due_date,omitempty"`
}

type BillRequest struct {
	VendorName string          `json:"vendor_name"`
	Amount     decimal.Decimal `json:"amount"`
	DueDate    string          `json:"due_date"`
	FundID     string          `json:"fund_id"`
	Category   string          `json:"category"`
	Frequency  string          `json:"frequency"`
	Status     string          `json:"status"`
}

type PettyCashDTO struct {
	ID               string          `json:"id"`
	Amount           decimal.Decimal `json:"amount"`
	Purpose          string          `json:"purpose"`
	Date             string          `json:"transaction_date"`
	ApprovedBy       string          `json:"approved_by,omitempty"`
	ReceiptAvailable bool            `json:"receipt_available"`
}

type PettyCashRequest struct {
	Amount           decimal.Decimal `json:"amount"`
	Purpose          string          `json:"purpose"`
	Date             string          `json:"transaction_date"`
	ApprovedBy       string          `json:"approved_by"`
	ReceiptAvailable bool            `json:"receipt_available"`
}

// =============================================================================
// MEMBERS
// =============================================================================

type MemberDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type MemberRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
