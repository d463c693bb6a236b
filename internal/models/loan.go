package models

import (
	"github.com/shopspring/decimal"
)

// LoanRecord is a debt owed to the account holder by a borrower.
//
// Lifecycle is two states: unpaid, then paid. Marking a loan paid is
// terminal; a paid loan can no longer be edited, added to, reduced, or
// deleted. Borrower identity, principal, and start date are immutable after
// creation; only the fee and the due date can be edited directly.
type LoanRecord struct {
	BorrowerName    string          `json:"borrowerName"`
	PhoneNumber     string          `json:"phoneNumber,omitempty"`
	PrincipalAmount decimal.Decimal `json:"principalAmount"`
	FeeAmount       decimal.Decimal `json:"feeAmount"`
	StartDate       int64           `json:"startDate"` // unix millis
	DueDate         int64           `json:"dueDate"`   // unix millis
	Paid            bool            `json:"paid"`
	FundingSource   BalanceKind     `json:"fundingSource"`
	CreatedAt       int64           `json:"createdAt"` // unix millis
}

// CashDirection distinguishes cash-in from cash-out movements.
type CashDirection string

const (
	CashIn  CashDirection = "in"
	CashOut CashDirection = "out"
)

// CashMovement is a cash-in or cash-out event. Cash-in converts electronic
// float to physical cash (GCash down, on-hand up); cash-out is the reverse.
// Movements are immutable once created.
type CashMovement struct {
	CounterpartyName string          `json:"counterpartyName"`
	PhoneNumber      string          `json:"phoneNumber,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Fee              decimal.Decimal `json:"fee"`
	Timestamp        int64           `json:"timestamp"` // unix millis
	Direction        CashDirection   `json:"direction"`
}

// AnyTransaction is the flattened row the history and report screens consume:
// one shape for loans, cash-ins, and cash-outs.
type AnyTransaction struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"` // "Loan", "Cash In", "Cash Out"
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Paid      *bool           `json:"paid,omitempty"` // loans only
}
