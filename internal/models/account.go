package models

import (
	"github.com/shopspring/decimal"
)

// BalanceKind identifies one of the two cash pools every account carries.
type BalanceKind string

const (
	BalanceGcash  BalanceKind = "gcash"
	BalanceOnHand BalanceKind = "onhand"
)

// Valid reports whether b names a real cash pool.
func (b BalanceKind) Valid() bool {
	return b == BalanceGcash || b == BalanceOnHand
}

// Field returns the document field the balance is persisted under.
func (b BalanceKind) Field() string {
	if b == BalanceGcash {
		return "gcashBalance"
	}
	return "onHandBalance"
}

// DisplayName returns the label the mobile app shows for the balance.
func (b BalanceKind) DisplayName() string {
	if b == BalanceGcash {
		return "GCash"
	}
	return "On-Hand"
}

// Account holds the two per-user cash balances. Both are fixed-point
// decimals with 2 fraction digits and never go negative.
type Account struct {
	GcashBalance  decimal.Decimal `json:"gcashBalance"`
	OnHandBalance decimal.Decimal `json:"onHandBalance"`
}

// Deposit is a manual balance top-up. Entries are append-only and never read
// back by app logic; they exist as an audit trail.
type Deposit struct {
	Target    BalanceKind     `json:"target"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp int64           `json:"timestamp"` // unix millis
}
