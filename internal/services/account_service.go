package services

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/gogetcash/backend/internal/models"
	"github.com/gogetcash/backend/internal/store"
)

// AccountService serves the dashboard summary and balance deposits.
type AccountService struct {
	ledger    *LedgerService
	store     store.DocumentStore
	validator *ValidationHelper
}

func NewAccountService(ledger *LedgerService, docStore store.DocumentStore) *AccountService {
	return &AccountService{
		ledger:    ledger,
		store:     docStore,
		validator: NewValidationHelper(),
	}
}

// DepositRequest tops up one of the two balances
// @Description Deposit request structure
type DepositRequest struct {
	Target models.BalanceKind `json:"target" validate:"required,oneof=gcash onhand" example:"gcash"`
	Amount decimal.Decimal    `json:"amount" validate:"required"`
}

// AccountSummary is the dashboard payload
type AccountSummary struct {
	GcashBalance     decimal.Decimal `json:"gcashBalance"`
	OnHandBalance    decimal.Decimal `json:"onHandBalance"`
	TotalBalance     decimal.Decimal `json:"totalBalance"`
	OutstandingLoans decimal.Decimal `json:"outstandingLoans"`
	ActiveLoanCount  int             `json:"activeLoanCount"`
}

// Summary returns the dashboard summary
// @Summary Account summary
// @Description Both balances plus outstanding unpaid loan principal
// @Tags account
// @Produce json
// @Success 200 {object} AccountSummary
// @Failure 500 {object} ErrorResponse
// @Router /account/summary [get]
func (s *AccountService) Summary(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	account, err := s.ledger.Account(r.Context(), user)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to read balances for %s: %v", user, err)
		SendLedgerError(w, err)
		return
	}

	loans, err := s.store.List(r.Context(), loansPath(user))
	if err != nil {
		log.Printf("[ACCOUNT] Failed to list loans for %s: %v", user, err)
		SendLedgerError(w, err)
		return
	}

	outstanding := decimal.Zero
	active := 0
	for id, val := range loans {
		loan, err := decodeLoan(val)
		if err != nil {
			log.Printf("[ACCOUNT] Skipping corrupt loan %s for %s: %v", id, user, err)
			continue
		}
		if loan.Paid {
			continue
		}
		outstanding = outstanding.Add(loan.PrincipalAmount)
		active++
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AccountSummary{
		GcashBalance:     account.GcashBalance,
		OnHandBalance:    account.OnHandBalance,
		TotalBalance:     account.GcashBalance.Add(account.OnHandBalance),
		OutstandingLoans: outstanding,
		ActiveLoanCount:  active,
	})
}

// Deposit tops up a balance
// @Summary Deposit into a balance
// @Description Add funds to the GCash or on-hand balance, capped per deposit
// @Tags account
// @Accept json
// @Produce json
// @Param request body DepositRequest true "Deposit data"
// @Success 200 {object} map[string]string
// @Failure 422 {object} ErrorResponse
// @Router /account/deposit [post]
func (s *AccountService) Deposit(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req DepositRequest
	if !decodeRequest(w, r, &req, s.validator) {
		return
	}

	if err := s.ledger.Deposit(r.Context(), user, req.Target, req.Amount); err != nil {
		SendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Deposit recorded"})
}
