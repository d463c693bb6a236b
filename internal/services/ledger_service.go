package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gogetcash/backend/internal/config"
	"github.com/gogetcash/backend/internal/models"
	"github.com/gogetcash/backend/internal/store"
)

// Ledger error kinds. Validation errors are detected before any mutation;
// only ErrConcurrentConflict (and the store's ErrUnavailable) are retryable.
var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDateRange   = errors.New("due date cannot be before the start date")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrLoanAlreadyPaid    = errors.New("loan is already paid")
	ErrExceedsOutstanding = errors.New("reduction exceeds outstanding amount")
	ErrConcurrentConflict = errors.New("concurrent update conflict")
)

// LedgerService owns every balance-affecting mutation on an account. Each
// operation runs as one compare-and-swap transaction against the document
// store, so two concurrent operations on the same account serialize instead
// of losing an update. Both balances stay >= 0 at all times.
type LedgerService struct {
	store store.DocumentStore
	cfg   *config.LedgerConfig
}

func NewLedgerService(docStore store.DocumentStore, cfg *config.LedgerConfig) *LedgerService {
	return &LedgerService{
		store: docStore,
		cfg:   cfg,
	}
}

type CreateLoanInput struct {
	BorrowerName  string
	PhoneNumber   string
	Principal     decimal.Decimal
	Fee           decimal.Decimal
	StartDate     int64 // unix millis
	DueDate       int64 // unix millis
	FundingSource models.BalanceKind
}

type CashMovementInput struct {
	CounterpartyName string
	PhoneNumber      string
	Amount           decimal.Decimal
	Fee              decimal.Decimal
}

// CreateLoan debits the funding balance by the principal and creates the loan
// record in a single atomic write. Returns the new loan's identifier.
func (s *LedgerService) CreateLoan(ctx context.Context, user string, in CreateLoanInput) (string, error) {
	principal := in.Principal.Round(2)
	fee := in.Fee.Round(2)

	if principal.LessThanOrEqual(decimal.Zero) || fee.IsNegative() {
		return "", ErrInvalidAmount
	}
	if in.DueDate < in.StartDate {
		return "", ErrInvalidDateRange
	}
	if !in.FundingSource.Valid() {
		return "", fmt.Errorf("unknown funding source %q", in.FundingSource)
	}

	loanID := s.store.NewKey(loansPath(user))
	balPath := balancePath(user, in.FundingSource)

	err := s.transact(ctx, []string{balPath}, func(current map[string][]byte) (map[string][]byte, error) {
		balance, err := decodeBalance(current[balPath])
		if err != nil {
			return nil, err
		}
		if balance.LessThan(principal) {
			return nil, ErrInsufficientFunds
		}

		record := models.LoanRecord{
			BorrowerName:    in.BorrowerName,
			PhoneNumber:     in.PhoneNumber,
			PrincipalAmount: principal,
			FeeAmount:       fee,
			StartDate:       in.StartDate,
			DueDate:         in.DueDate,
			Paid:            false,
			FundingSource:   in.FundingSource,
			CreatedAt:       nowMillis(),
		}
		return encodeUpdates(map[string]any{
			balPath:                balance.Sub(principal),
			loanPath(user, loanID): record,
		})
	})
	if err != nil {
		return "", err
	}

	log.Printf("[LEDGER] Loan %s created for %s: %s from %s", loanID, user, principal, in.FundingSource.DisplayName())
	return loanID, nil
}

// AddToLoan lends more money against an existing unpaid loan: the funding
// balance goes down, the loan's principal and fee go up.
func (s *LedgerService) AddToLoan(ctx context.Context, user, loanID string, extraPrincipal, extraFee decimal.Decimal, funding models.BalanceKind) error {
	extraPrincipal = extraPrincipal.Round(2)
	extraFee = extraFee.Round(2)

	if extraPrincipal.LessThanOrEqual(decimal.Zero) || extraFee.IsNegative() {
		return ErrInvalidAmount
	}
	if !funding.Valid() {
		return fmt.Errorf("unknown funding source %q", funding)
	}

	lp := loanPath(user, loanID)
	balPath := balancePath(user, funding)

	err := s.transact(ctx, []string{lp, balPath}, func(current map[string][]byte) (map[string][]byte, error) {
		loan, err := decodeLoan(current[lp])
		if err != nil {
			return nil, err
		}
		if loan.Paid {
			return nil, ErrLoanAlreadyPaid
		}

		balance, err := decodeBalance(current[balPath])
		if err != nil {
			return nil, err
		}
		if balance.LessThan(extraPrincipal) {
			return nil, ErrInsufficientFunds
		}

		loan.PrincipalAmount = loan.PrincipalAmount.Add(extraPrincipal)
		loan.FeeAmount = loan.FeeAmount.Add(extraFee)
		return encodeUpdates(map[string]any{
			balPath: balance.Sub(extraPrincipal),
			lp:      loan,
		})
	})
	if err != nil {
		return err
	}

	log.Printf("[LEDGER] Loan %s increased by %s for %s", loanID, extraPrincipal, user)
	return nil
}

// ReduceLoan records a partial repayment: the chosen balance goes up by the
// returned principal, the loan's outstanding principal and fee go down.
// Neither can be driven below zero.
func (s *LedgerService) ReduceLoan(ctx context.Context, user, loanID string, returnedPrincipal, returnedFee decimal.Decimal, returnTo models.BalanceKind) error {
	returnedPrincipal = returnedPrincipal.Round(2)
	returnedFee = returnedFee.Round(2)

	if returnedPrincipal.LessThanOrEqual(decimal.Zero) || returnedFee.IsNegative() {
		return ErrInvalidAmount
	}
	if !returnTo.Valid() {
		return fmt.Errorf("unknown return balance %q", returnTo)
	}

	lp := loanPath(user, loanID)
	balPath := balancePath(user, returnTo)

	err := s.transact(ctx, []string{lp, balPath}, func(current map[string][]byte) (map[string][]byte, error) {
		loan, err := decodeLoan(current[lp])
		if err != nil {
			return nil, err
		}
		if loan.Paid {
			return nil, ErrLoanAlreadyPaid
		}
		if returnedPrincipal.GreaterThan(loan.PrincipalAmount) || returnedFee.GreaterThan(loan.FeeAmount) {
			return nil, ErrExceedsOutstanding
		}

		balance, err := decodeBalance(current[balPath])
		if err != nil {
			return nil, err
		}

		loan.PrincipalAmount = loan.PrincipalAmount.Sub(returnedPrincipal)
		loan.FeeAmount = loan.FeeAmount.Sub(returnedFee)
		return encodeUpdates(map[string]any{
			balPath: balance.Add(returnedPrincipal),
			lp:      loan,
		})
	})
	if err != nil {
		return err
	}

	log.Printf("[LEDGER] Loan %s reduced by %s for %s", loanID, returnedPrincipal, user)
	return nil
}

// MarkLoanPaid settles a loan: paid becomes true (terminal) and the chosen
// balance receives the loan's current principal. The record is immutable
// afterwards.
func (s *LedgerService) MarkLoanPaid(ctx context.Context, user, loanID string, returnTo models.BalanceKind) error {
	if !returnTo.Valid() {
		return fmt.Errorf("unknown return balance %q", returnTo)
	}

	lp := loanPath(user, loanID)
	balPath := balancePath(user, returnTo)

	err := s.transact(ctx, []string{lp, balPath}, func(current map[string][]byte) (map[string][]byte, error) {
		loan, err := decodeLoan(current[lp])
		if err != nil {
			return nil, err
		}
		if loan.Paid {
			return nil, ErrLoanAlreadyPaid
		}

		balance, err := decodeBalance(current[balPath])
		if err != nil {
			return nil, err
		}

		loan.Paid = true
		return encodeUpdates(map[string]any{
			balPath: balance.Add(loan.PrincipalAmount),
			lp:      loan,
		})
	})
	if err != nil {
		return err
	}

	log.Printf("[LEDGER] Loan %s marked paid for %s, returned to %s", loanID, user, returnTo.DisplayName())
	return nil
}

// UpdateLoan edits the only two mutable fields of an unpaid loan: the fee and
// the due date. Borrower identity, principal, and start date never change.
func (s *LedgerService) UpdateLoan(ctx context.Context, user, loanID string, newFee decimal.Decimal, newDueDate int64) error {
	newFee = newFee.Round(2)
	if newFee.IsNegative() {
		return ErrInvalidAmount
	}

	lp := loanPath(user, loanID)

	err := s.transact(ctx, []string{lp}, func(current map[string][]byte) (map[string][]byte, error) {
		loan, err := decodeLoan(current[lp])
		if err != nil {
			return nil, err
		}
		if loan.Paid {
			return nil, ErrLoanAlreadyPaid
		}
		if newDueDate < loan.StartDate {
			return nil, ErrInvalidDateRange
		}

		loan.FeeAmount = newFee
		loan.DueDate = newDueDate
		return encodeUpdates(map[string]any{lp: loan})
	})
	if err != nil {
		return err
	}

	log.Printf("[LEDGER] Loan %s updated for %s", loanID, user)
	return nil
}

// DeleteLoan removes an unpaid loan and refunds its outstanding principal to
// the balance it was funded from. Deletion treats the loan as a data-entry
// mistake, so the money debited at creation comes back.
func (s *LedgerService) DeleteLoan(ctx context.Context, user, loanID string) error {
	lp := loanPath(user, loanID)

	// The funding source is immutable after creation, so reading it outside
	// the transaction is safe; the transaction re-checks the record itself.
	raw, err := s.store.Read(ctx, lp)
	if err != nil {
		return err
	}
	funding, err := decodeLoan(raw)
	if err != nil {
		return err
	}
	if funding.Paid {
		return ErrLoanAlreadyPaid
	}

	balPath := balancePath(user, funding.FundingSource)

	err = s.transact(ctx, []string{lp, balPath}, func(current map[string][]byte) (map[string][]byte, error) {
		loan, err := decodeLoan(current[lp])
		if err != nil {
			return nil, err
		}
		if loan.Paid {
			return nil, ErrLoanAlreadyPaid
		}

		balance, err := decodeBalance(current[balPath])
		if err != nil {
			return nil, err
		}

		updates, err := encodeUpdates(map[string]any{
			balPath: balance.Add(loan.PrincipalAmount),
		})
		if err != nil {
			return nil, err
		}
		updates[lp] = nil
		return updates, nil
	})
	if err != nil {
		return err
	}

	log.Printf("[LEDGER] Loan %s deleted for %s, principal refunded to %s", loanID, user, funding.FundingSource.DisplayName())
	return nil
}

// RecordCashIn converts electronic float to physical cash: GCash balance down
// by the amount, on-hand balance up by the same amount, plus the movement
// record. Returns the new movement's identifier.
func (s *LedgerService) RecordCashIn(ctx context.Context, user string, in CashMovementInput) (string, error) {
	return s.recordCashMovement(ctx, user, in, models.CashIn)
}

// RecordCashOut is the reverse of RecordCashIn: on-hand down, GCash up.
func (s *LedgerService) RecordCashOut(ctx context.Context, user string, in CashMovementInput) (string, error) {
	return s.recordCashMovement(ctx, user, in, models.CashOut)
}

func (s *LedgerService) recordCashMovement(ctx context.Context, user string, in CashMovementInput, direction models.CashDirection) (string, error) {
	amount := in.Amount.Round(2)
	fee := in.Fee.Round(2)

	if amount.LessThanOrEqual(decimal.Zero) || fee.IsNegative() {
		return "", ErrInvalidAmount
	}

	from, to := models.BalanceGcash, models.BalanceOnHand
	parent := cashInPath(user)
	if direction == models.CashOut {
		from, to = models.BalanceOnHand, models.BalanceGcash
		parent = cashOutPath(user)
	}

	fromPath := balancePath(user, from)
	toPath := balancePath(user, to)
	movementID := s.store.NewKey(parent)

	err := s.transact(ctx, []string{fromPath, toPath}, func(current map[string][]byte) (map[string][]byte, error) {
		fromBal, err := decodeBalance(current[fromPath])
		if err != nil {
			return nil, err
		}
		if fromBal.LessThan(amount) {
			return nil, ErrInsufficientFunds
		}
		toBal, err := decodeBalance(current[toPath])
		if err != nil {
			return nil, err
		}

		movement := models.CashMovement{
			CounterpartyName: in.CounterpartyName,
			PhoneNumber:      in.PhoneNumber,
			Amount:           amount,
			Fee:              fee,
			Timestamp:        nowMillis(),
			Direction:        direction,
		}
		return encodeUpdates(map[string]any{
			fromPath:                  fromBal.Sub(amount),
			toPath:                    toBal.Add(amount),
			parent + "/" + movementID: movement,
		})
	})
	if err != nil {
		return "", err
	}

	log.Printf("[LEDGER] Cash %s of %s recorded for %s", direction, amount, user)
	return movementID, nil
}

// Deposit tops up one balance by a positive amount, bounded by the configured
// maximum, and appends a write-only audit entry.
func (s *LedgerService) Deposit(ctx context.Context, user string, target models.BalanceKind, amount decimal.Decimal) error {
	amount = amount.Round(2)

	if amount.LessThanOrEqual(decimal.Zero) || amount.GreaterThan(s.cfg.MaxDeposit) {
		return ErrInvalidAmount
	}
	if !target.Valid() {
		return fmt.Errorf("unknown balance %q", target)
	}

	balPath := balancePath(user, target)
	entryID := s.store.NewKey(depositsPath(user))

	err := s.transact(ctx, []string{balPath}, func(current map[string][]byte) (map[string][]byte, error) {
		balance, err := decodeBalance(current[balPath])
		if err != nil {
			return nil, err
		}

		entry := models.Deposit{
			Target:    target,
			Amount:    amount,
			Timestamp: nowMillis(),
		}
		return encodeUpdates(map[string]any{
			balPath:                            balance.Add(amount),
			depositsPath(user) + "/" + entryID: entry,
		})
	})
	if err != nil {
		return err
	}

	log.Printf("[LEDGER] Deposit of %s to %s for %s", amount, target.DisplayName(), user)
	return nil
}

// Account reads both balances. Absent values read as zero, matching an
// account that has never been topped up.
func (s *LedgerService) Account(ctx context.Context, user string) (*models.Account, error) {
	gcashRaw, err := s.store.Read(ctx, balancePath(user, models.BalanceGcash))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	onHandRaw, err := s.store.Read(ctx, balancePath(user, models.BalanceOnHand))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	gcash, err := decodeBalance(gcashRaw)
	if err != nil {
		return nil, err
	}
	onHand, err := decodeBalance(onHandRaw)
	if err != nil {
		return nil, err
	}
	return &models.Account{GcashBalance: gcash, OnHandBalance: onHand}, nil
}

// Loan reads one loan record.
func (s *LedgerService) Loan(ctx context.Context, user, loanID string) (*models.LoanRecord, error) {
	raw, err := s.store.Read(ctx, loanPath(user, loanID))
	if err != nil {
		return nil, err
	}
	return decodeLoan(raw)
}

// transact retries the compare-and-swap a bounded number of times before
// surfacing ErrConcurrentConflict. Every other error passes through unchanged.
func (s *LedgerService) transact(ctx context.Context, paths []string, fn store.UpdateFn) error {
	retries := s.cfg.TransactRetries
	if retries < 1 {
		retries = 1
	}

	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		err = s.store.Transact(ctx, paths, fn)
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		log.Printf("[LEDGER] Transaction conflict, attempt %d/%d", attempt, retries)
	}
	return ErrConcurrentConflict
}

// Document tree layout, one subtree per user:
//
//	users/{username}/profile
//	users/{username}/gcashBalance
//	users/{username}/onHandBalance
//	users/{username}/loans/{loanId}
//	users/{username}/cashIn/{id}
//	users/{username}/cashOut/{id}
//	users/{username}/deposits/{id}

func userPath(user string) string { return "users/" + user }

func profilePath(user string) string { return userPath(user) + "/profile" }

func balancePath(user string, b models.BalanceKind) string {
	return userPath(user) + "/" + b.Field()
}

func loansPath(user string) string { return userPath(user) + "/loans" }

func loanPath(user, loanID string) string { return loansPath(user) + "/" + loanID }

func cashInPath(user string) string { return userPath(user) + "/cashIn" }

func cashOutPath(user string) string { return userPath(user) + "/cashOut" }

func depositsPath(user string) string { return userPath(user) + "/deposits" }

func nowMillis() int64 { return time.Now().UnixMilli() }

func decodeBalance(raw []byte) (decimal.Decimal, error) {
	if raw == nil {
		return decimal.Zero, nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return decimal.Zero, fmt.Errorf("corrupt balance value: %w", err)
	}
	return d, nil
}

func decodeLoan(raw []byte) (*models.LoanRecord, error) {
	if raw == nil {
		return nil, store.ErrNotFound
	}
	var loan models.LoanRecord
	if err := json.Unmarshal(raw, &loan); err != nil {
		return nil, fmt.Errorf("corrupt loan record: %w", err)
	}
	return &loan, nil
}

func encodeUpdates(values map[string]any) (map[string][]byte, error) {
	updates := make(map[string][]byte, len(values))
	for path, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		updates[path] = raw
	}
	return updates, nil
}
