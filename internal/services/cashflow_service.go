package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/gogetcash/backend/internal/models"
	"github.com/gogetcash/backend/internal/store"
)

// CashflowService serves the cash-in / cash-out screens and the merged
// transaction history.
type CashflowService struct {
	ledger    *LedgerService
	store     store.DocumentStore
	validator *ValidationHelper
}

func NewCashflowService(ledger *LedgerService, docStore store.DocumentStore) *CashflowService {
	return &CashflowService{
		ledger:    ledger,
		store:     docStore,
		validator: NewValidationHelper(),
	}
}

// CashMovementRequest records a cash-in or cash-out
// @Description Cash movement request structure
type CashMovementRequest struct {
	CounterpartyName string          `json:"counterpartyName" validate:"required,min=2" example:"Juan Dela Cruz"`
	PhoneNumber      string          `json:"phoneNumber" validate:"omitempty,max=20" example:"+639171234567"`
	Amount           decimal.Decimal `json:"amount" validate:"required"`
	Fee              decimal.Decimal `json:"fee"`
}

// CashMovementView is a cash movement plus its identifier
type CashMovementView struct {
	ID string `json:"id"`
	models.CashMovement
}

// RecordCashIn records a cash-in
// @Summary Record a cash-in
// @Description Customer hands over physical cash and receives GCash: GCash balance down, on-hand up
// @Tags cashflow
// @Accept json
// @Produce json
// @Param request body CashMovementRequest true "Movement data"
// @Success 201 {object} map[string]string
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /cashflow/in [post]
func (s *CashflowService) RecordCashIn(w http.ResponseWriter, r *http.Request) {
	s.recordMovement(w, r, models.CashIn)
}

// RecordCashOut records a cash-out
// @Summary Record a cash-out
// @Description Customer sends GCash and receives physical cash: on-hand balance down, GCash up
// @Tags cashflow
// @Accept json
// @Produce json
// @Param request body CashMovementRequest true "Movement data"
// @Success 201 {object} map[string]string
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /cashflow/out [post]
func (s *CashflowService) RecordCashOut(w http.ResponseWriter, r *http.Request) {
	s.recordMovement(w, r, models.CashOut)
}

func (s *CashflowService) recordMovement(w http.ResponseWriter, r *http.Request, direction models.CashDirection) {
	user, ok := currentUser(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CashMovementRequest
	if !decodeRequest(w, r, &req, s.validator) {
		return
	}

	in := CashMovementInput{
		CounterpartyName: req.CounterpartyName,
		PhoneNumber:      req.PhoneNumber,
		Amount:           req.Amount,
		Fee:              req.Fee,
	}

	var (
		id  string
		err error
	)
	if direction == models.CashIn {
		id, err = s.ledger.RecordCashIn(r.Context(), user, in)
	} else {
		id, err = s.ledger.RecordCashOut(r.Context(), user, in)
	}
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"movementId": id})
}

// ListCashIn lists cash-in movements
// @Summary List cash-ins
// @Tags cashflow
// @Produce json
// @Success 200 {object} object{movements=[]CashMovementView,count=int}
// @Router /cashflow/in [get]
func (s *CashflowService) ListCashIn(w http.ResponseWriter, r *http.Request) {
	s.listMovements(w, r, models.CashIn)
}

// ListCashOut lists cash-out movements
// @Summary List cash-outs
// @Tags cashflow
// @Produce json
// @Success 200 {object} object{movements=[]CashMovementView,count=int}
// @Router /cashflow/out [get]
func (s *CashflowService) ListCashOut(w http.ResponseWriter, r *http.Request) {
	s.listMovements(w, r, models.CashOut)
}

func (s *CashflowService) listMovements(w http.ResponseWriter, r *http.Request, direction models.CashDirection) {
	user, ok := currentUser(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	parent := cashInPath(user)
	if direction == models.CashOut {
		parent = cashOutPath(user)
	}

	raw, err := s.store.List(r.Context(), parent)
	if err != nil {
		log.Printf("[CASHFLOW] Failed to list %s movements for %s: %v", direction, user, err)
		SendLedgerError(w, err)
		return
	}

	movements := make([]CashMovementView, 0, len(raw))
	for id, val := range raw {
		var m models.CashMovement
		if err := json.Unmarshal(val, &m); err != nil {
			log.Printf("[CASHFLOW] Skipping corrupt movement %s for %s: %v", id, user, err)
			continue
		}
		movements = append(movements, CashMovementView{ID: id, CashMovement: m})
	}
	sort.Slice(movements, func(i, j int) bool { return movements[i].Timestamp > movements[j].Timestamp })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"movements": movements,
		"count":     len(movements),
	})
}

// History merges loans, cash-ins, and cash-outs into one feed
// @Summary Transaction history
// @Description All loans and cash movements flattened into one list, newest first
// @Tags cashflow
// @Produce json
// @Param limit query int false "Maximum rows to return"
// @Success 200 {object} object{transactions=[]models.AnyTransaction,count=int}
// @Router /history [get]
func (s *CashflowService) History(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.collectHistory(r, user)
	if err != nil {
		log.Printf("[CASHFLOW] Failed to build history for %s: %v", user, err)
		SendLedgerError(w, err)
		return
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp > rows[j].Timestamp })

	if limit := queryInt(r, "limit"); limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": rows,
		"count":        len(rows),
	})
}

func (s *CashflowService) collectHistory(r *http.Request, user string) ([]models.AnyTransaction, error) {
	rows := make([]models.AnyTransaction, 0, 32)

	loans, err := s.store.List(r.Context(), loansPath(user))
	if err != nil {
		return nil, err
	}
	for id, val := range loans {
		loan, err := decodeLoan(val)
		if err != nil {
			log.Printf("[CASHFLOW] Skipping corrupt loan %s for %s: %v", id, user, err)
			continue
		}
		paid := loan.Paid
		rows = append(rows, models.AnyTransaction{
			ID:        id,
			Type:      "Loan",
			Name:      loan.BorrowerName,
			Amount:    loan.PrincipalAmount,
			Fee:       loan.FeeAmount,
			Timestamp: loan.CreatedAt,
			Paid:      &paid,
		})
	}

	for _, direction := range []models.CashDirection{models.CashIn, models.CashOut} {
		parent, label := cashInPath(user), "Cash In"
		if direction == models.CashOut {
			parent, label = cashOutPath(user), "Cash Out"
		}
		movements, err := s.store.List(r.Context(), parent)
		if err != nil {
			return nil, err
		}
		for id, val := range movements {
			var m models.CashMovement
			if err := json.Unmarshal(val, &m); err != nil {
				log.Printf("[CASHFLOW] Skipping corrupt movement %s for %s: %v", id, user, err)
				continue
			}
			rows = append(rows, models.AnyTransaction{
				ID:        id,
				Type:      label,
				Name:      m.CounterpartyName,
				Amount:    m.Amount,
				Fee:       m.Fee,
				Timestamp: m.Timestamp,
			})
		}
	}

	return rows, nil
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}
