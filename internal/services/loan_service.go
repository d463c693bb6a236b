package services

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gogetcash/backend/internal/models"
	"github.com/gogetcash/backend/internal/store"
)

// LoanService exposes the loan screens of the mobile app over HTTP. Every
// mutation goes through the LedgerService; reads go straight to the store.
type LoanService struct {
	ledger    *LedgerService
	store     store.DocumentStore
	validator *ValidationHelper
}

func NewLoanService(ledger *LedgerService, docStore store.DocumentStore) *LoanService {
	return &LoanService{
		ledger:    ledger,
		store:     docStore,
		validator: NewValidationHelper(),
	}
}

// CreateLoanRequest represents a new loan
// @Description New loan request structure
type CreateLoanRequest struct {
	BorrowerName  string             `json:"borrowerName" validate:"required,min=2" example:"Maria Santos"`
	PhoneNumber   string             `json:"phoneNumber" validate:"omitempty,max=20" example:"+639171234567"`
	Principal     decimal.Decimal    `json:"principal" validate:"required"`
	Fee           decimal.Decimal    `json:"fee"`
	StartDate     int64              `json:"startDate" validate:"required"` // unix millis
	DueDate       int64              `json:"dueDate" validate:"required"`   // unix millis
	FundingSource models.BalanceKind `json:"fundingSource" validate:"required,oneof=gcash onhand"`
}

// UpdateLoanRequest carries the only two editable loan fields
type UpdateLoanRequest struct {
	Fee     decimal.Decimal `json:"fee"`
	DueDate int64           `json:"dueDate" validate:"required"` // unix millis
}

// LoanAdjustmentRequest adds to or reduces an unpaid loan
type LoanAdjustmentRequest struct {
	Principal decimal.Decimal    `json:"principal" validate:"required"`
	Fee       decimal.Decimal    `json:"fee"`
	Balance   models.BalanceKind `json:"balance" validate:"required,oneof=gcash onhand"`
}

// MarkPaidRequest chooses the balance the principal returns to
type MarkPaidRequest struct {
	ReturnTo models.BalanceKind `json:"returnTo" validate:"required,oneof=gcash onhand"`
}

// LoanView is a loan record plus its identifier
type LoanView struct {
	ID string `json:"id"`
	models.LoanRecord
}

// CreateLoan creates a new loan
// @Summary Create a loan
// @Description Record a loan to a borrower, funded from one of the two balances
// @Tags loans
// @Accept json
// @Produce json
// @Param request body CreateLoanRequest true "Loan data"
// @Success 201 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /loans [post]
func (s *LoanService) CreateLoan(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CreateLoanRequest
	if !decodeRequest(w, r, &req, s.validator) {
		return
	}

	loanID, err := s.ledger.CreateLoan(r.Context(), user, CreateLoanInput{
		BorrowerName:  req.BorrowerName,
		PhoneNumber:   req.PhoneNumber,
		Principal:     req.Principal,
		Fee:           req.Fee,
		StartDate:     req.StartDate,
		DueDate:       req.DueDate,
		FundingSource: req.FundingSource,
	})
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"loanId": loanID})
}

// ListLoans lists the user's loans
// @Summary List loans
// @Description List loans, newest first, optionally filtered by paid status
// @Tags loans
// @Produce json
// @Param paid query bool false "Filter by paid status"
// @Success 200 {object} object{loans=[]LoanView,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /loans [get]
func (s *LoanService) ListLoans(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	raw, err := s.store.List(r.Context(), loansPath(user))
	if err != nil {
		log.Printf("[LOANS] Failed to list loans for %s: %v", user, err)
		SendLedgerError(w, err)
		return
	}

	var paidFilter *bool
	if p := r.URL.Query().Get("paid"); p == "true" || p == "false" {
		v := p == "true"
		paidFilter = &v
	}

	loans := make([]LoanView, 0, len(raw))
	for id, val := range raw {
		loan, err := decodeLoan(val)
		if err != nil {
			log.Printf("[LOANS] Skipping corrupt loan %s for %s: %v", id, user, err)
			continue
		}
		if paidFilter != nil && loan.Paid != *paidFilter {
			continue
		}
		loans = append(loans, LoanView{ID: id, LoanRecord: *loan})
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].CreatedAt > loans[j].CreatedAt })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"loans": loans,
		"count": len(loans),
	})
}

// GetLoan fetches one loan
// @Summary Get loan by ID
// @Tags loans
// @Produce json
// @Param loanId path string true "Loan ID"
// @Success 200 {object} LoanView
// @Failure 404 {object} ErrorResponse
// @Router /loans/{loanId} [get]
func (s *LoanService) GetLoan(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	loanID := chi.URLParam(r, "loanId")

	loan, err := s.ledger.Loan(r.Context(), user, loanID)
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoanView{ID: loanID, LoanRecord: *loan})
}

// UpdateLoan edits the fee and due date of an unpaid loan
// @Summary Update a loan
// @Description Only the fee and the due date are editable; paid loans reject every edit
// @Tags loans
// @Accept json
// @Produce json
// @Param loanId path string true "Loan ID"
// @Param request body UpdateLoanRequest true "Editable fields"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /loans/{loanId} [put]
func (s *LoanService) UpdateLoan(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	loanID := chi.URLParam(r, "loanId")

	var req UpdateLoanRequest
	if !decodeRequest(w, r, &req, s.validator) {
		return
	}

	if err := s.ledger.UpdateLoan(r.Context(), user, loanID, req.Fee, req.DueDate); err != nil {
		SendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Loan updated"})
}

// DeleteLoan removes an unpaid loan
// @Summary Delete a loan
// @Description Delete an unpaid loan; its outstanding principal is refunded to the funding balance
// @Tags loans
// @Produce json
// @Param loanId path string true "Loan ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /loans/{loanId} [delete]
func (s *LoanService) DeleteLoan(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	loanID := chi.URLParam(r, "loanId")

	if err := s.ledger.DeleteLoan(r.Context(), user, loanID); err != nil {
		SendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Loan deleted"})
}

// AddToLoan lends more against an existing loan
// @Summary Add to a loan
// @Tags loans
// @Accept json
// @Produce json
// @Param loanId path string true "Loan ID"
// @Param request body LoanAdjustmentRequest true "Additional principal and fee"
// @Success 200 {object} map[string]string
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /loans/{loanId}/additions [post]
func (s *LoanService) AddToLoan(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	loanID := chi.URLParam(r, "loanId")

	var req LoanAdjustmentRequest
	if !decodeRequest(w, r, &req, s.validator) {
		return
	}

	if err := s.ledger.AddToLoan(r.Context(), user, loanID, req.Principal, req.Fee, req.Balance); err != nil {
		SendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Loan increased"})
}

// ReduceLoan records a partial repayment
// @Summary Reduce a loan
// @Tags loans
// @Accept json
// @Produce json
// @Param loanId path string true "Loan ID"
// @Param request body LoanAdjustmentRequest true "Returned principal and fee"
// @Success 200 {object} map[string]string
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /loans/{loanId}/reductions [post]
func (s *LoanService) ReduceLoan(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	loanID := chi.URLParam(r, "loanId")

	var req LoanAdjustmentRequest
	if !decodeRequest(w, r, &req, s.validator) {
		return
	}

	if err := s.ledger.ReduceLoan(r.Context(), user, loanID, req.Principal, req.Fee, req.Balance); err != nil {
		SendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Loan reduced"})
}

// MarkLoanPaid settles a loan
// @Summary Mark a loan as paid
// @Description The loan's principal returns to the chosen balance and the record becomes immutable
// @Tags loans
// @Accept json
// @Produce json
// @Param loanId path string true "Loan ID"
// @Param request body MarkPaidRequest true "Return balance"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /loans/{loanId}/paid [post]
func (s *LoanService) MarkLoanPaid(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	loanID := chi.URLParam(r, "loanId")

	var req MarkPaidRequest
	if !decodeRequest(w, r, &req, s.validator) {
		return
	}

	if err := s.ledger.MarkLoanPaid(r.Context(), user, loanID, req.ReturnTo); err != nil {
		SendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Loan marked as paid"})
}

// currentUser extracts the authenticated username the middleware stored on
// the request context.
func currentUser(r *http.Request) (string, bool) {
	user, ok := r.Context().Value("userID").(string)
	return user, ok && user != ""
}

// decodeRequest applies the shared body handling for JSON endpoints: size
// cap, unknown-field rejection, single-object requirement, struct validation.
// Returns false after writing the error response.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any, vh *ValidationHelper) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := vh.ValidateStruct(dst); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}
