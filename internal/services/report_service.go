package services

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gogetcash/backend/internal/store"
)

// ReportService builds the end-of-day income report: fees collected from
// loans and cash movements recorded within a calendar day.
type ReportService struct {
	cashflow *CashflowService
	store    store.DocumentStore
}

func NewReportService(cashflow *CashflowService, docStore store.DocumentStore) *ReportService {
	return &ReportService{cashflow: cashflow, store: docStore}
}

// DailyReport is the per-day fee breakdown
type DailyReport struct {
	Date             string          `json:"date"`
	LoanFees         decimal.Decimal `json:"loanFees"`
	CashInFees       decimal.Decimal `json:"cashInFees"`
	CashOutFees      decimal.Decimal `json:"cashOutFees"`
	TotalIncome      decimal.Decimal `json:"totalIncome"`
	TransactionCount int             `json:"transactionCount"`
}

// Daily returns the fee report for one calendar day
// @Summary Daily income report
// @Description Fees earned from loans, cash-ins, and cash-outs recorded on the given date
// @Tags reports
// @Produce json
// @Param date query string false "Date as YYYY-MM-DD, defaults to today"
// @Success 200 {object} DailyReport
// @Failure 400 {object} ErrorResponse
// @Router /reports/daily [get]
func (s *ReportService) Daily(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	day := time.Now()
	if q := r.URL.Query().Get("date"); q != "" {
		parsed, err := time.ParseInLocation("2006-01-02", q, time.Local)
		if err != nil {
			SendErrorResponse(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
			return
		}
		day = parsed
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.Local)
	from, to := start.UnixMilli(), start.Add(24*time.Hour).UnixMilli()

	rows, err := s.cashflow.collectHistory(r, user)
	if err != nil {
		log.Printf("[REPORTS] Failed to build daily report for %s: %v", user, err)
		SendLedgerError(w, err)
		return
	}

	report := DailyReport{
		Date:        start.Format("2006-01-02"),
		LoanFees:    decimal.Zero,
		CashInFees:  decimal.Zero,
		CashOutFees: decimal.Zero,
	}
	for _, row := range rows {
		if row.Timestamp < from || row.Timestamp >= to {
			continue
		}
		switch row.Type {
		case "Loan":
			report.LoanFees = report.LoanFees.Add(row.Fee)
		case "Cash In":
			report.CashInFees = report.CashInFees.Add(row.Fee)
		case "Cash Out":
			report.CashOutFees = report.CashOutFees.Add(row.Fee)
		}
		report.TransactionCount++
	}
	report.TotalIncome = report.LoanFees.Add(report.CashInFees).Add(report.CashOutFees)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
