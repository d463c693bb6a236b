package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogetcash/backend/internal/models"
	"github.com/gogetcash/backend/internal/store"
)

func newAccountTestServer(t *testing.T) (*chi.Mux, *LedgerService, *store.MemoryStore) {
	t.Helper()

	ledger, docStore := newTestLedger(t)
	service := NewAccountService(ledger, docStore)

	r := chi.NewRouter()
	r.Get("/account/summary", service.Summary)
	r.Post("/account/deposit", service.Deposit)

	return r, ledger, docStore
}

func TestAccountService_Summary(t *testing.T) {
	router, ledger, docStore := newAccountTestServer(t)
	seedBalance(t, docStore, "jeysi", models.BalanceGcash, "1000")
	seedBalance(t, docStore, "jeysi", models.BalanceOnHand, "250")

	ctx := context.Background()
	_, err := ledger.CreateLoan(ctx, "jeysi", testLoanInput("400"))
	require.NoError(t, err)

	paidID, err := ledger.CreateLoan(ctx, "jeysi", testLoanInput("100"))
	require.NoError(t, err)
	require.NoError(t, ledger.MarkLoanPaid(ctx, "jeysi", paidID, models.BalanceGcash))

	t.Run("balances and outstanding principal", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("GET", "/account/summary", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var summary AccountSummary
		json.Unmarshal(w.Body.Bytes(), &summary)

		// 1000 - 400 - 100 + 100 returned on settle.
		assert.True(t, summary.GcashBalance.Equal(dec("600")))
		assert.True(t, summary.OnHandBalance.Equal(dec("250")))
		assert.True(t, summary.TotalBalance.Equal(dec("850")))
		assert.True(t, summary.OutstandingLoans.Equal(dec("400")))
		assert.Equal(t, 1, summary.ActiveLoanCount)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/account/summary", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAccountService_Deposit(t *testing.T) {
	router, ledger, _ := newAccountTestServer(t)

	t.Run("deposit into empty account", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("POST", "/account/deposit", map[string]any{
			"target": "gcash",
			"amount": "150",
		}))

		assert.Equal(t, http.StatusOK, w.Code)

		account, err := ledger.Account(context.Background(), "jeysi")
		require.NoError(t, err)
		assert.True(t, account.GcashBalance.Equal(dec("150")))
	})

	t.Run("negative amount", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("POST", "/account/deposit", map[string]any{
			"target": "onhand",
			"amount": "-5",
		}))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("over the per-deposit cap", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("POST", "/account/deposit", map[string]any{
			"target": "gcash",
			"amount": "2000000",
		}))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("unknown target", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("POST", "/account/deposit", map[string]any{
			"target": "bank",
			"amount": "100",
		}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
