package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mbongotech/cookpay-backend/api/responses"
	"github.com/mbongotech/cookpay-backend/api/validators"
	"github.com/mbongotech/cookpay-backend/internal/deduction"
	"github.com/mbongotech/cookpay-backend/internal/wallet"
	"github.com/mbongotech/cookpay-backend/pkg/db/models"
	"github.com/mbongotech/cookpay-backend/pkg/enums"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
	"github.com/mbongotech/cookpay-backend/pkg/pagination"
)

type walletResponse struct {
	ID                    string `json:"id"`
	TotalBalance          int64  `json:"totalBalance"`
	WithdrawableBalance   int64  `json:"withdrawableBalance"`
	UnwithdrawableBalance int64  `json:"unwithdrawableBalance"`
	Currency              string `json:"currency"`
}

type cookWalletResponse struct {
	walletResponse
	TenantID string `json:"tenantId"`
	CookID   string `json:"cookId"`
}

type clientWalletResponse struct {
	walletResponse
	ClientID string `json:"clientId"`
}

type transactionResponse struct {
	ID             string     `json:"id"`
	OrderID        *string    `json:"orderId,omitempty"`
	Type           string     `json:"type"`
	Amount         int64      `json:"amount"`
	BalanceBefore  int64      `json:"balanceBefore"`
	BalanceAfter   int64      `json:"balanceAfter"`
	IsWithdrawable bool       `json:"isWithdrawable"`
	WithdrawableAt *time.Time `json:"withdrawableAt,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type transactionListResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	NextCursor   string                `json:"nextCursor,omitempty"`
}

func newCookWalletResponse(w *models.CookWallet) cookWalletResponse {
	return cookWalletResponse{
		walletResponse: walletResponse{
			ID:                    w.ID.String(),
			TotalBalance:          w.TotalBalance,
			WithdrawableBalance:   w.WithdrawableBalance,
			UnwithdrawableBalance: w.UnwithdrawableBalance,
			Currency:              string(w.Currency),
		},
		TenantID: w.TenantID.String(),
		CookID:   w.CookID.String(),
	}
}

func newTransactionResponse(txn models.WalletTransaction) transactionResponse {
	resp := transactionResponse{
		ID:             txn.ID.String(),
		Type:           string(txn.Type),
		Amount:         txn.Amount,
		BalanceBefore:  txn.BalanceBefore,
		BalanceAfter:   txn.BalanceAfter,
		IsWithdrawable: txn.IsWithdrawable,
		WithdrawableAt: txn.WithdrawableAt,
		Status:         string(txn.Status),
		CreatedAt:      txn.CreatedAt,
	}
	if txn.OrderID != nil {
		oid := txn.OrderID.String()
		resp.OrderID = &oid
	}
	return resp
}

// GetCookWallet returns a cook wallet's balances by wallet id.
func GetCookWallet(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := validators.ParsePathUUID(r, chi.URLParam(r, "walletID"), "walletID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		found, err := svc.GetCookWallet(r.Context(), walletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCookWalletResponse(found))
	}
}

// GetCookWalletByOwner resolves a cook wallet from tenant and cook ids.
func GetCookWalletByOwner(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParsePathUUID(r, chi.URLParam(r, "tenantID"), "tenantID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cookID, err := validators.ParsePathUUID(r, chi.URLParam(r, "cookID"), "cookID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		found, err := svc.GetCookWalletByTenantCook(r.Context(), tenantID, cookID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCookWalletResponse(found))
	}
}

// GetClientWallet returns a client wallet's balances by client id.
func GetClientWallet(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID, err := validators.ParsePathUUID(r, chi.URLParam(r, "clientID"), "clientID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		found, err := svc.GetClientWallet(r.Context(), clientID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, clientWalletResponse{
			walletResponse: walletResponse{
				ID:                    found.ID.String(),
				TotalBalance:          found.TotalBalance,
				WithdrawableBalance:   found.WithdrawableBalance,
				UnwithdrawableBalance: found.UnwithdrawableBalance,
				Currency:              string(found.Currency),
			},
			ClientID: found.ClientID.String(),
		})
	}
}

// ListWalletTransactions returns the paginated ledger for a wallet.
func ListWalletTransactions(svc wallet.Service, kind enums.WalletKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := validators.ParsePathUUID(r, chi.URLParam(r, "walletID"), "walletID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		rows, next, err := svc.ListTransactions(r.Context(), kind, walletID, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := transactionListResponse{
			Transactions: make([]transactionResponse, 0, len(rows)),
			NextCursor:   next,
		}
		for _, row := range rows {
			resp.Transactions = append(resp.Transactions, newTransactionResponse(row))
		}
		responses.WriteSuccess(w, resp)
	}
}

type deductionResponse struct {
	ID              string     `json:"id"`
	OrderID         *string    `json:"orderId,omitempty"`
	OriginalAmount  int64      `json:"originalAmount"`
	RemainingAmount int64      `json:"remainingAmount"`
	Reason          string     `json:"reason"`
	Source          string     `json:"source"`
	SettledAt       *time.Time `json:"settledAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type deductionListResponse struct {
	Deductions []deductionResponse `json:"deductions"`
	OpenTotal  int64               `json:"openTotal"`
}

// ListWalletDeductions returns the deduction debt against a cook wallet.
func ListWalletDeductions(svc deduction.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := validators.ParsePathUUID(r, chi.URLParam(r, "walletID"), "walletID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		includeSettled := false
		if raw := strings.TrimSpace(r.URL.Query().Get("includeSettled")); raw != "" {
			includeSettled, _ = strconv.ParseBool(raw)
		}

		rows, err := svc.ListByWallet(r.Context(), walletID, includeSettled)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		openTotal, err := svc.OpenTotal(r.Context(), walletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := deductionListResponse{
			Deductions: make([]deductionResponse, 0, len(rows)),
			OpenTotal:  openTotal,
		}
		for _, row := range rows {
			item := deductionResponse{
				ID:              row.ID.String(),
				OriginalAmount:  row.OriginalAmount,
				RemainingAmount: row.RemainingAmount,
				Reason:          row.Reason,
				Source:          string(row.Source),
				SettledAt:       row.SettledAt,
				CreatedAt:       row.CreatedAt,
			}
			if row.OrderID != nil {
				oid := row.OrderID.String()
				item.OrderID = &oid
			}
			resp.Deductions = append(resp.Deductions, item)
		}
		responses.WriteSuccess(w, resp)
	}
}
