package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mbongotech/cookpay-backend/api/responses"
	"github.com/mbongotech/cookpay-backend/api/validators"
	"github.com/mbongotech/cookpay-backend/internal/payout"
	"github.com/mbongotech/cookpay-backend/pkg/db/models"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
)

type withdrawalRequestBody struct {
	CookWalletID      string `json:"cookWalletId" validate:"required,uuid"`
	TenantID          string `json:"tenantId" validate:"required,uuid"`
	Amount            int64  `json:"amount" validate:"required,min=1"`
	MobileMoneyNumber string `json:"mobileMoneyNumber" validate:"required,min=6"`
	PaymentMethod     string `json:"paymentMethod" validate:"required"`
}

type withdrawalResponse struct {
	ID                string    `json:"id"`
	CookWalletID      string    `json:"cookWalletId"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	MobileMoneyNumber string    `json:"mobileMoneyNumber"`
	PaymentMethod     string    `json:"paymentMethod"`
	Status            string    `json:"status"`
	ProviderReference *string   `json:"providerReference,omitempty"`
	FailureReason     *string   `json:"failureReason,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

type withdrawalResultResponse struct {
	Withdrawal withdrawalResponse  `json:"withdrawal"`
	PayoutTask *payoutTaskResponse `json:"payoutTask,omitempty"`
}

func newWithdrawalResponse(wd *models.WithdrawalRequest) withdrawalResponse {
	return withdrawalResponse{
		ID:                wd.ID.String(),
		CookWalletID:      wd.CookWalletID.String(),
		Amount:            wd.Amount,
		Currency:          string(wd.Currency),
		MobileMoneyNumber: wd.MobileMoneyNumber,
		PaymentMethod:     wd.PaymentMethod,
		Status:            string(wd.Status),
		ProviderReference: wd.ProviderReference,
		FailureReason:     wd.FailureReason,
		CreatedAt:         wd.CreatedAt,
	}
}

// RequestWithdrawal starts a cook cash-out to mobile money.
func RequestWithdrawal(svc payout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req withdrawalRequestBody
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cookWalletID, err := uuid.Parse(req.CookWalletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tenantID, err := uuid.Parse(req.TenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RequestWithdrawal(r.Context(), payout.WithdrawalInput{
			CookWalletID:      cookWalletID,
			TenantID:          tenantID,
			Amount:            req.Amount,
			MobileMoneyNumber: req.MobileMoneyNumber,
			PaymentMethod:     req.PaymentMethod,
			ActorID:           optionalActorID(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := withdrawalResultResponse{Withdrawal: newWithdrawalResponse(result.Withdrawal)}
		if result.Task != nil {
			task := newPayoutTaskResponse(result.Task)
			resp.PayoutTask = &task
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// ListWalletWithdrawals returns recent withdrawals for a cook wallet.
func ListWalletWithdrawals(svc payout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID, err := validators.ParsePathUUID(r, chi.URLParam(r, "walletID"), "walletID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListWithdrawals(r.Context(), walletID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]withdrawalResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newWithdrawalResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"withdrawals": out})
	}
}
