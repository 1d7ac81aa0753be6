package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mbongotech/cookpay-backend/api/responses"
	"github.com/mbongotech/cookpay-backend/api/validators"
	"github.com/mbongotech/cookpay-backend/internal/clearance"
	"github.com/mbongotech/cookpay-backend/pkg/db/models"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
)

type openClearanceRequest struct {
	OrderID     string     `json:"orderId" validate:"required,uuid"`
	TenantID    string     `json:"tenantId" validate:"required,uuid"`
	CookID      string     `json:"cookId" validate:"required,uuid"`
	GrossAmount int64      `json:"grossAmount" validate:"required,min=1"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type clearanceResponse struct {
	ID               string     `json:"id"`
	OrderID          string     `json:"orderId"`
	TenantID         string     `json:"tenantId"`
	CookWalletID     string     `json:"cookWalletId"`
	GrossAmount      int64      `json:"grossAmount"`
	CommissionRate   string     `json:"commissionRate"`
	CommissionAmount int64      `json:"commissionAmount"`
	Amount           int64      `json:"amount"`
	HoldHours        int        `json:"holdHours"`
	CompletedAt      time.Time  `json:"completedAt"`
	WithdrawableAt   time.Time  `json:"withdrawableAt"`
	PausedAt         *time.Time `json:"pausedAt,omitempty"`
	ClearedAt        *time.Time `json:"clearedAt,omitempty"`
	State            string     `json:"state"`
}

func newClearanceResponse(c *models.OrderClearance) clearanceResponse {
	state := "held"
	switch {
	case c.IsCleared:
		state = "cleared"
	case c.IsCancelled:
		state = "cancelled"
	case c.IsPaused:
		state = "paused"
	}
	return clearanceResponse{
		ID:               c.ID.String(),
		OrderID:          c.OrderID.String(),
		TenantID:         c.TenantID.String(),
		CookWalletID:     c.CookWalletID.String(),
		GrossAmount:      c.GrossAmount,
		CommissionRate:   c.CommissionRate.String(),
		CommissionAmount: c.CommissionAmount,
		Amount:           c.Amount,
		HoldHours:        c.HoldHours,
		CompletedAt:      c.CompletedAt,
		WithdrawableAt:   c.WithdrawableAt,
		PausedAt:         c.PausedAt,
		ClearedAt:        c.ClearedAt,
		State:            state,
	}
}

// OpenClearance records a completed order and starts its hold window.
func OpenClearance(svc clearance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req openClearanceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tenantID, err := uuid.Parse(req.TenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cookID, err := uuid.Parse(req.CookID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := clearance.OpenInput{
			OrderID:     orderID,
			TenantID:    tenantID,
			CookID:      cookID,
			GrossAmount: req.GrossAmount,
		}
		if req.CompletedAt != nil {
			input.CompletedAt = *req.CompletedAt
		}

		row, err := svc.Open(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newClearanceResponse(row))
	}
}

// GetClearance returns the clearance attached to an order.
func GetClearance(svc clearance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(r, chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.GetByOrderID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newClearanceResponse(row))
	}
}

// PauseClearance freezes the hold clock for a disputed order.
func PauseClearance(svc clearance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(r, chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := requireActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Pause(r.Context(), orderID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newClearanceResponse(row))
	}
}

// ResumeClearance restarts a paused hold clock.
func ResumeClearance(svc clearance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(r, chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := requireActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Resume(r.Context(), orderID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newClearanceResponse(row))
	}
}

type cancelClearanceRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// CancelClearance reverses an uncleared clearance.
func CancelClearance(svc clearance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(r, chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := requireActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelClearanceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Cancel(r.Context(), nil, orderID, &actorID, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newClearanceResponse(row))
	}
}

// ListWalletClearances returns recent clearances for a cook wallet.
func ListWalletClearances(svc clearance.Service, logg *logger.Logger) http.HandlerFunc {
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

		rows, err := svc.ListByWallet(r.Context(), walletID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]clearanceResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newClearanceResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"clearances": out})
	}
}
