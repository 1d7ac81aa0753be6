package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mbongotech/cookpay-backend/api/responses"
	"github.com/mbongotech/cookpay-backend/api/validators"
	"github.com/mbongotech/cookpay-backend/internal/commission"
	pkgerrors "github.com/mbongotech/cookpay-backend/pkg/errors"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
)

type commissionRateResponse struct {
	TenantID string `json:"tenantId"`
	Rate     string `json:"rate"`
}

type setCommissionRateRequest struct {
	Rate   string `json:"rate" validate:"required"`
	Reason string `json:"reason,omitempty"`
}

type setCommissionRateResponse struct {
	TenantID           string `json:"tenantId"`
	Rate               string `json:"rate"`
	Changed            bool   `json:"changed"`
	PendingSplitReview bool   `json:"pendingSplitReview"`
}

type commissionChangeResponse struct {
	ID        string    `json:"id"`
	OldRate   string    `json:"oldRate"`
	NewRate   string    `json:"newRate"`
	ChangedBy string    `json:"changedBy"`
	Reason    *string   `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// GetCommissionRate returns the tenant's effective commission rate.
func GetCommissionRate(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParsePathUUID(r, chi.URLParam(r, "tenantID"), "tenantID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rate, err := svc.CurrentRate(r.Context(), nil, tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, commissionRateResponse{
			TenantID: tenantID.String(),
			Rate:     rate.String(),
		})
	}
}

// SetCommissionRate updates the tenant's commission rate.
func SetCommissionRate(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParsePathUUID(r, chi.URLParam(r, "tenantID"), "tenantID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := requireActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req setCommissionRateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rate, err := decimal.NewFromString(req.Rate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "rate must be a decimal"))
			return
		}

		result, err := svc.SetRate(r.Context(), tenantID, rate, actorID, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, setCommissionRateResponse{
			TenantID:           tenantID.String(),
			Rate:               rate.String(),
			Changed:            result.Change != nil,
			PendingSplitReview: result.PendingSplitReview,
		})
	}
}

type resetCommissionRateRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ResetCommissionRate restores the platform default for a tenant.
func ResetCommissionRate(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParsePathUUID(r, chi.URLParam(r, "tenantID"), "tenantID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := requireActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req resetCommissionRateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ResetToDefault(r.Context(), tenantID, actorID, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, setCommissionRateResponse{
			TenantID:           tenantID.String(),
			Rate:               svc.DefaultRate().String(),
			Changed:            result.Change != nil,
			PendingSplitReview: result.PendingSplitReview,
		})
	}
}

// ListCommissionChanges returns the tenant's rate change history.
func ListCommissionChanges(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParsePathUUID(r, chi.URLParam(r, "tenantID"), "tenantID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.History(r.Context(), tenantID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]commissionChangeResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, commissionChangeResponse{
				ID:        row.ID.String(),
				OldRate:   row.OldRate.String(),
				NewRate:   row.NewRate.String(),
				ChangedBy: row.ChangedBy.String(),
				Reason:    row.Reason,
				CreatedAt: row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, map[string]any{"changes": out})
	}
}
