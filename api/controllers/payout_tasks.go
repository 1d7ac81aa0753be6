package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mbongotech/cookpay-backend/api/responses"
	"github.com/mbongotech/cookpay-backend/api/validators"
	"github.com/mbongotech/cookpay-backend/internal/payout"
	"github.com/mbongotech/cookpay-backend/pkg/db/models"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
)

type payoutTaskResponse struct {
	ID                  string     `json:"id"`
	WithdrawalRequestID string     `json:"withdrawalRequestId"`
	CookWalletID        string     `json:"cookWalletId"`
	Amount              int64      `json:"amount"`
	Currency            string     `json:"currency"`
	MobileMoneyNumber   string     `json:"mobileMoneyNumber"`
	PaymentMethod       string     `json:"paymentMethod"`
	Status              string     `json:"status"`
	RetryCount          int        `json:"retryCount"`
	LastRetryAt         *time.Time `json:"lastRetryAt,omitempty"`
	FailureReason       *string    `json:"failureReason,omitempty"`
	ProviderReference   *string    `json:"providerReference,omitempty"`
	ReferenceNumber     *string    `json:"referenceNumber,omitempty"`
	Notes               *string    `json:"notes,omitempty"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
}

func newPayoutTaskResponse(task *models.PayoutTask) payoutTaskResponse {
	return payoutTaskResponse{
		ID:                  task.ID.String(),
		WithdrawalRequestID: task.WithdrawalRequestID.String(),
		CookWalletID:        task.CookWalletID.String(),
		Amount:              task.Amount,
		Currency:            string(task.Currency),
		MobileMoneyNumber:   task.MobileMoneyNumber,
		PaymentMethod:       task.PaymentMethod,
		Status:              string(task.Status),
		RetryCount:          task.RetryCount,
		LastRetryAt:         task.LastRetryAt,
		FailureReason:       task.FailureReason,
		ProviderReference:   task.ProviderReference,
		ReferenceNumber:     task.ReferenceNumber,
		Notes:               task.Notes,
		CompletedAt:         task.CompletedAt,
		CreatedAt:           task.CreatedAt,
	}
}

// ListPendingPayoutTasks returns the operator backlog, oldest first.
func ListPendingPayoutTasks(svc payout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListPendingTasks(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		count, err := svc.CountPendingTasks(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]payoutTaskResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newPayoutTaskResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"tasks":        out,
			"pendingTotal": count,
		})
	}
}

// GetPayoutTask returns a single payout task.
func GetPayoutTask(svc payout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := validators.ParsePathUUID(r, chi.URLParam(r, "taskID"), "taskID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.GetTask(r.Context(), taskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPayoutTaskResponse(row))
	}
}

// RetryPayoutTask re-attempts the failed transfer behind a task.
func RetryPayoutTask(svc payout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := validators.ParsePathUUID(r, chi.URLParam(r, "taskID"), "taskID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := requireActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Retry(r.Context(), taskID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPayoutTaskResponse(row))
	}
}

type manualCompleteRequest struct {
	ReferenceNumber string `json:"referenceNumber" validate:"required,min=1"`
	Notes           string `json:"notes,omitempty"`
}

// CompletePayoutTaskManually resolves a task paid outside the system.
func CompletePayoutTaskManually(svc payout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := validators.ParsePathUUID(r, chi.URLParam(r, "taskID"), "taskID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := requireActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req manualCompleteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.MarkManuallyCompleted(r.Context(), taskID, actorID, req.ReferenceNumber, req.Notes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPayoutTaskResponse(row))
	}
}
