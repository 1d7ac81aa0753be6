package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mbongotech/cookpay-backend/api/responses"
	"github.com/mbongotech/cookpay-backend/api/validators"
	"github.com/mbongotech/cookpay-backend/internal/refund"
	"github.com/mbongotech/cookpay-backend/pkg/enums"
	pkgerrors "github.com/mbongotech/cookpay-backend/pkg/errors"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
)

type refundRequest struct {
	OrderID  string `json:"orderId" validate:"required,uuid"`
	ClientID string `json:"clientId" validate:"required,uuid"`
	Amount   int64  `json:"amount" validate:"required,min=1"`
	Reason   string `json:"reason" validate:"required,min=3"`
	Source   string `json:"source" validate:"required"`
}

type refundResponse struct {
	ReversedFromHold    int64 `json:"reversedFromHold"`
	DebitedWithdrawable int64 `json:"debitedWithdrawable"`
	DeductionRecorded   int64 `json:"deductionRecorded"`
	CreditedToClient    int64 `json:"creditedToClient"`
}

// ExecuteRefund refunds a client for an order and funds it from the cook side.
func ExecuteRefund(svc refund.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		clientID, err := uuid.Parse(req.ClientID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		source, err := enums.ParseDeductionSource(req.Source)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refund source"))
			return
		}

		result, err := svc.Execute(r.Context(), refund.Input{
			OrderID:  orderID,
			ClientID: clientID,
			Amount:   req.Amount,
			Reason:   req.Reason,
			Source:   source,
			ActorID:  optionalActorID(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, refundResponse{
			ReversedFromHold:    result.ReversedFromHold,
			DebitedWithdrawable: result.DebitedWithdrawable,
			DeductionRecorded:   result.DeductionRecorded,
			CreditedToClient:    result.CreditedToClient,
		})
	}
}
