package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mbongotech/cookpay-backend/api/responses"
	"github.com/mbongotech/cookpay-backend/internal/payout"
	pkgerrors "github.com/mbongotech/cookpay-backend/pkg/errors"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
)

const gatewaySignatureHeader = "X-Gateway-Signature"

type gatewaySecretProvider interface {
	WebhookSecret() string
}

type gatewayWebhookEvent struct {
	WithdrawalID string `json:"withdrawal_id"`
	Status       string `json:"status"`
	Reference    string `json:"reference"`
}

// GatewayWebhook handles transfer status callbacks from the mobile-money
// provider. Only success signals matter: they reconcile transfers whose
// outcome was locally unknown.
func GatewayWebhook(svc payout.Service, secrets gatewaySecretProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}
		if secrets == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway client unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(gatewaySignatureHeader))
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "gateway signature missing"))
			return
		}
		if !validateGatewaySignature(payload, secrets.WebhookSecret(), signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "invalid gateway signature"))
			return
		}

		var event gatewayWebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode event"))
			return
		}

		withdrawalID, err := uuid.Parse(strings.TrimSpace(event.WithdrawalID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid withdrawal id"))
			return
		}

		if !strings.EqualFold(event.Status, "success") {
			// Failure callbacks carry no new information; the task already
			// tracks the failed attempt.
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		if err := svc.ReconcileProviderSuccess(ctx, withdrawalID, event.Reference); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}

func validateGatewaySignature(payload []byte, secret, signature string) bool {
	if secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
