package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mbongotech/cookpay-backend/pkg/config"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
)

const (
	defaultTransferTimeout = 30 * time.Second
	transfersPath          = "/v1/transfers"
)

var (
	errBaseURLRequired = errors.New("gateway base url is required")
	errAPIKeyRequired  = errors.New("gateway api key is required")
	errLoggerRequired  = errors.New("gateway logger is required")
)

// TransferStatus is the provider's verdict on a transfer attempt.
type TransferStatus string

const (
	TransferStatusSuccess TransferStatus = "success"
	TransferStatusFailed  TransferStatus = "failed"
)

// TransferRequest describes one mobile-money payout attempt. IdempotencyKey
// must be stable across retries of the same withdrawal so the provider can
// deduplicate an attempt that timed out locally but succeeded upstream.
type TransferRequest struct {
	Amount             int64  `json:"amount"`
	Currency           string `json:"currency"`
	DestinationAccount string `json:"destination_account"`
	PaymentMethod      string `json:"payment_method"`
	IdempotencyKey     string `json:"-"`
}

// TransferResult carries the provider's response. RawResponse is preserved
// verbatim for operator diagnosis.
type TransferResult struct {
	Status            TransferStatus
	ProviderReference string
	FailureReason     string
	RawResponse       json.RawMessage
}

// TransferClient is the surface the settlement engine consumes.
type TransferClient interface {
	InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// Client calls the mobile-money transfer provider over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	secret     string
	logger     *logger.Logger
}

// NewClient validates the gateway credentials and builds the HTTP client. The
// transfer timeout bounds every provider call; a timeout is reported as an
// error and counted as a failed attempt by the caller.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	timeout := cfg.TransferTimeout
	if timeout <= 0 {
		timeout = defaultTransferTimeout
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		secret:     strings.TrimSpace(cfg.WebhookSecret),
		logger:     logg,
	}

	logg.Info(ctx, "payment gateway client initialized")
	return c, nil
}

// WebhookSecret returns the shared secret used to verify provider callbacks.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.secret
}

type transferResponseBody struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Message   string `json:"message"`
}

// InitiateTransfer posts the transfer to the provider. A non-nil error means
// the outcome is locally unknown (network failure or timeout); the provider's
// webhook is the authoritative late signal in that case.
func (c *Client) InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("transfer amount must be positive")
	}
	if strings.TrimSpace(req.DestinationAccount) == "" {
		return nil, fmt.Errorf("destination account is required")
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode transfer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transfersPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build transfer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transfer call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read transfer response: %w", err)
	}

	var body transferResponseBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode transfer response (http %d): %w", resp.StatusCode, err)
	}

	result := &TransferResult{
		ProviderReference: body.Reference,
		FailureReason:     body.Message,
		RawResponse:       json.RawMessage(raw),
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("provider unavailable (http %d)", resp.StatusCode)
	}

	if resp.StatusCode == http.StatusOK && strings.EqualFold(body.Status, string(TransferStatusSuccess)) {
		result.Status = TransferStatusSuccess
		return result, nil
	}

	result.Status = TransferStatusFailed
	if result.FailureReason == "" {
		result.FailureReason = fmt.Sprintf("transfer declined (http %d)", resp.StatusCode)
	}
	return result, nil
}
