package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mbongotech/cookpay-backend/pkg/config"
	"github.com/mbongotech/cookpay-backend/pkg/logger"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), config.GatewayConfig{
		BaseURL:         serverURL,
		APIKey:          "test-key",
		WebhookSecret:   "test-secret",
		TransferTimeout: 2 * time.Second,
	}, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("construct client: %v", err)
	}
	return client
}

func transferFixture() TransferRequest {
	return TransferRequest{
		Amount:             15000,
		Currency:           "XAF",
		DestinationAccount: "237670000001",
		PaymentMethod:      "mtn_momo",
		IdempotencyKey:     "wd-123",
	}
}

func TestInitiateTransferSuccess(t *testing.T) {
	var gotAuth, gotIdempotency string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotIdempotency = r.Header.Get("Idempotency-Key")

		var body TransferRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Amount != 15000 || body.DestinationAccount != "237670000001" {
			t.Errorf("unexpected payload %+v", body)
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "success",
			"reference": "mm-789",
		})
	}))
	defer server.Close()

	result, err := newTestClient(t, server.URL).InitiateTransfer(context.Background(), transferFixture())
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.Status != TransferStatusSuccess {
		t.Fatalf("expected success status, got %s", result.Status)
	}
	if result.ProviderReference != "mm-789" {
		t.Fatalf("unexpected reference %s", result.ProviderReference)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotIdempotency != "wd-123" {
		t.Fatalf("unexpected idempotency header %q", gotIdempotency)
	}
}

func TestInitiateTransferDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "failed",
			"message": "recipient account blocked",
		})
	}))
	defer server.Close()

	result, err := newTestClient(t, server.URL).InitiateTransfer(context.Background(), transferFixture())
	if err != nil {
		t.Fatalf("a decline is a known outcome, got error %v", err)
	}
	if result.Status != TransferStatusFailed {
		t.Fatalf("expected failed status, got %s", result.Status)
	}
	if result.FailureReason != "recipient account blocked" {
		t.Fatalf("unexpected failure reason %q", result.FailureReason)
	}
	if len(result.RawResponse) == 0 {
		t.Fatal("raw response must be preserved")
	}
}

func TestInitiateTransferServerErrorIsUnknownOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"status": "error"})
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).InitiateTransfer(context.Background(), transferFixture())
	if err == nil {
		t.Fatal("a 5xx must surface as an error, the outcome is unknown")
	}
}

func TestInitiateTransferTimeoutIsUnknownOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client disconnect and
		// cancels r.Context(); otherwise server.Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), config.GatewayConfig{
		BaseURL:         server.URL,
		APIKey:          "test-key",
		TransferTimeout: 50 * time.Millisecond,
	}, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("construct client: %v", err)
	}

	_, err = client.InitiateTransfer(context.Background(), transferFixture())
	if err == nil {
		t.Fatal("a timeout must surface as an error")
	}
}

func TestInitiateTransferValidatesInput(t *testing.T) {
	client := newTestClient(t, "http://localhost:1")

	cases := []TransferRequest{
		{Amount: 0, DestinationAccount: "237670000001", IdempotencyKey: "wd-1"},
		{Amount: 1000, DestinationAccount: " ", IdempotencyKey: "wd-1"},
		{Amount: 1000, DestinationAccount: "237670000001", IdempotencyKey: ""},
	}
	for i, req := range cases {
		if _, err := client.InitiateTransfer(context.Background(), req); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})

	if _, err := NewClient(context.Background(), config.GatewayConfig{APIKey: "k"}, logg); err == nil {
		t.Fatal("expected error for missing base url")
	}
	if _, err := NewClient(context.Background(), config.GatewayConfig{BaseURL: "http://x"}, logg); err == nil {
		t.Fatal("expected error for missing api key")
	}
	if _, err := NewClient(context.Background(), config.GatewayConfig{BaseURL: "http://x", APIKey: "k"}, nil); err == nil {
		t.Fatal("expected error for missing logger")
	}
}
