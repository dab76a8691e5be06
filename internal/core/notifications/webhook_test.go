package notifications

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/domain"
)

func TestTransferEventPayload(t *testing.T) {
	at := time.Now().UTC()
	completed := &domain.Transaction{
		TransactionID:     "txn-1",
		FromAccountNumber: "ACC001",
		ToAccountNumber:   "ACC002",
		Amount:            decimal.RequireFromString("250.00"),
		Status:            domain.StatusCompleted,
		CompletedAt:       &at,
	}

	payload, err := TransferEventPayload(completed)
	require.NoError(t, err)
	assert.Contains(t, string(payload), EventTransferCompleted)
	assert.Contains(t, string(payload), `"amount":"250.00"`)

	failed := &domain.Transaction{
		TransactionID: "txn-2",
		Amount:        decimal.RequireFromString("10.00"),
		Status:        domain.StatusFailed,
		ErrorMessage:  "insufficient funds",
	}
	payload, err = TransferEventPayload(failed)
	require.NoError(t, err)
	assert.Contains(t, string(payload), EventTransferFailed)
	assert.Contains(t, string(payload), "insufficient funds")
}

func TestSendWebhookSignsBody(t *testing.T) {
	const secret = "shh"
	var gotSignature string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Webhook-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload := []byte(`{"event":"transfer.completed"}`)
	require.NoError(t, SendWebhook(srv.URL, payload, secret))

	assert.Equal(t, payload, gotBody)
	assert.Equal(t, Sign(payload, secret), gotSignature)
}

func TestSendWebhookRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := SendWebhook(srv.URL, []byte(`{}`), "shh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
