// Package notifications delivers signed webhook events to interested
// endpoints when a transfer reaches a terminal state.
package notifications

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/domain"
)

const (
	EventTransferCompleted = "transfer.completed"
	EventTransferFailed    = "transfer.failed"
)

// TransferEventPayload renders the webhook body for a terminal transfer.
func TransferEventPayload(txn *domain.Transaction) ([]byte, error) {
	event := EventTransferCompleted
	if txn.Status == domain.StatusFailed {
		event = EventTransferFailed
	}
	return json.Marshal(map[string]any{
		"event": event,
		"data": map[string]any{
			"transaction_id": txn.TransactionID,
			"from_account":   txn.FromAccountNumber,
			"to_account":     txn.ToAccountNumber,
			"amount":         txn.Amount.StringFixed(2),
			"status":         txn.Status,
			"error_message":  txn.ErrorMessage,
			"timestamp":      time.Now().UTC(),
		},
	})
}

// SendWebhook posts the JSON payload to the subscriber's URL, signing the
// body with an HMAC-SHA256 of the shared secret so receivers can verify
// origin. Slow subscribers are cut off by the client timeout.
func SendWebhook(url string, payload []byte, secret string) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SecureFundTransfer-Webhook/1.0")
	req.Header.Set("X-Webhook-Signature", Sign(payload, secret))

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("subscriber returned status %d", resp.StatusCode)
}

// Sign computes the hex HMAC-SHA256 signature of the payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
