package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/funnelworks/movement-engine/internal/adapter"
)

// WebhookConfig holds the configuration for the webhook sink
type WebhookConfig struct {
	URL    string
	Secret string
}

// webhookSink POSTs signed notification payloads to a client endpoint
type webhookSink struct {
	cfg    WebhookConfig
	client adapter.HTTPClient
	clock  adapter.Clock
}

// NewWebhookSink creates a sink that delivers signed webhooks
func NewWebhookSink(cfg WebhookConfig, client adapter.HTTPClient, clock adapter.Clock) Sink {
	return &webhookSink{cfg: cfg, client: client, clock: clock}
}

func (s *webhookSink) Name() string {
	return "webhook"
}

func (s *webhookSink) Deliver(ctx context.Context, n *Notification) error {
	payload, signature, timestamp, err := GenerateSignedPayload(s.cfg.Secret, s.clock.Now(), n)
	if err != nil {
		return err
	}

	headers := map[string]string{
		"Content-Type":         "application/json",
		"X-Movement-Signature": signature,
		"X-Movement-Timestamp": fmt.Sprintf("%d", timestamp),
		"X-Movement-Delivery":  n.ID,
	}

	_, err = s.client.Post(ctx, s.cfg.URL, headers, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}

	return nil
}

// GenerateSignedPayload generates a signed webhook payload with HMAC-SHA256 signature
// Returns the JSON payload, signature header value, and timestamp
func GenerateSignedPayload(secret string, now time.Time, n *Notification) (payload []byte, signature string, timestamp int64, err error) {
	// Serialize notification to JSON
	payload, err = json.Marshal(n)
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to marshal notification: %w", err)
	}

	timestamp = now.Unix()

	// Create signature payload: {timestamp}.{notification_id}.{json_body}
	// This format allows clients to verify:
	// 1. The timestamp to prevent replay attacks
	// 2. The notification ID for deduplication
	// 3. The entire payload integrity
	signaturePayload := fmt.Sprintf("%d.%s.%s", timestamp, n.ID, string(payload))

	// Generate HMAC-SHA256 signature
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(signaturePayload))
	signatureBytes := h.Sum(nil)

	// Format as hex string with algorithm prefix
	// Format: "sha256=<hex_signature>"
	signature = "sha256=" + hex.EncodeToString(signatureBytes)

	return payload, signature, timestamp, nil
}
