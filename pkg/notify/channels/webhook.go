package channels

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hl1221hl/thingsboard/pkg/notify"
)

// WebhookConfig configures the webhook channel.
type WebhookConfig struct {
	URL          string        `env:"NOTIFY_WEBHOOK_URL,required"`
	Secret       string        `env:"NOTIFY_WEBHOOK_SECRET,required"`
	Timeout      time.Duration `env:"NOTIFY_WEBHOOK_TIMEOUT" envDefault:"10s"`
	MaxRetries   int           `env:"NOTIFY_WEBHOOK_MAX_RETRIES" envDefault:"3"`
	RetryBackoff time.Duration `env:"NOTIFY_WEBHOOK_RETRY_BACKOFF" envDefault:"1s"`
}

// WebhookPayload is the JSON body posted to the configured endpoint, one
// request per (notification, recipient) pair.
type WebhookPayload struct {
	RequestID        uuid.UUID         `json:"request_id"`
	RecipientID      uuid.UUID         `json:"recipient_id"`
	RecipientEmail   string            `json:"recipient_email,omitempty"`
	NotificationType string            `json:"notification_type"`
	Text             string            `json:"text"`
	Info             map[string]string `json:"info,omitempty"`
}

// Webhook posts notifications to an HTTP endpoint, signing each payload with
// HMAC-SHA256 bound to a timestamp. Failed posts are retried with linear
// backoff up to the configured limit.
type Webhook struct {
	config WebhookConfig
	client *http.Client
	clock  func() time.Time
}

// WebhookOption customizes a Webhook channel.
type WebhookOption func(*Webhook)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(w *Webhook) {
		if client != nil {
			w.client = client
		}
	}
}

// WithWebhookClock overrides the timestamp source used for signing.
func WithWebhookClock(clock func() time.Time) WebhookOption {
	return func(w *Webhook) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// NewWebhook validates the config and builds the webhook channel.
func NewWebhook(cfg WebhookConfig, opts ...WebhookOption) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: URL is required", ErrInvalidConfig)
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: Secret is required", ErrInvalidConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}

	w := &Webhook{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Webhook) DeliveryMethod() notify.DeliveryMethod {
	return notify.DeliveryMethodWebhook
}

func (w *Webhook) Send(ctx context.Context, recipient notify.Recipient, text string, pctx *notify.ProcessingContext) error {
	payload, err := json.Marshal(WebhookPayload{
		RequestID:        pctx.Request.ID,
		RecipientID:      recipient.ID,
		RecipientEmail:   recipient.Email,
		NotificationType: pctx.Request.NotificationType,
		Text:             text,
		Info:             pctx.Request.Info,
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * w.config.RetryBackoff):
			}
		}
		if lastErr = w.post(ctx, payload); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (w *Webhook) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}

	timestamp := w.clock().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", w.sign(timestamp, payload))
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(timestamp, 10))
	req.Header.Set("X-Webhook-ID", uuid.New().String())

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWebhookDelivery, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: endpoint returned %d", ErrWebhookDelivery, resp.StatusCode)
	}
	return nil
}

// sign binds the signature to the timestamp so captured payloads cannot be
// replayed later: HMAC-SHA256(secret, timestamp + "." + payload).
func (w *Webhook) sign(timestamp int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(w.config.Secret))
	fmt.Fprintf(h, "%d.%s", timestamp, payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyWebhookSignature lets receiving endpoints validate an incoming
// payload against the shared secret and signature headers.
func VerifyWebhookSignature(secret string, payload []byte, signature string, timestamp int64, maxAge time.Duration) error {
	if maxAge > 0 {
		age := time.Since(time.Unix(timestamp, 0))
		if age > maxAge {
			return fmt.Errorf("%w: signature timestamp too old", ErrWebhookDelivery)
		}
		if age < -time.Minute {
			return fmt.Errorf("%w: signature timestamp is in the future", ErrWebhookDelivery)
		}
	}

	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.%s", timestamp, payload)
	expected := hex.EncodeToString(h.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: signature mismatch", ErrWebhookDelivery)
	}
	return nil
}
