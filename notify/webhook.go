package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

type envelope struct {
	Event   string `json:"event"`
	JobID   string `json:"job_id"`
	Payload any    `json:"payload"`
	SentAt  string `json:"sent_at"`
}

// Webhook POSTs each event as JSON to a subscriber URL. Delivery is
// best-effort: failures are logged and dropped, so a dead subscriber
// never slows the pipeline.
type Webhook struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// WebhookOption configures a Webhook publisher.
type WebhookOption func(*Webhook)

// WithWebhookClient sets a custom HTTP client.
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a Webhook publisher targeting url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Publish implements Publisher.
func (w *Webhook) Publish(ctx context.Context, event, jobID string, payload any) {
	body, err := json.Marshal(envelope{
		Event:   event,
		JobID:   jobID,
		Payload: payload,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		w.logger.Warn("webhook: marshal failed", "event", event, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.logger.Warn("webhook: new request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("webhook: delivery failed", "event", event, "job_id", jobID, "error", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.logger.Warn("webhook: bad status", "event", event, "status", resp.StatusCode)
	}
}
