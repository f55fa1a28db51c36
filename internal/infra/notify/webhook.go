package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/triage/internal/infra/call"
)

// WebhookNotifier POSTs the notification as JSON to a configured endpoint.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

// NewWebhook creates a webhook notifier.
func NewWebhook(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Deliver posts the notification.
func (w *WebhookNotifier) Deliver(ctx context.Context, n Notification) (Receipt, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return Receipt{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Receipt{}, call.NewHTTPError(resp.StatusCode, string(body),
			call.ParseRetryAfter(resp.Header.Get("Retry-After")))
	}

	return Receipt{
		Channel:     "webhook",
		MessageID:   resp.Header.Get("X-Message-Id"),
		DeliveredAt: time.Now().UTC(),
	}, nil
}
