// Package notify delivers reconciliation events to the notification layer
// over a webhook. Delivery is best effort: a failed post is logged, never
// retried here, and never blocks reconciliation.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stonecrest/achgen/internal/returns"
)

type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// ReturnApplied posts the event as JSON. The receiving side decides policy;
// severity tells it whether money already settled and is now reversing.
func (w *Webhook) ReturnApplied(ctx context.Context, event returns.Event) {
	if err := w.post(ctx, event); err != nil {
		slog.Error("webhook delivery failed",
			"record_id", event.RecordID,
			"severity", event.Severity,
			"error", err,
		)
	}
}

func (w *Webhook) post(ctx context.Context, event returns.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("receiver returned status %d", resp.StatusCode)
	}

	return nil
}
