// Package notify delivers best-effort webhook notifications. Delivery
// failures are the caller's to log; they never affect job state.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"loopmix/internal/pkg/errors"
)

// Event is the webhook payload sent on job completion or failure.
type Event struct {
	JobID       int64     `json:"job_id"`
	Status      string    `json:"status"`
	ArtifactKey string    `json:"artifact_key,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Notifier posts job events to a callback URL.
type Notifier interface {
	Notify(ctx context.Context, callbackURL string, e Event) error
}

// WebhookNotifier delivers events over HTTP POST.
type WebhookNotifier struct {
	client *http.Client
}

// NewWebhookNotifier creates a notifier with a short delivery timeout;
// a slow callback endpoint must not hold up the worker.
func NewWebhookNotifier() *WebhookNotifier {
	return &WebhookNotifier{
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Notify posts the event as JSON. Non-2xx responses and transport errors
// come back as NOTIFICATION errors; callers log and move on.
func (n *WebhookNotifier) Notify(ctx context.Context, callbackURL string, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(e)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeNotification, "notify.marshal", "encoding event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeNotification, "notify.request", "building request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := n.client.Do(req)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeNotification, "notify.post", "delivering webhook")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return errors.Notification(fmt.Sprintf("webhook returned http %d", res.StatusCode))
	}
	return nil
}
