package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Webhook POSTs notifications as JSON to a fixed URL.
type Webhook struct {
	url         string
	httpClient  *http.Client
	callTimeout time.Duration
}

// NewWebhook creates a webhook notifier. An empty url disables delivery.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:         strings.TrimSpace(url),
		httpClient:  &http.Client{},
		callTimeout: 5 * time.Second,
	}
}

// Notify posts n and expects a 2xx reply.
func (w *Webhook) Notify(ctx context.Context, n Notification) error {
	if w.url == "" {
		return nil
	}

	body, err := json.Marshal(n)
	if err != nil {
		return eris.Wrap(err, "marshal notification")
	}

	ctx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return eris.Wrapf(err, "post webhook for run %s", n.RunID)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return eris.Errorf("webhook returned status %d for run %s", resp.StatusCode, n.RunID)
	}
	return nil
}
