// Package notify delivers reminder payloads to an external sink. The
// core only cares that delivery can fail and be retried.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

type Notifier interface {
	Notify(ctx context.Context, payload any) error
}

// HTTPNotifier POSTs the payload as JSON to a broadcast endpoint.
type HTTPNotifier struct {
	URL    string
	Client *http.Client
}

func NewHTTPNotifier(url string) *HTTPNotifier {
	return &HTTPNotifier{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *HTTPNotifier) Notify(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("notify %s: %w", n.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify %s: unexpected status %d", n.URL, resp.StatusCode)
	}
	return nil
}

// LogNotifier writes payloads to the structured log. Used when no
// broadcast endpoint is configured; never fails.
type LogNotifier struct {
	Logger *log.Logger
}

func (n *LogNotifier) Notify(_ context.Context, payload any) error {
	logger := n.Logger
	if logger == nil {
		logger = log.Default()
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	logger.Info("notification", "payload", string(b))
	return nil
}

// Func adapts a function to Notifier for tests.
type Func func(ctx context.Context, payload any) error

func (f Func) Notify(ctx context.Context, payload any) error { return f(ctx, payload) }
