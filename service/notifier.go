package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/mouleshgs/onboardX/config"
)

// Notifier sends best-effort webhook pings (team-chat invites, nudge
// notifications) to an external endpoint. Delivery is advisory: the
// lifecycle never depends on the result, and a tripped breaker simply
// drops sends until the endpoint recovers.
type Notifier struct {
	url        string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[any]
}

func NewNotifier(cfg *config.NotifyConfig) *Notifier {
	return &Notifier{
		url: cfg.WebhookURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:    "notify-webhook",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Send posts a JSON event to the webhook. Returns an error only so the
// caller can record the outcome; it must never be surfaced to users.
func (n *Notifier) Send(ctx context.Context, event string, payload map[string]any) error {
	if n == nil || n.url == "" {
		return ErrUnavailable
	}

	body := map[string]any{"event": event}
	for k, v := range payload {
		body[k] = v
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = n.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}
