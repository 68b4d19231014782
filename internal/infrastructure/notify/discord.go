// Package notify delivers supervisor announcements to the outside world.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/wardenhq/warden/internal/infrastructure/logging"
)

// webhookTimeout bounds a single delivery attempt.
const webhookTimeout = 10 * time.Second

// Discord posts messages to a Discord webhook.
type Discord struct {
	url    string
	client *http.Client
	log    *logging.Logger
}

// NewDiscord creates a notifier that posts to the given webhook URL.
func NewDiscord(url string, log *logging.Logger) *Discord {
	return &Discord{
		url: url,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
		log: log,
	}
}

// Notify posts the message as the webhook's content.
func (d *Discord) Notify(ctx context.Context, message string) error {
	data, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		return errors.Wrap(err, "failed to marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.url, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "failed to create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send webhook request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned non-OK status: %s", resp.Status)
	}

	d.log.Debug("notification delivered", logging.Fields{"bytes": len(data)})
	return nil
}

// Nop discards notifications. Used when no webhook is configured.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(ctx context.Context, message string) error {
	return nil
}
