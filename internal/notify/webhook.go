package notify

import (
	"context"
	"net/http"
	"time"
)

// Webhook posts every message as json to a custom endpoint.
type Webhook struct {
	cfg    WebhookConfig
	client *http.Client
}

func NewWebhook(cfg WebhookConfig, client *http.Client) *Webhook {
	return &Webhook{cfg: cfg, client: client}
}

func (w *Webhook) Name() string { return "webhook" }

type webhookPayload struct {
	Message
	SentAt time.Time `json:"sentAt"`
}

func (w *Webhook) Send(ctx context.Context, msg Message) error {
	payload := webhookPayload{Message: msg, SentAt: time.Now().UTC()}
	if err := postJSON(ctx, w.client, w.cfg.URL, payload, nil, withBasicAuth(w.cfg.User, w.cfg.Password)); err != nil {
		return &ErrSendFailed{Channel: w.Name(), Cause: err}
	}
	return nil
}
