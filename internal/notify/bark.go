package notify

import (
	"context"
	"net/http"
	"strings"
)

// Bark pushes to iOS devices through a bark server.
type Bark struct {
	cfg    BarkConfig
	client *http.Client
}

func NewBark(cfg BarkConfig, client *http.Client) *Bark {
	return &Bark{cfg: cfg, client: client}
}

func (b *Bark) Name() string { return "bark" }

func (b *Bark) Send(ctx context.Context, msg Message) error {
	sound := msg.Options["sound"]
	if sound == "" {
		sound = b.cfg.Sound
	}
	if sound == "" {
		sound = "default"
	}
	payload := map[string]string{
		"title": msg.Title,
		"body":  msg.Body,
		"sound": sound,
	}
	if icon := msg.Options["icon"]; icon != "" {
		payload["icon"] = icon
	}
	if url := msg.Options["url"]; url != "" {
		payload["url"] = url
	}

	var resp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	endpoint := strings.TrimRight(b.cfg.URL, "/") + "/" + b.cfg.Key
	if err := postJSON(ctx, b.client, endpoint, payload, &resp); err != nil {
		return &ErrSendFailed{Channel: b.Name(), Cause: err}
	}
	if resp.Code != 200 {
		return sendFailed(b.Name(), "code %d: %s", resp.Code, resp.Message)
	}
	return nil
}
