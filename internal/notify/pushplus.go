package notify

import (
	"context"
	"net/http"
)

type PushPlus struct {
	cfg    PushPlusConfig
	client *http.Client
}

func NewPushPlus(cfg PushPlusConfig, client *http.Client) *PushPlus {
	return &PushPlus{cfg: cfg, client: client}
}

func (p *PushPlus) Name() string { return "pushplus" }

func (p *PushPlus) Send(ctx context.Context, msg Message) error {
	template := msg.Options["template"]
	if template == "" {
		template = "html"
	}
	payload := map[string]string{
		"token":    p.cfg.Token,
		"title":    msg.Title,
		"content":  msg.Body,
		"template": template,
	}
	var resp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := postJSON(ctx, p.client, p.cfg.URL, payload, &resp); err != nil {
		return &ErrSendFailed{Channel: p.Name(), Cause: err}
	}
	if resp.Code != 200 {
		return sendFailed(p.Name(), "code %d: %s", resp.Code, resp.Msg)
	}
	return nil
}
