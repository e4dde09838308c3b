package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ServerChan forwards messages to WeChat via sct.ftqq.com.
type ServerChan struct {
	cfg    ServerChanConfig
	client *http.Client
}

func NewServerChan(cfg ServerChanConfig, client *http.Client) *ServerChan {
	return &ServerChan{cfg: cfg, client: client}
}

func (s *ServerChan) Name() string { return "serverchan" }

func (s *ServerChan) Send(ctx context.Context, msg Message) error {
	payload := map[string]string{
		"title": msg.Title,
		"desp":  msg.Body,
	}
	var resp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	endpoint := fmt.Sprintf("%s/%s.send", strings.TrimRight(s.cfg.URL, "/"), s.cfg.Key)
	if err := postJSON(ctx, s.client, endpoint, payload, &resp); err != nil {
		return &ErrSendFailed{Channel: s.Name(), Cause: err}
	}
	if resp.Code != 0 {
		return sendFailed(s.Name(), "code %d: %s", resp.Code, resp.Message)
	}
	return nil
}
