package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// WeCom sends application messages through the WeCom (enterprise WeChat)
// API. Every send fetches a fresh access token.
type WeCom struct {
	cfg    WeComConfig
	client *http.Client
}

func NewWeCom(cfg WeComConfig, client *http.Client) *WeCom {
	return &WeCom{cfg: cfg, client: client}
}

func (w *WeCom) Name() string { return "wecom" }

type wecomResponse struct {
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
}

func (w *WeCom) token(ctx context.Context) (string, error) {
	base := strings.TrimRight(w.cfg.URL, "/")
	endpoint := fmt.Sprintf("%s/cgi-bin/gettoken?corpid=%s&corpsecret=%s", base, url.QueryEscape(w.cfg.CorpID), url.QueryEscape(w.cfg.CorpSecret))
	var resp wecomResponse
	if err := getJSON(ctx, w.client, endpoint, &resp); err != nil {
		return "", err
	}
	if resp.ErrCode != 0 || resp.AccessToken == "" {
		return "", fmt.Errorf("gettoken errcode %d: %s", resp.ErrCode, resp.ErrMsg)
	}
	return resp.AccessToken, nil
}

func (w *WeCom) Send(ctx context.Context, msg Message) error {
	token, err := w.token(ctx)
	if err != nil {
		return &ErrSendFailed{Channel: w.Name(), Cause: err}
	}
	toUser := w.cfg.ToUser
	if toUser == "" {
		toUser = "@all"
	}
	payload := map[string]any{
		"touser":  toUser,
		"agentid": w.cfg.AgentID,
		"msgtype": "text",
		"text": map[string]string{
			"content": msg.Title + "\n\n" + msg.Body,
		},
	}
	endpoint := fmt.Sprintf("%s/cgi-bin/message/send?access_token=%s", strings.TrimRight(w.cfg.URL, "/"), url.QueryEscape(token))
	var resp wecomResponse
	if err := postJSON(ctx, w.client, endpoint, payload, &resp); err != nil {
		return &ErrSendFailed{Channel: w.Name(), Cause: err}
	}
	if resp.ErrCode != 0 {
		return sendFailed(w.Name(), "errcode %d: %s", resp.ErrCode, resp.ErrMsg)
	}
	return nil
}
