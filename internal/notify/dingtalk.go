package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DingTalk posts text messages to a group robot webhook.
type DingTalk struct {
	cfg    DingTalkConfig
	client *http.Client
	now    func() time.Time
}

func NewDingTalk(cfg DingTalkConfig, client *http.Client) *DingTalk {
	return &DingTalk{cfg: cfg, client: client, now: time.Now}
}

func (d *DingTalk) Name() string { return "dingtalk" }

// DingTalkSign computes the robot signature of timestamp (milliseconds)
// with secret: base64(hmac-sha256(secret, "timestamp\nsecret")).
func DingTalkSign(timestamp int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d\n%s", timestamp, secret)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (d *DingTalk) endpoint() string {
	if d.cfg.Secret == "" {
		return d.cfg.Webhook
	}
	ts := d.now().UnixMilli()
	sep := "?"
	if strings.Contains(d.cfg.Webhook, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%stimestamp=%d&sign=%s", d.cfg.Webhook, sep, ts, url.QueryEscape(DingTalkSign(ts, d.cfg.Secret)))
}

func (d *DingTalk) Send(ctx context.Context, msg Message) error {
	payload := map[string]any{
		"msgtype": "text",
		"text": map[string]string{
			"content": msg.Title + "\n\n" + msg.Body,
		},
	}
	var resp struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := postJSON(ctx, d.client, d.endpoint(), payload, &resp); err != nil {
		return &ErrSendFailed{Channel: d.Name(), Cause: err}
	}
	if resp.ErrCode != 0 {
		return sendFailed(d.Name(), "errcode %d: %s", resp.ErrCode, resp.ErrMsg)
	}
	return nil
}
