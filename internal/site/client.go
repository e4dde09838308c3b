package site

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/qlhub/qlhub/internal/log"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15"
)

// APIClient talks to json apis that wrap every response in a
// {code, message, data} envelope.
type APIClient struct {
	BaseURL   string
	UserAgent string
	client    *http.Client
}

func NewAPIClient(baseURL, userAgent string, timeout time.Duration) *APIClient {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &APIClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// APIResponse is the common response envelope.
type APIResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// Text returns the message of the response or fallback.
func (r *APIResponse) Text(fallback string) string {
	switch {
	case r.Message != "":
		return r.Message
	case r.Msg != "":
		return r.Msg
	default:
		return fallback
	}
}

// Decode unmarshals the data field into v. Missing data is not an error.
func (r *APIResponse) Decode(v any) error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// Request is one api call.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    any
}

func (c *APIClient) Do(ctx context.Context, r Request) (*APIResponse, error) {
	logger := log.LoggerFromContext(ctx)
	u := c.BaseURL + r.Path
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}
	var body io.Reader
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	logger.Debug("api request", slog.String("method", method), slog.String("url", u))
	res, err := c.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, fmt.Errorf("请求超时或网络错误: %w", err)
		}
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d: %s", res.StatusCode, http.StatusText(res.StatusCode))
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	apiRes := &APIResponse{}
	if err := json.Unmarshal(data, apiRes); err != nil {
		return nil, fmt.Errorf("invalid response %q: %w", data, err)
	}
	return apiRes, nil
}
