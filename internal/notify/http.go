package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// encodeJSON does not escape html characters, message bodies regularly
// contain them.
func encodeJSON(v any) ([]byte, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

type requestOpt func(*http.Request)

func withBasicAuth(user, password string) requestOpt {
	return func(r *http.Request) {
		if user != "" {
			r.SetBasicAuth(user, password)
		}
	}
}

// postJSON posts payload to url and decodes the response body into out
// unless out is nil. Any status code outside 2xx is an error.
func postJSON(ctx context.Context, client *http.Client, url string, payload, out any, opts ...requestOpt) error {
	body, err := encodeJSON(payload)
	if err != nil {
		return fmt.Errorf("error while encoding payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	for _, o := range opts {
		o(req)
	}
	return do(client, req, out)
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return do(client, req, out)
}

func do(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error while sending request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error while reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status code %d, response: %s", resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error while decoding response %q: %w", body, err)
	}
	return nil
}
