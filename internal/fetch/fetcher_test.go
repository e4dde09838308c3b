package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qlhub/qlhub/internal/log"
)

func TestNewFetcher(t *testing.T) {
	tests := []struct {
		typ     FetcherType
		want    string
		wantErr bool
	}{
		{"", "*fetch.StaticFetcher", false},
		{STATIC_FETCHER_TYPE, "*fetch.StaticFetcher", false},
		{MOCK_FETCHER_TYPE, "*fetch.MockFetcher", false},
		{"carrier-pigeon", "", true},
	}
	for _, tt := range tests {
		f, err := NewFetcher(&FetcherConfig{Type: tt.typ})
		if tt.wantErr {
			if err == nil {
				t.Errorf("expected an error for fetcher type %q", tt.typ)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := fmt.Sprintf("%T", f); got != tt.want {
			t.Errorf("fetcher type %q: got %s, want %s", tt.typ, got, tt.want)
		}
	}
}

func TestStaticFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte("<html>" + r.Header.Get("Cookie") + "</html>"))
	}))
	defer srv.Close()

	f := NewStaticFetcher(&FetcherConfig{UserAgent: "test-agent", Timeout: 5 * time.Second})
	body, err := f.Fetch(context.Background(), srv.URL+"/page", FetchOpts{Headers: map[string]string{"Cookie": "sid=1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "<html>sid=1</html>" {
		t.Errorf("got body %q", body)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing", FetchOpts{}); err == nil {
		t.Error("expected an error for a 404 response")
	}
}

func TestMockFetcher(t *testing.T) {
	f := NewMockFetcher(&FetcherConfig{MockPages: []MockPage{{URL: "https://shop.test/1", Content: "<p>1</p>"}}})
	body, err := f.Fetch(context.Background(), "https://shop.test/1", FetchOpts{})
	if err != nil || body != "<p>1</p>" {
		t.Errorf("got %q, %v", body, err)
	}
	if _, err := f.Fetch(context.Background(), "https://shop.test/2", FetchOpts{}); err == nil {
		t.Error("expected an error for an unknown page")
	}
}

func TestWriteHTMLToFileInDebugMode(t *testing.T) {
	dir := t.TempDir()
	log.Debug = true
	defer func() { log.Debug = false }()

	f := NewMockFetcher(&FetcherConfig{DebugDir: dir, MockPages: []MockPage{{URL: "https://shop.test:8080/1", Content: "x"}}})
	if _, err := f.Fetch(context.Background(), "https://shop.test:8080/1", FetchOpts{}); err != nil {
		t.Fatal(err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "shop.test_8080-*.html"))
	if len(matches) != 1 {
		t.Fatalf("expected one debug file, got %v", matches)
	}
	content, _ := os.ReadFile(matches[0])
	if string(content) != "x" {
		t.Errorf("got %q", content)
	}
}
