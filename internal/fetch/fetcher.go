// Package fetch retrieves the pages monitored items are read from.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qlhub/qlhub/internal/log"
	"github.com/qlhub/qlhub/internal/utils"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// A Fetcher allows to fetch the content of a web page
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts FetchOpts) (string, error)
	Cancel() // only needed for the dynamic fetcher
}

// FetchOpts are per request settings.
type FetchOpts struct {
	// Headers are added to the request. Only the static fetcher honours
	// them.
	Headers map[string]string
	// WaitSelector makes the dynamic fetcher wait until the selector is
	// visible instead of sleeping for the page load time.
	WaitSelector string
}

type FetcherType string

const (
	STATIC_FETCHER_TYPE  FetcherType = "static"
	DYNAMIC_FETCHER_TYPE FetcherType = "dynamic"
	MOCK_FETCHER_TYPE    FetcherType = "mock"
)

// MockPage is a canned response of the mock fetcher.
type MockPage struct {
	URL     string `yaml:"url"`
	Content string `yaml:"content"`
}

type FetcherConfig struct {
	Type         FetcherType   `yaml:"type" env:"FETCHER_TYPE" env-default:"static"`
	UserAgent    string        `yaml:"user_agent" env:"USER_AGENT"`
	Timeout      time.Duration `yaml:"timeout" env:"FETCH_TIMEOUT" env-default:"30s"`
	PageLoadWait time.Duration `yaml:"page_load_wait" env:"PAGE_LOAD_WAIT" env-default:"2s"`
	DebugDir     string        `yaml:"debug_dir" env:"DEBUG_DIR"`
	MockPages    []MockPage    `yaml:"mock_pages"`
}

func NewFetcher(fc *FetcherConfig) (Fetcher, error) {
	if fc.UserAgent == "" {
		fc.UserAgent = DefaultUserAgent
	}
	switch fc.Type {
	case STATIC_FETCHER_TYPE, "":
		return NewStaticFetcher(fc), nil
	case DYNAMIC_FETCHER_TYPE:
		return NewDynamicFetcher(fc), nil
	case MOCK_FETCHER_TYPE:
		return NewMockFetcher(fc), nil
	default:
		return nil, fmt.Errorf("fetcher of type %s not implemented", fc.Type)
	}
}

// writeHTMLToFile dumps a fetched page for debugging. Failures are only
// logged.
func writeHTMLToFile(ctx context.Context, urlStr, content, dir string) {
	logger := log.LoggerFromContext(ctx)
	host := "page"
	if u, err := url.Parse(urlStr); err == nil && u.Host != "" {
		host = strings.ReplaceAll(u.Host, ":", "_")
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Warn(fmt.Sprintf("failed to create debug directory: %v", err))
			return
		}
	}
	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.html", host, utils.MD5(urlStr)[:8]))
	logger.Debug(fmt.Sprintf("writing html to file %s", filename), slog.String("url", urlStr))
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		logger.Warn(fmt.Sprintf("failed to write html file: %v", err))
	}
}
