package fetch

import (
	"context"
	"fmt"

	"github.com/qlhub/qlhub/internal/log"
)

// MockFetcher serves the pages configured in FetcherConfig.MockPages.
type MockFetcher struct {
	*FetcherConfig
	pagesMap map[string]string
}

func NewMockFetcher(fc *FetcherConfig) *MockFetcher {
	mf := &MockFetcher{
		FetcherConfig: fc,
		pagesMap:      map[string]string{},
	}
	for _, p := range fc.MockPages {
		mf.pagesMap[p.URL] = p.Content
	}
	return mf
}

func (m *MockFetcher) Fetch(ctx context.Context, urlStr string, opts FetchOpts) (string, error) {
	if p, ok := m.pagesMap[urlStr]; ok {
		if log.Debug {
			writeHTMLToFile(ctx, urlStr, p, m.DebugDir)
		}
		return p, nil
	}
	return "", fmt.Errorf("page not found: %s", urlStr)
}

// To comply with the Fetcher interface
func (m *MockFetcher) Cancel() {}
