package site

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/qlhub/qlhub/internal/fetch"
	"github.com/qlhub/qlhub/internal/history"
	"github.com/qlhub/qlhub/internal/monitor"
	"golang.org/x/net/html"
)

const (
	StockUnknown = "未知"
	StatusNormal = "正常"
)

// Selectors locate the snapshot fields in a product page. Every field is
// optional. Without any selector the page is read heuristically.
type Selectors struct {
	Name   string `yaml:"name" env:"MONITOR_SELECTOR_NAME"`
	Price  string `yaml:"price" env:"MONITOR_SELECTOR_PRICE"`
	Stock  string `yaml:"stock" env:"MONITOR_SELECTOR_STOCK"`
	Status string `yaml:"status" env:"MONITOR_SELECTOR_STATUS"`
	// PriceRegex extracts the price from the text of the price node. The
	// first submatch is used if there is one.
	PriceRegex string `yaml:"price_regex" env:"MONITOR_PRICE_REGEX"`
}

func (s Selectors) empty() bool {
	return s.Name == "" && s.Price == "" && s.Stock == "" && s.Status == ""
}

// HTMLSource reads snapshots from product pages.
type HTMLSource struct {
	Fetcher   fetch.Fetcher
	Selectors Selectors
	Headers   map[string]string
}

func (s *HTMLSource) Fetch(ctx context.Context, item monitor.Item) (history.Snapshot, error) {
	opts := fetch.FetchOpts{Headers: s.Headers, WaitSelector: s.Selectors.Price}
	body, err := s.Fetcher.Fetch(ctx, item.Locator, opts)
	if err != nil {
		return history.Snapshot{}, fmt.Errorf("请求失败: %w", err)
	}
	snap, err := ParseSnapshot(body, item.Name, s.Selectors)
	if err != nil {
		return history.Snapshot{}, err
	}
	snap.URL = item.Locator
	return snap, nil
}

var (
	heuristicPrice = regexp.MustCompile(`(?i)price["']?\s*:?\s*["']?(\d+\.?\d*)`)
	firstNumber    = regexp.MustCompile(`\d+(?:[.,]\d+)*`)

	stockPatterns = []struct {
		re    *regexp.Regexp
		stock string
	}{
		{regexp.MustCompile(`(?i)现货|有货|in stock`), "有货"},
		{regexp.MustCompile(`(?i)缺货|无货|out of stock`), "缺货"},
		{regexp.MustCompile(`(?i)预售|pre-order`), "预售"},
	}
	delistedMarkers = []string{"商品不存在", "页面不存在", "404"}
)

// ParseSnapshot extracts a snapshot from a product page.
func ParseSnapshot(page, name string, sel Selectors) (history.Snapshot, error) {
	snap := history.Snapshot{Name: name, Stock: StockUnknown, Status: StatusNormal}
	if sel.empty() {
		return parseHeuristic(page, snap), nil
	}

	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return snap, fmt.Errorf("解析页面失败: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	if sel.Name != "" {
		if n := strings.TrimSpace(doc.Find(sel.Name).First().Text()); n != "" {
			snap.Name = n
		}
	}
	if sel.Price != "" {
		priceNode := doc.Find(sel.Price).First()
		text := strings.TrimSpace(priceNode.Text())
		if text == "" {
			text, _ = priceNode.Attr("content")
		}
		p, err := extractPrice(text, sel.PriceRegex)
		if err != nil {
			return snap, err
		}
		snap.Price = p
	}
	if sel.Stock != "" {
		if s := strings.TrimSpace(doc.Find(sel.Stock).First().Text()); s != "" {
			snap.Stock = s
		}
	}
	if sel.Status != "" {
		if s := strings.TrimSpace(doc.Find(sel.Status).First().Text()); s != "" {
			snap.Status = s
		}
	}
	return snap, nil
}

func extractPrice(text, pattern string) (float64, error) {
	if text == "" {
		return 0, nil
	}
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return 0, fmt.Errorf("invalid price regex %q: %w", pattern, err)
		}
		m := re.FindStringSubmatch(text)
		if m == nil {
			return 0, nil
		}
		text = m[len(m)-1]
	}
	n := firstNumber.FindString(text)
	if n == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(n, ",", ""), 64)
}

func parseHeuristic(page string, snap history.Snapshot) history.Snapshot {
	if m := heuristicPrice.FindStringSubmatch(page); m != nil {
		if p, err := strconv.ParseFloat(m[1], 64); err == nil {
			snap.Price = p
		}
	}
	for _, sp := range stockPatterns {
		if sp.re.MatchString(page) {
			snap.Stock = sp.stock
			break
		}
	}
	for _, marker := range delistedMarkers {
		if strings.Contains(page, marker) {
			snap.Status = monitor.Delisted
			break
		}
	}
	return snap
}
