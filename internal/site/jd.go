package site

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/jsonquery"
	"github.com/qlhub/qlhub/internal/fetch"
	"github.com/qlhub/qlhub/internal/history"
	"github.com/qlhub/qlhub/internal/log"
	"github.com/qlhub/qlhub/internal/monitor"
	"github.com/qlhub/qlhub/internal/utils"
)

const (
	DefaultJDPriceURL = "https://p.3.cn"
	DefaultJDItemURL  = "https://item.jd.com"
)

// JDSource reads the price of a sku from the JD price api and the title and
// stock from the product page. Only the price is mandatory.
type JDSource struct {
	Fetcher  fetch.Fetcher
	PriceURL string
	ItemURL  string
}

func NewJDSource(f fetch.Fetcher) *JDSource {
	return &JDSource{Fetcher: f, PriceURL: DefaultJDPriceURL, ItemURL: DefaultJDItemURL}
}

var (
	skuFromURL = regexp.MustCompile(`/(\d+)\.html`)
	bracketed  = regexp.MustCompile(`【.*?】`)
)

// SKU returns the sku of a locator, which is either the sku itself or a
// product page url.
func SKU(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if m := skuFromURL.FindStringSubmatch(locator); m != nil {
		return m[1], nil
	}
	if locator == "" || !utils.OnlyContainsDigits(locator) {
		return "", fmt.Errorf("无效的商品ID: %q", locator)
	}
	return locator, nil
}

func (s *JDSource) Fetch(ctx context.Context, item monitor.Item) (history.Snapshot, error) {
	logger := log.LoggerFromContext(ctx)
	sku, err := SKU(item.Locator)
	if err != nil {
		return history.Snapshot{}, err
	}

	priceURL := fmt.Sprintf("%s/prices/mgets?skuIds=J_%s&type=1", strings.TrimRight(s.PriceURL, "/"), sku)
	body, err := s.Fetcher.Fetch(ctx, priceURL, fetch.FetchOpts{})
	if err != nil {
		return history.Snapshot{}, fmt.Errorf("获取价格失败: %w", err)
	}
	price, original, err := ParseJDPrice(body)
	if err != nil {
		return history.Snapshot{}, err
	}

	pageURL := fmt.Sprintf("%s/%s.html", strings.TrimRight(s.ItemURL, "/"), sku)
	snap := history.Snapshot{
		Name:          item.Name,
		Price:         price,
		OriginalPrice: original,
		Stock:         StockUnknown,
		Status:        StatusNormal,
		URL:           pageURL,
	}
	page, err := s.Fetcher.Fetch(ctx, pageURL, fetch.FetchOpts{})
	if err != nil {
		logger.Warn(fmt.Sprintf("failed to fetch product page, keeping price only: %v", err))
		return snap, nil
	}
	name, stock, status := ParseJDPage(page)
	if name != "" {
		snap.Name = name
	}
	snap.Stock, snap.Status = stock, status
	return snap, nil
}

// ParseJDPrice reads the current and the list price from a price api
// response such as [{"id":"J_1","p":"5999.00","m":"6999.00"}]. Negative
// prices, used for unavailable skus, are reported as unknown.
func ParseJDPrice(body string) (price, original float64, err error) {
	doc, err := jsonquery.Parse(strings.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("价格数据无效: %w", err)
	}
	p := jsonquery.FindOne(doc, "//p")
	if p == nil {
		return 0, 0, errors.New("商品价格数据为空")
	}
	price = parsePrice(p.InnerText())
	if m := jsonquery.FindOne(doc, "//m"); m != nil {
		original = parsePrice(m.InnerText())
	}
	return price, original, nil
}

func parsePrice(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// ParseJDPage extracts the cleaned title, the stock and the status of a
// product page.
func ParseJDPage(page string) (name, stock, status string) {
	stock, status = StockUnknown, StatusNormal
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", stock, status
	}
	name = strings.TrimSpace(bracketed.ReplaceAllString(doc.Find("title").First().Text(), ""))

	switch {
	case strings.Contains(page, "现货"):
		stock = "现货"
	case strings.Contains(page, "有货"):
		stock = "有货"
	case strings.Contains(page, "无货"), strings.Contains(page, "缺货"):
		stock = "无货"
	case strings.Contains(page, "预售"):
		stock = "预售"
	}
	if strings.Contains(page, "该商品已下柜") {
		status = monitor.Delisted
	}
	return name, stock, status
}
