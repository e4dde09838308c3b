// Package monitor detects price, stock and status changes of watched items
// and notifies the important ones.
package monitor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/qlhub/qlhub/internal/history"
)

const DefaultCooldown = time.Hour

type Kind string

const (
	PriceChange        Kind = "price_change"
	TargetPriceReached Kind = "target_price_reached"
	StockChange        Kind = "stock_change"
	StatusChange       Kind = "status_change"
)

type Direction string

const (
	Drop Direction = "drop"
	Rise Direction = "rise"
)

// Change is one detected difference between the previous and the current
// snapshot of an item.
type Change struct {
	Kind      Kind
	Direction Direction // price changes only
	From      string
	To        string
	Delta     float64 // relative price change
	Important bool
	Message   string
}

// Detector compares snapshots. Cooldown applies per item to all change
// kinds except TargetPriceReached.
type Detector struct {
	Cooldown   time.Duration
	HistoryCap int
	Now        func() time.Time
}

func NewDetector(now func() time.Time) *Detector {
	return &Detector{Cooldown: DefaultCooldown, HistoryCap: history.DefaultCap, Now: now}
}

// Detect compares current with the latest snapshot of h, then appends
// current to h. The first observation of an item yields no changes. When at
// least one change is important the notification bookkeeping of h is
// updated once.
func (d *Detector) Detect(item Item, current history.Snapshot, h *history.ItemHistory) []Change {
	now := time.Now()
	if d.Now != nil {
		now = d.Now()
	}
	if current.Timestamp.IsZero() {
		current.Timestamp = history.At(now)
	}

	changes := []Change{}
	if previous, ok := h.Latest(); ok {
		cooled := h.LastNotify.IsZero() || now.Sub(h.LastNotify.Time()) > d.Cooldown
		changes = append(changes, priceChanges(item, previous, current, cooled)...)
		if c, ok := stockChange(item, previous, current, cooled); ok {
			changes = append(changes, c)
		}
		if c, ok := statusChange(item, previous, current, cooled); ok {
			changes = append(changes, c)
		}
	}

	for _, c := range changes {
		if c.Important {
			h.LastNotify = history.At(now)
			h.NotificationCount++
			break
		}
	}
	h.Append(current, d.HistoryCap)
	return changes
}

// HasImportant reports whether any change is important.
func HasImportant(changes []Change) bool {
	for _, c := range changes {
		if c.Important {
			return true
		}
	}
	return false
}

func priceChanges(item Item, previous, current history.Snapshot, cooled bool) []Change {
	if previous.Price <= 0 || current.Price <= 0 || previous.Price == current.Price {
		return nil
	}
	changes := []Change{}
	if item.TargetPrice > 0 && previous.Price > item.TargetPrice && current.Price <= item.TargetPrice {
		changes = append(changes, Change{
			Kind:      TargetPriceReached,
			Direction: Drop,
			From:      formatPrice(previous.Price),
			To:        formatPrice(current.Price),
			Delta:     (current.Price - previous.Price) / previous.Price,
			Important: true,
			Message: withURL(fmt.Sprintf("🎯 %s 已达到目标价格！\n当前价格: ¥%s\n目标价格: ¥%s",
				item.Name, formatPrice(current.Price), formatPrice(item.TargetPrice)), current.URL),
		})
	}

	delta := (current.Price - previous.Price) / previous.Price
	amount := formatPrice(math.Abs(current.Price - previous.Price))
	percent := fmt.Sprintf("%.2f", math.Abs(delta)*100)
	c := Change{
		Kind:      PriceChange,
		From:      formatPrice(previous.Price),
		To:        formatPrice(current.Price),
		Delta:     delta,
		Important: math.Abs(delta) >= item.Threshold && cooled,
	}
	if delta < 0 {
		c.Direction = Drop
		c.Message = withURL(fmt.Sprintf("📉 %s 降价了！\n降价金额: ¥%s (%s%%)\n当前价格: ¥%s\n原价格: ¥%s",
			item.Name, amount, percent, c.To, c.From), current.URL)
	} else {
		c.Direction = Rise
		c.Message = fmt.Sprintf("📈 %s 涨价了！\n涨价金额: ¥%s (%s%%)\n当前价格: ¥%s\n原价格: ¥%s",
			item.Name, amount, percent, c.To, c.From)
	}
	return append(changes, c)
}

func stockChange(item Item, previous, current history.Snapshot, cooled bool) (Change, bool) {
	if previous.Stock == current.Stock {
		return Change{}, false
	}
	c := Change{Kind: StockChange, From: previous.Stock, To: current.Stock}
	switch {
	case IsUnavailable(previous.Stock) && IsAvailable(current.Stock):
		c.Important = cooled
		c.Message = withURL(fmt.Sprintf("📦 %s 补货了！\n当前状态: %s\n当前价格: ¥%s",
			item.Name, current.Stock, formatPrice(current.Price)), current.URL)
	case IsAvailable(previous.Stock) && IsUnavailable(current.Stock):
		c.Important = cooled
		c.Message = fmt.Sprintf("⚠️ %s 缺货了！\n当前状态: %s", item.Name, current.Stock)
	default:
		c.Message = fmt.Sprintf("📋 %s 库存状态变化: %s → %s", item.Name, previous.Stock, current.Stock)
	}
	return c, true
}

func statusChange(item Item, previous, current history.Snapshot, cooled bool) (Change, bool) {
	if previous.Status == current.Status {
		return Change{}, false
	}
	return Change{
		Kind:      StatusChange,
		From:      previous.Status,
		To:        current.Status,
		Important: IsDelisted(current.Status) && !IsDelisted(previous.Status) && cooled,
		Message:   fmt.Sprintf("🔄 %s 状态变化: %s → %s", item.Name, previous.Status, current.Status),
	}, true
}

var (
	availableKeywords   = []string{"现货", "有货", "in stock", "available"}
	unavailableKeywords = []string{"无货", "缺货", "out of stock", "sold out", "unavailable"}
)

// IsUnavailable reports whether stock describes an out of stock state.
func IsUnavailable(stock string) bool {
	s := strings.ToLower(stock)
	for _, k := range unavailableKeywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// IsAvailable reports whether stock describes an in stock state.
func IsAvailable(stock string) bool {
	if IsUnavailable(stock) {
		return false
	}
	s := strings.ToLower(stock)
	for _, k := range availableKeywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

const Delisted = "已下架"

func IsDelisted(status string) bool {
	return strings.Contains(status, Delisted) || strings.EqualFold(strings.TrimSpace(status), "delisted")
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(math.Round(p*100)/100, 'f', -1, 64)
}

func withURL(msg, url string) string {
	if url == "" {
		return msg
	}
	return msg + "\n商品链接: " + url
}
