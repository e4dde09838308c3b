package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/qlhub/qlhub/internal/log"
	"github.com/qlhub/qlhub/internal/utils"
	"gopkg.in/yaml.v3"
)

const DefaultThreshold = 0.05

// Item is a product being watched. Locator is a page url or a sku,
// depending on the snapshot source.
type Item struct {
	ID          string
	Name        string
	Locator     string
	TargetPrice float64
	// Threshold is the relative price change, e.g. 0.05, from which a
	// price change is important.
	Threshold float64
	Remark    string
}

// NewItem derives the stable id of an item from its name and locator.
func NewItem(name, locator string, targetPrice, threshold float64, remark string) Item {
	name, locator = strings.TrimSpace(name), strings.TrimSpace(locator)
	return Item{
		ID:          utils.MD5(name + locator),
		Name:        name,
		Locator:     locator,
		TargetPrice: targetPrice,
		Threshold:   threshold,
		Remark:      remark,
	}
}

const (
	itemSep  = "@"
	fieldSep = "|"
)

// ParseItems parses name|locator|target entries separated by @. The
// target is optional. Entries without name or locator are dropped.
func ParseItems(ctx context.Context, raw string, threshold float64) []Item {
	logger := log.LoggerFromContext(ctx)
	items := []Item{}
	if strings.TrimSpace(raw) == "" {
		return items
	}
	for i, entry := range strings.Split(raw, itemSep) {
		fields := strings.Split(entry, fieldSep)
		if len(fields) < 2 || strings.TrimSpace(fields[0]) == "" || strings.TrimSpace(fields[1]) == "" {
			logger.Debug("dropping monitor entry without name or locator", slog.Int("entry", i+1))
			continue
		}
		target := 0.0
		if len(fields) > 2 && strings.TrimSpace(fields[2]) != "" {
			v, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
			if err != nil {
				logger.Warn(fmt.Sprintf("ignoring invalid target price %q of entry %d", fields[2], i+1))
			} else {
				target = v
			}
		}
		items = append(items, NewItem(fields[0], fields[1], target, threshold, fmt.Sprintf("监控项目%d", i+1)))
	}
	return items
}

// itemConfig is one entry of a structured item list. url and sku are
// accepted as aliases of locator.
type itemConfig struct {
	Name        string   `yaml:"name"`
	Locator     string   `yaml:"locator"`
	URL         string   `yaml:"url"`
	SKU         string   `yaml:"sku"`
	SKUID       string   `yaml:"skuId"`
	TargetPrice float64  `yaml:"targetPrice"`
	Threshold   *float64 `yaml:"threshold"`
	Enabled     *bool    `yaml:"enabled"`
	Remark      string   `yaml:"remark"`
}

func (c itemConfig) locator() string {
	for _, l := range []string{c.Locator, c.URL, c.SKU, c.SKUID} {
		if strings.TrimSpace(l) != "" {
			return l
		}
	}
	return ""
}

// ParseItemList decodes a yaml or json list of items. Disabled entries and
// entries without name or locator are skipped. threshold is used for
// entries that do not set their own.
func ParseItemList(ctx context.Context, data []byte, threshold float64) ([]Item, error) {
	logger := log.LoggerFromContext(ctx)
	var configs []itemConfig
	if err := yaml.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("error while parsing monitor item list: %w", err)
	}
	items := []Item{}
	for i, c := range configs {
		if c.Enabled != nil && !*c.Enabled {
			logger.Debug(fmt.Sprintf("skipping disabled monitor item %s", c.Name))
			continue
		}
		if strings.TrimSpace(c.Name) == "" || c.locator() == "" {
			logger.Debug("dropping monitor item without name or locator", slog.Int("entry", i+1))
			continue
		}
		th := threshold
		if c.Threshold != nil {
			th = *c.Threshold
		}
		remark := c.Remark
		if remark == "" {
			remark = fmt.Sprintf("监控项目%d", i+1)
		}
		items = append(items, NewItem(c.Name, c.locator(), c.TargetPrice, th, remark))
	}
	return items, nil
}

// LoadItems prefers the structured list and falls back to the compact
// format when the list is empty or invalid.
func LoadItems(ctx context.Context, list, compact string, threshold float64) []Item {
	logger := log.LoggerFromContext(ctx)
	if strings.TrimSpace(list) != "" {
		items, err := ParseItemList(ctx, []byte(list), threshold)
		if err != nil {
			logger.Error(fmt.Sprintf("%v", err))
		} else if len(items) > 0 {
			return items
		}
	}
	items := ParseItems(ctx, compact, threshold)
	if len(items) == 0 {
		logger.Error("no valid monitor items configured")
		logger.Info(`expected format: MONITOR_ITEMS="名称|链接或SKU|目标价格@名称|链接或SKU|目标价格" or MONITOR_CONFIG='[{"name":"名称","url":"链接","targetPrice":100}]'`)
	}
	return items
}
