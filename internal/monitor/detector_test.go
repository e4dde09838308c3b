package monitor

import (
	"testing"
	"time"

	"github.com/qlhub/qlhub/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)

func detector() *Detector {
	return NewDetector(func() time.Time { return now })
}

func item(threshold, target float64) Item {
	return NewItem("耳机", "https://shop.test/1", target, threshold, "")
}

func historyWith(snaps ...history.Snapshot) *history.ItemHistory {
	h := &history.ItemHistory{ID: "x"}
	for _, s := range snaps {
		h.Append(s, 0)
	}
	return h
}

func findKind(changes []Change, k Kind) (Change, bool) {
	for _, c := range changes {
		if c.Kind == k {
			return c, true
		}
	}
	return Change{}, false
}

func TestDetectFirstObservation(t *testing.T) {
	h := historyWith()
	changes := detector().Detect(item(0.05, 0), history.Snapshot{Price: 100}, h)
	assert.Empty(t, changes)
	require.Len(t, h.Snapshots, 1)
	assert.Equal(t, history.At(now), h.Snapshots[0].Timestamp)
	assert.True(t, h.LastNotify.IsZero())
}

func TestDetectPriceThreshold(t *testing.T) {
	tests := []struct {
		name      string
		current   float64
		direction Direction
		important bool
	}{
		{"6% drop", 94, Drop, true},
		{"3% drop", 97, Drop, false},
		{"exactly 5% drop", 95, Drop, true},
		{"10% rise", 110, Rise, true},
		{"1% rise", 101, Rise, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := historyWith(history.Snapshot{Timestamp: 1, Price: 100})
			changes := detector().Detect(item(0.05, 0), history.Snapshot{Price: tt.current}, h)
			require.Len(t, changes, 1)
			c := changes[0]
			assert.Equal(t, PriceChange, c.Kind)
			assert.Equal(t, tt.direction, c.Direction)
			assert.Equal(t, tt.important, c.Important)
			if tt.important {
				assert.Equal(t, history.At(now), h.LastNotify)
				assert.Equal(t, 1, h.NotificationCount)
			} else {
				assert.True(t, h.LastNotify.IsZero())
			}
		})
	}
}

func TestDetectIgnoresUnknownPrices(t *testing.T) {
	for _, pair := range [][2]float64{{0, 100}, {100, 0}, {100, 100}} {
		h := historyWith(history.Snapshot{Timestamp: 1, Price: pair[0]})
		changes := detector().Detect(item(0.05, 0), history.Snapshot{Price: pair[1]}, h)
		assert.Empty(t, changes, "prices %v", pair)
	}
}

func TestDetectTargetPriceBypassesCooldown(t *testing.T) {
	h := historyWith(history.Snapshot{Timestamp: 1, Price: 120})
	h.LastNotify = history.At(now.Add(-time.Second))

	changes := detector().Detect(item(0.5, 100), history.Snapshot{Price: 95}, h)

	target, ok := findKind(changes, TargetPriceReached)
	require.True(t, ok)
	assert.True(t, target.Important)
	assert.Contains(t, target.Message, "目标价格: ¥100")

	price, ok := findKind(changes, PriceChange)
	require.True(t, ok)
	assert.False(t, price.Important, "threshold and cooldown still apply to the price change")

	assert.Equal(t, history.At(now), h.LastNotify)
	assert.Equal(t, 1, h.NotificationCount)
}

func TestDetectTargetPriceOnlyOnCrossing(t *testing.T) {
	tests := []struct {
		name     string
		previous float64
		current  float64
		fires    bool
	}{
		{"crosses to below", 120, 95, true},
		{"crosses to exactly", 120, 100, true},
		{"already below", 98, 95, false},
		{"stays above", 130, 120, false},
		{"previous exactly at target", 100, 90, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := historyWith(history.Snapshot{Timestamp: 1, Price: tt.previous})
			_, ok := findKind(detector().Detect(item(0.05, 100), history.Snapshot{Price: tt.current}, h), TargetPriceReached)
			assert.Equal(t, tt.fires, ok)
		})
	}
}

func TestDetectCooldown(t *testing.T) {
	clock := now
	d := NewDetector(func() time.Time { return clock })
	it := item(0.05, 0)
	h := historyWith(history.Snapshot{Timestamp: 1, Price: 100})

	first := d.Detect(it, history.Snapshot{Price: 90}, h)
	require.Len(t, first, 1)
	assert.True(t, first[0].Important)

	clock = clock.Add(10 * time.Minute)
	second := d.Detect(it, history.Snapshot{Price: 80}, h)
	require.Len(t, second, 1)
	assert.False(t, second[0].Important)
	assert.Equal(t, 1, h.NotificationCount)

	clock = clock.Add(time.Hour)
	third := d.Detect(it, history.Snapshot{Price: 70}, h)
	assert.True(t, third[0].Important)
	assert.Equal(t, 2, h.NotificationCount)
	assert.Len(t, h.Snapshots, 4)
}

func TestDetectStock(t *testing.T) {
	tests := []struct {
		name      string
		from, to  string
		important bool
	}{
		{"restock", "无货", "有货", true},
		{"restock english", "Out of Stock", "In Stock", true},
		{"stockout", "现货", "缺货", true},
		{"lateral", "有货", "现货", false},
		{"into preorder", "有货", "预售", false},
		{"unknown to available", "未知", "有货", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := historyWith(history.Snapshot{Timestamp: 1, Stock: tt.from})
			changes := detector().Detect(item(0.05, 0), history.Snapshot{Stock: tt.to}, h)
			require.Len(t, changes, 1)
			assert.Equal(t, StockChange, changes[0].Kind)
			assert.Equal(t, tt.important, changes[0].Important)
		})
	}
}

func TestDetectStockGatedByCooldown(t *testing.T) {
	h := historyWith(history.Snapshot{Timestamp: 1, Stock: "无货"})
	h.LastNotify = history.At(now.Add(-time.Minute))
	changes := detector().Detect(item(0.05, 0), history.Snapshot{Stock: "有货"}, h)
	require.Len(t, changes, 1)
	assert.False(t, changes[0].Important)
}

func TestDetectStatus(t *testing.T) {
	h := historyWith(history.Snapshot{Timestamp: 1, Status: "正常"})
	changes := detector().Detect(item(0.05, 0), history.Snapshot{Status: Delisted}, h)
	require.Len(t, changes, 1)
	assert.Equal(t, StatusChange, changes[0].Kind)
	assert.True(t, changes[0].Important)
	assert.Equal(t, "🔄 耳机 状态变化: 正常 → 已下架", changes[0].Message)

	changes = detector().Detect(item(0.05, 0), history.Snapshot{Status: "正常"}, historyWith(history.Snapshot{Timestamp: 1, Status: Delisted}))
	require.Len(t, changes, 1)
	assert.False(t, changes[0].Important)
}

func TestDetectSingleBookkeepingUpdate(t *testing.T) {
	h := historyWith(history.Snapshot{Timestamp: 1, Price: 100, Stock: "无货", Status: "正常"})
	changes := detector().Detect(item(0.05, 0), history.Snapshot{Price: 50, Stock: "有货", Status: Delisted}, h)
	assert.Len(t, changes, 3)
	assert.True(t, HasImportant(changes))
	assert.Equal(t, 1, h.NotificationCount)
}

func TestDetectEvictsAtCap(t *testing.T) {
	d := detector()
	d.HistoryCap = 3
	h := historyWith()
	for i := 1; i <= 5; i++ {
		d.Detect(item(0.05, 0), history.Snapshot{Timestamp: history.Timestamp(i), Price: 100}, h)
	}
	require.Len(t, h.Snapshots, 3)
	assert.Equal(t, history.Timestamp(3), h.Snapshots[0].Timestamp)
}

func TestPriceMessages(t *testing.T) {
	h := historyWith(history.Snapshot{Timestamp: 1, Price: 100})
	changes := detector().Detect(item(0.05, 0), history.Snapshot{Price: 89.9, URL: "https://shop.test/1"}, h)
	require.Len(t, changes, 1)
	assert.Equal(t, "📉 耳机 降价了！\n降价金额: ¥10.1 (10.10%)\n当前价格: ¥89.9\n原价格: ¥100\n商品链接: https://shop.test/1", changes[0].Message)
}

func TestStockClassification(t *testing.T) {
	assert.True(t, IsAvailable("有货，下单立即发货"))
	assert.False(t, IsAvailable("Unavailable"))
	assert.True(t, IsUnavailable("SOLD OUT"))
	assert.False(t, IsUnavailable("预售"))
	assert.False(t, IsAvailable("预售"))
	assert.True(t, IsDelisted("Delisted"))
}
