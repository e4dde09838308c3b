package monitor

import (
	"context"
	"testing"

	"github.com/qlhub/qlhub/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseItems(t *testing.T) {
	items := ParseItems(context.Background(), "iPhone 15|100012043978|5000@AirPods Pro|100008348542@|missing-name@only-name|", 0.05)
	require.Len(t, items, 2)

	assert.Equal(t, Item{
		ID:          utils.MD5("iPhone 15" + "100012043978"),
		Name:        "iPhone 15",
		Locator:     "100012043978",
		TargetPrice: 5000,
		Threshold:   0.05,
		Remark:      "监控项目1",
	}, items[0])
	assert.Equal(t, 0.0, items[1].TargetPrice)
	assert.Equal(t, "监控项目2", items[1].Remark)
}

func TestParseItemsInvalidTarget(t *testing.T) {
	items := ParseItems(context.Background(), "a|b|cheap", 0.1)
	require.Len(t, items, 1)
	assert.Zero(t, items[0].TargetPrice)
}

func TestItemIDIsStable(t *testing.T) {
	a := NewItem(" 耳机 ", "https://shop.test/1", 0, 0.05, "")
	b := NewItem("耳机", "https://shop.test/1 ", 10, 0.2, "x")
	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, NewItem("耳机", "https://shop.test/2", 0, 0.05, "").ID)
}

func TestParseItemList(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"json", `[{"name":"耳机","url":"https://shop.test/1","targetPrice":100},
		           {"name":"键盘","sku":"42","threshold":0.2},
		           {"name":"旧","url":"https://shop.test/old","enabled":false},
		           {"url":"https://shop.test/anonymous"}]`},
		{"yaml", `
- name: 耳机
  url: https://shop.test/1
  targetPrice: 100
- name: 键盘
  sku: "42"
  threshold: 0.2
- name: 旧
  url: https://shop.test/old
  enabled: false
- url: https://shop.test/anonymous
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := ParseItemList(context.Background(), []byte(tt.data), 0.05)
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, "https://shop.test/1", items[0].Locator)
			assert.Equal(t, 100.0, items[0].TargetPrice)
			assert.Equal(t, 0.05, items[0].Threshold)
			assert.Equal(t, "42", items[1].Locator)
			assert.Equal(t, 0.2, items[1].Threshold)
		})
	}
}

func TestLoadItemsPrefersList(t *testing.T) {
	ctx := context.Background()
	items := LoadItems(ctx, `[{"name":"a","url":"u"}]`, "b|v", 0.05)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].Name)

	items = LoadItems(ctx, `{not a list`, "b|v", 0.05)
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].Name)

	assert.Empty(t, LoadItems(ctx, "", "", 0.05))
}
