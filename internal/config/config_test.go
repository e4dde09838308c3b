package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qlhub/qlhub/internal/fetch"
	"github.com/qlhub/qlhub/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigFromEnvironment(t *testing.T) {
	t.Setenv("CHECKIN_ACCOUNTS", "user:pass@main")
	t.Setenv("BARK_KEY", "bark")
	t.Setenv("MONITOR_PRICE_THRESHOLD", "0.1")

	c, err := NewConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, "user:pass@main", c.Checkin.Accounts)
	assert.Equal(t, 3*time.Second, c.Checkin.Delay)
	assert.Equal(t, "https://example.com", c.Checkin.BaseURL)
	assert.Equal(t, 10, c.Rewards.MaxTasks)
	assert.Equal(t, 0.1, c.Monitor.Threshold)
	assert.Equal(t, time.Hour, c.Monitor.Cooldown)
	assert.Equal(t, HTML_SOURCE_TYPE, c.Monitor.Source)
	assert.Equal(t, "bark", c.Notify.Bark.Key)
	assert.Equal(t, "https://api.day.app", c.Notify.Bark.URL)
	assert.Equal(t, 10*time.Second, c.Notify.Timeout)
	assert.True(t, c.Notify.Enabled)
	assert.True(t, c.RandomStart.Enabled)
	assert.Equal(t, 1800, c.RandomStart.Max)
	assert.Equal(t, fetch.STATIC_FETCHER_TYPE, c.Fetcher.Type)
	assert.Equal(t, history.FILE_STORE_TYPE, c.History.Type)
}

const configFile = `
checkin:
  base_url: https://checkin.example
rewards:
  tokens: "t1@a&t2@b"
monitor:
  source: jd
  delay_max: 10s
  selectors:
    price: .price
history:
  type: sqlite
  path: /tmp/history.db
`

func TestNewConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(configFile), 0644))
	t.Setenv("REWARDS_MAX_TASKS", "4")

	c, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://checkin.example", c.Checkin.BaseURL)
	assert.Equal(t, "t1@a&t2@b", c.Rewards.Tokens)
	assert.Equal(t, 4, c.Rewards.MaxTasks)
	assert.Equal(t, JD_SOURCE_TYPE, c.Monitor.Source)
	assert.Equal(t, 10*time.Second, c.Monitor.DelayMax)
	assert.Equal(t, 2*time.Second, c.Monitor.DelayMin)
	assert.Equal(t, ".price", c.Monitor.Selectors.Price)
	assert.Equal(t, history.SQLITE_STORE_TYPE, c.History.Type)
	assert.Equal(t, "/tmp/history.db", c.History.Path)
}

func TestNewConfigInvalid(t *testing.T) {
	tests := map[string]string{
		"MONITOR_SOURCE":          "taobao",
		"MONITOR_PRICE_THRESHOLD": "-1",
		"RANDOM_START_MIN":        "100",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if key == "RANDOM_START_MIN" {
				t.Setenv("RANDOM_START_MAX", "10")
			}
			_, err := NewConfig("")
			if err == nil {
				t.Errorf("expected an error for %s=%s", key, value)
			}
		})
	}
}
