// Package config reads the configuration of all tasks from an optional yaml
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/qlhub/qlhub/internal/fetch"
	"github.com/qlhub/qlhub/internal/history"
	"github.com/qlhub/qlhub/internal/notify"
	"github.com/qlhub/qlhub/internal/runner"
	"github.com/qlhub/qlhub/internal/site"
)

type SourceType string

const (
	HTML_SOURCE_TYPE SourceType = "html"
	JD_SOURCE_TYPE   SourceType = "jd"
)

type CheckinConfig struct {
	Accounts string        `yaml:"accounts" env:"CHECKIN_ACCOUNTS"`
	Cookies  string        `yaml:"cookies" env:"CHECKIN_COOKIES"`
	BaseURL  string        `yaml:"base_url" env:"CHECKIN_BASE_URL" env-default:"https://example.com"`
	Delay    time.Duration `yaml:"delay" env:"CHECKIN_DELAY" env-default:"3s"`
}

type RewardsConfig struct {
	Tokens   string        `yaml:"tokens" env:"REWARDS_TOKENS"`
	UserIDs  string        `yaml:"user_ids" env:"REWARDS_USERIDS"`
	BaseURL  string        `yaml:"base_url" env:"REWARDS_BASE_URL" env-default:"https://example.com"`
	MaxTasks int           `yaml:"max_tasks" env:"REWARDS_MAX_TASKS" env-default:"10"`
	Delay    time.Duration `yaml:"delay" env:"REWARDS_DELAY" env-default:"3s"`
}

type MonitorConfig struct {
	// Items is the compact item format, List the yaml or json item list.
	Items      string         `yaml:"items" env:"MONITOR_ITEMS"`
	List       string         `yaml:"config" env:"MONITOR_CONFIG"`
	Threshold  float64        `yaml:"price_threshold" env:"MONITOR_PRICE_THRESHOLD" env-default:"0.05"`
	Source     SourceType     `yaml:"source" env:"MONITOR_SOURCE" env-default:"html"`
	Cooldown   time.Duration  `yaml:"cooldown" env:"MONITOR_COOLDOWN" env-default:"1h"`
	HistoryCap int            `yaml:"history_cap" env:"MONITOR_HISTORY_CAP" env-default:"100"`
	DelayMin   time.Duration  `yaml:"delay_min" env:"MONITOR_DELAY_MIN" env-default:"2s"`
	DelayMax   time.Duration  `yaml:"delay_max" env:"MONITOR_DELAY_MAX" env-default:"5s"`
	Selectors  site.Selectors `yaml:"selectors"`
}

// Config is the configuration of all tasks. Values are taken from a yaml
// file, the environment or both, the environment taking precedence.
type Config struct {
	RandomStart runner.RandomStart  `yaml:"random_start"`
	Timeout     time.Duration       `yaml:"timeout" env:"REQUEST_TIMEOUT" env-default:"30s"`
	Debug       bool                `yaml:"debug" env:"DEBUG"`
	Notify      notify.Config       `yaml:"notify"`
	History     history.StoreConfig `yaml:"history"`
	Fetcher     fetch.FetcherConfig `yaml:"fetcher"`
	Checkin     CheckinConfig       `yaml:"checkin"`
	Rewards     RewardsConfig       `yaml:"rewards"`
	Monitor     MonitorConfig       `yaml:"monitor"`
}

// NewConfig reads the file at configPath if there is one, and the
// environment otherwise.
func NewConfig(configPath string) (*Config, error) {
	var config Config
	if configPath != "" {
		_, err := os.Stat(configPath)
		switch {
		case err == nil:
			if err := cleanenv.ReadConfig(configPath, &config); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
			return &config, config.validate()
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &config, config.validate()
}

func (c *Config) validate() error {
	switch c.Monitor.Source {
	case HTML_SOURCE_TYPE, JD_SOURCE_TYPE:
	default:
		return fmt.Errorf("monitor source type %s does not exist", c.Monitor.Source)
	}
	if c.Monitor.Threshold < 0 {
		return fmt.Errorf("negative price threshold %v", c.Monitor.Threshold)
	}
	if c.RandomStart.Max < c.RandomStart.Min {
		return fmt.Errorf("random start max %d is smaller than min %d", c.RandomStart.Max, c.RandomStart.Min)
	}
	return nil
}
