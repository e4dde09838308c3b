package notify

import "time"

// Config defines the notification channels of a task. Values will be taken
// from the config yaml file or environment variables or both. A channel is
// active as soon as its credential is configured unless it is explicitly
// disabled.
type Config struct {
	Enabled    bool             `yaml:"enabled" env:"NOTIFY_ENABLED" env-default:"true"`
	Title      string           `yaml:"title" env:"NOTIFY_TITLE"`
	Timeout    time.Duration    `yaml:"timeout" env:"NOTIFY_TIMEOUT" env-default:"10s"`
	Bark       BarkConfig       `yaml:"bark"`
	ServerChan ServerChanConfig `yaml:"serverchan"`
	PushPlus   PushPlusConfig   `yaml:"pushplus"`
	DingTalk   DingTalkConfig   `yaml:"dingtalk"`
	WeCom      WeComConfig      `yaml:"wecom"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	File       FileConfig       `yaml:"file"`
	Stdout     StdoutConfig     `yaml:"stdout"`
}

type BarkConfig struct {
	Disabled bool   `yaml:"disabled"`
	Key      string `yaml:"key" env:"BARK_KEY"`
	URL      string `yaml:"url" env:"BARK_URL" env-default:"https://api.day.app"`
	Sound    string `yaml:"sound" env:"BARK_SOUND"`
}

type ServerChanConfig struct {
	Disabled bool   `yaml:"disabled"`
	Key      string `yaml:"key" env:"SERVERCHAN_KEY"`
	URL      string `yaml:"url" env:"SERVERCHAN_URL" env-default:"https://sctapi.ftqq.com"`
}

type PushPlusConfig struct {
	Disabled bool   `yaml:"disabled"`
	Token    string `yaml:"token" env:"PUSHPLUS_TOKEN"`
	URL      string `yaml:"url" env:"PUSHPLUS_URL" env-default:"http://www.pushplus.plus/send"`
}

type DingTalkConfig struct {
	Disabled bool   `yaml:"disabled"`
	Webhook  string `yaml:"webhook" env:"DINGTALK_WEBHOOK"`
	Secret   string `yaml:"secret" env:"DINGTALK_SECRET"` // optional signing secret
}

type WeComConfig struct {
	Disabled   bool   `yaml:"disabled"`
	CorpID     string `yaml:"corpid" env:"WECOM_CORPID"`
	CorpSecret string `yaml:"corpsecret" env:"WECOM_CORPSECRET"`
	AgentID    string `yaml:"agentid" env:"WECOM_AGENTID"`
	ToUser     string `yaml:"touser" env:"WECOM_TOUSER" env-default:"@all"`
	URL        string `yaml:"url" env:"WECOM_URL" env-default:"https://qyapi.weixin.qq.com"`
}

// WebhookConfig configures a generic JSON webhook. User and Password are
// used for basic auth when set.
type WebhookConfig struct {
	Disabled bool   `yaml:"disabled"`
	URL      string `yaml:"url" env:"WEBHOOK_URL"`
	User     string `yaml:"user" env:"WEBHOOK_USER"`         // we want to be able to pass credentials via env vars
	Password string `yaml:"password" env:"WEBHOOK_PASSWORD"` // we want to be able to pass credentials via env vars
}

type FileConfig struct {
	Path string `yaml:"path" env:"NOTIFY_FILE"`
}

type StdoutConfig struct {
	Enabled bool `yaml:"enabled" env:"NOTIFY_STDOUT"`
}
