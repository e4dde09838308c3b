// Package notify delivers one message to every configured notification
// channel at once. A failing channel never affects its siblings or the
// caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/qlhub/qlhub/internal/log"
	"golang.org/x/sync/errgroup"
)

const DefaultTitle = "QL Script Hub"

// Message is what a channel delivers. Options carries channel specific
// extras such as the bark sound or the pushplus template.
type Message struct {
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Options map[string]string `json:"options,omitempty"`
}

// Channel is a single notification target.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Result marks a channel that delivered the message.
type Result struct {
	Channel string `json:"channel"`
	Success bool   `json:"success"`
}

// Notifier fans a message out to its channels.
type Notifier struct {
	enabled  bool
	title    string
	channels []Channel
}

// New returns a Notifier sending to the given channels.
func New(title string, enabled bool, channels ...Channel) *Notifier {
	if title == "" {
		title = DefaultTitle
	}
	return &Notifier{
		enabled:  enabled,
		title:    title,
		channels: channels,
	}
}

// NewFromConfig builds a Notifier with every active channel of cfg. title is
// used when cfg does not set one.
func NewFromConfig(cfg *Config, title string) *Notifier {
	if cfg.Title != "" {
		title = cfg.Title
	}
	client := &http.Client{Timeout: cfg.Timeout}
	channels := []Channel{}
	if cfg.Bark.Key != "" && !cfg.Bark.Disabled {
		channels = append(channels, NewBark(cfg.Bark, client))
	}
	if cfg.ServerChan.Key != "" && !cfg.ServerChan.Disabled {
		channels = append(channels, NewServerChan(cfg.ServerChan, client))
	}
	if cfg.PushPlus.Token != "" && !cfg.PushPlus.Disabled {
		channels = append(channels, NewPushPlus(cfg.PushPlus, client))
	}
	if cfg.DingTalk.Webhook != "" && !cfg.DingTalk.Disabled {
		channels = append(channels, NewDingTalk(cfg.DingTalk, client))
	}
	if cfg.WeCom.CorpID != "" && cfg.WeCom.CorpSecret != "" && !cfg.WeCom.Disabled {
		channels = append(channels, NewWeCom(cfg.WeCom, client))
	}
	if cfg.Webhook.URL != "" && !cfg.Webhook.Disabled {
		channels = append(channels, NewWebhook(cfg.Webhook, client))
	}
	if cfg.File.Path != "" {
		channels = append(channels, NewFile(cfg.File))
	}
	if cfg.Stdout.Enabled {
		channels = append(channels, NewStdout())
	}
	return New(title, cfg.Enabled, channels...)
}

// Channels returns the names of the active channels.
func (n *Notifier) Channels() []string {
	names := make([]string, 0, len(n.channels))
	for _, c := range n.channels {
		names = append(names, c.Name())
	}
	return names
}

// Send delivers message to all channels concurrently and waits for all of
// them. It returns the channels that succeeded. Failures are logged, never
// returned.
func (n *Notifier) Send(ctx context.Context, message, title string, opts map[string]string) []Result {
	logger := log.LoggerFromContext(ctx).With(slog.String("component", "notify"))
	if !n.enabled {
		logger.Debug("notifications are disabled")
		return nil
	}
	if title == "" {
		title = n.title
	}
	msg := Message{Title: title, Body: message, Options: opts}

	delivered := make([]bool, len(n.channels))
	var g errgroup.Group
	for i, c := range n.channels {
		g.Go(func() error {
			if err := dispatch(ctx, c, msg); err != nil {
				logger.Error(fmt.Sprintf("%v", err), slog.String("channel", c.Name()))
				return nil
			}
			logger.Debug("notification delivered", slog.String("channel", c.Name()))
			delivered[i] = true
			return nil
		})
	}
	_ = g.Wait() // channel goroutines never return an error

	results := []Result{}
	for i, ok := range delivered {
		if ok {
			results = append(results, Result{Channel: n.channels[i].Name(), Success: true})
		}
	}
	if len(results) > 0 {
		logger.Info(fmt.Sprintf("notification sent via %d channel(s)", len(results)))
	} else {
		logger.Error("notification could not be sent on any channel", slog.Int("channels", len(n.channels)))
	}
	return results
}

func dispatch(ctx context.Context, c Channel, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = sendFailed(c.Name(), "panic: %v", r)
		}
	}()
	return c.Send(ctx, msg)
}

// SendSuccess sends message titled as a successful run of script.
func (n *Notifier) SendSuccess(ctx context.Context, script, message string) []Result {
	return n.Send(ctx, message, fmt.Sprintf("✅ %s 执行成功", script), nil)
}

// SendError sends message titled as a failed run of script.
func (n *Notifier) SendError(ctx context.Context, script, message string) []Result {
	return n.Send(ctx, message, fmt.Sprintf("❌ %s 执行失败", script), nil)
}

// SendWarning sends message titled as a run of script with warnings.
func (n *Notifier) SendWarning(ctx context.Context, script, message string) []Result {
	return n.Send(ctx, message, fmt.Sprintf("⚠️ %s 执行警告", script), nil)
}
