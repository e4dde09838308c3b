package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/qlhub/qlhub/internal/account"
	"github.com/qlhub/qlhub/internal/log"
	"github.com/qlhub/qlhub/internal/notify"
)

// NoAccountsMessage is sent when a task has nothing to do.
const NoAccountsMessage = "未获取到有效账号，请检查环境变量配置"

// Notifier is the part of notify.Notifier a task needs.
type Notifier interface {
	SendSuccess(ctx context.Context, script, message string) []notify.Result
	SendError(ctx context.Context, script, message string) []notify.Result
	SendWarning(ctx context.Context, script, message string) []notify.Result
}

// RandomStart delays the beginning of a run by a random number of seconds.
type RandomStart struct {
	Enabled bool `yaml:"enabled" env:"RANDOM_START_ENABLED" env-default:"true"`
	Min     int  `yaml:"min" env:"RANDOM_START_MIN" env-default:"0"`
	Max     int  `yaml:"max" env:"RANDOM_START_MAX" env-default:"1800"`
}

// Task runs one named script over its accounts and notifies the result.
type Task struct {
	Name        string
	Runner      *Runner
	Notifier    Notifier
	RandomStart RandomStart
	// Summary receives a table of the outcomes when set.
	Summary io.Writer
	// Extra adds task specific lines to the report.
	Extra func(*RunResult) []string
}

// Execute runs the task. Zero accounts result in a single error
// notification and an empty result.
func (t *Task) Execute(ctx context.Context, accounts []account.Account, pipeline Pipeline) (*RunResult, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("task", t.Name))
	ctx = log.ContextWithLogger(ctx, logger)
	tk := t.Runner.Toolkit

	if len(accounts) == 0 {
		logger.Error("no valid accounts, nothing to do")
		t.Notifier.SendError(ctx, t.Name, NoAccountsMessage)
		return &RunResult{Outcomes: []Outcome{}}, nil
	}

	logger.Info(fmt.Sprintf("starting %s with %d account(s)", t.Name, len(accounts)))
	if _, err := tk.RandomStartDelay(ctx, t.RandomStart.Enabled, t.RandomStart.Min, t.RandomStart.Max); err != nil {
		return nil, err
	}

	result, err := t.Runner.Run(ctx, accounts, pipeline)
	if err != nil {
		return result, err
	}

	var extra []string
	if t.Extra != nil {
		extra = t.Extra(result)
	}
	report := result.Report(t.Name, tk, extra...)
	logger.Info("\n" + report)
	if t.Summary != nil {
		if err := result.PrintSummary(t.Summary); err != nil {
			logger.Warn(fmt.Sprintf("failed to print summary: %v", err))
		}
	}

	switch result.Level() {
	case LevelSuccess:
		t.Notifier.SendSuccess(ctx, t.Name, report)
	case LevelWarning:
		t.Notifier.SendWarning(ctx, t.Name, report)
	default:
		t.Notifier.SendError(ctx, t.Name, report)
	}
	logger.Info(fmt.Sprintf("%s finished: %d succeeded, %d failed", t.Name, result.Succeeded, result.Failed))
	return result, nil
}
