// Package runner drives a task through all its accounts, one after the
// other, and reports the aggregated result.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/qlhub/qlhub/internal/account"
	"github.com/qlhub/qlhub/internal/log"
	"github.com/qlhub/qlhub/internal/utils"
)

var (
	// ErrPipelineDefect is returned when a pipeline panics. Pipelines are
	// expected to turn every failure into a Failure outcome.
	ErrPipelineDefect = errors.New("pipeline defect")
	ErrBookkeeping    = errors.New("run bookkeeping defect")
)

const DefaultDelay = 3 * time.Second

// Pipeline processes a single account. It must not panic.
type Pipeline func(ctx context.Context, acc account.Account) Outcome

// Runner executes a pipeline for every account sequentially.
type Runner struct {
	// Delay is the pause between two accounts.
	Delay time.Duration
	// JitterMax, when greater than Delay, makes the pause a random duration
	// in [Delay, JitterMax].
	JitterMax time.Duration
	Toolkit   *utils.Toolkit
}

func New(tk *utils.Toolkit) *Runner {
	return &Runner{Delay: DefaultDelay, Toolkit: tk}
}

// Run processes accounts in order. It only returns an error for defects:
// a panicking pipeline or broken bookkeeping. The partial result is
// returned along with the error.
func (r *Runner) Run(ctx context.Context, accounts []account.Account, pipeline Pipeline) (*RunResult, error) {
	logger := log.LoggerFromContext(ctx)
	result := &RunResult{Total: len(accounts), Outcomes: []Outcome{}}

	for i, acc := range accounts {
		accLogger := logger.With(slog.String("account", acc.Remark))
		accLogger.Info(fmt.Sprintf("processing account %d/%d", i+1, len(accounts)))

		outcome, err := r.invoke(log.ContextWithLogger(ctx, accLogger), acc, pipeline)
		if err != nil {
			return result, err
		}
		if err := result.record(outcome); err != nil {
			return result, err
		}
		if outcome.Status == Success {
			accLogger.Info(fmt.Sprintf("account done: %s", outcome.Message))
		} else {
			accLogger.Error(fmt.Sprintf("account failed: %s", outcome.Error))
		}

		if i < len(accounts)-1 {
			delay := r.Toolkit.RandomDuration(r.Delay, r.JitterMax)
			accLogger.Debug(fmt.Sprintf("waiting %s before the next account", delay))
			if err := r.Toolkit.Wait(ctx, delay); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

func (r *Runner) invoke(ctx context.Context, acc account.Account, pipeline Pipeline) (o Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: account %s: %v", ErrPipelineDefect, acc.Remark, rec)
		}
	}()
	return pipeline(ctx, acc), nil
}
