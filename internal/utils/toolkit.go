package utils

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/goodsign/monday"
	"github.com/qlhub/qlhub/internal/log"
)

const DefaultTimeLayout = "2006-01-02 15:04:05"

// Toolkit bundles the clock, sleeper, random source and environment lookups
// the tasks need. Components receive it explicitly so tests can swap any of
// them.
type Toolkit struct {
	Now    func() time.Time
	Sleep  func(ctx context.Context, d time.Duration) error
	Getenv func(key string) string
	Rand   *rand.Rand
	Layout string
	Locale monday.Locale
}

// NewToolkit returns a Toolkit backed by the real clock and environment.
func NewToolkit() *Toolkit {
	return &Toolkit{
		Now:    time.Now,
		Sleep:  sleep,
		Getenv: os.Getenv,
		Rand:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		Layout: DefaultTimeLayout,
		Locale: monday.LocaleZhCN,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait suspends for d.
func (t *Toolkit) Wait(ctx context.Context, d time.Duration) error {
	return t.Sleep(ctx, d)
}

// RandomDuration draws a uniformly distributed duration from [min, max].
// If max is not greater than min, min is returned.
func (t *Toolkit) RandomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(t.Rand.Int64N(int64(max-min)+1))
}

// RandomWait suspends for a random duration in [min, max].
func (t *Toolkit) RandomWait(ctx context.Context, min, max time.Duration) error {
	return t.Sleep(ctx, t.RandomDuration(min, max))
}

// RandomStartDelay suspends once for a whole number of seconds drawn from
// [minSec, maxSec] so that independent deployments do not hit a site at the
// same instant. A misconfigured range (min >= max) skips the delay.
func (t *Toolkit) RandomStartDelay(ctx context.Context, enabled bool, minSec, maxSec int) (time.Duration, error) {
	if !enabled {
		return 0, nil
	}
	logger := log.LoggerFromContext(ctx)
	if minSec >= maxSec {
		logger.Warn("random start delay misconfigured, skipping", slog.Int("min", minSec), slog.Int("max", maxSec))
		return 0, nil
	}
	delay := time.Duration(minSec+t.Rand.IntN(maxSec-minSec+1)) * time.Second
	if delay <= 0 {
		return 0, nil
	}
	logger.Info(fmt.Sprintf("random start delay %s, expected start at %s", delay, t.FormatTime(t.Now().Add(delay))))
	return delay, t.Sleep(ctx, delay)
}

// FormatTime formats tm with the toolkit's layout and locale.
func (t *Toolkit) FormatTime(tm time.Time) string {
	layout := t.Layout
	if layout == "" {
		layout = DefaultTimeLayout
	}
	return monday.Format(tm, layout, t.Locale)
}

// Timestamp formats the current time.
func (t *Toolkit) Timestamp() string {
	return t.FormatTime(t.Now())
}

// GetEnv returns the value of key, or def when it is unset or empty.
func (t *Toolkit) GetEnv(key, def string) string {
	if v := t.Getenv(key); v != "" {
		return v
	}
	return def
}
