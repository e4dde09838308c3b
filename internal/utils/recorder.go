package utils

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/goodsign/monday"
)

// SleepRecorder records requested sleeps instead of sleeping and advances a
// fake clock accordingly.
type SleepRecorder struct {
	mu     sync.Mutex
	now    time.Time
	Sleeps []time.Duration
}

// NewRecordingToolkit returns a Toolkit whose clock starts at now and whose
// sleeps return immediately after being recorded. The random source is
// seeded deterministically.
func NewRecordingToolkit(now time.Time) (*Toolkit, *SleepRecorder) {
	rec := &SleepRecorder{now: now}
	tk := &Toolkit{
		Now:    rec.Now,
		Sleep:  rec.Sleep,
		Getenv: func(string) string { return "" },
		Rand:   rand.New(rand.NewPCG(1, 2)),
		Layout: DefaultTimeLayout,
		Locale: monday.LocaleZhCN,
	}
	return tk, rec
}

func (r *SleepRecorder) Now() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now
}

func (r *SleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sleeps = append(r.Sleeps, d)
	r.now = r.now.Add(d)
	return nil
}

// Advance moves the fake clock forward by d.
func (r *SleepRecorder) Advance(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = r.now.Add(d)
}

// Total returns the sum of all recorded sleeps.
func (r *SleepRecorder) Total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total time.Duration
	for _, d := range r.Sleeps {
		total += d
	}
	return total
}
