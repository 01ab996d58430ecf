package devkit

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-launcher/core"
)

// RecordingSleeper records requested durations and returns immediately.
// A non-nil Advance is called with each duration, which lets tests move a
// fake clock forward.
type RecordingSleeper struct {
	mu      sync.Mutex
	sleeps  []time.Duration
	Advance func(time.Duration)
}

func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	advance := s.Advance
	s.mu.Unlock()
	if advance != nil {
		advance(d)
	}
	return nil
}

func (s *RecordingSleeper) Sleeps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.sleeps...)
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var _ core.Sleeper = (*RecordingSleeper)(nil)
