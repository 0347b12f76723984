package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// fakeClock advances only when something sleeps on it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func Test_New(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		l, err := New(Config{Logger: logger.Test(t)})
		require.NoError(t, err)
		s := l.Stats()
		assert.Equal(t, 2500, s.HourlyLimit)
		assert.Equal(t, 2500, s.HourlyRemaining)
		assert.InDelta(t, 2500.0/3600, s.PerSecondLimit, 1e-9)
		assert.Zero(t, s.CallsThisHour)
		assert.True(t, s.LastCall.IsZero())
	})

	t.Run("rejects bad config", func(t *testing.T) {
		_, err := New(Config{CallsPerSecond: -1, CallsPerHour: -1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
		assert.Contains(t, err.Error(), "calls per second must not be negative")
		assert.Contains(t, err.Error(), "calls per hour must not be negative")
	})
}

func Test_Limiter_PerSecond(t *testing.T) {
	clock := newFakeClock()
	l, err := New(Config{Logger: logger.Test(t), CallsPerSecond: 10, CallsPerHour: 1000, Clock: clock})
	require.NoError(t, err)

	ctx := context.Background()
	var admitted []time.Time
	for range 5 {
		require.NoError(t, l.Acquire(ctx))
		admitted = append(admitted, clock.Now())
	}
	for i := 1; i < len(admitted); i++ {
		assert.GreaterOrEqual(t, admitted[i].Sub(admitted[i-1]), 100*time.Millisecond-time.Microsecond)
	}

	s := l.Stats()
	assert.Equal(t, 5, s.CallsThisHour)
	assert.Equal(t, 995, s.HourlyRemaining)
	assert.Equal(t, admitted[4], s.LastCall)
	assert.Zero(t, s.SinceLastCall)

	clock.Advance(3 * time.Second)
	assert.Equal(t, 3*time.Second, l.Stats().SinceLastCall)
}

func Test_Limiter_Hourly(t *testing.T) {
	clock := newFakeClock()
	l, err := New(Config{Logger: logger.Test(t), CallsPerSecond: 1000, CallsPerHour: 3, Clock: clock})
	require.NoError(t, err)

	ctx := context.Background()
	start := clock.Now()
	for range 3 {
		require.NoError(t, l.Acquire(ctx))
	}
	assert.Equal(t, 0, l.Stats().HourlyRemaining)

	require.NoError(t, l.Acquire(ctx))
	assert.GreaterOrEqual(t, clock.Now().Sub(start), time.Hour)

	s := l.Stats()
	// The first call has left the window.
	assert.Equal(t, 3, s.CallsThisHour)
	assert.Equal(t, 0, s.HourlyRemaining)
}

func Test_Limiter_WindowExpiry(t *testing.T) {
	clock := newFakeClock()
	l, err := New(Config{Logger: logger.Test(t), CallsPerSecond: 1000, CallsPerHour: 2, Clock: clock})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))

	clock.Advance(time.Hour)
	assert.Equal(t, 0, l.Stats().CallsThisHour)

	before := len(clock.sleeps)
	require.NoError(t, l.Acquire(ctx))
	assert.Len(t, clock.sleeps, before, "no wait once the window has rolled over")
}

func Test_Limiter_Cancelled(t *testing.T) {
	clock := newFakeClock()
	l, err := New(Config{Logger: logger.Test(t), CallsPerSecond: 1, CallsPerHour: 1, Clock: clock})
	require.NoError(t, err)

	require.NoError(t, l.Acquire(context.Background()))
	before := l.Stats()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = l.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, l.Stats())
}

func Test_Limiter_Concurrent(t *testing.T) {
	clock := newFakeClock()
	l, err := New(Config{Logger: logger.Test(t), CallsPerSecond: 10, CallsPerHour: 100, Clock: clock})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Acquire(context.Background()))
		}()
	}
	wg.Wait()

	s := l.Stats()
	assert.Equal(t, 20, s.CallsThisHour)
	// Nineteen paced gaps of 100ms each.
	assert.GreaterOrEqual(t, clock.Now().Sub(newFakeClock().Now()), 1900*time.Millisecond-time.Millisecond)
}

func Test_SystemClock(t *testing.T) {
	c := SystemClock()
	start := c.Now()
	require.NoError(t, c.Sleep(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, c.Sleep(ctx, time.Hour), context.Canceled)
}
