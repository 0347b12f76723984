// Package ratelimit paces calls to the regulator's REST service. It combines a
// minimum spacing between consecutive calls with a rolling one hour quota.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

const (
	// DefaultCallsPerHour is the regulator's published hourly quota.
	DefaultCallsPerHour = 2500
	// DefaultCallsPerSecond spreads the hourly quota evenly over the hour.
	DefaultCallsPerSecond = float64(DefaultCallsPerHour) / 3600

	window = time.Hour
)

const (
	waitHourly    = "hourly"
	waitPerSecond = "per_second"
)

var (
	promWaitCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ffiec",
		Subsystem: "ratelimit",
		Name:      "wait_count",
		Help:      "Number of times a caller had to wait for the rate limiter",
	},
		[]string{"reason"},
	)
	promWaitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ffiec",
		Subsystem: "ratelimit",
		Name:      "wait_duration_seconds",
		Help:      "Time callers spent waiting for the rate limiter",
		Buckets: []float64{
			0.1, 0.5, 1, 2, 5, 30, 60, 300, 900, 3600,
		},
	},
		[]string{"reason"},
	)
	promAcquired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ffiec",
		Subsystem: "ratelimit",
		Name:      "acquired_count",
		Help:      "Number of calls admitted by the rate limiter",
	})
)

type Config struct {
	Logger logger.Logger
	// CallsPerSecond bounds the spacing between consecutive calls. Zero means
	// DefaultCallsPerSecond.
	CallsPerSecond float64
	// CallsPerHour bounds the number of calls in any rolling hour. Zero means
	// DefaultCallsPerHour.
	CallsPerHour int
	// Clock defaults to the system clock.
	Clock Clock
}

func (c *Config) verifyConfig() error {
	var errs []error

	if c.Logger == nil {
		errs = append(errs, fmt.Errorf("logger is required for rate limiter"))
	}
	if c.CallsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("calls per second must not be negative, got %v", c.CallsPerSecond))
	}
	if c.CallsPerHour < 0 {
		errs = append(errs, fmt.Errorf("calls per hour must not be negative, got %d", c.CallsPerHour))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid rate limiter configuration: %v", errs)
	}

	return nil
}

// Stats is a snapshot of the limiter's accounting.
type Stats struct {
	CallsThisHour   int
	HourlyLimit     int
	HourlyRemaining int
	PerSecondLimit  float64
	// LastCall is zero when no call has been admitted yet.
	LastCall      time.Time
	SinceLastCall time.Duration
}

// Limiter admits calls at most CallsPerSecond apart and at most CallsPerHour
// within any rolling hour. Acquire is serialized: concurrent callers wait in
// turn, so no two callers are admitted inside the same interval.
type Limiter struct {
	lggr  logger.SugaredLogger
	clock Clock

	perSecond float64
	perHour   int

	// acquireMu serializes callers across their waits; mu guards the
	// accounting so Stats never blocks behind a waiting caller.
	acquireMu sync.Mutex
	pacer     *rate.Limiter

	mu      sync.Mutex
	calls   []time.Time // admitted calls within the last hour, oldest first
	lastRun time.Time
}

func New(cfg Config) (*Limiter, error) {
	if err := cfg.verifyConfig(); err != nil {
		return nil, err
	}
	if cfg.CallsPerSecond == 0 {
		cfg.CallsPerSecond = DefaultCallsPerSecond
	}
	if cfg.CallsPerHour == 0 {
		cfg.CallsPerHour = DefaultCallsPerHour
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	return &Limiter{
		lggr:      logger.Sugared(cfg.Logger).Named("RateLimiter"),
		clock:     cfg.Clock,
		perSecond: cfg.CallsPerSecond,
		perHour:   cfg.CallsPerHour,
		pacer:     rate.NewLimiter(rate.Limit(cfg.CallsPerSecond), 1),
	}, nil
}

// Acquire blocks until one more call may be made and records it. If ctx is
// done while waiting, ctx.Err() is returned and nothing is recorded.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.acquireMu.Lock()
	defer l.acquireMu.Unlock()

	now := l.clock.Now()
	if oldest, n, full := l.quotaFull(now); full {
		wait := oldest.Add(window).Sub(now)
		l.lggr.Infow("Hourly quota reached; waiting for the oldest call to leave the window",
			"callsThisHour", n, "hourlyLimit", l.perHour, "wait", wait)
		if err := l.sleep(ctx, wait, waitHourly); err != nil {
			return err
		}
		now = l.clock.Now()
	}

	r := l.pacer.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("rate limiter cannot admit a call at %v calls per second", l.perSecond)
	}
	if delay := r.DelayFrom(now); delay > 0 {
		if err := l.sleep(ctx, delay, waitPerSecond); err != nil {
			r.CancelAt(l.clock.Now())
			return err
		}
	}

	l.record(l.clock.Now())
	promAcquired.Inc()
	return nil
}

// quotaFull prunes the window and reports whether the hourly quota is used
// up, along with the oldest call still inside the window.
func (l *Limiter) quotaFull(now time.Time) (oldest time.Time, n int, full bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(now)
	if len(l.calls) < l.perHour {
		return time.Time{}, len(l.calls), false
	}
	// Only the calls beyond the quota need to age out.
	return l.calls[len(l.calls)-l.perHour], len(l.calls), true
}

func (l *Limiter) record(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(now)
	l.calls = append(l.calls, now)
	l.lastRun = now
}

func (l *Limiter) sleep(ctx context.Context, d time.Duration, reason string) error {
	promWaitCount.WithLabelValues(reason).Inc()
	start := l.clock.Now()
	err := l.clock.Sleep(ctx, d)
	promWaitDuration.WithLabelValues(reason).Observe(l.clock.Now().Sub(start).Seconds())
	if err != nil {
		l.lggr.Debugw("Rate limiter wait interrupted", "reason", reason, "err", err)
	}
	return err
}

// prune drops calls that are at least an hour old. Callers hold mu.
func (l *Limiter) prune(now time.Time) {
	i := 0
	for i < len(l.calls) && now.Sub(l.calls[i]) >= window {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

// Stats reports the current accounting without admitting a call.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.prune(now)
	s := Stats{
		CallsThisHour:   len(l.calls),
		HourlyLimit:     l.perHour,
		HourlyRemaining: max(l.perHour-len(l.calls), 0),
		PerSecondLimit:  l.perSecond,
		LastCall:        l.lastRun,
	}
	if !l.lastRun.IsZero() {
		s.SinceLastCall = now.Sub(l.lastRun)
	}
	return s
}
