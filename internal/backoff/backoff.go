// Package backoff retries transiently-failing operations with exponential
// delays, optional jitter and cooperative cancellation.
package backoff

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

var (
	// ErrAlreadyExecuting is returned when Execute is called while another
	// Execute is in flight on the same scheduler.
	ErrAlreadyExecuting = errors.New("backoff: already executing")

	// ErrAborted is returned when the operation was cancelled before it
	// could succeed.
	ErrAborted = errors.New("backoff: operation aborted")
)

// Config defines retry behavior.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultConfig returns the connector defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 10,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Jitter:      true,
	}
}

// OnRetry is notified before each wait, for observability only. It must not
// affect scheduling.
type OnRetry func(attempt int, delay time.Duration, err error)

// Scheduler runs one retryable operation at a time. A second concurrent
// Execute on the same instance fails fast rather than starting a parallel
// attempt chain.
type Scheduler struct {
	cfg Config
	rng *rand.Rand

	mu        sync.Mutex
	executing bool
	attempt   int
	cancel    chan struct{}
}

// New creates a scheduler. Non-positive config fields fall back to the
// defaults.
func New(cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	return &Scheduler{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cancel: make(chan struct{}),
	}
}

// Delay returns the wait before retrying after the nth failure (1-based):
// min(base * 2^(n-1), max), plus a uniform random amount in [0, 0.25*delay]
// when jitter is enabled.
func (s *Scheduler) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(s.cfg.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(s.cfg.MaxDelay) {
		delay = float64(s.cfg.MaxDelay)
	}
	if s.cfg.Jitter {
		s.mu.Lock()
		f := s.rng.Float64()
		s.mu.Unlock()
		delay += f * 0.25 * delay
	}
	return time.Duration(delay)
}

// Attempt returns the current attempt count.
func (s *Scheduler) Attempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// Execute runs op until it succeeds, the attempt cap is reached, or the
// scheduler is cancelled. After the cap, the last error from op is surfaced
// unchanged; cancellation surfaces ErrAborted (or the context error). An
// in-progress wait resolves promptly on cancellation rather than running to
// its full delay.
func (s *Scheduler) Execute(ctx context.Context, op func(ctx context.Context) error, onRetry OnRetry) error {
	s.mu.Lock()
	if s.executing {
		s.mu.Unlock()
		return ErrAlreadyExecuting
	}
	s.executing = true
	s.attempt = 0
	cancel := s.cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.executing = false
		s.mu.Unlock()
	}()

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		select {
		case <-cancel:
			return ErrAborted
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.mu.Lock()
		s.attempt = attempt
		s.mu.Unlock()

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == s.cfg.MaxAttempts {
			break
		}

		delay := s.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-cancel:
			timer.Stop()
			return ErrAborted
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return lastErr
}

// Cancel aborts the in-flight Execute, resolving any pending wait
// immediately, and prevents subsequently-scheduled retries from firing.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.cancel:
	default:
		close(s.cancel)
	}
}

// Reset clears the attempt count and re-arms a cancelled scheduler for a
// fresh connection lifecycle.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt = 0
	select {
	case <-s.cancel:
		s.cancel = make(chan struct{})
	default:
	}
}
