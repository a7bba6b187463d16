package store

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] when the breaker refuses a call
// because the upstream has failed too many times in a row.
var ErrBreakerOpen = errors.New("store: breaker open")

// BreakerState is a circuit breaker's position.
type BreakerState int

const (
	// BreakerClosed lets all calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the reset timeout elapses.
	BreakerOpen
	// BreakerHalfOpen lets a limited number of probe calls through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero-value fields get defaults.
type BreakerConfig struct {
	// Name identifies the guarded upstream in log output.
	Name string
	// MaxFailures is the consecutive-failure count that opens the breaker.
	// Defaults to 5.
	MaxFailures int
	// ResetTimeout is how long an open breaker waits before probing the
	// upstream again. Defaults to 30s.
	ResetTimeout time.Duration
	// HalfOpenMax is how many probe calls a half-open breaker permits
	// before deciding. Defaults to 3.
	HalfOpenMax int
}

// Breaker is a three-state circuit breaker guarding a remote story source.
// Repeated fetch failures open it; after ResetTimeout it half-opens and
// probes, closing again once HalfOpenMax probes succeed.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu        sync.Mutex
	state     BreakerState
	failures  int
	openedAt  time.Time
	probes    int
	probeFail int
}

// NewBreaker creates a [Breaker] from cfg, filling in defaults for zero
// fields.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		state:        BreakerClosed,
	}
}

// Do runs fn if the breaker allows it, otherwise returns [ErrBreakerOpen]
// without calling fn.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case BreakerOpen:
		if time.Since(b.openedAt) < b.resetTimeout {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.state = BreakerHalfOpen
		b.probes = 0
		b.probeFail = 0
		slog.Info("story source breaker half-open", "source", b.name)
	case BreakerHalfOpen:
		if b.probes >= b.halfOpenMax {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
	}
	probing := b.state == BreakerHalfOpen
	if probing {
		b.probes++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.fail(probing)
	} else {
		b.ok(probing)
	}
	return err
}

// fail records a failed call. Caller holds b.mu.
func (b *Breaker) fail(probing bool) {
	b.openedAt = time.Now()
	if probing {
		b.probeFail++
		b.state = BreakerOpen
		b.failures = b.maxFailures
		slog.Warn("story source breaker re-opened", "source", b.name)
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.state = BreakerOpen
		slog.Warn("story source breaker opened",
			"source", b.name,
			"consecutive_failures", b.failures)
	}
}

// ok records a successful call. Caller holds b.mu.
func (b *Breaker) ok(probing bool) {
	if !probing {
		b.failures = 0
		return
	}
	if b.probes-b.probeFail >= b.halfOpenMax {
		b.state = BreakerClosed
		b.failures = 0
		b.probes = 0
		b.probeFail = 0
		slog.Info("story source breaker closed", "source", b.name)
	}
}

// State reports the breaker's position. An open breaker whose reset timeout
// has elapsed reports half-open; the actual transition happens on the next
// [Breaker.Do].
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && time.Since(b.openedAt) >= b.resetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.probes = 0
	b.probeFail = 0
}
