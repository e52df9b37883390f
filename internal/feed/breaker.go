package feed

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the position of the breaker.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("feed circuit breaker is open")

// Breaker trips open after a run of consecutive failures and lets a single
// trial call through once the open timeout has elapsed. Other callers are
// rejected while that trial is in flight.
type Breaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	trialing    bool
	openedAt    time.Time
	threshold   int
	openTimeout time.Duration
	now         func() time.Time
}

// NewBreaker returns a closed breaker.
func NewBreaker(threshold int, openTimeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if openTimeout <= 0 {
		openTimeout = time.Minute
	}
	return &Breaker{threshold: threshold, openTimeout: openTimeout, now: time.Now}
}

// State reports the current state, moving open to half-open when due.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentLocked()
}

func (b *Breaker) currentLocked() BreakerState {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.openTimeout {
		b.state = StateHalfOpen
	}
	return b.state
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	state := b.currentLocked()
	if state == StateOpen || (state == StateHalfOpen && b.trialing) {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	trial := state == StateHalfOpen
	if trial {
		b.trialing = true
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if trial {
		b.trialing = false
	}
	if err == nil {
		b.state = StateClosed
		b.failures = 0
		return nil
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.state = StateOpen
		b.openedAt = b.now()
		b.failures = 0
	}
	return err
}
