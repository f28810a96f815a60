package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker refuses calls.
var ErrOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Breaker guards a single remote target. After threshold consecutive
// failures it fails fast until cooldown has passed; the next call then
// probes the target (half-open) and either closes the breaker again or
// reopens it. A fast failure still surfaces as an error to the caller,
// it just skips the doomed network round trip.
type Breaker struct {
	mu                  sync.Mutex
	state               state
	consecutiveFailures int
	openedAt            time.Time

	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// New builds a breaker. threshold <= 0 disables it entirely: Allow always
// passes and the record calls do nothing.
func New(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func (b *Breaker) Allow() error {
	if b == nil || b.threshold <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = stateHalfOpen
			return nil
		}
		return ErrOpen
	case stateHalfOpen:
		// One probe at a time; further callers wait for its verdict.
		return ErrOpen
	default:
		return nil
	}
}

func (b *Breaker) RecordSuccess() {
	if b == nil || b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.consecutiveFailures = 0
}

func (b *Breaker) RecordFailure() {
	if b == nil || b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures++
	if b.consecutiveFailures >= b.threshold {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}
