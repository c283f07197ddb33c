// Package circuit stops calling a failing dependency for a while after
// repeated failures.
package circuit

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

type Breaker struct {
	mu           sync.Mutex
	name         string
	state        State
	failureCount int
	threshold    int
	resetTimeout time.Duration
	lastFailure  time.Time

	log logrus.FieldLogger
	now func() time.Time
}

// New returns a closed breaker that opens after threshold consecutive
// failures and lets a probe through once resetTimeout has passed.
func New(name string, threshold int, resetTimeout time.Duration, log logrus.FieldLogger) *Breaker {
	if threshold <= 0 {
		threshold = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Breaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		log:          log.WithField("breaker", name),
		now:          time.Now,
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn unless the breaker is open. Errors from fn count as failures.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if b.now().Sub(b.lastFailure) <= b.resetTimeout {
			b.mu.Unlock()
			return ErrOpen
		}
		b.log.Info("circuit half-open")
		b.state = StateHalfOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failureCount++
		b.lastFailure = b.now()
		if b.state == StateHalfOpen || b.failureCount >= b.threshold {
			if b.state != StateOpen {
				b.log.WithField("failures", b.failureCount).Warn("circuit open")
			}
			b.state = StateOpen
		}
		return err
	}

	if b.state == StateHalfOpen {
		b.log.Info("circuit closed")
	}
	b.state = StateClosed
	b.failureCount = 0
	return nil
}
