package redis

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker is rejecting writes.
// The BufferedWriter treats it as "buffer locally", not as data loss.
var ErrCircuitOpen = errors.New("redis circuit open")

// State is the breaker's position. The numeric values are exported as a
// Prometheus gauge, so they are fixed: closed=0, open=1, half-open=2.
type State int

const (
	StateClosed   State = 0
	StateOpen     State = 1
	StateHalfOpen State = 2
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

// CircuitBreaker guards the Redis result path. Every result batch flows
// through Execute; after maxFailures consecutive failed writes the
// breaker opens and callers get ErrCircuitOpen without touching Redis,
// so a dead connection costs a mutex acquire per batch instead of a
// dial timeout. Once resetTimeout has passed a single probe write is
// admitted: if it lands the breaker closes and buffered batches flush,
// if it fails the open window restarts.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       State
	consecFails int
	openedAt    time.Time
	probing     bool

	maxFailures  int
	resetTimeout time.Duration

	// OnStateChange, if set, observes every transition. The service
	// hangs its state gauge and trip counter here; the BufferedWriter
	// chains its flush-on-close behind it.
	OnStateChange func(from, to State)
}

// NewCircuitBreaker creates a closed breaker that trips after
// maxFailures consecutive errors and probes again after resetTimeout.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
	}
}

// Execute runs fn if the breaker admits the call, and feeds the outcome
// back into the failure accounting. Returns ErrCircuitOpen without
// invoking fn while the breaker is rejecting.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.settle(err)
	return err
}

// admit decides whether a call may proceed. In the half-open state only
// the first caller becomes the probe; everyone else is rejected until
// the probe settles.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) <= cb.resetTimeout {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probing = true
	case StateHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	return nil
}

// settle records a call outcome and drives the state machine.
func (cb *CircuitBreaker) settle(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.probing = false
		if err != nil {
			cb.openedAt = time.Now()
			cb.transition(StateOpen)
		} else {
			cb.transition(StateClosed)
		}
		return
	}

	if err != nil {
		cb.consecFails++
		if cb.state == StateClosed && cb.consecFails >= cb.maxFailures {
			cb.openedAt = time.Now()
			cb.transition(StateOpen)
		}
		return
	}
	cb.consecFails = 0
}

// CurrentState returns the breaker's position.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the running failure count, for
// diagnostics. Resets on any successful write.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecFails
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if to == StateClosed {
		cb.consecFails = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}
