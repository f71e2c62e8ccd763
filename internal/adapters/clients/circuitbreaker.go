package clients

import (
	"sync"
	"time"
)

// State is a circuit breaker state.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota

	// StateOpen rejects calls until the open timeout elapses.
	StateOpen

	// StateHalfOpen admits a few probe calls to test recovery.
	StateHalfOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}

	return stateNames[s]
}

// CircuitBreakerConfig configures a CircuitBreaker. Values below one are
// raised to one.
type CircuitBreakerConfig struct {
	// MaxFailures consecutive failures open the circuit.
	MaxFailures int

	// Timeout is how long an open circuit rejects calls.
	Timeout time.Duration

	// HalfOpenLimit is both the number of concurrent probes and the number
	// of consecutive probe successes needed to close again.
	HalfOpenLimit int

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// CircuitBreaker stops calling a failing upstream. For the paid market data
// API it also stops spending quota on calls that are likely to fail.
//
//	closed    -> open       MaxFailures consecutive failures
//	open      -> half-open  first Allow after Timeout
//	half-open -> closed     HalfOpenLimit consecutive successes
//	half-open -> open       any failure
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	probes    int
	openedAt  time.Time
	onChange  func(from, to State)
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cfg.MaxFailures = max(cfg.MaxFailures, 1)
	cfg.HalfOpenLimit = max(cfg.HalfOpenLimit, 1)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &CircuitBreaker{cfg: cfg, now: now}
}

// OnStateChange registers fn to run on its own goroutine after every transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	cb.onChange = fn
	cb.mu.Unlock()
}

// Allow reports whether a call may proceed. Callers that get true must
// report the outcome with RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.Timeout {
			return false
		}

		cb.setState(StateHalfOpen)
		cb.probes = 1

		return true
	case StateHalfOpen:
		if cb.probes >= cb.cfg.HalfOpenLimit {
			return false
		}

		cb.probes++

		return true
	}

	return false
}

// RecordSuccess reports a call that reached the upstream and got an answer.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.probes--
		cb.successes++

		if cb.successes >= cb.cfg.HalfOpenLimit {
			cb.setState(StateClosed)
		}
	}
}

// RecordFailure reports a failed call. A failed probe reopens at once.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++

		if cb.failures >= cb.cfg.MaxFailures {
			cb.open()
		}
	case StateHalfOpen:
		cb.probes--
		cb.open()
	case StateOpen:
		// A call admitted just before the circuit opened; keep the window.
	}
}

// State returns the current state. An open circuit whose timeout has passed
// still reports open until the next Allow.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// RetryAfter returns how long an open circuit keeps rejecting calls, and
// false when the circuit is not open.
func (cb *CircuitBreaker) RetryAfter() (time.Duration, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return 0, false
	}

	return max(cb.cfg.Timeout-cb.now().Sub(cb.openedAt), 0), true
}

// open moves to StateOpen and starts the timeout. Callers hold mu.
func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.now()
	cb.setState(StateOpen)
}

// setState resets the counters on every transition. Callers hold mu.
func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}

	cb.state = to
	cb.failures = 0
	cb.successes = 0

	if to != StateHalfOpen {
		cb.probes = 0
	}

	if fn := cb.onChange; fn != nil {
		go fn(from, to)
	}
}
