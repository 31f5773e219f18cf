// Package circuitbreaker stops resolution traffic to upstream hosts that keep
// failing. Each host gets its own HostBreaker; a Registry hands them out.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/alorle/iptv-playlist/logging"
	"github.com/alorle/iptv-playlist/metrics"
)

// State is the position of a breaker in its CLOSED -> OPEN -> HALF-OPEN cycle.
type State int

const (
	// StateClosed lets every request through.
	StateClosed State = iota
	// StateOpen rejects requests until the cool-down has passed.
	StateOpen
	// StateHalfOpen lets a limited number of trial requests through.
	StateHalfOpen
)

// String returns the label used in logs and metrics.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config tunes every breaker of a registry.
type Config struct {
	FailureThreshold int           // consecutive failures that open the circuit
	Timeout          time.Duration // cool-down before trial requests are allowed
	HalfOpenRequests int           // trial requests that must succeed to close again
	Logger           *logging.Logger
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HalfOpenRequests <= 0 {
		c.HalfOpenRequests = 1
	}
	if c.Logger == nil {
		c.Logger = logging.Discard()
	}
	return c
}

var (
	// ErrCircuitOpen is returned without calling the upstream while the host is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrHalfOpenLimitReached is returned when every trial slot is taken.
	ErrHalfOpenLimitReached = errors.New("circuit breaker half-open request limit reached")
)

// Stats is a point-in-time view of one host breaker.
type Stats struct {
	Host     string
	State    State
	Failures int // consecutive failures while CLOSED
	Rejected int // requests refused since the breaker was created
	LastErr  error
}

// HostBreaker guards the requests sent to one upstream host.
type HostBreaker struct {
	host string
	cfg  Config
	now  func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	trials    int
	successes int
	rejected  int
	openedAt  time.Time
	lastErr   error
}

// New creates a closed breaker for host.
func New(host string, cfg Config) *HostBreaker {
	b := &HostBreaker{
		host: host,
		cfg:  cfg.withDefaults(),
		now:  time.Now,
	}
	metrics.SetCircuitBreakerState(host, StateClosed.String())
	return b
}

// Host returns the upstream host this breaker guards.
func (b *HostBreaker) Host() string {
	return b.host
}

// Execute calls fn unless the host is open or out of trial slots. The
// outcome of fn feeds the breaker and is returned unchanged.
func (b *HostBreaker) Execute(fn func() error) error {
	trial, err := b.allow()
	if err != nil {
		return err
	}

	err = fn()
	b.record(trial, err)
	return err
}

// allow decides whether a request may go out. trial is true for requests
// admitted in HALF-OPEN.
func (b *HostBreaker) allow() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.Timeout {
		b.setState(StateHalfOpen)
	}

	switch b.state {
	case StateOpen:
		b.rejected++
		return false, ErrCircuitOpen
	case StateHalfOpen:
		if b.trials >= b.cfg.HalfOpenRequests {
			b.rejected++
			return false, ErrHalfOpenLimitReached
		}
		b.trials++
		return true, nil
	default:
		return false, nil
	}
}

func (b *HostBreaker) record(trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.lastErr = err
	}

	switch {
	case trial && err != nil:
		b.setState(StateOpen)
	case trial:
		b.successes++
		if b.successes >= b.cfg.HalfOpenRequests {
			b.setState(StateClosed)
		}
	case b.state != StateClosed:
		// A request admitted while CLOSED finished after another one changed
		// the state; its outcome no longer counts.
	case err != nil:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.setState(StateOpen)
		}
	default:
		b.failures = 0
	}
}

// State returns the current state.
func (b *HostBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the breaker.
func (b *HostBreaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Host:     b.host,
		State:    b.state,
		Failures: b.failures,
		Rejected: b.rejected,
		LastErr:  b.lastErr,
	}
}

// Reset closes the circuit and forgets past failures.
func (b *HostBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(StateClosed)
	b.failures = 0
}

// setState must be called with b.mu held.
func (b *HostBreaker) setState(next State) {
	if b.state == next {
		return
	}
	prev := b.state
	b.state = next
	b.trials = 0
	b.successes = 0

	switch next {
	case StateOpen:
		b.openedAt = b.now()
	case StateClosed:
		b.failures = 0
		b.openedAt = time.Time{}
	}

	b.cfg.Logger.LogCircuitBreakerChange(prev.String(), next.String(), b.host)
	metrics.SetCircuitBreakerState(b.host, next.String())
}
