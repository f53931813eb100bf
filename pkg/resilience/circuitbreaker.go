package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"mindcare/backend/pkg/logger"
)

// ErrCircuitOpen is returned by Execute while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit open")

// State is the position of a circuit breaker.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	Name string
	// FailureThreshold consecutive failures open a closed circuit.
	FailureThreshold uint
	// SuccessThreshold probe successes close a half-open circuit.
	SuccessThreshold uint
	// Timeout bounds each call; zero means no bound.
	Timeout time.Duration
	// RetryTimeout is how long the circuit stays open before probing.
	RetryTimeout time.Duration
	// OnStateChange, when set, is called after every transition while the
	// breaker's lock is held. It must not call back into the breaker.
	OnStateChange func(name string, from, to State)
}

// DefaultCircuitBreakerConfig returns a default circuit breaker configuration
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          10 * time.Second,
		RetryTimeout:     60 * time.Second,
	}
}

// Stats is a point-in-time view of a breaker's counters.
type Stats struct {
	Name        string
	State       State
	Requests    uint64
	Failures    uint64
	Successes   uint64
	Rejected    uint64
	Opened      uint64
	LastFailure time.Time
}

// CircuitBreaker stops calling a failing dependency for RetryTimeout once
// FailureThreshold consecutive calls have failed.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	log *logger.Logger
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  uint // consecutive, while closed
	probes    uint // successes while half-open
	reopensAt time.Time
	stats     Stats
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig, log *logger.Logger) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		cfg:   config,
		log:   log.WithComponent("circuit_breaker").WithFields("breaker", config.Name),
		now:   time.Now,
		state: StateClosed,
		stats: Stats{Name: config.Name},
	}
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string {
	return cb.cfg.Name
}

// Execute runs fn through the circuit breaker. fn gets a context bounded by
// the configured Timeout; ErrCircuitOpen is returned without calling fn while
// the circuit is open. A failure caused by the caller cancelling ctx is not
// held against the dependency.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.admit() {
		cb.log.Warn("Circuit breaker rejected call", "state", string(cb.GetState()))
		return ErrCircuitOpen
	}

	callCtx := ctx
	if cb.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, cb.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(callCtx)

	switch {
	case err == nil:
		cb.onSuccess()
		cb.log.Debug("Call succeeded", "duration", time.Since(start).String())
	case ctx.Err() != nil:
		cb.log.Debug("Call abandoned by caller", "error", err.Error())
	default:
		cb.onFailure()
		cb.log.Warn("Call failed", "error", err.Error(), "duration", time.Since(start).String())
	}
	return err
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && !cb.now().Before(cb.reopensAt) {
		cb.transition(StateHalfOpen)
	}

	switch cb.state {
	case StateOpen:
		cb.stats.Rejected++
		return false
	case StateHalfOpen:
		if cb.probes >= cb.cfg.SuccessThreshold {
			cb.stats.Rejected++
			return false
		}
	}
	cb.stats.Requests++
	return true
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.Successes++
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.probes++
		if cb.probes >= cb.cfg.SuccessThreshold {
			cb.transition(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.Failures++
	cb.stats.LastFailure = cb.now()
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.probes = 0

	if to == StateOpen {
		cb.stats.Opened++
		cb.reopensAt = cb.now().Add(cb.cfg.RetryTimeout)
		cb.log.Info("Circuit opened", "reopens_at", cb.reopensAt.Format(time.RFC3339))
	} else {
		cb.log.Info("Circuit " + string(to))
	}

	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a copy of the breaker's counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s := cb.stats
	s.State = cb.state
	return s
}
