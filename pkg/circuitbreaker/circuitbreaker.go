package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without calling the guarded function while the
// breaker is open.
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
	default:
		return "unknown"
	}
}

type Config struct {
	FailureThreshold int           // consecutive failures that open the breaker
	SuccessThreshold int           // half-open successes that close it again
	OpenTimeout      time.Duration // how long to stay open before probing
	MaxHalfOpen      int           // concurrent probes while half-open
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		MaxHalfOpen:      1,
	}
}

// CircuitBreaker stops calling a failing dependency for a while after
// FailureThreshold consecutive errors.
type CircuitBreaker struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	probes    int
	openedAt  time.Time
	onChange  func(from, to State)
}

func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultConfig().SuccessThreshold
	}
	if cfg.MaxHalfOpen <= 0 {
		cfg.MaxHalfOpen = DefaultConfig().MaxHalfOpen
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// OnStateChange registers fn to run after every transition. fn is called
// outside the breaker's lock.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onChange = fn
}

// Execute runs fn unless the breaker is open. The error from fn is returned
// unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !cb.admit() {
		return ErrOpen
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from, changed := cb.transitionLocked(StateClosed)
	fn := cb.onChange
	cb.mu.Unlock()

	if changed && fn != nil {
		fn(from, StateClosed)
	}
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	var (
		from    State
		changed bool
	)
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.OpenTimeout {
		from, changed = cb.transitionLocked(StateHalfOpen)
	}

	allowed := true
	switch cb.state {
	case StateOpen:
		allowed = false
	case StateHalfOpen:
		if cb.probes >= cb.cfg.MaxHalfOpen {
			allowed = false
		} else {
			cb.probes++
		}
	}
	fn := cb.onChange
	cb.mu.Unlock()

	if changed && fn != nil {
		fn(from, StateHalfOpen)
	}
	return allowed
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	var (
		from    State
		to      State
		changed bool
	)

	switch {
	case err != nil && cb.state == StateHalfOpen:
		to = StateOpen
		from, changed = cb.transitionLocked(to)
	case err != nil:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			to = StateOpen
			from, changed = cb.transitionLocked(to)
		}
	case cb.state == StateHalfOpen:
		cb.probes--
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			to = StateClosed
			from, changed = cb.transitionLocked(to)
		}
	default:
		cb.failures = 0
	}
	fn := cb.onChange
	cb.mu.Unlock()

	if changed && fn != nil {
		fn(from, to)
	}
}

func (cb *CircuitBreaker) transitionLocked(to State) (State, bool) {
	from := cb.state
	if from == to {
		return from, false
	}
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	cb.probes = 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	return from, true
}
