package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "closed"
}

var (
	ErrOpen     = errors.New("circuit breaker is open")
	ErrHalfOpen = errors.New("circuit breaker is half-open (rate limited)")
)

type CircuitBreaker struct {
	mu            sync.Mutex
	name          string
	state         State
	failureCount  int
	lastErrorTime time.Time
	threshold     int
	timeout       time.Duration
	now           func() time.Time
}

func NewCircuitBreaker(name string, threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:      name,
		state:     StateClosed,
		threshold: threshold,
		timeout:   timeout,
		now:       time.Now,
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs action unless the breaker is open. After timeout an open
// breaker lets exactly one trial call through; concurrent calls during the
// trial are rejected.
func Execute[T any](cb *CircuitBreaker, action func() (T, error)) (T, error) {
	return ExecuteContext(context.Background(), cb, action)
}

// ExecuteContext is Execute for an action bound to ctx. A failure after ctx
// is done belongs to the caller and is not counted against the service.
func ExecuteContext[T any](ctx context.Context, cb *CircuitBreaker, action func() (T, error)) (T, error) {
	var zero T

	cb.mu.Lock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastErrorTime) > cb.timeout {
			cb.state = StateHalfOpen
		} else {
			cb.mu.Unlock()
			return zero, ErrOpen
		}
	case StateHalfOpen:
		cb.mu.Unlock()
		return zero, ErrHalfOpen
	}

	cb.mu.Unlock()

	result, err := action()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && ctx.Err() != nil {
		if cb.state == StateHalfOpen {
			// Trial abandoned; the next call may try again.
			cb.state = StateOpen
		}
		return zero, err
	}

	if err != nil {
		cb.failureCount++
		cb.lastErrorTime = cb.now()

		if cb.failureCount >= cb.threshold || cb.state == StateHalfOpen {
			cb.state = StateOpen
			slog.Warn("Circuit Breaker OPENED", "breaker", cb.name, "failures", cb.failureCount)
		}
		return zero, err
	}

	if cb.state == StateHalfOpen {
		slog.Info("Circuit Breaker RECOVERED", "breaker", cb.name)
	}
	cb.failureCount = 0
	cb.state = StateClosed

	return result, nil
}
