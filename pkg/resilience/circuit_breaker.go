package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while a breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// StateRecorder receives breaker state changes. *metrics.Metrics implements it.
type StateRecorder interface {
	SetCircuitBreakerState(name string, state int)
	RecordCircuitBreakerTrip(name string)
}

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	Name                  string
	MaxRequests           uint32        // requests allowed while half-open
	Interval              time.Duration // closed-state count reset period, 0 never resets
	Timeout               time.Duration // open period before probing again
	FailureThreshold      uint32        // consecutive failures that trip
	FailureRatioThreshold float64       // failure ratio that trips once MinRequestsToTrip is reached
	MinRequestsToTrip     uint32
}

// DefaultCircuitBreakerConfig returns the defaults used for storage and
// broker calls. The breaker opens after five consecutive failures and probes
// with a single request after ten seconds.
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:                  name,
		MaxRequests:           1,
		Interval:              30 * time.Second,
		Timeout:               10 * time.Second,
		FailureThreshold:      5,
		FailureRatioThreshold: 0.6,
		MinRequestsToTrip:     20,
	}
}

// CircuitBreaker wraps gobreaker with logging and state metrics
type CircuitBreaker struct {
	cb       *gobreaker.CircuitBreaker
	name     string
	logger   *slog.Logger
	recorder StateRecorder
}

// NewCircuitBreaker creates a new circuit breaker. recorder may be nil.
func NewCircuitBreaker(config *CircuitBreakerConfig, logger *slog.Logger, recorder StateRecorder) *CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}

	c := &CircuitBreaker{
		name:     config.Name,
		logger:   logger,
		recorder: recorder,
	}

	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= config.FailureThreshold {
				return true
			}
			if config.MinRequestsToTrip > 0 && counts.Requests >= config.MinRequestsToTrip {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return ratio >= config.FailureRatioThreshold
			}
			return false
		},
		OnStateChange: c.onStateChange,
	})
	if recorder != nil {
		recorder.SetCircuitBreakerState(config.Name, int(gobreaker.StateClosed))
	}

	return c
}

func (c *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	c.logger.Warn("Circuit breaker state changed",
		"name", name,
		"from", from.String(),
		"to", to.String(),
	)
	if c.recorder == nil {
		return
	}
	c.recorder.SetCircuitBreakerState(name, stateValue(to))
	if to == gobreaker.StateOpen {
		c.recorder.RecordCircuitBreakerTrip(name)
	}
}

// stateValue maps gobreaker states onto the gauge encoding 0=closed, 1=half-open, 2=open
func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Execute runs fn through the breaker. Rejected calls return an error wrapping
// ErrCircuitOpen.
func (c *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := ExecuteWithResult(ctx, c, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ExecuteWithResult runs fn through cb and returns its typed result
func ExecuteWithResult[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	result, err := cb.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		cb.logger.Warn("Circuit breaker rejected call", "name", cb.name, "reason", err.Error())
		return zero, fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
	}
	if err != nil {
		return zero, err
	}

	typed, _ := result.(T)
	return typed, nil
}

// State returns the current state of the circuit breaker
func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}

// Name returns the circuit breaker name
func (c *CircuitBreaker) Name() string {
	return c.name
}

// Status reports the breaker counters, used by readiness checks
func (c *CircuitBreaker) Status() CircuitBreakerStatus {
	counts := c.cb.Counts()
	return CircuitBreakerStatus{
		Name:                 c.name,
		State:                c.cb.State().String(),
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}

// CircuitBreakerStatus holds status information for a circuit breaker
type CircuitBreakerStatus struct {
	Name                 string `json:"name"`
	State                string `json:"state"`
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"totalSuccesses"`
	TotalFailures        uint32 `json:"totalFailures"`
	ConsecutiveSuccesses uint32 `json:"consecutiveSuccesses"`
	ConsecutiveFailures  uint32 `json:"consecutiveFailures"`
}

// RetryConfig configures Retry
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors func(error) bool
}

// DefaultRetryConfig retries every error with exponential backoff, waiting
// about 15 seconds in total.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   6,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      8 * time.Second,
		BackoffFactor: 2,
	}
}

// Retry executes fn until it succeeds, returns a non-retryable error, or runs
// out of attempts.
func Retry[T any](ctx context.Context, config *RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := config.InitialDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if config.RetryableErrors != nil && !config.RetryableErrors(err) {
			return zero, err
		}

		if attempt < config.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}

			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
	}

	return zero, fmt.Errorf("max retries (%d) exceeded: %w", config.MaxAttempts, lastErr)
}
