// Package circuitbreaker wraps sony/gobreaker with typed helpers and
// OpenTelemetry state reporting.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/torus-bridge/internal/apperror"
)

// Config holds breaker settings.
type Config struct {
	Name             string
	MaxRequests      uint32        // allowed in half-open
	Interval         time.Duration // closed-state counter reset
	Timeout          time.Duration // open -> half-open
	FailureThreshold uint32        // consecutive failures before opening
}

// DefaultConfig returns settings suited to JSON-RPC endpoints.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// CircuitBreaker executes calls returning T through a gobreaker instance.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

var transitions metric.Int64Counter

func init() {
	transitions, _ = otel.Meter("github.com/fd1az/torus-bridge/internal/circuitbreaker").Int64Counter(
		"circuit_breaker_state_changes_total",
		metric.WithDescription("Circuit breaker state transitions"),
	)
}

// New creates a breaker from cfg.
func New[T any](cfg Config) *CircuitBreaker[T] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellations say nothing about endpoint health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if transitions != nil {
				transitions.Add(context.Background(), 1, metric.WithAttributes(
					attribute.String("breaker", name),
					attribute.String("from", from.String()),
					attribute.String("to", to.String()),
				))
			}
		},
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn unless the breaker is open.
func (c *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	res, err := c.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, apperror.New(apperror.CodeCircuitOpen,
			apperror.WithCause(err),
			apperror.WithContext(c.cb.Name()))
	}
	return res, err
}

// State returns the current breaker state name.
func (c *CircuitBreaker[T]) State() string {
	return c.cb.State().String()
}
