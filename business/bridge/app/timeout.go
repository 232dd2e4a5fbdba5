package app

import (
	"context"
	"time"

	"github.com/fd1az/torus-bridge/internal/apperror"
)

// WithTimeout runs op and fails with OPERATION_TIMEOUT carrying message if
// d elapses first. op receives ctx unchanged and keeps running after a
// timeout; its late result is dropped.
func WithTimeout[T any](ctx context.Context, d time.Duration, message string, op func(ctx context.Context) (T, error)) (T, error) {
	if message == "" {
		message = "Operation timeout"
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := op(ctx)
		done <- result{v, err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case r := <-done:
		return r.v, r.err
	case <-timer.C:
		return zero, apperror.New(apperror.CodeOperationTimeout, apperror.WithMessage(message))
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// IsTimeout reports whether err came from WithTimeout.
func IsTimeout(err error) bool {
	return apperror.HasCode(err, apperror.CodeOperationTimeout)
}
