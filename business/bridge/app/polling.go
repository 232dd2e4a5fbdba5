package app

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/fd1az/torus-bridge/internal/apm"
	"github.com/fd1az/torus-bridge/internal/logger"
	"github.com/fd1az/torus-bridge/internal/metrics"
)

// BalanceFunc fetches the current balance being watched.
type BalanceFunc func(ctx context.Context) (*big.Int, error)

// PollOptions configures PollBalanceUntilTarget.
type PollOptions struct {
	Refetch          BalanceFunc
	Baseline         *big.Int
	ExpectedIncrease *big.Int
	// AnyChange succeeds on any difference from Baseline.
	AnyChange   bool
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
	Label       string

	Logger  logger.LoggerInterface
	Tracer  apm.Tracer
	Metrics *metrics.BridgeInstruments
}

// PollResult is the outcome of a polling run. Failure is reported here,
// never as an error.
type PollResult struct {
	Success      bool
	Attempts     int
	FinalBalance *big.Int
	ErrorMessage string
}

// PollBalanceUntilTarget refetches a balance on a fixed interval until it
// reaches Baseline+ExpectedIncrease (or differs from Baseline in AnyChange
// mode), MaxAttempts are used up, Timeout elapses or ctx is done. A
// refetch error consumes an attempt.
func PollBalanceUntilTarget(ctx context.Context, opts PollOptions) (res PollResult) {
	if opts.Interval <= 0 {
		opts.Interval = PollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = MaxPolls
	}
	if opts.Timeout <= 0 {
		opts.Timeout = PollingOperationTime
	}
	baseline := opts.Baseline
	if baseline == nil {
		baseline = new(big.Int)
	}
	expected := opts.ExpectedIncrease
	if expected == nil {
		expected = new(big.Int)
	}
	target := new(big.Int).Add(baseline, expected)

	if opts.Tracer != nil {
		var span apm.Span
		ctx, span = opts.Tracer.StartSpanFromContext(ctx, "bridge.poll_balance")
		span.SetAttributes(apm.AttrChain.String(opts.Label))
		defer func() {
			span.SetAttributes(apm.AttrAttempts.Int(res.Attempts))
			span.End()
		}()
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var (
		attempts int
		last     *big.Int
		lastErr  error
	)
	for {
		select {
		case <-ctx.Done():
			return PollResult{
				Attempts:     attempts,
				FinalBalance: last,
				ErrorMessage: fmt.Sprintf("%s: balance polling timed out after %d attempts", opts.Label, attempts),
			}
		case <-ticker.C:
		}

		attempts++
		current, err := opts.Refetch(ctx)
		opts.Metrics.PollAttempt(ctx, opts.Label, err != nil)
		if err != nil {
			lastErr = err
			if opts.Logger != nil {
				opts.Logger.Warn(ctx, "balance refetch failed", "label", opts.Label, "attempt", attempts, "error", err)
			}
		} else if current != nil {
			last = current
			if reached(current, baseline, target, opts.AnyChange) {
				if opts.Logger != nil {
					opts.Logger.Info(ctx, "balance target reached", "label", opts.Label, "attempts", attempts, "balance", current.String())
				}
				return PollResult{Success: true, Attempts: attempts, FinalBalance: current}
			}
		}

		if attempts >= opts.MaxAttempts {
			msg := fmt.Sprintf("%s: balance did not change after %d attempts", opts.Label, attempts)
			if last == nil && lastErr != nil {
				msg = fmt.Sprintf("%s: balance unavailable after %d attempts: %v", opts.Label, attempts, lastErr)
			}
			return PollResult{Attempts: attempts, FinalBalance: last, ErrorMessage: msg}
		}
	}
}

func reached(current, baseline, target *big.Int, anyChange bool) bool {
	if anyChange {
		return current.Cmp(baseline) != 0
	}
	return current.Cmp(target) >= 0
}
