package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/logger"
	"github.com/fd1az/torus-bridge/internal/metrics"
)

// ChainSwitcher is the part of EVMWallet the switch helper needs.
type ChainSwitcher interface {
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
}

// SwitchOptions configures SwitchChainWithRetry.
type SwitchOptions struct {
	ChainName   string
	MaxAttempts int
	RetryDelay  time.Duration

	Logger     logger.LoggerInterface
	Metrics    *metrics.BridgeInstruments
	Classifier Classifier
}

// SwitchResult is the outcome of a switch attempt sequence.
type SwitchResult struct {
	Success      bool
	UserRejected bool
	Attempts     int
	ErrorMessage string
	ErrorDetails string
	cause        error
}

// SwitchChainWithRetry asks the wallet to switch to target and verifies it
// by reading the chain id back. A declined prompt stops immediately.
func SwitchChainWithRetry(ctx context.Context, wallet ChainSwitcher, target uint64, opts SwitchOptions) SwitchResult {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = MaxSwitchAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = SwitchRetryDelay
	}
	if opts.ChainName == "" {
		opts.ChainName = fmt.Sprintf("chain %d", target)
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = defaultClassifier
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		opts.Metrics.SwitchAttempt(ctx, target)

		err := wallet.SwitchChain(ctx, target)
		if err != nil && classifier.Classify(err) == domain.KindUserRejected {
			return SwitchResult{
				UserRejected: true,
				Attempts:     attempt,
				ErrorMessage: "Chain switch rejected by user",
				ErrorDetails: FormatErrorForUser(err),
				cause:        err,
			}
		}

		if err == nil {
			current, readErr := wallet.ChainID(ctx)
			if readErr == nil && current == target {
				return SwitchResult{Success: true, Attempts: attempt}
			}
			if readErr != nil {
				err = readErr
			} else {
				err = fmt.Errorf("wallet reports chain %d, expected %d", current, target)
			}
		}

		lastErr = err
		if opts.Logger != nil {
			opts.Logger.Warn(ctx, "chain switch attempt failed",
				"chain", opts.ChainName, "attempt", attempt, "max_attempts", opts.MaxAttempts, "error", err)
		}

		if attempt < opts.MaxAttempts {
			select {
			case <-ctx.Done():
				return SwitchResult{
					Attempts:     attempt,
					ErrorMessage: fmt.Sprintf("Failed to switch to %s", opts.ChainName),
					ErrorDetails: FormatErrorForUser(ctx.Err()),
					cause:        ctx.Err(),
				}
			case <-time.After(opts.RetryDelay):
			}
		}
	}

	return SwitchResult{
		Attempts:     opts.MaxAttempts,
		ErrorMessage: fmt.Sprintf("Failed to switch to %s after %d attempts", opts.ChainName, opts.MaxAttempts),
		ErrorDetails: FormatErrorForUser(lastErr),
		cause:        lastErr,
	}
}

// ThrowOnChainSwitchFailure converts a failed result into an error. It
// returns nil for a successful result.
func ThrowOnChainSwitchFailure(result SwitchResult, chainName string) error {
	if result.Success {
		return nil
	}
	if result.UserRejected {
		return NewUserRejectedError(result.ErrorMessage, result.cause)
	}
	msg := result.ErrorMessage
	if msg == "" {
		msg = fmt.Sprintf("Failed to switch to %s", chainName)
	}
	return apperror.New(apperror.CodeChainSwitchFailed,
		apperror.WithMessage(msg),
		apperror.WithContext(chainName),
		apperror.WithCause(result.cause),
	)
}
