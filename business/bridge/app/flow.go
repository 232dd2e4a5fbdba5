package app

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
	"github.com/fd1az/torus-bridge/internal/apm"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/asset"
	"github.com/fd1az/torus-bridge/internal/logger"
	"github.com/fd1az/torus-bridge/internal/metrics"
)

// Hyperlane chain names of the warp route.
const (
	WarpChainBase  = "base"
	WarpChainTorus = "torus"
	TokenSymbol    = "TORUS"
)

// Flow runs the two legs of one transfer direction.
type Flow interface {
	Direction() domain.Direction
	ExecuteStep1(ctx context.Context, amount string, cb StepCallbacks) error
	ExecuteStep2(ctx context.Context, amount string, cb StepCallbacks) error
	// ResumeStep1 re-enters the step 1 destination poll.
	ResumeStep1(ctx context.Context, amount string, baseline *big.Int) error
	// ResumeStep2 re-enters the step 2 destination poll.
	ResumeStep2(ctx context.Context, amount string, baseline *big.Int, txHash string) error
}

// StepCallbacks let the orchestrator follow a step without polling state.
type StepCallbacks struct {
	// OnConfirming fires once the step's transaction is submitted.
	OnConfirming func(ctx context.Context, step int, txHash string, baseline *big.Int)
	// OnStepProgress fires on every phase change inside a step.
	OnStepProgress func(ctx context.Context, step domain.Step)
}

func (cb StepCallbacks) confirming(ctx context.Context, step int, txHash string, baseline *big.Int) {
	if cb.OnConfirming != nil {
		cb.OnConfirming(ctx, step, txHash, new(big.Int).Set(baseline))
	}
}

func (cb StepCallbacks) progress(ctx context.Context, step domain.Step) {
	if cb.OnStepProgress != nil {
		cb.OnStepProgress(ctx, step)
	}
}

// BalanceObserver is told about balances read after a step settles.
type BalanceObserver func(chain string, balance *big.Int)

// FlowContext bundles what both flows need.
type FlowContext struct {
	State      *SharedState
	Native     NativeChain
	Wallet     EVMWallet
	Balances   BalanceReader
	Warp       WarpRouter
	Withdrawer EVMWithdrawer
	Addresses  AddressMapper

	// Wallets gates transfers on both accounts being connected. Optional.
	Wallets Wallets

	// NativeAddress is the user's SS58 account.
	NativeAddress   string
	TorusEVMChainID uint64
	BaseChainID     uint64
	Timing          Timing

	Classifier Classifier
	OnBalance  BalanceObserver

	Logger  logger.LoggerInterface
	Tracer  apm.Tracer
	Metrics *metrics.BridgeInstruments
}

// Validate checks that the mandatory collaborators are set.
func (fc *FlowContext) Validate() error {
	switch {
	case fc.State == nil:
		return errors.New("flow: shared state is required")
	case fc.Wallet == nil || fc.Balances == nil || fc.Warp == nil:
		return apperror.New(apperror.CodeWalletNotConnected, apperror.WithContext("evm wallet, balances and warp router are required"))
	case fc.Native == nil || fc.Withdrawer == nil || fc.Addresses == nil:
		return apperror.New(apperror.CodeWalletNotConnected, apperror.WithContext("native chain, withdrawer and address mapper are required"))
	case fc.NativeAddress == "":
		return apperror.New(apperror.CodeWalletNotConnected, apperror.WithContext("native account"))
	case fc.Logger == nil:
		return errors.New("flow: logger is required")
	}
	return nil
}

func (fc *FlowContext) withDefaults() *FlowContext {
	c := *fc
	c.Timing = c.Timing.withDefaults()
	if c.Classifier == nil {
		c.Classifier = defaultClassifier
	}
	if c.Tracer == nil {
		c.Tracer = apm.NewTracer(tracerName)
	}
	if c.BaseChainID == 0 {
		c.BaseChainID = BaseChainID
	}
	return &c
}

const tracerName = "github.com/fd1az/torus-bridge/business/bridge/app"

// flowBase holds the mechanics shared by both directions.
type flowBase struct {
	*FlowContext
	direction domain.Direction
}

func (f *flowBase) Direction() domain.Direction { return f.direction }

func (f *flowBase) setStep(ctx context.Context, step domain.Step, cb StepCallbacks) {
	f.State.Update(domain.ToStep(step))
	cb.progress(ctx, step)
	f.Logger.Debug(ctx, "bridge step", "direction", f.direction, "step", step)
}

func (f *flowBase) record(r domain.TransactionRecord) {
	if r.TxHash != "" && r.ExplorerURL == "" {
		r.ExplorerURL = domain.ExplorerURL(r.TxHash, r.ChainName)
	}
	f.State.AddTransaction(r)
}

func (f *flowBase) isRejection(err error) bool {
	return f.Classifier.Classify(err) == domain.KindUserRejected
}

// failSign handles a signing or submission failure. A rejection leaves the
// state untouched and returns ErrUserRejected.
func (f *flowBase) failSign(ctx context.Context, step int, chain, rejectMsg, failMsg string, err error) error {
	if f.isRejection(err) {
		f.Logger.Info(ctx, "transaction rejected by user", "direction", f.direction, "step", step)
		return NewUserRejectedError(rejectMsg, err)
	}

	details := FormatErrorForUser(err)
	f.Logger.Error(ctx, failMsg, "direction", f.direction, "step", step, "error", err)
	f.record(domain.TransactionRecord{
		Step:         step,
		Status:       domain.TxStatusError,
		ChainName:    chain,
		Message:      failMsg,
		ErrorDetails: details,
		ErrorPhase:   domain.PhaseSign,
	})
	f.State.Update(domain.ToError(failMsg, details))
	return apperror.New(apperror.CodeTransferFailed, apperror.WithMessage(failMsg), apperror.WithCause(err))
}

// failConfirm handles finalization and polling failures.
func (f *flowBase) failConfirm(ctx context.Context, step int, chain, txHash, message string, cause error) error {
	details := ""
	if cause != nil {
		details = FormatErrorForUser(cause)
	}
	f.Logger.Error(ctx, "bridge confirmation failed", "direction", f.direction, "step", step, "message", message, "error", cause)
	f.record(domain.TransactionRecord{
		Step:         step,
		Status:       domain.TxStatusError,
		ChainName:    chain,
		TxHash:       txHash,
		Message:      message,
		ErrorDetails: details,
		ErrorPhase:   domain.PhaseConfirm,
	})
	f.State.Update(domain.ToError(message, details))

	code := apperror.CodePollingFailed
	if IsTimeout(cause) {
		code = apperror.CodeOperationTimeout
	}
	return apperror.New(code, apperror.WithMessage(message), apperror.WithCause(cause))
}

// ensureChain switches the wallet to target when needed. Step 2 surfaces the
// switch as its own phase.
func (f *flowBase) ensureChain(ctx context.Context, step int, target uint64, chainName string, cb StepCallbacks) error {
	current, err := f.Wallet.ChainID(ctx)
	if err == nil && current == target {
		return nil
	}

	if step == 2 {
		f.setStep(ctx, domain.Step2Switching, cb)
	}
	meta := &domain.RecordMetadata{Type: domain.MetadataTypeSwitch, FromChainID: current, ToChainID: target}
	f.record(domain.TransactionRecord{
		Step:      step,
		Status:    domain.TxStatusStarting,
		ChainName: chainName,
		Message:   "Switching to " + chainName + " chain...",
		Metadata:  meta,
	})

	result := SwitchChainWithRetry(ctx, f.Wallet, target, SwitchOptions{
		ChainName:   chainName,
		MaxAttempts: f.Timing.MaxSwitchAttempts,
		RetryDelay:  f.Timing.SwitchRetryDelay,
		Logger:      f.Logger,
		Metrics:     f.Metrics,
		Classifier:  f.Classifier,
	})
	if !result.Success {
		if result.UserRejected {
			return ThrowOnChainSwitchFailure(result, chainName)
		}
		msg := result.ErrorMessage
		if msg == "" {
			msg = "Failed to switch to " + chainName
		}
		f.record(domain.TransactionRecord{
			Step:         step,
			Status:       domain.TxStatusError,
			ChainName:    chainName,
			Message:      msg,
			ErrorDetails: result.ErrorDetails,
			Metadata:     meta,
		})
		f.State.Update(domain.ToError(msg, result.ErrorDetails))
		return ThrowOnChainSwitchFailure(result, chainName)
	}

	f.record(domain.TransactionRecord{
		Step:      step,
		Status:    domain.TxStatusSuccess,
		ChainName: chainName,
		Message:   "Successfully switched to " + chainName,
		Metadata:  meta,
	})
	return nil
}

func (f *flowBase) parseAmount(amount string) (*big.Int, error) {
	return ValidateAmount(amount, nil)
}

func (f *flowBase) poll(ctx context.Context, label string, refetch BalanceFunc, baseline, expected *big.Int, anyChange bool) PollResult {
	return PollBalanceUntilTarget(ctx, PollOptions{
		Refetch:          refetch,
		Baseline:         baseline,
		ExpectedIncrease: expected,
		AnyChange:        anyChange,
		Interval:         f.Timing.PollInterval,
		MaxAttempts:      f.Timing.MaxPolls,
		Timeout:          f.Timing.PollTimeout,
		Label:            label,
		Logger:           f.Logger,
		Tracer:           f.Tracer,
		Metrics:          f.Metrics,
	})
}

// refresh re-reads a balance after a step settles. Failures only log.
func (f *flowBase) refresh(ctx context.Context, chain string, read BalanceFunc) {
	balance, err := read(ctx)
	if err != nil {
		f.Logger.Warn(ctx, "balance refresh failed", "chain", chain, "error", err)
		return
	}
	f.Logger.Debug(ctx, "balance refreshed", "chain", chain, "balance", asset.FormatWeiToDecimalString(balance))
	if f.OnBalance != nil {
		f.OnBalance(chain, balance)
	}
}

func (f *flowBase) torusEVMBalance(ctx context.Context) (*big.Int, error) {
	return f.Balances.TorusEVMBalance(ctx, f.Wallet.Address())
}

func (f *flowBase) baseBalance(ctx context.Context) (*big.Int, error) {
	return f.Balances.BaseBalance(ctx, f.Wallet.Address())
}

func (f *flowBase) nativeBalance(ctx context.Context) (*big.Int, error) {
	return f.Balances.NativeBalance(ctx, f.NativeAddress)
}

// traceStep wraps a step in a span and records its duration.
func (f *flowBase) traceStep(ctx context.Context, step int, fn func(ctx context.Context) error) error {
	name := "bridge." + string(f.direction) + ".step1"
	if step == 2 {
		name = "bridge." + string(f.direction) + ".step2"
	}
	ctx, span := f.Tracer.StartSpanFromContext(ctx, name)
	defer span.End()
	span.SetAttributes(apm.AttrDirection.String(string(f.direction)), apm.AttrStep.Int(step))

	start := time.Now()
	err := fn(ctx)
	f.Metrics.StepFinished(ctx, string(f.direction), step, time.Since(start).Seconds(), err == nil)
	if r, ok := f.State.Transaction(step); ok && r.TxHash != "" {
		span.SetAttributes(apm.AttrTxHash.String(r.TxHash))
	}

	switch {
	case err == nil:
		span.SetOK()
	case IsUserRejected(err):
		span.AddEvent("user_rejected")
	default:
		span.NoticeError(err)
	}
	return err
}

func pollMessage(res PollResult, fallback string) string {
	if res.ErrorMessage != "" {
		return res.ErrorMessage
	}
	return fallback
}

func pollFailure(res PollResult, fallback string) error {
	return apperror.New(apperror.CodePollingFailed, apperror.WithMessage(pollMessage(res, fallback)))
}
