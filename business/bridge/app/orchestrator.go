package app

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
	historyDomain "github.com/fd1az/torus-bridge/business/history/domain"
	"github.com/fd1az/torus-bridge/internal/apm"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/asset"
	"github.com/fd1az/torus-bridge/internal/logger"
	"github.com/fd1az/torus-bridge/internal/metrics"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHistory persists transfer progress to h.
func WithHistory(h History) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithEventPublisher publishes lifecycle events to p.
func WithEventPublisher(p EventPublisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

// WithTransactionCreated registers a hook called when a new history entry
// is created for the running transfer.
func WithTransactionCreated(fn func(ctx context.Context, id string)) Option {
	return func(o *Orchestrator) { o.onCreated = fn }
}

// WithTransactionSettled registers a hook called once the running
// transfer has completed.
func WithTransactionSettled(fn func(ctx context.Context)) Option {
	return func(o *Orchestrator) { o.onSettled = fn }
}

// WithFlows overrides the direction flows.
func WithFlows(flows ...Flow) Option {
	return func(o *Orchestrator) {
		for _, f := range flows {
			o.flows[f.Direction()] = f
		}
	}
}

// Orchestrator runs at most one transfer at a time over the two flows and
// mirrors its progress into history.
type Orchestrator struct {
	state   *SharedState
	flows   map[domain.Direction]Flow
	history History
	events  EventPublisher
	wallets Wallets

	evmAddress    func() string
	nativeAddress string

	log     logger.LoggerInterface
	tracer  apm.Tracer
	metrics *metrics.BridgeInstruments

	mu        sync.Mutex
	running   bool
	currentID string
	onCreated func(ctx context.Context, id string)
	onSettled func(ctx context.Context)
}

// NewOrchestrator builds both flows over fc.
func NewOrchestrator(fc *FlowContext, opts ...Option) (*Orchestrator, error) {
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	fc = fc.withDefaults()

	o := &Orchestrator{
		state: fc.State,
		flows: map[domain.Direction]Flow{
			domain.BaseToNative: NewBaseToNativeFlow(fc),
			domain.NativeToBase: NewNativeToBaseFlow(fc),
		},
		wallets:       fc.Wallets,
		evmAddress:    fc.Wallet.Address,
		nativeAddress: fc.NativeAddress,
		log:           fc.Logger,
		tracer:        fc.Tracer,
		metrics:       fc.Metrics,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// State returns the current transfer state.
func (o *Orchestrator) State() domain.TransferState { return o.state.State() }

// Transactions returns the per-step records of the current transfer.
func (o *Orchestrator) Transactions() []domain.TransactionRecord { return o.state.Transactions() }

// Subscribe registers a state observer.
func (o *Orchestrator) Subscribe(l StateListener) func() { return o.state.Subscribe(l) }

// ExplorerURL maps a hash on a chain to its explorer page.
func (o *Orchestrator) ExplorerURL(txHash, chain string) string {
	return domain.ExplorerURL(txHash, chain)
}

// IsTransferInProgress reports whether a step is active.
func (o *Orchestrator) IsTransferInProgress() bool {
	return o.state.State().Step.IsActive()
}

// SetCurrentTransactionID binds the running transfer to a history entry.
func (o *Orchestrator) SetCurrentTransactionID(id string) {
	o.mu.Lock()
	o.currentID = id
	o.mu.Unlock()
}

// CurrentTransactionID returns the bound history entry id, if any.
func (o *Orchestrator) CurrentTransactionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentID
}

// Reset returns to idle and unbinds the history entry.
func (o *Orchestrator) Reset() {
	o.state.Reset()
	o.SetCurrentTransactionID("")
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running || o.state.State().Step.IsActive() {
		return apperror.New(apperror.CodeTransferInProgress)
	}
	o.running = true
	return nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}

func (o *Orchestrator) flow(direction domain.Direction) (Flow, error) {
	f, ok := o.flows[direction]
	if !ok {
		return nil, apperror.New(apperror.CodeInvalidDirection, apperror.WithContext(string(direction)))
	}
	return f, nil
}

// ValidateAmount checks that amount parses to a positive TORUS quantity
// not above balance. A nil balance skips the upper bound.
func ValidateAmount(amount string, balance *big.Int) (*big.Int, error) {
	wei, err := asset.ToRems(amount)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidAmount, apperror.WithContext(amount), apperror.WithCause(err))
	}
	if wei.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeInvalidAmount, apperror.WithContext("amount must be positive"))
	}
	if balance != nil && wei.Cmp(balance) > 0 {
		return nil, apperror.New(apperror.CodeInsufficientFunds,
			apperror.WithContext("available "+asset.FormatWeiToDecimalString(balance)+" TORUS"))
	}
	return wei, nil
}

// ExecuteTransfer runs both steps of a fresh transfer. A user rejection at
// step 1 puts the previous state back and returns nil; a rejection at step
// 2 leaves step 1 complete and returns nil. Other failures are returned
// after the state and history record them.
func (o *Orchestrator) ExecuteTransfer(ctx context.Context, direction domain.Direction, amount string) error {
	f, err := o.flow(direction)
	if err != nil {
		return err
	}
	if _, err := ValidateAmount(amount, nil); err != nil {
		return err
	}
	if err := o.checkWallets(ctx); err != nil {
		return err
	}
	if err := o.begin(); err != nil {
		return err
	}
	defer o.end()

	ctx, span := o.tracer.StartSpanFromContext(ctx, "bridge.execute_transfer")
	defer span.End()
	span.SetAttributes(apm.AttrDirection.String(string(direction)), apm.AttrAmount.String(amount))

	prevState, prevRecords := o.state.Snapshot()

	o.state.Update(domain.StateUpdate{Step: ptr(domain.StepIdle), Direction: &direction, Amount: &amount})
	o.state.SetTransactions(nil)
	o.SetCurrentTransactionID("")

	o.log.Info(ctx, "transfer started", "direction", direction, "amount", amount)
	o.publish(ctx, EventTransferStarted, "", "")

	rejected, err := o.run(ctx, f, amount, 1)
	switch {
	case rejected == 1:
		o.state.Restore(prevState, prevRecords)
		span.AddEvent("user_rejected")
		return nil
	case rejected == 2:
		span.AddEvent("user_rejected")
		return nil
	case err != nil:
		span.NoticeError(err)
		return err
	}
	span.SetOK()
	return nil
}

// RetryFromFailedStep reruns the failed step: the whole sequence when step
// 1 failed, only step 2 otherwise.
func (o *Orchestrator) RetryFromFailedStep(ctx context.Context) error {
	st, records := o.state.Snapshot()
	if st.Direction == domain.DirectionNone || st.Amount == "" {
		return apperror.New(apperror.CodeNoFailedStep)
	}

	failedStep := 0
	for _, r := range records {
		if r.Status == domain.TxStatusError {
			failedStep = r.Step
			break
		}
	}
	if failedStep == 0 && st.Step == domain.Step1Complete {
		failedStep = 2
	}
	if failedStep == 0 {
		return apperror.New(apperror.CodeNoFailedStep)
	}

	f, err := o.flow(st.Direction)
	if err != nil {
		return err
	}
	if err := o.acquire(); err != nil {
		return err
	}
	defer o.end()

	if id := o.CurrentTransactionID(); id != "" && o.history != nil {
		if err := o.history.MarkAsRetried(ctx, id); err != nil {
			o.log.Warn(ctx, "failed to mark history entry as retried", "id", id, "error", err)
		}
	}

	o.state.Update(domain.StateUpdate{ErrorMessage: ptr(""), ErrorDetails: ptr("")})
	o.state.ClearErrorDetails()
	retryMsg := "Retrying transfer..."
	if st.Direction == domain.BaseToNative && failedStep == 2 {
		retryMsg = "Retrying withdrawal..."
	}
	o.state.MapTransactions(func(r domain.TransactionRecord) domain.TransactionRecord {
		if r.Step == failedStep {
			r.Status = domain.TxStatusStarting
			r.ErrorPhase = domain.PhaseNone
			r.Message = retryMsg
		}
		return r
	})

	o.log.Info(ctx, "retrying transfer", "direction", st.Direction, "step", failedStep)
	rejected, err := o.run(ctx, f, st.Amount, failedStep)
	if rejected == 1 {
		o.state.Restore(st, records)
		return nil
	}
	if rejected != 0 {
		return nil
	}
	return err
}

// acquire marks the orchestrator busy without looking at the transfer
// state, which retries and resumes start from.
func (o *Orchestrator) acquire() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return apperror.New(apperror.CodeTransferInProgress)
	}
	o.running = true
	return nil
}

// ExecuteEvmToNative sends funds already on Torus EVM to Torus Native. It
// runs only step 2 and writes no history entry.
func (o *Orchestrator) ExecuteEvmToNative(ctx context.Context, amount string) error {
	return o.quickSend(ctx, domain.BaseToNative, domain.ChainBase, amount)
}

// ExecuteEvmToBase sends funds already on Torus EVM to Base. It runs only
// step 2 and writes no history entry.
func (o *Orchestrator) ExecuteEvmToBase(ctx context.Context, amount string) error {
	return o.quickSend(ctx, domain.NativeToBase, "Torus", amount)
}

func (o *Orchestrator) quickSend(ctx context.Context, direction domain.Direction, step1Chain, amount string) error {
	f, err := o.flow(direction)
	if err != nil {
		return err
	}
	if _, err := ValidateAmount(amount, nil); err != nil {
		return err
	}
	if err := o.checkWallets(ctx); err != nil {
		return err
	}
	if err := o.begin(); err != nil {
		return err
	}
	defer o.end()

	prevState, prevRecords := o.state.Snapshot()
	o.SetCurrentTransactionID("")
	o.state.SetTransactions([]domain.TransactionRecord{
		{Step: 1, Status: domain.TxStatusSuccess, ChainName: step1Chain, Message: "Already on Torus EVM"},
		{Step: 2, Status: domain.TxStatusNone, ChainName: domain.ChainTorusEVM},
	})
	o.state.Update(domain.StateUpdate{Direction: &direction, Amount: &amount, Step: ptr(domain.Step2Preparing)})

	err = f.ExecuteStep2(ctx, amount, StepCallbacks{})
	switch {
	case IsUserRejected(err):
		o.state.Restore(prevState, prevRecords)
		o.metrics.TransferFinished(ctx, string(direction), "rejected")
		return nil
	case err != nil:
		o.ensureErrorState(2, err)
		o.metrics.TransferFinished(ctx, string(direction), "failed")
		return err
	}

	o.metrics.TransferFinished(ctx, string(direction), "completed")
	if o.history != nil {
		n, err := o.history.MarkFailedAsRecoveredViaEvmRecover(ctx)
		if err != nil {
			o.log.Warn(ctx, "failed to mark failed transfers as recovered", "error", err)
		} else if n > 0 {
			o.log.Info(ctx, "marked failed transfers as recovered", "count", n)
		}
	}
	return nil
}

// run executes the sequence from startStep and keeps history in step. A
// user rejection is reported as the leg it happened on, with a nil error.
func (o *Orchestrator) run(ctx context.Context, f Flow, amount string, startStep int) (rejected int, err error) {
	direction := f.Direction()
	started := time.Now()

	if startStep <= 1 {
		if err := f.ExecuteStep1(ctx, amount, o.step1Callbacks(direction, amount)); err != nil {
			if IsUserRejected(err) {
				o.log.Info(ctx, "transfer cancelled at step 1", "direction", direction)
				o.metrics.TransferFinished(ctx, string(direction), "rejected")
				return 1, nil
			}
			o.ensureErrorState(1, err)
			o.updateHistory(ctx, historyDomain.Patch{
				Status:       ptr(historyDomain.StatusError),
				CurrentStep:  ptr(domain.StepError),
				ErrorMessage: ptr(o.state.State().ErrorMessage),
				ErrorStep:    ptr(1),
				CanRetry:     ptr(true),
			})
			o.publish(ctx, EventTransferFailed, "", o.state.State().ErrorMessage)
			o.metrics.TransferFinished(ctx, string(direction), "failed")
			return 0, err
		}

		step1, _ := o.state.Transaction(1)
		o.publish(ctx, EventStepCompleted, step1.TxHash, step1.Message)
		o.updateHistory(ctx, historyDomain.Patch{
			Status:      ptr(historyDomain.StatusStep1Complete),
			CurrentStep: ptr(domain.Step1Complete),
		})
		o.updateHistory(ctx, historyDomain.Patch{
			Status:      ptr(historyDomain.StatusPending),
			CurrentStep: ptr(domain.Step2Preparing),
			Step1TxHash: nonEmpty(step1.TxHash),
		})
	}

	if err := f.ExecuteStep2(ctx, amount, o.step2Callbacks(direction)); err != nil {
		if IsUserRejected(err) {
			o.log.Info(ctx, "transfer paused: step 2 rejected", "direction", direction)
			o.state.Update(domain.ToStep(domain.Step1Complete))
			o.state.AddTransaction(domain.TransactionRecord{
				Step:      2,
				ChainName: domain.ChainTorusEVM,
				Message:   rejectionMessage(err, "Transaction rejected by user"),
			})
			o.metrics.TransferFinished(ctx, string(direction), "rejected")
			return 2, nil
		}
		o.ensureErrorState(2, err)
		step2, _ := o.state.Transaction(2)
		o.updateHistory(ctx, historyDomain.Patch{
			Status:       ptr(historyDomain.StatusError),
			CurrentStep:  ptr(domain.StepError),
			ErrorMessage: ptr(o.state.State().ErrorMessage),
			ErrorStep:    ptr(2),
			Step2TxHash:  nonEmpty(step2.TxHash),
			CanRetry:     ptr(true),
		})
		o.publish(ctx, EventTransferFailed, step2.TxHash, o.state.State().ErrorMessage)
		o.metrics.TransferFinished(ctx, string(direction), "failed")
		return 0, err
	}

	step2, _ := o.state.Transaction(2)
	o.updateHistory(ctx, historyDomain.Patch{
		Status:      ptr(historyDomain.StatusCompleted),
		CurrentStep: ptr(domain.StepComplete),
		Step2TxHash: nonEmpty(step2.TxHash),
		CanRetry:    ptr(false),
		ClearError:  true,
	})
	o.publish(ctx, EventTransferComplete, step2.TxHash, step2.Message)
	o.settled(ctx)
	o.metrics.TransferFinished(ctx, string(direction), "completed")
	o.log.Info(ctx, "transfer complete", "direction", direction, "amount", amount, "elapsed", time.Since(started).String())
	return 0, nil
}

func (o *Orchestrator) step1Callbacks(direction domain.Direction, amount string) StepCallbacks {
	return StepCallbacks{
		OnStepProgress: o.mirrorStep,
		OnConfirming: func(ctx context.Context, step int, txHash string, baseline *big.Int) {
			o.publish(ctx, EventStepConfirming, txHash, "")
			if o.history == nil {
				return
			}

			if id := o.CurrentTransactionID(); id != "" {
				o.updateHistory(ctx, historyDomain.Patch{
					Status:               ptr(historyDomain.StatusPending),
					CurrentStep:          ptr(domain.Step1Confirming),
					Step1TxHash:          &txHash,
					Step1BaselineBalance: ptr(baseline.String()),
					ClearError:           true,
				})
				return
			}

			id, err := o.history.AddTransaction(ctx, historyDomain.Item{
				Direction:            direction,
				Amount:               amount,
				Status:               historyDomain.StatusPending,
				CurrentStep:          domain.Step1Confirming,
				Step1TxHash:          txHash,
				Step1BaselineBalance: baseline.String(),
				EVMAddress:           o.evmAddress(),
				NativeAddress:        o.nativeAddress,
				CanRetry:             true,
			})
			if err != nil {
				o.log.Error(ctx, "failed to create history entry", "error", err)
				return
			}
			o.SetCurrentTransactionID(id)
			if o.onCreated != nil {
				o.onCreated(ctx, id)
			}
		},
	}
}

func (o *Orchestrator) step2Callbacks(direction domain.Direction) StepCallbacks {
	return StepCallbacks{
		OnStepProgress: o.mirrorStep,
		OnConfirming: func(ctx context.Context, step int, txHash string, baseline *big.Int) {
			o.publish(ctx, EventStepConfirming, txHash, "")
			o.updateHistory(ctx, historyDomain.Patch{
				Step2TxHash:          &txHash,
				Step2BaselineBalance: ptr(baseline.String()),
			})
		},
	}
}

func (o *Orchestrator) mirrorStep(ctx context.Context, step domain.Step) {
	o.updateHistory(ctx, historyDomain.Patch{CurrentStep: &step})
}

// ResumeStep1Polling re-enters the step 1 poll for an entry restored from
// history. onComplete or onError is called exactly once.
func (o *Orchestrator) ResumeStep1Polling(ctx context.Context, item historyDomain.Item, onComplete func(), onError func(error)) {
	o.resumePoll(ctx, item, 1, onComplete, onError)
}

// ResumeStep2Polling re-enters the step 2 poll for an entry restored from
// history. onComplete or onError is called exactly once.
func (o *Orchestrator) ResumeStep2Polling(ctx context.Context, item historyDomain.Item, onComplete func(), onError func(error)) {
	o.resumePoll(ctx, item, 2, onComplete, onError)
}

func (o *Orchestrator) resumePoll(ctx context.Context, item historyDomain.Item, step int, onComplete func(), onError func(error)) {
	fail := func(err error) {
		if onError != nil {
			onError(err)
		}
	}
	f, err := o.flow(item.Direction)
	if err != nil {
		fail(err)
		return
	}

	o.SetCurrentTransactionID(item.ID)
	o.restoreFromHistory(item, step)

	baselineStr := item.Step1BaselineBalance
	if step == 2 {
		baselineStr = item.Step2BaselineBalance
	}
	baseline, ok := new(big.Int).SetString(baselineStr, 10)
	if !ok {
		baseline = new(big.Int)
	}

	o.log.Info(ctx, "resuming polling", "id", item.ID, "direction", item.Direction, "step", step)
	if step == 1 {
		err = f.ResumeStep1(ctx, item.Amount, baseline)
	} else {
		err = f.ResumeStep2(ctx, item.Amount, baseline, item.Step2TxHash)
	}
	if err != nil {
		o.log.Warn(ctx, "resumed polling failed", "id", item.ID, "step", step, "error", err)
		o.state.Update(domain.ToError(FormatErrorForUser(err), ""))
		fail(err)
		return
	}

	if step == 1 {
		o.updateHistory(ctx, historyDomain.Patch{
			Status:      ptr(historyDomain.StatusStep1Complete),
			CurrentStep: ptr(domain.Step1Complete),
		})
	} else {
		o.updateHistory(ctx, historyDomain.Patch{
			Status:      ptr(historyDomain.StatusCompleted),
			CurrentStep: ptr(domain.StepComplete),
			CanRetry:    ptr(false),
		})
		o.publish(ctx, EventTransferComplete, item.Step2TxHash, "recovered")
		o.settled(ctx)
	}
	if onComplete != nil {
		onComplete()
	}
}

// restoreFromHistory rebuilds the in-memory state for a resumed entry.
func (o *Orchestrator) restoreFromHistory(item historyDomain.Item, step int) {
	from1, _ := item.Direction.Step1Chains()
	from2, _ := item.Direction.Step2Chains()
	records := []domain.TransactionRecord{{
		Step:        1,
		Status:      domain.TxStatusConfirming,
		ChainName:   from1,
		TxHash:      item.Step1TxHash,
		ExplorerURL: domain.ExplorerURL(item.Step1TxHash, from1),
		Message:     "Waiting for confirmation...",
	}}
	current := domain.Step1Confirming
	if step == 2 {
		records[0].Status = domain.TxStatusSuccess
		records[0].Message = "Transfer complete"
		records = append(records, domain.TransactionRecord{
			Step:        2,
			Status:      domain.TxStatusConfirming,
			ChainName:   from2,
			TxHash:      item.Step2TxHash,
			ExplorerURL: domain.ExplorerURL(item.Step2TxHash, from2),
			Message:     "Waiting for confirmation...",
		})
		current = domain.Step2Confirming
	}
	direction := item.Direction
	amount := item.Amount
	o.state.SetTransactions(records)
	o.state.Update(domain.StateUpdate{Step: &current, Direction: &direction, Amount: &amount})
}

// Resume continues an interrupted transfer from history: polling for a
// submitted step, then step 2 when it has not been sent yet. An item that
// stopped mid step 2 signature is only restored; it returns
// RECOVERY_NEEDS_RETRY and leaves the retry to the user.
func (o *Orchestrator) Resume(ctx context.Context, item historyDomain.Item) error {
	if _, err := o.flow(item.Direction); err != nil {
		return err
	}
	if item.ResumePhase() == historyDomain.ResumeRestore {
		if err := o.RestoreFromHistory(item); err != nil {
			return err
		}
		return apperror.New(apperror.CodeRecoveryNeedsRetry, apperror.WithContext("transfer "+item.ID))
	}
	if err := o.acquire(); err != nil {
		return err
	}
	defer o.end()

	var pollErr error
	onError := func(err error) { pollErr = err }

	switch item.ResumePhase() {
	case historyDomain.ResumeStep1Poll:
		o.ResumeStep1Polling(ctx, item, nil, onError)
		if pollErr != nil {
			return pollErr
		}
		_, err := o.run(ctx, o.flows[item.Direction], item.Amount, 2)
		return err
	case historyDomain.ResumeStep2Start:
		o.SetCurrentTransactionID(item.ID)
		o.restoreFromHistory(item, 1)
		o.state.Update(domain.ToStep(domain.Step1Complete))
		o.state.MapTransactions(func(r domain.TransactionRecord) domain.TransactionRecord {
			r.Status = domain.TxStatusSuccess
			r.Message = "Transfer complete"
			return r
		})
		_, err := o.run(ctx, o.flows[item.Direction], item.Amount, 2)
		return err
	case historyDomain.ResumeStep2Poll:
		o.ResumeStep2Polling(ctx, item, nil, onError)
		return pollErr
	default:
		return apperror.New(apperror.CodeNoFailedStep, apperror.WithContext("transfer "+item.ID+" is not resumable"))
	}
}

// ensureErrorState moves to error when a flow failed before recording it.
func (o *Orchestrator) ensureErrorState(step int, err error) {
	if o.state.State().Step == domain.StepError {
		return
	}
	msg := FormatErrorForUser(err)
	o.state.Update(domain.ToError(msg, ""))

	chain := domain.ChainTorusEVM
	if step == 1 {
		chain, _ = o.state.State().Direction.Step1Chains()
	}
	o.state.AddTransaction(domain.TransactionRecord{
		Step:      step,
		Status:    domain.TxStatusError,
		ChainName: chain,
		Message:   msg,
	})
}

func (o *Orchestrator) settled(ctx context.Context) {
	if o.onSettled != nil {
		o.onSettled(ctx)
	}
}

func (o *Orchestrator) updateHistory(ctx context.Context, patch historyDomain.Patch) {
	id := o.CurrentTransactionID()
	if id == "" || o.history == nil {
		return
	}
	if err := o.history.UpdateTransaction(ctx, id, patch); err != nil {
		o.log.Warn(ctx, "failed to update history entry", "id", id, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, typ EventType, txHash, message string) {
	if o.events == nil {
		return
	}
	st := o.state.State()
	ev := Event{
		Type:          typ,
		TransactionID: o.CurrentTransactionID(),
		Direction:     st.Direction,
		Step:          st.Step,
		Amount:        st.Amount,
		TxHash:        txHash,
		Message:       message,
		Timestamp:     time.Now().UTC(),
	}
	if err := o.events.Publish(ctx, ev); err != nil {
		o.log.Warn(ctx, "failed to publish bridge event", "type", typ, "error", err)
	}
}

func rejectionMessage(err error, fallback string) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ptr[T any](v T) *T { return &v }

// RestoreFromHistory loads a failed or stalled entry into the state so it
// can be retried. Nothing is submitted.
func (o *Orchestrator) RestoreFromHistory(item historyDomain.Item) error {
	if _, err := o.flow(item.Direction); err != nil {
		return err
	}
	if o.IsTransferInProgress() {
		return apperror.New(apperror.CodeTransferInProgress)
	}

	from1, _ := item.Direction.Step1Chains()
	var records []domain.TransactionRecord
	if item.Step1TxHash != "" || item.ErrorStep == 1 {
		r := domain.TransactionRecord{
			Step:        1,
			Status:      domain.TxStatusSuccess,
			ChainName:   from1,
			TxHash:      item.Step1TxHash,
			ExplorerURL: domain.ExplorerURL(item.Step1TxHash, from1),
			Message:     "Transaction confirmed",
		}
		if item.ErrorStep == 1 {
			r.Status = domain.TxStatusError
			r.Message = item.ErrorMessage
			r.ErrorDetails = item.ErrorMessage
		}
		records = append(records, r)
	}
	if item.Step2TxHash != "" || item.ErrorStep == 2 {
		r := domain.TransactionRecord{
			Step:        2,
			ChainName:   domain.ChainTorusEVM,
			TxHash:      item.Step2TxHash,
			ExplorerURL: domain.ExplorerURL(item.Step2TxHash, domain.ChainTorusEVM),
		}
		switch {
		case item.ErrorStep == 2:
			r.Status = domain.TxStatusError
			r.Message = item.ErrorMessage
			r.ErrorDetails = item.ErrorMessage
		case item.Step2TxHash != "":
			r.Status = domain.TxStatusSuccess
			r.Message = "Transaction confirmed"
		}
		records = append(records, r)
	}

	direction := item.Direction
	amount := item.Amount
	update := domain.ToError(item.ErrorMessage, "")
	if item.ErrorStep == 0 {
		update = domain.ToStep(domain.Step1Complete)
	}
	update.Direction = &direction
	update.Amount = &amount

	o.state.SetTransactions(records)
	o.state.Update(update)
	o.SetCurrentTransactionID(item.ID)
	return nil
}
