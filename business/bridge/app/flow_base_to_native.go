package app

import (
	"context"
	"math/big"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
)

// BaseToNativeFlow moves TORUS from Base to Torus Native: a Hyperlane
// transfer into Torus EVM, then a withdrawal through the balance-transfer
// precompile.
type BaseToNativeFlow struct {
	flowBase
}

var _ Flow = (*BaseToNativeFlow)(nil)

// NewBaseToNativeFlow builds the flow over fc.
func NewBaseToNativeFlow(fc *FlowContext) *BaseToNativeFlow {
	return &BaseToNativeFlow{flowBase{FlowContext: fc.withDefaults(), direction: domain.BaseToNative}}
}

// ExecuteStep1 bridges Base -> Torus EVM.
func (f *BaseToNativeFlow) ExecuteStep1(ctx context.Context, amount string, cb StepCallbacks) error {
	return f.traceStep(ctx, 1, func(ctx context.Context) error {
		const chain = domain.ChainBase

		f.setStep(ctx, domain.Step1Preparing, cb)
		f.record(domain.TransactionRecord{
			Step:      1,
			Status:    domain.TxStatusStarting,
			ChainName: chain,
			Message:   "Preparing Base → Torus EVM transfer",
		})

		wei, err := f.parseAmount(amount)
		if err != nil {
			return f.failSign(ctx, 1, chain, "", "Invalid transfer amount", err)
		}
		if err := f.ensureChain(ctx, 1, f.BaseChainID, chain, cb); err != nil {
			return err
		}

		baseline, err := f.torusEVMBalance(ctx)
		if err != nil {
			return f.failSign(ctx, 1, chain, "", "Failed to read Torus EVM balance", err)
		}

		f.setStep(ctx, domain.Step1Signing, cb)
		f.record(domain.TransactionRecord{
			Step:      1,
			Status:    domain.TxStatusSigning,
			ChainName: chain,
			Message:   "Signing transaction...",
		})

		txHash, err := f.Warp.Transfer(ctx, WarpTransfer{
			Origin:      WarpChainBase,
			Destination: WarpChainTorus,
			Amount:      wei,
			Sender:      f.Wallet.Address(),
			Recipient:   f.Wallet.Address(),
		})
		if err != nil {
			return f.failSign(ctx, 1, chain, "Transaction rejected by user", "Failed to execute Base → Torus EVM transfer", err)
		}

		f.setStep(ctx, domain.Step1Confirming, cb)
		f.record(domain.TransactionRecord{
			Step:      1,
			Status:    domain.TxStatusConfirming,
			ChainName: chain,
			Message:   "Waiting for confirmation...",
			TxHash:    txHash,
		})
		cb.confirming(ctx, 1, txHash, baseline)

		_, err = WithTimeout(ctx, f.Timing.OperationTimeout, "Base transaction confirmation timeout",
			func(ctx context.Context) (struct{}, error) {
				return struct{}{}, f.Withdrawer.WaitForConfirmations(ctx, chain, txHash, 1)
			})
		if err != nil {
			return f.failConfirm(ctx, 1, chain, txHash, "Base transaction was not confirmed", err)
		}

		res := f.poll(ctx, "Torus EVM (after Base transfer)", f.torusEVMBalance, baseline, wei, false)
		if !res.Success {
			return f.failConfirm(ctx, 1, chain, txHash, pollMessage(res, "Bridge confirmation timeout - tokens may not have arrived in Torus EVM"), nil)
		}

		f.refresh(ctx, chain, f.baseBalance)

		f.setStep(ctx, domain.Step1Complete, cb)
		f.record(domain.TransactionRecord{
			Step:      1,
			Status:    domain.TxStatusSuccess,
			ChainName: chain,
			Message:   "Transfer complete",
			TxHash:    txHash,
		})
		return nil
	})
}

// ExecuteStep2 withdraws Torus EVM -> Torus Native.
func (f *BaseToNativeFlow) ExecuteStep2(ctx context.Context, amount string, cb StepCallbacks) error {
	return f.traceStep(ctx, 2, func(ctx context.Context) error {
		const chain = domain.ChainTorusEVM

		f.setStep(ctx, domain.Step2Preparing, cb)
		f.record(domain.TransactionRecord{
			Step:      2,
			Status:    domain.TxStatusStarting,
			ChainName: chain,
			Message:   "Preparing Torus EVM → Native withdrawal",
		})

		wei, err := f.parseAmount(amount)
		if err != nil {
			return f.failSign(ctx, 2, chain, "", "Invalid transfer amount", err)
		}
		if err := f.ensureChain(ctx, 2, f.TorusEVMChainID, chain, cb); err != nil {
			return err
		}

		f.setStep(ctx, domain.Step2Signing, cb)
		f.record(domain.TransactionRecord{
			Step:      2,
			Status:    domain.TxStatusSigning,
			ChainName: chain,
			Message:   "Signing withdrawal...",
		})

		baseline, err := f.nativeBalance(ctx)
		if err != nil {
			return f.failSign(ctx, 2, chain, "", "Failed to read Torus Native balance", err)
		}

		txHash, err := f.Withdrawer.WithdrawToNative(ctx, f.NativeAddress, wei)
		if err != nil {
			return f.failSign(ctx, 2, chain, "Withdrawal transaction rejected by user", "Failed to withdraw from Torus EVM", err)
		}

		f.setStep(ctx, domain.Step2Confirming, cb)
		f.record(domain.TransactionRecord{
			Step:      2,
			Status:    domain.TxStatusConfirming,
			ChainName: chain,
			Message:   "Waiting for confirmation...",
			TxHash:    txHash,
		})
		cb.confirming(ctx, 2, txHash, baseline)

		_, err = WithTimeout(ctx, f.Timing.OperationTimeout, "Withdrawal confirmation timeout",
			func(ctx context.Context) (struct{}, error) {
				return struct{}{}, f.Withdrawer.WaitForConfirmations(ctx, chain, txHash, f.Timing.RequiredConfirmations)
			})
		if err != nil {
			return f.failConfirm(ctx, 2, chain, txHash, "Withdrawal transaction was not confirmed", err)
		}

		res := f.poll(ctx, "Torus Native (after withdrawal)", f.nativeBalance, baseline, wei, true)
		if !res.Success {
			return f.failConfirm(ctx, 2, chain, txHash, pollMessage(res, "Withdrawal confirmation failed"), nil)
		}

		f.refresh(ctx, chain, f.torusEVMBalance)

		f.setStep(ctx, domain.StepComplete, cb)
		f.record(domain.TransactionRecord{
			Step:      2,
			Status:    domain.TxStatusSuccess,
			ChainName: chain,
			Message:   "Withdrawal complete",
			TxHash:    txHash,
		})
		return nil
	})
}

// ResumeStep1 waits for a step 1 that was submitted before a restart.
func (f *BaseToNativeFlow) ResumeStep1(ctx context.Context, amount string, baseline *big.Int) error {
	wei, err := f.parseAmount(amount)
	if err != nil {
		return err
	}
	res := f.poll(ctx, "Base → Torus EVM (F5 recovery)", f.torusEVMBalance, baseline, wei, false)
	if !res.Success {
		return pollFailure(res, "Transfer confirmation failed")
	}

	f.refresh(ctx, domain.ChainBase, f.baseBalance)
	f.State.Update(domain.ToStep(domain.Step1Complete))
	f.record(domain.TransactionRecord{
		Step:      1,
		Status:    domain.TxStatusSuccess,
		ChainName: domain.ChainBase,
		Message:   "Transfer complete (F5 recovery)",
	})
	return nil
}

// ResumeStep2 waits for a withdrawal that was submitted before a restart.
func (f *BaseToNativeFlow) ResumeStep2(ctx context.Context, amount string, baseline *big.Int, txHash string) error {
	wei, err := f.parseAmount(amount)
	if err != nil {
		return err
	}
	res := f.poll(ctx, "Torus EVM → Native (F5 recovery)", f.nativeBalance, baseline, wei, false)
	if !res.Success {
		return pollFailure(res, "Withdrawal confirmation failed")
	}

	f.refresh(ctx, domain.ChainTorusEVM, f.torusEVMBalance)
	f.State.Update(domain.ToStep(domain.StepComplete))
	f.record(domain.TransactionRecord{
		Step:      2,
		Status:    domain.TxStatusSuccess,
		ChainName: domain.ChainTorusEVM,
		Message:   "Withdrawal complete (F5 recovery)",
		TxHash:    txHash,
	})
	return nil
}
