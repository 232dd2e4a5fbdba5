package app

import (
	"context"
	"math/big"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/asset"
)

// NativeToBaseFlow moves TORUS from Torus Native to Base: a balance
// transfer to the SS58 mirror of the EVM account, then a Hyperlane
// transfer out of Torus EVM.
type NativeToBaseFlow struct {
	flowBase
}

var _ Flow = (*NativeToBaseFlow)(nil)

// NewNativeToBaseFlow builds the flow over fc.
func NewNativeToBaseFlow(fc *FlowContext) *NativeToBaseFlow {
	return &NativeToBaseFlow{flowBase{FlowContext: fc.withDefaults(), direction: domain.NativeToBase}}
}

// ExecuteStep1 transfers Torus Native -> Torus EVM.
func (f *NativeToBaseFlow) ExecuteStep1(ctx context.Context, amount string, cb StepCallbacks) error {
	return f.traceStep(ctx, 1, func(ctx context.Context) error {
		const chain = domain.ChainTorusNative

		f.setStep(ctx, domain.Step1Preparing, cb)
		f.record(domain.TransactionRecord{
			Step:      1,
			Status:    domain.TxStatusStarting,
			ChainName: chain,
			Message:   "Preparing Native → Torus EVM bridge",
		})

		wei, err := f.parseAmount(amount)
		if err != nil {
			return f.failSign(ctx, 1, chain, "", "Invalid transfer amount", err)
		}
		dest, err := f.Addresses.EVMToNative(f.Wallet.Address())
		if err != nil {
			return f.failSign(ctx, 1, chain, "", "Failed to derive the Torus EVM mirror address", err)
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

		tracker, err := f.Native.Transfer(ctx, dest, wei)
		if err != nil {
			return f.failSign(ctx, 1, chain, "Transaction rejected by user", "Failed to bridge from Native to Torus EVM", err)
		}
		defer tracker.Stop()

		txHash := tracker.TxHash()
		f.setStep(ctx, domain.Step1Confirming, cb)
		f.record(domain.TransactionRecord{
			Step:        1,
			Status:      domain.TxStatusConfirming,
			ChainName:   chain,
			Message:     "Waiting for finalization...",
			TxHash:      txHash,
			ExplorerURL: domain.ExplorerURL(txHash, domain.ChainTorusEVM),
		})
		cb.confirming(ctx, 1, txHash, baseline)

		finalizedHash, err := WithTimeout(ctx, f.Timing.OperationTimeout, "Native bridge transaction timeout",
			func(ctx context.Context) (string, error) {
				return awaitFinalized(ctx, tracker)
			})
		tracker.Stop()
		if err != nil {
			msg := "Native bridge transaction failed"
			if IsTimeout(err) {
				msg = "Native bridge transaction timeout - please retry"
			}
			return f.failConfirm(ctx, 1, chain, txHash, msg, err)
		}
		if finalizedHash != "" {
			txHash = finalizedHash
		}

		res := f.poll(ctx, "Torus EVM (after Native transfer)", f.torusEVMBalance, baseline, wei, false)
		if !res.Success {
			return f.failConfirm(ctx, 1, chain, txHash, pollMessage(res, "Bridge confirmation timeout - tokens may not have arrived in Torus EVM"), nil)
		}

		f.refresh(ctx, chain, f.nativeBalance)

		f.setStep(ctx, domain.Step1Complete, cb)
		f.record(domain.TransactionRecord{
			Step:        1,
			Status:      domain.TxStatusSuccess,
			ChainName:   chain,
			Message:     "Bridge complete - tokens arrived in Torus EVM",
			TxHash:      txHash,
			ExplorerURL: domain.ExplorerURL(txHash, domain.ChainTorusEVM),
		})
		return nil
	})
}

// awaitFinalized consumes tracker events until finalization or failure and
// returns the first hash seen.
func awaitFinalized(ctx context.Context, tracker Tracker) (string, error) {
	var captured string
	for {
		select {
		case <-ctx.Done():
			return captured, ctx.Err()
		case ev, ok := <-tracker.Events():
			if !ok {
				return captured, apperror.New(apperror.CodeExtrinsicDropped,
					apperror.WithMessage("transaction tracking ended before finalization"))
			}
			if captured == "" && ev.TxHash != "" {
				captured = ev.TxHash
			}
			switch ev.Kind {
			case TrackerFinalized:
				return captured, nil
			case TrackerError:
				if ev.Err != nil {
					return captured, ev.Err
				}
				return captured, apperror.New(apperror.CodeExtrinsicDropped)
			}
		}
	}
}

// ExecuteStep2 bridges Torus EVM -> Base.
func (f *NativeToBaseFlow) ExecuteStep2(ctx context.Context, amount string, cb StepCallbacks) error {
	return f.traceStep(ctx, 2, func(ctx context.Context) error {
		const chain = domain.ChainTorusEVM

		token, err := f.Warp.Token(WarpChainTorus, TokenSymbol)
		if err != nil {
			return apperror.New(apperror.CodeTokenNotFound,
				apperror.WithMessage("Torus token not found in warp configuration"), apperror.WithCause(err))
		}

		f.setStep(ctx, domain.Step2Preparing, cb)
		f.record(domain.TransactionRecord{
			Step:      2,
			Status:    domain.TxStatusStarting,
			ChainName: chain,
			Message:   "Preparing Torus EVM → Base transfer",
		})

		if err := f.ensureChain(ctx, 2, f.TorusEVMChainID, chain, cb); err != nil {
			return err
		}

		f.setStep(ctx, domain.Step2Signing, cb)
		f.record(domain.TransactionRecord{
			Step:      2,
			Status:    domain.TxStatusSigning,
			ChainName: chain,
			Message:   "Signing transaction...",
		})

		requested, err := asset.ParseDecimalToBigInt(amount, token.Decimals)
		if err != nil {
			return f.failSign(ctx, 2, chain, "", "Failed to convert amount to wei", err)
		}
		maxAmount, err := f.Warp.MaxTransferAmount(ctx, WarpChainTorus, requested, f.Wallet.Address())
		if err != nil {
			return f.failSign(ctx, 2, chain, "", "Failed to calculate max transfer amount", err)
		}

		baseline, err := f.baseBalance(ctx)
		if err != nil {
			return f.failSign(ctx, 2, chain, "", "Failed to read Base balance", err)
		}

		txHash, err := f.Warp.Transfer(ctx, WarpTransfer{
			Origin:      WarpChainTorus,
			Destination: WarpChainBase,
			Amount:      maxAmount,
			Sender:      f.Wallet.Address(),
			Recipient:   f.Wallet.Address(),
		})
		if err != nil {
			return f.failSign(ctx, 2, chain, "Transaction rejected by user", "Failed to execute Torus EVM → Base transfer", err)
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

		res := f.poll(ctx, "Base", f.baseBalance, baseline, maxAmount, true)
		if !res.Success {
			return f.failConfirm(ctx, 2, chain, txHash, pollMessage(res, "Transfer confirmation failed"), nil)
		}

		f.refresh(ctx, chain, f.torusEVMBalance)

		f.setStep(ctx, domain.StepComplete, cb)
		f.record(domain.TransactionRecord{
			Step:        2,
			Status:      domain.TxStatusSuccess,
			ChainName:   domain.ChainBase,
			Message:     "Transfer complete",
			TxHash:      txHash,
			ExplorerURL: domain.ExplorerURL(txHash, domain.ChainBase),
		})
		return nil
	})
}

// ResumeStep1 waits for a native transfer submitted before a restart.
func (f *NativeToBaseFlow) ResumeStep1(ctx context.Context, amount string, baseline *big.Int) error {
	wei, err := f.parseAmount(amount)
	if err != nil {
		return err
	}
	res := f.poll(ctx, "Native → Torus EVM (F5 recovery)", f.torusEVMBalance, baseline, wei, false)
	if !res.Success {
		return pollFailure(res, "Transfer confirmation failed")
	}

	f.refresh(ctx, domain.ChainTorusNative, f.nativeBalance)
	f.State.Update(domain.ToStep(domain.Step1Complete))
	f.record(domain.TransactionRecord{
		Step:      1,
		Status:    domain.TxStatusSuccess,
		ChainName: domain.ChainTorusNative,
		Message:   "Bridge complete (F5 recovery)",
	})
	return nil
}

// ResumeStep2 waits for a Hyperlane transfer submitted before a restart.
func (f *NativeToBaseFlow) ResumeStep2(ctx context.Context, amount string, baseline *big.Int, txHash string) error {
	wei, err := f.parseAmount(amount)
	if err != nil {
		return err
	}
	res := f.poll(ctx, "Torus EVM → Base (F5 recovery)", f.baseBalance, baseline, wei, true)
	if !res.Success {
		return pollFailure(res, "Transfer confirmation failed")
	}

	f.refresh(ctx, domain.ChainTorusEVM, f.torusEVMBalance)
	f.State.Update(domain.ToStep(domain.StepComplete))
	f.record(domain.TransactionRecord{
		Step:      2,
		Status:    domain.TxStatusSuccess,
		ChainName: domain.ChainBase,
		Message:   "Transfer complete (F5 recovery)",
		TxHash:    txHash,
	})
	return nil
}
