package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/logger"
)

// The balance-transfer precompile takes the 32-byte public key of the
// destination account and moves msg.value to it.
const withdrawABI = `[{"inputs":[{"name":"data","type":"bytes32"}],"name":"transfer","outputs":[],"stateMutability":"payable","type":"function"}]`

// PublicKeyDecoder turns an SS58 address into its 32-byte public key.
type PublicKeyDecoder func(ss58 string) ([]byte, error)

// Withdrawer implements app.EVMWithdrawer with the Torus EVM precompile.
type Withdrawer struct {
	torus      *Chain
	chains     map[string]*Chain
	wallet     Sender
	precompile common.Address
	decode     PublicKeyDecoder
	abi        abi.ABI

	logger logger.LoggerInterface
	tracer trace.Tracer
}

var _ app.EVMWithdrawer = (*Withdrawer)(nil)

// NewWithdrawer returns a withdrawer on torus. Receipts can be awaited on
// any of chains, looked up by display name.
func NewWithdrawer(torus *Chain, chains []*Chain, wallet Sender, precompile common.Address, decode PublicKeyDecoder, log logger.LoggerInterface) (*Withdrawer, error) {
	parsed, err := abi.JSON(strings.NewReader(withdrawABI))
	if err != nil {
		return nil, fmt.Errorf("parse withdraw abi: %w", err)
	}
	byName := map[string]*Chain{strings.ToLower(torus.Name()): torus}
	for _, c := range chains {
		byName[strings.ToLower(c.Name())] = c
	}
	return &Withdrawer{
		torus:      torus,
		chains:     byName,
		wallet:     wallet,
		precompile: precompile,
		decode:     decode,
		abi:        parsed,
		logger:     log,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// WithdrawToNative implements app.EVMWithdrawer.
func (w *Withdrawer) WithdrawToNative(ctx context.Context, nativeAddress string, amount *big.Int) (string, error) {
	ctx, span := w.tracer.Start(ctx, "evm.withdraw_to_native",
		trace.WithAttributes(
			attribute.String("destination", nativeAddress),
			attribute.String("amount", amount.String()),
		))
	defer span.End()

	pub, err := w.decode(nativeAddress)
	if err != nil || len(pub) != 32 {
		return "", apperror.New(apperror.CodeInvalidAddress,
			apperror.WithCause(err),
			apperror.WithContext(nativeAddress))
	}
	var key [32]byte
	copy(key[:], pub)

	data, err := w.abi.Pack("transfer", key)
	if err != nil {
		return "", apperror.New(apperror.CodeContractCallFailed, apperror.WithCause(err))
	}

	hash, err := w.wallet.Send(ctx, w.torus, TxRequest{
		From:  common.HexToAddress(w.wallet.Address()),
		To:    w.precompile,
		Value: amount,
		Data:  data,
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	w.logger.Info(ctx, "withdraw to native sent", "tx_hash", hash, "destination", nativeAddress)
	return hash, nil
}

// WaitForConfirmations implements app.ReceiptWaiter.
func (w *Withdrawer) WaitForConfirmations(ctx context.Context, chain, txHash string, confirmations uint64) error {
	c, ok := w.chains[strings.ToLower(chain)]
	if !ok {
		return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("unknown chain "+chain))
	}
	return c.WaitForConfirmations(ctx, txHash, confirmations)
}
