// Package evm implements the bridge ports for Base and Torus EVM on top of
// go-ethereum.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/circuitbreaker"
	"github.com/fd1az/torus-bridge/internal/logger"
	"github.com/fd1az/torus-bridge/internal/metrics"
	"github.com/fd1az/torus-bridge/internal/ratelimit"
)

const (
	tracerName       = "github.com/fd1az/torus-bridge/business/bridge/infra/evm"
	defaultGasBuffer = 20 // percent
)

// receiptPollInterval is how often WaitForConfirmations asks for a receipt.
var receiptPollInterval = 2 * time.Second

const erc20ABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// Backend is the part of ethclient.Client a Chain uses.
type Backend interface {
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer1559
	ethereum.TransactionSender
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// ChainConfig describes one EVM chain.
type ChainConfig struct {
	Name        string // display name, e.g. "Base"
	RPCURL      string
	ChainID     uint64
	RateLimit   float64
	RateBurst   int
	DialTimeout time.Duration
	// GasBuffer is the percentage added to estimated gas. 0 means 20.
	GasBuffer uint64
}

// Chain is a rate limited, circuit broken RPC client for one chain.
type Chain struct {
	config ChainConfig
	logger logger.LoggerInterface

	client   Backend
	clientMu sync.RWMutex

	limiter *ratelimit.Limiter
	bigCB   *circuitbreaker.CircuitBreaker[*big.Int]
	u64CB   *circuitbreaker.CircuitBreaker[uint64]
	bytesCB *circuitbreaker.CircuitBreaker[[]byte]

	erc20   abi.ABI
	tracer  trace.Tracer
	metrics *metrics.BridgeInstruments
}

// NewChain returns a disconnected chain client.
func NewChain(cfg ChainConfig, log logger.LoggerInterface, m *metrics.BridgeInstruments) (*Chain, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	name := strings.ToLower(strings.ReplaceAll(cfg.Name, " ", "-"))
	return &Chain{
		config:  cfg,
		logger:  log,
		limiter: ratelimit.New(name, cfg.RateLimit, cfg.RateBurst),
		bigCB:   circuitbreaker.New[*big.Int](circuitbreaker.DefaultConfig(name + "-balance")),
		u64CB:   circuitbreaker.New[uint64](circuitbreaker.DefaultConfig(name + "-block")),
		bytesCB: circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig(name + "-call")),
		erc20:   parsed,
		tracer:  otel.Tracer(tracerName),
		metrics: m,
	}, nil
}

// NewChainWithBackend returns a chain already bound to backend.
func NewChainWithBackend(cfg ChainConfig, backend Backend, log logger.LoggerInterface, m *metrics.BridgeInstruments) (*Chain, error) {
	c, err := NewChain(cfg, log, m)
	if err != nil {
		return nil, err
	}
	c.client = backend
	return c, nil
}

// Name returns the display name of the chain.
func (c *Chain) Name() string { return c.config.Name }

// ID returns the configured chain id.
func (c *Chain) ID() uint64 { return c.config.ChainID }

// Connect dials the RPC endpoint.
func (c *Chain) Connect(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "evm.connect",
		trace.WithAttributes(attribute.String("chain", c.config.Name)),
	)
	defer span.End()

	if c.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.DialTimeout)
		defer cancel()
	}

	client, err := ethclient.DialContext(ctx, c.config.RPCURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return apperror.New(apperror.CodeEVMConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
	}

	c.clientMu.Lock()
	c.client = client
	c.clientMu.Unlock()

	span.SetStatus(codes.Ok, "connected")
	c.logger.Info(ctx, "evm chain connected", "chain", c.config.Name, "url", c.config.RPCURL)
	return nil
}

func (c *Chain) backend() (Backend, error) {
	c.clientMu.RLock()
	defer c.clientMu.RUnlock()
	if c.client == nil {
		return nil, apperror.New(apperror.CodeEVMConnectionFailed,
			apperror.WithContext(c.config.Name+" not connected"))
	}
	return c.client, nil
}

func (c *Chain) rpcError(ctx context.Context, span trace.Span, method string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, method+" failed")
	c.metrics.RPCError(ctx, c.config.Name, method)
	if apperror.HasCode(err, apperror.CodeCircuitOpen) {
		return err
	}
	return apperror.New(apperror.CodeEVMRPCError,
		apperror.WithCause(err),
		apperror.WithContext(fmt.Sprintf("%s %s", c.config.Name, method)))
}

// BlockNumber returns the latest block number.
func (c *Chain) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, span := c.tracer.Start(ctx, "evm.block_number",
		trace.WithAttributes(attribute.String("chain", c.config.Name)))
	defer span.End()

	client, err := c.backend()
	if err != nil {
		return 0, err
	}
	n, err := c.u64CB.Execute(func() (uint64, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}
		return client.BlockNumber(ctx)
	})
	if err != nil {
		return 0, c.rpcError(ctx, span, "eth_blockNumber", err)
	}
	return n, nil
}

// NativeBalance returns the balance of the chain's native coin.
func (c *Chain) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	ctx, span := c.tracer.Start(ctx, "evm.native_balance",
		trace.WithAttributes(
			attribute.String("chain", c.config.Name),
			attribute.String("account", account.Hex()),
		))
	defer span.End()

	client, err := c.backend()
	if err != nil {
		return nil, err
	}
	bal, err := c.bigCB.Execute(func() (*big.Int, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return client.BalanceAt(ctx, account, nil)
	})
	if err != nil {
		return nil, c.rpcError(ctx, span, "eth_getBalance", err)
	}
	span.SetAttributes(attribute.String("balance", bal.String()))
	return bal, nil
}

// TokenBalance returns the ERC-20 balance of account at token.
func (c *Chain) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	ctx, span := c.tracer.Start(ctx, "evm.token_balance",
		trace.WithAttributes(
			attribute.String("chain", c.config.Name),
			attribute.String("token", token.Hex()),
		))
	defer span.End()

	data, err := c.erc20.Pack("balanceOf", account)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed, apperror.WithCause(err))
	}
	out, err := c.Call(ctx, token, data)
	if err != nil {
		return nil, err
	}
	vals, err := c.erc20.Unpack("balanceOf", out)
	if err != nil || len(vals) == 0 {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext("decode balanceOf"))
	}
	bal, ok := vals[0].(*big.Int)
	if !ok {
		return nil, apperror.New(apperror.CodeContractCallFailed, apperror.WithContext("balanceOf returned a non-integer"))
	}
	return bal, nil
}

// Call runs a read-only contract call against the latest block.
func (c *Chain) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "evm.call",
		trace.WithAttributes(
			attribute.String("chain", c.config.Name),
			attribute.String("to", to.Hex()),
		))
	defer span.End()

	client, err := c.backend()
	if err != nil {
		return nil, err
	}
	out, err := c.bytesCB.Execute(func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	if err != nil {
		return nil, c.rpcError(ctx, span, "eth_call", err)
	}
	return out, nil
}

// TxRequest is an unsigned call to send from an account.
type TxRequest struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

// BuildTx fills nonce, gas and EIP-1559 fees for req. The estimated gas
// limit gets a 20% margin.
func (c *Chain) BuildTx(ctx context.Context, req TxRequest) (*types.Transaction, error) {
	ctx, span := c.tracer.Start(ctx, "evm.build_tx",
		trace.WithAttributes(
			attribute.String("chain", c.config.Name),
			attribute.String("to", req.To.Hex()),
		))
	defer span.End()

	client, err := c.backend()
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := client.PendingNonceAt(ctx, req.From)
	if err != nil {
		return nil, c.rpcError(ctx, span, "eth_getTransactionCount", err)
	}
	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{From: req.From, To: &req.To, Value: value, Data: req.Data})
	if err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodeTransactionFailed,
			apperror.WithCause(err),
			apperror.WithContext("gas estimation failed on "+c.config.Name))
	}
	buffer := c.config.GasBuffer
	if buffer == 0 {
		buffer = defaultGasBuffer
	}
	gas += gas * buffer / 100

	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, c.rpcError(ctx, span, "eth_maxPriorityFeePerGas", err)
	}
	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, c.rpcError(ctx, span, "eth_getBlockByNumber", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(baseFee(head), big.NewInt(2)))

	span.SetAttributes(attribute.Int64("gas", int64(gas)), attribute.Int64("nonce", int64(nonce)))
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(c.config.ChainID),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &req.To,
		Value:     value,
		Data:      req.Data,
	}), nil
}

// MaxFeeCost returns gas * current fee cap, the most a call of gas units
// can cost right now.
func (c *Chain) MaxFeeCost(ctx context.Context, gas uint64) (*big.Int, error) {
	ctx, span := c.tracer.Start(ctx, "evm.max_fee_cost")
	defer span.End()

	client, err := c.backend()
	if err != nil {
		return nil, err
	}
	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, c.rpcError(ctx, span, "eth_maxPriorityFeePerGas", err)
	}
	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, c.rpcError(ctx, span, "eth_getBlockByNumber", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(baseFee(head), big.NewInt(2)))
	return new(big.Int).Mul(feeCap, new(big.Int).SetUint64(gas)), nil
}

func baseFee(head *types.Header) *big.Int {
	if head == nil || head.BaseFee == nil {
		return new(big.Int)
	}
	return head.BaseFee
}

// SendSigned broadcasts a signed transaction.
func (c *Chain) SendSigned(ctx context.Context, tx *types.Transaction) error {
	ctx, span := c.tracer.Start(ctx, "evm.send",
		trace.WithAttributes(
			attribute.String("chain", c.config.Name),
			attribute.String("tx_hash", tx.Hash().Hex()),
		))
	defer span.End()

	client, err := c.backend()
	if err != nil {
		return err
	}
	if err := client.SendTransaction(ctx, tx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		c.metrics.RPCError(ctx, c.config.Name, "eth_sendRawTransaction")
		return err
	}
	span.SetStatus(codes.Ok, "sent")
	return nil
}

// WaitForConfirmations blocks until txHash is mined with a successful status
// and buried under confirmations blocks. A reverted receipt is an error.
func (c *Chain) WaitForConfirmations(ctx context.Context, txHash string, confirmations uint64) error {
	ctx, span := c.tracer.Start(ctx, "evm.wait_confirmations",
		trace.WithAttributes(
			attribute.String("chain", c.config.Name),
			attribute.String("tx_hash", txHash),
			attribute.Int64("confirmations", int64(confirmations)),
		))
	defer span.End()

	client, err := c.backend()
	if err != nil {
		return err
	}
	if confirmations == 0 {
		confirmations = 1
	}
	hash := common.HexToHash(txHash)

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				err := apperror.New(apperror.CodeTransactionFailed,
					apperror.WithMessage("Transaction reverted"),
					apperror.WithContext(txHash))
				span.RecordError(err)
				span.SetStatus(codes.Error, "reverted")
				return err
			}
			head, err := c.BlockNumber(ctx)
			if err == nil && head+1 >= receipt.BlockNumber.Uint64()+confirmations {
				span.SetAttributes(attribute.Int64("block", receipt.BlockNumber.Int64()))
				span.SetStatus(codes.Ok, "confirmed")
				return nil
			}
		case errors.Is(err, ethereum.NotFound):
		default:
			c.logger.Warn(ctx, "receipt lookup failed", "chain", c.config.Name, "tx_hash", txHash, "error", err)
		}

		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			return apperror.New(apperror.CodeReceiptTimeout,
				apperror.WithCause(ctx.Err()),
				apperror.WithContext(txHash))
		case <-ticker.C:
		}
	}
}

// Ping reports the latest block, for health checks.
func (c *Chain) Ping(ctx context.Context) (string, error) {
	n, err := c.BlockNumber(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s block %d", c.config.Name, n), nil
}

// Close drops the RPC connection.
func (c *Chain) Close() error {
	c.clientMu.Lock()
	defer c.clientMu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	return nil
}
