package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/cache"
	"github.com/fd1az/torus-bridge/internal/logger"
)

const warpRouterABI = `[
{"inputs":[{"name":"destination","type":"uint32"},{"name":"recipient","type":"bytes32"},{"name":"amount","type":"uint256"}],"name":"transferRemote","outputs":[{"name":"messageId","type":"bytes32"}],"stateMutability":"payable","type":"function"},
{"inputs":[{"name":"destinationDomain","type":"uint32"}],"name":"quoteGasPayment","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// WarpRoute is one side of a Hyperlane warp route.
type WarpRoute struct {
	Chain    string // Hyperlane chain name, "base" or "torus"
	Symbol   string
	Router   common.Address
	Domain   uint32
	Decimals uint8
	// Native is true when the router holds the chain's native coin, so the
	// transferred amount travels as msg.value.
	Native bool
	EVM    *Chain
}

// Warp implements app.WarpRouter over Hyperlane HypERC20 and HypNative
// routers.
type Warp struct {
	routes   map[string]WarpRoute
	wallet   Sender
	abi      abi.ABI
	quotes   *cache.Cache[string, *big.Int]
	quoteTTL time.Duration
	// reserveGas is the gas kept back by MaxTransferAmount for the
	// transferRemote call itself.
	reserveGas uint64

	logger logger.LoggerInterface
	tracer trace.Tracer
}

var _ app.WarpRouter = (*Warp)(nil)

// NewWarp returns a router over routes.
func NewWarp(routes []WarpRoute, wallet Sender, quoteTTL time.Duration, log logger.LoggerInterface) (*Warp, error) {
	parsed, err := abi.JSON(strings.NewReader(warpRouterABI))
	if err != nil {
		return nil, fmt.Errorf("parse warp abi: %w", err)
	}
	byChain := make(map[string]WarpRoute, len(routes))
	for _, r := range routes {
		byChain[strings.ToLower(r.Chain)] = r
	}
	if quoteTTL <= 0 {
		quoteTTL = time.Minute
	}
	return &Warp{
		routes:     byChain,
		wallet:     wallet,
		abi:        parsed,
		quotes:     cache.New[string, *big.Int](5 * time.Minute),
		quoteTTL:   quoteTTL,
		reserveGas: app.GasContractCall * 3,
		logger:     log,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

func (w *Warp) route(chain string) (WarpRoute, error) {
	r, ok := w.routes[strings.ToLower(chain)]
	if !ok {
		return WarpRoute{}, apperror.New(apperror.CodeTokenNotFound,
			apperror.WithContext("no warp route on "+chain))
	}
	return r, nil
}

// Token implements app.WarpRouter.
func (w *Warp) Token(chain, symbol string) (app.WarpToken, error) {
	r, err := w.route(chain)
	if err != nil {
		return app.WarpToken{}, err
	}
	if !strings.EqualFold(r.Symbol, symbol) {
		return app.WarpToken{}, apperror.New(apperror.CodeTokenNotFound,
			apperror.WithContext(fmt.Sprintf("%s on %s", symbol, chain)))
	}
	return app.WarpToken{
		Chain:    r.Chain,
		Symbol:   r.Symbol,
		Address:  r.Router.Hex(),
		ChainID:  r.EVM.ID(),
		Decimals: r.Decimals,
	}, nil
}

// destination returns the other side of the route.
func (w *Warp) destination(origin string) (WarpRoute, error) {
	for name, r := range w.routes {
		if name != strings.ToLower(origin) {
			return r, nil
		}
	}
	return WarpRoute{}, apperror.New(apperror.CodeTokenNotFound,
		apperror.WithContext("no destination for "+origin))
}

// QuoteGasPayment returns the interchain gas fee for sending from origin to
// destination, cached for the quote TTL.
func (w *Warp) QuoteGasPayment(ctx context.Context, origin WarpRoute, destination uint32) (*big.Int, error) {
	ctx, span := w.tracer.Start(ctx, "warp.quote_gas_payment",
		trace.WithAttributes(
			attribute.String("origin", origin.Chain),
			attribute.Int64("destination", int64(destination)),
		))
	defer span.End()

	key := fmt.Sprintf("%s:%d", origin.Chain, destination)
	if fee, ok := w.quotes.Get(ctx, key); ok {
		span.AddEvent("cache_hit")
		return new(big.Int).Set(fee), nil
	}

	data, err := w.abi.Pack("quoteGasPayment", destination)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed, apperror.WithCause(err))
	}
	out, err := origin.EVM.Call(ctx, origin.Router, data)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	vals, err := w.abi.Unpack("quoteGasPayment", out)
	if err != nil || len(vals) == 0 {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext("decode quoteGasPayment"))
	}
	fee, ok := vals[0].(*big.Int)
	if !ok {
		return nil, apperror.New(apperror.CodeContractCallFailed, apperror.WithContext("quoteGasPayment returned a non-integer"))
	}

	w.quotes.Set(ctx, key, fee, w.quoteTTL)
	span.SetAttributes(attribute.String("fee", fee.String()))
	return new(big.Int).Set(fee), nil
}

// MaxTransferAmount implements app.WarpRouter. On a native route the
// interchain fee and the gas of the call are paid in the transferred coin
// and come off balance; synthetic routes pay fees in the chain's own coin.
func (w *Warp) MaxTransferAmount(ctx context.Context, origin string, balance *big.Int, sender string) (*big.Int, error) {
	ctx, span := w.tracer.Start(ctx, "warp.max_transfer_amount",
		trace.WithAttributes(attribute.String("origin", origin)))
	defer span.End()

	r, err := w.route(origin)
	if err != nil {
		return nil, err
	}
	if !r.Native {
		return new(big.Int).Set(balance), nil
	}
	dest, err := w.destination(origin)
	if err != nil {
		return nil, err
	}

	fee, err := w.QuoteGasPayment(ctx, r, dest.Domain)
	if err != nil {
		return nil, err
	}
	gasCost, err := r.EVM.MaxFeeCost(ctx, w.reserveGas)
	if err != nil {
		return nil, err
	}

	limit := new(big.Int).Sub(balance, fee)
	limit.Sub(limit, gasCost)
	if limit.Sign() <= 0 {
		err := apperror.New(apperror.CodeInsufficientFunds,
			apperror.WithMessage("Amount does not cover the bridge fee"),
			apperror.WithContext(fmt.Sprintf("balance %s, fee %s, gas %s", balance, fee, gasCost)))
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("max", limit.String()))
	w.logger.Debug(ctx, "warp max transfer amount", "origin", origin, "requested", balance.String(), "max", limit.String())
	return limit, nil
}

// Transfer implements app.WarpRouter.
func (w *Warp) Transfer(ctx context.Context, req app.WarpTransfer) (string, error) {
	ctx, span := w.tracer.Start(ctx, "warp.transfer_remote",
		trace.WithAttributes(
			attribute.String("origin", req.Origin),
			attribute.String("destination", req.Destination),
			attribute.String("amount", req.Amount.String()),
		))
	defer span.End()

	origin, err := w.route(req.Origin)
	if err != nil {
		return "", err
	}
	dest, err := w.route(req.Destination)
	if err != nil {
		return "", err
	}
	if !common.IsHexAddress(req.Recipient) {
		return "", apperror.New(apperror.CodeInvalidAddress, apperror.WithContext(req.Recipient))
	}

	fee, err := w.QuoteGasPayment(ctx, origin, dest.Domain)
	if err != nil {
		return "", err
	}
	value := fee
	if origin.Native {
		value = new(big.Int).Add(fee, req.Amount)
	}

	var recipient [32]byte
	copy(recipient[12:], common.HexToAddress(req.Recipient).Bytes())
	data, err := w.abi.Pack("transferRemote", dest.Domain, recipient, req.Amount)
	if err != nil {
		return "", apperror.New(apperror.CodeContractCallFailed, apperror.WithCause(err))
	}

	hash, err := w.wallet.Send(ctx, origin.EVM, TxRequest{
		From:  common.HexToAddress(req.Sender),
		To:    origin.Router,
		Value: value,
		Data:  data,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transferRemote failed")
		return "", err
	}

	span.SetAttributes(attribute.String("tx_hash", hash))
	span.SetStatus(codes.Ok, "sent")
	w.logger.Info(ctx, "warp transfer sent", "origin", req.Origin, "destination", req.Destination, "tx_hash", hash)
	return hash, nil
}

// Close stops the quote cache.
func (w *Warp) Close() {
	w.quotes.Close()
}
