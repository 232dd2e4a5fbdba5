package substrate

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/centrifuge/go-substrate-rpc-client/v4/xxhash"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/cache"
	"github.com/fd1az/torus-bridge/internal/circuitbreaker"
	"github.com/fd1az/torus-bridge/internal/logger"
	"github.com/fd1az/torus-bridge/internal/metrics"
	"github.com/fd1az/torus-bridge/internal/ratelimit"
	"github.com/fd1az/torus-bridge/internal/wsconn"
)

const (
	tracerName = "github.com/fd1az/torus-bridge/business/bridge/infra/substrate"
	chainLabel = "Torus Native"

	transferCall = "Balances.transfer_allow_death"
	metadataKey  = "metadata"
	metadataTTL  = 10 * time.Minute
)

// Subscription is a live JSON-RPC subscription.
type Subscription interface {
	Notifications() <-chan json.RawMessage
	Done() <-chan struct{}
	Unsubscribe(ctx context.Context) error
}

// RPC is the JSON-RPC transport the client talks through.
type RPC interface {
	Call(ctx context.Context, result any, method string, params ...any) error
	Subscribe(ctx context.Context, method, unsubscribeMethod string, params ...any) (Subscription, error)
	Close() error
}

// wsRPC adapts wsconn.RPC to RPC.
type wsRPC struct{ *wsconn.RPC }

func (w wsRPC) Subscribe(ctx context.Context, method, unsubscribeMethod string, params ...any) (Subscription, error) {
	sub, err := w.RPC.Subscribe(ctx, method, unsubscribeMethod, params...)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Config holds the Torus Native connection settings.
type Config struct {
	WebSocketURL   string
	SS58Prefix     uint16
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
}

// runtimeVersion is the subset of state_getRuntimeVersion the signer needs.
type runtimeVersion struct {
	SpecVersion        uint32 `json:"specVersion"`
	TransactionVersion uint32 `json:"transactionVersion"`
}

// accountInfo is frame_system::AccountInfo with pallet_balances::AccountData.
type accountInfo struct {
	Nonce       types.U32
	Consumers   types.U32
	Providers   types.U32
	Sufficients types.U32
	Free        types.U128
	Reserved    types.U128
	Frozen      types.U128
	Flags       types.U128
}

// Client implements app.NativeChain.
type Client struct {
	config  Config
	logger  logger.LoggerInterface
	keyring *signature.KeyringPair

	rpc   RPC
	rpcMu sync.RWMutex

	meta    *cache.Cache[string, *types.Metadata]
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[json.RawMessage]

	tracer  trace.Tracer
	metrics *metrics.BridgeInstruments
}

var _ app.NativeChain = (*Client)(nil)

// NewClient returns a disconnected client. seed may be empty for a
// read-only client; Transfer then fails.
func NewClient(cfg Config, seed string, log logger.LoggerInterface, m *metrics.BridgeInstruments) (*Client, error) {
	if cfg.SS58Prefix == 0 {
		cfg.SS58Prefix = DefaultSS58Prefix
	}
	c := &Client{
		config:  cfg,
		logger:  log,
		meta:    cache.New[string, *types.Metadata](metadataTTL),
		limiter: ratelimit.New("torus-native", cfg.RateLimit, cfg.RateBurst),
		cb:      circuitbreaker.New[json.RawMessage](circuitbreaker.DefaultConfig("torus-native")),
		tracer:  otel.Tracer(tracerName),
		metrics: m,
	}
	if seed != "" {
		kp, err := signature.KeyringPairFromSecret(seed, cfg.SS58Prefix)
		if err != nil {
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithCause(err),
				apperror.WithContext("invalid native seed"))
		}
		c.keyring = &kp
	}
	return c, nil
}

// NewClientWithRPC returns a client bound to rpc.
func NewClientWithRPC(cfg Config, seed string, rpc RPC, log logger.LoggerInterface, m *metrics.BridgeInstruments) (*Client, error) {
	c, err := NewClient(cfg, seed, log, m)
	if err != nil {
		return nil, err
	}
	c.rpc = rpc
	return c, nil
}

// Address returns the SS58 address of the signing account, or "" for a
// read-only client.
func (c *Client) Address() string {
	if c.keyring == nil {
		return ""
	}
	return EncodeSS58(c.keyring.PublicKey, c.config.SS58Prefix)
}

// IsConnected reports whether Connect succeeded.
func (c *Client) IsConnected() bool {
	c.rpcMu.RLock()
	defer c.rpcMu.RUnlock()
	return c.rpc != nil
}

// Connect dials the websocket endpoint.
func (c *Client) Connect(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "substrate.connect",
		trace.WithAttributes(attribute.String("url", c.config.WebSocketURL)))
	defer span.End()

	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	rpc, err := wsconn.Dial(ctx, wsconn.DefaultConfig(c.config.WebSocketURL, "torus-native"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return apperror.New(apperror.CodeSubstrateConnection, apperror.WithCause(err))
	}

	c.rpcMu.Lock()
	c.rpc = wsRPC{rpc}
	c.rpcMu.Unlock()

	span.SetStatus(codes.Ok, "connected")
	c.logger.Info(ctx, "torus native connected", "url", c.config.WebSocketURL)
	return nil
}

func (c *Client) transport() (RPC, error) {
	c.rpcMu.RLock()
	defer c.rpcMu.RUnlock()
	if c.rpc == nil {
		return nil, apperror.New(apperror.CodeSubstrateConnection, apperror.WithContext("not connected"))
	}
	return c.rpc, nil
}

// call runs one JSON-RPC request through the limiter and breaker.
func (c *Client) call(ctx context.Context, result any, method string, params ...any) error {
	rpc, err := c.transport()
	if err != nil {
		return err
	}
	if c.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	raw, err := c.cb.Execute(func() (json.RawMessage, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		var out json.RawMessage
		err := rpc.Call(ctx, &out, method, params...)
		return out, err
	})
	if err != nil {
		c.metrics.RPCError(ctx, chainLabel, method)
		if apperror.HasCode(err, apperror.CodeCircuitOpen) {
			return err
		}
		return apperror.New(apperror.CodeSubstrateRPCError,
			apperror.WithCause(err),
			apperror.WithContext(method))
	}
	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return apperror.New(apperror.CodeSubstrateRPCError,
			apperror.WithCause(err),
			apperror.WithContext("decode "+method))
	}
	return nil
}

// accountKey is the System.Account storage key of pub:
// twox128("System") ++ twox128("Account") ++ blake2_128(pub) ++ pub.
func accountKey(pub []byte) (string, error) {
	h, err := blake2b.New(16, nil)
	if err != nil {
		return "", err
	}
	h.Write(pub)

	key := xxhash.New128([]byte("System")).Sum(nil)
	key = append(key, xxhash.New128([]byte("Account")).Sum(nil)...)
	key = append(key, h.Sum(nil)...)
	key = append(key, pub...)
	return codec.HexEncodeToString(key), nil
}

// FreeBalance implements app.NativeChain.
func (c *Client) FreeBalance(ctx context.Context, address string) (*big.Int, error) {
	ctx, span := c.tracer.Start(ctx, "substrate.free_balance",
		trace.WithAttributes(attribute.String("account", address)))
	defer span.End()

	pub, err := DecodeSS58(address)
	if err != nil {
		return nil, err
	}
	key, err := accountKey(pub)
	if err != nil {
		return nil, apperror.New(apperror.CodeSubstrateEncodingFailed, apperror.WithCause(err))
	}

	var data *string
	if err := c.call(ctx, &data, "state_getStorage", key); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if data == nil || *data == "" || *data == "0x" {
		return new(big.Int), nil
	}

	var info accountInfo
	if err := codec.DecodeFromHex(*data, &info); err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodeSubstrateEncodingFailed,
			apperror.WithCause(err),
			apperror.WithContext("decode System.Account"))
	}
	free := new(big.Int).Set(info.Free.Int)
	span.SetAttributes(attribute.String("free", free.String()))
	return free, nil
}

func (c *Client) metadata(ctx context.Context) (*types.Metadata, error) {
	if m, ok := c.meta.Get(ctx, metadataKey); ok {
		return m, nil
	}
	var raw string
	if err := c.call(ctx, &raw, "state_getMetadata"); err != nil {
		return nil, err
	}
	var m types.Metadata
	if err := codec.DecodeFromHex(raw, &m); err != nil {
		return nil, apperror.New(apperror.CodeSubstrateEncodingFailed,
			apperror.WithCause(err),
			apperror.WithContext("decode metadata"))
	}
	c.meta.Set(ctx, metadataKey, &m, metadataTTL)
	return &m, nil
}

// Transfer implements app.NativeChain. It signs
// Balances.transfer_allow_death with an immortal era and watches it.
func (c *Client) Transfer(ctx context.Context, dest string, amount *big.Int) (app.Tracker, error) {
	ctx, span := c.tracer.Start(ctx, "substrate.transfer",
		trace.WithAttributes(
			attribute.String("destination", dest),
			attribute.String("amount", amount.String()),
		))
	defer span.End()

	if c.keyring == nil {
		return nil, apperror.New(apperror.CodeWalletNotConnected, apperror.WithContext("no native signer configured"))
	}
	destPub, err := DecodeSS58(dest)
	if err != nil {
		return nil, err
	}

	ext, err := c.signedTransfer(ctx, destPub, amount)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	encoded, err := codec.Encode(ext)
	if err != nil {
		return nil, apperror.New(apperror.CodeSubstrateEncodingFailed, apperror.WithCause(err))
	}
	hash := blake2b.Sum256(encoded)
	txHash := codec.HexEncodeToString(hash[:])

	rpc, err := c.transport()
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	sub, err := rpc.Subscribe(ctx, "author_submitAndWatchExtrinsic", "author_unwatchExtrinsic", codec.HexEncodeToString(encoded))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		c.metrics.RPCError(ctx, chainLabel, "author_submitAndWatchExtrinsic")
		return nil, err
	}

	span.SetAttributes(attribute.String("tx_hash", txHash))
	span.SetStatus(codes.Ok, "submitted")
	c.logger.Info(ctx, "native transfer submitted", "tx_hash", txHash, "destination", dest)
	return newTracker(txHash, sub, c.logger), nil
}

func (c *Client) signedTransfer(ctx context.Context, destPub []byte, amount *big.Int) (types.Extrinsic, error) {
	meta, err := c.metadata(ctx)
	if err != nil {
		return types.Extrinsic{}, err
	}
	to, err := types.NewMultiAddressFromAccountID(destPub)
	if err != nil {
		return types.Extrinsic{}, apperror.New(apperror.CodeInvalidAddress, apperror.WithCause(err))
	}
	call, err := types.NewCall(meta, transferCall, to, types.NewUCompact(amount))
	if err != nil {
		return types.Extrinsic{}, apperror.New(apperror.CodeSubstrateEncodingFailed,
			apperror.WithCause(err),
			apperror.WithContext(transferCall))
	}

	var genesisHex string
	if err := c.call(ctx, &genesisHex, "chain_getBlockHash", 0); err != nil {
		return types.Extrinsic{}, err
	}
	genesis, err := types.NewHashFromHexString(genesisHex)
	if err != nil {
		return types.Extrinsic{}, apperror.New(apperror.CodeSubstrateEncodingFailed, apperror.WithCause(err))
	}

	var rv runtimeVersion
	if err := c.call(ctx, &rv, "state_getRuntimeVersion"); err != nil {
		return types.Extrinsic{}, err
	}

	var nonce uint64
	if err := c.call(ctx, &nonce, "system_accountNextIndex", c.Address()); err != nil {
		return types.Extrinsic{}, err
	}

	ext := types.NewExtrinsic(call)
	opts := types.SignatureOptions{
		BlockHash:          genesis,
		Era:                types.ExtrinsicEra{IsMortalEra: false},
		GenesisHash:        genesis,
		Nonce:              types.NewUCompactFromUInt(nonce),
		SpecVersion:        types.U32(rv.SpecVersion),
		Tip:                types.NewUCompactFromUInt(0),
		TransactionVersion: types.U32(rv.TransactionVersion),
	}
	if err := ext.Sign(*c.keyring, opts); err != nil {
		return types.Extrinsic{}, apperror.New(apperror.CodeSubstrateEncodingFailed,
			apperror.WithCause(err),
			apperror.WithContext("sign extrinsic"))
	}
	return ext, nil
}

// Ping reports the node's health, for health checks.
func (c *Client) Ping(ctx context.Context) (string, error) {
	var health struct {
		Peers     int  `json:"peers"`
		IsSyncing bool `json:"isSyncing"`
	}
	if err := c.call(ctx, &health, "system_health"); err != nil {
		return "", err
	}
	if health.IsSyncing {
		return "", fmt.Errorf("node is syncing")
	}
	return fmt.Sprintf("%d peers", health.Peers), nil
}

// Close drops the connection.
func (c *Client) Close() error {
	c.meta.Close()
	c.rpcMu.Lock()
	defer c.rpcMu.Unlock()
	if c.rpc == nil {
		return nil
	}
	err := c.rpc.Close()
	c.rpc = nil
	return err
}
