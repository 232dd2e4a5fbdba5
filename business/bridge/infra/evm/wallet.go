package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/logger"
)

// Sender is an EVM wallet that can also sign and submit transactions.
type Sender interface {
	app.EVMWallet
	// Send submits req on chain and returns the transaction hash. The
	// wallet must currently be on chain.
	Send(ctx context.Context, chain *Chain, req TxRequest) (string, error)
}

// errUnknownChain mirrors EIP-3085's "unrecognized chain" code.
type errUnknownChain struct{ chainID uint64 }

func (e errUnknownChain) Error() string  { return fmt.Sprintf("unrecognized chain id %d", e.chainID) }
func (e errUnknownChain) ErrorCode() int { return 4902 }

// LocalWallet signs with a private key held in memory. Switching chains
// only moves its notion of the active chain.
type LocalWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	known   map[uint64]bool
	log     logger.LoggerInterface

	mu      sync.RWMutex
	current uint64
}

var _ Sender = (*LocalWallet)(nil)

// NewLocalWallet parses a hex private key. The wallet starts on initial and
// may switch between the given chains.
func NewLocalWallet(hexKey string, initial uint64, chains []uint64, log logger.LoggerInterface) (*LocalWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("invalid evm private key"))
	}
	known := make(map[uint64]bool, len(chains)+1)
	for _, id := range chains {
		known[id] = true
	}
	known[initial] = true
	return &LocalWallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		known:   known,
		log:     log,
		current: initial,
	}, nil
}

// Address implements app.EVMWallet.
func (w *LocalWallet) Address() string { return w.address.Hex() }

// ChainID implements app.EVMWallet.
func (w *LocalWallet) ChainID(ctx context.Context) (uint64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current, nil
}

// SwitchChain implements app.EVMWallet.
func (w *LocalWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	if !w.known[chainID] {
		return errUnknownChain{chainID: chainID}
	}
	w.mu.Lock()
	w.current = chainID
	w.mu.Unlock()
	w.log.Debug(ctx, "local wallet switched chain", "chain_id", chainID)
	return nil
}

// Send implements Sender.
func (w *LocalWallet) Send(ctx context.Context, chain *Chain, req TxRequest) (string, error) {
	if current, _ := w.ChainID(ctx); current != chain.ID() {
		return "", apperror.New(apperror.CodeInvalidState,
			apperror.WithContext(fmt.Sprintf("wallet is on chain %d, not %s", current, chain.Name())))
	}
	req.From = w.address
	tx, err := chain.BuildTx(ctx, req)
	if err != nil {
		return "", err
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(new(big.Int).SetUint64(chain.ID())), w.key)
	if err != nil {
		return "", apperror.New(apperror.CodeTransactionFailed, apperror.WithCause(err))
	}
	if err := chain.SendSigned(ctx, signed); err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}

// RPCWallet delegates signing to an external wallet that speaks the
// EIP-1193 JSON-RPC methods (eth_accounts, eth_chainId,
// wallet_switchEthereumChain, eth_sendTransaction). Rejections come back as
// JSON-RPC errors with code 4001.
type RPCWallet struct {
	client  *rpc.Client
	address common.Address
	log     logger.LoggerInterface
}

var _ Sender = (*RPCWallet)(nil)

// DialRPCWallet connects to the signer at url and reads its first account.
func DialRPCWallet(ctx context.Context, url string, log logger.LoggerInterface) (*RPCWallet, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, apperror.New(apperror.CodeEVMConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("evm signer"))
	}
	var accounts []common.Address
	if err := client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		client.Close()
		return nil, apperror.New(apperror.CodeEVMRPCError, apperror.WithCause(err), apperror.WithContext("eth_accounts"))
	}
	if len(accounts) == 0 {
		client.Close()
		return nil, apperror.New(apperror.CodeWalletNotConnected, apperror.WithContext("signer exposes no accounts"))
	}
	log.Info(ctx, "evm signer connected", "address", accounts[0].Hex())
	return &RPCWallet{client: client, address: accounts[0], log: log}, nil
}

// Address implements app.EVMWallet.
func (w *RPCWallet) Address() string { return w.address.Hex() }

// ChainID implements app.EVMWallet.
func (w *RPCWallet) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := w.client.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// SwitchChain implements app.EVMWallet.
func (w *RPCWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	params := map[string]string{"chainId": hexutil.EncodeUint64(chainID)}
	return w.client.CallContext(ctx, nil, "wallet_switchEthereumChain", params)
}

// Send implements Sender. Gas and fees are left to the signer.
func (w *RPCWallet) Send(ctx context.Context, chain *Chain, req TxRequest) (string, error) {
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	call := map[string]any{
		"from":  w.address,
		"to":    req.To,
		"value": (*hexutil.Big)(value),
		"data":  hexutil.Bytes(req.Data),
	}
	var hash common.Hash
	if err := w.client.CallContext(ctx, &hash, "eth_sendTransaction", call); err != nil {
		w.log.Warn(ctx, "signer rejected transaction", "chain", chain.Name(), "error", err)
		return "", err
	}
	return hash.Hex(), nil
}

// Close drops the signer connection.
func (w *RPCWallet) Close() {
	w.client.Close()
}
