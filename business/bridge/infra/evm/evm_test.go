package evm

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/logger"
)

type mockLogger struct{}

var _ logger.LoggerInterface = (*mockLogger)(nil)

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

// fakeBackend answers the RPC calls a Chain makes.
type fakeBackend struct {
	mu       sync.Mutex
	block    uint64
	balance  *big.Int
	calls    map[common.Address][]byte
	callErr  error
	receipts map[common.Hash]*types.Receipt
	sent     []*types.Transaction
	baseFee  *big.Int
	tip      *big.Int
	gas      uint64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		block:    100,
		balance:  big.NewInt(0),
		calls:    make(map[common.Address][]byte),
		receipts: make(map[common.Hash]*types.Receipt),
		baseFee:  big.NewInt(10),
		tip:      big.NewInt(1),
		gas:      50_000,
	}
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.calls[*msg.To], nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return f.gas, nil
}

func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) { return f.tip, nil }

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.block, nil
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, _ *big.Int) (*types.Header, error) {
	return &types.Header{Number: new(big.Int).SetUint64(f.block), BaseFee: f.baseFee}, nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeBackend) Close() {}

func (f *fakeBackend) setReceipt(hash common.Hash, status uint64, block uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[hash] = &types.Receipt{Status: status, BlockNumber: new(big.Int).SetUint64(block)}
}

func (f *fakeBackend) advance(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block += n
}

func word(v int64) []byte {
	return common.LeftPadBytes(big.NewInt(v).Bytes(), 32)
}

func newTestChain(t *testing.T, name string, id uint64, backend *fakeBackend) *Chain {
	t.Helper()
	c, err := NewChainWithBackend(ChainConfig{Name: name, ChainID: id}, backend, &mockLogger{}, nil)
	if err != nil {
		t.Fatalf("NewChainWithBackend() error = %v", err)
	}
	return c
}

func TestChain_Balances(t *testing.T) {
	backend := newFakeBackend()
	backend.balance = big.NewInt(5)
	token := common.HexToAddress("0x78EC15C5FD8EfC5e924e9EEBb9e549e29C785867")
	backend.calls[token] = word(42)
	chain := newTestChain(t, "Base", 8453, backend)
	ctx := context.Background()
	account := common.HexToAddress("0x1111111111111111111111111111111111111111")

	if got, err := chain.NativeBalance(ctx, account); err != nil || got.Int64() != 5 {
		t.Errorf("NativeBalance() = %v, %v", got, err)
	}
	if got, err := chain.TokenBalance(ctx, token, account); err != nil || got.Int64() != 42 {
		t.Errorf("TokenBalance() = %v, %v", got, err)
	}

	backend.callErr = errors.New("boom")
	if _, err := chain.TokenBalance(ctx, token, account); !apperror.HasCode(err, apperror.CodeEVMRPCError) {
		t.Errorf("err = %v, want EVM_RPC_ERROR", err)
	}
}

func TestChain_NotConnected(t *testing.T) {
	chain, err := NewChain(ChainConfig{Name: "Base", ChainID: 8453}, &mockLogger{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := chain.BlockNumber(context.Background()); !apperror.HasCode(err, apperror.CodeEVMConnectionFailed) {
		t.Errorf("err = %v, want EVM_CONNECTION_FAILED", err)
	}
}

func TestChain_WaitForConfirmations(t *testing.T) {
	old := receiptPollInterval
	receiptPollInterval = time.Millisecond
	defer func() { receiptPollInterval = old }()

	hash := common.HexToHash("0xabc")

	t.Run("buried", func(t *testing.T) {
		backend := newFakeBackend()
		backend.setReceipt(hash, types.ReceiptStatusSuccessful, 100)
		chain := newTestChain(t, "Torus EVM", 21000, backend)

		go func() {
			time.Sleep(5 * time.Millisecond)
			backend.advance(1)
		}()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := chain.WaitForConfirmations(ctx, hash.Hex(), 2); err != nil {
			t.Fatalf("WaitForConfirmations() error = %v", err)
		}
	})

	t.Run("reverted", func(t *testing.T) {
		backend := newFakeBackend()
		backend.setReceipt(hash, types.ReceiptStatusFailed, 100)
		chain := newTestChain(t, "Torus EVM", 21000, backend)

		err := chain.WaitForConfirmations(context.Background(), hash.Hex(), 1)
		if !apperror.HasCode(err, apperror.CodeTransactionFailed) {
			t.Errorf("err = %v, want TRANSACTION_FAILED", err)
		}
	})

	t.Run("never mined", func(t *testing.T) {
		chain := newTestChain(t, "Torus EVM", 21000, newFakeBackend())
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := chain.WaitForConfirmations(ctx, hash.Hex(), 1)
		if !apperror.HasCode(err, apperror.CodeReceiptTimeout) {
			t.Errorf("err = %v, want RECEIPT_TIMEOUT", err)
		}
	})
}

func newTestWallet(t *testing.T, initial uint64, chains ...uint64) *LocalWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	w, err := NewLocalWallet(common.Bytes2Hex(crypto.FromECDSA(key)), initial, chains, &mockLogger{})
	if err != nil {
		t.Fatalf("NewLocalWallet() error = %v", err)
	}
	return w
}

func TestLocalWallet(t *testing.T) {
	ctx := context.Background()
	w := newTestWallet(t, 8453, 21000)

	if !common.IsHexAddress(w.Address()) {
		t.Errorf("Address() = %q", w.Address())
	}
	if err := w.SwitchChain(ctx, 21000); err != nil {
		t.Fatalf("SwitchChain() error = %v", err)
	}
	if id, _ := w.ChainID(ctx); id != 21000 {
		t.Errorf("ChainID() = %d", id)
	}

	var coded interface{ ErrorCode() int }
	if err := w.SwitchChain(ctx, 1); !errors.As(err, &coded) || coded.ErrorCode() != 4902 {
		t.Errorf("unknown chain err = %v", err)
	}

	if _, err := NewLocalWallet("not-a-key", 8453, nil, &mockLogger{}); !apperror.HasCode(err, apperror.CodeConfigurationError) {
		t.Errorf("bad key err = %v", err)
	}
}

func TestLocalWallet_SendSignsForChain(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	torus := newTestChain(t, "Torus EVM", 21000, backend)
	w := newTestWallet(t, 8453, 21000)

	to := common.HexToAddress("0x0000000000000000000000000000000000000800")
	if _, err := w.Send(ctx, torus, TxRequest{To: to, Value: big.NewInt(1)}); !apperror.HasCode(err, apperror.CodeInvalidState) {
		t.Fatalf("send on wrong chain err = %v", err)
	}

	if err := w.SwitchChain(ctx, 21000); err != nil {
		t.Fatal(err)
	}
	hash, err := w.Send(ctx, torus, TxRequest{To: to, Value: big.NewInt(1)})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("sent = %d", len(backend.sent))
	}
	tx := backend.sent[0]
	if tx.Hash().Hex() != hash {
		t.Errorf("hash = %s, want %s", hash, tx.Hash().Hex())
	}
	if tx.ChainId().Uint64() != 21000 || tx.Nonce() != 7 || tx.Gas() != 60_000 {
		t.Errorf("tx chain=%d nonce=%d gas=%d", tx.ChainId(), tx.Nonce(), tx.Gas())
	}
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil || from.Hex() != w.Address() {
		t.Errorf("sender = %s, %v; want %s", from.Hex(), err, w.Address())
	}
}

func newTestWarp(t *testing.T, w Sender, base, torus *Chain) *Warp {
	t.Helper()
	warp, err := NewWarp([]WarpRoute{
		{Chain: "base", Symbol: "TORUS", Router: common.HexToAddress("0xB0"), Domain: 8453, Decimals: 18, EVM: base},
		{Chain: "torus", Symbol: "TORUS", Router: common.HexToAddress("0x70"), Domain: 21000, Decimals: 18, Native: true, EVM: torus},
	}, w, time.Minute, &mockLogger{})
	if err != nil {
		t.Fatalf("NewWarp() error = %v", err)
	}
	t.Cleanup(warp.Close)
	return warp
}

func TestWarp_Token(t *testing.T) {
	base := newTestChain(t, "Base", 8453, newFakeBackend())
	torus := newTestChain(t, "Torus EVM", 21000, newFakeBackend())
	warp := newTestWarp(t, newTestWallet(t, 8453, 21000), base, torus)

	tok, err := warp.Token("TORUS", "torus")
	if err != nil || tok.ChainID != 21000 || tok.Decimals != 18 {
		t.Errorf("Token() = %+v, %v", tok, err)
	}
	if _, err := warp.Token("torus", "ETH"); !apperror.HasCode(err, apperror.CodeTokenNotFound) {
		t.Errorf("wrong symbol err = %v", err)
	}
	if _, err := warp.Token("solana", "TORUS"); !apperror.HasCode(err, apperror.CodeTokenNotFound) {
		t.Errorf("unknown chain err = %v", err)
	}
}

func TestWarp_MaxTransferAmount(t *testing.T) {
	ctx := context.Background()
	baseBackend, torusBackend := newFakeBackend(), newFakeBackend()
	torusBackend.calls[common.HexToAddress("0x70")] = word(1_000)
	base := newTestChain(t, "Base", 8453, baseBackend)
	torus := newTestChain(t, "Torus EVM", 21000, torusBackend)
	warp := newTestWarp(t, newTestWallet(t, 8453, 21000), base, torus)

	// Synthetic side: fees are paid in ETH.
	got, err := warp.MaxTransferAmount(ctx, "base", big.NewInt(5_000_000), "")
	if err != nil || got.Int64() != 5_000_000 {
		t.Errorf("base max = %v, %v", got, err)
	}

	// Native side: fee 1000 and 300000 gas at (1 + 2*10) wei.
	got, err = warp.MaxTransferAmount(ctx, "torus", big.NewInt(10_000_000), "")
	if err != nil {
		t.Fatalf("torus max error = %v", err)
	}
	if want := int64(10_000_000 - 1_000 - 300_000*21); got.Int64() != want {
		t.Errorf("torus max = %s, want %d", got, want)
	}

	if _, err := warp.MaxTransferAmount(ctx, "torus", big.NewInt(10), ""); !apperror.HasCode(err, apperror.CodeInsufficientFunds) {
		t.Errorf("dust err = %v, want INSUFFICIENT_FUNDS", err)
	}
}

func TestWarp_TransferEncodesTransferRemote(t *testing.T) {
	ctx := context.Background()
	torusBackend := newFakeBackend()
	router := common.HexToAddress("0x70")
	torusBackend.calls[router] = word(1_000)
	base := newTestChain(t, "Base", 8453, newFakeBackend())
	torus := newTestChain(t, "Torus EVM", 21000, torusBackend)
	wallet := newTestWallet(t, 21000, 8453)
	warp := newTestWarp(t, wallet, base, torus)

	hash, err := warp.Transfer(ctx, app.WarpTransfer{
		Origin:      "torus",
		Destination: "base",
		Amount:      big.NewInt(5_000),
		Sender:      wallet.Address(),
		Recipient:   wallet.Address(),
	})
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if len(torusBackend.sent) != 1 {
		t.Fatalf("sent = %d", len(torusBackend.sent))
	}
	tx := torusBackend.sent[0]
	if tx.Hash().Hex() != hash || *tx.To() != router {
		t.Errorf("tx to %s hash %s", tx.To().Hex(), hash)
	}
	if tx.Value().Int64() != 6_000 {
		t.Errorf("value = %s, want amount plus fee", tx.Value())
	}

	args, err := warp.abi.Methods["transferRemote"].Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if args[0].(uint32) != 8453 {
		t.Errorf("destination = %v", args[0])
	}
	recipient := args[1].([32]byte)
	if !bytes.Equal(recipient[12:], common.HexToAddress(wallet.Address()).Bytes()) {
		t.Errorf("recipient = %x", recipient)
	}
	if args[2].(*big.Int).Int64() != 5_000 {
		t.Errorf("amount = %v", args[2])
	}
}

func TestWithdrawer(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	torus := newTestChain(t, "Torus EVM", 21000, backend)
	base := newTestChain(t, "Base", 8453, newFakeBackend())
	wallet := newTestWallet(t, 21000)
	precompile := common.HexToAddress("0x0000000000000000000000000000000000000800")
	pub := bytes.Repeat([]byte{0xaa}, 32)

	decode := func(addr string) ([]byte, error) {
		if strings.HasPrefix(addr, "5") {
			return pub, nil
		}
		return nil, errors.New("bad ss58")
	}
	w, err := NewWithdrawer(torus, []*Chain{base}, wallet, precompile, decode, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := w.WithdrawToNative(ctx, "xyz", big.NewInt(1)); !apperror.HasCode(err, apperror.CodeInvalidAddress) {
		t.Errorf("bad address err = %v", err)
	}

	hash, err := w.WithdrawToNative(ctx, "5GrwvaEF", big.NewInt(99))
	if err != nil {
		t.Fatalf("WithdrawToNative() error = %v", err)
	}
	tx := backend.sent[0]
	if *tx.To() != precompile || tx.Value().Int64() != 99 || tx.Hash().Hex() != hash {
		t.Errorf("tx = to %s value %s", tx.To().Hex(), tx.Value())
	}
	if !bytes.Equal(tx.Data()[4:], pub) {
		t.Errorf("data = %x", tx.Data())
	}

	backend.setReceipt(tx.Hash(), types.ReceiptStatusSuccessful, 100)
	if err := w.WaitForConfirmations(ctx, "torus evm", hash, 1); err != nil {
		t.Errorf("WaitForConfirmations() error = %v", err)
	}
	if err := w.WaitForConfirmations(ctx, "Solana", hash, 1); !apperror.HasCode(err, apperror.CodeInvalidInput) {
		t.Errorf("unknown chain err = %v", err)
	}
}

type staticNative struct{ bal *big.Int }

func (s staticNative) FreeBalance(ctx context.Context, address string) (*big.Int, error) {
	return s.bal, nil
}

func TestBalances(t *testing.T) {
	ctx := context.Background()
	token := common.HexToAddress("0x78EC15C5FD8EfC5e924e9EEBb9e549e29C785867")
	baseBackend, torusBackend := newFakeBackend(), newFakeBackend()
	baseBackend.calls[token] = word(3)
	torusBackend.balance = big.NewInt(4)
	b := NewBalances(
		newTestChain(t, "Base", 8453, baseBackend),
		newTestChain(t, "Torus EVM", 21000, torusBackend),
		token,
		staticNative{bal: big.NewInt(5)},
	)
	addr := "0x1111111111111111111111111111111111111111"

	if got, _ := b.BaseBalance(ctx, addr); got.Int64() != 3 {
		t.Errorf("BaseBalance() = %v", got)
	}
	if got, _ := b.TorusEVMBalance(ctx, addr); got.Int64() != 4 {
		t.Errorf("TorusEVMBalance() = %v", got)
	}
	if got, _ := b.NativeBalance(ctx, "5Grw"); got.Int64() != 5 {
		t.Errorf("NativeBalance() = %v", got)
	}
	if _, err := b.BaseBalance(ctx, "nope"); !apperror.HasCode(err, apperror.CodeInvalidAddress) {
		t.Errorf("bad address err = %v", err)
	}
}
