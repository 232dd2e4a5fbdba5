package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
	historyDomain "github.com/fd1az/torus-bridge/business/history/domain"
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

const (
	testEVMAddress    = "0x1111111111111111111111111111111111111111"
	testNativeAddress = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
	testMirrorAddress = "5EYCAe5ijiYfyeZ2JJCGq56LmPyNRAKzpG4QkoQkkQNB5e6Z"
	testTorusChainID  = 21000
)

// ledger keeps fake balances for the three chains.
type ledger struct {
	mu     sync.Mutex
	evm    *big.Int
	base   *big.Int
	native *big.Int
	errs   map[string]error
}

func newLedger() *ledger {
	return &ledger{evm: new(big.Int), base: new(big.Int), native: new(big.Int), errs: map[string]error{}}
}

func (l *ledger) read(chain string, v *big.Int) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.errs[chain]; err != nil {
		return nil, err
	}
	return new(big.Int).Set(v), nil
}

func (l *ledger) TorusEVMBalance(ctx context.Context, address string) (*big.Int, error) {
	return l.read("evm", l.evm)
}

func (l *ledger) BaseBalance(ctx context.Context, address string) (*big.Int, error) {
	return l.read("base", l.base)
}

func (l *ledger) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	return l.read("native", l.native)
}

func (l *ledger) credit(chain string, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch chain {
	case "evm":
		l.evm.Add(l.evm, amount)
	case "base":
		l.base.Add(l.base, amount)
	case "native":
		l.native.Add(l.native, amount)
	}
}

type fakeWallet struct {
	mu        sync.Mutex
	chainID   uint64
	switchErr error
	switches  int
}

func (w *fakeWallet) Address() string { return testEVMAddress }

func (w *fakeWallet) ChainID(ctx context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainID, nil
}

func (w *fakeWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.switches++
	if w.switchErr != nil {
		return w.switchErr
	}
	w.chainID = chainID
	return nil
}

type fakeWarp struct {
	ledger    *ledger
	// errs is consumed one entry per Transfer call; nil entries succeed.
	errs      []error
	calls     int
	noArrival bool
}

func (w *fakeWarp) Token(chain, symbol string) (WarpToken, error) {
	if symbol != TokenSymbol {
		return WarpToken{}, errors.New("unknown token")
	}
	return WarpToken{Chain: chain, Symbol: symbol, Decimals: 18}, nil
}

func (w *fakeWarp) MaxTransferAmount(ctx context.Context, origin string, balance *big.Int, sender string) (*big.Int, error) {
	return new(big.Int).Set(balance), nil
}

func (w *fakeWarp) Transfer(ctx context.Context, t WarpTransfer) (string, error) {
	w.calls++
	if len(w.errs) > 0 {
		err := w.errs[0]
		w.errs = w.errs[1:]
		if err != nil {
			return "", err
		}
	}
	if !w.noArrival {
		switch t.Destination {
		case WarpChainTorus:
			w.ledger.credit("evm", t.Amount)
		case WarpChainBase:
			w.ledger.credit("base", t.Amount)
		}
	}
	return "0xwarp" + t.Origin, nil
}

type fakeWithdrawer struct {
	ledger      *ledger
	withdrawErr []error
	calls       int
}

func (w *fakeWithdrawer) WaitForConfirmations(ctx context.Context, chain, txHash string, confirmations uint64) error {
	return nil
}

func (w *fakeWithdrawer) WithdrawToNative(ctx context.Context, nativeAddr string, amount *big.Int) (string, error) {
	w.calls++
	if len(w.withdrawErr) > 0 {
		err := w.withdrawErr[0]
		w.withdrawErr = w.withdrawErr[1:]
		if err != nil {
			return "", err
		}
	}
	w.ledger.credit("native", amount)
	return "0xwithdraw", nil
}

type fakeTracker struct {
	hash   string
	events chan TrackerEvent
	once   sync.Once
}

func newFakeTracker(hash string, events ...TrackerEvent) *fakeTracker {
	ch := make(chan TrackerEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return &fakeTracker{hash: hash, events: ch}
}

func (t *fakeTracker) TxHash() string              { return t.hash }
func (t *fakeTracker) Events() <-chan TrackerEvent { return t.events }
func (t *fakeTracker) Stop()                       { t.once.Do(func() {}) }

type fakeNative struct {
	ledger *ledger
	err    error
	events []TrackerEvent
}

func (n *fakeNative) Transfer(ctx context.Context, dest string, amount *big.Int) (Tracker, error) {
	if n.err != nil {
		return nil, n.err
	}
	events := n.events
	if events == nil {
		events = []TrackerEvent{
			{Kind: TrackerSubmitted, TxHash: "0xnative"},
			{Kind: TrackerInBlock, TxHash: "0xnative", BlockHash: "0xblock"},
			{Kind: TrackerFinalized, TxHash: "0xnative", BlockHash: "0xblock"},
		}
		n.ledger.credit("evm", amount)
	}
	return newFakeTracker("0xnative", events...), nil
}

func (n *fakeNative) FreeBalance(ctx context.Context, address string) (*big.Int, error) {
	return n.ledger.NativeBalance(ctx, address)
}

type fakeMapper struct{}

func (fakeMapper) EVMToNative(evm string) (string, error) { return testMirrorAddress, nil }

type fakeHistory struct {
	mu        sync.Mutex
	items     map[string]historyDomain.Item
	nextID    int
	retried   []string
	recovered int
	failAdd   error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{items: map[string]historyDomain.Item{}}
}

func (h *fakeHistory) AddTransaction(ctx context.Context, item historyDomain.Item) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failAdd != nil {
		return "", h.failAdd
	}
	h.nextID++
	item.ID = fmt.Sprintf("tx-%d", h.nextID)
	item.Timestamp = time.Now()
	h.items[item.ID] = item
	return item.ID, nil
}

func (h *fakeHistory) UpdateTransaction(ctx context.Context, id string, patch historyDomain.Patch) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	item, ok := h.items[id]
	if !ok {
		return errors.New("not found")
	}
	h.items[id] = patch.Apply(item)
	return nil
}

func (h *fakeHistory) MarkAsRetried(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retried = append(h.retried, id)
	return nil
}

func (h *fakeHistory) MarkFailedAsRecoveredViaEvmRecover(ctx context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recovered++
	return 0, nil
}

func (h *fakeHistory) get(id string) historyDomain.Item {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.items[id]
}

func (h *fakeHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []Event
}

func (p *fakeEvents) Publish(ctx context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakeEvents) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func fastTiming() Timing {
	return Timing{
		PollInterval:          time.Millisecond,
		MaxPolls:              5,
		PollTimeout:           time.Second,
		OperationTimeout:      time.Second,
		SwitchRetryDelay:      time.Millisecond,
		MaxSwitchAttempts:     3,
		RequiredConfirmations: 1,
	}
}

type harness struct {
	ledger     *ledger
	wallet     *fakeWallet
	warp       *fakeWarp
	withdrawer *fakeWithdrawer
	native     *fakeNative
	fc         *FlowContext
}

func newHarness() *harness {
	l := newLedger()
	h := &harness{
		ledger:     l,
		wallet:     &fakeWallet{chainID: BaseChainID},
		warp:       &fakeWarp{ledger: l},
		withdrawer: &fakeWithdrawer{ledger: l},
		native:     &fakeNative{ledger: l},
	}
	h.fc = &FlowContext{
		State:           NewSharedState(),
		Native:          h.native,
		Wallet:          h.wallet,
		Balances:        l,
		Warp:            h.warp,
		Withdrawer:      h.withdrawer,
		Addresses:       fakeMapper{},
		NativeAddress:   testNativeAddress,
		TorusEVMChainID: testTorusChainID,
		Timing:          fastTiming(),
		Logger:          &mockLogger{},
	}
	return h
}

func wei(s string) *big.Int {
	v, err := ValidateAmount(s, nil)
	if err != nil {
		panic(err)
	}
	return v
}

func recordFor(records []domain.TransactionRecord, step int) (domain.TransactionRecord, bool) {
	for _, r := range records {
		if r.Step == step {
			return r, true
		}
	}
	return domain.TransactionRecord{}, false
}
