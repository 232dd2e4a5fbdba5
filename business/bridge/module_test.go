package bridge_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fd1az/torus-bridge/business/bridge"
	bridgeDI "github.com/fd1az/torus-bridge/business/bridge/di"
	"github.com/fd1az/torus-bridge/business/history"
	"github.com/fd1az/torus-bridge/internal/config"
	"github.com/fd1az/torus-bridge/internal/logger"
	"github.com/fd1az/torus-bridge/internal/monolith"
)

const (
	testEVMKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testEVMAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	aliceSS58      = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	torusToken     = "0x78EC15C5FD8EfC5e924e9EEBb9e549e29C785867"
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

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		App: config.AppConfig{Name: "torus-bridge-test"},
		Base: config.EVMChainConfig{
			Name:         "Base",
			RPCURL:       "http://127.0.0.1:1",
			ChainID:      8453,
			TokenAddress: torusToken,
		},
		TorusEVM: config.EVMChainConfig{
			Name:    "Torus EVM",
			RPCURL:  "http://127.0.0.1:1",
			ChainID: 21000,
		},
		TorusNative: config.NativeChainConfig{
			WebSocketURL:       "ws://127.0.0.1:1",
			SS58Prefix:         42,
			WithdrawPrecompile: "0x0000000000000000000000000000000000000800",
		},
		Hyperlane: config.HyperlaneConfig{
			BaseRouter:    torusToken,
			BaseDomain:    8453,
			TorusDomain:   21000,
			QuoteCacheTTL: time.Minute,
		},
		Bridge: config.BridgeConfig{
			PollInterval:      time.Second,
			MaxPolls:          3,
			MaxSwitchAttempts: 3,
		},
		Wallet: config.WalletConfig{
			EVMMode:       "local",
			EVMPrivateKey: testEVMKey,
			NativeSeed:    "//Alice",
		},
		History: config.HistoryConfig{
			Backend: "file",
			Path:    filepath.Join(t.TempDir(), "history.json"),
		},
		Recovery: config.RecoveryConfig{BaseURL: "https://bridge.torus.network/fast"},
	}
}

type application interface {
	monolith.Monolith
	RegisterModules(modules ...monolith.Module) error
	StartModules(ctx context.Context, modules ...monolith.Module) error
	Close() error
}

func newApp(t *testing.T, cfg *config.Config, m *bridge.Module) application {
	t.Helper()
	mono, err := monolith.New(cfg, &mockLogger{}, nil, nil)
	if err != nil {
		t.Fatalf("monolith.New() error = %v", err)
	}
	if err := mono.RegisterModules(&history.Module{}, m); err != nil {
		t.Fatalf("RegisterModules() error = %v", err)
	}
	t.Cleanup(func() { _ = mono.Close() })
	return mono
}

func TestModule_ResolvesOrchestrator(t *testing.T) {
	mono := newApp(t, testConfig(t), &bridge.Module{})
	sr := mono.Services()

	o := bridgeDI.GetOrchestrator(sr)
	if o == nil {
		t.Fatal("orchestrator is nil")
	}
	if o.IsTransferInProgress() {
		t.Error("fresh orchestrator reports a transfer in progress")
	}
	if got := bridgeDI.GetEVMWallet(sr).Address(); got != testEVMAddress {
		t.Errorf("evm address = %s, want %s", got, testEVMAddress)
	}
	if got := bridgeDI.GetNativeClient(sr).Address(); got != aliceSS58 {
		t.Errorf("native address = %s, want %s", got, aliceSS58)
	}

	token, err := bridgeDI.GetWarp(sr).Token("base", "TORUS")
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token.Decimals != 18 {
		t.Errorf("decimals = %d, want 18", token.Decimals)
	}
	if _, err := bridgeDI.GetWarp(sr).Token("torus", "TORUS"); err == nil {
		t.Error("torus route registered without hyperlane.torus_router")
	}
}

func TestModule_TorusRoute(t *testing.T) {
	cfg := testConfig(t)
	cfg.Hyperlane.TorusRouter = "0x1111111111111111111111111111111111111111"
	mono := newApp(t, cfg, &bridge.Module{})

	if _, err := bridgeDI.GetWarp(mono.Services()).Token("torus", "TORUS"); err != nil {
		t.Errorf("Token(torus) error = %v", err)
	}
}

func TestModule_BadWalletPanics(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{name: "bad evm key", mutate: func(cfg *config.Config) { cfg.Wallet.EVMPrivateKey = "0x1234" }},
		{name: "bad native seed", mutate: func(cfg *config.Config) { cfg.Wallet.NativeSeed = "0xzz" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			mono := newApp(t, cfg, &bridge.Module{})

			defer func() {
				if recover() == nil {
					t.Error("expected the orchestrator factory to panic")
				}
			}()
			bridgeDI.GetOrchestrator(mono.Services())
		})
	}
}

func TestModule_ReadOnlyBalances(t *testing.T) {
	cfg := testConfig(t)
	cfg.Wallet = config.WalletConfig{EVMMode: "local"}
	mono := newApp(t, cfg, &bridge.Module{})
	sr := mono.Services()

	if bridgeDI.GetBalanceReader(sr) == nil {
		t.Fatal("balance reader is nil")
	}
	if got := bridgeDI.GetNativeClient(sr).Address(); got != "" {
		t.Errorf("read-only native address = %q", got)
	}
	mirror, err := bridgeDI.GetAddressMapper(sr).EVMToNative(testEVMAddress)
	if err != nil || mirror == "" {
		t.Errorf("EVMToNative() = %q, %v", mirror, err)
	}
}

func TestModule_StartupReportsFailedConnections(t *testing.T) {
	var steps []string
	m := &bridge.Module{
		Progress: func(step, status, message string) {
			steps = append(steps, step+":"+status)
		},
	}
	cfg := testConfig(t)
	cfg.Base.DialTimeout = 200 * time.Millisecond
	cfg.TorusEVM.DialTimeout = 200 * time.Millisecond
	cfg.TorusNative.ConnectTimeout = 200 * time.Millisecond
	mono := newApp(t, cfg, m)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mono.StartModules(ctx, &history.Module{}, m); err != nil {
		t.Fatalf("StartModules() error = %v", err)
	}

	want := map[string]bool{"base:connecting": true, "torus_evm:connecting": true, "torus_native:connecting": true}
	for _, s := range steps {
		delete(want, s)
	}
	if len(want) != 0 {
		t.Errorf("missing progress %v in %v", want, steps)
	}
	if err := mono.Close(); err != nil {
		t.Logf("Close() = %v", err)
	}
}
