// Package bridge implements the two-step transfer bounded context: moving
// TORUS between Base and Torus Native through Torus EVM.
package bridge

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	bridgeDI "github.com/fd1az/torus-bridge/business/bridge/di"
	"github.com/fd1az/torus-bridge/business/bridge/domain"
	"github.com/fd1az/torus-bridge/business/bridge/infra/evm"
	"github.com/fd1az/torus-bridge/business/bridge/infra/notify"
	"github.com/fd1az/torus-bridge/business/bridge/infra/substrate"
	historyDI "github.com/fd1az/torus-bridge/business/history/di"
	"github.com/fd1az/torus-bridge/internal/asset"
	"github.com/fd1az/torus-bridge/internal/config"
	"github.com/fd1az/torus-bridge/internal/di"
	"github.com/fd1az/torus-bridge/internal/health"
	"github.com/fd1az/torus-bridge/internal/logger"
	"github.com/fd1az/torus-bridge/internal/metrics"
	"github.com/fd1az/torus-bridge/internal/monolith"
)

const walletDialTimeout = 15 * time.Second

func mustFind(assets *asset.Registry, chain string) *asset.Asset {
	a, ok := assets.Find(chain, app.TokenSymbol)
	if !ok {
		panic("asset registry has no " + app.TokenSymbol + " on " + chain)
	}
	return a
}

// Module implements the bridge bounded context.
type Module struct {
	// Progress, when set, is told about each connection made at startup.
	// step is "base", "torus_evm" or "torus_native"; status is
	// "connecting", "connected" or "failed".
	Progress func(step, status, message string)
	// OnBalance receives balances read after each step.
	OnBalance app.BalanceObserver

	mu      sync.Mutex
	closers []io.Closer
}

func (m *Module) progress(step, status, message string) {
	if m.Progress != nil {
		m.Progress(step, status, message)
	}
}

func chainConfig(c config.EVMChainConfig, gasBuffer uint64) evm.ChainConfig {
	return evm.ChainConfig{
		Name:        c.Name,
		RPCURL:      c.RPCURL,
		ChainID:     c.ChainID,
		RateLimit:   c.RateLimit,
		RateBurst:   c.RateBurst,
		DialTimeout: c.DialTimeout,
		GasBuffer:   gasBuffer,
	}
}

// RegisterServices registers all bridge services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	newChain := func(sr di.ServiceRegistry, cc config.EVMChainConfig) *evm.Chain {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ins := sr.Get("metrics").(*metrics.BridgeInstruments)
		chain, err := evm.NewChain(chainConfig(cc, cfg.Hyperlane.GasLimitBuffer), log, ins)
		if err != nil {
			panic("failed to create " + cc.Name + " chain: " + err.Error())
		}
		return chain
	}

	// Register BaseChain and TorusChain (private)
	di.RegisterToken(c, bridgeDI.BaseChain, func(sr di.ServiceRegistry) *evm.Chain {
		return newChain(sr, sr.Get("config").(*config.Config).Base)
	})
	di.RegisterToken(c, bridgeDI.TorusChain, func(sr di.ServiceRegistry) *evm.Chain {
		return newChain(sr, sr.Get("config").(*config.Config).TorusEVM)
	})

	// Register NativeClient (public - SS58 address and balances)
	di.RegisterToken(c, bridgeDI.NativeClient, func(sr di.ServiceRegistry) *substrate.Client {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ins := sr.Get("metrics").(*metrics.BridgeInstruments)

		client, err := substrate.NewClient(substrate.Config{
			WebSocketURL:   cfg.TorusNative.WebSocketURL,
			SS58Prefix:     cfg.TorusNative.SS58Prefix,
			ConnectTimeout: cfg.TorusNative.ConnectTimeout,
			RequestTimeout: cfg.TorusNative.RequestTimeout,
			RateLimit:      cfg.TorusNative.RateLimit,
			RateBurst:      cfg.TorusNative.RateBurst,
		}, cfg.Wallet.NativeSeed, log, ins)
		if err != nil {
			panic("failed to create native client: " + err.Error())
		}
		return client
	})

	// Register EVMWallet (public)
	di.RegisterToken(c, bridgeDI.EVMWallet, func(sr di.ServiceRegistry) evm.Sender {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Wallet.EVMMode == "rpc" {
			ctx, cancel := context.WithTimeout(context.Background(), walletDialTimeout)
			defer cancel()
			w, err := evm.DialRPCWallet(ctx, cfg.Wallet.EVMSignerURL, log)
			if err != nil {
				panic("failed to connect evm signer: " + err.Error())
			}
			m.own(closerFunc(func() error { w.Close(); return nil }))
			return w
		}
		w, err := evm.NewLocalWallet(cfg.Wallet.EVMPrivateKey, cfg.Base.ChainID,
			[]uint64{cfg.Base.ChainID, cfg.TorusEVM.ChainID}, log)
		if err != nil {
			panic("failed to load evm wallet: " + err.Error())
		}
		return w
	})

	// Register Warp (private)
	di.RegisterToken(c, bridgeDI.Warp, func(sr di.ServiceRegistry) *evm.Warp {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		assets := sr.Get("assetRegistry").(*asset.Registry)

		onBase := mustFind(assets, asset.ChainNameBase)
		routes := []evm.WarpRoute{{
			Chain:    app.WarpChainBase,
			Symbol:   onBase.Symbol(),
			Router:   cfg.Hyperlane.BaseRouterHex(),
			Domain:   cfg.Hyperlane.BaseDomain,
			Decimals: onBase.Decimals(),
			EVM:      bridgeDI.GetBaseChain(sr),
		}}
		if cfg.Hyperlane.TorusRouter != "" {
			onTorus := mustFind(assets, asset.ChainNameTorus)
			routes = append(routes, evm.WarpRoute{
				Chain:    app.WarpChainTorus,
				Symbol:   onTorus.Symbol(),
				Router:   cfg.Hyperlane.TorusRouterHex(),
				Domain:   cfg.Hyperlane.TorusDomain,
				Decimals: onTorus.Decimals(),
				Native:   onTorus.ID().IsNative(),
				EVM:      bridgeDI.GetTorusChain(sr),
			})
		}
		warp, err := evm.NewWarp(routes, bridgeDI.GetEVMWallet(sr), cfg.Hyperlane.QuoteCacheTTL, log)
		if err != nil {
			panic("failed to create warp router: " + err.Error())
		}
		m.own(closerFunc(func() error { warp.Close(); return nil }))
		return warp
	})

	// Register Withdrawer (private)
	di.RegisterToken(c, bridgeDI.Withdrawer, func(sr di.ServiceRegistry) *evm.Withdrawer {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		w, err := evm.NewWithdrawer(
			bridgeDI.GetTorusChain(sr),
			[]*evm.Chain{bridgeDI.GetBaseChain(sr)},
			bridgeDI.GetEVMWallet(sr),
			cfg.TorusNative.WithdrawPrecompileHex(),
			substrate.DecodeSS58,
			log,
		)
		if err != nil {
			panic("failed to create withdrawer: " + err.Error())
		}
		return w
	})

	// Register BalanceReader and AddressMapper (public)
	di.RegisterToken(c, bridgeDI.BalanceReader, func(sr di.ServiceRegistry) app.BalanceReader {
		cfg := sr.Get("config").(*config.Config)
		return evm.NewBalances(
			bridgeDI.GetBaseChain(sr),
			bridgeDI.GetTorusChain(sr),
			cfg.Base.TokenAddressHex(),
			bridgeDI.GetNativeClient(sr),
		)
	})
	di.RegisterToken(c, bridgeDI.AddressMapper, func(sr di.ServiceRegistry) app.AddressMapper {
		cfg := sr.Get("config").(*config.Config)
		return substrate.NewMapper(cfg.TorusNative.SS58Prefix)
	})

	// Register EventPublisher (private - log plus configured sinks)
	di.RegisterToken(c, bridgeDI.EventPublisher, func(sr di.ServiceRegistry) app.EventPublisher {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		sinks := []app.EventPublisher{notify.NewLogPublisher(log)}
		if cfg.Notify.NATS.Enabled {
			pub, err := notify.DialNATS(notify.NATSConfig{
				URL:     cfg.Notify.NATS.URL,
				Subject: cfg.Notify.NATS.Subject,
				Name:    cfg.App.Name,
			}, log)
			if err != nil {
				panic("failed to connect nats: " + err.Error())
			}
			m.own(pub)
			sinks = append(sinks, pub)
		}
		if cfg.Notify.Webhook.Enabled {
			wh, err := notify.NewWebhook(notify.WebhookConfig{
				URL:     cfg.Notify.Webhook.URL,
				Timeout: cfg.Notify.Webhook.Timeout,
				Retries: cfg.Notify.Webhook.Retries,
			}, log)
			if err != nil {
				panic("failed to create webhook: " + err.Error())
			}
			sinks = append(sinks, wh)
		}
		return notify.NewMulti(log, sinks...)
	})

	di.RegisterToken(c, bridgeDI.SharedState, func(sr di.ServiceRegistry) *app.SharedState {
		return app.NewSharedState()
	})

	// Register Orchestrator (public - needs both signers)
	di.RegisterToken(c, bridgeDI.Orchestrator, func(sr di.ServiceRegistry) *app.Orchestrator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ins := sr.Get("metrics").(*metrics.BridgeInstruments)
		native := bridgeDI.GetNativeClient(sr)
		recovery := historyDI.GetRecovery(sr)

		fc := &app.FlowContext{
			State:           bridgeDI.GetSharedState(sr),
			Native:          native,
			Wallet:          bridgeDI.GetEVMWallet(sr),
			Balances:        bridgeDI.GetBalanceReader(sr),
			Warp:            bridgeDI.GetWarp(sr),
			Withdrawer:      bridgeDI.GetWithdrawer(sr),
			Addresses:       bridgeDI.GetAddressMapper(sr),
			Wallets:         app.WalletStatus{EVM: bridgeDI.GetEVMWallet(sr), Native: native},
			NativeAddress:   native.Address(),
			TorusEVMChainID: cfg.TorusEVM.ChainID,
			BaseChainID:     cfg.Base.ChainID,
			Timing: app.Timing{
				PollInterval:          cfg.Bridge.PollInterval,
				MaxPolls:              cfg.Bridge.MaxPolls,
				PollTimeout:           cfg.Bridge.PollTimeout,
				OperationTimeout:      cfg.Bridge.OperationTimeout,
				SwitchRetryDelay:      cfg.Bridge.SwitchRetryDelay,
				MaxSwitchAttempts:     cfg.Bridge.MaxSwitchAttempts,
				RequiredConfirmations: cfg.Bridge.RequiredConfirmations,
			},
			OnBalance: m.OnBalance,
			Logger:    log,
			Metrics:   ins,
		}
		o, err := app.NewOrchestrator(fc,
			app.WithHistory(historyDI.GetHistoryService(sr)),
			app.WithEventPublisher(bridgeDI.GetEventPublisher(sr)),
			app.WithTransactionCreated(recovery.Track),
			app.WithTransactionSettled(recovery.Forget),
		)
		if err != nil {
			panic("failed to create orchestrator: " + err.Error())
		}
		return o
	})

	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// own records a lazily built resource so Startup's closer releases it.
func (m *Module) own(c io.Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, c)
}

func (m *Module) closeOwned() error {
	m.mu.Lock()
	closers := m.closers
	m.closers = nil
	m.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Startup connects the chain adapters and registers their health checks.
// Connection failures are reported but not fatal: each adapter dials again
// on its next call.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	sr := mono.Services()

	connect := func(step, name string, c interface{ Connect(context.Context) error }) {
		m.progress(step, "connecting", "")
		if err := c.Connect(ctx); err != nil {
			log.Error(ctx, "failed to connect", "chain", name, "error", err)
			m.progress(step, "failed", name+": "+err.Error())
			return
		}
		m.progress(step, "connected", "")
	}

	base := bridgeDI.GetBaseChain(sr)
	torus := bridgeDI.GetTorusChain(sr)
	native := bridgeDI.GetNativeClient(sr)

	connect("base", base.Name(), base)
	connect("torus_evm", torus.Name(), torus)
	connect("torus_native", domain.ChainTorusNative, native)
	mono.OnClose(base)
	mono.OnClose(torus)
	mono.OnClose(native)
	mono.OnClose(closerFunc(m.closeOwned))

	if hs := mono.Health(); hs != nil {
		hs.RegisterCheck("base", health.EVMCheck(base))
		hs.RegisterCheck("torus_evm", health.EVMCheck(torus))
		hs.RegisterCheck("torus_native", health.PingCheck(native.Ping))
	}

	log.Info(ctx, "bridge module started",
		"base_chain_id", base.ID(),
		"torus_evm_chain_id", torus.ID(),
		"native_account", native.Address(),
	)
	return nil
}
