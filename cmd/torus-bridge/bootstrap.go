package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/fd1az/torus-bridge/business/bridge"
	"github.com/fd1az/torus-bridge/business/history"
	"github.com/fd1az/torus-bridge/internal/apm"
	"github.com/fd1az/torus-bridge/internal/config"
	"github.com/fd1az/torus-bridge/internal/di"
	"github.com/fd1az/torus-bridge/internal/health"
	"github.com/fd1az/torus-bridge/internal/logger"
	"github.com/fd1az/torus-bridge/internal/metrics"
	"github.com/fd1az/torus-bridge/internal/monolith"
)

// application is the monolith as main drives it.
type application interface {
	monolith.Monolith
	RegisterModules(modules ...monolith.Module) error
	StartModules(ctx context.Context, modules ...monolith.Module) error
	Close() error
}

// env is everything a command needs after bootstrap.
type env struct {
	cfg     *config.Config
	log     *logger.Logger
	mono    application
	history *history.Module
	bridge  *bridge.Module
	tui     bool

	cleanup []func()
}

func (e *env) close() {
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		e.cleanup[i]()
	}
}

func (e *env) services() di.ServiceRegistry {
	return e.mono.Services()
}

// setup loads config, starts telemetry and the health server, and
// registers the modules. tui selects the discard logger; commands that
// print plain output pass false.
func setup(c *cli.Context, tui bool) (*env, error) {
	ctx := c.Context

	cfg, err := config.Load(c.String(optionConfig.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.TUIMode = tui

	level := logger.ParseLevel(cfg.App.LogLevel)
	var log *logger.Logger
	if tui {
		// In TUI mode, suppress logs (discard output)
		log = logger.New(io.Discard, level, cfg.App.Name, nil)
	} else {
		log = logger.NewConsole(os.Stderr, level, cfg.App.Name)
	}

	e := &env{cfg: cfg, log: log, tui: tui}

	ins, err := setupTelemetry(ctx, e)
	if err != nil {
		e.close()
		return nil, err
	}

	var hs *health.Server
	if cfg.Health.Enabled {
		hs = health.NewServer(cfg.Health.Port, version, log)
		if err := hs.Start(); err != nil {
			log.Warn(ctx, "failed to start health server", "error", err)
			hs = nil
		} else {
			log.Info(ctx, "health server started", "port", cfg.Health.Port)
			e.cleanup = append(e.cleanup, func() { _ = hs.Stop(context.Background()) })
		}
	}

	mono, err := monolith.New(cfg, log, ins, hs)
	if err != nil {
		e.close()
		return nil, fmt.Errorf("failed to create monolith: %w", err)
	}
	e.mono = mono
	e.cleanup = append(e.cleanup, func() {
		if err := mono.Close(); err != nil {
			log.Warn(context.Background(), "error releasing resources", "error", err)
		}
	})

	// Define modules in dependency order
	e.history = &history.Module{}
	e.bridge = &bridge.Module{}
	if err := mono.RegisterModules(e.history, e.bridge); err != nil {
		e.close()
		return nil, fmt.Errorf("failed to register modules: %w", err)
	}
	return e, nil
}

func setupTelemetry(ctx context.Context, e *env) (*metrics.BridgeInstruments, error) {
	cfg := e.cfg.Telemetry
	if !cfg.Enabled {
		return metrics.NoopInstruments(), nil
	}

	tp := apm.NewTraceProvider(e.log, apm.Config{
		ServiceName: cfg.ServiceName,
		Provider:    apm.Provider(cfg.Provider),
		Endpoint:    cfg.OTLPEndpoint,
		Headers:     cfg.OTLPHeaders,
	})
	e.cleanup = append(e.cleanup, func() { _ = tp.Stop() })
	e.log.Info(ctx, "tracing initialized", "provider", cfg.Provider, "endpoint", cfg.OTLPEndpoint)

	opts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.ServiceName),
		metrics.WithPrometheus(),
	}
	if cfg.OTLPEndpoint != "" {
		opts = append(opts, metrics.WithOtelCollector(cfg.OTLPEndpoint, apm.ParseHeaders(cfg.OTLPHeaders), true))
	}
	mp, err := metrics.NewMetricProvider(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric provider: %w", err)
	}
	e.cleanup = append(e.cleanup, func() { _ = mp.Shutdown(context.Background()) })

	ins, err := metrics.NewBridgeInstruments(mp.Meter(cfg.ServiceName))
	if err != nil {
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}

	// Start Prometheus metrics server in background
	promCtx, cancel := context.WithCancel(ctx)
	e.cleanup = append(e.cleanup, cancel)
	go func() {
		if err := metrics.ServePrometheusMetrics(promCtx, e.log, cfg.PrometheusPort); err != nil {
			e.log.Warn(ctx, "prometheus server stopped", "error", err)
		}
	}()
	e.log.Info(ctx, "prometheus metrics server started", "port", cfg.PrometheusPort)

	return ins, nil
}

// requireSigners fails early when a transfer command lacks the keys the
// orchestrator needs.
func requireSigners(cfg *config.Config) error {
	switch cfg.Wallet.EVMMode {
	case "rpc":
		if cfg.Wallet.EVMSignerURL == "" {
			return fmt.Errorf("wallet.evm_signer_url is required when wallet.evm_mode is rpc")
		}
	default:
		if cfg.Wallet.EVMPrivateKey == "" {
			return fmt.Errorf("wallet.evm_private_key is required to sign transfers")
		}
	}
	if cfg.Wallet.NativeSeed == "" {
		return fmt.Errorf("wallet.native_seed is required to sign transfers")
	}
	return nil
}

// resolve turns a panicking DI factory into an error.
func resolve[T any](get func(di.ServiceRegistry) T, sr di.ServiceRegistry) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return get(sr), nil
}
