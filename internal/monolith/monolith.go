// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"errors"
	"io"

	"github.com/fd1az/torus-bridge/internal/asset"
	"github.com/fd1az/torus-bridge/internal/config"
	"github.com/fd1az/torus-bridge/internal/di"
	"github.com/fd1az/torus-bridge/internal/health"
	"github.com/fd1az/torus-bridge/internal/logger"
	"github.com/fd1az/torus-bridge/internal/metrics"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	AssetRegistry() *asset.Registry
	Metrics() *metrics.BridgeInstruments
	// Health is nil when the health server is disabled.
	Health() *health.Server
	Services() di.ServiceRegistry
	// OnClose registers a resource released by Close, in reverse order.
	OnClose(c io.Closer)
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	assetRegistry *asset.Registry
	metrics       *metrics.BridgeInstruments
	health        *health.Server
	container     di.Container
	closers       []io.Closer
}

// New creates a new Monolith instance. hs may be nil.
func New(cfg *config.Config, log logger.LoggerInterface, m *metrics.BridgeInstruments, hs *health.Server) (*app, error) {
	baseToken := cfg.Base.TokenAddressHex()
	onBase, onTorusEVM, onNative := asset.NewTorusAssets(baseToken, cfg.TorusEVM.ChainID)
	assetRegistry := asset.NewRegistry()
	assetRegistry.Register(onBase)
	assetRegistry.Register(onTorusEVM)
	assetRegistry.Register(onNative)

	if m == nil {
		m = metrics.NoopInstruments()
	}

	container := di.NewContainer()

	// Register global services
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("assetRegistry", assetRegistry)
	container.Register("metrics", m)

	return &app{
		config:        cfg,
		logger:        log,
		assetRegistry: assetRegistry,
		metrics:       m,
		health:        hs,
		container:     container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *app) Metrics() *metrics.BridgeInstruments {
	return a.metrics
}

func (a *app) Health() *health.Server {
	return a.health
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

func (a *app) OnClose(c io.Closer) {
	a.closers = append(a.closers, c)
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
