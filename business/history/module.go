// Package history implements the transfer history bounded context: the
// persisted list of transfers and the recovery URL pointing at the one in
// flight.
package history

import (
	"context"
	"fmt"
	"io"

	"github.com/fd1az/torus-bridge/business/history/app"
	historyDI "github.com/fd1az/torus-bridge/business/history/di"
	"github.com/fd1az/torus-bridge/business/history/infra/filestore"
	"github.com/fd1az/torus-bridge/business/history/infra/pgstore"
	"github.com/fd1az/torus-bridge/internal/config"
	"github.com/fd1az/torus-bridge/internal/di"
	"github.com/fd1az/torus-bridge/internal/health"
	"github.com/fd1az/torus-bridge/internal/logger"
	"github.com/fd1az/torus-bridge/internal/monolith"
)

// Module implements the history bounded context.
type Module struct{}

// RegisterServices registers all history services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register Store (private - selected by history.backend)
	di.RegisterToken(c, historyDI.Store, func(sr di.ServiceRegistry) app.Store {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		switch cfg.History.Backend {
		case "postgres":
			store, err := pgstore.Open(context.Background(), cfg.History.DSN, log)
			if err != nil {
				panic("failed to open history database: " + err.Error())
			}
			return store
		default:
			return filestore.New(cfg.History.Path, log)
		}
	})

	// Register Navigator (private - persisted recovery URL)
	di.RegisterToken(c, historyDI.Navigator, func(sr di.ServiceRegistry) app.Navigator {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Recovery.URLFile == "" {
			return app.NewMemoryNavigator(cfg.Recovery.BaseURL)
		}
		nav, err := app.NewFileNavigator(cfg.Recovery.URLFile, cfg.Recovery.BaseURL)
		if err != nil {
			panic("failed to create recovery navigator: " + err.Error())
		}
		return nav
	})

	// Register HistoryService (public)
	di.RegisterToken(c, historyDI.HistoryService, func(sr di.ServiceRegistry) *app.Service {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewService(historyDI.GetStore(sr), log)
	})

	// Register URLState (public)
	di.RegisterToken(c, historyDI.URLState, func(sr di.ServiceRegistry) *app.URLState {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewURLState(historyDI.GetNavigator(sr), log)
	})

	// Register Recovery (public)
	di.RegisterToken(c, historyDI.Recovery, func(sr di.ServiceRegistry) *app.Recovery {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewRecovery(historyDI.GetURLState(sr), historyDI.GetHistoryService(sr), log)
	})

	return nil
}

// Startup loads the history so a corrupt or unreachable store is reported
// before a transfer starts.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	store := historyDI.GetStore(mono.Services())
	if closer, ok := store.(io.Closer); ok {
		mono.OnClose(closer)
	}

	svc := historyDI.GetHistoryService(mono.Services())
	items, err := svc.GetTransactions(ctx)
	if err != nil {
		return fmt.Errorf("load transfer history: %w", err)
	}

	if hs := mono.Health(); hs != nil {
		hs.RegisterCheck("history", health.PingCheck(func(ctx context.Context) (string, error) {
			items, err := svc.GetTransactions(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d transfers", len(items)), nil
		}))
	}

	log.Info(ctx, "history module started", "backend", cfg.History.Backend, "transfers", len(items))
	return nil
}
