package main

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	bridgeDI "github.com/fd1az/torus-bridge/business/bridge/di"
	"github.com/fd1az/torus-bridge/business/bridge/domain"
	"github.com/fd1az/torus-bridge/business/bridge/infra/reporter"
	historyApp "github.com/fd1az/torus-bridge/business/history/app"
	historyDI "github.com/fd1az/torus-bridge/business/history/di"
	historyDomain "github.com/fd1az/torus-bridge/business/history/domain"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/asset"
	"github.com/fd1az/torus-bridge/pkg/ui"
)

// progress is what a transfer command reports to.
type progress interface {
	OnState(state domain.TransferState, records []domain.TransactionRecord)
	Balance(chain, amount string)
	Stop(err error)
}

// job is the orchestrator call a command makes once modules are started.
type job func(ctx context.Context, e *env, o *app.Orchestrator) error

func transferAction(c *cli.Context) error {
	direction, err := domain.ParseDirection(c.String("direction"))
	if err != nil {
		return err
	}
	amount := c.String(optionAmount.Name)
	title := fmt.Sprintf("Transfer %s TORUS %s", amount, direction)
	return runJob(c, title, func(ctx context.Context, e *env, o *app.Orchestrator) error {
		return o.ExecuteTransfer(ctx, direction, amount)
	})
}

func quickSendAction(c *cli.Context) error {
	amount := c.String(optionAmount.Name)
	switch strings.ToLower(c.String("to")) {
	case "native":
		return runJob(c, "Quick send "+amount+" TORUS to Torus Native", func(ctx context.Context, e *env, o *app.Orchestrator) error {
			return o.ExecuteEvmToNative(ctx, amount)
		})
	case "base":
		return runJob(c, "Quick send "+amount+" TORUS to Base", func(ctx context.Context, e *env, o *app.Orchestrator) error {
			return o.ExecuteEvmToBase(ctx, amount)
		})
	default:
		return fmt.Errorf("invalid --to %q: want native or base", c.String("to"))
	}
}

func retryAction(c *cli.Context) error {
	id := c.String(optionID.Name)
	return runJob(c, "Retry transfer", func(ctx context.Context, e *env, o *app.Orchestrator) error {
		item, err := retryTarget(ctx, historyDI.GetHistoryService(e.services()), id)
		if err != nil {
			return err
		}
		if err := o.RestoreFromHistory(item); err != nil {
			return err
		}
		return o.RetryFromFailedStep(ctx)
	})
}

// retryTarget returns the entry named by id, or the newest failed entry.
func retryTarget(ctx context.Context, svc *historyApp.Service, id string) (historyDomain.Item, error) {
	if id != "" {
		item, ok, err := svc.GetTransactionByID(ctx, id)
		if err != nil {
			return historyDomain.Item{}, err
		}
		if !ok {
			return historyDomain.Item{}, fmt.Errorf("no history entry %s", id)
		}
		return item, nil
	}
	items, err := svc.GetTransactions(ctx)
	if err != nil {
		return historyDomain.Item{}, err
	}
	for _, item := range items {
		if item.Status == historyDomain.StatusError && item.CanRetry {
			return item, nil
		}
	}
	return historyDomain.Item{}, fmt.Errorf("no failed transfer to retry")
}

func resumeAction(c *cli.Context) error {
	return runJob(c, "Resume transfer", func(ctx context.Context, e *env, o *app.Orchestrator) error {
		plan, err := historyDI.GetRecovery(e.services()).Check(ctx)
		if err != nil {
			return err
		}
		switch plan.Action {
		case historyApp.RecoveryResume:
			e.log.Info(ctx, "resuming transfer", "id", plan.Item.ID, "phase", plan.Phase)
			return o.Resume(ctx, plan.Item)
		case historyApp.RecoveryRestore:
			if plan.Phase == historyDomain.ResumeRestore {
				if err := o.Resume(ctx, plan.Item); !apperror.HasCode(err, apperror.CodeRecoveryNeedsRetry) {
					return err
				}
				return fmt.Errorf("transfer %s stopped while step 2 was being signed; check Torus EVM before running retry --id %s", plan.Item.ID, plan.Item.ID)
			}
			if err := o.RestoreFromHistory(plan.Item); err != nil {
				return err
			}
			return fmt.Errorf("transfer %s failed: %s (run retry --id %s)", plan.Item.ID, plan.Item.ErrorMessage, plan.Item.ID)
		case historyApp.RecoveryCompleted:
			e.log.Info(ctx, "transfer already completed", "id", plan.Item.ID)
			return nil
		default:
			e.log.Info(ctx, "no transfer to resume")
			return nil
		}
	})
}

// runJob starts the modules, subscribes a reporter to the orchestrator and
// runs fn, in the TUI unless --cli is set.
func runJob(c *cli.Context, title string, fn job) error {
	tui := !c.Bool(optionCLI.Name)
	e, err := setup(c, tui)
	if err != nil {
		return err
	}
	defer e.close()

	if err := requireSigners(e.cfg); err != nil {
		return err
	}

	var rep progress
	if tui {
		tr := reporter.NewTUIReporter()
		e.bridge.Progress = tr.Startup
		rep = tr
	} else {
		cr := reporter.NewConsoleReporter()
		cr.Start(title)
		e.bridge.Progress = func(step, status, message string) {
			e.log.Info(c.Context, "startup", "step", step, "status", status, "message", message)
		}
		rep = cr
	}
	e.bridge.OnBalance = func(chain string, balance *big.Int) {
		rep.Balance(chain, asset.FormatWeiToDecimalString(balance))
	}

	start := func(ctx context.Context) error {
		if tui {
			ui.Send(ui.StartupMsg{Step: "config", Status: "connected"})
		}
		if err := e.mono.StartModules(ctx, e.history, e.bridge); err != nil {
			return fmt.Errorf("failed to start modules: %w", err)
		}
		if tui {
			ui.Send(ui.StartupMsg{Step: "history", Status: "connected"})
		}
		o, err := resolve(bridgeDI.GetOrchestrator, e.services())
		if err != nil {
			return err
		}
		unsubscribe := o.Subscribe(rep.OnState)
		defer unsubscribe()

		err = fn(ctx, e, o)
		rep.Stop(err)
		return err
	}

	if tui {
		return runTUI(c.Context, title, start)
	}
	return start(c.Context)
}

func runTUI(ctx context.Context, title string, start func(ctx context.Context) error) error {
	// Channel to receive StartModulesMsg signal
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	// Run transfer logic in background (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		// Wait for welcome screen to complete (StartModulesMsg signal)
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		err := start(ctx)
		if err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
		}
		errCh <- err
	}()

	// Run TUI (blocking) - shows immediately with welcome screen
	if err := ui.Run(title); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	// Check for transfer errors
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
