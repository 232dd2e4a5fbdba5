// Package main is the entry point for the Torus fast bridge CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var (
	optionConfig = &cli.StringFlag{
		Name:    "config",
		Usage:   "path to configuration file",
		EnvVars: []string{"BRIDGE_CONFIG"},
	}
	optionCLI = &cli.BoolFlag{
		Name:  "cli",
		Usage: "print progress lines instead of the TUI",
	}
	optionAmount = &cli.StringFlag{
		Name:     "amount",
		Aliases:  []string{"a"},
		Usage:    "TORUS amount, decimal string",
		Required: true,
	}
	optionID = &cli.StringFlag{
		Name:  "id",
		Usage: "history entry id",
	}
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "torus-bridge",
		Usage:   "Move TORUS between Base and Torus Native through Torus EVM",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		Flags:   []cli.Flag{optionConfig, optionCLI},
		Commands: []*cli.Command{
			{
				Name:  "transfer",
				Usage: "Run a full two-step transfer",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "direction",
						Aliases:  []string{"d"},
						Usage:    "base-to-native or native-to-base",
						Required: true,
					},
					optionAmount,
				},
				Action: transferAction,
			},
			{
				Name:  "quick-send",
				Usage: "Send funds already on Torus EVM to Torus Native or Base (step 2 only)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "to",
						Usage:    "native or base",
						Required: true,
					},
					optionAmount,
				},
				Action: quickSendAction,
			},
			{
				Name:   "retry",
				Usage:  "Retry the failed step of a transfer from history",
				Flags:  []cli.Flag{optionID},
				Action: retryAction,
			},
			{
				Name:   "resume",
				Usage:  "Pick up the transfer referenced by the recovery URL",
				Action: resumeAction,
			},
			{
				Name:  "balances",
				Usage: "Show TORUS balances on Base, Torus EVM and Torus Native",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "evm-address", Usage: "EVM account (defaults to the configured wallet)"},
					&cli.StringFlag{Name: "native-address", Usage: "SS58 account (defaults to the configured seed)"},
				},
				Action: balancesAction,
			},
			historyCommand(),
			{
				Name:  "version",
				Usage: "Show version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(c.App.Writer, "torus-bridge %s (commit: %s, built: %s)\n", version, commit, buildDate)
					return nil
				},
			},
		},
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
