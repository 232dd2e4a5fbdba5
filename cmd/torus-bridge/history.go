package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	historyApp "github.com/fd1az/torus-bridge/business/history/app"
	historyDI "github.com/fd1az/torus-bridge/business/history/di"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect and edit the transfer history",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List transfers, newest first",
				Action: withHistory(historyList),
			},
			{
				Name:      "show",
				Usage:     "Print one transfer as JSON",
				ArgsUsage: "<id>",
				Action:    withHistory(historyShow),
			},
			{
				Name:      "delete",
				Usage:     "Delete one transfer",
				ArgsUsage: "<id>",
				Action:    withHistory(historyDelete),
			},
			{
				Name:   "clear",
				Usage:  "Delete every transfer",
				Action: withHistory(historyClear),
			},
			{
				Name:   "mark-recovered",
				Usage:  "Mark failed transfers as recovered through the EVM recover tool",
				Action: withHistory(historyMarkRecovered),
			},
		},
	}
}

// withHistory runs fn with only the history module started; no chain is
// contacted.
func withHistory(fn func(c *cli.Context, svc *historyApp.Service) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c, false)
		if err != nil {
			return err
		}
		defer e.close()

		if err := e.mono.StartModules(c.Context, e.history); err != nil {
			return fmt.Errorf("failed to start history: %w", err)
		}
		return fn(c, historyDI.GetHistoryService(e.services()))
	}
}

func historyList(c *cli.Context, svc *historyApp.Service) error {
	items, err := svc.GetTransactions(c.Context)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(c.App.Writer, "no transfers")
		return nil
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tDIRECTION\tAMOUNT\tSTATUS\tSTEP\tERROR")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			item.ID,
			item.Timestamp.Local().Format(time.DateTime),
			item.Direction,
			item.Amount,
			item.Status,
			item.CurrentStep,
			item.ErrorMessage,
		)
	}
	return w.Flush()
}

func historyShow(c *cli.Context, svc *historyApp.Service) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("usage: history show <id>")
	}
	item, ok, err := svc.GetTransactionByID(c.Context, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no history entry %s", id)
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(item)
}

func historyDelete(c *cli.Context, svc *historyApp.Service) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("usage: history delete <id>")
	}
	if err := svc.DeleteTransaction(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %s\n", id)
	return nil
}

func historyClear(c *cli.Context, svc *historyApp.Service) error {
	if err := svc.ClearHistory(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "history cleared")
	return nil
}

func historyMarkRecovered(c *cli.Context, svc *historyApp.Service) error {
	n, err := svc.MarkFailedAsRecoveredViaEvmRecover(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "marked %d transfer(s) as recovered\n", n)
	return nil
}
