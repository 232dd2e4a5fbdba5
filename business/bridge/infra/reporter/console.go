// Package reporter renders transfer progress for the CLI, either as plain
// console lines or as messages to the TUI.
package reporter

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
)

// ConsoleReporter prints step changes and new record statuses.
type ConsoleReporter struct {
	out io.Writer
	now func() time.Time

	mu       sync.Mutex
	lastStep domain.Step
	seen     map[string]bool
}

// NewConsoleReporter creates a reporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return NewConsoleReporterTo(os.Stdout)
}

// NewConsoleReporterTo creates a reporter writing to out.
func NewConsoleReporterTo(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out, now: time.Now, seen: make(map[string]bool)}
}

// Start prints the banner.
func (r *ConsoleReporter) Start(title string) {
	fmt.Fprintln(r.out, "Torus Bridge")
	fmt.Fprintln(r.out, "================================================================================")
	fmt.Fprintln(r.out, title)
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
}

// OnState is a StateListener. It prints only what changed since the last
// call.
func (r *ConsoleReporter) OnState(state domain.TransferState, records []domain.TransactionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().Format("15:04:05")
	if state.Step != r.lastStep {
		r.lastStep = state.Step
		fmt.Fprintf(r.out, "[%s] %-18s %s\n", ts, state.Step, describe(state))
	}
	for _, rec := range records {
		key := fmt.Sprintf("%d|%s|%s|%s", rec.Step, rec.Status, rec.TxHash, rec.Message)
		if r.seen[key] || rec.Status == domain.TxStatusNone {
			continue
		}
		r.seen[key] = true
		label := fmt.Sprintf("step %d", rec.Step)
		if rec.IsSwitch() {
			label = "network"
		}
		fmt.Fprintf(r.out, "[%s]   %-8s %-10s %s\n", ts, label, rec.Status, rec.Message)
		if rec.ExplorerURL != "" {
			fmt.Fprintf(r.out, "           %s\n", rec.ExplorerURL)
		} else if rec.TxHash != "" {
			fmt.Fprintf(r.out, "           tx %s\n", rec.TxHash)
		}
	}
}

func describe(state domain.TransferState) string {
	switch state.Step {
	case domain.StepComplete:
		return fmt.Sprintf("transfer of %s TORUS complete", state.Amount)
	case domain.StepError:
		if state.ErrorDetails != "" {
			return state.ErrorMessage + " (" + state.ErrorDetails + ")"
		}
		return state.ErrorMessage
	case domain.StepIdle:
		return ""
	}
	return fmt.Sprintf("%s TORUS %s", state.Amount, state.Direction)
}

// Balance prints a balance line.
func (r *ConsoleReporter) Balance(chain, amount string) {
	fmt.Fprintf(r.out, "  %-14s %s TORUS\n", chain, amount)
}

// Stop prints the result.
func (r *ConsoleReporter) Stop(err error) {
	fmt.Fprintln(r.out, "================================================================================")
	if err != nil {
		fmt.Fprintf(r.out, "Stopped: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, "Done")
}
