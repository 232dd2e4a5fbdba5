// Package ui provides the Bubble Tea TUI for the Torus bridge.
package ui

import (
	"time"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
)

// StateMsg carries a transfer state snapshot.
type StateMsg struct {
	State   domain.TransferState
	Records []domain.TransactionRecord
}

// BalanceMsg is sent when a chain balance is read.
type BalanceMsg struct {
	Chain   string
	Balance string // formatted TORUS amount
}

// ConnectionStatusMsg is sent when connection status changes.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // "config", "base", "torus_evm", "torus_native", "history"
	Status  string // "connecting", "connected", "failed"
	Message string
}

// DoneMsg is sent when the command has finished. Err is nil on success.
type DoneMsg struct {
	Err error
}
