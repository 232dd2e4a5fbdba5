package reporter

import (
	"github.com/fd1az/torus-bridge/business/bridge/domain"
	"github.com/fd1az/torus-bridge/pkg/ui"
)

// TUIReporter forwards progress to the running Bubble Tea program.
type TUIReporter struct {
	send func(msg any)
}

// NewTUIReporter returns a reporter sending through ui.Send.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{send: func(msg any) { ui.Send(msg) }}
}

// OnState is a StateListener.
func (r *TUIReporter) OnState(state domain.TransferState, records []domain.TransactionRecord) {
	r.send(ui.StateMsg{State: state, Records: records})
}

// Balance forwards a balance reading.
func (r *TUIReporter) Balance(chain, amount string) {
	r.send(ui.BalanceMsg{Chain: chain, Balance: amount})
}

// Startup forwards a startup step status.
func (r *TUIReporter) Startup(step, status, message string) {
	r.send(ui.StartupMsg{Step: step, Status: status, Message: message})
}

// Connection forwards a chain connection status.
func (r *TUIReporter) Connection(name string, connected bool) {
	r.send(ui.ConnectionStatusMsg{Name: name, Connected: connected})
}

// Stop tells the TUI the command finished.
func (r *TUIReporter) Stop(err error) {
	r.send(ui.DoneMsg{Err: err})
}
