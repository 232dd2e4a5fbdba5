package app

import "time"

// Polling and timeout defaults.
const (
	PollInterval          = 5 * time.Second
	MaxPolls              = 180
	SwitchRetryDelay      = 5 * time.Second
	MaxSwitchAttempts     = 3
	DefaultOperationTime  = 5 * time.Minute
	PollingOperationTime  = 15 * time.Minute
	RequiredConfirmations = 2

	GasContractCall = 100000

	BaseChainID uint64 = 8453
)

// Timing groups the tunable durations of a transfer. Zero or negative
// fields take the DefaultTiming value.
type Timing struct {
	PollInterval          time.Duration
	MaxPolls              int
	PollTimeout           time.Duration
	OperationTimeout      time.Duration
	SwitchRetryDelay      time.Duration
	MaxSwitchAttempts     int
	RequiredConfirmations uint64
}

// DefaultTiming returns the production values.
func DefaultTiming() Timing {
	return Timing{
		PollInterval:          PollInterval,
		MaxPolls:              MaxPolls,
		PollTimeout:           PollingOperationTime,
		OperationTimeout:      DefaultOperationTime,
		SwitchRetryDelay:      SwitchRetryDelay,
		MaxSwitchAttempts:     MaxSwitchAttempts,
		RequiredConfirmations: RequiredConfirmations,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.PollInterval <= 0 {
		t.PollInterval = d.PollInterval
	}
	if t.MaxPolls <= 0 {
		t.MaxPolls = d.MaxPolls
	}
	if t.PollTimeout <= 0 {
		t.PollTimeout = d.PollTimeout
	}
	if t.OperationTimeout <= 0 {
		t.OperationTimeout = d.OperationTimeout
	}
	if t.SwitchRetryDelay <= 0 {
		t.SwitchRetryDelay = d.SwitchRetryDelay
	}
	if t.MaxSwitchAttempts <= 0 {
		t.MaxSwitchAttempts = d.MaxSwitchAttempts
	}
	if t.RequiredConfirmations == 0 {
		t.RequiredConfirmations = d.RequiredConfirmations
	}
	return t
}
