// Package domain holds the value types of a two-step bridge transfer.
package domain

import "fmt"

// Step is the phase of the transfer state machine.
type Step string

const (
	StepIdle        Step = "idle"
	Step1Preparing  Step = "step1_preparing"
	Step1Signing    Step = "step1_signing"
	Step1Confirming Step = "step1_confirming"
	Step1Complete   Step = "step1_complete"
	Step2Preparing  Step = "step2_preparing"
	Step2Switching  Step = "step2_switching"
	Step2Signing    Step = "step2_signing"
	Step2Confirming Step = "step2_confirming"
	StepComplete    Step = "complete"
	StepError       Step = "error"
)

var allSteps = []Step{
	StepIdle, Step1Preparing, Step1Signing, Step1Confirming, Step1Complete,
	Step2Preparing, Step2Switching, Step2Signing, Step2Confirming,
	StepComplete, StepError,
}

// ParseStep validates a persisted step value.
func ParseStep(s string) (Step, error) {
	for _, step := range allSteps {
		if string(step) == s {
			return step, nil
		}
	}
	return "", fmt.Errorf("unknown step %q", s)
}

func (s Step) String() string { return string(s) }

// IsActive reports whether a transfer is running.
func (s Step) IsActive() bool {
	switch s {
	case StepIdle, StepComplete, StepError, "":
		return false
	}
	return true
}

// Leg returns 1 or 2 for the bridge leg a phase belongs to, 0 otherwise.
func (s Step) Leg() int {
	switch s {
	case Step1Preparing, Step1Signing, Step1Confirming, Step1Complete:
		return 1
	case Step2Preparing, Step2Switching, Step2Signing, Step2Confirming:
		return 2
	}
	return 0
}
