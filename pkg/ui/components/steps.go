// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
)

// LegStatus is how far one bridge leg has progressed.
type LegStatus string

const (
	LegPending LegStatus = "pending"
	LegActive  LegStatus = "active"
	LegDone    LegStatus = "done"
	LegFailed  LegStatus = "failed"
)

// Leg is one rendered row of the timeline.
type Leg struct {
	Number int
	Route  string
	Status LegStatus
	Phase  string
}

// Routes returns the two leg descriptions of a direction.
func Routes(d domain.Direction) (string, string) {
	switch d {
	case domain.BaseToNative:
		return domain.ChainBase + " → " + domain.ChainTorusEVM, domain.ChainTorusEVM + " → " + domain.ChainTorusNative
	case domain.NativeToBase:
		return domain.ChainTorusNative + " → " + domain.ChainTorusEVM, domain.ChainTorusEVM + " → " + domain.ChainBase
	}
	return "Step 1", "Step 2"
}

// Legs derives both timeline rows from the transfer state. failedStep is
// the step of the ERROR record, or 0.
func Legs(state domain.TransferState, failedStep int) [2]Leg {
	r1, r2 := Routes(state.Direction)
	legs := [2]Leg{
		{Number: 1, Route: r1, Status: LegPending},
		{Number: 2, Route: r2, Status: LegPending},
	}

	switch state.Step {
	case domain.StepComplete:
		legs[0].Status, legs[1].Status = LegDone, LegDone
	case domain.StepError:
		if failedStep == 2 {
			legs[0].Status = LegDone
			legs[1].Status = LegFailed
		} else {
			legs[0].Status = LegFailed
		}
	case domain.Step1Complete:
		legs[0].Status = LegDone
	default:
		switch state.Step.Leg() {
		case 1:
			legs[0].Status, legs[0].Phase = LegActive, phaseLabel(state.Step)
		case 2:
			legs[0].Status = LegDone
			legs[1].Status, legs[1].Phase = LegActive, phaseLabel(state.Step)
		}
	}
	return legs
}

func phaseLabel(s domain.Step) string {
	switch s {
	case domain.Step1Preparing, domain.Step2Preparing:
		return "Preparing"
	case domain.Step2Switching:
		return "Switching network"
	case domain.Step1Signing, domain.Step2Signing:
		return "Waiting for signature"
	case domain.Step1Confirming, domain.Step2Confirming:
		return "Confirming"
	}
	return ""
}

// StepsComponent renders the two-leg timeline.
type StepsComponent struct {
	legs [2]Leg
}

// NewStepsComponent creates an empty timeline.
func NewStepsComponent() *StepsComponent {
	return &StepsComponent{legs: Legs(domain.IdleState(), 0)}
}

// Update replaces the timeline rows.
func (s *StepsComponent) Update(legs [2]Leg) {
	s.legs = legs
}

// View renders the timeline. spinner is drawn next to the active leg.
func (s *StepsComponent) View(spinner string) string {
	done := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	active := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	failed := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var sb strings.Builder
	for _, leg := range s.legs {
		var icon, text string
		var style lipgloss.Style
		switch leg.Status {
		case LegDone:
			icon, text, style = "✓", "Complete", done
		case LegActive:
			icon, text, style = spinner, leg.Phase, active
		case LegFailed:
			icon, text, style = "✗", "Failed", failed
		default:
			icon, text, style = "○", "Pending", muted
		}
		sb.WriteString(fmt.Sprintf("  %s Step %d  %s  %s\n",
			style.Render(icon), leg.Number, leg.Route, style.Render(text)))
	}
	return sb.String()
}
