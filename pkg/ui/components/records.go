package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
)

// RecordsComponent renders the per-step transaction log.
type RecordsComponent struct {
	records []domain.TransactionRecord
}

// NewRecordsComponent creates an empty log.
func NewRecordsComponent() *RecordsComponent {
	return &RecordsComponent{}
}

// Update replaces the records.
func (r *RecordsComponent) Update(records []domain.TransactionRecord) {
	r.records = records
}

// View renders one block per record.
func (r *RecordsComponent) View() string {
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	link := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")).Underline(true)

	var sb strings.Builder
	sb.WriteString(header.Render("TRANSACTIONS"))
	sb.WriteString("\n\n")
	if len(r.records) == 0 {
		sb.WriteString(muted.Render("  No transactions yet"))
		return sb.String()
	}

	for _, rec := range r.records {
		label := fmt.Sprintf("Step %d", rec.Step)
		if rec.IsSwitch() {
			label = "Network"
		}
		sb.WriteString(fmt.Sprintf("  %s %s", statusStyle(rec.Status).Render(string(rec.Status)), label))
		if rec.ChainName != "" {
			sb.WriteString(muted.Render(" on " + rec.ChainName))
		}
		sb.WriteString("\n")
		if rec.Message != "" {
			sb.WriteString("    " + rec.Message + "\n")
		}
		if rec.TxHash != "" {
			target := rec.ExplorerURL
			if target == "" {
				target = rec.TxHash
			}
			sb.WriteString("    " + link.Render(target) + "\n")
		}
		if rec.ErrorDetails != "" {
			sb.WriteString(muted.Render("    "+rec.ErrorDetails) + "\n")
		}
	}
	return sb.String()
}

func statusStyle(s domain.TxStatus) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch s {
	case domain.TxStatusSuccess:
		return base.Foreground(lipgloss.Color("#10B981"))
	case domain.TxStatusError:
		return base.Foreground(lipgloss.Color("#EF4444"))
	case domain.TxStatusConfirming, domain.TxStatusSigning, domain.TxStatusStarting:
		return base.Foreground(lipgloss.Color("#F59E0B"))
	}
	return base.Foreground(lipgloss.Color("#6B7280"))
}
