package components

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus is the state of one chain connection.
type ConnectionStatus struct {
	Name      string
	Connected bool
	Latency   time.Duration
	Balance   string
}

// StatusComponent renders chain connections and balances.
type StatusComponent struct {
	connections map[string]ConnectionStatus
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{connections: make(map[string]ConnectionStatus)}
}

// Update records a connection change, keeping the last known balance.
func (s *StatusComponent) Update(status ConnectionStatus) {
	if status.Balance == "" {
		status.Balance = s.connections[status.Name].Balance
	}
	s.connections[status.Name] = status
}

// SetBalance records the balance of a chain.
func (s *StatusComponent) SetBalance(name, balance string) {
	c := s.connections[name]
	c.Name = name
	c.Balance = balance
	s.connections[name] = c
}

// View renders the status component.
func (s *StatusComponent) View() string {
	if len(s.connections) == 0 {
		return "No connections"
	}
	names := make([]string, 0, len(s.connections))
	for name := range s.connections {
		names = append(names, name)
	}
	sort.Strings(names)

	up := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	down := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	var sb strings.Builder
	for _, name := range names {
		conn := s.connections[name]
		status, style := "○", down
		if conn.Connected {
			status, style = "●", up
		}
		line := fmt.Sprintf("├─ %s %s", style.Render(status), conn.Name)
		if conn.Connected && conn.Latency > 0 {
			line += fmt.Sprintf(" (%s)", conn.Latency.Round(time.Millisecond))
		}
		if conn.Balance != "" {
			line += "  " + conn.Balance + " TORUS"
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}
