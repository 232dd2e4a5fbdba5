package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
	"github.com/fd1az/torus-bridge/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome  Phase = "welcome"  // Initial welcome screen
	PhaseStartup  Phase = "startup"  // Connecting to chains
	PhaseTransfer Phase = "transfer" // Transfer progress
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 1500 * time.Millisecond

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

var startupOrder = []string{"config", "base", "torus_evm", "torus_native", "history"}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	title string

	// Components
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	steps   *components.StepsComponent
	records *components.RecordsComponent
	status  *components.StatusComponent

	// Phase state
	phase        Phase
	welcomeStart time.Time

	// Startup state
	startupSteps map[string]*StartupStep
	startupTime  time.Time

	// State
	quitting    bool
	width       int
	state       domain.TransferState
	lastUpdate  time.Time
	showLogs    bool
	showDetails bool
	logs        []string
	errors      []ErrorEntry

	finished bool
	result   error
}

// New creates a new TUI model. title describes the running command.
func New(title string) Model {
	now := time.Now()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorWarning)

	return Model{
		title:        title,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		spinner:      sp,
		steps:        components.NewStepsComponent(),
		records:      components.NewRecordsComponent(),
		status:       components.NewStatusComponent(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		startupSteps: map[string]*StartupStep{
			"config":       {Name: "Loading configuration", Status: "pending"},
			"base":         {Name: "Connecting to Base", Status: "pending"},
			"torus_evm":    {Name: "Connecting to Torus EVM", Status: "pending"},
			"torus_native": {Name: "Connecting to Torus Native", Status: "pending"},
			"history":      {Name: "Opening transfer history", Status: "pending"},
		},
		startupTime: now,
		state:       domain.IdleState(),
		logs:        make([]string, 0, 10),
		errors:      make([]ErrorEntry, 0, 3),
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.spinner.Tick)
}

// tickCmd returns a command that sends a tick every 100ms.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m *Model) leaveWelcome() {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	if OnStartModules != nil {
		go OnStartModules()
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.phase == PhaseWelcome {
			m.leaveWelcome()
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Logs):
			m.showLogs = !m.showLogs
		case key.Matches(msg, m.keys.Details):
			m.showDetails = !m.showDetails
		case key.Matches(msg, m.keys.Clear):
			m.errors = make([]ErrorEntry, 0, 3)
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.leaveWelcome()
		}
		return m, tickCmd()

	case StartupMsg:
		if step, ok := m.startupSteps[msg.Step]; ok {
			step.Status = msg.Status
		}
		if msg.Status == "failed" && msg.Message != "" {
			m.addError(msg.Message)
		}
		if m.startupDone() && m.phase == PhaseStartup {
			m.phase = PhaseTransfer
		}

	case ConnectionStatusMsg:
		m.status.Update(components.ConnectionStatus{
			Name:      msg.Name,
			Connected: msg.Connected,
			Latency:   msg.Latency,
		})
		m.lastUpdate = time.Now()

	case BalanceMsg:
		m.status.SetBalance(msg.Chain, msg.Balance)
		m.lastUpdate = time.Now()

	case StateMsg:
		if m.phase != PhaseTransfer {
			m.phase = PhaseTransfer
		}
		m.state = msg.State
		m.steps.Update(components.Legs(msg.State, failedStep(msg.Records)))
		m.records.Update(msg.Records)
		m.lastUpdate = time.Now()

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)

	case ErrorMsg:
		if msg.Error != nil {
			m.addError(msg.Error.Error())
			m.logs = addLog(m.logs, "error", msg.Error.Error())
		}

	case DoneMsg:
		m.phase = PhaseTransfer
		m.finished = true
		m.result = msg.Err
	}

	return m, nil
}

func (m *Model) addError(message string) {
	m.errors = append(m.errors, ErrorEntry{Message: message, Timestamp: time.Now()})
	if len(m.errors) > 3 {
		m.errors = m.errors[len(m.errors)-3:]
	}
}

func (m Model) startupDone() bool {
	for _, step := range m.startupSteps {
		if step.Status != "connected" && step.Status != "done" {
			return false
		}
	}
	return true
}

func failedStep(records []domain.TransactionRecord) int {
	for _, r := range records {
		if r.Status == domain.TxStatusError && !r.IsSwitch() {
			return r.Step
		}
	}
	return 0
}

// addLog adds a log message and returns the updated slice (keeps last 8).
func addLog(logs []string, level, message string) []string {
	line := fmt.Sprintf("[%s] %s: %s", time.Now().Format("15:04:05"), level, message)
	logs = append(logs, line)
	if len(logs) > 8 {
		logs = logs[len(logs)-8:]
	}
	return logs
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}
	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(" Torus Bridge "))
	b.WriteString("  ")
	b.WriteString(HeaderStyle.Render(m.title))
	b.WriteString("\n\n")

	if m.state.Amount != "" {
		b.WriteString(MutedValue.Render(fmt.Sprintf("  Amount: %s TORUS", m.state.Amount)))
		b.WriteString("\n\n")
	}

	left := m.steps.View(m.spinner.View()) + "\n" + m.status.View()
	right := m.records.View()
	if m.width > 100 {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			BoxStyle.Width(m.width/2-2).Render(left),
			BoxStyle.Width(m.width/2-2).Render(right)))
	} else {
		b.WriteString(BoxStyle.Render(left))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Render(right))
	}
	b.WriteString("\n\n")

	if m.state.Step == domain.StepError && m.state.ErrorMessage != "" {
		b.WriteString(ErrorText.Render("  " + m.state.ErrorMessage))
		b.WriteString("\n")
		if m.showDetails && m.state.ErrorDetails != "" {
			b.WriteString(MutedValue.Render("  " + m.state.ErrorDetails))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.finished {
		if m.result == nil {
			b.WriteString(SuccessBanner.Render("Transfer complete"))
		} else {
			b.WriteString(FailureBanner.Render("Stopped: " + m.result.Error()))
		}
		b.WriteString("\n\n")
	}

	if len(m.errors) > 0 {
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(ColorDanger).Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(ErrorText.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.showLogs && len(m.logs) > 0 {
		for _, line := range m.logs {
			b.WriteString(MutedValue.Render("  " + line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	dots := strings.Repeat(".", int(time.Since(m.welcomeStart).Milliseconds()/300)%4)

	logo := `
   ████████╗ ██████╗ ██████╗ ██╗   ██╗███████╗
   ╚══██╔══╝██╔═══██╗██╔══██╗██║   ██║██╔════╝
      ██║   ██║   ██║██████╔╝██║   ██║███████╗
      ██║   ██║   ██║██╔══██╗██║   ██║╚════██║
      ██║   ╚██████╔╝██║  ██║╚██████╔╝███████║
      ╚═╝    ╚═════╝ ╚═╝  ╚═╝ ╚═════╝ ╚══════╝
`
	var sb strings.Builder
	sb.WriteString("\n\n\n")
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render("            F A S T   B R I D G E"))
	sb.WriteString("\n\n")
	sb.WriteString(mutedStyle.Render("      Base  ⇄  Torus EVM  ⇄  Torus Native"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("              Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(mutedStyle.Render("       Press any key to skip, or wait..."))
	sb.WriteString("\n")
	return sb.String()
}

// renderStartupScreen renders the connection progress screen.
func (m Model) renderStartupScreen() string {
	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	successStyle := lipgloss.NewStyle().Foreground(ColorSecondary)
	connectingStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	failedStyle := lipgloss.NewStyle().Foreground(ColorDanger)

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(TitleStyle.Render(" Torus Bridge "))
	sb.WriteString("\n\n")
	sb.WriteString(lipgloss.NewStyle().Bold(true).Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, k := range startupOrder {
		step, ok := m.startupSteps[k]
		if !ok {
			continue
		}
		var icon, statusText string
		var style lipgloss.Style
		switch step.Status {
		case "connected", "done":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			icon, statusText, style = m.spinner.View(), "Connecting...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Failed", failedStyle
		default:
			icon, statusText, style = "○", "Pending", mutedStyle
		}
		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			mutedStyle.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n")
	for _, err := range m.errors {
		sb.WriteString(failedStyle.Render("  • " + err.Message))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules
// should start. main sets it before Run.
var OnStartModules func()

// Run starts the Bubble Tea program and blocks until it exits.
func Run(title string) error {
	Program = tea.NewProgram(New(title), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
