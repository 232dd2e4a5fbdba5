package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModel_Phases(t *testing.T) {
	m := New("Base → Torus Native")
	if m.phase != PhaseWelcome {
		t.Fatalf("phase = %s", m.phase)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.phase != PhaseStartup {
		t.Fatalf("after key phase = %s", m.phase)
	}

	for _, step := range startupOrder {
		m = update(t, m, StartupMsg{Step: step, Status: "connected"})
	}
	if m.phase != PhaseTransfer {
		t.Fatalf("after startup phase = %s", m.phase)
	}
}

func TestModel_StateMsg(t *testing.T) {
	m := New("transfer")
	m = update(t, m, StateMsg{
		State: domain.TransferState{Step: domain.Step2Confirming, Direction: domain.BaseToNative, Amount: "5"},
		Records: []domain.TransactionRecord{
			{Step: 1, Status: domain.TxStatusSuccess, TxHash: "0xaaa", ExplorerURL: "https://basescan.org/tx/0xaaa", ChainName: domain.ChainBase},
			{Step: 2, Status: domain.TxStatusConfirming, TxHash: "0xbbb", ChainName: domain.ChainTorusEVM},
		},
	})
	if m.phase != PhaseTransfer {
		t.Fatalf("phase = %s", m.phase)
	}

	view := m.View()
	for _, want := range []string{"Amount: 5 TORUS", "https://basescan.org/tx/0xaaa", "0xbbb", "Confirming"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_DoneAndErrors(t *testing.T) {
	m := New("transfer")
	m = update(t, m, DoneMsg{Err: errors.New("polling timed out")})
	for i := 0; i < 5; i++ {
		m = update(t, m, ErrorMsg{Error: errors.New("boom")})
	}
	if len(m.errors) != 3 {
		t.Errorf("errors kept = %d, want 3", len(m.errors))
	}
	if !strings.Contains(m.View(), "Stopped: polling timed out") {
		t.Error("view missing failure banner")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'e'}})
	if len(m.errors) != 0 {
		t.Error("errors not cleared")
	}
}

func TestModel_Quit(t *testing.T) {
	next, cmd := New("x").Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil || !next.(Model).quitting {
		t.Error("q did not quit")
	}
}
