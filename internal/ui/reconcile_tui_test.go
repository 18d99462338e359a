package ui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestReconcileModelTracksComponentResults(t *testing.T) {
	m := NewReconcileModel([]string{"CompA", "CompB"})

	updated, _ := m.Update(ComponentResultMsg{Name: "CompA"})
	m = updated.(ReconcileModel)
	if m.components[m.index["CompA"]].status != ComponentDone {
		t.Fatalf("expected CompA to be marked done")
	}
	if m.components[m.index["CompB"]].status != ComponentRunning {
		t.Fatalf("expected CompB to remain running")
	}

	wantErr := errors.New("boom")
	updated, _ = m.Update(ComponentResultMsg{Name: "CompB", Err: wantErr})
	m = updated.(ReconcileModel)
	if m.components[m.index["CompB"]].status != ComponentFailed {
		t.Fatalf("expected CompB to be marked failed")
	}
	if m.components[m.index["CompB"]].err != wantErr {
		t.Fatalf("expected CompB's error to be recorded")
	}
}

func TestReconcileModelQuitsOnDoneMsg(t *testing.T) {
	m := NewReconcileModel([]string{"CompA"})

	updated, cmd := m.Update(DoneMsg{})
	m = updated.(ReconcileModel)
	if !m.quitting {
		t.Fatalf("expected quitting to be set after DoneMsg")
	}
	if cmd == nil {
		t.Fatalf("expected a tea.Quit command")
	}
	if m.View() != "" {
		t.Errorf("expected empty view once quitting")
	}
}

func TestReconcileModelUnknownComponentIsIgnored(t *testing.T) {
	m := NewReconcileModel([]string{"CompA"})

	updated, _ := m.Update(ComponentResultMsg{Name: "DoesNotExist"})
	m = updated.(ReconcileModel)
	if m.components[0].status != ComponentRunning {
		t.Fatalf("expected CompA to be unaffected by a result for an unknown component")
	}
}

func TestReconcileModelKeyQuit(t *testing.T) {
	m := NewReconcileModel([]string{"CompA"})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected ctrl+c to return a quit command")
	}
}
