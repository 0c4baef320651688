package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cgfuse/cgfuse/pkg/fusion"
)

func dialogCandidate() fusion.Candidate {
	return fusion.Candidate{
		Name:       "Grid::reset",
		BlockLabel: "impl Grid",
		Src:        "pub fn reset(&mut self) {\n    self.cells.fill(0);\n}",
		Usages:     []string{"        grid.reset();"},
	}
}

func pressKey(t *testing.T, m ImplDialogModel, key string) (ImplDialogModel, tea.Cmd) {
	t.Helper()

	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}

	updated, cmd := m.Update(msg)
	model, ok := updated.(ImplDialogModel)
	if !ok {
		t.Fatalf("Update returned %T, want ImplDialogModel", updated)
	}
	return model, cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestDialogModelChoices(t *testing.T) {
	tests := []struct {
		key  string
		want fusion.Choice
	}{
		{key: "y", want: fusion.ChoiceInclude},
		{key: "enter", want: fusion.ChoiceInclude},
		{key: "n", want: fusion.ChoiceExclude},
		{key: "a", want: fusion.ChoiceIncludeBlock},
		{key: "x", want: fusion.ChoiceExcludeBlock},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m, cmd := pressKey(t, NewImplDialogModel(dialogCandidate()), tt.key)

			if !m.Decided {
				t.Fatal("model should be decided")
			}
			if m.Canceled {
				t.Fatal("model should not be canceled")
			}
			if m.Choice != tt.want {
				t.Errorf("Choice = %v, want %v", m.Choice, tt.want)
			}
			if !isQuit(cmd) {
				t.Error("deciding should quit the program")
			}
		})
	}
}

func TestDialogModelCancel(t *testing.T) {
	for _, key := range []string{"q", "esc", "ctrl+c"} {
		t.Run(key, func(t *testing.T) {
			m, cmd := pressKey(t, NewImplDialogModel(dialogCandidate()), key)

			if !m.Canceled {
				t.Fatal("model should be canceled")
			}
			if m.Decided {
				t.Fatal("canceled model should not be decided")
			}
			if !isQuit(cmd) {
				t.Error("canceling should quit the program")
			}
		})
	}
}

func TestDialogModelTogglesSource(t *testing.T) {
	m := NewImplDialogModel(dialogCandidate())

	if strings.Contains(m.View(), "self.cells.fill(0);") {
		t.Fatal("source should be hidden initially")
	}

	m, _ = pressKey(t, m, "s")
	if !strings.Contains(m.View(), "self.cells.fill(0);") {
		t.Error("source should be visible after pressing s")
	}

	m, _ = pressKey(t, m, "s")
	if strings.Contains(m.View(), "self.cells.fill(0);") {
		t.Error("source should hide again after pressing s twice")
	}
}

func TestDialogModelTogglesUsages(t *testing.T) {
	m := NewImplDialogModel(dialogCandidate())

	if strings.Contains(m.View(), "grid.reset();") {
		t.Fatal("usages should be hidden initially")
	}

	m, _ = pressKey(t, m, "u")
	if !strings.Contains(m.View(), "grid.reset();") {
		t.Error("usages should be visible after pressing u")
	}
}

func TestDialogModelView(t *testing.T) {
	view := NewImplDialogModel(dialogCandidate()).View()

	if !strings.Contains(view, "Grid::reset") {
		t.Error("view should name the candidate")
	}
	if !strings.Contains(view, "impl Grid") {
		t.Error("view should name the impl block")
	}
	if !strings.Contains(view, "1 mention(s) in required code") {
		t.Error("view should count usages")
	}
}

func TestDialogModelViewWithoutUsages(t *testing.T) {
	c := dialogCandidate()
	c.Usages = nil

	view := NewImplDialogModel(c).View()
	if !strings.Contains(view, "no mention in required code") {
		t.Error("view should flag unused candidates")
	}
}
