package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func typeInto(p *ConsolePanel, s string) {
	for _, r := range s {
		p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestConsolePanel_HiddenByDefault(t *testing.T) {
	p := NewConsolePanel()
	if p.IsVisible() {
		t.Error("Console should not be visible initially")
	}
	if p.View() != "" {
		t.Error("Hidden console should render nothing")
	}
	if p.Focus() != nil || p.Focused() {
		t.Error("Hidden console should not take focus")
	}
}

func TestConsolePanel_Submit(t *testing.T) {
	p := NewConsolePanel()
	p.Show()
	typeInto(p, "Alice")

	_, line, submitted := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !submitted {
		t.Fatal("enter should submit")
	}
	if line != "Alice" {
		t.Errorf("line = %q, want 'Alice'", line)
	}
	if p.input.Value() != "" {
		t.Errorf("input not cleared: %q", p.input.Value())
	}

	// An empty line is still reported; the caller decides what to do with it.
	_, line, submitted = p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !submitted || line != "" {
		t.Errorf("got (%q, %v), want ('', true)", line, submitted)
	}
}

func TestConsolePanel_History(t *testing.T) {
	p := NewConsolePanel()
	p.Show()
	typeInto(p, "one")
	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	typeInto(p, "two")
	p.Update(tea.KeyMsg{Type: tea.KeyEnter})

	p.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := p.input.Value(); got != "two" {
		t.Errorf("after up = %q, want 'two'", got)
	}
	p.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := p.input.Value(); got != "one" {
		t.Errorf("after up up = %q, want 'one'", got)
	}
	p.Update(tea.KeyMsg{Type: tea.KeyDown})
	p.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := p.input.Value(); got != "" {
		t.Errorf("after browsing back down = %q, want ''", got)
	}
}

func TestConsolePanel_HideKeepsText(t *testing.T) {
	p := NewConsolePanel()
	p.Show()
	typeInto(p, "draft")
	p.Hide()

	if p.IsVisible() || p.Focused() {
		t.Error("Console should be hidden and unfocused after Hide()")
	}
	p.Show()
	if got := p.input.Value(); got != "draft" {
		t.Errorf("value = %q, want 'draft'", got)
	}
}
