// internal/tui/picker.go
// Package tui holds the interactive terminal views.
package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/cardia/internal/evaluation"
)

// ErrCancelled is returned by Pick when the user quits without choosing.
var ErrCancelled = errors.New("selection cancelled")

var docStyle = lipgloss.NewStyle().Margin(1, 2)

// item represents one ranked model in the list.
type item struct {
	title string
	desc  string
	file  string
}

// Title returns the title of the list item.
func (i item) Title() string { return i.title }

// Description returns the metrics line shown under the title.
func (i item) Description() string { return i.desc }

// FilterValue returns the title of the item, used for filtering.
func (i item) FilterValue() string { return i.title }

// Picker is a Bubble Tea model listing ranked models. Enter selects the
// highlighted entry; q or ctrl+c quits.
type Picker struct {
	list   list.Model
	choice string
	width  int
	height int
}

// NewPicker builds a picker over the ranked entries of cmp.
func NewPicker(cmp *evaluation.Comparison) *Picker {
	items := make([]list.Item, len(cmp.Ranked))
	for i, ev := range cmp.Ranked {
		items[i] = item{
			title: fmt.Sprintf("%d. %s", i+1, ev.Label),
			desc:  fmt.Sprintf("F1 %.2f%%  accuracy %.2f%%  %s", ev.Metrics.F1*100, ev.Metrics.Accuracy*100, ev.File),
			file:  ev.File,
		}
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Select a model for the detail report"
	return &Picker{list: l}
}

// Init implements tea.Model.
func (m *Picker) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m *Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			if it, ok := m.list.SelectedItem().(item); ok {
				m.choice = it.file
				return m, tea.Quit
			}
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Picker) View() string {
	if m.choice != "" {
		return ""
	}
	return docStyle.Render(m.list.View())
}

// Choice returns the filename of the selected artifact.
func (m *Picker) Choice() (string, bool) {
	return m.choice, m.choice != ""
}

// Pick runs the picker full screen and returns the chosen artifact filename.
func Pick(cmp *evaluation.Comparison) (string, error) {
	if cmp == nil || len(cmp.Ranked) == 0 {
		return "", errors.New("no ranked models to choose from")
	}
	m := NewPicker(cmp)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return "", fmt.Errorf("run picker: %w", err)
	}
	choice, ok := m.Choice()
	if !ok {
		return "", ErrCancelled
	}
	return choice, nil
}
