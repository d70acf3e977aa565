// Package tui provides interactive terminal UI components.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/rating"
)

const (
	defaultListWidth  = 72
	defaultListHeight = 20
)

var runProgram = func(m tea.Model) (tea.Model, error) {
	return tea.NewProgram(m).Run()
}

// SelectionAction represents the user's action in the selection UI.
type SelectionAction int

const (
	// ActionNone indicates no action was taken.
	ActionNone SelectionAction = iota
	// ActionSelected indicates the user selected an item.
	ActionSelected
	// ActionSkipped indicates the user skipped the selection.
	ActionSkipped
	// ActionStopped indicates the user stopped processing entirely.
	ActionStopped
)

// SelectionResult holds the result of a TUI selection.
type SelectionResult struct {
	Action    SelectionAction
	Selection *rating.Candidate
}

type candidateItem struct {
	rating.Candidate
}

func (i candidateItem) Title() string {
	return fmt.Sprintf("%s (%s)", i.Candidate.Title, yearLabel(i.Year))
}

func (i candidateItem) FilterValue() string { return i.Candidate.Title }

func (i candidateItem) Description() string {
	return fmt.Sprintf("%s | score %.2f", i.TargetID, i.Score)
}

func yearLabel(year int) string {
	if year <= 0 {
		return "----"
	}
	return fmt.Sprint(year)
}

type itemStyles struct {
	normal    lipgloss.Style
	selected  lipgloss.Style
	title     lipgloss.Style
	metadata  lipgloss.Style
	scoreHigh lipgloss.Style
}

func newItemStyles() itemStyles {
	container := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Foreground(lipgloss.Color("252"))

	return itemStyles{
		normal: container,
		selected: container.Copy().
			BorderForeground(lipgloss.Color("214")).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("237")),
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("254")),
		metadata: lipgloss.NewStyle().
			Foreground(lipgloss.Color("247")).
			Faint(true),
		scoreHigh: lipgloss.NewStyle().
			Foreground(lipgloss.Color("178")),
	}
}

type candidateDelegate struct {
	styles itemStyles
}

func (d candidateDelegate) Height() int                         { return 4 }
func (d candidateDelegate) Spacing() int                        { return 1 }
func (d candidateDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d candidateDelegate) Render(w io.Writer, m list.Model, idx int, item list.Item) {
	c, ok := item.(candidateItem)
	if !ok {
		return
	}

	titleLine := d.styles.title.Render(truncate(c.Title(), m.Width()-4))
	idLine := d.styles.metadata.Render(c.TargetID)
	scoreLine := d.styles.scoreHigh.Render(fmt.Sprintf("match %.0f%%", c.Score*100))
	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, idLine, scoreLine)

	container := d.styles.normal
	if idx == m.Index() {
		container = d.styles.selected
	}
	_, _ = fmt.Fprint(w, container.Render(content))
}

type model struct {
	list   list.Model
	header string
	result SelectionResult
}

func newModel(header string, candidates []rating.Candidate) *model {
	items := make([]list.Item, len(candidates))
	for i, c := range candidates {
		items[i] = candidateItem{Candidate: c}
	}

	l := list.New(items, candidateDelegate{styles: newItemStyles()}, defaultListWidth, defaultListHeight)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowPagination(false)
	l.DisableQuitKeybindings()
	l.Styles.NoItems = lipgloss.NewStyle()

	return &model{
		list:   l,
		header: header,
		result: SelectionResult{Action: ActionNone},
	}
}

func (m *model) Init() tea.Cmd { return nil }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if selected, ok := m.list.SelectedItem().(candidateItem); ok {
				c := selected.Candidate
				m.result = SelectionResult{Action: ActionSelected, Selection: &c}
				return m, tea.Quit
			}
		case "s", "esc":
			m.result = SelectionResult{Action: ActionSkipped}
			return m, tea.Quit
		case "ctrl+c", "q":
			m.result = SelectionResult{Action: ActionStopped}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		width := clamp(defaultListWidth, msg.Width-4, 40)
		height := clamp(defaultListHeight, msg.Height-6, 5)
		m.list.SetSize(width, height)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	header := headerStyle.Render(m.header)
	help := helpStyle.Render("Up/Down navigate | Enter select | s skip | q stop")
	return lipgloss.JoinVertical(lipgloss.Left, header, m.list.View(), help)
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			MarginTop(1).
			Foreground(lipgloss.Color("244"))
)

// Select asks the user which candidate matches rec.
func Select(rec rating.Record, candidates []rating.Candidate) (SelectionResult, error) {
	if len(candidates) == 0 {
		return SelectionResult{Action: ActionSkipped}, nil
	}

	header := fmt.Sprintf("Several matches for: %s (%s), rated %d/10", rec.Title, yearLabel(rec.Year), rec.Rating)
	finalModel, err := runProgram(newModel(header, candidates))
	if err != nil {
		return SelectionResult{}, err
	}
	if typed, ok := finalModel.(*model); ok {
		return typed.result, nil
	}
	return SelectionResult{}, fmt.Errorf("unexpected program result")
}

// Resolver lets the user settle ambiguous matches during a transfer.
type Resolver struct{}

// Resolve returns the chosen candidate, nil when the user skips, or a
// StopProcessingError when the user quits.
func (Resolver) Resolve(_ context.Context, rec rating.Record, candidates []rating.Candidate) (*rating.Candidate, error) {
	result, err := Select(rec, candidates)
	if err != nil {
		return nil, fmt.Errorf("candidate selection: %w", err)
	}

	switch result.Action {
	case ActionSelected:
		return result.Selection, nil
	case ActionStopped:
		return nil, ratserrors.NewStopProcessingError("stopped from candidate selection")
	default:
		return nil, nil
	}
}

func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	if width <= 0 || len(value) <= width {
		return value
	}
	if width <= 3 {
		return value[:width]
	}
	return value[:width-3] + "..."
}

func clamp(defaultValue, available, minimum int) int {
	width := defaultValue
	if available > 0 && available < defaultValue {
		width = available
	}
	if width < minimum {
		width = minimum
	}
	return width
}
