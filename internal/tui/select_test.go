package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ratserrors "github.com/lepinkainen/rats/internal/errors"
	"github.com/lepinkainen/rats/internal/rating"
)

var (
	inception = rating.Record{Title: "Inception", Year: 2010, Rating: 8, SourceID: "1"}
	tied      = []rating.Candidate{
		{TargetID: "tt1375666", Title: "Inception", Year: 2010, Score: 1},
		{TargetID: "tt5295894", Title: "Inception", Year: 2010, Score: 1},
	}
)

// withKeys replaces the program runner with one that feeds keys to the model.
func withKeys(t *testing.T, keys ...tea.KeyMsg) {
	t.Helper()
	orig := runProgram
	runProgram = func(m tea.Model) (tea.Model, error) {
		for _, k := range keys {
			m, _ = m.Update(k)
			if m.(*model).result.Action != ActionNone {
				break
			}
		}
		return m, nil
	}
	t.Cleanup(func() { runProgram = orig })
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestSelectPicksHighlightedCandidate(t *testing.T) {
	withKeys(t, key("down"), key("enter"))

	result, err := Select(inception, tied)
	require.NoError(t, err)
	assert.Equal(t, ActionSelected, result.Action)
	require.NotNil(t, result.Selection)
	assert.Equal(t, "tt5295894", result.Selection.TargetID)
}

func TestSelectSkipAndStop(t *testing.T) {
	tests := []struct {
		key  string
		want SelectionAction
	}{
		{"s", ActionSkipped},
		{"esc", ActionSkipped},
		{"q", ActionStopped},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			withKeys(t, key(tt.key))
			result, err := Select(inception, tied)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Action)
			assert.Nil(t, result.Selection)
		})
	}
}

func TestSelectWithoutCandidates(t *testing.T) {
	result, err := Select(inception, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, result.Action)
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	withKeys(t, key("enter"))
	chosen, err := Resolver{}.Resolve(ctx, inception, tied)
	require.NoError(t, err)
	assert.Equal(t, "tt1375666", chosen.TargetID)

	withKeys(t, key("s"))
	chosen, err = Resolver{}.Resolve(ctx, inception, tied)
	require.NoError(t, err)
	assert.Nil(t, chosen)

	withKeys(t, key("q"))
	_, err = Resolver{}.Resolve(ctx, inception, tied)
	assert.True(t, ratserrors.IsStopProcessingError(err))
}

func TestResolverProgramError(t *testing.T) {
	orig := runProgram
	runProgram = func(tea.Model) (tea.Model, error) { return nil, errors.New("no tty") }
	t.Cleanup(func() { runProgram = orig })

	_, err := Resolver{}.Resolve(context.Background(), inception, tied)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tty")
}

func TestModelView(t *testing.T) {
	m := newModel("Several matches for: Inception (2010), rated 8/10", tied)
	view := m.View()
	assert.Contains(t, view, "Several matches for: Inception")
	assert.Contains(t, view, "Enter select")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a long...", truncate("a long   title here", 9))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 72, clamp(72, 0, 40))
	assert.Equal(t, 50, clamp(72, 50, 40))
	assert.Equal(t, 40, clamp(72, 10, 40))
}
