package monitor

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelQuitKeys(t *testing.T) {
	m := NewModel(t.TempDir(), time.Second)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.NotNil(t, cmd)
	assert.Empty(t, updated.View())
}

func TestModelFoldsTailMessages(t *testing.T) {
	m := NewModel(t.TempDir(), time.Second)

	updated, _ := m.Update(tailMsg{
		path:   "session_a.log",
		offset: 100,
		entries: []Entry{
			{Level: "info", Message: "tool call finished", Tool: "recall_conversations", Duration: 0.1, SessionID: "s1"},
		},
	})
	model := updated.(Model)
	assert.Equal(t, 1, model.snapshot.TotalCalls())
	assert.Equal(t, int64(100), model.offset)

	view := model.View()
	assert.Contains(t, view, "gandalf Monitor")
	assert.Contains(t, view, "recall_conversations")

	// A new session file resets the aggregation.
	updated, _ = model.Update(tailMsg{path: "session_b.log", offset: 10})
	model = updated.(Model)
	assert.Equal(t, 0, model.snapshot.TotalCalls())
}

func TestModelRendersError(t *testing.T) {
	m := NewModel("/nonexistent", time.Second)
	updated, _ := m.Update(errMsg(errors.New("no session logs")))
	view := updated.View()
	assert.Contains(t, view, "Cannot read session logs")
}

func TestAppendToHistoryBounded(t *testing.T) {
	var h []float64
	for i := 0; i < historySize+10; i++ {
		h = appendToHistory(h, float64(i))
	}
	require.Len(t, h, historySize)
	assert.Equal(t, float64(10), h[0])
}
