package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLatestSessionLog(t *testing.T) {
	dir := t.TempDir()
	older := writeLog(t, dir, "session_20260801-100000_aaaa1111.log", "{}\n")
	newer := writeLog(t, dir, "session_20260802-100000_bbbb2222.log", "{}\n")
	require.NoError(t, os.Chtimes(older, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)))

	got, err := LatestSessionLog(dir)
	require.NoError(t, err)
	assert.Equal(t, newer, got)
}

func TestLatestSessionLogEmptyDir(t *testing.T) {
	_, err := LatestSessionLog(t.TempDir())
	assert.Error(t, err)
}

func TestReadEntriesIncremental(t *testing.T) {
	dir := t.TempDir()
	line1 := `{"level":"info","timestamp":"2026-08-20T10:00:00.000Z","message":"tool call finished","tool":"recall_conversations","duration":0.25,"session_id":"abcd1234"}` + "\n"
	line2 := `{"level":"warn","timestamp":"2026-08-20T10:00:01.000Z","message":"tool call failed","tool":"search_conversations","duration":0.5,"kind":"invalid_argument","session_id":"abcd1234"}` + "\n"
	path := writeLog(t, dir, "session_x.log", line1)

	entries, offset, err := ReadEntries(path, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "recall_conversations", entries[0].Tool)
	assert.Equal(t, 0.25, entries[0].Duration)
	assert.False(t, entries[0].Timestamp.IsZero())

	// Append and resume from the saved offset.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(line2)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, _, err = ReadEntries(path, offset)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "search_conversations", entries[0].Tool)
	assert.Equal(t, "invalid_argument", entries[0].Kind)
}

func TestReadEntriesSkipsGarbage(t *testing.T) {
	dir := t.TempDir()
	content := "not json at all\n" +
		`{"level":"info","message":"ok"}` + "\n"
	path := writeLog(t, dir, "session_x.log", content)

	entries, _, err := ReadEntries(path, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ok", entries[0].Message)
}

func TestSnapshotFold(t *testing.T) {
	s := NewSnapshot()
	s.Fold([]Entry{
		{Level: "info", Message: "tool call finished", Tool: "recall_conversations", Duration: 0.2, SessionID: "s1"},
		{Level: "info", Message: "tool call finished", Tool: "recall_conversations", Duration: 0.4},
		{Level: "warn", Message: "tool call failed", Tool: "search_conversations", Duration: 1.0},
		{Level: "info", Message: "starting MCP server on stdio transport"},
	})

	assert.Equal(t, 4, s.Entries)
	assert.Equal(t, "s1", s.SessionID)
	assert.Equal(t, 3, s.TotalCalls())
	assert.Equal(t, 1, s.TotalErrors())
	assert.Equal(t, 3, s.Levels["info"])
	assert.Equal(t, 1, s.Levels["warn"])

	recall := s.Tools["recall_conversations"]
	require.NotNil(t, recall)
	assert.Equal(t, 2, recall.Calls)
	assert.InDelta(t, 0.3, recall.AvgDur(), 1e-9)

	sorted := s.SortedTools()
	require.Len(t, sorted, 2)
	assert.Equal(t, "recall_conversations", sorted[0].Name)
}

func TestSnapshotFoldTimestamps(t *testing.T) {
	s := NewSnapshot()
	t1 := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)
	s.Fold([]Entry{
		{Level: "info", Timestamp: t2},
		{Level: "info", Timestamp: t1},
	})
	assert.Equal(t, t1, s.FirstEntry)
	assert.Equal(t, t2, s.LastEntry)
}
