// Package monitor renders a terminal dashboard over the session log.
// The MCP transport owns stdout, so the dashboard runs as a separate
// process tailing the newline-delimited JSON the server writes.
package monitor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry is one parsed session log line. Unknown fields are dropped;
// the dashboard only needs the shape zap's JSON encoder produces.
type Entry struct {
	Timestamp time.Time `json:"-"`
	Level     string    `json:"level"`
	Logger    string    `json:"logger"`
	Message   string    `json:"message"`
	SessionID string    `json:"session_id"`
	Tool      string    `json:"tool"`
	Duration  float64   `json:"duration"`
	Kind      string    `json:"kind"`

	RawTimestamp string `json:"timestamp"`
}

// LatestSessionLog finds the newest session log file under dir.
func LatestSessionLog(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "session_*.log"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no session logs under %s", dir)
	}

	var newest string
	var newestMod time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = m
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no readable session logs under %s", dir)
	}
	return newest, nil
}

// ReadEntries parses log lines starting at offset and returns the new
// entries plus the offset to resume from. Partial trailing lines (a
// write in progress) are left for the next read. Unparseable lines are
// skipped; a crash mid-write must not wedge the dashboard.
func ReadEntries(path string, offset int64) ([]Entry, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, offset, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, 0); err != nil {
		return nil, offset, err
	}

	var entries []Entry
	next := offset
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		next += int64(len(line)) + 1

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if ts, err := time.Parse("2006-01-02T15:04:05.000Z0700", e.RawTimestamp); err == nil {
			e.Timestamp = ts
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, next, err
	}
	return entries, next, nil
}

// ToolStat summarizes the calls of one tool.
type ToolStat struct {
	Name     string
	Calls    int
	Errors   int
	TotalDur float64
}

// AvgDur returns the mean call duration in seconds.
func (s ToolStat) AvgDur() float64 {
	if s.Calls == 0 {
		return 0
	}
	return s.TotalDur / float64(s.Calls)
}

// Snapshot is the aggregated dashboard state.
type Snapshot struct {
	SessionID  string
	Entries    int
	Levels     map[string]int
	Tools      map[string]*ToolStat
	FirstEntry time.Time
	LastEntry  time.Time
}

// NewSnapshot returns an empty snapshot ready to fold entries into.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Levels: make(map[string]int),
		Tools:  make(map[string]*ToolStat),
	}
}

// Fold merges new entries into the snapshot. Tool call accounting keys
// off the finish/failure messages the server logs per invocation.
func (s *Snapshot) Fold(entries []Entry) {
	for _, e := range entries {
		s.Entries++
		if e.Level != "" {
			s.Levels[e.Level]++
		}
		if e.SessionID != "" {
			s.SessionID = e.SessionID
		}
		if !e.Timestamp.IsZero() {
			if s.FirstEntry.IsZero() || e.Timestamp.Before(s.FirstEntry) {
				s.FirstEntry = e.Timestamp
			}
			if e.Timestamp.After(s.LastEntry) {
				s.LastEntry = e.Timestamp
			}
		}

		if e.Tool == "" {
			continue
		}
		done := strings.HasPrefix(e.Message, "tool call finished")
		failed := strings.HasPrefix(e.Message, "tool call failed")
		if !done && !failed {
			continue
		}
		st, ok := s.Tools[e.Tool]
		if !ok {
			st = &ToolStat{Name: e.Tool}
			s.Tools[e.Tool] = st
		}
		st.Calls++
		st.TotalDur += e.Duration
		if failed {
			st.Errors++
		}
	}
}

// TotalCalls sums tool calls across all tools.
func (s *Snapshot) TotalCalls() int {
	total := 0
	for _, st := range s.Tools {
		total += st.Calls
	}
	return total
}

// TotalErrors sums failed tool calls across all tools.
func (s *Snapshot) TotalErrors() int {
	total := 0
	for _, st := range s.Tools {
		total += st.Errors
	}
	return total
}

// SortedTools returns the tool stats ordered by call count, busiest
// first, ties by name.
func (s *Snapshot) SortedTools() []*ToolStat {
	out := make([]*ToolStat, 0, len(s.Tools))
	for _, st := range s.Tools {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Calls != out[j].Calls {
			return out[i].Calls > out[j].Calls
		}
		return out[i].Name < out[j].Name
	})
	return out
}
