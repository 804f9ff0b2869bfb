// Package logging provides structured session logging for gandalf.
//
// Every server process writes newline-delimited JSON entries to a
// per-session file under the gandalf home logs directory. Stdout is
// never used because it carries the MCP wire protocol; stderr output
// is opt-in for interactive debugging.
//
// Features:
//   - Per-session log files named session_<timestamp>_<id>.log
//   - Custom TRACE level below DEBUG for wire-level detail
//   - Context-aware methods that extract request correlation fields
//   - Field redaction for sensitive keys and value patterns
//   - Test helpers with full log observation
package logging
