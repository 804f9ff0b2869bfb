package mcp

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

// notifyBurst and notifyPerSecond bound how fast log notifications go
// out; a chatty extraction must not flood the JSON-RPC channel.
const (
	notifyPerSecond = 10
	notifyBurst     = 20
)

// Notifier forwards session log entries to the connected MCP client as
// notifications/message. It holds the active ServerSession once a tool
// call reveals it; entries before then are dropped silently.
type Notifier struct {
	session atomic.Pointer[mcp.ServerSession]
	limiter *rate.Limiter
	debug   bool
}

// NewNotifier builds a notifier. debug forwards debug-level entries,
// which are otherwise suppressed per the MCP_DEBUG contract.
func NewNotifier(debug bool) *Notifier {
	return &Notifier{
		limiter: rate.NewLimiter(rate.Limit(notifyPerSecond), notifyBurst),
		debug:   debug,
	}
}

// Attach records the active session. Safe to call on every request;
// the newest session wins.
func (n *Notifier) Attach(sess *mcp.ServerSession) {
	if sess != nil {
		n.session.Store(sess)
	}
}

// Core returns a zapcore.Core that mirrors log entries to the client.
// Tee it under the session logger's core.
func (n *Notifier) Core() zapcore.Core {
	return &notifyCore{notifier: n}
}

type notifyCore struct {
	notifier *Notifier
	fields   []zapcore.Field
}

func (c *notifyCore) Enabled(level zapcore.Level) bool {
	if level >= zapcore.InfoLevel {
		return true
	}
	return c.notifier.debug && level >= zapcore.DebugLevel
}

func (c *notifyCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &notifyCore{notifier: c.notifier}
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return clone
}

func (c *notifyCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *notifyCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	sess := c.notifier.session.Load()
	if sess == nil {
		return nil
	}
	if !c.notifier.limiter.Allow() {
		return nil
	}

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	data := enc.Fields
	data["message"] = ent.Message
	data["timestamp"] = ent.Time.UTC().Format(time.RFC3339Nano)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Best effort: a slow or gone client must not stall the server.
	_ = sess.Log(ctx, &mcp.LoggingMessageParams{
		Level:  notifyLevel(ent.Level),
		Logger: ent.LoggerName,
		Data:   data,
	})
	return nil
}

func (c *notifyCore) Sync() error { return nil }

// notifyLevel maps zap levels onto the MCP logging level names.
func notifyLevel(level zapcore.Level) mcp.LoggingLevel {
	switch {
	case level <= zapcore.DebugLevel:
		return "debug"
	case level == zapcore.InfoLevel:
		return "info"
	case level == zapcore.WarnLevel:
		return "warning"
	case level == zapcore.ErrorLevel:
		return "error"
	default:
		return "critical"
	}
}
