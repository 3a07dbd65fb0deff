// Package ctxlog defines the logging capability handed to yield data collaborators,
// so their diagnostics surface without them depending on a logging implementation.
package ctxlog

import "github.com/sirupsen/logrus"

// Logger is the two-method capability passed into every provider call.
type Logger interface {
	Info(message string)
	Error(message string)
}

// Prefixes used by the gateway's call sites.
const (
	PrefixMCP     = "MCP Context: "
	PrefixRefresh = "Background refresh: "
)

type entryLogger struct {
	entry  *logrus.Entry
	prefix string
}

// New returns a Logger writing to entry, each message prefixed with prefix.
// Instances hold no state beyond their sink and are cheap to create per call.
func New(entry *logrus.Entry, prefix string) Logger {
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	return entryLogger{entry: entry, prefix: prefix}
}

func (l entryLogger) Info(message string) {
	l.entry.Info(l.prefix + message)
}

func (l entryLogger) Error(message string) {
	l.entry.Error(l.prefix + message)
}

// Discard drops every message.
var Discard Logger = discard{}

type discard struct{}

func (discard) Info(string)  {}
func (discard) Error(string) {}
