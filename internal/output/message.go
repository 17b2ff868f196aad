package output

import (
	"fmt"
	"io"
)

// Messenger prints decorated one-line notices. Notices go to stderr when
// the primary output is JSON so they never mix with the document.
type Messenger struct {
	Out io.Writer
	Err io.Writer
}

// Info prints an informational message with an info prefix.
func (m *Messenger) Info(msg string) {
	_, _ = fmt.Fprintln(m.Out, "ℹ️  "+msg)
}

// Infof prints a formatted informational message.
func (m *Messenger) Infof(format string, args ...any) {
	m.Info(fmt.Sprintf(format, args...))
}

// Warn prints a warning message to the error stream with a warning prefix.
func (m *Messenger) Warn(msg string) {
	_, _ = fmt.Fprintln(m.Err, "⚠️  "+msg)
}

// Warnf prints a formatted warning message.
func (m *Messenger) Warnf(format string, args ...any) {
	m.Warn(fmt.Sprintf(format, args...))
}

// Success prints a success message with a success prefix.
func (m *Messenger) Success(msg string) {
	_, _ = fmt.Fprintln(m.Out, "✅ "+msg)
}

// Successf prints a formatted success message.
func (m *Messenger) Successf(format string, args ...any) {
	m.Success(fmt.Sprintf(format, args...))
}
