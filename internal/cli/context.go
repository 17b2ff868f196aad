package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/depot/internal/app"
	"github.com/mrz1836/depot/internal/config"
	"github.com/mrz1836/depot/internal/gateway"
	"github.com/mrz1836/depot/internal/output"
)

// openAppFn builds the session context for a command. Tests replace it.
//
//nolint:gochecknoglobals // Replaced in tests
var openAppFn = app.Open

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Config    *config.Config
	Logger    *config.Logger
	Formatter *output.Formatter
	Messenger *output.Messenger
	App       *app.App
}

// newCommandContext opens an App for cmd. Progress and notices go to the
// command's error stream so stdout carries only the result.
func newCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	msg := &output.Messenger{Out: cmd.ErrOrStderr(), Err: cmd.ErrOrStderr()}
	return newCommandContextWith(msg, newProgressObserver(msg))
}

func newCommandContextWith(msg *output.Messenger, observer gateway.Observer) (*CommandContext, error) {
	a, err := openAppFn(app.Environment{
		Config:   cfg,
		Logger:   logger,
		Prompt:   promptPassphraseFn,
		Notify:   msg.Warn,
		Observer: observer,
	})
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Config:    cfg,
		Logger:    logger,
		Formatter: formatter,
		Messenger: msg,
		App:       a,
	}, nil
}

// Close releases the App.
func (c *CommandContext) Close() {
	if err := c.App.Close(); err != nil {
		c.Logger.Error("closing session: %v", err)
	}
}

// newProgressObserver prints transaction phases as they happen.
func newProgressObserver(msg *output.Messenger) gateway.Observer {
	var mu sync.Mutex
	return func(ev gateway.TxEvent) {
		mu.Lock()
		defer mu.Unlock()
		switch ev.Phase {
		case gateway.PhaseSubmitting:
			msg.Infof("%s %s: waiting for wallet approval", ev.Op, ev.Amount)
		case gateway.PhaseConfirming:
			msg.Infof("%s %s: submitted %s, waiting for confirmation", ev.Op, ev.Amount, ev.TxHash.Hex())
		case gateway.PhaseConfirmed:
			msg.Successf("%s %s: confirmed", ev.Op, ev.Amount)
		case gateway.PhaseFailed:
			msg.Warnf("%s %q: failed", ev.Op, ev.Amount)
		}
	}
}

// commandContext returns the command's context, or Background.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// contextWithTimeout returns a timeout context rooted in the command context.
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(commandContext(cmd), d)
}

// out is a helper for CLI output that ignores write errors (standard pattern for CLI tools).
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func out(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

// outln is a helper for CLI output with newline.
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func outln(w io.Writer, args ...any) {
	fmt.Fprintln(w, args...)
}

// stdinIsTerminal reports whether stdin is interactive.
func stdinIsTerminal() bool {
	return output.IsTerminal(os.Stdin)
}
