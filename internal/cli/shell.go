package cli

import (
	"bufio"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"

	"github.com/mrz1836/depot/internal/app"
	"github.com/mrz1836/depot/internal/output"
	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// shellCmd runs an interactive session.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive session",
	Long: `Start an interactive session that keeps one wallet connection, one
contract binding, and the deposit and withdraw inputs between commands.

Deposits and withdrawals run in the background; their progress is printed
as it happens and more commands can be entered meanwhile.

Example:
  depot shell`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(shellCmd)
}

// shellCommands maps each shell command to its help line.
//
//nolint:gochecknoglobals // Static command table
var shellCommands = map[string]string{
	"status":   "show wallet, account, balance, and inputs",
	"connect":  "request account access from the wallet",
	"balance":  "re-read the contract balance",
	"input":    "input deposit|withdraw <amount>: set a pending amount",
	"deposit":  "deposit [amount]: submit the pending deposit",
	"withdraw": "withdraw [amount]: submit the pending withdrawal",
	"metrics":  "show RPC and transaction counters",
	"help":     "list commands",
	"quit":     "wait for pending transactions and leave",
}

// maxSuggestionDistance is the largest edit distance offered as a suggestion.
const maxSuggestionDistance = 2

// syncWriter serializes writes from the prompt loop and background transactions.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type shell struct {
	app *app.App
	w   io.Writer
	msg *output.Messenger
	wg  sync.WaitGroup
}

func runShell(cmd *cobra.Command, _ []string) error {
	w := &syncWriter{w: cmd.OutOrStdout()}
	msg := &output.Messenger{Out: w, Err: w}

	cc, err := newCommandContextWith(msg, newProgressObserver(msg))
	if err != nil {
		return err
	}
	defer cc.Close()

	sh := &shell{app: cc.App, w: w, msg: msg}
	ctx := commandContext(cmd)

	if err := sh.app.Start(ctx); err != nil {
		sh.report(err)
	}
	sh.status()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	out(w, "depot> ")
	for scanner.Scan() {
		if !sh.exec(ctx, scanner.Text()) {
			break
		}
		out(w, "depot> ")
	}

	sh.wg.Wait()
	return scanner.Err()
}

// exec runs one line. It returns false when the session should end.
func (sh *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch name, args := strings.ToLower(fields[0]), fields[1:]; name {
	case "status":
		sh.status()
	case "connect":
		if err := sh.app.Connect(ctx); err != nil {
			sh.report(err)
			return true
		}
		sh.status()
	case "balance", "refresh":
		if err := sh.app.Refresh(ctx); err != nil {
			sh.report(err)
			return true
		}
		outln(sh.w, sh.app.View().Balance)
	case "input":
		sh.input(args)
	case "deposit":
		if len(args) > 0 {
			sh.app.SetDepositInput(strings.Join(args, " "))
		}
		sh.background(func() error { return sh.app.Deposit(ctx) })
	case "withdraw":
		if len(args) > 0 {
			sh.app.SetWithdrawInput(strings.Join(args, " "))
		}
		sh.background(func() error { return sh.app.Withdraw(ctx) })
	case "metrics":
		_ = currentMetrics().RenderText(sh.w)
	case "help", "?":
		sh.help()
	case "quit", "exit":
		return false
	default:
		if suggestion := suggestCommand(name); suggestion != "" {
			sh.msg.Warnf("unknown command %q, did you mean %q?", name, suggestion)
		} else {
			sh.msg.Warnf("unknown command %q, type 'help' for a list", name)
		}
	}
	return true
}

func (sh *shell) input(args []string) {
	if len(args) == 0 {
		sh.msg.Warn("usage: input deposit|withdraw <amount>")
		return
	}

	text := strings.Join(args[1:], " ")
	switch strings.ToLower(args[0]) {
	case "deposit":
		sh.app.SetDepositInput(text)
	case "withdraw":
		sh.app.SetWithdrawInput(text)
	default:
		sh.msg.Warn("usage: input deposit|withdraw <amount>")
	}
}

// background runs a transaction without blocking the prompt.
func (sh *shell) background(fn func() error) {
	sh.wg.Go(func() {
		if err := fn(); err != nil {
			sh.report(err)
		}
	})
}

func (sh *shell) status() {
	result := newStatusResult(sh.app.View())
	result.showInputs = true
	_ = result.RenderText(sh.w)
}

func (sh *shell) report(err error) {
	// The wallet-required notice has already been shown.
	if depoterr.Is(err, depoterr.ErrWalletRequired) {
		return
	}
	_ = output.FormatError(sh.w, err, output.FormatText)
}

func (sh *shell) help() {
	names := make([]string, 0, len(shellCommands))
	for name := range shellCommands {
		names = append(names, name)
	}
	sort.Strings(names)

	t := output.NewTable()
	for _, name := range names {
		t.AddRow(name, shellCommands[name])
	}
	_ = t.Render(sh.w)
}

// suggestCommand returns the closest shell command to name, or "" when none is close.
func suggestCommand(name string) string {
	best, bestDist := "", maxSuggestionDistance+1
	for candidate := range shellCommands {
		d := levenshtein.ComputeDistance(name, candidate)
		if d < bestDist || (d == bestDist && candidate < best) {
			best, bestDist = candidate, d
		}
	}
	if bestDist > maxSuggestionDistance {
		return ""
	}
	return best
}
