// Package cli implements the depot command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"log/slog"
	"os"

	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"

	"github.com/mrz1836/depot/internal/config"
	"github.com/mrz1836/depot/internal/output"
	depoterr "github.com/mrz1836/depot/pkg/errors"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool
	rpcURL       string

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "depot",
	Short: "Deposit to and withdraw from the Assessment contract",
	Long: `depot connects a wallet to the Assessment contract, shows the account's
contract balance, and runs deposits and withdrawals through to confirmation.

Wallets are reached over JSON-RPC (wallet.rpc) or read from a go-ethereum
keystore directory (wallet.keystore).

Example:
  depot connect
  depot deposit 1.5
  depot withdraw 0.25
  depot shell`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initGlobals()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logFailure(err)
		// The wallet-required notice has already been shown.
		if !depoterr.Is(err, depoterr.ErrWalletRequired) {
			format := output.FormatText
			if formatter != nil {
				format = formatter.Format()
			}
			_ = output.FormatError(os.Stderr, err, format)
		}
	}
	// PersistentPostRun is skipped when a command fails.
	cleanup()
	return err
}

func logFailure(err error) {
	if logger == nil {
		return
	}
	logger.ErrorAttrs("command failed",
		slog.String("code", depoterr.Code(err)),
		slog.Int("exit_code", depoterr.ExitCode(err)),
		slog.String("error", err.Error()),
	)
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return depoterr.ExitCode(err)
}

// initGlobals initializes global configuration, logger, and formatter.
func initGlobals() error {
	// Determine home directory
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	// Load or create config
	var err error
	cfg, err = config.Load(config.Path(home))
	if err != nil {
		if !depoterr.Is(err, depoterr.ErrConfigNotFound) {
			return err
		}
		// Use defaults if config doesn't exist
		cfg = config.Defaults()
		cfg.Home = home
	}

	// Apply environment variable overrides
	config.ApplyEnvironment(cfg)

	// Override with command-line flags
	if homeDir != "" {
		cfg.Home = homeDir
	}
	if rpcURL != "" {
		cfg.Network.RPC = config.SanitizeURL(rpcURL)
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != "auto" {
		cfg.Output.DefaultFormat = outputFormat
	}

	// Initialize logger
	logLevel := config.ParseLogLevel(cfg.Logging.Level)
	logger, err = config.NewLogger(logLevel, config.ExpandHome(cfg.Logging.File))
	if err != nil {
		// Use null logger if we can't create the file
		logger = config.NullLogger()
	}
	routeLibraryLogs(logger)

	// Initialize formatter
	explicitFormat := output.ParseFormat(cfg.Output.DefaultFormat)
	detectedFormat := output.DetectFormat(os.Stdout, explicitFormat)
	formatter = output.NewFormatter(detectedFormat, os.Stdout)

	return nil
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

// routeLibraryLogs sends go-ethereum's own log records (RPC dials, keystore
// scans) to the depot log sink at the same level.
func routeLibraryLogs(l *config.Logger) {
	if s := l.Structured(); s != nil {
		gethlog.SetDefault(gethlog.NewLogger(s.Handler()))
	}
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "depot data directory (default: ~/.depot)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc", "", "ledger JSON-RPC endpoint (overrides network.rpc)")
}
