package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Environment variable names.
const (
	EnvHome               = "DEPOT_HOME"
	EnvRPC                = "DEPOT_RPC"
	EnvChainID            = "DEPOT_CHAIN_ID"
	EnvContract           = "DEPOT_CONTRACT"
	EnvWalletRPC          = "DEPOT_WALLET_RPC"
	EnvKeystore           = "DEPOT_KEYSTORE"
	EnvKeystorePassphrase = "DEPOT_KEYSTORE_PASSWORD" // #nosec G101 -- false positive, this is a const name not a credential
	EnvConfirmTimeout     = "DEPOT_CONFIRM_TIMEOUT"
	EnvOutputFormat       = "DEPOT_OUTPUT_FORMAT"
	EnvVerbose            = "DEPOT_VERBOSE"
	EnvLogLevel           = "DEPOT_LOG_LEVEL"
	EnvNoColor            = "NO_COLOR"
)

var (
	// ErrInsecureRPCURL indicates a plaintext URL pointing off the local machine.
	ErrInsecureRPCURL = errors.New("plaintext RPC URL must point to a loopback address; use https or wss")

	// ErrUnsupportedRPCScheme indicates a scheme other than http, https, ws, or wss.
	ErrUnsupportedRPCScheme = errors.New("unsupported RPC URL scheme")
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvRPC); v != "" {
		cfg.Network.RPC = SanitizeURL(v)
	}

	if v := os.Getenv(EnvChainID); v != "" {
		if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && id >= 0 {
			cfg.Network.ChainID = id
		}
	}

	if v := os.Getenv(EnvContract); v != "" {
		cfg.Contract.Address = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvWalletRPC); v != "" {
		cfg.Wallet.RPC = SanitizeURL(v)
	}

	if v := os.Getenv(EnvKeystore); v != "" {
		cfg.Wallet.Keystore = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvConfirmTimeout); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d >= 0 {
			cfg.Tx.ConfirmTimeout = d
		}
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

// KeystorePassphrase returns the keystore passphrase from the environment, if any.
func KeystorePassphrase() string {
	return os.Getenv(EnvKeystorePassphrase)
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL trims whitespace and drops control and space characters that
// copy-paste tends to carry into RPC URLs.
func SanitizeURL(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
}

// ValidateRPCURL accepts http, https, ws, and wss URLs. Plaintext schemes are
// only allowed for loopback hosts. An empty URL is valid.
func ValidateRPCURL(raw string) error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing RPC URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
	case "http", "ws":
		if !isLoopback(u.Hostname()) {
			return fmt.Errorf("%w: %s", ErrInsecureRPCURL, u.Host)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedRPCScheme, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrUnsupportedRPCScheme)
	}
	return nil
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
