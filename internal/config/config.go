// Package config provides configuration management for depot.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version  int            `yaml:"version"`
	Home     string         `yaml:"home"`
	Network  NetworkConfig  `yaml:"network"`
	Contract ContractConfig `yaml:"contract"`
	Wallet   WalletConfig   `yaml:"wallet"`
	Tx       TxConfig       `yaml:"tx"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// NetworkConfig defines the ledger endpoint.
type NetworkConfig struct {
	RPC       string  `yaml:"rpc"`
	ChainID   int64   `yaml:"chain_id"`
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// ContractConfig locates the deployed contract and its ABI.
type ContractConfig struct {
	Address string `yaml:"address"`
	// Artifact is a Hardhat artifact path. Empty uses the built-in Assessment artifact.
	Artifact string `yaml:"artifact"`
}

// WalletConfig selects the wallet provider.
type WalletConfig struct {
	// RPC is an injected wallet's JSON-RPC endpoint.
	RPC string `yaml:"rpc"`
	// Keystore is a go-ethereum keystore directory.
	Keystore string `yaml:"keystore"`
	// RememberPassphrase stores keystore passphrases in the OS keyring.
	RememberPassphrase bool `yaml:"remember_passphrase"`
}

// TxConfig defines transaction lifecycle settings.
type TxConfig struct {
	// ConfirmTimeout bounds the confirmation wait. Zero means no limit.
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	// BalanceRetries is the number of attempts for a balance read.
	BalanceRetries int `yaml:"balance_retries"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file.
// Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, depoterr.WithDetails(depoterr.WithCause(depoterr.ErrConfigNotFound, err), map[string]string{"path": path})
		}
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, depoterr.WithDetails(depoterr.WithCause(depoterr.ErrConfigInvalid, err), map[string]string{"path": path})
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return writeFileAtomic(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(ExpandHome(home), "config.yaml")
}

// Validate checks endpoints, the contract address, and enumerated settings.
func (c *Config) Validate() error {
	if c.Network.RPC == "" {
		return invalid("network.rpc", "required")
	}
	if err := ValidateRPCURL(c.Network.RPC); err != nil {
		return invalid("network.rpc", err.Error())
	}
	if c.Network.ChainID < 0 {
		return invalid("network.chain_id", "must not be negative")
	}
	if !common.IsHexAddress(c.Contract.Address) {
		return depoterr.WithDetails(depoterr.ErrInvalidAddress, map[string]string{
			"field": "contract.address",
			"value": c.Contract.Address,
		})
	}
	if err := ValidateRPCURL(c.Wallet.RPC); err != nil {
		return invalid("wallet.rpc", err.Error())
	}
	if c.Tx.ConfirmTimeout < 0 {
		return invalid("tx.confirm_timeout", "must not be negative")
	}

	switch strings.ToLower(c.Output.DefaultFormat) {
	case "", "auto", "text", "json":
	default:
		return invalid("output.default_format", c.Output.DefaultFormat)
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "off", "none", "error", "info", "debug":
	default:
		return invalid("logging.level", c.Logging.Level)
	}
	return nil
}

func invalid(field, reason string) error {
	return depoterr.WithDetails(depoterr.ErrConfigInvalid, map[string]string{
		"field":  field,
		"reason": reason,
	})
}

// DefaultHome returns the default depot home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".depot"
	}
	return filepath.Join(home, ".depot")
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
