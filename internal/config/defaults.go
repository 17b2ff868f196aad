package config

import "github.com/mrz1836/depot/internal/contract"

// DefaultRPCURL is a local Hardhat or Anvil node.
const DefaultRPCURL = "http://127.0.0.1:8545"

// DefaultChainID is the Hardhat network chain ID.
const DefaultChainID = 31337

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.depot",
		Network: NetworkConfig{
			RPC:       DefaultRPCURL,
			ChainID:   DefaultChainID,
			RateLimit: 10,
			Burst:     20,
		},
		Contract: ContractConfig{
			Address: contract.DefaultAddress,
		},
		Wallet: WalletConfig{
			RememberPassphrase: false,
		},
		Tx: TxConfig{
			ConfirmTimeout: 0, // Wait as long as the network takes
			BalanceRetries: 3,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.depot/depot.log",
		},
	}
}
