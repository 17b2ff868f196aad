package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/depot/internal/chain"
	"github.com/mrz1836/depot/internal/chain/eth"
	"github.com/mrz1836/depot/internal/config"
	"github.com/mrz1836/depot/internal/contract"
	"github.com/mrz1836/depot/internal/gateway"
	"github.com/mrz1836/depot/internal/session"
	"github.com/mrz1836/depot/internal/wallet"
	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// Environment carries what Open needs beyond the configuration file.
type Environment struct {
	Config   *config.Config
	Logger   Logger
	Prompt   wallet.PassphraseFunc
	Notify   session.Notifier
	Observer gateway.Observer
	// Keyring overrides the OS keyring used when wallet.remember_passphrase is set.
	Keyring wallet.Keyring
}

// Open builds an App against the configured ledger, contract, and wallet.
// Nothing is dialed until the first call that needs the network.
func Open(env Environment) (*App, error) {
	cfg := env.Config
	if cfg == nil {
		cfg = config.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	artifact, err := contract.LoadArtifact(config.ExpandHome(cfg.Contract.Artifact))
	if err != nil {
		return nil, err
	}

	var chainID *big.Int
	if cfg.Network.ChainID > 0 {
		chainID = big.NewInt(cfg.Network.ChainID)
	}

	client, err := eth.NewClient(cfg.Network.RPC, &eth.ClientOptions{
		ChainID:        chainID,
		Limiter:        chain.NewRateLimiter(cfg.Network.RateLimit, cfg.Network.Burst),
		ConfirmTimeout: cfg.Tx.ConfirmTimeout,
	})
	if err != nil {
		return nil, err
	}

	walletOpts := wallet.Options{
		RPCURL:      cfg.Wallet.RPC,
		KeystoreDir: config.ExpandHome(cfg.Wallet.Keystore),
		Passphrase:  config.KeystorePassphrase(),
		Prompt:      env.Prompt,
	}
	if cfg.Wallet.RememberPassphrase {
		walletOpts.Keyring = env.Keyring
		if walletOpts.Keyring == nil && wallet.ProbeKeyring(wallet.OSKeyring{}) {
			walletOpts.Keyring = wallet.OSKeyring{}
		}
		if walletOpts.Keyring == nil && env.Logger != nil {
			env.Logger.Info("OS keyring unavailable, keystore passphrases will not be remembered")
		}
	}

	var retry *chain.RetryConfig
	if cfg.Tx.BalanceRetries > 0 {
		r := chain.DefaultRetryConfig()
		r.MaxAttempts = cfg.Tx.BalanceRetries
		retry = &r
	}

	a := New(Deps{
		Detect: func(ctx context.Context) (wallet.Provider, error) {
			return wallet.Detect(ctx, walletOpts)
		},
		Notify:    env.Notify,
		Binder:    ContractBinder(client, common.HexToAddress(cfg.Contract.Address), artifact),
		Confirmer: client,
		Observer:  env.Observer,
		Logger:    env.Logger,
		Retry:     retry,
	})
	a.addCloser(client.Close)
	return a, nil
}

// ChainBackend is the part of the ledger client a contract binding needs.
type ChainBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	Backend(ctx context.Context) (bind.ContractBackend, error)
}

// ContractBinder returns a gateway.Binder that binds the contract at address
// to the provider's signer for the connected account.
func ContractBinder(client ChainBackend, address common.Address, artifact *contract.Artifact) gateway.Binder {
	return func(ctx context.Context, account common.Address, provider wallet.Provider) (gateway.Contract, error) {
		chainID, err := client.ChainID(ctx)
		if err != nil {
			return nil, err
		}

		backend, err := client.Backend(ctx)
		if err != nil {
			return nil, err
		}

		signer, err := provider.Transactor(ctx, account, chainID)
		if err != nil {
			return nil, err
		}
		if signer.From != account {
			return nil, depoterr.WithDetails(depoterr.ErrAccountUnknown, map[string]string{
				"account": account.Hex(),
				"signer":  signer.From.Hex(),
			})
		}

		return contract.NewAssessment(address, artifact, backend, signer)
	}
}
