// Package wallet provides the wallet providers a session can connect through:
// an injected wallet reachable over JSON-RPC, or a local keystore directory.
package wallet

import (
	"context"
	"errors"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// rejectedCode is the EIP-1193 "user rejected the request" error code.
const rejectedCode = 4001

// Provider is an external wallet that holds accounts and signs for them.
type Provider interface {
	// Name identifies the provider in logs and status output.
	Name() string

	// ListAccounts returns already-authorized accounts without prompting.
	ListAccounts(ctx context.Context) ([]common.Address, error)

	// RequestAccounts asks the user to authorize accounts. It may be rejected.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// Transactor returns signing options for an authorized account.
	Transactor(ctx context.Context, account common.Address, chainID *big.Int) (*bind.TransactOpts, error)

	// Close releases provider resources.
	Close() error
}

// PassphraseFunc asks the user for a passphrase.
type PassphraseFunc func(prompt string) (string, error)

// Options selects and configures the provider to detect.
type Options struct {
	// RPCURL is the JSON-RPC endpoint of an injected wallet. It takes precedence over KeystoreDir.
	RPCURL string
	// KeystoreDir is a go-ethereum keystore directory.
	KeystoreDir string
	// Passphrase unlocks keystore accounts up front.
	Passphrase string
	// Prompt is used by the keystore provider when accounts are requested.
	Prompt PassphraseFunc
	// Keyring remembers keystore passphrases between runs when set.
	Keyring Keyring
}

// Detect returns the configured wallet provider, or nil when none is present.
// Absence is not an error.
func Detect(ctx context.Context, opts Options) (Provider, error) {
	if opts.RPCURL != "" {
		p, err := DialRPCProvider(ctx, opts.RPCURL)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	if opts.KeystoreDir != "" {
		info, err := os.Stat(opts.KeystoreDir)
		if err != nil || !info.IsDir() {
			return nil, nil //nolint:nilnil // A missing keystore means no provider
		}
		return OpenKeystore(opts.KeystoreDir, KeystoreOptions{
			Passphrase: opts.Passphrase,
			Prompt:     opts.Prompt,
			Keyring:    opts.Keyring,
		}), nil
	}

	return nil, nil //nolint:nilnil // No provider configured
}

// IsRejected reports whether err is an EIP-1193 user rejection.
func IsRejected(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == rejectedCode
}

// mapRequestError turns provider failures into depot errors.
func mapRequestError(err error, method string) error {
	if err == nil {
		return nil
	}
	if IsRejected(err) {
		return depoterr.WithDetails(
			depoterr.WithCause(depoterr.ErrUserRejected, err),
			map[string]string{"method": method},
		)
	}
	return depoterr.WithDetails(
		depoterr.WithCause(depoterr.ErrNetworkError, err),
		map[string]string{"method": method},
	)
}
