// Package session tracks the wallet session: whether a provider is present,
// which account is authorized, and the transitions between those states.
package session

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/depot/internal/wallet"
)

// State is the session's position in its connection lifecycle.
type State int

// Session states. There is no terminal state and no way back from StateConnected.
const (
	StateNoProvider State = iota
	StateProviderDetected
	StateDisconnected
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNoProvider:
		return "no-provider"
	case StateProviderDetected:
		return "provider-detected"
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	State           State
	ProviderPresent bool
	Provider        string
	Account         *common.Address
}

// Connected reports whether an account is set.
func (s Snapshot) Connected() bool {
	return s.State == StateConnected && s.Account != nil
}

// Detector finds a wallet provider. It returns nil when none is present.
type Detector func(ctx context.Context) (wallet.Provider, error)

// Notifier shows a blocking message to the user.
type Notifier func(message string)

// ConnectedFunc runs on each transition into StateConnected and on each account change.
type ConnectedFunc func(ctx context.Context, snap Snapshot, provider wallet.Provider) error

// Logger is the printf-style logger the session writes diagnostics to.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// WalletRequiredMessage is shown when connect is attempted without a provider.
const WalletRequiredMessage = "A wallet provider is required to connect. Configure wallet.rpc or wallet.keystore."
