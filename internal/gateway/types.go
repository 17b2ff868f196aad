// Package gateway binds the deposit contract to the connected account and runs
// balance reads and deposit/withdraw transactions through to confirmation.
package gateway

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/depot/internal/wallet"
)

// Contract is a signer-bound contract handle.
type Contract interface {
	Account() common.Address
	GetBalance(ctx context.Context) (*big.Int, error)
	Deposit(ctx context.Context, amount *big.Int) (*types.Transaction, error)
	Withdraw(ctx context.Context, amount *big.Int) (*types.Transaction, error)
	DecodeRevert(err error) (map[string]string, bool)
}

// Binder builds a contract handle signing for account through provider.
type Binder func(ctx context.Context, account common.Address, provider wallet.Provider) (Contract, error)

// Confirmer waits for a transaction to be mined with success status.
type Confirmer interface {
	WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Logger is the printf-style logger the gateway writes diagnostics to.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// Operation names a balance mutation.
type Operation string

// Balance mutations.
const (
	OpDeposit  Operation = "deposit"
	OpWithdraw Operation = "withdraw"
)

// Phase is where a transaction is in its lifecycle.
type Phase int

// Transaction phases.
const (
	PhaseSubmitting Phase = iota
	PhaseConfirming
	PhaseConfirmed
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseSubmitting:
		return "submitting"
	case PhaseConfirming:
		return "confirming"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TxEvent reports a lifecycle step of one deposit or withdraw.
type TxEvent struct {
	Op     Operation
	Phase  Phase
	Amount string
	TxHash common.Hash
	Err    error
}

// Observer receives transaction lifecycle events. It must not block.
type Observer func(TxEvent)

// BalanceView is the last successfully read balance, formatted with four decimals.
type BalanceView struct {
	Value string
	Known bool
}

// String returns the balance or "unknown".
func (b BalanceView) String() string {
	if !b.Known {
		return "unknown"
	}
	return b.Value
}
