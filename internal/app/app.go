// Package app owns one wallet session and one contract gateway and wires the
// session's connected transition to contract binding and a balance read.
package app

import (
	"context"
	"sync"

	"github.com/mrz1836/depot/internal/chain"
	"github.com/mrz1836/depot/internal/gateway"
	"github.com/mrz1836/depot/internal/session"
	"github.com/mrz1836/depot/internal/wallet"
	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// Logger is satisfied by *config.Logger.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Deps are the collaborators an App is built from.
type Deps struct {
	Detect    session.Detector
	Notify    session.Notifier
	Binder    gateway.Binder
	Confirmer gateway.Confirmer
	Observer  gateway.Observer
	Logger    Logger
	Retry     *chain.RetryConfig
}

// App is the session context shared by every command of one process.
type App struct {
	session *session.Manager
	gateway *gateway.Gateway
	logger  Logger

	mu      sync.Mutex
	closers []func()
}

// View is a point-in-time picture of the session for display.
type View struct {
	State         string `json:"state"`
	Connected     bool   `json:"connected"`
	Provider      string `json:"provider,omitempty"`
	Account       string `json:"account,omitempty"`
	ContractBound bool   `json:"contract_bound"`
	Balance       string `json:"balance"`
	BalanceKnown  bool   `json:"balance_known"`
	DepositInput  string `json:"deposit_input"`
	WithdrawInput string `json:"withdraw_input"`
}

// New builds an App. The session's connected transition binds the gateway
// and reads the balance once.
func New(deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	a := &App{
		session: session.NewManager(deps.Detect, deps.Notify, logger),
		gateway: gateway.New(gateway.Options{
			Binder:    deps.Binder,
			Confirmer: deps.Confirmer,
			Logger:    logger,
			Observer:  deps.Observer,
			Retry:     deps.Retry,
		}),
		logger: logger,
	}
	a.session.OnConnected(a.onConnected)
	return a
}

func (a *App) onConnected(ctx context.Context, snap session.Snapshot, provider wallet.Provider) error {
	if err := a.gateway.Bind(ctx, snap, provider); err != nil {
		return err
	}
	// A failed first read leaves the balance unknown; the error is already logged.
	_ = a.gateway.FetchBalance(ctx)
	return nil
}

// Start detects a provider and adopts an already authorized account.
func (a *App) Start(ctx context.Context) error {
	if err := a.session.DetectProvider(ctx); err != nil {
		return err
	}
	return a.session.SyncAccounts(ctx)
}

// Connect asks the provider for account access.
func (a *App) Connect(ctx context.Context) error {
	return a.session.Connect(ctx)
}

// Refresh re-reads the contract balance.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.ensureBound(ctx); err != nil {
		return err
	}
	return a.gateway.FetchBalance(ctx)
}

// SetDepositInput replaces the pending deposit amount.
func (a *App) SetDepositInput(text string) {
	a.gateway.SetDepositInput(text)
}

// SetWithdrawInput replaces the pending withdraw amount.
func (a *App) SetWithdrawInput(text string) {
	a.gateway.SetWithdrawInput(text)
}

// Deposit submits the pending deposit amount and waits for confirmation.
func (a *App) Deposit(ctx context.Context) error {
	if err := a.ensureBound(ctx); err != nil {
		return err
	}
	return a.gateway.Deposit(ctx)
}

// Withdraw submits the pending withdraw amount and waits for confirmation.
func (a *App) Withdraw(ctx context.Context) error {
	if err := a.ensureBound(ctx); err != nil {
		return err
	}
	return a.gateway.Withdraw(ctx)
}

// DepositAmount sets the pending deposit amount and submits it.
func (a *App) DepositAmount(ctx context.Context, text string) error {
	a.gateway.SetDepositInput(text)
	return a.Deposit(ctx)
}

// WithdrawAmount sets the pending withdraw amount and submits it.
func (a *App) WithdrawAmount(ctx context.Context, text string) error {
	a.gateway.SetWithdrawInput(text)
	return a.Withdraw(ctx)
}

// ensureBound makes sure the contract handle signs for the connected account.
// A bind that failed when the account was adopted is retried here.
func (a *App) ensureBound(ctx context.Context) error {
	snap := a.session.Snapshot()
	if !snap.Connected() {
		return depoterr.ErrNotConnected
	}
	if account, ok := a.gateway.Account(); ok && account == *snap.Account {
		return nil
	}

	if err := a.session.SyncAccounts(ctx); err != nil {
		return err
	}
	snap = a.session.Snapshot()
	if account, ok := a.gateway.Account(); !ok || snap.Account == nil || account != *snap.Account {
		return depoterr.ErrContractNotBound
	}
	return nil
}

// View returns the session, balance, and input buffers. It has no side effects.
func (a *App) View() View {
	snap := a.session.Snapshot()
	balance := a.gateway.Balance()
	deposit, withdraw := a.gateway.Inputs()

	v := View{
		State:         snap.State.String(),
		Connected:     snap.Connected(),
		Provider:      snap.Provider,
		ContractBound: a.gateway.Bound(),
		Balance:       balance.String(),
		BalanceKnown:  balance.Known,
		DepositInput:  deposit,
		WithdrawInput: withdraw,
	}
	if snap.Account != nil {
		v.Account = snap.Account.Hex()
	}
	return v
}

// addCloser registers fn to run on Close, in reverse order.
func (a *App) addCloser(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, fn)
}

// Close releases the wallet provider and the ledger connection.
func (a *App) Close() error {
	err := a.session.Close()

	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	return err
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
