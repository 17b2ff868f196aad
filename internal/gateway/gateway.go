package gateway

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/depot/internal/chain"
	"github.com/mrz1836/depot/internal/metrics"
	"github.com/mrz1836/depot/internal/session"
	"github.com/mrz1836/depot/internal/wallet"
	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// Options configures a Gateway.
type Options struct {
	Binder    Binder
	Confirmer Confirmer
	Logger    Logger
	Observer  Observer
	// Retry applies to balance reads. Defaults to chain.DefaultRetryConfig.
	Retry *chain.RetryConfig
}

// Gateway holds the contract handle for the connected account, the balance
// view, and the two pending amount buffers.
type Gateway struct {
	binder    Binder
	confirmer Confirmer
	logger    Logger
	observer  Observer
	retry     chain.RetryConfig

	mu            sync.Mutex
	contract      Contract
	balance       BalanceView
	depositInput  string
	withdrawInput string
}

// New creates an unbound gateway.
func New(opts Options) *Gateway {
	g := &Gateway{
		binder:    opts.Binder,
		confirmer: opts.Confirmer,
		logger:    opts.Logger,
		observer:  opts.Observer,
		retry:     chain.DefaultRetryConfig(),
	}
	if g.logger == nil {
		g.logger = nopLogger{}
	}
	if opts.Retry != nil {
		g.retry = *opts.Retry
	}
	return g
}

// Bind builds the contract handle for the session's account. The balance
// becomes unknown until the next successful fetch. A handle for a different
// account is dropped before binding, so a failed bind never leaves the
// previous account's signer in place. Provider errors are returned unchanged.
func (g *Gateway) Bind(ctx context.Context, snap session.Snapshot, provider wallet.Provider) error {
	if !snap.Connected() {
		return depoterr.ErrNotConnected
	}
	account := *snap.Account

	g.mu.Lock()
	if g.contract != nil && g.contract.Account() != account {
		g.contract = nil
		g.balance = BalanceView{}
	}
	g.mu.Unlock()

	if g.binder == nil || provider == nil {
		return depoterr.ErrContractNotBound
	}

	c, err := g.binder(ctx, account, provider)
	if err != nil {
		g.logger.Error("binding contract for %s: %v", account.Hex(), err)
		return err
	}

	g.mu.Lock()
	g.contract = c
	g.balance = BalanceView{}
	g.mu.Unlock()

	g.logger.Debug("contract bound for %s", account.Hex())
	return nil
}

// Bound reports whether a contract handle exists.
func (g *Gateway) Bound() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.contract != nil
}

// Account returns the account the handle signs for.
func (g *Gateway) Account() (common.Address, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.contract == nil {
		return common.Address{}, false
	}
	return g.contract.Account(), true
}

// Balance returns the current balance view.
func (g *Gateway) Balance() BalanceView {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balance
}

// SetDepositInput replaces the deposit buffer.
func (g *Gateway) SetDepositInput(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.depositInput = text
}

// SetWithdrawInput replaces the withdraw buffer.
func (g *Gateway) SetWithdrawInput(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.withdrawInput = text
}

// Inputs returns the deposit and withdraw buffers.
func (g *Gateway) Inputs() (deposit, withdraw string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.depositInput, g.withdrawInput
}

// FetchBalance reads the contract balance into the view. Transient errors are
// retried. On failure the previous view is kept and the error is logged and returned.
func (g *Gateway) FetchBalance(ctx context.Context) error {
	g.mu.Lock()
	c := g.contract
	g.mu.Unlock()
	if c == nil {
		return depoterr.ErrContractNotBound
	}

	raw, err := chain.RetryWithConfig(ctx, g.retry, func() (*big.Int, error) {
		return c.GetBalance(ctx)
	})
	metrics.Global.RecordBalanceFetch(err)
	if err != nil {
		g.logger.Error("fetching balance: %v", err)
		return depoterr.WithCause(depoterr.ErrBalanceRead, err)
	}

	formatted := chain.FormatNativeBalance(raw)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.contract != c {
		g.logger.Debug("dropping balance read for a replaced contract handle")
		return nil
	}
	g.balance = BalanceView{Value: formatted, Known: true}
	return nil
}

// Deposit submits the deposit buffer with an equal value attached.
func (g *Gateway) Deposit(ctx context.Context) error {
	return g.submit(ctx, OpDeposit)
}

// Withdraw submits the withdraw buffer.
func (g *Gateway) Withdraw(ctx context.Context) error {
	return g.submit(ctx, OpWithdraw)
}

// DepositAmount sets the deposit buffer to text and submits it.
func (g *Gateway) DepositAmount(ctx context.Context, text string) error {
	g.SetDepositInput(text)
	return g.Deposit(ctx)
}

// WithdrawAmount sets the withdraw buffer to text and submits it.
func (g *Gateway) WithdrawAmount(ctx context.Context, text string) error {
	g.SetWithdrawInput(text)
	return g.Withdraw(ctx)
}

// submit runs parse, submit, confirmation wait, and refresh in order.
// Only a confirmed transaction clears the buffer.
func (g *Gateway) submit(ctx context.Context, op Operation) error {
	g.mu.Lock()
	c := g.contract
	text := g.inputLocked(op)
	g.mu.Unlock()

	if c == nil {
		return g.fail(op, text, common.Hash{}, depoterr.ErrContractNotBound)
	}

	amount, err := chain.ParseNativeAmount(text, depoterr.ErrInvalidAmount)
	if err != nil {
		return g.fail(op, text, common.Hash{}, depoterr.WithDetails(depoterr.ErrInvalidAmount, map[string]string{
			"field": string(op),
			"input": text,
		}))
	}

	g.emit(TxEvent{Op: op, Phase: PhaseSubmitting, Amount: text})

	var tx *types.Transaction
	switch op {
	case OpDeposit:
		tx, err = c.Deposit(ctx, amount)
	case OpWithdraw:
		tx, err = c.Withdraw(ctx, amount)
	}
	if err != nil {
		metrics.Global.RecordTxFailed()
		return g.fail(op, text, common.Hash{}, classifySubmitError(c, err))
	}

	metrics.Global.RecordTxSubmitted()
	g.logger.Info("%s of %s submitted: %s", op, text, tx.Hash().Hex())
	g.emit(TxEvent{Op: op, Phase: PhaseConfirming, Amount: text, TxHash: tx.Hash()})

	if g.confirmer == nil {
		metrics.Global.RecordTxFailed()
		return g.fail(op, text, tx.Hash(), depoterr.ErrConfirmation)
	}
	if _, err := g.confirmer.WaitConfirmed(ctx, tx); err != nil {
		metrics.Global.RecordTxFailed()
		return g.fail(op, text, tx.Hash(), err)
	}

	metrics.Global.RecordTxConfirmed()
	g.logger.Info("%s of %s confirmed: %s", op, text, tx.Hash().Hex())
	g.emit(TxEvent{Op: op, Phase: PhaseConfirmed, Amount: text, TxHash: tx.Hash()})

	// A failed refresh keeps the previous balance.
	_ = g.FetchBalance(ctx)

	g.mu.Lock()
	// Leave text the user typed while this transaction was in flight.
	if g.inputLocked(op) == text {
		g.setInputLocked(op, "")
	}
	g.mu.Unlock()
	return nil
}

func (g *Gateway) fail(op Operation, text string, hash common.Hash, err error) error {
	g.logger.Error("%s of %q failed: %v", op, text, err)
	g.emit(TxEvent{Op: op, Phase: PhaseFailed, Amount: text, TxHash: hash, Err: err})
	return err
}

func (g *Gateway) emit(ev TxEvent) {
	if g.observer != nil {
		g.observer(ev)
	}
}

func (g *Gateway) inputLocked(op Operation) string {
	if op == OpDeposit {
		return g.depositInput
	}
	return g.withdrawInput
}

func (g *Gateway) setInputLocked(op Operation, text string) {
	if op == OpDeposit {
		g.depositInput = text
		return
	}
	g.withdrawInput = text
}

// classifySubmitError maps a signing or submission failure to a depot error,
// attaching decoded revert data when present.
func classifySubmitError(c Contract, err error) error {
	if depoterr.Is(err, depoterr.ErrUserRejected) {
		return err
	}
	if wallet.IsRejected(err) {
		return depoterr.WithCause(depoterr.ErrUserRejected, err)
	}

	out := depoterr.WithCause(depoterr.ErrTxSubmit, err)
	if details, ok := c.DecodeRevert(err); ok {
		out = depoterr.WithDetails(out, details)
	}
	return out
}
