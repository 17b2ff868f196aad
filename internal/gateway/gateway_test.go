package gateway

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/depot/internal/chain"
	"github.com/mrz1836/depot/internal/session"
	"github.com/mrz1836/depot/internal/wallet"
	depoterr "github.com/mrz1836/depot/pkg/errors"
)

var (
	errNodeDown   = errors.New("node down")
	errBindFailed = errors.New("provider unavailable")
	errReverted   = errors.New("execution reverted")
	accountA      = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	accountB      = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

// fakeContract is a scripted Contract. Successful transactions move the
// balance by their amount.
type fakeContract struct {
	account common.Address

	mu          sync.Mutex
	balance     *big.Int
	balanceErrs []error
	balanceReqs int
	submitErr   error
	revert      map[string]string
	deposits    []*big.Int
	withdrawals []*big.Int
}

func newFakeContract(account common.Address, balance string) *fakeContract {
	b, _ := new(big.Int).SetString(balance, 10)
	return &fakeContract{account: account, balance: b}
}

func (f *fakeContract) Account() common.Address { return f.account }

func (f *fakeContract) GetBalance(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceReqs++
	if len(f.balanceErrs) > 0 {
		err := f.balanceErrs[0]
		f.balanceErrs = f.balanceErrs[1:]
		return nil, err
	}
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeContract) Deposit(_ context.Context, amount *big.Int) (*types.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.deposits = append(f.deposits, amount)
	f.balance = new(big.Int).Add(f.balance, amount)
	return newTx(uint64(len(f.deposits)+len(f.withdrawals)), amount), nil
}

func (f *fakeContract) Withdraw(_ context.Context, amount *big.Int) (*types.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.withdrawals = append(f.withdrawals, amount)
	f.balance = new(big.Int).Sub(f.balance, amount)
	return newTx(uint64(len(f.deposits)+len(f.withdrawals)), nil), nil
}

func (f *fakeContract) DecodeRevert(error) (map[string]string, bool) {
	if f.revert == nil {
		return nil, false
	}
	return f.revert, true
}

func (f *fakeContract) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balanceReqs
}

// fakeConfirmer settles every transaction with err.
type fakeConfirmer struct {
	err   error
	delay time.Duration

	mu    sync.Mutex
	waits int
}

func (f *fakeConfirmer) WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	f.mu.Lock()
	f.waits++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash()}, nil
}

// stubProvider satisfies wallet.Provider for Bind.
type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }
func (stubProvider) ListAccounts(context.Context) ([]common.Address, error) {
	return nil, nil
}

func (stubProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	return nil, nil
}

func (stubProvider) Transactor(context.Context, common.Address, *big.Int) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{}, nil
}
func (stubProvider) Close() error { return nil }

func newTx(nonce uint64, value *big.Int) *types.Transaction {
	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	if value == nil {
		value = new(big.Int)
	}
	return types.NewTx(&types.LegacyTx{Nonce: nonce, To: &to, Value: value, Gas: 60000, GasPrice: big.NewInt(1)})
}

func connected(account common.Address) session.Snapshot {
	return session.Snapshot{State: session.StateConnected, ProviderPresent: true, Account: &account}
}

func fastRetry() *chain.RetryConfig {
	cfg := chain.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	return &cfg
}

// boundGateway returns a gateway bound to c with events collected.
func boundGateway(t *testing.T, c *fakeContract, confirmer Confirmer) (*Gateway, *[]TxEvent) {
	t.Helper()
	var (
		mu     sync.Mutex
		events []TxEvent
	)
	g := New(Options{
		Binder: func(context.Context, common.Address, wallet.Provider) (Contract, error) {
			return c, nil
		},
		Confirmer: confirmer,
		Retry:     fastRetry(),
		Observer: func(ev TxEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev)
		},
	})
	require.NoError(t, g.Bind(context.Background(), connected(c.account), stubProvider{}))
	return g, &events
}

func phases(events []TxEvent) []Phase {
	out := make([]Phase, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Phase)
	}
	return out
}

func TestBind(t *testing.T) {
	t.Parallel()

	t.Run("requires a connected session", func(t *testing.T) {
		t.Parallel()
		g := New(Options{})
		err := g.Bind(context.Background(), session.Snapshot{State: session.StateDisconnected}, stubProvider{})
		require.ErrorIs(t, err, depoterr.ErrNotConnected)
		assert.False(t, g.Bound())
	})

	t.Run("provider errors propagate unchanged", func(t *testing.T) {
		t.Parallel()
		g := New(Options{Binder: func(context.Context, common.Address, wallet.Provider) (Contract, error) {
			return nil, errBindFailed
		}})
		err := g.Bind(context.Background(), connected(accountA), stubProvider{})
		assert.Equal(t, errBindFailed, err)
		assert.False(t, g.Bound())
	})

	t.Run("binds the session account", func(t *testing.T) {
		t.Parallel()
		var boundFor common.Address
		g := New(Options{Binder: func(_ context.Context, account common.Address, _ wallet.Provider) (Contract, error) {
			boundFor = account
			return newFakeContract(account, "0"), nil
		}})
		require.NoError(t, g.Bind(context.Background(), connected(accountA), stubProvider{}))

		assert.True(t, g.Bound())
		assert.Equal(t, accountA, boundFor)
		acct, ok := g.Account()
		assert.True(t, ok)
		assert.Equal(t, accountA, acct)
		assert.False(t, g.Balance().Known)
	})

	t.Run("rebinding resets the balance", func(t *testing.T) {
		t.Parallel()
		g, _ := boundGateway(t, newFakeContract(accountA, "1500000000000000000"), &fakeConfirmer{})
		require.NoError(t, g.FetchBalance(context.Background()))
		require.True(t, g.Balance().Known)

		require.NoError(t, g.Bind(context.Background(), connected(accountB), stubProvider{}))
		assert.Equal(t, BalanceView{}, g.Balance())
		assert.Equal(t, "unknown", g.Balance().String())
	})

	t.Run("failed bind for a new account drops the old handle", func(t *testing.T) {
		t.Parallel()
		old := newFakeContract(accountA, "1000000000000000000")
		fail := false
		g := New(Options{
			Binder: func(context.Context, common.Address, wallet.Provider) (Contract, error) {
				if fail {
					return nil, errNodeDown
				}
				return old, nil
			},
			Confirmer: &fakeConfirmer{},
			Retry:     fastRetry(),
		})
		require.NoError(t, g.Bind(context.Background(), connected(accountA), stubProvider{}))
		require.NoError(t, g.FetchBalance(context.Background()))

		fail = true
		require.ErrorIs(t, g.Bind(context.Background(), connected(accountB), stubProvider{}), errNodeDown)
		assert.False(t, g.Bound())
		assert.False(t, g.Balance().Known)

		// Nothing can be sent from the previous account.
		require.ErrorIs(t, g.DepositAmount(context.Background(), "1"), depoterr.ErrContractNotBound)
		assert.Empty(t, old.deposits)
	})

	t.Run("failed rebind for the same account keeps the handle", func(t *testing.T) {
		t.Parallel()
		c := newFakeContract(accountA, "0")
		calls := 0
		g := New(Options{Binder: func(context.Context, common.Address, wallet.Provider) (Contract, error) {
			calls++
			if calls > 1 {
				return nil, errNodeDown
			}
			return c, nil
		}})
		require.NoError(t, g.Bind(context.Background(), connected(accountA), stubProvider{}))
		require.ErrorIs(t, g.Bind(context.Background(), connected(accountA), stubProvider{}), errNodeDown)

		acct, ok := g.Account()
		assert.True(t, ok)
		assert.Equal(t, accountA, acct)
	})
}

func TestFetchBalance(t *testing.T) {
	t.Parallel()

	t.Run("unbound", func(t *testing.T) {
		t.Parallel()
		require.ErrorIs(t, New(Options{}).FetchBalance(context.Background()), depoterr.ErrContractNotBound)
	})

	t.Run("formats four decimals", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			raw  string
			want string
		}{
			{"1500000000000000000", "1.5000"},
			{"1", "0.0000"},
			{"0", "0.0000"},
			{"123456789999999999999", "123.4567"},
		}
		for _, tt := range tests {
			g, _ := boundGateway(t, newFakeContract(accountA, tt.raw), &fakeConfirmer{})
			require.NoError(t, g.FetchBalance(context.Background()))
			assert.Equal(t, BalanceView{Value: tt.want, Known: true}, g.Balance(), tt.raw)
		}
	})

	t.Run("failure keeps the previous value", func(t *testing.T) {
		t.Parallel()
		c := newFakeContract(accountA, "1500000000000000000")
		g, _ := boundGateway(t, c, &fakeConfirmer{})
		require.NoError(t, g.FetchBalance(context.Background()))

		c.mu.Lock()
		c.balance = big.NewInt(0)
		c.balanceErrs = []error{errNodeDown}
		c.mu.Unlock()

		err := g.FetchBalance(context.Background())
		require.ErrorIs(t, err, depoterr.ErrBalanceRead)
		require.ErrorIs(t, err, errNodeDown)
		assert.Equal(t, BalanceView{Value: "1.5000", Known: true}, g.Balance())
	})

	t.Run("failure before first read stays unknown", func(t *testing.T) {
		t.Parallel()
		c := newFakeContract(accountA, "1")
		c.balanceErrs = []error{errNodeDown}
		g, _ := boundGateway(t, c, &fakeConfirmer{})

		require.Error(t, g.FetchBalance(context.Background()))
		assert.False(t, g.Balance().Known)
	})

	t.Run("transient errors are retried", func(t *testing.T) {
		t.Parallel()
		c := newFakeContract(accountA, "2000000000000000000")
		c.balanceErrs = []error{chain.ErrRateLimited, chain.ErrTimeout}
		g, _ := boundGateway(t, c, &fakeConfirmer{})

		require.NoError(t, g.FetchBalance(context.Background()))
		assert.Equal(t, "2.0000", g.Balance().Value)
		assert.Equal(t, 3, c.requests())
	})
}

func TestDeposit_SuccessClearsBufferAndRefreshes(t *testing.T) {
	t.Parallel()
	c := newFakeContract(accountA, "0")
	confirmer := &fakeConfirmer{}
	g, events := boundGateway(t, c, confirmer)

	g.SetDepositInput("2.5")
	require.NoError(t, g.Deposit(context.Background()))

	deposit, _ := g.Inputs()
	assert.Empty(t, deposit)
	assert.Equal(t, BalanceView{Value: "2.5000", Known: true}, g.Balance())
	require.Len(t, c.deposits, 1)
	assert.Equal(t, "2500000000000000000", c.deposits[0].String())
	assert.Equal(t, 1, confirmer.waits)
	assert.Equal(t, 1, c.requests())
	assert.Equal(t, []Phase{PhaseSubmitting, PhaseConfirming, PhaseConfirmed}, phases(*events))
	assert.NotEqual(t, common.Hash{}, (*events)[1].TxHash)
}

func TestWithdraw_Success(t *testing.T) {
	t.Parallel()
	c := newFakeContract(accountA, "3000000000000000000")
	g, _ := boundGateway(t, c, &fakeConfirmer{})

	require.NoError(t, g.WithdrawAmount(context.Background(), "1"))

	_, withdraw := g.Inputs()
	assert.Empty(t, withdraw)
	assert.Equal(t, "2.0000", g.Balance().Value)
	require.Len(t, c.withdrawals, 1)
	assert.Empty(t, c.deposits)
}

func TestWithdraw_UnparsableFailsBeforeSubmission(t *testing.T) {
	t.Parallel()
	c := newFakeContract(accountA, "1500000000000000000")
	confirmer := &fakeConfirmer{}
	g, events := boundGateway(t, c, confirmer)
	require.NoError(t, g.FetchBalance(context.Background()))
	before := g.Balance()

	err := g.WithdrawAmount(context.Background(), "abc")
	require.ErrorIs(t, err, depoterr.ErrInvalidAmount)
	assert.Contains(t, err.Error(), "input: abc")

	_, withdraw := g.Inputs()
	assert.Equal(t, "abc", withdraw)
	assert.Equal(t, before, g.Balance())
	assert.Empty(t, c.withdrawals)
	assert.Equal(t, 0, confirmer.waits)
	assert.Equal(t, []Phase{PhaseFailed}, phases(*events))
}

func TestDeposit_FailuresPreserveBufferAndBalance(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		input      string
		submitErr  error
		confirmErr error
		revert     map[string]string
		want       error
	}{
		{name: "negative", input: "-1", want: depoterr.ErrInvalidAmount},
		{name: "too precise", input: "0.0000000000000000001", want: depoterr.ErrInvalidAmount},
		{name: "empty", input: "", want: depoterr.ErrInvalidAmount},
		{name: "wallet rejected", input: "1", submitErr: depoterr.ErrUserRejected, want: depoterr.ErrUserRejected},
		{name: "submit failed", input: "1", submitErr: errNodeDown, want: depoterr.ErrTxSubmit},
		{name: "reverted on chain", input: "1", confirmErr: depoterr.ErrTxReverted, want: depoterr.ErrTxReverted},
		{name: "confirmation wait failed", input: "1", confirmErr: depoterr.ErrConfirmation, want: depoterr.ErrConfirmation},
		{
			name: "estimate reverted", input: "1", submitErr: errReverted,
			revert: map[string]string{"error": "InsufficientBalance", "balance": "0", "withdrawAmount": "1"},
			want:   depoterr.ErrTxSubmit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newFakeContract(accountA, "1500000000000000000")
			c.submitErr = tt.submitErr
			c.revert = tt.revert
			g, events := boundGateway(t, c, &fakeConfirmer{err: tt.confirmErr})
			require.NoError(t, g.FetchBalance(context.Background()))
			reads := c.requests()

			err := g.DepositAmount(context.Background(), tt.input)
			require.ErrorIs(t, err, tt.want)

			deposit, _ := g.Inputs()
			assert.Equal(t, tt.input, deposit)
			assert.Equal(t, BalanceView{Value: "1.5000", Known: true}, g.Balance())
			assert.Equal(t, reads, c.requests(), "no refresh after a failure")

			last := (*events)[len(*events)-1]
			assert.Equal(t, PhaseFailed, last.Phase)
			require.ErrorIs(t, last.Err, tt.want)

			if tt.revert != nil {
				assert.Contains(t, err.Error(), "error: InsufficientBalance")
			}
		})
	}
}

func TestDeposit_Unbound(t *testing.T) {
	t.Parallel()
	g := New(Options{})
	err := g.DepositAmount(context.Background(), "1")
	require.ErrorIs(t, err, depoterr.ErrContractNotBound)

	deposit, _ := g.Inputs()
	assert.Equal(t, "1", deposit)
}

func TestDeposit_RefreshFailureStillSucceeds(t *testing.T) {
	t.Parallel()
	c := newFakeContract(accountA, "0")
	g, _ := boundGateway(t, c, &fakeConfirmer{})
	require.NoError(t, g.FetchBalance(context.Background()))

	c.mu.Lock()
	c.balanceErrs = []error{errNodeDown}
	c.mu.Unlock()

	require.NoError(t, g.DepositAmount(context.Background(), "1"))
	deposit, _ := g.Inputs()
	assert.Empty(t, deposit)
	assert.Equal(t, "0.0000", g.Balance().Value)
}

func TestConcurrentDepositAndWithdraw(t *testing.T) {
	t.Parallel()
	c := newFakeContract(accountA, "5000000000000000000")
	g, _ := boundGateway(t, c, &fakeConfirmer{delay: 10 * time.Millisecond})

	g.SetDepositInput("1")
	g.SetWithdrawInput("2")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = g.Deposit(context.Background())
	}()
	go func() {
		defer wg.Done()
		errs[1] = g.Withdraw(context.Background())
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	deposit, withdraw := g.Inputs()
	assert.Empty(t, deposit)
	assert.Empty(t, withdraw)
	assert.Len(t, c.deposits, 1)
	assert.Len(t, c.withdrawals, 1)

	require.NoError(t, g.FetchBalance(context.Background()))
	assert.Equal(t, "4.0000", g.Balance().Value)
}

func TestNewInputDuringFlightIsKept(t *testing.T) {
	t.Parallel()
	c := newFakeContract(accountA, "0")
	g, _ := boundGateway(t, c, &fakeConfirmer{delay: 50 * time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- g.DepositAmount(context.Background(), "1") }()

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.deposits) == 1
	}, time.Second, time.Millisecond)
	g.SetDepositInput("3")

	require.NoError(t, <-done)
	deposit, _ := g.Inputs()
	assert.Equal(t, "3", deposit)
}

func TestPhaseString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "submitting", PhaseSubmitting.String())
	assert.Equal(t, "confirming", PhaseConfirming.String())
	assert.Equal(t, "confirmed", PhaseConfirmed.String())
	assert.Equal(t, "failed", PhaseFailed.String())
	assert.Equal(t, "unknown", Phase(9).String())
}
