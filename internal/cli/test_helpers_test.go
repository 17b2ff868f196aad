package cli

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"

	"github.com/mrz1836/depot/internal/app"
	"github.com/mrz1836/depot/internal/chain"
	"github.com/mrz1836/depot/internal/config"
	"github.com/mrz1836/depot/internal/gateway"
	"github.com/mrz1836/depot/internal/output"
	"github.com/mrz1836/depot/internal/wallet"
)

var testAccount = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

// testProvider is a wallet that has authorized nothing until RequestAccounts.
type testProvider struct {
	mu         sync.Mutex
	authorized bool
	requestErr error
}

func (p *testProvider) Name() string { return "test" }

func (p *testProvider) ListAccounts(context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.authorized {
		return nil, nil
	}
	return []common.Address{testAccount}, nil
}

func (p *testProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.requestErr != nil {
		return nil, p.requestErr
	}
	p.authorized = true
	return []common.Address{testAccount}, nil
}

func (p *testProvider) Transactor(_ context.Context, account common.Address, _ *big.Int) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{From: account}, nil
}

func (p *testProvider) Close() error { return nil }

// testContract keeps one balance in memory.
type testContract struct {
	mu      sync.Mutex
	balance *big.Int
	nonce   uint64
}

func (c *testContract) Account() common.Address { return testAccount }

func (c *testContract) GetBalance(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balance), nil
}

func (c *testContract) Deposit(_ context.Context, amount *big.Int) (*types.Transaction, error) {
	return c.move(amount)
}

func (c *testContract) Withdraw(_ context.Context, amount *big.Int) (*types.Transaction, error) {
	return c.move(new(big.Int).Neg(amount))
}

func (c *testContract) move(delta *big.Int) (*types.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balance = new(big.Int).Add(c.balance, delta)
	c.nonce++
	return types.NewTx(&types.LegacyTx{Nonce: c.nonce, Gas: 21000, GasPrice: big.NewInt(1)}), nil
}

func (c *testContract) DecodeRevert(error) (map[string]string, bool) { return nil, false }

type testConfirmer struct{}

func (testConfirmer) WaitConfirmed(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash()}, nil
}

// withTestApp points the CLI globals at an in-memory wallet and contract.
// A nil provider simulates a missing wallet.
func withTestApp(t *testing.T, provider wallet.Provider, balance *big.Int) {
	t.Helper()

	origCfg, origLogger, origFormatter, origOpen := cfg, logger, formatter, openAppFn
	t.Cleanup(func() {
		cfg, logger, formatter, openAppFn = origCfg, origLogger, origFormatter, origOpen
	})

	cfg = config.Defaults()
	cfg.Home = t.TempDir()
	logger = config.NullLogger()
	formatter = output.NewFormatter(output.FormatText, &bytes.Buffer{})

	contract := &testContract{balance: new(big.Int).Set(balance)}
	noRetry := chain.NoRetry()
	openAppFn = func(env app.Environment) (*app.App, error) {
		return app.New(app.Deps{
			Detect: func(context.Context) (wallet.Provider, error) {
				if provider == nil {
					return nil, nil
				}
				return provider, nil
			},
			Notify: env.Notify,
			Binder: func(context.Context, common.Address, wallet.Provider) (gateway.Contract, error) {
				return contract, nil
			},
			Confirmer: testConfirmer{},
			Observer:  env.Observer,
			Retry:     &noRetry,
		}), nil
	}
}

// newTestCmd returns a command wired to buffers.
func newTestCmd(stdin string) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetContext(context.Background())
	return cmd, &stdout, &stderr
}

func useJSON() {
	formatter = output.NewFormatter(output.FormatJSON, &bytes.Buffer{})
}

func ether(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return new(big.Int).Mul(v, big.NewInt(1e18))
}
