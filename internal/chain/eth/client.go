// Package eth provides the ledger client used to read contract state and
// wait for transaction receipts.
package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/mrz1836/depot/internal/chain"
	"github.com/mrz1836/depot/internal/metrics"
	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// ErrRPCURLRequired indicates the RPC URL was not provided.
var ErrRPCURLRequired = &depoterr.DepotError{
	Code:     "ETH_RPC_URL_REQUIRED",
	Message:  "RPC URL is required",
	ExitCode: depoterr.ExitInput,
}

// ClientOptions contains optional configuration for the ledger client.
type ClientOptions struct {
	// ChainID overrides chain ID detection.
	ChainID *big.Int
	// Limiter throttles receipt polling. Defaults to chain.DefaultRateLimiter.
	Limiter *chain.RateLimiter
	// ConfirmTimeout bounds WaitConfirmed. Zero waits as long as the caller's context allows.
	ConfirmTimeout time.Duration
}

// Client provides contract backend access over JSON-RPC.
// The connection is dialed lazily on first use.
type Client struct {
	rpcURL         string
	rpcClient      *rpc.Client
	eth            *ethclient.Client
	chainID        *big.Int
	limiter        *chain.RateLimiter
	confirmTimeout time.Duration
	mu             sync.Mutex
}

// NewClient creates a new ledger client for rpcURL.
func NewClient(rpcURL string, opts *ClientOptions) (*Client, error) {
	if rpcURL == "" {
		return nil, ErrRPCURLRequired
	}

	c := &Client{rpcURL: rpcURL}
	c.applyOptions(opts)
	return c, nil
}

// NewClientWithRPC creates a ledger client over an existing RPC connection.
func NewClientWithRPC(rpcClient *rpc.Client, opts *ClientOptions) *Client {
	c := &Client{
		rpcURL:    "inproc",
		rpcClient: rpcClient,
		eth:       ethclient.NewClient(rpcClient),
	}
	c.applyOptions(opts)
	return c
}

func (c *Client) applyOptions(opts *ClientOptions) {
	c.limiter = chain.DefaultRateLimiter()
	if opts == nil {
		return
	}
	if opts.ChainID != nil {
		c.chainID = new(big.Int).Set(opts.ChainID)
	}
	if opts.Limiter != nil {
		c.limiter = opts.Limiter
	}
	c.confirmTimeout = opts.ConfirmTimeout
}

// connect dials the endpoint until a dial succeeds. A failed dial is not
// cached, so a node that comes up later is picked up by the next call.
func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		return nil
	}

	rpcClient, err := rpc.DialContext(ctx, c.rpcURL)
	if err != nil {
		return depoterr.WithCause(depoterr.ErrNetworkError, fmt.Errorf("dialing %s: %w", c.rpcURL, err))
	}

	c.rpcClient = rpcClient
	c.eth = ethclient.NewClient(rpcClient)
	return nil
}

// URL returns the endpoint this client talks to.
func (c *Client) URL() string {
	return c.rpcURL
}

// ChainID returns the configured chain ID, asking the node when none was set.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	if c.chainID != nil {
		id := new(big.Int).Set(c.chainID)
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	id, err := c.eth.ChainID(ctx)
	metrics.Global.RecordRPCCall(time.Since(start), err)
	if err != nil {
		return nil, depoterr.WithCause(depoterr.ErrNetworkError, fmt.Errorf("getting chain id: %w", err))
	}

	c.mu.Lock()
	c.chainID = id
	c.mu.Unlock()
	return new(big.Int).Set(id), nil
}

// Backend returns the contract backend used for calls and transactions.
func (c *Client) Backend(ctx context.Context) (bind.ContractBackend, error) {
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c.eth, nil
}

// WaitConfirmed blocks until tx is mined and fails unless its receipt reports success.
func (c *Client) WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	if c.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.confirmTimeout)
		defer cancel()
	}

	backend := &throttledBackend{
		next:     c.eth,
		limiter:  c.limiter,
		endpoint: c.rpcURL,
	}
	return WaitConfirmed(ctx, backend, tx)
}

// WaitConfirmed waits for tx on backend and checks the receipt status.
func WaitConfirmed(ctx context.Context, backend bind.DeployBackend, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, backend, tx)
	if err != nil {
		return nil, depoterr.WithDetails(
			depoterr.WithCause(depoterr.ErrConfirmation, err),
			map[string]string{"tx": tx.Hash().Hex()},
		)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, depoterr.WithDetails(depoterr.ErrTxReverted, map[string]string{
			"tx":    tx.Hash().Hex(),
			"block": receipt.BlockNumber.String(),
		})
	}

	return receipt, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
	c.rpcClient = nil
	c.eth = nil
}

// throttledBackend rate limits and meters receipt polling.
type throttledBackend struct {
	next     bind.DeployBackend
	limiter  *chain.RateLimiter
	endpoint string
}

func (b *throttledBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := b.limiter.Wait(ctx, b.endpoint); err != nil {
		return nil, err
	}

	start := time.Now()
	receipt, err := b.next.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		// Pending, not a failure.
		metrics.Global.RecordRPCCall(time.Since(start), nil)
	} else {
		metrics.Global.RecordRPCCall(time.Since(start), err)
	}
	return receipt, err
}

func (b *throttledBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return b.next.CodeAt(ctx, account, blockNumber)
}
