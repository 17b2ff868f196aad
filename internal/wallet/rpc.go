package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/mrz1836/depot/internal/metrics"
	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// RPCProvider talks to an injected wallet over JSON-RPC.
type RPCProvider struct {
	client   *rpc.Client
	endpoint string

	// life spans from construction to Close. Signing requests run under it.
	life context.Context
	end  context.CancelFunc
}

// DialRPCProvider connects to the wallet at endpoint.
func DialRPCProvider(ctx context.Context, endpoint string) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, depoterr.WithDetails(
			depoterr.WithCause(depoterr.ErrNetworkError, err),
			map[string]string{"wallet": endpoint},
		)
	}
	return NewRPCProvider(client, endpoint), nil
}

// NewRPCProvider wraps an existing RPC client.
func NewRPCProvider(client *rpc.Client, endpoint string) *RPCProvider {
	life, end := context.WithCancel(context.Background())
	return &RPCProvider{client: client, endpoint: endpoint, life: life, end: end}
}

// Name implements Provider.
func (p *RPCProvider) Name() string {
	return "rpc:" + p.endpoint
}

// ListAccounts calls eth_accounts.
func (p *RPCProvider) ListAccounts(ctx context.Context) ([]common.Address, error) {
	return p.accounts(ctx, "eth_accounts")
}

// RequestAccounts calls eth_requestAccounts. Code 4001 maps to ErrUserRejected.
func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return p.accounts(ctx, "eth_requestAccounts")
}

func (p *RPCProvider) accounts(ctx context.Context, method string) ([]common.Address, error) {
	var accounts []common.Address

	start := time.Now()
	err := p.client.CallContext(ctx, &accounts, method)
	metrics.Global.RecordRPCCall(time.Since(start), err)
	metrics.Global.RecordWalletOp(err)

	if err != nil {
		return nil, mapRequestError(err, method)
	}
	return accounts, nil
}

// signTransactionResult is the eth_signTransaction response.
type signTransactionResult struct {
	Raw hexutil.Bytes   `json:"raw"`
	Tx  json.RawMessage `json:"tx"`
}

// Transactor returns options whose signer delegates to eth_signTransaction.
// The options may outlive ctx: bind's signer callback gets no context, so
// signing requests run until the provider is closed. Per-transaction
// deadlines belong on TransactOpts.Context, which bounds the rest of the send.
func (p *RPCProvider) Transactor(ctx context.Context, account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	if chainID == nil {
		return nil, depoterr.WithDetails(depoterr.ErrInvalidInput, map[string]string{"chain_id": "missing"})
	}
	chainID = new(big.Int).Set(chainID)
	txSigner := types.LatestSignerForChainID(chainID)

	return &bind.TransactOpts{
		From:    account,
		Context: ctx,
		Signer: func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if from != account {
				return nil, bind.ErrNotAuthorized
			}

			var res signTransactionResult
			start := time.Now()
			err := p.client.CallContext(p.life, &res, "eth_signTransaction", signArgs(from, tx, chainID))
			metrics.Global.RecordRPCCall(time.Since(start), err)
			if err != nil {
				return nil, mapRequestError(err, "eth_signTransaction")
			}

			signed := new(types.Transaction)
			if err := signed.UnmarshalBinary(res.Raw); err != nil {
				return nil, fmt.Errorf("decoding signed transaction: %w", err)
			}

			sender, err := types.Sender(txSigner, signed)
			if err != nil {
				return nil, fmt.Errorf("recovering signer: %w", err)
			}
			if sender != from || signed.Nonce() != tx.Nonce() {
				return nil, depoterr.WithDetails(depoterr.ErrAccountUnknown, map[string]string{
					"expected": from.Hex(),
					"signed":   sender.Hex(),
				})
			}
			return signed, nil
		},
	}, nil
}

// signArgs renders tx as eth_signTransaction parameters.
func signArgs(from common.Address, tx *types.Transaction, chainID *big.Int) map[string]any {
	args := map[string]any{
		"from":    from,
		"nonce":   hexutil.Uint64(tx.Nonce()),
		"gas":     hexutil.Uint64(tx.Gas()),
		"value":   (*hexutil.Big)(tx.Value()),
		"data":    hexutil.Bytes(tx.Data()),
		"chainId": (*hexutil.Big)(chainID),
	}
	if to := tx.To(); to != nil {
		args["to"] = *to
	}

	if tx.Type() == types.DynamicFeeTxType {
		args["maxFeePerGas"] = (*hexutil.Big)(tx.GasFeeCap())
		args["maxPriorityFeePerGas"] = (*hexutil.Big)(tx.GasTipCap())
	} else {
		args["gasPrice"] = (*hexutil.Big)(tx.GasPrice())
	}
	return args
}

// Close implements Provider. Pending signing requests are abandoned.
func (p *RPCProvider) Close() error {
	p.end()
	p.client.Close()
	return nil
}
