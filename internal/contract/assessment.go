// Package contract binds the Assessment deposit/withdraw contract to a signer.
package contract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// DefaultAddress is where the Assessment contract lands on a fresh local Hardhat node.
const DefaultAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

// revertSelector is the 4-byte selector of Error(string).
var revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

// Assessment is a signer-bound handle to a deployed Assessment contract.
// It is valid only for the account its signer was built for.
type Assessment struct {
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
	signer   *bind.TransactOpts
}

// NewAssessment binds the contract at address for the given signer.
func NewAssessment(address common.Address, artifact *Artifact, backend bind.ContractBackend, signer *bind.TransactOpts) (*Assessment, error) {
	if artifact == nil {
		return nil, depoterr.ErrInvalidArtifact
	}
	if signer == nil || signer.Signer == nil {
		return nil, depoterr.WithDetails(depoterr.ErrContractNotBound, map[string]string{"reason": "no signer"})
	}
	if backend == nil {
		return nil, depoterr.WithDetails(depoterr.ErrContractNotBound, map[string]string{"reason": "no backend"})
	}

	parsed := artifact.ABI()
	return &Assessment{
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		signer:   signer,
	}, nil
}

// Address returns the contract address.
func (a *Assessment) Address() common.Address {
	return a.address
}

// Account returns the account the handle signs for.
func (a *Assessment) Account() common.Address {
	return a.signer.From
}

// GetBalance returns the contract's balance in the smallest unit.
func (a *Assessment) GetBalance(ctx context.Context) (*big.Int, error) {
	var out []any
	opts := &bind.CallOpts{Context: ctx, From: a.signer.From}
	if err := a.contract.Call(opts, &out, MethodGetBalance); err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s returned %d values", MethodGetBalance, len(out))
	}

	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T", MethodGetBalance, out[0])
	}
	return balance, nil
}

// Deposit submits deposit(amount) carrying amount as the transaction value.
func (a *Assessment) Deposit(ctx context.Context, amount *big.Int) (*types.Transaction, error) {
	return a.contract.Transact(a.transactOpts(ctx, amount), MethodDeposit, amount)
}

// Withdraw submits withdraw(amount).
func (a *Assessment) Withdraw(ctx context.Context, amount *big.Int) (*types.Transaction, error) {
	return a.contract.Transact(a.transactOpts(ctx, nil), MethodWithdraw, amount)
}

// transactOpts copies the signer so concurrent transactions never share options.
func (a *Assessment) transactOpts(ctx context.Context, value *big.Int) *bind.TransactOpts {
	opts := *a.signer
	opts.Context = ctx
	opts.Value = value
	return &opts
}

// DecodeRevert extracts custom-error or reason-string details from a failed
// call or estimate. It reports false when err carries no decodable revert data.
func (a *Assessment) DecodeRevert(err error) (map[string]string, bool) {
	return DecodeRevert(a.abi, err)
}

// DecodeRevert decodes revert data carried by err against parsed.
func DecodeRevert(parsed abi.ABI, err error) (map[string]string, bool) {
	data, ok := revertData(err)
	if !ok || len(data) < 4 {
		return nil, false
	}

	if bytes.Equal(data[:4], revertSelector) {
		reason, unpackErr := abi.UnpackRevert(data)
		if unpackErr != nil {
			return nil, false
		}
		return map[string]string{"reason": reason}, true
	}

	for name, abiErr := range parsed.Errors {
		if !bytes.Equal(abiErr.ID[:4], data[:4]) {
			continue
		}
		unpacked, unpackErr := abiErr.Inputs.Unpack(data[4:])
		if unpackErr != nil {
			return nil, false
		}
		details := map[string]string{"error": name}
		for i, input := range abiErr.Inputs {
			if i < len(unpacked) {
				details[input.Name] = fmt.Sprint(unpacked[i])
			}
		}
		return details, true
	}

	return nil, false
}

func revertData(err error) ([]byte, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, false
	}

	switch v := dataErr.ErrorData().(type) {
	case string:
		data, decodeErr := hexutil.Decode(v)
		if decodeErr != nil {
			return nil, false
		}
		return data, true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}
