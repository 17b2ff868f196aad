package wallet

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

var errKeyringMissing = errors.New("secret not found in keyring")

// rejectError is a JSON-RPC error with an EIP-1193 code.
type rejectError struct{}

func (rejectError) Error() string { return "User rejected the request." }
func (rejectError) ErrorCode() int { return rejectedCode }

// walletService is an in-process injected wallet.
type walletService struct {
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	reject   bool
	accounts []common.Address

	mu      sync.Mutex
	signed  int
	lastArg signTxArgs
}

type signTxArgs struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to"`
	Gas                  hexutil.Uint64  `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Value                *hexutil.Big    `json:"value"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	Data                 hexutil.Bytes   `json:"data"`
	ChainID              *hexutil.Big    `json:"chainId"`
}

func (s *walletService) Accounts() []common.Address {
	return s.accounts
}

func (s *walletService) RequestAccounts() ([]common.Address, error) {
	if s.reject {
		return nil, rejectError{}
	}
	return []common.Address{crypto.PubkeyToAddress(s.key.PublicKey)}, nil
}

func (s *walletService) SignTransaction(args signTxArgs) (map[string]any, error) {
	if s.reject {
		return nil, rejectError{}
	}

	s.mu.Lock()
	s.signed++
	s.lastArg = args
	s.mu.Unlock()

	var inner types.TxData
	if args.MaxFeePerGas != nil {
		inner = &types.DynamicFeeTx{
			ChainID:   (*big.Int)(args.ChainID),
			Nonce:     uint64(args.Nonce),
			GasTipCap: (*big.Int)(args.MaxPriorityFeePerGas),
			GasFeeCap: (*big.Int)(args.MaxFeePerGas),
			Gas:       uint64(args.Gas),
			To:        args.To,
			Value:     (*big.Int)(args.Value),
			Data:      args.Data,
		}
	} else {
		inner = &types.LegacyTx{
			Nonce:    uint64(args.Nonce),
			GasPrice: (*big.Int)(args.GasPrice),
			Gas:      uint64(args.Gas),
			To:       args.To,
			Value:    (*big.Int)(args.Value),
			Data:     args.Data,
		}
	}

	signed, err := types.SignNewTx(s.key, types.LatestSignerForChainID(s.chainID), inner)
	if err != nil {
		return nil, err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return map[string]any{"raw": hexutil.Bytes(raw), "tx": signed}, nil
}

func newWalletServer(t *testing.T, svc *walletService) *RPCProvider {
	t.Helper()
	server := rpc.NewServer()
	t.Cleanup(server.Stop)
	require.NoError(t, server.RegisterName("eth", svc))

	p := NewRPCProvider(rpc.DialInProc(server), "inproc")
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func newTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

// newTestKeystore creates a keystore directory holding one account per passphrase.
func newTestKeystore(t *testing.T, passphrases ...string) (string, []common.Address) {
	t.Helper()
	dir := t.TempDir()
	ks := keystore.NewKeyStore(dir, keystore.LightScryptN, keystore.LightScryptP)

	addrs := make([]common.Address, 0, len(passphrases))
	for _, pass := range passphrases {
		acct, err := ks.NewAccount(pass)
		require.NoError(t, err)
		addrs = append(addrs, acct.Address)
	}
	return dir, addrs
}

// mockKeyring is an in-memory Keyring.
type mockKeyring struct {
	mu    sync.Mutex
	store map[string]string
}

func newMockKeyring() *mockKeyring {
	return &mockKeyring{store: make(map[string]string)}
}

func (m *mockKeyring) Set(service, user, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[service+":"+user] = password
	return nil
}

func (m *mockKeyring) Get(service, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store[service+":"+user]
	if !ok {
		return "", errKeyringMissing
	}
	return v, nil
}

func (m *mockKeyring) Delete(service, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, service+":"+user)
	return nil
}

func (m *mockKeyring) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}
