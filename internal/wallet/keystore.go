package wallet

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/depot/internal/metrics"
	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// KeystoreOptions configures a KeystoreProvider.
type KeystoreOptions struct {
	// Passphrase unlocks matching accounts when the provider opens.
	Passphrase string
	// Prompt asks for a passphrase in RequestAccounts.
	Prompt PassphraseFunc
	// Keyring remembers passphrases of unlocked accounts when set.
	Keyring Keyring
}

// KeystoreProvider serves accounts from a go-ethereum keystore directory.
// An account is authorized once it is unlocked.
type KeystoreProvider struct {
	dir     string
	ks      *keystore.KeyStore
	prompt  PassphraseFunc
	keyring Keyring

	mu       sync.Mutex
	unlocked map[common.Address]bool
}

// OpenKeystore opens the keystore at dir and unlocks what it can without prompting:
// accounts matching opts.Passphrase, then accounts with a remembered passphrase.
func OpenKeystore(dir string, opts KeystoreOptions) *KeystoreProvider {
	p := &KeystoreProvider{
		dir:      dir,
		ks:       keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP),
		prompt:   opts.Prompt,
		keyring:  opts.Keyring,
		unlocked: make(map[common.Address]bool),
	}

	if opts.Passphrase != "" {
		p.unlockAll(opts.Passphrase)
	}
	if p.keyring != nil {
		p.unlockRemembered()
	}
	return p
}

// Name implements Provider.
func (p *KeystoreProvider) Name() string {
	return "keystore:" + p.dir
}

// ListAccounts returns unlocked accounts in keystore order.
func (p *KeystoreProvider) ListAccounts(_ context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []common.Address
	for _, acct := range p.ks.Accounts() {
		if p.unlocked[acct.Address] {
			out = append(out, acct.Address)
		}
	}
	metrics.Global.RecordWalletOp(nil)
	return out, nil
}

// RequestAccounts returns unlocked accounts, prompting for a passphrase when none are.
// An empty or wrong passphrase is a rejection. An empty keystore yields no accounts.
func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	unlocked, err := p.ListAccounts(ctx)
	if err != nil || len(unlocked) > 0 {
		return unlocked, err
	}
	if len(p.ks.Accounts()) == 0 {
		return nil, nil
	}

	if p.prompt == nil {
		err := depoterr.WithDetails(depoterr.ErrUserRejected, map[string]string{"reason": "no passphrase prompt available"})
		metrics.Global.RecordWalletOp(err)
		return nil, err
	}

	passphrase, err := p.prompt("Keystore passphrase: ")
	if err != nil {
		err = depoterr.WithCause(depoterr.ErrUserRejected, err)
		metrics.Global.RecordWalletOp(err)
		return nil, err
	}
	if passphrase == "" {
		metrics.Global.RecordWalletOp(depoterr.ErrUserRejected)
		return nil, depoterr.ErrUserRejected
	}

	if p.unlockAll(passphrase) == 0 {
		err := depoterr.WithDetails(depoterr.ErrUserRejected, map[string]string{"reason": "wrong passphrase"})
		metrics.Global.RecordWalletOp(err)
		return nil, err
	}
	return p.ListAccounts(ctx)
}

// Transactor signs with the keystore. The account must be unlocked.
func (p *KeystoreProvider) Transactor(ctx context.Context, account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	p.mu.Lock()
	ok := p.unlocked[account]
	p.mu.Unlock()
	if !ok {
		return nil, depoterr.WithDetails(depoterr.ErrAccountUnknown, map[string]string{"account": account.Hex()})
	}

	opts, err := bind.NewKeyStoreTransactorWithChainID(p.ks, accounts.Account{Address: account}, chainID)
	if err != nil {
		return nil, depoterr.WithCause(depoterr.ErrAccountUnknown, err)
	}
	opts.Context = ctx
	return opts, nil
}

// Close locks every unlocked account.
func (p *KeystoreProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for addr := range p.unlocked {
		_ = p.ks.Lock(addr)
	}
	p.unlocked = make(map[common.Address]bool)
	return nil
}

// unlockAll tries passphrase on every locked account and returns how many it opened.
func (p *KeystoreProvider) unlockAll(passphrase string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	opened := 0
	for _, acct := range p.ks.Accounts() {
		if p.unlocked[acct.Address] {
			continue
		}
		if err := p.ks.Unlock(acct, passphrase); err != nil {
			continue
		}
		p.unlocked[acct.Address] = true
		opened++

		if p.keyring != nil {
			rememberPassphrase(p.keyring, acct.Address, passphrase)
		}
	}
	return opened
}

// unlockRemembered unlocks accounts whose passphrase is in the keyring.
// Stale entries are removed.
func (p *KeystoreProvider) unlockRemembered() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, acct := range p.ks.Accounts() {
		if p.unlocked[acct.Address] {
			continue
		}
		passphrase, ok := recallPassphrase(p.keyring, acct.Address)
		if !ok {
			continue
		}
		if err := p.ks.Unlock(acct, passphrase); err != nil {
			forgetPassphrase(p.keyring, acct.Address)
			continue
		}
		p.unlocked[acct.Address] = true
	}
}
