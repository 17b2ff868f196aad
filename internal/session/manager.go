package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/depot/internal/wallet"
	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// Manager owns one wallet session.
type Manager struct {
	detect Detector
	notify Notifier
	logger Logger

	mu        sync.Mutex
	provider  wallet.Provider
	state     State
	account   *common.Address
	listeners []ConnectedFunc

	// settled is set once every listener has succeeded for account.
	settled bool
}

// NewManager creates a session in StateNoProvider.
// A nil notifier or logger discards output.
func NewManager(detect Detector, notify Notifier, logger Logger) *Manager {
	if notify == nil {
		notify = func(string) {}
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Manager{
		detect: detect,
		notify: notify,
		logger: logger,
		state:  StateNoProvider,
	}
}

// OnConnected registers fn to run after each transition into StateConnected
// and after each account change. When a listener fails, the next account sync
// or connect for the same account runs the listeners again.
func (m *Manager) OnConnected(fn ConnectedFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Snapshot returns the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:           m.state,
		ProviderPresent: m.provider != nil,
	}
	if m.provider != nil {
		snap.Provider = m.provider.Name()
	}
	if m.account != nil {
		acct := *m.account
		snap.Account = &acct
	}
	return snap
}

// Provider returns the stored provider, or nil.
func (m *Manager) Provider() wallet.Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.provider
}

// DetectProvider looks for a wallet provider and stores it.
// It does nothing once a provider is stored. Absence is not an error.
func (m *Manager) DetectProvider(ctx context.Context) error {
	m.mu.Lock()
	if m.provider != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if m.detect == nil {
		m.logger.Info("no wallet provider detected")
		return nil
	}

	p, err := m.detect(ctx)
	if err != nil {
		m.logger.Error("detecting wallet provider: %v", err)
		return fmt.Errorf("detecting wallet provider: %w", err)
	}
	if p == nil {
		m.logger.Info("no wallet provider detected")
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.provider != nil {
		// Lost a race with a concurrent detection.
		_ = p.Close()
		return nil
	}
	m.provider = p
	if m.state == StateNoProvider {
		m.state = StateProviderDetected
	}
	m.logger.Info("wallet provider detected: %s", p.Name())
	return nil
}

// SyncAccounts adopts the first already-authorized account without prompting.
// It is a no-op without a provider.
func (m *Manager) SyncAccounts(ctx context.Context) error {
	p := m.Provider()
	if p == nil {
		return nil
	}

	accounts, err := p.ListAccounts(ctx)
	if err != nil {
		m.logger.Error("listing accounts: %v", err)
		return err
	}
	return m.handleAccounts(ctx, p, accounts)
}

// Connect requests account authorization from the provider.
// Without a provider the user is notified once and ErrWalletRequired is returned
// with the session unchanged. A rejection returns ErrUserRejected, also leaving
// the session unchanged.
func (m *Manager) Connect(ctx context.Context) error {
	p := m.Provider()
	if p == nil {
		m.notify(WalletRequiredMessage)
		m.logger.Info("connect attempted without a wallet provider")
		return depoterr.ErrWalletRequired
	}

	accounts, err := p.RequestAccounts(ctx)
	if err != nil {
		if depoterr.Is(err, depoterr.ErrUserRejected) {
			m.logger.Info("connection rejected by wallet: %v", err)
		} else {
			m.logger.Error("requesting accounts: %v", err)
		}
		return err
	}
	return m.handleAccounts(ctx, p, accounts)
}

// handleAccounts applies an account list. Only the first account is used.
// An empty list never leaves StateConnected.
func (m *Manager) handleAccounts(ctx context.Context, p wallet.Provider, accounts []common.Address) error {
	m.mu.Lock()
	if len(accounts) == 0 {
		if m.state != StateConnected {
			m.state = StateDisconnected
		}
		m.mu.Unlock()
		m.logger.Info("no account found")
		return nil
	}

	first := accounts[0]
	same := m.state == StateConnected && m.account != nil && *m.account == first
	if same && m.settled {
		m.mu.Unlock()
		return nil
	}

	changed := m.account != nil && *m.account != first
	m.account = &first
	m.state = StateConnected
	m.settled = false
	snap := m.snapshotLocked()
	listeners := append([]ConnectedFunc(nil), m.listeners...)
	m.mu.Unlock()

	switch {
	case same:
		m.logger.Info("retrying connected listeners for %s", first.Hex())
	case changed:
		m.logger.Info("account changed: %s", first.Hex())
	default:
		m.logger.Info("account connected: %s", first.Hex())
	}

	for _, fn := range listeners {
		if err := fn(ctx, snap, p); err != nil {
			m.logger.Error("connected listener: %v", err)
			return err
		}
	}

	m.mu.Lock()
	// A concurrent switch to another account owns the flag now.
	if m.account != nil && *m.account == first {
		m.settled = true
	}
	m.mu.Unlock()
	return nil
}

// Close releases the provider.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.provider == nil {
		return nil
	}
	return m.provider.Close()
}
