// Package wallet owns the session with the user's wallet: account identity,
// chain identity, balance and the network-switch workflow. Everything else in
// the system derives its remote handles from the session it publishes.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/neurapixel/go-pixelboard/config"
	"github.com/neurapixel/go-pixelboard/log"
	"github.com/neurapixel/go-pixelboard/utils"
)

const balanceFracDigits = 4

// Session is a snapshot of the wallet connection. Signer is non-nil exactly
// when Connected is true; CorrectNetwork is derived from ChainID alone.
type Session struct {
	Account        common.Address
	HasAccount     bool
	ChainID        uint64
	Connected      bool
	CorrectNetwork bool
	Balance        string
	Client         ReadBackend
	Signer         *bind.TransactOpts
}

// Manager drives the session: explicit connect/disconnect/switch plus the
// reactive account and chain change feeds from the provider. It never retries
// a failed provider call; callers decide whether to re-prompt.
type Manager struct {
	mu        sync.RWMutex
	provider  Provider
	chain     config.ChainConfig
	session   Session
	listeners []func(Session)

	accountsSub event.Subscription
	chainSub    event.Subscription
	quit        chan struct{}

	logger *log.Logger
}

// NewManager builds a session manager targeting chain. A nil provider models
// the no-wallet-installed case; Connect and SwitchNetwork then fail with
// ErrProviderMissing.
func NewManager(provider Provider, chain config.ChainConfig) *Manager {
	return &Manager{
		provider: provider,
		chain:    chain,
		session:  Session{Balance: "0"},
		logger:   log.NewLogger("wallet"),
	}
}

// Session returns a copy of the current session.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// OnChange registers a listener invoked with a session snapshot after every
// session mutation. Listeners are called outside the manager's lock.
func (m *Manager) OnChange(fn func(Session)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Start silently restores a pre-authorized session and begins reacting to
// provider change feeds. It never prompts.
func (m *Manager) Start(ctx context.Context) error {
	if m.provider == nil {
		m.logger.Debug().Msg("No wallet provider, session stays empty")
		return nil
	}

	accounts, err := m.provider.Accounts(ctx)
	if err != nil {
		m.logger.Debug().Err(err).Msg("Silent account check failed")
	} else if len(accounts) > 0 {
		if err := m.populate(ctx, accounts[0]); err != nil {
			m.logger.Debug().Err(err).Msg("Failed to restore authorized session")
		}
	}

	accountsCh := make(chan []common.Address, 1)
	chainCh := make(chan uint64, 1)
	m.mu.Lock()
	m.accountsSub = m.provider.WatchAccountsChanged(accountsCh)
	m.chainSub = m.provider.WatchChainChanged(chainCh)
	m.quit = make(chan struct{})
	quit := m.quit
	m.mu.Unlock()

	go m.watchChanges(accountsCh, chainCh, quit)
	return nil
}

// Stop tears down the change subscriptions. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.accountsSub != nil {
		m.accountsSub.Unsubscribe()
		m.accountsSub = nil
	}
	if m.chainSub != nil {
		m.chainSub.Unsubscribe()
		m.chainSub = nil
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	m.mu.Unlock()
}

// Connect requests account authorization and populates the full session.
func (m *Manager) Connect(ctx context.Context) error {
	if m.provider == nil {
		return ErrProviderMissing
	}

	accounts, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		if errors.Is(err, ErrUserRejected) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	if len(accounts) == 0 {
		return fmt.Errorf("%w: wallet returned no accounts", ErrUnknown)
	}
	return m.populate(ctx, accounts[0])
}

// Disconnect resets the session locally. It does not revoke any wallet
// authorization.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.session = Session{Balance: "0"}
	m.mu.Unlock()
	m.logger.Info().Msg("Disconnected")
	m.notify()
}

// SwitchNetwork asks the wallet to activate the target chain, adding its
// definition first when the wallet does not recognize it.
func (m *Manager) SwitchNetwork(ctx context.Context) error {
	if m.provider == nil {
		return ErrProviderMissing
	}

	err := m.provider.SwitchChain(ctx, m.chain.ChainIDHex)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUnrecognizedChain) {
		return fmt.Errorf("%w: %v", ErrNetworkSwitchFailed, err)
	}

	m.logger.Info().Str("chain", m.chain.Name).Msg("Chain unknown to wallet, adding definition")
	if err := m.provider.AddChain(ctx, m.chain); err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkSwitchFailed, err)
	}
	if err := m.provider.SwitchChain(ctx, m.chain.ChainIDHex); err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkSwitchFailed, err)
	}
	return nil
}

// populate rebuilds the whole session around account.
func (m *Manager) populate(ctx context.Context, account common.Address) error {
	chainID, err := m.provider.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	signer, err := m.provider.Signer(account)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknown, err)
	}

	balance := m.balanceOf(ctx, account)

	m.mu.Lock()
	m.session = Session{
		Account:        account,
		HasAccount:     true,
		ChainID:        chainID,
		Connected:      true,
		CorrectNetwork: chainID == m.chain.ChainID,
		Balance:        balance,
		Client:         m.provider.ReadBackend(),
		Signer:         signer,
	}
	m.mu.Unlock()
	m.logger.Info().
		Str("account", account.Hex()).
		Uint64("chainId", chainID).
		Msg("Session established")
	m.notify()
	return nil
}

func (m *Manager) watchChanges(
	accountsCh <-chan []common.Address,
	chainCh <-chan uint64,
	quit <-chan struct{},
) {
	for {
		select {
		case accounts := <-accountsCh:
			m.handleAccountsChanged(accounts)
		case chainID := <-chainCh:
			m.handleChainChanged(chainID)
		case <-quit:
			return
		}
	}
}

func (m *Manager) handleAccountsChanged(accounts []common.Address) {
	if len(accounts) == 0 {
		m.Disconnect()
		return
	}
	account := accounts[0]
	signer, err := m.provider.Signer(account)
	if err != nil {
		m.logger.Error().Err(err).Str("account", account.Hex()).Msg("Failed to derive signer")
		m.Disconnect()
		return
	}

	balance := m.balanceOf(context.Background(), account)

	m.mu.Lock()
	m.session.Account = account
	m.session.HasAccount = true
	m.session.Connected = true
	m.session.Signer = signer
	m.session.Balance = balance
	m.session.Client = m.provider.ReadBackend()
	m.mu.Unlock()
	m.logger.Info().Str("account", account.Hex()).Msg("Active account changed")
	m.notify()
}

func (m *Manager) handleChainChanged(chainID uint64) {
	m.mu.RLock()
	hasAccount := m.session.HasAccount
	account := m.session.Account
	m.mu.RUnlock()

	var balance string
	var signer *bind.TransactOpts
	if hasAccount {
		balance = m.balanceOf(context.Background(), account)
		var err error
		signer, err = m.provider.Signer(account)
		if err != nil {
			m.logger.Error().Err(err).Msg("Failed to rebuild signer after chain change")
		}
	}

	m.mu.Lock()
	m.session.ChainID = chainID
	m.session.CorrectNetwork = chainID == m.chain.ChainID
	m.session.Client = m.provider.ReadBackend()
	if hasAccount {
		if signer != nil {
			m.session.Signer = signer
		}
		m.session.Balance = balance
	}
	correct := m.session.CorrectNetwork
	m.mu.Unlock()
	m.logger.Info().Uint64("chainId", chainID).Bool("correctNetwork", correct).Msg("Chain changed")
	m.notify()
}

// balanceOf formats the native balance; failures fall back to "0" so a
// balance read never blocks session establishment.
func (m *Manager) balanceOf(ctx context.Context, account common.Address) string {
	balance, err := m.provider.BalanceAt(ctx, account)
	if err != nil {
		m.logger.Debug().Err(err).Msg("Balance query failed")
		return "0"
	}
	return utils.FormatUnits(balance, m.chain.NativeCurrency.Decimals, balanceFracDigits)
}

func (m *Manager) notify() {
	m.mu.RLock()
	session := m.session
	listeners := make([]func(Session), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(session)
	}
}
