package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"

	"github.com/neurapixel/go-pixelboard/config"
	"github.com/neurapixel/go-pixelboard/log"
	"github.com/neurapixel/go-pixelboard/utils"
)

// KeystoreProvider is a headless Provider backed by a local keystore file and
// direct RPC connections. It owns its key, so authorization requests are
// approved without prompting; the switch/add workflow behaves like a wallet's:
// switching to a chain it has no definition for fails with
// ErrUnrecognizedChain until AddChain registers one.
type KeystoreProvider struct {
	mu          sync.Mutex
	key         *ecdsa.PrivateKey
	address     common.Address
	authorized  bool
	chains      map[uint64]config.ChainConfig
	activeChain uint64
	client      *ethclient.Client

	accountsFeed event.Feed
	chainFeed    event.Feed
	scope        event.SubscriptionScope

	logger *log.Logger
}

var _ Provider = (*KeystoreProvider)(nil)

// NewKeystoreProvider decrypts the keystore at path and dials the chain's
// first RPC endpoint.
func NewKeystoreProvider(path string, password string, chain config.ChainConfig) (*KeystoreProvider, error) {
	key, err := utils.GetPrivateKeyFromKeystore(path, password)
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore %s: %w", path, err)
	}
	client, err := ethclient.Dial(chain.RPCURLs[0])
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", chain.RPCURLs[0], err)
	}
	return &KeystoreProvider{
		key:         key,
		address:     crypto.PubkeyToAddress(key.PublicKey),
		chains:      map[uint64]config.ChainConfig{chain.ChainID: chain},
		activeChain: chain.ChainID,
		client:      client,
		logger:      log.NewLogger("wallet"),
	}, nil
}

// RequestAccounts authorizes the keystore account. There is no interactive
// prompt to decline.
func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	p.authorized = true
	accounts := []common.Address{p.address}
	p.mu.Unlock()
	p.accountsFeed.Send(accounts)
	return accounts, nil
}

// Accounts returns the authorized account without prompting.
func (p *KeystoreProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.authorized {
		return nil, nil
	}
	return []common.Address{p.address}, nil
}

// ChainID returns the active chain.
func (p *KeystoreProvider) ChainID(ctx context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeChain, nil
}

// SwitchChain activates a known chain, redialing its RPC endpoint.
func (p *KeystoreProvider) SwitchChain(ctx context.Context, chainIDHex string) error {
	chainID, err := parseChainIDHex(chainIDHex)
	if err != nil {
		return err
	}

	p.mu.Lock()
	chain, known := p.chains[chainID]
	active := p.activeChain
	p.mu.Unlock()
	if !known {
		return fmt.Errorf("%w: %s", ErrUnrecognizedChain, chainIDHex)
	}
	if active == chainID {
		return nil
	}

	client, err := ethclient.Dial(chain.RPCURLs[0])
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", chain.RPCURLs[0], err)
	}

	p.mu.Lock()
	if p.client != nil {
		p.client.Close()
	}
	p.client = client
	p.activeChain = chainID
	p.mu.Unlock()
	p.logger.Info().Str("chain", chain.Name).Msg("Switched active chain")
	p.chainFeed.Send(chainID)
	return nil
}

// AddChain registers a chain definition so a later SwitchChain can use it.
func (p *KeystoreProvider) AddChain(ctx context.Context, chain config.ChainConfig) error {
	if chain.ChainID == 0 || len(chain.RPCURLs) == 0 {
		return fmt.Errorf("incomplete chain definition for %q", chain.Name)
	}
	p.mu.Lock()
	p.chains[chain.ChainID] = chain
	p.mu.Unlock()
	return nil
}

// BalanceAt returns the latest native balance.
func (p *KeystoreProvider) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return nil, ErrProviderMissing
	}
	return client.BalanceAt(ctx, account, nil)
}

// ReadBackend returns the active RPC client.
func (p *KeystoreProvider) ReadBackend() ReadBackend {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	return p.client
}

// Signer returns EIP-155 transact opts for the keystore account.
func (p *KeystoreProvider) Signer(account common.Address) (*bind.TransactOpts, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if account != p.address {
		return nil, fmt.Errorf("account %s is not in the keystore", account.Hex())
	}
	chainID := new(big.Int).SetUint64(p.activeChain)
	return bind.NewKeyedTransactorWithChainID(p.key, chainID)
}

// WatchAccountsChanged subscribes sink to authorization changes.
func (p *KeystoreProvider) WatchAccountsChanged(sink chan<- []common.Address) event.Subscription {
	return p.scope.Track(p.accountsFeed.Subscribe(sink))
}

// WatchChainChanged subscribes sink to active-chain changes.
func (p *KeystoreProvider) WatchChainChanged(sink chan<- uint64) event.Subscription {
	return p.scope.Track(p.chainFeed.Subscribe(sink))
}

// Deauthorize drops the account authorization, firing an empty accounts
// change the way a wallet lock does.
func (p *KeystoreProvider) Deauthorize() {
	p.mu.Lock()
	p.authorized = false
	p.mu.Unlock()
	p.accountsFeed.Send([]common.Address(nil))
}

// Close tears down subscriptions and the RPC connection.
func (p *KeystoreProvider) Close() {
	p.scope.Close()
	p.mu.Lock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
	p.mu.Unlock()
}

func parseChainIDHex(chainIDHex string) (uint64, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(chainIDHex), "0x")
	chainID, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed chain id %q: %w", chainIDHex, err)
	}
	return chainID, nil
}
