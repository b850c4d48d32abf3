package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/neurapixel/go-pixelboard/config"
)

// ReadBackend is the read-capable remote handle a provider exposes: enough of
// an RPC client to call contracts, watch logs and await receipts.
// *ethclient.Client satisfies it.
type ReadBackend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error)
}

// Provider is the external wallet collaborator. It is the typed equivalent of
// the request/notify surface an injected browser wallet exposes; methods that
// prompt the user block until the user responds or the wallet errors.
type Provider interface {
	// RequestAccounts asks the wallet to authorize accounts, prompting if
	// needed (eth_requestAccounts). Returns ErrUserRejected when declined.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// Accounts returns the already-authorized accounts without prompting
	// (eth_accounts). An empty slice means nothing is authorized.
	Accounts(ctx context.Context) ([]common.Address, error)

	// ChainID returns the wallet's active chain (eth_chainId).
	ChainID(ctx context.Context) (uint64, error)

	// SwitchChain asks the wallet to activate the chain with the given hex id
	// (wallet_switchEthereumChain). Returns ErrUnrecognizedChain when the
	// wallet has no definition for it.
	SwitchChain(ctx context.Context, chainIDHex string) error

	// AddChain registers a chain definition with the wallet
	// (wallet_addEthereumChain).
	AddChain(ctx context.Context, chain config.ChainConfig) error

	// BalanceAt returns the native balance of account in base units.
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)

	// ReadBackend returns the read handle for the active chain, or nil when
	// no chain connection exists.
	ReadBackend() ReadBackend

	// Signer returns transact opts able to sign for the authorized account
	// on the active chain.
	Signer(account common.Address) (*bind.TransactOpts, error)

	// WatchAccountsChanged subscribes sink to authorized-account changes. An
	// empty slice signals deauthorization.
	WatchAccountsChanged(sink chan<- []common.Address) event.Subscription

	// WatchChainChanged subscribes sink to active-chain changes.
	WatchChainChanged(sink chan<- uint64) event.Subscription
}
