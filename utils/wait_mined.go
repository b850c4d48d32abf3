package utils

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
)

const receiptQueryInterval = time.Second

// ErrTxDropped is returned when the node stops knowing about a submitted
// transaction before a receipt appears.
var ErrTxDropped = errors.New("transaction dropped from the pending pool")

// ReceiptClient is the subset of ethclient.Client needed to await a
// transaction receipt.
type ReceiptClient interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// WaitMined blocks until tx is mined, then waits a further blockDelay blocks
// before returning the receipt. The receipt's status is not interpreted here.
func WaitMined(
	ctx context.Context,
	client ReceiptClient,
	tx *types.Transaction,
	blockDelay uint64,
) (*types.Receipt, error) {
	return WaitMinedWithTxHash(ctx, client, tx.Hash(), blockDelay)
}

// WaitMinedWithTxHash is WaitMined keyed by hash, for transactions submitted
// elsewhere.
func WaitMinedWithTxHash(
	ctx context.Context,
	client ReceiptClient,
	txHash common.Hash,
	blockDelay uint64,
) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptQueryInterval)
	defer ticker.Stop()

	var receipt *types.Receipt
	for receipt == nil {
		r, err := client.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			receipt = r
		case errors.Is(err, ethereum.NotFound):
			if _, pending, txErr := client.TransactionByHash(ctx, txHash); txErr != nil && !pending {
				if errors.Is(txErr, ethereum.NotFound) {
					return nil, ErrTxDropped
				}
			}
		default:
			log.Debug().Err(err).Str("tx", txHash.Hex()).Msg("Receipt query failed, retrying")
		}
		if receipt != nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	if blockDelay == 0 {
		return receipt, nil
	}
	confirmedAt := new(big.Int).Add(receipt.BlockNumber, new(big.Int).SetUint64(blockDelay))
	for {
		header, err := client.HeaderByNumber(ctx, nil)
		if err == nil && header.Number.Cmp(confirmedAt) >= 0 {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
