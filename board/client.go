// Package board is the ledger state client: it owns every interaction with
// the pixel canvas contract and keeps a session-scoped cache of remote state.
// Displayed colors always originate from a chain read or a decoded chain
// event; nothing is written into the cache in anticipation of an unconfirmed
// transaction.
package board

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/neurapixel/go-pixelboard/config"
	"github.com/neurapixel/go-pixelboard/contracts/pixelcanvas"
	"github.com/neurapixel/go-pixelboard/log"
	"github.com/neurapixel/go-pixelboard/notifier"
	"github.com/neurapixel/go-pixelboard/utils"
	"github.com/neurapixel/go-pixelboard/wallet"
)

// Reader is the query surface of the canvas contract.
type Reader interface {
	GetPixel(opts *bind.CallOpts, x *big.Int, y *big.Int) (*big.Int, error)
	GetPixelBatch(opts *bind.CallOpts, startX, startY, endX, endY *big.Int) ([]*big.Int, error)
	GetPixelPrice(opts *bind.CallOpts) (*big.Int, error)
	TotalPaints(opts *bind.CallOpts) (*big.Int, error)
	CooldownTime(opts *bind.CallOpts) (*big.Int, error)
	Paused(opts *bind.CallOpts) (bool, error)
	CanUserPaint(opts *bind.CallOpts, user common.Address) (pixelcanvas.CooldownStatus, error)
	GetBoardSize(opts *bind.CallOpts) (*big.Int, *big.Int, error)
	WatchPixelPainted(opts *bind.WatchOpts, sink chan<- *pixelcanvas.PixelPainted, user []common.Address) (event.Subscription, error)
}

// Writer is the value-bearing mutation surface of the canvas contract.
type Writer interface {
	PaintPixel(opts *bind.TransactOpts, x *big.Int, y *big.Int, color *big.Int) (*types.Transaction, error)
}

var (
	_ Reader = (*pixelcanvas.PixelCanvas)(nil)
	_ Writer = (*pixelcanvas.PixelCanvas)(nil)
)

// Stats is the contract-wide aggregate, replaced whole on each reload.
type Stats struct {
	PixelPrice      *big.Int
	TotalPaints     uint64
	CooldownSeconds uint64
	Paused          bool
}

// UserCooldown is the chain's verdict on whether the user may paint.
type UserCooldown struct {
	CanPaint         bool
	SecondsRemaining uint64
}

// PendingPaint is the ephemeral record of an in-flight paint transaction. It
// exists only between submission and the terminal outcome and is never merged
// into the board cache.
type PendingPaint struct {
	Coord  Coord
	Color  uint32
	TxHash common.Hash
}

type confirmFunc func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

// Client reconciles local display state against the canvas contract. Its
// read and write handles are derived from the wallet session and rebuilt,
// never mutated, whenever the session changes.
type Client struct {
	mu              sync.RWMutex
	chain           config.ChainConfig
	contractAddress common.Address

	session wallet.Session
	reader  Reader
	writer  Writer
	confirm confirmFunc

	pixels    *State
	stats     Stats
	cooldown  UserCooldown
	countdown *Countdown
	pending   *PendingPaint

	loadingPixels bool
	loadingStats  bool
	painting      bool
	lastTxHash    common.Hash
	lastError     string

	watchQuit chan struct{}

	notices *notifier.Queue
	logger  *log.Logger
}

// NewClient builds a client for the canvas at contractAddress. Stats are
// seeded with the deployment defaults until the first successful reload.
func NewClient(contractAddress common.Address, chain config.ChainConfig, notices *notifier.Queue) *Client {
	return &Client{
		chain:           chain,
		contractAddress: contractAddress,
		pixels:          NewState(),
		stats: Stats{
			PixelPrice:      new(big.Int).Set(config.DefaultPixelPrice),
			CooldownSeconds: config.DefaultCooldownSeconds,
		},
		cooldown:  UserCooldown{CanPaint: true},
		countdown: NewCountdown(),
		notices:   notices,
		logger:    log.NewLogger("board"),
	}
}

// Bind registers the client for session changes and applies the current one.
func (c *Client) Bind(manager *wallet.Manager) {
	manager.OnChange(c.Rebuild)
	c.Rebuild(manager.Session())
}

// Rebuild derives fresh contract handles from a session snapshot. The read
// handle needs a read backend on the correct network; the write handle
// additionally needs a signer. The event watch is torn down and re-established
// so it never operates on a stale handle.
func (c *Client) Rebuild(session wallet.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = session
	c.teardownWatchLocked()
	c.reader = nil
	c.writer = nil
	c.confirm = nil

	if session.Client == nil || !session.CorrectNetwork {
		c.logger.Debug().Msg("No usable connection, contract handles cleared")
		return
	}

	contract, err := pixelcanvas.NewPixelCanvas(c.contractAddress, session.Client)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to bind canvas contract")
		return
	}
	c.reader = contract
	backend := session.Client
	c.confirm = func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		return utils.WaitMined(ctx, backend, tx, 0)
	}
	if session.Signer != nil {
		c.writer = contract
	}
	c.startWatchLocked(contract)
	c.logger.Debug().Bool("writable", c.writer != nil).Msg("Contract handles rebuilt")
}

// Close stops the watch loop and the cooldown ticker.
func (c *Client) Close() {
	c.mu.Lock()
	c.teardownWatchLocked()
	c.mu.Unlock()
	c.countdown.Stop()
}

// LoadAllPixels reconciles the full board in 16x16 batched range reads. A
// failed batch is skipped, not retried; partial results are accepted and a
// partial-load warning is published. The rebuilt map replaces the cache
// atomically.
func (c *Client) LoadAllPixels(ctx context.Context) error {
	c.mu.Lock()
	reader := c.reader
	if reader == nil {
		c.mu.Unlock()
		c.logger.Debug().Msg("No read handle, skipping board load")
		return nil
	}
	c.loadingPixels = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loadingPixels = false
		c.mu.Unlock()
	}()

	fresh := make(map[Coord]uint32)
	failedBatches := 0
	totalBatches := 0

	for startY := 0; startY < config.GridSize; startY += config.PixelBatchSize {
		for startX := 0; startX < config.GridSize; startX += config.PixelBatchSize {
			endX := min(startX+config.PixelBatchSize, config.GridSize)
			endY := min(startY+config.PixelBatchSize, config.GridSize)
			totalBatches++

			colors, err := reader.GetPixelBatch(
				&bind.CallOpts{Context: ctx},
				big.NewInt(int64(startX)), big.NewInt(int64(startY)),
				big.NewInt(int64(endX)), big.NewInt(int64(endY)),
			)
			if err != nil {
				c.logger.Error().Err(err).
					Int("startX", startX).Int("startY", startY).
					Msg("Batch read failed, skipping")
				failedBatches++
				continue
			}
			if len(colors) != (endX-startX)*(endY-startY) {
				c.logger.Error().Int("got", len(colors)).
					Int("want", (endX-startX)*(endY-startY)).
					Msg("Batch length mismatch, skipping")
				failedBatches++
				continue
			}

			// Flat sequence is row-major: y outer, x inner.
			index := 0
			for y := startY; y < endY; y++ {
				for x := startX; x < endX; x++ {
					color := colors[index].Uint64()
					if color != 0 {
						fresh[Coord{X: x, Y: y}] = uint32(color)
					}
					index++
				}
			}
		}
	}

	c.pixels.Replace(fresh)
	c.logger.Info().Int("painted", len(fresh)).Msg("Board loaded")
	if failedBatches > 0 && c.notices != nil {
		c.notices.Publish(notifier.LevelWarning,
			fmt.Sprintf("Partial board load: %d of %d batches failed", failedBatches, totalBatches), "")
	}
	return nil
}

// LoadSinglePixel re-reads one coordinate and upserts or deletes its cache
// entry. This is the reconciliation primitive after a confirmed paint.
func (c *Client) LoadSinglePixel(ctx context.Context, x int, y int) error {
	c.mu.RLock()
	reader := c.reader
	c.mu.RUnlock()
	if reader == nil {
		return nil
	}

	color, err := reader.GetPixel(&bind.CallOpts{Context: ctx}, big.NewInt(int64(x)), big.NewInt(int64(y)))
	if err != nil {
		c.logger.Error().Err(err).Int("x", x).Int("y", y).Msg("Pixel read failed")
		return err
	}
	c.pixels.Apply(Coord{X: x, Y: y}, uint32(color.Uint64()))
	return nil
}

// LoadStats reads price, paint count, cooldown duration and paused flag
// concurrently and replaces the aggregate only when all four succeed. Any
// failure keeps the stale stats whole.
func (c *Client) LoadStats(ctx context.Context) error {
	c.mu.Lock()
	reader := c.reader
	if reader == nil {
		c.mu.Unlock()
		return nil
	}
	c.loadingStats = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loadingStats = false
		c.mu.Unlock()
	}()

	opts := &bind.CallOpts{Context: ctx}
	var (
		price    *big.Int
		total    *big.Int
		cooldown *big.Int
		paused   bool
	)
	errs := make(chan error, 4)
	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		var err error
		if price, err = reader.GetPixelPrice(opts); err != nil {
			errs <- err
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if total, err = reader.TotalPaints(opts); err != nil {
			errs <- err
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if cooldown, err = reader.CooldownTime(opts); err != nil {
			errs <- err
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if paused, err = reader.Paused(opts); err != nil {
			errs <- err
		}
	}()
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		c.logger.Error().Err(err).Msg("Stats reload abandoned, keeping stale stats")
		return err
	}

	c.mu.Lock()
	c.stats = Stats{
		PixelPrice:      price,
		TotalPaints:     total.Uint64(),
		CooldownSeconds: cooldown.Uint64(),
		Paused:          paused,
	}
	c.mu.Unlock()
	c.logger.Debug().
		Str("price", utils.FormatEther(price)).
		Uint64("totalPaints", total.Uint64()).
		Bool("paused", paused).
		Msg("Stats loaded")
	return nil
}

// BoardSize reads the canvas dimensions the contract was deployed with. A
// mismatch against the compiled-in grid size means the client targets the
// wrong deployment.
func (c *Client) BoardSize(ctx context.Context) (int, int, error) {
	c.mu.RLock()
	reader := c.reader
	c.mu.RUnlock()
	if reader == nil {
		return 0, 0, ErrContractNotInitialized
	}

	width, height, err := reader.GetBoardSize(&bind.CallOpts{Context: ctx})
	if err != nil {
		return 0, 0, err
	}
	return int(width.Int64()), int(height.Int64()), nil
}

// CheckUserCooldown queries the chain's cooldown verdict for the session
// account. Without an account it resets to the optimistic default (may
// paint, zero remaining): painting is gated by the signer preconditions
// anyway, so the empty-user state stays clean.
func (c *Client) CheckUserCooldown(ctx context.Context) error {
	c.mu.RLock()
	reader := c.reader
	session := c.session
	c.mu.RUnlock()

	if reader == nil || !session.HasAccount {
		c.setCooldown(UserCooldown{CanPaint: true})
		return nil
	}

	status, err := reader.CanUserPaint(&bind.CallOpts{Context: ctx}, session.Account)
	if err != nil {
		c.logger.Error().Err(err).Msg("Cooldown check failed")
		c.setCooldown(UserCooldown{CanPaint: true})
		return err
	}
	c.setCooldown(UserCooldown{
		CanPaint:         status.CanPaint,
		SecondsRemaining: status.TimeRemaining.Uint64(),
	})
	return nil
}

func (c *Client) setCooldown(cooldown UserCooldown) {
	c.mu.Lock()
	c.cooldown = cooldown
	c.mu.Unlock()
	c.countdown.Reseed(cooldown.SecondsRemaining)
}

// PaintPixel submits a paint transaction and awaits its confirmation. All
// preconditions fail synchronously before any state flag changes or network
// call. After a successful confirmation the painted coordinate, the stats and
// the user cooldown are re-read in that order, each best-effort.
func (c *Client) PaintPixel(ctx context.Context, x int, y int, color int) (common.Hash, error) {
	c.mu.Lock()
	writer := c.writer
	session := c.session
	price := new(big.Int).Set(c.stats.PixelPrice)
	confirm := c.confirm

	switch {
	case writer == nil:
		c.mu.Unlock()
		return common.Hash{}, ErrContractNotInitialized
	case session.Signer == nil:
		c.mu.Unlock()
		return common.Hash{}, ErrNotConnected
	case !session.CorrectNetwork:
		c.mu.Unlock()
		return common.Hash{}, ErrWrongNetwork
	case !session.HasAccount:
		c.mu.Unlock()
		return common.Hash{}, ErrNoAccount
	case x < 0 || x >= config.GridSize || y < 0 || y >= config.GridSize:
		c.mu.Unlock()
		return common.Hash{}, ErrOutOfBounds
	case color < 0 || color > config.MaxColor:
		c.mu.Unlock()
		return common.Hash{}, ErrInvalidColor
	}

	c.painting = true
	c.lastError = ""
	c.lastTxHash = common.Hash{}
	c.pending = nil
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.painting = false
		c.pending = nil
		c.mu.Unlock()
	}()

	c.logger.Info().
		Int("x", x).Int("y", y).
		Str("color", FormatHexColor(uint32(color))).
		Str("price", utils.FormatEther(price)).
		Msg("Painting pixel")

	// Copy the signer opts so concurrent paints never share mutable fields.
	opts := *session.Signer
	opts.Context = ctx
	opts.Value = price

	tx, err := writer.PaintPixel(&opts,
		big.NewInt(int64(x)), big.NewInt(int64(y)), big.NewInt(int64(color)))
	if err != nil {
		return common.Hash{}, c.failPaint(err)
	}

	txHash := tx.Hash()
	c.mu.Lock()
	c.lastTxHash = txHash
	c.pending = &PendingPaint{Coord: Coord{X: x, Y: y}, Color: uint32(color), TxHash: txHash}
	c.mu.Unlock()
	c.logger.Info().Str("tx", txHash.Hex()).Msg("Transaction submitted, awaiting confirmation")
	if c.notices != nil {
		c.notices.Publish(notifier.LevelInfo, "Transaction submitted", txHash.Hex())
	}

	// The board must not change between submission and confirmation.
	receipt, err := confirm(ctx, tx)
	if err != nil {
		return txHash, c.failPaint(err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return txHash, c.failPaint(ErrTransactionReverted)
	}
	c.logger.Info().
		Str("tx", txHash.Hex()).
		Uint64("block", receipt.BlockNumber.Uint64()).
		Msg("Transaction confirmed")

	// Best-effort reconciliation; failures here never undo the paint.
	if err := c.LoadSinglePixel(ctx, x, y); err != nil {
		c.logger.Error().Err(err).Msg("Post-paint pixel reload failed")
	}
	if err := c.LoadStats(ctx); err != nil {
		c.logger.Error().Err(err).Msg("Post-paint stats reload failed")
	}
	if err := c.CheckUserCooldown(ctx); err != nil {
		c.logger.Error().Err(err).Msg("Post-paint cooldown check failed")
	}

	if c.notices != nil {
		c.notices.Publish(notifier.LevelSuccess,
			fmt.Sprintf("Pixel (%d,%d) painted %s", x, y, FormatHexColor(uint32(color))), txHash.Hex())
	}
	return txHash, nil
}

func (c *Client) failPaint(err error) error {
	normalized := normalizePaintError(err)
	c.mu.Lock()
	c.lastError = normalized.Error()
	c.mu.Unlock()
	c.logger.Error().Err(err).Msg("Paint transaction failed")
	if c.notices != nil {
		c.notices.Publish(notifier.LevelError, normalized.Error(), "")
	}
	return normalized
}

// StartCooldownPoll re-checks the user cooldown at the given interval until
// ctx is canceled, so the countdown never drifts far from the chain.
func (c *Client) StartCooldownPoll(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.CheckUserCooldown(ctx); err != nil {
					c.logger.Debug().Err(err).Msg("Cooldown poll failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Pixels returns a copy of the board cache.
func (c *Client) Pixels() map[Coord]uint32 {
	return c.pixels.Snapshot()
}

// PixelColor returns the confirmed color at (x, y); zero means unpainted.
func (c *Client) PixelColor(x int, y int) uint32 {
	color, _ := c.pixels.Color(Coord{X: x, Y: y})
	return color
}

// Stats returns a copy of the aggregate stats.
func (c *Client) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := c.stats
	stats.PixelPrice = new(big.Int).Set(c.stats.PixelPrice)
	return stats
}

// Cooldown returns the last remotely observed cooldown verdict.
func (c *Client) Cooldown() UserCooldown {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cooldown
}

// CooldownRemaining returns the locally ticking display countdown.
func (c *Client) CooldownRemaining() uint64 {
	return c.countdown.Remaining()
}

// Pending returns the in-flight paint intent, or nil.
func (c *Client) Pending() *PendingPaint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pending == nil {
		return nil
	}
	pending := *c.pending
	return &pending
}

// IsPainting reports whether a paint attempt is in flight.
func (c *Client) IsPainting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.painting
}

// IsLoadingPixels reports whether a full board load is in flight.
func (c *Client) IsLoadingPixels() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadingPixels
}

// IsLoadingStats reports whether a stats reload is in flight.
func (c *Client) IsLoadingStats() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadingStats
}

// LastTxHash returns the most recent submitted transaction hash.
func (c *Client) LastTxHash() common.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastTxHash
}

// LastError returns the normalized message of the most recent paint failure.
func (c *Client) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
