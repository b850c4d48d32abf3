package board

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurapixel/go-pixelboard/config"
	"github.com/neurapixel/go-pixelboard/contracts/pixelcanvas"
	"github.com/neurapixel/go-pixelboard/notifier"
	"github.com/neurapixel/go-pixelboard/wallet"
)

var testAccount = common.HexToAddress("0x6a6d2a97da1c453a4e099e8054865a0a59728863")

type fakeReader struct {
	mu           sync.Mutex
	pixels       map[Coord]int64
	failBatches  map[Coord]bool
	price        *big.Int
	totalPaints  int64
	cooldownTime int64
	paused       bool
	pausedErr    error
	priceErr     error
	canPaint     pixelcanvas.CooldownStatus
	canPaintErr  error

	getPixelCalls int
	canPaintUser  common.Address
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		pixels:       make(map[Coord]int64),
		failBatches:  make(map[Coord]bool),
		price:        big.NewInt(2_000_000_000_000_000),
		totalPaints:  42,
		cooldownTime: 5,
		canPaint:     pixelcanvas.CooldownStatus{CanPaint: true, TimeRemaining: big.NewInt(0)},
	}
}

func (r *fakeReader) GetPixel(opts *bind.CallOpts, x *big.Int, y *big.Int) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getPixelCalls++
	return big.NewInt(r.pixels[Coord{X: int(x.Int64()), Y: int(y.Int64())}]), nil
}

func (r *fakeReader) GetPixelBatch(opts *bind.CallOpts, startX, startY, endX, endY *big.Int) ([]*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := Coord{X: int(startX.Int64()), Y: int(startY.Int64())}
	if r.failBatches[start] {
		return nil, errors.New("batch read timed out")
	}
	var colors []*big.Int
	for y := start.Y; y < int(endY.Int64()); y++ {
		for x := start.X; x < int(endX.Int64()); x++ {
			colors = append(colors, big.NewInt(r.pixels[Coord{X: x, Y: y}]))
		}
	}
	return colors, nil
}

func (r *fakeReader) GetPixelPrice(opts *bind.CallOpts) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.priceErr != nil {
		return nil, r.priceErr
	}
	return new(big.Int).Set(r.price), nil
}

func (r *fakeReader) TotalPaints(opts *bind.CallOpts) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return big.NewInt(r.totalPaints), nil
}

func (r *fakeReader) CooldownTime(opts *bind.CallOpts) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return big.NewInt(r.cooldownTime), nil
}

func (r *fakeReader) Paused(opts *bind.CallOpts) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused, r.pausedErr
}

func (r *fakeReader) CanUserPaint(opts *bind.CallOpts, user common.Address) (pixelcanvas.CooldownStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canPaintUser = user
	if r.canPaintErr != nil {
		return pixelcanvas.CooldownStatus{}, r.canPaintErr
	}
	return r.canPaint, nil
}

func (r *fakeReader) GetBoardSize(opts *bind.CallOpts) (*big.Int, *big.Int, error) {
	return big.NewInt(config.GridSize), big.NewInt(config.GridSize), nil
}

func (r *fakeReader) WatchPixelPainted(
	opts *bind.WatchOpts,
	sink chan<- *pixelcanvas.PixelPainted,
	user []common.Address,
) (event.Subscription, error) {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		<-quit
		return nil
	}), nil
}

type fakeWriter struct {
	mu        sync.Mutex
	submitErr error
	calls     int
	lastValue *big.Int
	lastArgs  [3]int64
}

func (w *fakeWriter) PaintPixel(opts *bind.TransactOpts, x, y, color *big.Int) (*types.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.submitErr != nil {
		return nil, w.submitErr
	}
	w.lastValue = new(big.Int).Set(opts.Value)
	w.lastArgs = [3]int64{x.Int64(), y.Int64(), color.Int64()}
	return types.NewTransaction(uint64(w.calls), common.Address{}, opts.Value, 21000, big.NewInt(1), nil), nil
}

func confirmSuccess(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(7)}, nil
}

func confirmReverted(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(7)}, nil
}

func connectedSession() wallet.Session {
	return wallet.Session{
		Account:        testAccount,
		HasAccount:     true,
		ChainID:        config.NeuraTestnet.ChainID,
		Connected:      true,
		CorrectNetwork: true,
		Signer:         &bind.TransactOpts{From: testAccount},
	}
}

func newTestClient(t *testing.T) (*Client, *fakeReader, *fakeWriter) {
	t.Helper()
	queue := notifier.NewQueue()
	client := NewClient(common.HexToAddress(config.DefaultContractAddress), config.NeuraTestnet, queue)
	t.Cleanup(client.Close)
	t.Cleanup(queue.Close)

	reader := newFakeReader()
	writer := &fakeWriter{}
	client.reader = reader
	client.writer = writer
	client.session = connectedSession()
	client.confirm = confirmSuccess
	return client, reader, writer
}

func TestBoardSize(t *testing.T) {
	client, _, _ := newTestClient(t)
	width, height, err := client.BoardSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, config.GridSize, width)
	assert.Equal(t, config.GridSize, height)

	client.reader = nil
	_, _, err = client.BoardSize(context.Background())
	assert.ErrorIs(t, err, ErrContractNotInitialized)
}

func TestUnpaintedPixelIsDefault(t *testing.T) {
	client, _, _ := newTestClient(t)
	assert.Equal(t, uint32(0), client.PixelColor(3, 3))
	_, painted := client.pixels.Color(Coord{X: 3, Y: 3})
	assert.False(t, painted)
}

func TestLoadAllPixelsIdempotent(t *testing.T) {
	client, reader, _ := newTestClient(t)
	reader.pixels[Coord{X: 0, Y: 0}] = 0xFF0000
	reader.pixels[Coord{X: 17, Y: 40}] = 0x00FF00
	reader.pixels[Coord{X: 63, Y: 63}] = 0x0000FF

	ctx := context.Background()
	require.NoError(t, client.LoadAllPixels(ctx))
	first := client.Pixels()
	require.NoError(t, client.LoadAllPixels(ctx))
	second := client.Pixels()

	assert.Equal(t, first, second)
	assert.Len(t, second, 3)
	assert.Equal(t, uint32(0x00FF00), second[Coord{X: 17, Y: 40}])
	assert.False(t, client.IsLoadingPixels())
}

func TestLoadAllPixelsSkipsFailedBatch(t *testing.T) {
	client, reader, _ := newTestClient(t)
	reader.pixels[Coord{X: 1, Y: 1}] = 0xAA0000  // inside the failing batch
	reader.pixels[Coord{X: 40, Y: 40}] = 0x00BB00
	reader.failBatches[Coord{X: 0, Y: 0}] = true

	notices, cancel := client.notices.Subscribe()
	defer cancel()

	require.NoError(t, client.LoadAllPixels(context.Background()))

	pixels := client.Pixels()
	assert.Equal(t, uint32(0x00BB00), pixels[Coord{X: 40, Y: 40}])
	_, present := pixels[Coord{X: 1, Y: 1}]
	assert.False(t, present)
	assert.False(t, client.IsLoadingPixels())

	notice := <-notices
	assert.Equal(t, notifier.LevelWarning, notice.Level)
	assert.Contains(t, notice.Message, "Partial board load")
}

func TestLoadAllPixelsReplacesWholeBoard(t *testing.T) {
	client, reader, _ := newTestClient(t)
	client.pixels.Apply(Coord{X: 5, Y: 5}, 0x123456)
	reader.pixels[Coord{X: 9, Y: 9}] = 0x654321

	require.NoError(t, client.LoadAllPixels(context.Background()))

	pixels := client.Pixels()
	_, stale := pixels[Coord{X: 5, Y: 5}]
	assert.False(t, stale)
	assert.Equal(t, uint32(0x654321), pixels[Coord{X: 9, Y: 9}])
}

func TestLoadSinglePixelUpsertsAndDeletes(t *testing.T) {
	client, reader, _ := newTestClient(t)
	ctx := context.Background()

	reader.pixels[Coord{X: 2, Y: 3}] = 0xABCDEF
	require.NoError(t, client.LoadSinglePixel(ctx, 2, 3))
	assert.Equal(t, uint32(0xABCDEF), client.PixelColor(2, 3))

	delete(reader.pixels, Coord{X: 2, Y: 3})
	require.NoError(t, client.LoadSinglePixel(ctx, 2, 3))
	_, painted := client.pixels.Color(Coord{X: 2, Y: 3})
	assert.False(t, painted)
}

func TestHandlePixelPaintedEvent(t *testing.T) {
	client, _, _ := newTestClient(t)

	client.handlePixelPainted(&pixelcanvas.PixelPainted{
		User: testAccount, X: big.NewInt(4), Y: big.NewInt(5), Color: big.NewInt(0xCAFE00),
	})
	assert.Equal(t, uint32(0xCAFE00), client.PixelColor(4, 5))

	// A zero-color delta removes the key outright, never blends.
	client.handlePixelPainted(&pixelcanvas.PixelPainted{
		User: testAccount, X: big.NewInt(4), Y: big.NewInt(5), Color: big.NewInt(0),
	})
	_, painted := client.pixels.Color(Coord{X: 4, Y: 5})
	assert.False(t, painted)
}

func TestLoadStatsReplacesAggregate(t *testing.T) {
	client, reader, _ := newTestClient(t)
	reader.paused = true

	require.NoError(t, client.LoadStats(context.Background()))

	stats := client.Stats()
	assert.Equal(t, reader.price, stats.PixelPrice)
	assert.Equal(t, uint64(42), stats.TotalPaints)
	assert.Equal(t, uint64(5), stats.CooldownSeconds)
	assert.True(t, stats.Paused)
	assert.False(t, client.IsLoadingStats())
}

func TestLoadStatsPartialFailureKeepsStale(t *testing.T) {
	client, reader, _ := newTestClient(t)
	require.NoError(t, client.LoadStats(context.Background()))
	before := client.Stats()

	reader.mu.Lock()
	reader.totalPaints = 100
	reader.pausedErr = errors.New("read failed")
	reader.mu.Unlock()

	err := client.LoadStats(context.Background())
	assert.Error(t, err)
	assert.Equal(t, before, client.Stats())
	assert.False(t, client.IsLoadingStats())
}

func TestCheckUserCooldownWithoutAccount(t *testing.T) {
	client, _, _ := newTestClient(t)
	client.session = wallet.Session{}

	require.NoError(t, client.CheckUserCooldown(context.Background()))

	cooldown := client.Cooldown()
	assert.True(t, cooldown.CanPaint)
	assert.Equal(t, uint64(0), cooldown.SecondsRemaining)
}

func TestCheckUserCooldownStoresVerdict(t *testing.T) {
	client, reader, _ := newTestClient(t)
	reader.canPaint = pixelcanvas.CooldownStatus{CanPaint: false, TimeRemaining: big.NewInt(17)}

	require.NoError(t, client.CheckUserCooldown(context.Background()))

	cooldown := client.Cooldown()
	assert.False(t, cooldown.CanPaint)
	assert.Equal(t, uint64(17), cooldown.SecondsRemaining)
	assert.Equal(t, uint64(17), client.CooldownRemaining())
	assert.Equal(t, testAccount, reader.canPaintUser)
}

func TestPaintPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Client)
		x, y    int
		color   int
		wantErr error
	}{
		{"no write handle", func(c *Client) { c.writer = nil }, 5, 5, 0xFF0000, ErrContractNotInitialized},
		{"no signer", func(c *Client) { c.session.Signer = nil }, 5, 5, 0xFF0000, ErrNotConnected},
		{"wrong network", func(c *Client) { c.session.CorrectNetwork = false }, 5, 5, 0xFF0000, ErrWrongNetwork},
		{"no account", func(c *Client) { c.session.HasAccount = false }, 5, 5, 0xFF0000, ErrNoAccount},
		{"x negative", nil, -1, 0, 0xFF0000, ErrOutOfBounds},
		{"x at grid size", nil, config.GridSize, 0, 0xFF0000, ErrOutOfBounds},
		{"y negative", nil, 0, -1, 0xFF0000, ErrOutOfBounds},
		{"color too large", nil, 0, 0, 0x1000000, ErrInvalidColor},
		{"color negative", nil, 0, 0, -1, ErrInvalidColor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _, writer := newTestClient(t)
			if tt.mutate != nil {
				tt.mutate(client)
			}
			_, err := client.PaintPixel(context.Background(), tt.x, tt.y, tt.color)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, writer.calls, "no submission may happen on a precondition failure")
			assert.False(t, client.IsPainting())
		})
	}
}

func TestPaintSuccess(t *testing.T) {
	client, reader, writer := newTestClient(t)
	// Chain state after confirmation: the painted pixel and a bumped count.
	reader.pixels[Coord{X: 10, Y: 20}] = 0x00FF00
	reader.totalPaints = 43
	reader.canPaint = pixelcanvas.CooldownStatus{CanPaint: false, TimeRemaining: big.NewInt(5)}

	txHash, err := client.PaintPixel(context.Background(), 10, 20, 0x00FF00)
	require.NoError(t, err)

	assert.Equal(t, uint32(0x00FF00), client.PixelColor(10, 20))
	assert.Equal(t, uint64(43), client.Stats().TotalPaints, "count is reloaded, never incremented locally")
	assert.False(t, client.Cooldown().CanPaint)
	assert.False(t, client.IsPainting())
	assert.Nil(t, client.Pending())
	assert.Equal(t, txHash, client.LastTxHash())
	assert.Empty(t, client.LastError())
	assert.Equal(t, [3]int64{10, 20, 0x00FF00}, writer.lastArgs)
	assert.Equal(t, config.DefaultPixelPrice, writer.lastValue, "payment equals the cached price")
}

func TestPaintReverted(t *testing.T) {
	client, reader, _ := newTestClient(t)
	client.confirm = confirmReverted
	reader.pixels[Coord{X: 10, Y: 20}] = 0x00FF00

	_, err := client.PaintPixel(context.Background(), 10, 20, 0x00FF00)
	assert.ErrorIs(t, err, ErrTransactionReverted)

	// No reconciliation happens on a revert; the board stays untouched.
	assert.Equal(t, uint32(0), client.PixelColor(10, 20))
	assert.Equal(t, 0, reader.getPixelCalls)
	assert.False(t, client.IsPainting())
	assert.Equal(t, ErrTransactionReverted.Error(), client.LastError())
}

func TestPaintSubmitRejected(t *testing.T) {
	client, _, writer := newTestClient(t)
	writer.submitErr = errors.New("MetaMask Tx Signature: user rejected transaction")

	_, err := client.PaintPixel(context.Background(), 1, 1, 0xFF0000)
	assert.ErrorIs(t, err, ErrRejectedByUser)
	assert.False(t, client.IsPainting())
	assert.Equal(t, ErrRejectedByUser.Error(), client.LastError())
}

func TestPaintConfirmFailure(t *testing.T) {
	client, _, _ := newTestClient(t)
	confirmErr := errors.New("context deadline exceeded")
	client.confirm = func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		return nil, confirmErr
	}

	txHash, err := client.PaintPixel(context.Background(), 1, 1, 0xFF0000)
	assert.ErrorIs(t, err, confirmErr)
	assert.NotEqual(t, common.Hash{}, txHash, "hash is recorded at submission")
	assert.False(t, client.IsPainting())
}

func TestPaintReconciliationFailureDoesNotFailPaint(t *testing.T) {
	client, reader, _ := newTestClient(t)
	reader.pixels[Coord{X: 3, Y: 3}] = 0x112233
	reader.pausedErr = errors.New("stats read failed")
	reader.canPaintErr = errors.New("cooldown read failed")

	_, err := client.PaintPixel(context.Background(), 3, 3, 0x112233)
	require.NoError(t, err, "best-effort reconciliation failures never fail the paint")
	assert.Equal(t, uint32(0x112233), client.PixelColor(3, 3))
}

func TestNormalizePaintError(t *testing.T) {
	tests := []struct {
		raw  string
		want error
	}{
		{"execution reverted: COOLDOWN_ACTIVE", ErrCooldownActive},
		{"execution reverted: PAUSED", ErrContractPaused},
		{"execution reverted: INSUFFICIENT_PAYMENT", ErrInsufficientPayment},
		{"insufficient funds for gas * price + value", ErrInsufficientFunds},
		{"user rejected transaction", ErrRejectedByUser},
		{"user denied transaction signature", ErrRejectedByUser},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, normalizePaintError(errors.New(tt.raw)), tt.want, tt.raw)
	}

	opaque := errors.New("nonce too low")
	assert.Equal(t, opaque, normalizePaintError(opaque))
	assert.ErrorIs(t, normalizePaintError(wallet.ErrUserRejected), ErrRejectedByUser)
	assert.NoError(t, normalizePaintError(nil))
}

func TestRebuildGatesHandles(t *testing.T) {
	queue := notifier.NewQueue()
	client := NewClient(common.HexToAddress(config.DefaultContractAddress), config.NeuraTestnet, queue)
	t.Cleanup(client.Close)
	t.Cleanup(queue.Close)

	backend := &stubBackend{}

	session := connectedSession()
	session.Client = backend
	client.Rebuild(session)
	assert.NotNil(t, client.reader)
	assert.NotNil(t, client.writer)

	readOnly := session
	readOnly.Signer = nil
	client.Rebuild(readOnly)
	assert.NotNil(t, client.reader)
	assert.Nil(t, client.writer)

	wrongNetwork := session
	wrongNetwork.CorrectNetwork = false
	client.Rebuild(wrongNetwork)
	assert.Nil(t, client.reader)
	assert.Nil(t, client.writer)

	disconnected := wallet.Session{}
	client.Rebuild(disconnected)
	assert.Nil(t, client.reader)
	assert.Nil(t, client.writer)

	_, err := client.PaintPixel(context.Background(), 5, 5, 0xFF0000)
	assert.ErrorIs(t, err, ErrContractNotInitialized)
}

// stubBackend satisfies wallet.ReadBackend without a live RPC connection. The
// rebuild test only binds handles against it, it never issues calls.
type stubBackend struct{}

func (stubBackend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (stubBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, errors.New("not wired")
}

func (stubBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1)}, nil
}

func (stubBackend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (stubBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}

func (stubBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (stubBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (stubBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}

func (stubBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return errors.New("not wired")
}

func (stubBackend) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (stubBackend) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		<-quit
		return nil
	}), nil
}

func (stubBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

func (stubBackend) TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
	return nil, false, ethereum.NotFound
}
