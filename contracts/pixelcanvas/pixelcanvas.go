// Package pixelcanvas is a hand-maintained binding for the PixelCanvas
// contract, covering only the surface the board client uses.
package pixelcanvas

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

const abiJSON = `[
 {"type":"function","name":"getPixel","stateMutability":"view","inputs":[{"name":"x","type":"uint256"},{"name":"y","type":"uint256"}],"outputs":[{"name":"","type":"uint24"}]},
 {"type":"function","name":"getPixelBatch","stateMutability":"view","inputs":[{"name":"startX","type":"uint256"},{"name":"startY","type":"uint256"},{"name":"endX","type":"uint256"},{"name":"endY","type":"uint256"}],"outputs":[{"name":"","type":"uint24[]"}]},
 {"type":"function","name":"getPixelPrice","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"totalPaints","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"canUserPaint","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"canPaint","type":"bool"},{"name":"timeRemaining","type":"uint256"}]},
 {"type":"function","name":"paused","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"cooldownTime","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"getBoardSize","stateMutability":"view","inputs":[],"outputs":[{"name":"width","type":"uint256"},{"name":"height","type":"uint256"}]},
 {"type":"function","name":"paintPixel","stateMutability":"payable","inputs":[{"name":"x","type":"uint256"},{"name":"y","type":"uint256"},{"name":"color","type":"uint24"}],"outputs":[]},
 {"type":"event","name":"PixelPainted","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"x","type":"uint256","indexed":false},{"name":"y","type":"uint256","indexed":false},{"name":"color","type":"uint24","indexed":false}]}
]`

// PixelCanvas wraps a deployed canvas contract with typed accessors.
type PixelCanvas struct {
	address  common.Address
	contract *bind.BoundContract
}

// CooldownStatus is the result pair of canUserPaint.
type CooldownStatus struct {
	CanPaint      bool
	TimeRemaining *big.Int
}

// PixelPainted is the contract's paint notification.
type PixelPainted struct {
	User  common.Address
	X     *big.Int
	Y     *big.Int
	Color *big.Int
	Raw   types.Log
}

// NewPixelCanvas binds the contract at address to a backend. The backend may
// be read-only; transact calls will then fail at submission time.
func NewPixelCanvas(address common.Address, backend bind.ContractBackend) (*PixelCanvas, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, err
	}
	return &PixelCanvas{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// Address returns the bound contract address.
func (pc *PixelCanvas) Address() common.Address {
	return pc.address
}

// GetPixel returns the 24-bit color at (x, y); zero means unpainted.
func (pc *PixelCanvas) GetPixel(opts *bind.CallOpts, x *big.Int, y *big.Int) (*big.Int, error) {
	var out []interface{}
	err := pc.contract.Call(opts, &out, "getPixel", x, y)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// GetPixelBatch returns colors for [startX,endX) x [startY,endY) as a flat
// row-major sequence (y outer, x inner).
func (pc *PixelCanvas) GetPixelBatch(
	opts *bind.CallOpts,
	startX *big.Int, startY *big.Int,
	endX *big.Int, endY *big.Int,
) ([]*big.Int, error) {
	var out []interface{}
	err := pc.contract.Call(opts, &out, "getPixelBatch", startX, startY, endX, endY)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int), nil
}

// GetPixelPrice returns the per-pixel payment in base units.
func (pc *PixelCanvas) GetPixelPrice(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	err := pc.contract.Call(opts, &out, "getPixelPrice")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// TotalPaints returns the historical paint count.
func (pc *PixelCanvas) TotalPaints(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	err := pc.contract.Call(opts, &out, "totalPaints")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// CooldownTime returns the contract-wide cooldown in seconds.
func (pc *PixelCanvas) CooldownTime(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	err := pc.contract.Call(opts, &out, "cooldownTime")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Paused reports whether painting is disabled contract-side.
func (pc *PixelCanvas) Paused(opts *bind.CallOpts) (bool, error) {
	var out []interface{}
	err := pc.contract.Call(opts, &out, "paused")
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// CanUserPaint returns the cooldown status of a user. Cooldown timing is
// chain-side; the result is authoritative, not reproducible locally.
func (pc *PixelCanvas) CanUserPaint(opts *bind.CallOpts, user common.Address) (CooldownStatus, error) {
	var out []interface{}
	err := pc.contract.Call(opts, &out, "canUserPaint", user)
	if err != nil {
		return CooldownStatus{}, err
	}
	return CooldownStatus{
		CanPaint:      *abi.ConvertType(out[0], new(bool)).(*bool),
		TimeRemaining: *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
	}, nil
}

// GetBoardSize returns the canvas dimensions the contract was deployed with.
func (pc *PixelCanvas) GetBoardSize(opts *bind.CallOpts) (*big.Int, *big.Int, error) {
	var out []interface{}
	err := pc.contract.Call(opts, &out, "getBoardSize")
	if err != nil {
		return nil, nil, err
	}
	width := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	height := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
	return width, height, nil
}

// PaintPixel submits a paint transaction. The payment rides on opts.Value.
func (pc *PixelCanvas) PaintPixel(
	opts *bind.TransactOpts,
	x *big.Int, y *big.Int, color *big.Int,
) (*types.Transaction, error) {
	return pc.contract.Transact(opts, "paintPixel", x, y, color)
}

// WatchPixelPainted subscribes sink to PixelPainted events, optionally
// filtered by painter address.
func (pc *PixelCanvas) WatchPixelPainted(
	opts *bind.WatchOpts,
	sink chan<- *PixelPainted,
	user []common.Address,
) (event.Subscription, error) {
	var userRule []interface{}
	for _, item := range user {
		userRule = append(userRule, item)
	}
	logs, sub, err := pc.contract.WatchLogs(opts, "PixelPainted", userRule)
	if err != nil {
		return nil, err
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case rawLog := <-logs:
				painted := new(PixelPainted)
				if err := pc.contract.UnpackLog(painted, "PixelPainted", rawLog); err != nil {
					return err
				}
				painted.Raw = rawLog
				select {
				case sink <- painted:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}
