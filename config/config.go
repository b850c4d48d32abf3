// Package config carries the fixed deployment parameters of the pixel board:
// the target network identity, the canvas contract address and the handful of
// compile-time constants the contract was deployed with.
package config

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

const (
	// GridSize is the canvas dimension on both axes.
	GridSize = 64

	// PixelBatchSize bounds a single batched range read to 16x16 coordinates.
	PixelBatchSize = 16

	// MaxColor is the largest representable 24-bit color.
	MaxColor = 0xFFFFFF

	// DefaultCooldownSeconds seeds the stats before the first chain read.
	DefaultCooldownSeconds = 5
)

// DefaultContractAddress is the deployed PixelCanvas on Neura Testnet.
const DefaultContractAddress = "0x74CaC1793914e7Cd2ea583D563da82de5c09e169"

// DefaultPixelPrice is 0.001 ANKR in base units, the price the stats carry
// until the first successful stats read.
var DefaultPixelPrice = big.NewInt(params.Ether / 1000)

// Viper keys used across the binaries.
const (
	KeyRPCEndpoint      = "rpcEndpoint"
	KeyContractAddress  = "contractAddress"
	KeyKeystorePath     = "keystorePath"
	KeyKeystorePassword = "keystorePassword"
	KeyChainFile        = "chainFile"
	KeyCooldownPollSec  = "cooldownPollSeconds"
)
