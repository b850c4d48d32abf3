package board

import (
	"errors"
	"strings"

	"github.com/neurapixel/go-pixelboard/wallet"
)

var (
	// ErrContractNotInitialized means no write handle exists; connect the
	// wallet and switch to the target network first.
	ErrContractNotInitialized = errors.New("contract not initialized")

	// ErrNotConnected means no signer is present.
	ErrNotConnected = errors.New("wallet not connected")

	// ErrWrongNetwork means the session is on a different chain.
	ErrWrongNetwork = errors.New("wrong network")

	// ErrNoAccount means the session has no account identity.
	ErrNoAccount = errors.New("no account connected")

	// ErrOutOfBounds means a coordinate is outside the canvas.
	ErrOutOfBounds = errors.New("coordinates out of bounds")

	// ErrInvalidColor means a color is outside the 24-bit range.
	ErrInvalidColor = errors.New("invalid color value")

	// ErrTransactionReverted means the chain confirmed the transaction with
	// a failure status.
	ErrTransactionReverted = errors.New("transaction reverted")

	// Contract-business failures, recognized by substring of the raw error.
	ErrRejectedByUser      = errors.New("transaction rejected by user")
	ErrInsufficientFunds   = errors.New("insufficient balance")
	ErrCooldownActive      = errors.New("cooldown active, please wait")
	ErrContractPaused      = errors.New("contract is paused")
	ErrInsufficientPayment = errors.New("insufficient payment amount")
)

// normalizePaintError maps raw provider and contract failures onto the small
// taxonomy consumers present to users. Unrecognized errors pass through.
func normalizePaintError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, wallet.ErrUserRejected) {
		return ErrRejectedByUser
	}
	message := err.Error()
	switch {
	case strings.Contains(message, "user rejected"), strings.Contains(message, "user denied"):
		return ErrRejectedByUser
	case strings.Contains(message, "insufficient funds"):
		return ErrInsufficientFunds
	case strings.Contains(message, "COOLDOWN_ACTIVE"):
		return ErrCooldownActive
	case strings.Contains(message, "PAUSED"):
		return ErrContractPaused
	case strings.Contains(message, "INSUFFICIENT_PAYMENT"):
		return ErrInsufficientPayment
	default:
		return err
	}
}
