package wallet

import "errors"

var (
	// ErrProviderMissing means no wallet provider is configured.
	ErrProviderMissing = errors.New("no wallet provider available")

	// ErrUserRejected means the user declined an authorization or signing
	// prompt.
	ErrUserRejected = errors.New("request rejected by user")

	// ErrUnrecognizedChain is returned by Provider.SwitchChain when the
	// wallet does not know the target chain. The session manager reacts by
	// adding the chain definition and retrying.
	ErrUnrecognizedChain = errors.New("unrecognized chain")

	// ErrNetworkSwitchFailed means switching to the target chain failed,
	// including a failed add of an unrecognized chain.
	ErrNetworkSwitchFailed = errors.New("failed to switch network")

	// ErrUnknown wraps provider failures outside the taxonomy.
	ErrUnknown = errors.New("wallet provider error")
)
