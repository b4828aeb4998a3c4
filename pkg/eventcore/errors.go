package eventcore

import "errors"

// Sentinel errors for dispatcher lifecycle.
var (
	// ErrDestroyed indicates a lifecycle operation (Emit, On, Once, Use)
	// was attempted after Destroy. Fatal to the call, not to the process.
	ErrDestroyed = errors.New("dispatcher destroyed")
)
