package poolcore

import "errors"

// The closed set of error kinds the core raises. A plain sentinel set
// compared with errors.Is is enough here: there is no aggregation or
// multi-cause wrapping need that would justify pulling in an error
// aggregation library for seven fixed cases.
var (
	ErrConfigInvalid     = errors.New("poolcore: invalid server or pool configuration")
	ErrResolveFailed     = errors.New("poolcore: hostname resolution failed")
	ErrNoServerAvailable = errors.New("poolcore: no server available")
	ErrConnectFailed     = errors.New("poolcore: connect failed")
	ErrTimeout           = errors.New("poolcore: request timed out")
	ErrTransportError    = errors.New("poolcore: transport error")
	ErrPoolUnavailable   = errors.New("poolcore: pool is not accepting requests")
)
