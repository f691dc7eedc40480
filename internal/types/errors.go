package types

import "errors"

// Sentinel errors for the order engine.
var (
	// Order errors
	ErrInvalidOrderParams = errors.New("invalid order parameters")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderNotActive     = errors.New("order is not active")
	ErrDuplicateOrder     = errors.New("duplicate order id")
	ErrExecutionInFlight  = errors.New("execution already in flight")

	// Execution errors
	ErrNothingToSell   = errors.New("no token balance to sell")
	ErrQuoteFailed     = errors.New("quote request failed")
	ErrSwapBuildFailed = errors.New("swap build failed")

	// Feed errors
	ErrPriceUnavailable = errors.New("no price observation for instrument")
	ErrFeedClosed       = errors.New("price feed closed")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// IsTerminalExecErr reports whether an execution error is a terminal
// business failure rather than a transient one. Terminal failures are not
// retried: the order is marked failed immediately.
func IsTerminalExecErr(err error) bool {
	return errors.Is(err, ErrNothingToSell)
}
