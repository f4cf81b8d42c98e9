// internal/util/errors.go
package util

import "errors"

// Common application-specific errors.
var (
	ErrNotFound             = errors.New("resource not found")
	ErrInvalidInput         = errors.New("invalid input provided")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrHoldingNotFound      = errors.New("holding not found")
	ErrPriceUnavailable     = errors.New("price unavailable")
	ErrPersistenceFailed    = errors.New("portfolio state could not be persisted")

	// Price feed failures. Every feed error wraps ErrQuoteUnavailable.
	ErrQuoteUnavailable  = errors.New("quote unavailable")
	ErrSymbolNotFound    = errors.New("symbol not found on exchange")
	ErrMalformedResponse = errors.New("malformed exchange response")
	ErrBlockingForbidden = errors.New("blocking call on foreground context")
)

// IsError reports whether any error in err's chain matches target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
