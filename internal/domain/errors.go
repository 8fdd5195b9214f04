package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler and driver layers map these to structured statuses.
var (
	ErrOrderNotFound       = errors.New("order_not_found")
	ErrInvalidPrice        = errors.New("invalid_price")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrQuantityBelowFilled = errors.New("quantity_below_filled")
	ErrSymbolMismatch      = errors.New("symbol_mismatch")
)
