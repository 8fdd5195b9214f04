package domain

import "fmt"

// Side indicates whether an order is buying or selling.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide parses a side string case-insensitively.
func ParseSide(s string) (Side, error) {
	switch s {
	case "BUY", "buy":
		return SideBuy, nil
	case "SELL", "sell":
		return SideSell, nil
	}
	return "", fmt.Errorf("invalid side %q", s)
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// TimeInForce controls what happens to the unfilled part of a limit order.
type TimeInForce string

const (
	// TIFGTC rests any unfilled remainder on the book.
	TIFGTC TimeInForce = "GTC"
	// TIFIOC matches what it can and discards the remainder.
	TIFIOC TimeInForce = "IOC"
	// TIFFOK fills completely and immediately or not at all.
	TIFFOK TimeInForce = "FOK"
)

// ParseTimeInForce parses a time-in-force string case-insensitively.
func ParseTimeInForce(s string) (TimeInForce, error) {
	switch s {
	case "GTC", "gtc":
		return TIFGTC, nil
	case "IOC", "ioc":
		return TIFIOC, nil
	case "FOK", "fok":
		return TIFFOK, nil
	}
	return "", fmt.Errorf("invalid time in force %q", s)
}

// InvalidOrderID is never assigned to a real order.
const InvalidOrderID uint64 = 0

// Order is a limit order. While it rests on the book it is owned by
// exactly one price level on one side; Remaining is always positive
// for a resting order.
type Order struct {
	OrderID     uint64
	Symbol      string
	Side        Side
	TIF         TimeInForce
	Price       int64 // cents
	Quantity    int64 // original quantity
	Filled      int64
	Remaining   int64
	CreatedStep int
}

// AddFill records qty traded against the order. Filling more than the
// remaining quantity indicates corrupted book state and panics.
func (o *Order) AddFill(qty int64) {
	if qty <= 0 {
		panic(fmt.Sprintf("order %d: non-positive fill %d", o.OrderID, qty))
	}
	if qty > o.Remaining {
		panic(fmt.Sprintf("order %d: fill %d exceeds remaining %d", o.OrderID, qty, o.Remaining))
	}
	o.Filled += qty
	o.Remaining -= qty
}
