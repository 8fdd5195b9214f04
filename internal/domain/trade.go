package domain

import "time"

// Trade is an immutable record of a match between a buy and a sell order.
type Trade struct {
	TradeID     uint64
	Symbol      string
	Price       int64 // cents, always the resting order's price
	Quantity    int64
	BuyOrderID  uint64
	SellOrderID uint64
	ExecutedAt  time.Time
}
