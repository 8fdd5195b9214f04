package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"booksim/internal/domain"
)

// NewOrderRequest carries the parameters for a new limit order.
type NewOrderRequest struct {
	Symbol   string
	Side     domain.Side
	TIF      domain.TimeInForce
	Price    int64 // cents
	Quantity int64
	Step     int // simulation step the order was created at
}

// ModifyRequest carries the optional new price/quantity for a modify.
// A nil field leaves the current value unchanged.
type ModifyRequest struct {
	NewPrice    *int64
	NewQuantity *int64
}

// Matcher applies order commands against per-symbol books, producing
// trades in price-time priority. Order and trade IDs are assigned from
// process-wide monotonic counters shared across symbols and never
// reused.
//
// The caller serializes all calls touching the same book; the ID
// counters are atomic so independent symbols can match in parallel.
type Matcher struct {
	orderIDs atomic.Uint64
	tradeIDs atomic.Uint64
	now      func() time.Time
}

// NewMatcher creates a Matcher using the system clock for trade
// timestamps.
func NewMatcher() *Matcher {
	return NewMatcherWithClock(time.Now)
}

// NewMatcherWithClock creates a Matcher with an injected clock.
func NewMatcherWithClock(now func() time.Time) *Matcher {
	return &Matcher{now: now}
}

func (m *Matcher) nextOrderID() uint64 {
	return m.orderIDs.Add(1)
}

func (m *Matcher) nextTradeID() uint64 {
	return m.tradeIDs.Add(1)
}

// NewOrder validates and processes an incoming limit order: it matches
// against the opposite side of the book while the price crosses, then
// rests any remainder for GTC. IOC remainders are discarded; FOK orders
// are killed without trading unless fully fillable.
//
// The returned order reflects the post-match state. Validation failures
// return an error before the book is touched.
func (m *Matcher) NewOrder(book *Book, req NewOrderRequest) (*domain.Order, []*domain.Trade, error) {
	if req.Quantity <= 0 {
		return nil, nil, domain.ErrInvalidQuantity
	}
	if req.Price <= 0 {
		return nil, nil, domain.ErrInvalidPrice
	}
	tif := req.TIF
	if tif == "" {
		tif = domain.TIFGTC
	}

	order := &domain.Order{
		OrderID:     m.nextOrderID(),
		Symbol:      req.Symbol,
		Side:        req.Side,
		TIF:         tif,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Remaining:   req.Quantity,
		CreatedStep: req.Step,
	}

	if tif == domain.TIFFOK {
		if book.AvailableQuantity(order) < order.Remaining {
			// Kill without trading.
			return order, nil, nil
		}
	}

	trades := m.match(book, order)

	if order.Remaining > 0 && order.TIF == domain.TIFGTC {
		book.Insert(order)
	}

	return order, trades, nil
}

// Cancel removes a resting order from the book. Returns
// ErrOrderNotFound if the order is absent or already fully filled.
func (m *Matcher) Cancel(book *Book, orderID uint64) (*domain.Order, error) {
	return book.Remove(orderID)
}

// Modify applies cancel-replace semantics: the resting order is removed
// and resubmitted with the new price/quantity, keeping its order ID but
// forfeiting time priority. Even a quantity-only reduction at the same
// price re-enters at the back of the level. The replacement matches
// like a fresh aggressive order, so a price moved across the spread
// trades immediately.
func (m *Matcher) Modify(book *Book, orderID uint64, req ModifyRequest) (*domain.Order, []*domain.Trade, error) {
	order, ok := book.Lookup(orderID)
	if !ok {
		return nil, nil, domain.ErrOrderNotFound
	}

	newPrice := order.Price
	if req.NewPrice != nil {
		newPrice = *req.NewPrice
	}
	newQty := order.Quantity
	if req.NewQuantity != nil {
		newQty = *req.NewQuantity
	}
	if newPrice <= 0 {
		return nil, nil, domain.ErrInvalidPrice
	}
	if newQty <= 0 {
		return nil, nil, domain.ErrInvalidQuantity
	}
	if newQty < order.Filled {
		return nil, nil, domain.ErrQuantityBelowFilled
	}

	if _, err := book.Remove(orderID); err != nil {
		return nil, nil, err
	}

	order.Price = newPrice
	order.Quantity = newQty
	order.Remaining = newQty - order.Filled

	if order.Remaining == 0 {
		// Reduced to its already-filled quantity; nothing left to rest.
		return order, nil, nil
	}

	trades := m.match(book, order)

	if order.Remaining > 0 && order.TIF == domain.TIFGTC {
		book.Insert(order)
	}

	return order, trades, nil
}

// match runs the core loop: while the incoming order has remaining
// quantity and the opposite best price crosses, trade against the
// oldest resting order at the best level. The trade price is always the
// resting order's price. Fully filled resting orders are removed, which
// also drops emptied price levels.
func (m *Matcher) match(book *Book, order *domain.Order) []*domain.Trade {
	var trades []*domain.Trade

	for order.Remaining > 0 {
		best, ok := book.BestOpposite(order.Side)
		if !ok {
			break
		}
		if order.Side == domain.SideBuy {
			if best.Price > order.Price {
				break
			}
		} else {
			if best.Price < order.Price {
				break
			}
		}

		resting := best.Order
		if resting.OrderID == order.OrderID {
			panic(fmt.Sprintf("order %d would trade against itself", order.OrderID))
		}

		qty := order.Remaining
		if resting.Remaining < qty {
			qty = resting.Remaining
		}

		order.AddFill(qty)
		resting.AddFill(qty)

		trade := &domain.Trade{
			TradeID:    m.nextTradeID(),
			Symbol:     book.symbol,
			Price:      resting.Price,
			Quantity:   qty,
			ExecutedAt: m.now(),
		}
		if order.Side == domain.SideBuy {
			trade.BuyOrderID = order.OrderID
			trade.SellOrderID = resting.OrderID
		} else {
			trade.BuyOrderID = resting.OrderID
			trade.SellOrderID = order.OrderID
		}
		trades = append(trades, trade)

		if resting.Remaining == 0 {
			if _, err := book.Remove(resting.OrderID); err != nil {
				panic(fmt.Sprintf("filled order %d missing from book index", resting.OrderID))
			}
		}
	}

	return trades
}
