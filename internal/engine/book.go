package engine

import (
	"booksim/internal/domain"

	"github.com/google/btree"
)

// Entry represents a single order resting on one side of the book. Seq
// is the book-local arrival sequence assigned on insert; a removed and
// re-inserted order gets a fresh Seq, which is how cancel-replace
// forfeits time priority while the order keeps its ID.
type Entry struct {
	Price   int64
	Seq     uint64
	OrderID uint64
	Order   *domain.Order
}

// PriceLevel is an aggregated price point on one side of the book.
type PriceLevel struct {
	Price    int64
	Quantity int64 // sum of remaining quantity across orders at this price
	Orders   int
}

// bidLess orders the bid side: price descending, then arrival sequence
// ascending, so (price, seq) is exactly price-time priority and Min()
// returns the best bid.
func bidLess(a, b Entry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Seq < b.Seq
}

// askLess orders the ask side: price ascending, then arrival sequence
// ascending. Min() returns the best ask.
func askLess(a, b Entry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Seq < b.Seq
}

// Book maintains the bid and ask ladders for a single symbol using
// B-trees with a secondary index for removal by order ID.
//
// Book performs no locking of its own: each symbol's book is owned by
// one simulation session, which serializes all access behind its lock.
type Book struct {
	symbol string
	seq    uint64 // arrival sequence, incremented per insert
	bids   *btree.BTreeG[Entry]
	asks   *btree.BTreeG[Entry]
	index  map[uint64]Entry // order_id → entry
}

// NewBook creates an empty order book for the given symbol.
func NewBook(symbol string) *Book {
	const degree = 32
	return &Book{
		symbol: symbol,
		bids:   btree.NewG[Entry](degree, bidLess),
		asks:   btree.NewG[Entry](degree, askLess),
		index:  make(map[uint64]Entry),
	}
}

// Symbol returns the symbol this book belongs to.
func (b *Book) Symbol() string {
	return b.symbol
}

// Insert rests an order at the back of its price level (creating the
// level if absent). The order must have positive remaining quantity.
func (b *Book) Insert(o *domain.Order) {
	b.seq++
	entry := Entry{Price: o.Price, Seq: b.seq, OrderID: o.OrderID, Order: o}
	if o.Side == domain.SideBuy {
		b.bids.ReplaceOrInsert(entry)
	} else {
		b.asks.ReplaceOrInsert(entry)
	}
	b.index[o.OrderID] = entry
}

// Remove deletes a resting order by ID. Returns ErrOrderNotFound if the
// order is not on the book (absent, already filled, or cancelled).
func (b *Book) Remove(orderID uint64) (*domain.Order, error) {
	entry, ok := b.index[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	delete(b.index, orderID)
	if entry.Order.Side == domain.SideBuy {
		b.bids.Delete(entry)
	} else {
		b.asks.Delete(entry)
	}
	return entry.Order, nil
}

// Lookup returns the resting order with the given ID, if any.
func (b *Book) Lookup(orderID uint64) (*domain.Order, bool) {
	entry, ok := b.index[orderID]
	if !ok {
		return nil, false
	}
	return entry.Order, true
}

// BestBid returns the highest-priority bid (highest price, oldest order).
func (b *Book) BestBid() (Entry, bool) {
	return b.bids.Min()
}

// BestAsk returns the highest-priority ask (lowest price, oldest order).
func (b *Book) BestAsk() (Entry, bool) {
	return b.asks.Min()
}

// BestOpposite returns the best entry on the side an order of the given
// side would trade against.
func (b *Book) BestOpposite(side domain.Side) (Entry, bool) {
	if side == domain.SideBuy {
		return b.BestAsk()
	}
	return b.BestBid()
}

// TopBids returns up to n aggregated price levels from the bid side,
// best (highest price) first.
func (b *Book) TopBids(n int) []PriceLevel {
	return topLevels(b.bids, n)
}

// TopAsks returns up to n aggregated price levels from the ask side,
// best (lowest price) first.
func (b *Book) TopAsks(n int) []PriceLevel {
	return topLevels(b.asks, n)
}

// topLevels iterates a side in priority order and aggregates entries
// into at most n price levels.
func topLevels(tree *btree.BTreeG[Entry], n int) []PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(entry Entry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price == entry.Price {
			levels[len(levels)-1].Quantity += entry.Order.Remaining
			levels[len(levels)-1].Orders++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:    entry.Price,
			Quantity: entry.Order.Remaining,
			Orders:   1,
		})
		return true
	})
	return levels
}

// WalkBids iterates bids in priority order (highest price first). The
// callback returns true to continue, false to stop.
func (b *Book) WalkBids(fn func(Entry) bool) {
	b.bids.Ascend(fn)
}

// WalkAsks iterates asks in priority order (lowest price first). The
// callback returns true to continue, false to stop.
func (b *Book) WalkAsks(fn func(Entry) bool) {
	b.asks.Ascend(fn)
}

// AvailableQuantity walks the side opposite the order and sums resting
// quantity at prices the order's limit can reach. The walk stops early
// once the order's remaining quantity is covered. Used by the FOK
// liquidity check.
func (b *Book) AvailableQuantity(o *domain.Order) int64 {
	var total int64
	walk := func(entry Entry) bool {
		if o.Side == domain.SideBuy {
			if entry.Price > o.Price {
				return false
			}
		} else {
			if entry.Price < o.Price {
				return false
			}
		}
		total += entry.Order.Remaining
		return total < o.Remaining
	}
	if o.Side == domain.SideBuy {
		b.WalkAsks(walk)
	} else {
		b.WalkBids(walk)
	}
	return total
}

// BidCount returns the number of individual bid orders on the book.
func (b *Book) BidCount() int {
	return b.bids.Len()
}

// AskCount returns the number of individual ask orders on the book.
func (b *Book) AskCount() int {
	return b.asks.Len()
}

// Len returns the total number of resting orders.
func (b *Book) Len() int {
	return len(b.index)
}

// OrderIDs returns the IDs of all resting orders in a deterministic
// order: bids in priority order, then asks. The random command source
// relies on this determinism when picking cancel/modify targets.
func (b *Book) OrderIDs() []uint64 {
	ids := make([]uint64, 0, len(b.index))
	b.bids.Ascend(func(entry Entry) bool {
		ids = append(ids, entry.OrderID)
		return true
	})
	b.asks.Ascend(func(entry Entry) bool {
		ids = append(ids, entry.OrderID)
		return true
	})
	return ids
}
