// Package service assembles read views and orchestrates simulation
// steps for the HTTP boundary.
package service

import (
	"math"

	"booksim/internal/domain"
	"booksim/internal/engine"
	"booksim/internal/sim"
)

// PriceLevelView is one aggregated level as rendered to the UI.
type PriceLevelView struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Orders   int     `json:"orders"`
}

// BookView holds the top levels of both sides, best first.
type BookView struct {
	Bids []PriceLevelView `json:"bids"`
	Asks []PriceLevelView `json:"asks"`
}

// TradeView is one executed trade as rendered to the UI. Timestamp is
// wall-clock seconds since the epoch.
type TradeView struct {
	TradeID     uint64  `json:"trade_id"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	BuyOrderID  uint64  `json:"buy_order_id"`
	SellOrderID uint64  `json:"sell_order_id"`
	Timestamp   float64 `json:"timestamp"`
}

// Snapshot is the consistent read view for one symbol. Price statistics
// are null until the first trade.
type Snapshot struct {
	Symbol        string       `json:"symbol"`
	RunID         string       `json:"run_id"`
	CurrentStep   int          `json:"current_step"`
	TotalSteps    int          `json:"total_steps"`
	TotalTrades   int64        `json:"total_trades"`
	TotalVolume   int64        `json:"total_volume"`
	TotalNotional float64      `json:"total_notional"`
	AvgPrice      *float64     `json:"avg_price"`
	MinPrice      *float64     `json:"min_price"`
	MaxPrice      *float64     `json:"max_price"`
	PriceStd      *float64     `json:"price_std"`
	OrderBook     BookView     `json:"orderbook"`
	RecentTrades  []TradeView  `json:"recent_trades"`
}

// SnapshotService builds snapshots from driver state. It never mutates
// anything and is safe to call at any time; reads serialize behind the
// per-symbol session lock.
type SnapshotService struct {
	driver *sim.Driver
	depth  int
	recent int
}

// NewSnapshotService creates a SnapshotService returning depth book
// levels per side and up to recent trades.
func NewSnapshotService(driver *sim.Driver, depth, recent int) *SnapshotService {
	return &SnapshotService{driver: driver, depth: depth, recent: recent}
}

// Snapshot returns the current view for a symbol. A symbol that has
// never been stepped yields an empty book and null statistics.
func (s *SnapshotService) Snapshot(symbol string) Snapshot {
	var snap Snapshot
	s.driver.Read(symbol, func(v sim.ReadView) {
		snap = buildSnapshot(v, s.depth, s.recent)
	})
	return snap
}

func buildSnapshot(v sim.ReadView, depth, recent int) Snapshot {
	snap := Snapshot{
		Symbol:        v.Symbol,
		RunID:         v.RunID,
		CurrentStep:   v.Step,
		TotalSteps:    v.TotalSteps,
		TotalTrades:   v.Ledger.TotalTrades(),
		TotalVolume:   v.Ledger.TotalVolume(),
		TotalNotional: domain.CentsToDollars(v.Ledger.TotalNotionalCents()),
		OrderBook: BookView{
			Bids: levelViews(v.Book.TopBids(depth)),
			Asks: levelViews(v.Book.TopAsks(depth)),
		},
		RecentTrades: TradeViews(v.Ledger.Recent(recent)),
	}

	// Prices render with two decimals, the deviation with four.
	prices := v.Ledger.Prices()
	if avg, ok := prices.Avg(); ok {
		f := roundTo(avg, 2)
		snap.AvgPrice = &f
	}
	if min, ok := prices.Min(); ok {
		f := domain.CentsToDollars(min)
		snap.MinPrice = &f
	}
	if max, ok := prices.Max(); ok {
		f := domain.CentsToDollars(max)
		snap.MaxPrice = &f
	}
	if std, ok := prices.StdDev(); ok {
		f := roundTo(std, 4)
		snap.PriceStd = &f
	}
	return snap
}

func roundTo(f float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(f*shift) / shift
}

func levelViews(levels []engine.PriceLevel) []PriceLevelView {
	out := make([]PriceLevelView, len(levels))
	for i, l := range levels {
		out[i] = PriceLevelView{
			Price:    domain.CentsToDollars(l.Price),
			Quantity: l.Quantity,
			Orders:   l.Orders,
		}
	}
	return out
}

// TradeViews converts ledger trades into their rendered form.
func TradeViews(trades []*domain.Trade) []TradeView {
	out := make([]TradeView, len(trades))
	for i, t := range trades {
		out[i] = TradeView{
			TradeID:     t.TradeID,
			Price:       domain.CentsToDollars(t.Price),
			Quantity:    t.Quantity,
			BuyOrderID:  t.BuyOrderID,
			SellOrderID: t.SellOrderID,
			Timestamp:   float64(t.ExecutedAt.UnixNano()) / 1e9,
		}
	}
	return out
}
