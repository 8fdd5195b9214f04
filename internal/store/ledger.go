// Package store holds the in-memory trade ledger and its running
// statistics.
package store

import (
	"math"

	"booksim/internal/domain"
)

// PriceStats maintains running statistics over trade prices using
// Welford's method, so mean and variance stay numerically stable over
// long runs. All accessors report "no data" until the first trade.
type PriceStats struct {
	count    int64
	mean     float64 // dollars
	m2       float64
	minCents int64
	maxCents int64
}

// Observe folds one trade price (in cents) into the statistics.
func (p *PriceStats) Observe(priceCents int64) {
	x := domain.CentsToDollars(priceCents)
	p.count++
	delta := x - p.mean
	p.mean += delta / float64(p.count)
	p.m2 += delta * (x - p.mean)

	if p.count == 1 || priceCents < p.minCents {
		p.minCents = priceCents
	}
	if p.count == 1 || priceCents > p.maxCents {
		p.maxCents = priceCents
	}
}

// Count returns the number of observed trades.
func (p *PriceStats) Count() int64 {
	return p.count
}

// Avg returns the mean trade price in dollars.
func (p *PriceStats) Avg() (float64, bool) {
	if p.count == 0 {
		return 0, false
	}
	return p.mean, true
}

// Min returns the lowest trade price in cents.
func (p *PriceStats) Min() (int64, bool) {
	if p.count == 0 {
		return 0, false
	}
	return p.minCents, true
}

// Max returns the highest trade price in cents.
func (p *PriceStats) Max() (int64, bool) {
	if p.count == 0 {
		return 0, false
	}
	return p.maxCents, true
}

// StdDev returns the population standard deviation of trade prices in
// dollars.
func (p *PriceStats) StdDev() (float64, bool) {
	if p.count == 0 {
		return 0, false
	}
	variance := p.m2 / float64(p.count)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance), true
}

// Ledger is the append-only record of executed trades for one symbol,
// with incrementally maintained aggregates. Trades are never mutated or
// deleted; reset replaces the whole ledger.
//
// Like the Book, a Ledger is owned by a single simulation session and
// relies on the session lock for serialization.
type Ledger struct {
	trades        []*domain.Trade
	totalVolume   int64
	notionalCents int64
	prices        PriceStats
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records a trade in execution order and updates the aggregates.
func (l *Ledger) Append(t *domain.Trade) {
	l.trades = append(l.trades, t)
	l.totalVolume += t.Quantity
	l.notionalCents += t.Price * t.Quantity
	l.prices.Observe(t.Price)
}

// Recent returns up to k most recent trades, oldest first. The returned
// slice is a copy.
func (l *Ledger) Recent(k int) []*domain.Trade {
	if k <= 0 || len(l.trades) == 0 {
		return []*domain.Trade{}
	}
	start := len(l.trades) - k
	if start < 0 {
		start = 0
	}
	out := make([]*domain.Trade, len(l.trades)-start)
	copy(out, l.trades[start:])
	return out
}

// All returns every trade in execution order. The returned slice is a
// copy.
func (l *Ledger) All() []*domain.Trade {
	out := make([]*domain.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// TotalTrades returns the number of executed trades.
func (l *Ledger) TotalTrades() int64 {
	return int64(len(l.trades))
}

// TotalVolume returns the sum of traded quantity.
func (l *Ledger) TotalVolume() int64 {
	return l.totalVolume
}

// TotalNotionalCents returns the sum of price×quantity in cents.
func (l *Ledger) TotalNotionalCents() int64 {
	return l.notionalCents
}

// Prices exposes the running price statistics.
func (l *Ledger) Prices() *PriceStats {
	return &l.prices
}
