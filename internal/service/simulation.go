package service

import (
	"booksim/internal/domain"
	"booksim/internal/sim"
)

// StepResponse is the full payload for one step: the command outcome
// merged with a fresh snapshot, matching what the browser UI consumes.
// On a completed or error status the command fields are absent or
// partial but the progress counters are always present.
type StepResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Command string `json:"command,omitempty"`
	Action  string `json:"action,omitempty"`

	OrderID  uint64  `json:"order_id,omitempty"`
	Side     string  `json:"side,omitempty"`
	Price    float64 `json:"price,omitempty"`
	Quantity int64   `json:"quantity,omitempty"`

	Step          int         `json:"step"`
	TotalSteps    int         `json:"total_steps"`
	CurrentSymbol string      `json:"current_symbol,omitempty"`
	Trades        []TradeView `json:"trades,omitempty"`

	TotalTrades   int64       `json:"total_trades"`
	TotalVolume   int64       `json:"total_volume"`
	TotalNotional float64     `json:"total_notional"`
	AvgPrice      *float64    `json:"avg_price"`
	MinPrice      *float64    `json:"min_price"`
	MaxPrice      *float64    `json:"max_price"`
	PriceStd      *float64    `json:"price_std"`
	OrderBook     *BookView   `json:"orderbook,omitempty"`
	RecentTrades  []TradeView `json:"recent_trades"`
}

// StepEvent is what gets pushed to live feed subscribers after a step.
type StepEvent struct {
	Symbol   string
	Response StepResponse
}

// StepPublisher receives step events for fan-out (the websocket hub).
type StepPublisher interface {
	Publish(ev StepEvent)
}

// SimulationService drives the per-symbol simulations and shapes their
// results for the boundary.
type SimulationService struct {
	driver    *sim.Driver
	snapshots *SnapshotService
	symbols   *domain.SymbolRegistry
	publisher StepPublisher // optional
}

// NewSimulationService creates a SimulationService. publisher may be
// nil when no live feed is wired.
func NewSimulationService(
	driver *sim.Driver,
	snapshots *SnapshotService,
	symbols *domain.SymbolRegistry,
	publisher StepPublisher,
) *SimulationService {
	return &SimulationService{
		driver:    driver,
		snapshots: snapshots,
		symbols:   symbols,
		publisher: publisher,
	}
}

// Step advances the symbol's simulation by one command and returns the
// merged result. Terminal and benign-error outcomes come back as
// structured statuses, never as Go errors.
func (s *SimulationService) Step(symbol string) StepResponse {
	res := s.driver.Step(symbol)

	resp := StepResponse{
		Status:     string(res.Status),
		Message:    res.Message,
		Command:    res.Command,
		Action:     string(res.Action),
		OrderID:    res.OrderID,
		Side:       string(res.Side),
		Quantity:   res.Quantity,
		Step:       res.Step,
		TotalSteps: res.TotalSteps,
	}
	if res.Price != 0 {
		resp.Price = domain.CentsToDollars(res.Price)
	}
	if res.Status == sim.StatusCompleted {
		return resp
	}

	snap := s.snapshots.Snapshot(symbol)
	resp.CurrentSymbol = snap.Symbol
	resp.Trades = TradeViews(res.Trades)
	resp.TotalTrades = snap.TotalTrades
	resp.TotalVolume = snap.TotalVolume
	resp.TotalNotional = snap.TotalNotional
	resp.AvgPrice = snap.AvgPrice
	resp.MinPrice = snap.MinPrice
	resp.MaxPrice = snap.MaxPrice
	resp.PriceStd = snap.PriceStd
	resp.OrderBook = &snap.OrderBook
	resp.RecentTrades = snap.RecentTrades

	if s.publisher != nil {
		s.publisher.Publish(StepEvent{Symbol: symbol, Response: resp})
	}
	return resp
}

// State returns the current snapshot for a symbol without mutating
// anything.
func (s *SimulationService) State(symbol string) Snapshot {
	return s.snapshots.Snapshot(symbol)
}

// Reset reinitializes the given symbol, or every active symbol when
// symbol is empty.
func (s *SimulationService) Reset(symbol string) {
	if symbol == "" {
		s.driver.ResetAll()
		return
	}
	s.driver.Reset(symbol)
}

// Symbols lists all symbols that have been touched.
func (s *SimulationService) Symbols() []string {
	return s.symbols.Symbols()
}
