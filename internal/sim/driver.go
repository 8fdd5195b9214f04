package sim

import (
	"sync"

	"github.com/google/uuid"

	"booksim/internal/domain"
	"booksim/internal/engine"
	"booksim/internal/store"
)

// StepStatus classifies the outcome of one step.
type StepStatus string

const (
	// StatusSuccess means the command was applied.
	StatusSuccess StepStatus = "success"
	// StatusError means the command could not be applied (e.g. its
	// target order was already gone). The step still counts.
	StatusError StepStatus = "error"
	// StatusCompleted means the session is out of steps; nothing was
	// mutated and nothing will be on further calls.
	StatusCompleted StepStatus = "completed"
)

// StepResult is the structured outcome of one Step call. Step holds the
// zero-based index of the command that ran, matching what the UI shows
// as "step+1 of total".
type StepResult struct {
	Status     StepStatus
	Message    string
	Command    string
	Action     Action
	Step       int
	TotalSteps int
	OrderID    uint64
	Side       domain.Side
	Price      int64
	Quantity   int64
	Trades     []*domain.Trade
}

// session owns everything mutable for one symbol: book, ledger, command
// source, and the step counter. All access is serialized behind mu:
// steps and resets take the write lock, snapshot reads the read lock,
// so matching never interleaves two commands for the same symbol.
type session struct {
	mu         sync.RWMutex
	symbol     string
	runID      string
	book       *engine.Book
	ledger     *store.Ledger
	source     CommandSource
	step       int
	totalSteps int
}

// SourceFactory builds a fresh command source for a symbol. Reset calls
// it again, so a deterministic factory makes reset+replay reproduce an
// equivalent run (order ids keep counting across resets).
type SourceFactory func(symbol string) CommandSource

// Driver advances per-symbol simulations one command per Step call.
// Sessions for different symbols are fully independent and may step in
// parallel.
type Driver struct {
	mu        sync.RWMutex
	sessions  map[string]*session
	matcher   *engine.Matcher
	newSource SourceFactory
	symbols   *domain.SymbolRegistry
}

// NewDriver creates a Driver. The matcher is shared across symbols so
// order and trade IDs stay process-wide monotonic.
func NewDriver(matcher *engine.Matcher, factory SourceFactory, symbols *domain.SymbolRegistry) *Driver {
	return &Driver{
		sessions:  make(map[string]*session),
		matcher:   matcher,
		newSource: factory,
		symbols:   symbols,
	}
}

func newSession(symbol string, source CommandSource) *session {
	return &session{
		symbol:     symbol,
		runID:      uuid.New().String(),
		book:       engine.NewBook(symbol),
		ledger:     store.NewLedger(),
		source:     source,
		totalSteps: source.Total(),
	}
}

// getOrCreate returns the session for a symbol, creating it on first
// access.
func (d *Driver) getOrCreate(symbol string) *session {
	d.mu.RLock()
	s, ok := d.sessions[symbol]
	d.mu.RUnlock()
	if ok {
		return s
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// Double-check after acquiring write lock.
	if s, ok = d.sessions[symbol]; ok {
		return s
	}
	s = newSession(symbol, d.newSource(symbol))
	d.sessions[symbol] = s
	d.symbols.Register(symbol)
	return s
}

// Step generates and applies exactly one command for the symbol. Once
// the step bound is reached it returns a terminal completed status and
// performs no further mutation. A command that fails benignly (cancel
// or modify of a vanished order, invalid scripted values) is reported
// as an error status; the step counter advances exactly once either
// way.
func (d *Driver) Step(symbol string) StepResult {
	s := d.getOrCreate(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step >= s.totalSteps {
		return StepResult{
			Status:     StatusCompleted,
			Message:    "all steps completed",
			Step:       s.step,
			TotalSteps: s.totalSteps,
		}
	}

	cmd := s.source.Next(s.book)
	res := d.apply(s, cmd)
	res.Command = cmd.Raw
	res.Step = s.step
	res.TotalSteps = s.totalSteps
	s.step++
	return res
}

func (d *Driver) apply(s *session, cmd Command) StepResult {
	switch cmd.Action {
	case ActionNewOrder:
		if cmd.Symbol != "" && cmd.Symbol != s.symbol {
			return StepResult{
				Status:  StatusError,
				Action:  cmd.Action,
				Message: domain.ErrSymbolMismatch.Error(),
			}
		}
		order, trades, err := d.matcher.NewOrder(s.book, engine.NewOrderRequest{
			Symbol:   s.symbol,
			Side:     cmd.Side,
			TIF:      cmd.TIF,
			Price:    cmd.Price,
			Quantity: cmd.Quantity,
			Step:     s.step,
		})
		if err != nil {
			return StepResult{Status: StatusError, Action: cmd.Action, Message: err.Error()}
		}
		s.record(trades)
		return StepResult{
			Status:   StatusSuccess,
			Action:   cmd.Action,
			OrderID:  order.OrderID,
			Side:     order.Side,
			Price:    order.Price,
			Quantity: order.Quantity,
			Trades:   trades,
		}

	case ActionCancel:
		if _, err := d.matcher.Cancel(s.book, cmd.OrderID); err != nil {
			return StepResult{
				Status:  StatusError,
				Action:  cmd.Action,
				OrderID: cmd.OrderID,
				Message: err.Error(),
			}
		}
		return StepResult{Status: StatusSuccess, Action: cmd.Action, OrderID: cmd.OrderID}

	case ActionModify:
		order, trades, err := d.matcher.Modify(s.book, cmd.OrderID, engine.ModifyRequest{
			NewPrice:    cmd.NewPrice,
			NewQuantity: cmd.NewQuantity,
		})
		if err != nil {
			return StepResult{
				Status:  StatusError,
				Action:  cmd.Action,
				OrderID: cmd.OrderID,
				Message: err.Error(),
			}
		}
		s.record(trades)
		return StepResult{
			Status:   StatusSuccess,
			Action:   cmd.Action,
			OrderID:  order.OrderID,
			Side:     order.Side,
			Price:    order.Price,
			Quantity: order.Quantity,
			Trades:   trades,
		}

	case ActionVolumeReport:
		// Read-only; the snapshot merged into the response carries the
		// aggregates.
		return StepResult{Status: StatusSuccess, Action: cmd.Action}
	}

	return StepResult{Status: StatusError, Message: "unknown command"}
}

func (s *session) record(trades []*domain.Trade) {
	for _, t := range trades {
		s.ledger.Append(t)
	}
}

// Reset reinitializes the symbol's book, ledger, statistics, and step
// counter. Other symbols are unaffected. Reset always succeeds; a
// symbol that was never stepped just gets a fresh session. With a
// deterministic source the replayed run is identical modulo order and
// trade ids, which are never reused and keep counting across resets.
func (d *Driver) Reset(symbol string) {
	fresh := newSession(symbol, d.newSource(symbol))

	d.mu.Lock()
	old := d.sessions[symbol]
	d.mu.Unlock()

	// Exclude a concurrent step on the outgoing session before
	// publishing the replacement.
	if old != nil {
		old.mu.Lock()
		defer old.mu.Unlock()
	}

	d.mu.Lock()
	d.sessions[symbol] = fresh
	d.mu.Unlock()
	d.symbols.Register(symbol)
}

// ResetAll resets every active symbol.
func (d *Driver) ResetAll() {
	d.mu.RLock()
	symbols := make([]string, 0, len(d.sessions))
	for sym := range d.sessions {
		symbols = append(symbols, sym)
	}
	d.mu.RUnlock()

	for _, sym := range symbols {
		d.Reset(sym)
	}
}

// ReadView is a consistent view of one symbol's state, valid only
// inside the Read callback.
type ReadView struct {
	Symbol     string
	RunID      string
	Step       int
	TotalSteps int
	Book       *engine.Book
	Ledger     *store.Ledger
}

// Read runs fn with a consistent view of the symbol's state, holding
// the session read lock for the duration. fn must not mutate anything
// it is handed.
func (d *Driver) Read(symbol string, fn func(ReadView)) {
	s := d.getOrCreate(symbol)
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(ReadView{
		Symbol:     s.symbol,
		RunID:      s.runID,
		Step:       s.step,
		TotalSteps: s.totalSteps,
		Book:       s.book,
		Ledger:     s.ledger,
	})
}
