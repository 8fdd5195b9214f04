// Package sim generates and applies simulated exchange activity one
// step at a time.
package sim

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand"
	"strconv"
	"strings"

	"booksim/internal/domain"
	"booksim/internal/engine"
)

// Action tags the kind of command a step executed.
type Action string

const (
	ActionNewOrder     Action = "new_order"
	ActionCancel       Action = "cancel"
	ActionModify       Action = "modify"
	ActionVolumeReport Action = "volume_report"
)

// Command is one unit of simulated activity. Fields beyond Action are
// populated per kind: order fields for new_order, OrderID for cancel,
// OrderID plus New* for modify. Raw is the script-form echo shown by
// the UI.
type Command struct {
	Action      Action
	Symbol      string // empty means the session's own symbol
	Side        domain.Side
	TIF         domain.TimeInForce
	Price       int64 // cents
	Quantity    int64
	OrderID     uint64
	NewPrice    *int64
	NewQuantity *int64
	Raw         string
}

// CommandSource produces the next command for a session. Sources see
// the current book so that cancel/modify can target orders that are
// actually resting. Total reports how many steps the source is good
// for; the driver treats it as the session's total_steps.
type CommandSource interface {
	Next(book *engine.Book) Command
	Total() int
}

// RandomSource emits a seeded pseudo-random command stream for one
// symbol. The same seed always reproduces the same stream, which makes
// full runs replayable.
type RandomSource struct {
	symbol string
	rng    *rand.Rand
	steps  int
	ref    int64 // reference price in cents, random-walked per new order
}

// NewRandomSource creates a source for symbol producing steps commands
// from the given seed.
func NewRandomSource(symbol string, seed int64, steps int) *RandomSource {
	return &RandomSource{
		symbol: symbol,
		rng:    rand.New(rand.NewSource(seed)),
		steps:  steps,
		ref:    10000, // 100.00
	}
}

// SeedFor derives a per-symbol seed from a base seed, so independent
// symbols get independent but reproducible streams.
func SeedFor(seed int64, symbol string) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return seed ^ int64(h.Sum64())
}

// NewRandomFactory returns a SourceFactory producing a RandomSource per
// symbol with a seed derived from the base seed.
func NewRandomFactory(seed int64, steps int) SourceFactory {
	return func(symbol string) CommandSource {
		return NewRandomSource(symbol, SeedFor(seed, symbol), steps)
	}
}

// Total returns the configured number of steps.
func (s *RandomSource) Total() int {
	return s.steps
}

// Next picks the next command. New orders dominate; cancel and modify
// are only drawn when orders are resting; volume_report shows up
// occasionally. Prices wander around a per-symbol reference so the two
// sides keep crossing.
func (s *RandomSource) Next(book *engine.Book) Command {
	roll := s.rng.Intn(100)

	if book.Len() > 0 {
		switch {
		case roll < 60:
			return s.newOrder()
		case roll < 75:
			return s.cancel(book)
		case roll < 90:
			return s.modify(book)
		default:
			return s.volumeReport()
		}
	}
	if roll < 90 {
		return s.newOrder()
	}
	return s.volumeReport()
}

func (s *RandomSource) newOrder() Command {
	// Drift the reference, then scatter around it.
	s.ref += int64(s.rng.Intn(51) - 25)
	if s.ref < 100 {
		s.ref = 100
	}
	price := s.ref + int64(s.rng.Intn(401)-200)
	if price < 1 {
		price = 1
	}
	qty := int64(1 + s.rng.Intn(100))

	side := domain.SideBuy
	if s.rng.Intn(2) == 1 {
		side = domain.SideSell
	}

	tif := domain.TIFGTC
	switch s.rng.Intn(20) {
	case 0:
		tif = domain.TIFIOC
	case 1:
		tif = domain.TIFFOK
	}

	return Command{
		Action:   ActionNewOrder,
		Symbol:   s.symbol,
		Side:     side,
		TIF:      tif,
		Price:    price,
		Quantity: qty,
		Raw: fmt.Sprintf("new %s %s LIMIT %s %s %d",
			s.symbol, side, tif, domain.FormatPrice(price), qty),
	}
}

func (s *RandomSource) cancel(book *engine.Book) Command {
	ids := book.OrderIDs()
	id := ids[s.rng.Intn(len(ids))]
	return Command{
		Action:  ActionCancel,
		OrderID: id,
		Raw:     fmt.Sprintf("cancel %d", id),
	}
}

func (s *RandomSource) modify(book *engine.Book) Command {
	ids := book.OrderIDs()
	id := ids[s.rng.Intn(len(ids))]
	price := s.ref + int64(s.rng.Intn(401)-200)
	if price < 1 {
		price = 1
	}
	qty := int64(1 + s.rng.Intn(100))
	return Command{
		Action:      ActionModify,
		OrderID:     id,
		NewPrice:    &price,
		NewQuantity: &qty,
		Raw:         fmt.Sprintf("modify %d %d %s", id, qty, domain.FormatPrice(price)),
	}
}

func (s *RandomSource) volumeReport() Command {
	return Command{
		Action: ActionVolumeReport,
		Raw:    fmt.Sprintf("report %s", s.symbol),
	}
}

// ScriptSource replays a fixed command script. Scripts give tests and
// demos a fully deterministic run.
type ScriptSource struct {
	commands []Command
	pos      int
}

// NewScriptSource parses a script, one command per line. Blank lines
// and lines starting with '#' are skipped. Grammar:
//
//	new <symbol> <side> LIMIT <tif> <price> <quantity>
//	cancel <order_id>
//	modify <order_id> <new_quantity> <new_price>
//	report [symbol]
func NewScriptSource(r io.Reader) (*ScriptSource, error) {
	var commands []Command
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, err := ParseCommand(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		commands = append(commands, cmd)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &ScriptSource{commands: commands}, nil
}

// Total returns the number of commands in the script.
func (s *ScriptSource) Total() int {
	return len(s.commands)
}

// Next returns the next scripted command. Past the end it degrades to
// volume_report no-ops; the driver's step bound stops before that in
// normal operation.
func (s *ScriptSource) Next(_ *engine.Book) Command {
	if s.pos >= len(s.commands) {
		return Command{Action: ActionVolumeReport, Raw: "report"}
	}
	cmd := s.commands[s.pos]
	s.pos++
	return cmd
}

// ParseCommand parses a single script line.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	switch fields[0] {
	case "new":
		if len(fields) != 7 {
			return Command{}, fmt.Errorf("new: want 7 fields, got %d", len(fields))
		}
		side, err := domain.ParseSide(fields[2])
		if err != nil {
			return Command{}, err
		}
		if fields[3] != "LIMIT" && fields[3] != "limit" {
			return Command{}, fmt.Errorf("unsupported order type %q", fields[3])
		}
		tif, err := domain.ParseTimeInForce(fields[4])
		if err != nil {
			return Command{}, err
		}
		price, err := domain.ParsePrice(fields[5])
		if err != nil {
			return Command{}, err
		}
		qty, err := strconv.ParseInt(fields[6], 10, 64)
		if err != nil {
			return Command{}, fmt.Errorf("invalid quantity %q", fields[6])
		}
		return Command{
			Action:   ActionNewOrder,
			Symbol:   fields[1],
			Side:     side,
			TIF:      tif,
			Price:    price,
			Quantity: qty,
			Raw:      line,
		}, nil

	case "cancel":
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("cancel: want 2 fields, got %d", len(fields))
		}
		id, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil || id == domain.InvalidOrderID {
			return Command{}, fmt.Errorf("invalid order id %q", fields[1])
		}
		return Command{Action: ActionCancel, OrderID: id, Raw: line}, nil

	case "modify":
		if len(fields) != 4 {
			return Command{}, fmt.Errorf("modify: want 4 fields, got %d", len(fields))
		}
		id, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil || id == domain.InvalidOrderID {
			return Command{}, fmt.Errorf("invalid order id %q", fields[1])
		}
		qty, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return Command{}, fmt.Errorf("invalid quantity %q", fields[2])
		}
		price, err := domain.ParsePrice(fields[3])
		if err != nil {
			return Command{}, err
		}
		return Command{
			Action:      ActionModify,
			OrderID:     id,
			NewPrice:    &price,
			NewQuantity: &qty,
			Raw:         line,
		}, nil

	case "report":
		cmd := Command{Action: ActionVolumeReport, Raw: line}
		if len(fields) > 1 {
			cmd.Symbol = fields[1]
		}
		return cmd, nil
	}

	return Command{}, fmt.Errorf("unknown command %q", fields[0])
}
