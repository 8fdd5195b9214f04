package handler

import (
	"fmt"
	"net/http"

	"booksim/internal/service"
)

// SimHandler serves the simulation API consumed by the browser UI.
type SimHandler struct {
	sim           *service.SimulationService
	defaultSymbol string
}

// NewSimHandler creates a SimHandler. defaultSymbol is used when a
// request omits the symbol query parameter.
func NewSimHandler(sim *service.SimulationService, defaultSymbol string) *SimHandler {
	return &SimHandler{sim: sim, defaultSymbol: defaultSymbol}
}

func (h *SimHandler) symbol(r *http.Request) (string, error) {
	s := r.URL.Query().Get("symbol")
	if s == "" {
		return h.defaultSymbol, nil
	}
	if !validSymbol(s) {
		return "", fmt.Errorf("symbol %q must be 1-12 uppercase letters or digits", s)
	}
	return s, nil
}

// validSymbol bounds what can name a session; sessions are created on
// first access, so junk symbols would otherwise accumulate state.
func validSymbol(s string) bool {
	if len(s) == 0 || len(s) > 12 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Step handles POST /api/step. Completed and benign-error outcomes are
// 200 responses with a structured status; only malformed requests and
// transport-level problems produce HTTP errors.
func (h *SimHandler) Step(w http.ResponseWriter, r *http.Request) {
	symbol, err := h.symbol(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_symbol", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, h.sim.Step(symbol))
}

// State handles GET /api/state. A never-stepped symbol returns an empty
// book with null statistics.
func (h *SimHandler) State(w http.ResponseWriter, r *http.Request) {
	symbol, err := h.symbol(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_symbol", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, h.sim.State(symbol))
}

// Reset handles POST /api/reset. With ?symbol=S only S is reset;
// without it every active symbol is.
func (h *SimHandler) Reset(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol != "" && !validSymbol(symbol) {
		WriteError(w, http.StatusBadRequest, "invalid_symbol",
			fmt.Sprintf("symbol %q must be 1-12 uppercase letters or digits", symbol))
		return
	}
	h.sim.Reset(symbol)
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "simulation reset",
	})
}

// Symbols handles GET /api/symbols, backing the UI's symbol dropdown.
func (h *SimHandler) Symbols(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"symbols": h.sim.Symbols(),
	})
}
