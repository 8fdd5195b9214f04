package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"booksim/internal/domain"
	"booksim/internal/engine"
	"booksim/internal/service"
	"booksim/internal/sim"
)

func newTestRouter(t *testing.T, script string) (http.Handler, *Hub) {
	t.Helper()
	factory := func(symbol string) sim.CommandSource {
		src, err := sim.NewScriptSource(strings.NewReader(script))
		if err != nil {
			t.Fatalf("bad test script: %v", err)
		}
		return src
	}
	registry := domain.NewSymbolRegistry()
	driver := sim.NewDriver(engine.NewMatcher(), factory, registry)
	hub := NewHub()
	simSvc := service.NewSimulationService(driver, service.NewSnapshotService(driver, 5, 20), registry, hub)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(simSvc, hub, logger, "AAPL", []string{"*"}), hub
}

func doJSON(t *testing.T, h http.Handler, method, target string) (int, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("%s %s: Content-Type = %q", method, target, ct)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s %s: bad JSON body %q: %v", method, target, rec.Body.String(), err)
	}
	return rec.Code, body
}

func rawString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("not a JSON string: %s", raw)
	}
	return s
}

func TestHealthz(t *testing.T) {
	h, _ := newTestRouter(t, "report\n")
	code, body := doJSON(t, h, http.MethodGet, "/healthz")
	if code != http.StatusOK || rawString(t, body["status"]) != "ok" {
		t.Errorf("healthz = %d %v", code, body)
	}
}

func TestStateFreshSymbol(t *testing.T) {
	h, _ := newTestRouter(t, "report\n")
	code, body := doJSON(t, h, http.MethodGet, "/api/state")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if rawString(t, body["symbol"]) != "AAPL" {
		t.Errorf("default symbol = %s", body["symbol"])
	}
	if string(body["current_step"]) != "0" {
		t.Errorf("current_step = %s", body["current_step"])
	}
	// Null statistics are rendered explicitly, not omitted.
	if string(body["avg_price"]) != "null" {
		t.Errorf("avg_price = %s, want null", body["avg_price"])
	}
	if string(body["price_std"]) != "null" {
		t.Errorf("price_std = %s, want null", body["price_std"])
	}
}

func TestStateSymbolOverride(t *testing.T) {
	h, _ := newTestRouter(t, "report\n")
	_, body := doJSON(t, h, http.MethodGet, "/api/state?symbol=MSFT")
	if rawString(t, body["symbol"]) != "MSFT" {
		t.Errorf("symbol = %s", body["symbol"])
	}
}

func TestStepThroughCompletion(t *testing.T) {
	h, _ := newTestRouter(t, `
new AAPL BUY LIMIT GTC 100.00 10
new AAPL SELL LIMIT GTC 99.00 4
`)

	code, body := doJSON(t, h, http.MethodPost, "/api/step")
	if code != http.StatusOK || rawString(t, body["status"]) != "success" {
		t.Fatalf("step 1 = %d %v", code, body)
	}
	if rawString(t, body["action"]) != "new_order" {
		t.Errorf("action = %s", body["action"])
	}
	if string(body["step"]) != "0" || string(body["total_steps"]) != "2" {
		t.Errorf("progress = %s/%s", body["step"], body["total_steps"])
	}

	_, body = doJSON(t, h, http.MethodPost, "/api/step")
	var trades []map[string]json.RawMessage
	if err := json.Unmarshal(body["trades"], &trades); err != nil || len(trades) != 1 {
		t.Fatalf("trades = %s", body["trades"])
	}
	if string(trades[0]["price"]) != "100" {
		t.Errorf("trade price = %s, want resting price 100", trades[0]["price"])
	}
	if string(body["total_volume"]) != "4" {
		t.Errorf("total_volume = %s", body["total_volume"])
	}

	// Past the end: terminal status, still 200.
	code, body = doJSON(t, h, http.MethodPost, "/api/step")
	if code != http.StatusOK || rawString(t, body["status"]) != "completed" {
		t.Errorf("terminal step = %d %v", code, body)
	}
	if string(body["step"]) != "2" {
		t.Errorf("terminal step index = %s", body["step"])
	}
}

func TestResetEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, "new AAPL BUY LIMIT GTC 100.00 10\n")

	doJSON(t, h, http.MethodPost, "/api/step")
	doJSON(t, h, http.MethodPost, "/api/step?symbol=MSFT")

	code, body := doJSON(t, h, http.MethodPost, "/api/reset?symbol=AAPL")
	if code != http.StatusOK || rawString(t, body["status"]) != "success" {
		t.Fatalf("reset = %d %v", code, body)
	}

	_, body = doJSON(t, h, http.MethodGet, "/api/state?symbol=AAPL")
	if string(body["current_step"]) != "0" {
		t.Errorf("AAPL step after reset = %s", body["current_step"])
	}
	_, body = doJSON(t, h, http.MethodGet, "/api/state?symbol=MSFT")
	if string(body["current_step"]) != "1" {
		t.Errorf("MSFT step should survive a scoped reset, got %s", body["current_step"])
	}

	// Reset without a symbol clears everything.
	doJSON(t, h, http.MethodPost, "/api/reset")
	_, body = doJSON(t, h, http.MethodGet, "/api/state?symbol=MSFT")
	if string(body["current_step"]) != "0" {
		t.Errorf("MSFT step after reset-all = %s", body["current_step"])
	}
}

func TestSymbolsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, "report\n")
	doJSON(t, h, http.MethodGet, "/api/state?symbol=MSFT")
	doJSON(t, h, http.MethodGet, "/api/state")

	_, body := doJSON(t, h, http.MethodGet, "/api/symbols")
	var symbols []string
	if err := json.Unmarshal(body["symbols"], &symbols); err != nil {
		t.Fatalf("symbols = %s", body["symbols"])
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "MSFT" {
		t.Errorf("symbols = %v, want sorted [AAPL MSFT]", symbols)
	}
}

func TestMalformedSymbolRejected(t *testing.T) {
	h, _ := newTestRouter(t, "report\n")

	// Lowercase, punctuation, and over-length symbols are all rejected.
	for _, target := range []string{
		"/api/state?symbol=aapl",
		"/api/state?symbol=AA-PL",
		"/api/step?symbol=TOOLONGSYMBOL1",
		"/api/reset?symbol=bad!",
	} {
		method := http.MethodGet
		if strings.Contains(target, "step") || strings.Contains(target, "reset") {
			method = http.MethodPost
		}
		code, body := doJSON(t, h, method, target)
		if code != http.StatusBadRequest {
			t.Errorf("%s %s = %d, want 400", method, target, code)
		}
		if rawString(t, body["error"]) != "invalid_symbol" {
			t.Errorf("%s %s error = %s", method, target, body["error"])
		}
	}

	// A junk symbol must not create a session.
	_, body := doJSON(t, h, http.MethodGet, "/api/symbols")
	var symbols []string
	if err := json.Unmarshal(body["symbols"], &symbols); err != nil || len(symbols) != 0 {
		t.Errorf("symbols after rejected requests = %s", body["symbols"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestRouter(t, "report\n")
	req := httptest.NewRequest(http.MethodGet, "/api/step", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/step = %d, want 405", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestRouter(t, "report\n")
	req := httptest.NewRequest(http.MethodOptions, "/api/step", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestHubFanOutAndFiltering(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe(4)
	b := hub.Subscribe(4)

	ev := service.StepEvent{Symbol: "AAPL"}
	hub.Publish(ev)

	for _, sub := range []*subscription{a, b} {
		select {
		case got := <-sub.ch:
			if got.Symbol != "AAPL" {
				t.Errorf("event symbol = %q", got.Symbol)
			}
		default:
			t.Fatal("subscriber missed the event")
		}
	}

	hub.Unsubscribe(b)
	hub.Publish(ev)
	if _, ok := <-b.ch; ok {
		t.Error("unsubscribed channel should be closed and drained")
	}
	if got := <-a.ch; got.Symbol != "AAPL" {
		t.Errorf("remaining subscriber got %+v", got)
	}
}

func TestHubFullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(1)

	hub.Publish(service.StepEvent{Symbol: "AAPL"})
	done := make(chan struct{})
	go func() {
		hub.Publish(service.StepEvent{Symbol: "MSFT"}) // buffer full, dropped
		close(done)
	}()
	<-done

	if got := <-sub.ch; got.Symbol != "AAPL" {
		t.Errorf("buffered event = %+v", got)
	}
	select {
	case got := <-sub.ch:
		t.Errorf("overflow event should be dropped, got %+v", got)
	default:
	}
}
