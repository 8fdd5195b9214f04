package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// outboundMessage wraps feed payloads with a type tag.
type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WSHandler upgrades connections onto the live step feed. A client may
// pass ?symbol=S to receive only that symbol's events.
type WSHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates a WSHandler publishing from the given hub.
func NewWSHandler(hub *Hub, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve handles GET /ws.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	sub := h.hub.Subscribe(16)
	done := make(chan struct{})

	// Reader goroutine: discard client messages, detect close.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.hub.Unsubscribe(sub)
		_ = conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.ch:
			if !ok {
				return
			}
			if symbol != "" && ev.Symbol != symbol {
				continue
			}
			if err := conn.WriteJSON(outboundMessage{Type: "step", Data: ev.Response}); err != nil {
				return
			}
		}
	}
}
