package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"booksim/internal/service"
)

// NewRouter creates a chi router with all routes registered, request
// logging, and CORS for the browser front end.
func NewRouter(
	simSvc *service.SimulationService,
	hub *Hub,
	logger *slog.Logger,
	defaultSymbol string,
	allowedOrigins []string,
) chi.Router {
	r := chi.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	r.Use(c.Handler)

	simH := NewSimHandler(simSvc, defaultSymbol)
	wsH := NewWSHandler(hub, logger)

	r.Group(func(r chi.Router) {
		r.Use(requestLogging(logger))

		// Health check.
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		// Simulation API.
		r.Get("/api/state", simH.State)
		r.Post("/api/step", simH.Step)
		r.Post("/api/reset", simH.Reset)
		r.Get("/api/symbols", simH.Symbols)
	})

	// Live step feed. Registered outside the logging middleware so the
	// websocket upgrade keeps access to the underlying connection.
	r.Get("/ws", wsH.Serve)

	return r
}

// requestLogging returns middleware that assigns each request an id and
// logs method, path, status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.New().String()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}
