// Package http exposes the service's read-only query surface plus health,
// readiness, and metrics endpoints. It is the only way other subsystems may
// touch the core's state, and everything it serves comes from the
// last-committed snapshot or the durable store, never from a cycle in
// progress.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/describe"
	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// SnapshotSource yields the last-committed cycle snapshot.
type SnapshotSource interface {
	Current() *domain.Snapshot
}

// Describer produces structured descriptions and spoken audio for live
// alerts.
type Describer interface {
	Describe(identity string) (describe.Description, error)
	DescribeIndex(n int) (describe.Description, error)
	Speak(ctx context.Context, identity string) (describe.AudioRef, error)
}

// HistoryStore queries the durable transition log.
type HistoryStore interface {
	History(ctx context.Context, from, to time.Time) ([]domain.Transition, error)
}

// SubscriberStore manages the subscriber set.
type SubscriberStore interface {
	List(ctx context.Context) ([]domain.Subscriber, error)
	Get(ctx context.Context, id string) (domain.Subscriber, error)
	Put(ctx context.Context, sub domain.Subscriber) error
	Delete(ctx context.Context, id string) error
}

// Server exposes the query API and operational endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer wires all routes. Any collaborator may be exercised by tests
// through ServeHTTP without starting a listener.
func NewServer(addr string, ready ReadinessChecker, snapshots SnapshotSource, describer Describer,
	history HistoryStore, subscribers SubscriberStore, logger *slog.Logger) *Server {

	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	h := &handlers{
		snapshots:   snapshots,
		describer:   describer,
		history:     history,
		subscribers: subscribers,
		logger:      logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/alerts", h.listAlerts)
	mux.HandleFunc("GET /api/v1/alerts/{identity}", h.getAlert)
	mux.HandleFunc("GET /api/v1/alerts/{identity}/description", h.describeAlert)
	mux.HandleFunc("GET /api/v1/alerts/{identity}/audio", h.speakAlert)
	mux.HandleFunc("GET /api/v1/index/{n}", h.getByIndex)
	mux.HandleFunc("GET /api/v1/search", h.searchAlerts)
	mux.HandleFunc("GET /api/v1/history", h.getHistory)

	mux.HandleFunc("GET /api/v1/subscribers", h.listSubscribers)
	mux.HandleFunc("POST /api/v1/subscribers", h.createSubscriber)
	mux.HandleFunc("GET /api/v1/subscribers/{id}", h.getSubscriber)
	mux.HandleFunc("PUT /api/v1/subscribers/{id}", h.updateSubscriber)
	mux.HandleFunc("DELETE /api/v1/subscribers/{id}", h.deleteSubscriber)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
