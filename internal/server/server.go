package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/webhook-events/internal/dashboard"
	"github.com/webhook-events/internal/github"
	"github.com/webhook-events/internal/pubsub"
	"github.com/webhook-events/internal/store"
)

// GitHub caps webhook payloads at 25 MB.
const maxPayloadBytes = 25 << 20

// Options holds the optional collaborators of a Server.
type Options struct {
	// Publisher mirrors stored events; nil disables mirroring.
	Publisher         pubsub.Publisher
	CORSAllowedOrigin string
	// DashboardRefresh is the tracker page reload period; zero means the default.
	DashboardRefresh time.Duration
}

// Server serves /webhook, /latest-events, /health, /stats and the tracker page at /.
// Depends only on the Store and Publisher interfaces.
type Server struct {
	store     store.Store
	publisher pubsub.Publisher
	http      *http.Server
	log       *slog.Logger
}

// NewServer returns an HTTP server that uses the given Store.
func NewServer(addr string, s store.Store, opts Options) *Server {
	mux := http.NewServeMux()
	srv := &Server{store: s, publisher: opts.Publisher, log: slog.Default()}
	mux.HandleFunc("/webhook", srv.handleWebhook)
	mux.HandleFunc("/latest-events", srv.handleLatestEvents)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/stats", srv.handleStats)
	dashboard.NewHandler(dashboard.HandlerConfig{
		Store:           s,
		RefreshInterval: opts.DashboardRefresh,
		Logger:          srv.log,
	}).RegisterRoutes(mux)
	srv.http = &http.Server{
		Addr:         addr,
		Handler:      logRequests(srv.log, cors(opts.CORSAllowedOrigin, mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

// Handler returns the full handler chain, middleware included.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.log.Debug("webhook method not allowed", "method", r.Method)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	event := r.Header.Get("X-GitHub-Event")

	var body []byte
	if github.NeedsPayload(event) {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			s.log.Error("webhook: read body", "event", event, "err", err)
			writeError(w, err)
			return
		}
	}

	res, err := github.Normalize(event, body)
	if err != nil {
		s.log.Warn("webhook: normalize", "event", event, "err", err)
		writeError(w, err)
		return
	}

	switch res.Kind {
	case github.KindAcknowledged:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Ping received"})
	case github.KindUnsupported:
		s.log.Debug("webhook: unsupported event", "event", event)
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "unsupported event", "received_event": event})
	default:
		// The sender may hang up once the body is read; the write still has to land.
		s.persist(context.WithoutCancel(r.Context()), res.Record)
		writeJSON(w, http.StatusOK, map[string]string{"status": "received", "event_type": event})
	}
}

// persist stores rec and mirrors it. Failures are logged, never returned: the sender
// gets its acknowledgement regardless.
func (s *Server) persist(ctx context.Context, rec *github.Record) {
	rid := requestID(ctx)
	row := &store.EventRecord{
		Action:     rec.Action,
		Author:     rec.Author,
		ToBranch:   rec.ToBranch,
		FromBranch: rec.FromBranch,
		Timestamp:  rec.Timestamp,
	}
	if !s.store.Connected() {
		s.log.Warn("store disconnected, event not saved", "action", row.Action, "request_id", rid)
		return
	}
	id, err := s.store.InsertEvent(ctx, row)
	if err != nil {
		s.log.Warn("insert event", "action", row.Action, "request_id", rid, "err", err)
		return
	}
	s.log.Info("event saved", "id", id, "action", row.Action, "author", row.Author, "to_branch", row.ToBranch, "request_id", rid)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, store.StoredEvent{ID: id, EventRecord: *row}); err != nil {
		s.log.Warn("mirror event", "id", id, "request_id", rid, "err", err)
	}
}

func (s *Server) handleLatestEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.log.Debug("latest events method not allowed", "method", r.Method)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.store.Connected() {
		writeJSON(w, http.StatusInternalServerError, []store.StoredEvent{})
		return
	}
	events, err := s.store.LatestEvents(r.Context(), store.DefaultLatestLimit)
	if err != nil {
		s.log.Error("latest events", "err", err)
		writeJSON(w, http.StatusInternalServerError, []store.StoredEvent{})
		return
	}
	if events == nil {
		events = []store.StoredEvent{}
	}
	s.log.Debug("latest events served", "count", len(events))
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.log.Debug("health check method not allowed", "method", r.Method)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.store.Connected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": store.ErrDisconnected.Error()})
		return
	}
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Warn("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.log.Debug("stats method not allowed", "method", r.Method)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	n, err := s.store.EventsCount(r.Context())
	if err != nil {
		s.log.Error("stats: events count", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Debug("stats served", "events_stored", n)
	writeJSON(w, http.StatusOK, map[string]int64{"events_stored": n})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": err.Error()})
}
