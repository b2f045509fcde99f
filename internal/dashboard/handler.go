package dashboard

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/webhook-events/internal/store"
)

// DefaultRefreshInterval is how often the tracker page reloads itself.
const DefaultRefreshInterval = 15 * time.Second

// Handler serves the tracker page at "/".
type Handler struct {
	renderer Renderer
	store    store.Store
	refresh  time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// HandlerConfig holds configuration for creating a new Handler. Zero fields get defaults.
type HandlerConfig struct {
	Renderer        Renderer
	Store           store.Store
	RefreshInterval time.Duration
	Logger          *slog.Logger
	Now             func() time.Time
}

// NewHandler creates a new Handler with injected dependencies.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		renderer: cfg.Renderer,
		store:    cfg.Store,
		refresh:  cfg.RefreshInterval,
		log:      cfg.Logger,
		now:      cfg.Now,
	}
	if h.renderer == nil {
		h.renderer = NewHTMLRenderer()
	}
	if h.refresh <= 0 {
		h.refresh = DefaultRefreshInterval
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// RegisterRoutes registers the tracker page. "/" is the mux catch-all, so any
// other unmatched path gets a 404 from handleTracker.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.handleTracker)
}

func (h *Handler) handleTracker(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.log.Debug("tracker method not allowed", "method", r.Method)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	page := TrackerPage{
		LastUpdated:    h.now(),
		RefreshSeconds: int(h.refresh / time.Second),
	}
	if h.store.Connected() {
		events, err := h.store.LatestEvents(r.Context(), store.DefaultLatestLimit)
		if err != nil {
			h.log.Error("tracker: latest events", "err", err)
		} else {
			page.Live = true
			page.Events = events
		}
	}

	var buf bytes.Buffer
	if err := h.renderer.RenderTracker(&buf, page); err != nil {
		h.log.Error("tracker: render", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
