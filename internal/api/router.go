// Package api exposes the capture session over HTTP for the presentation
// layer and for operators.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voxilabs/voxi-core/internal/capture"
	"github.com/voxilabs/voxi-core/internal/classify"
	"github.com/voxilabs/voxi-core/internal/eventstore"
	"github.com/voxilabs/voxi-core/internal/notes"
)

// Options are the dependencies the router serves from.
type Options struct {
	Session    *capture.Session
	Notes      *notes.Store
	Categories *classify.CategorySet
	Journal    *eventstore.Store
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Ready backs /readyz. A nil func always reports ready.
	Ready  func() bool
	Logger *slog.Logger
}

type handlers struct {
	Options
	log *slog.Logger
}

// NewRouter constructs the HTTP router.
func NewRouter(opts Options) http.Handler {
	h := &handlers{Options: opts, log: opts.Logger.With(slog.String("component", "api"))}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", h.ready)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/capture", func(r chi.Router) {
			r.Get("/", h.captureState)
			r.Post("/toggle", h.toggle)
			r.Post("/save", h.save)
			r.Post("/discard", h.discard)
		})
		r.Get("/notes", h.listNotes)
		r.Post("/notes/delete", h.deleteNotes)
		r.Get("/categories", h.listCategories)
		r.Post("/categories", h.addCategory)
		r.Get("/sessions", h.listSessions)
		r.Get("/sessions/{id}/events", h.sessionEvents)
	})

	return r
}

func (h *handlers) ready(w http.ResponseWriter, _ *http.Request) {
	if h.Ready == nil || h.Ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

func (h *handlers) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}
