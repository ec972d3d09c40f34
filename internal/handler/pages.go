package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"github.com/yuilabs/minami/internal/templ/pages/landing"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PagesHandler serves the payment landing pages and the health check.
type PagesHandler struct {
	persona string
	db      Pinger
	logger  *slog.Logger
}

// NewPagesHandler creates a new pages handler. db may be nil.
func NewPagesHandler(persona string, db Pinger, logger *slog.Logger) *PagesHandler {
	return &PagesHandler{
		persona: persona,
		db:      db,
		logger:  logger.With("handler", "pages"),
	}
}

// RegisterRoutes registers the landing pages and the health check.
func (h *PagesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /success", h.Success)
	mux.HandleFunc("GET /cancel", h.Cancel)
	mux.HandleFunc("GET /health", h.Health)
}

// Success is shown after Stripe completes a payment.
func (h *PagesHandler) Success(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, landing.Page(landing.SuccessPageData(h.persona)))
}

// Cancel is shown when the user leaves the Stripe page without paying.
func (h *PagesHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, landing.Page(landing.CancelPageData(h.persona)))
}

// Health reports database reachability.
func (h *PagesHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", "error", err)
			status = http.StatusServiceUnavailable
			body = map[string]string{"status": "unavailable", "database": "unreachable"}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *PagesHandler) render(w http.ResponseWriter, r *http.Request, page templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render landing page", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
