package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/yuilabs/minami/internal/domain"
	"github.com/yuilabs/minami/internal/service"
)

// RedirectHandler resolves checkout short links.
type RedirectHandler struct {
	links     service.LinkIssuer
	dbTimeout time.Duration
	logger    *slog.Logger
}

// NewRedirectHandler creates a new short link handler. dbTimeout bounds the
// short code lookup.
func NewRedirectHandler(links service.LinkIssuer, dbTimeout time.Duration, logger *slog.Logger) *RedirectHandler {
	if dbTimeout <= 0 {
		dbTimeout = defaultDBTimeout
	}
	return &RedirectHandler{
		links:     links,
		dbTimeout: dbTimeout,
		logger:    logger.With("handler", "redirect"),
	}
}

// RegisterRoutes registers GET /s/{code}, wrapped by limit when given.
func (h *RedirectHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	var handler http.Handler = http.HandlerFunc(h.Redirect)
	if limit != nil {
		handler = limit(handler)
	}
	mux.Handle("GET /s/{code}", handler)
}

// Redirect sends the user to the checkout page behind a short code.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	ctx, cancel := context.WithTimeout(r.Context(), h.dbTimeout)
	defer cancel()

	link, err := h.links.Resolve(ctx, code)
	if err != nil {
		if domain.IsNotFound(err) {
			NotFoundResponse(w, r, h.logger)
			return
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, link.CheckoutURL, http.StatusFound)
}
