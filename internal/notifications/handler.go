package notifications

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ss-insurance/insurance-manager/internal/shared"
)

// Handler serves the read/read-all actions of the notification panel.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes on the /dashboard router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/notifications/read-all", h.markAllRead)
	r.Post("/notifications/{id}/read", h.markRead)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	err := h.service.MarkRead(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrNotFound):
		http.NotFound(w, r)
		return
	default:
		h.logger.Error("mark notification read", slog.Any("error", err))
		h.redirectWithFlash(w, r, "danger", "Could not update the notification.")
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.MarkAllRead(r.Context()); err != nil {
		h.logger.Error("mark all notifications read", slog.Any("error", err))
		h.redirectWithFlash(w, r, "danger", "Could not update notifications.")
		return
	}
	h.redirectWithFlash(w, r, "success", "All notifications marked as read.")
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
