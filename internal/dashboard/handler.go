package dashboard

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ss-insurance/insurance-manager/internal/auth"
	"github.com/ss-insurance/insurance-manager/internal/shared"
	"github.com/ss-insurance/insurance-manager/internal/view"
)

// ErrorMessage is the headline of the dashboard error page.
const ErrorMessage = "Oops! Something went wrong."

// Handler serves the dashboard pages.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	clock     func() time.Time
}

// NewHandler builds a dashboard handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		clock:     time.Now,
	}
}

// MountRoutes registers the role-dispatched landing page.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showDashboard)
}

// MountAdminRoutes registers admin-only pages.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/clients/{id}", h.showClient)
}

type errorPage struct {
	Heading string
	Detail  string
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	switch sess.Role() {
	case auth.RoleAdmin:
		data, err := h.service.Admin(r.Context(), sess.User(), h.clock())
		if err != nil {
			h.logger.Error("load admin dashboard", slog.Any("error", err))
			h.renderError(w, r, http.StatusInternalServerError, "Failed to load dashboard data.")
			return
		}
		h.render(w, r, "pages/dashboard_admin.html", "Admin Dashboard", data, http.StatusOK)
	case auth.RoleClient:
		data, err := h.service.Client(r.Context(), sess.User())
		if err != nil {
			h.logger.Error("load client dashboard", slog.Any("error", err))
			h.renderError(w, r, http.StatusInternalServerError, "Failed to load your policies.")
			return
		}
		h.render(w, r, "pages/dashboard_client.html", "My Dashboard", data, http.StatusOK)
	default:
		h.renderError(w, r, http.StatusForbidden, "Invalid user role. Please contact support.")
	}
}

func (h *Handler) showClient(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.renderError(w, r, http.StatusNotFound, "Client not found.")
			return
		}
		h.logger.Error("load client detail", slog.Any("error", err))
		h.renderError(w, r, http.StatusInternalServerError, "Failed to load client details.")
		return
	}
	h.render(w, r, "pages/client_detail.html", data.Client.Name, data, http.StatusOK)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	h.render(w, r, "pages/error.html", "Error", errorPage{Heading: ErrorMessage, Detail: detail}, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	err := h.templates.Render(w, template, view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	})
	if err != nil {
		h.logger.Error("render dashboard", slog.String("template", template), slog.Any("error", err))
	}
}
