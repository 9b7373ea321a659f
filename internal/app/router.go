package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ss-insurance/insurance-manager/internal/auth"
	"github.com/ss-insurance/insurance-manager/internal/clients"
	"github.com/ss-insurance/insurance-manager/internal/dashboard"
	"github.com/ss-insurance/insurance-manager/internal/notifications"
	"github.com/ss-insurance/insurance-manager/internal/observability"
	"github.com/ss-insurance/insurance-manager/internal/platform/httpx"
	"github.com/ss-insurance/insurance-manager/internal/policies"
	"github.com/ss-insurance/insurance-manager/internal/rbac"
	"github.com/ss-insurance/insurance-manager/internal/realtime"
	"github.com/ss-insurance/insurance-manager/internal/renewals"
	"github.com/ss-insurance/insurance-manager/internal/shared"
	"github.com/ss-insurance/insurance-manager/internal/view"
	"github.com/ss-insurance/insurance-manager/jobs"
	"github.com/ss-insurance/insurance-manager/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	RBACMiddleware rbac.Middleware

	AuthHandler         *auth.Handler
	DashboardHandler    *dashboard.Handler
	ClientHandler       *clients.Handler
	PolicyHandler       *policies.Handler
	NotificationHandler *notifications.Handler
	RealtimeHandler     *realtime.Handler
	RenewalHandler      *renewals.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with the application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		data := view.TemplateData{
			Title:       "Welcome",
			CSRFToken:   csrfToken,
			Flash:       flash,
			CurrentPath: r.URL.Path,
		}
		if err := params.Templates.Render(w, "pages/landing.html", data); err != nil {
			params.Logger.Error("render landing", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	params.AuthHandler.MountRoutes(r)

	r.Route("/dashboard", func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireRole(auth.RoleAdmin, auth.RoleClient))
		if params.RealtimeHandler != nil {
			r.Method(http.MethodGet, "/events", params.RealtimeHandler)
		}
		params.DashboardHandler.MountRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireRole(auth.RoleAdmin))
			params.DashboardHandler.MountAdminRoutes(r)
			params.ClientHandler.MountRoutes(r)
			params.PolicyHandler.MountRoutes(r)
			params.NotificationHandler.MountRoutes(r)
		})
	})

	if params.RenewalHandler != nil {
		r.Route("/internal/renewals", params.RenewalHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := web.Static()
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler caches embedded assets in the browser for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
