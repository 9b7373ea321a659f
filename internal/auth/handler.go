package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ss-insurance/insurance-manager/internal/shared"
	"github.com/ss-insurance/insurance-manager/internal/view"
)

// Messages shown on the login page.
const (
	msgMissingCredentials = "Please enter both email and password."
	msgInvalidCredentials = "Invalid login credentials."
	msgProfileMissing     = "Could not load user profile. Please contact support."
	msgInvalidRole        = "Invalid user role. Please contact support."
	msgSignUpSuccess      = "Sign Up Successful! A confirmation email has been sent. Please log in."
	msgUnconfirmed        = "Please confirm your email before logging in. We sent you a new link."
	msgConfirmed          = "Email confirmed. Please log in."
	msgConfirmInvalid     = "This confirmation link is invalid or has expired."
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/signup", h.showSignUp)
	r.Post("/signup", h.handleSignUp)
	r.Post("/logout", h.handleLogout)
	r.Get("/confirm-email", h.handleConfirmEmail)
}

type loginForm struct {
	Email    string
	Password string
}

type signUpForm struct {
	FullName string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type authPageData struct {
	Email    string
	FullName string
	Errors   map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/login.html", "Login", authPageData{}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	fail := func(message string) {
		data := authPageData{Email: form.Email, Errors: map[string]string{"general": message}}
		h.render(w, r, "pages/login.html", "Login", data, http.StatusBadRequest)
	}

	if form.Email == "" || form.Password == "" {
		fail(msgMissingCredentials)
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if errors.Is(err, shared.ErrEmailUnconfirmed) {
		if errors.Is(err, ErrConfirmationDelivery) {
			h.logger.Error("resend confirmation", slog.Any("error", err))
		}
		fail(msgUnconfirmed)
		return
	}
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("authenticate", slog.Any("error", err))
		}
		fail(msgInvalidCredentials)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	profile, err := h.service.Profile(r.Context(), user.ID)
	if err != nil {
		h.logger.Warn("load profile", slog.String("user_id", user.ID), slog.Any("error", err))
		if sess != nil {
			sess.Clear()
		}
		fail(msgProfileMissing)
		return
	}
	if !profile.HasDashboardRole() {
		h.logger.Warn("invalid role", slog.String("user_id", user.ID), slog.String("role", profile.Role))
		if sess != nil {
			sess.Clear()
		}
		fail(msgInvalidRole)
		return
	}

	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		h.logger.Warn("renew session", slog.Any("error", err))
	}
	h.csrfManager.Rotate(sess)
	sess.SetUser(user.ID)
	sess.SetRole(profile.Role)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *Handler) showSignUp(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/signup.html", "Sign Up", authPageData{}, http.StatusOK)
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := signUpForm{
		FullName: strings.TrimSpace(r.PostFormValue("full_name")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = signUpFieldMessage(fieldErr)
			}
		}
	}

	if len(errs) == 0 {
		user, err := h.service.SignUp(r.Context(), form.FullName, form.Email, form.Password)
		if user != nil && errors.Is(err, ErrConfirmationDelivery) {
			// Stored; the next login attempt re-sends the link.
			h.logger.Error("queue confirmation", slog.String("user_id", user.ID), slog.Any("error", err))
			err = nil
		}
		if err == nil {
			h.redirectWithFlash(w, r, "/login", "success", msgSignUpSuccess)
			return
		}
		if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrEmailTaken) {
			h.logger.Error("sign up", slog.Any("error", err))
		}
		errs["general"] = shared.UserSafeMessage(err)
	}

	data := authPageData{Email: form.Email, FullName: form.FullName, Errors: errs}
	h.render(w, r, "pages/signup.html", "Sign Up", data, http.StatusBadRequest)
}

func (h *Handler) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.ConfirmEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		if !errors.Is(err, ErrInvalidConfirmation) {
			h.logger.Error("confirm email", slog.Any("error", err))
		}
		h.redirectWithFlash(w, r, "/login", "error", msgConfirmInvalid)
		return
	}
	h.logger.Info("email confirmed", slog.String("user_id", user.ID))
	h.redirectWithFlash(w, r, "/login", "success", msgConfirmed)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data authPageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render auth page", slog.String("template", template), slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func signUpFieldMessage(fieldErr validator.FieldError) string {
	switch {
	case fieldErr.Tag() == "required":
		return "Please fill in all fields."
	case fieldErr.Field() == "Email":
		return "Please enter a valid email address."
	case fieldErr.Field() == "Password":
		return "Password must be at least 8 characters."
	default:
		return fieldErr.Error()
	}
}
