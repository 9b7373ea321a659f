package clients

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ss-insurance/insurance-manager/internal/shared"
	"github.com/ss-insurance/insurance-manager/internal/view"
)

// Handler serves the add/edit client forms.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf}
}

// MountRoutes registers the client form routes on the /dashboard router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/clients/new", h.showNew)
	r.Post("/clients", h.create)
	r.Get("/clients/{id}/edit", h.showEdit)
	r.Post("/clients/{id}/edit", h.update)
}

type formPage struct {
	Heading  string
	Action   string
	ClientID string
	Form     Input
	Errors   map[string]string
}

func (h *Handler) showNew(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Add New Client", formPage{Heading: "Add New Client", Action: "/dashboard/clients"}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	input := inputFromForm(r)
	client, err := h.service.Create(r.Context(), shared.CurrentUserID(r.Context()), input)
	if err != nil {
		h.formError(w, r, formPage{Heading: "Add New Client", Action: "/dashboard/clients", Form: input}, err)
		return
	}
	h.redirectWithFlash(w, r, "/dashboard/clients/"+client.ID, "success", "Client added successfully!")
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	client, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.notFoundOrError(w, r, err)
		return
	}
	page := formPage{
		Heading:  "Edit Client",
		Action:   "/dashboard/clients/" + client.ID + "/edit",
		ClientID: client.ID,
		Form:     Input{Name: client.Name, Phone: client.Phone, Email: client.Email, DOB: client.DOBString()},
	}
	h.render(w, r, "Edit Client", page, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	input := inputFromForm(r)
	client, err := h.service.Update(r.Context(), shared.CurrentUserID(r.Context()), id, input)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.notFoundOrError(w, r, err)
			return
		}
		h.formError(w, r, formPage{Heading: "Edit Client", Action: "/dashboard/clients/" + id + "/edit", ClientID: id, Form: input}, err)
		return
	}
	h.redirectWithFlash(w, r, "/dashboard/clients/"+client.ID, "success", "Client updated successfully!")
}

func inputFromForm(r *http.Request) Input {
	return Input{
		Name:  r.PostFormValue("name"),
		Phone: r.PostFormValue("phone"),
		Email: r.PostFormValue("email"),
		DOB:   r.PostFormValue("dob"),
	}
}

func (h *Handler) formError(w http.ResponseWriter, r *http.Request, page formPage, err error) {
	status := http.StatusBadRequest
	if !errors.Is(err, shared.ErrValidation) {
		h.logger.Error("save client", slog.Any("error", err))
		status = http.StatusInternalServerError
	}
	page.Errors = map[string]string{"general": shared.UserSafeMessage(err)}
	h.render(w, r, page.Heading, page, status)
}

func (h *Handler) notFoundOrError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	h.logger.Error("load client", slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, title string, page formPage, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	err := h.templates.Render(w, "pages/client_form.html", view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        page,
	})
	if err != nil {
		h.logger.Error("render client form", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
