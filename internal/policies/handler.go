package policies

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ss-insurance/insurance-manager/internal/clients"
	"github.com/ss-insurance/insurance-manager/internal/shared"
	"github.com/ss-insurance/insurance-manager/internal/view"
)

// Handler serves the add/edit policy forms.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	clients   ClientFinder
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, clientFinder ClientFinder, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, clients: clientFinder, templates: templates, csrf: csrf}
}

// MountRoutes registers the policy form routes on the /dashboard router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/clients/{id}/policies/new", h.showNew)
	r.Post("/clients/{id}/policies", h.create)
	r.Get("/policies/{id}/edit", h.showEdit)
	r.Post("/policies/{id}/edit", h.update)
}

type formPage struct {
	Heading    string
	Action     string
	ClientID   string
	ClientName string
	PolicyID   string
	Form       Input
	Statuses   []string
	Errors     map[string]string
}

func newPolicyPage(client clients.Client) formPage {
	return formPage{
		Heading:    "Add New Policy",
		Action:     "/dashboard/clients/" + client.ID + "/policies",
		ClientID:   client.ID,
		ClientName: client.Name,
		Form:       Input{Status: StatusActive},
	}
}

func editPolicyPage(policy Policy) formPage {
	return formPage{
		Heading:    "Edit Policy",
		Action:     "/dashboard/policies/" + policy.ID + "/edit",
		ClientID:   policy.ClientID,
		ClientName: policy.ClientName,
		PolicyID:   policy.ID,
		Form:       InputFromPolicy(policy),
	}
}

func (h *Handler) showNew(w http.ResponseWriter, r *http.Request) {
	client, err := h.clients.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOrError(w, r, err)
		return
	}
	h.render(w, r, newPolicyPage(client), http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	client, err := h.clients.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOrError(w, r, err)
		return
	}
	input := inputFromForm(r)
	if _, err := h.service.Create(r.Context(), shared.CurrentUserID(r.Context()), client.ID, input); err != nil {
		page := newPolicyPage(client)
		page.Form = input
		h.formError(w, r, page, err)
		return
	}
	h.redirectWithFlash(w, r, "/dashboard/clients/"+client.ID, "success", "Policy added successfully!")
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	policy, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOrError(w, r, err)
		return
	}
	h.render(w, r, editPolicyPage(policy), http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	existing, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOrError(w, r, err)
		return
	}
	input := inputFromForm(r)
	if _, err := h.service.Update(r.Context(), shared.CurrentUserID(r.Context()), existing.ID, input); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.notFoundOrError(w, r, err)
			return
		}
		page := editPolicyPage(existing)
		page.Form = input
		h.formError(w, r, page, err)
		return
	}
	h.redirectWithFlash(w, r, "/dashboard/clients/"+existing.ClientID, "success", "Policy updated successfully!")
}

func inputFromForm(r *http.Request) Input {
	return Input{
		Company:              r.PostFormValue("company"),
		PlanName:             r.PostFormValue("plan_name"),
		PolicyNo:             r.PostFormValue("policy_no"),
		Premium:              r.PostFormValue("premium"),
		DueDate:              r.PostFormValue("due_date"),
		Status:               r.PostFormValue("status"),
		CommissionPercentage: r.PostFormValue("commission_percentage"),
	}
}

func (h *Handler) formError(w http.ResponseWriter, r *http.Request, page formPage, err error) {
	status := http.StatusBadRequest
	if !errors.Is(err, shared.ErrValidation) {
		h.logger.Error("save policy", slog.Any("error", err))
		status = http.StatusInternalServerError
	}
	page.Errors = map[string]string{"general": shared.UserSafeMessage(err)}
	h.render(w, r, page, status)
}

func (h *Handler) notFoundOrError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	h.logger.Error("load policy form", slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page formPage, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	page.Statuses = Statuses
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	err := h.templates.Render(w, "pages/policy_form.html", view.TemplateData{
		Title:       page.Heading,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        page,
	})
	if err != nil {
		h.logger.Error("render policy form", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
