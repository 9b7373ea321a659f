package clients

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/ss-insurance/insurance-manager/internal/shared"
	"github.com/ss-insurance/insurance-manager/internal/view"
)

func newTestRouter(t *testing.T) (http.Handler, *memoryRepo, *shared.Session) {
	t.Helper()
	svc, repo, _, _ := newTestService()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	handler := NewHandler(nil, svc, templates, shared.NewCSRFManager("secret"))

	sess := &shared.Session{ID: "s1"}
	sess.SetUser("admin-1")
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/dashboard", handler.MountRoutes)
	return r, repo, sess
}

func postForm(router http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCreateClientRedirectsWithFlash(t *testing.T) {
	router, repo, sess := newTestRouter(t)

	rr := postForm(router, "/dashboard/clients", url.Values{"name": {"Meera"}, "phone": {"99999"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Len(t, repo.rows, 1)
	for id := range repo.rows {
		require.Equal(t, "/dashboard/clients/"+id, rr.Header().Get("Location"))
	}
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	require.Equal(t, "Client added successfully!", flash.Message)
}

func TestCreateClientShowsValidationError(t *testing.T) {
	router, repo, _ := newTestRouter(t)

	rr := postForm(router, "/dashboard/clients", url.Values{"name": {"Meera"}})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "Client Name and Phone are required.")
	require.Contains(t, rr.Body.String(), `value="Meera"`)
	require.Empty(t, repo.rows)
}

func TestEditClientForm(t *testing.T) {
	router, repo, _ := newTestRouter(t)
	id := "00000000-0000-0000-0000-000000000042"
	repo.rows[id] = Client{ID: id, Name: "Old Name", Phone: "1"}

	req := httptest.NewRequest(http.MethodGet, "/dashboard/clients/"+id+"/edit", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `value="Old Name"`)

	rr = postForm(router, "/dashboard/clients/"+id+"/edit", url.Values{"name": {"New Name"}, "phone": {"2"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "New Name", repo.rows[id].Name)

	req = httptest.NewRequest(http.MethodGet, "/dashboard/clients/missing/edit", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
