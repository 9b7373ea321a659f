package renewals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ss-insurance/insurance-manager/internal/policies"
	"github.com/ss-insurance/insurance-manager/internal/shared"
)

type stubChecker struct {
	result  Result
	err     error
	preview []policies.Policy
	calls   int
}

func (s *stubChecker) Check(ctx context.Context, now time.Time) (Result, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubChecker) Preview(ctx context.Context, now time.Time) ([]policies.Policy, error) {
	return s.preview, s.err
}

func newRouter(t *testing.T, checker Checker) (http.Handler, string) {
	t.Helper()
	token, err := IssueServiceToken("secret", "test", time.Hour, time.Now())
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Route("/internal/renewals", NewHandler(checker, NewTokenVerifier("secret"), nil).MountRoutes)
	return r, token
}

func call(router http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestCheckEndpoint(t *testing.T) {
	checker := &stubChecker{result: Result{Found: 2, Inserted: 1}}
	router, token := newRouter(t, checker)

	rr := call(router, http.MethodPost, "/internal/renewals/check", token)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Check complete. Found 2 policies. Inserted 1 new notifications.", decode(t, rr)["message"])

	checker.err = errors.New("database error: boom")
	rr = call(router, http.MethodPost, "/internal/renewals/check", token)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "database error: boom", decode(t, rr)["error"])
}

func TestCheckEndpointRequiresServiceToken(t *testing.T) {
	checker := &stubChecker{}
	router, _ := newRouter(t, checker)

	rr := call(router, http.MethodPost, "/internal/renewals/check", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "unauthorized", decode(t, rr)["error"])

	rr = call(router, http.MethodPost, "/internal/renewals/check", "garbage")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Zero(t, checker.calls)
}

func TestPreflight(t *testing.T) {
	router, _ := newRouter(t, &stubChecker{})

	rr := call(router, http.MethodOptions, "/internal/renewals/check", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
	require.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "authorization")
}

func TestPreviewEndpoint(t *testing.T) {
	checker := &stubChecker{preview: []policies.Policy{{
		ID: "p1", PlanName: "Gold", PolicyNo: "G-1",
		DueDate:    time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		ClientName: "Anita", ClientPhone: "999", ClientEmail: "a@example.com",
	}}}
	router, token := newRouter(t, checker)

	rr := call(router, http.MethodGet, "/internal/renewals/preview", token)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	require.Equal(t, true, body["success"])
	require.EqualValues(t, 1, body["count"])
	first := body["policies"].([]any)[0].(map[string]any)
	require.Equal(t, "2024-03-11", first["due_date"])
	require.Equal(t, "Anita", first["clients"].(map[string]any)["name"])

	checker.err = errors.New("down")
	rr = call(router, http.MethodGet, "/internal/renewals/preview", token)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "Failed to check renewals", decode(t, rr)["error"])
}

func TestCheckEndpointSharesJobLock(t *testing.T) {
	mr := miniredis.RunT(t)
	locker := shared.NewRedisLocker(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	checker := &stubChecker{result: Result{Found: 1, Inserted: 1}}

	token, err := IssueServiceToken("secret", "test", time.Hour, time.Now())
	require.NoError(t, err)
	handler := NewHandler(checker, NewTokenVerifier("secret"), nil)
	handler.Locker = locker
	r := chi.NewRouter()
	r.Route("/internal/renewals", handler.MountRoutes)

	release, err := locker.Acquire(context.Background(), CheckLockKey, time.Minute)
	require.NoError(t, err)

	rr := call(r, http.MethodPost, "/internal/renewals/check", token)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "Renewal check already running", decode(t, rr)["error"])
	require.Zero(t, checker.calls)

	require.NoError(t, release(context.Background()))
	rr = call(r, http.MethodPost, "/internal/renewals/check", token)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, checker.calls)
	require.False(t, mr.Exists(CheckLockKey), "lock released after the run")
}
