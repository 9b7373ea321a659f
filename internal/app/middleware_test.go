package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ss-insurance/insurance-manager/internal/shared"
)

func newStack(t *testing.T) (http.Handler, *shared.SessionManager) {
	t.Helper()
	return newStackWithConfig(t, &Config{AppEnv: "test", AppRequestTimeout: time.Second})
}

func newStackWithConfig(t *testing.T, appCfg *Config) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, "insurance_session", "secret", time.Hour, false)
	cfg := MiddlewareConfig{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:         appCfg,
		SessionManager: sessions,
		CSRFManager:    shared.NewCSRFManager("csrf"),
	}
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	stack := MiddlewareStack(cfg)
	for i := len(stack) - 1; i >= 0; i-- {
		handler = stack[i](handler)
	}
	return handler, sessions
}

func TestStackRedirectsAnonymousDashboard(t *testing.T) {
	handler, _ := newStack(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/clients/new", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))
	require.NotEmpty(t, rec.Result().Cookies())
}

func TestStackRejectsPostWithoutCSRF(t *testing.T) {
	handler, _ := newStack(t)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a%40b.c"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStackExemptsInternalEndpointsFromCSRF(t *testing.T) {
	handler, _ := newStack(t)

	req := httptest.NewRequest(http.MethodPost, "/internal/renewals/check", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestStackSetsSecurityHeaders(t *testing.T) {
	handler, _ := newStack(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestExceptSkipsMiddlewareForPrefixes(t *testing.T) {
	marker := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Wrapped", "1")
			next.ServeHTTP(w, r)
		})
	}
	handler := except(streamingPrefixes, marker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/events", nil))
	require.Empty(t, rec.Header().Get("X-Wrapped"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, "1", rec.Header().Get("X-Wrapped"))
}

func TestCommitWriterFlushCommitsSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	sessions := shared.NewSessionManager(client, "insurance_session", "secret", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/events", nil)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("user-1")

	rec := httptest.NewRecorder()
	w := &responseWriterWithCommit{ResponseWriter: rec, sess: sess, manager: sessions, ctx: context.Background(), req: req}
	w.Flush()

	require.True(t, rec.Flushed)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.True(t, strings.HasPrefix(cookies[0].Value, sess.ID+"."))
	require.True(t, mr.Exists("session:"+sess.ID))
}

func TestStackLimitsCredentialPosts(t *testing.T) {
	handler, _ := newStackWithConfig(t, &Config{AppEnv: "test", AuthRateLimitPerMinute: 2})

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a%40b.c"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}
	require.Equal(t, http.StatusForbidden, post())
	require.Equal(t, http.StatusForbidden, post())
	require.Equal(t, http.StatusTooManyRequests, post())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestOnlyMatchesExactPathAndMethod(t *testing.T) {
	marker := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Wrapped", "1")
			next.ServeHTTP(w, r)
		})
	}
	handler := only(authFormPaths, http.MethodPost, marker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	cases := []struct {
		method, path string
		wrapped      bool
	}{
		{http.MethodPost, "/login", true},
		{http.MethodPost, "/signup", true},
		{http.MethodGet, "/login", false},
		{http.MethodPost, "/logout", false},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		require.Equal(t, tc.wrapped, rec.Header().Get("X-Wrapped") == "1", tc.method+" "+tc.path)
	}
}
