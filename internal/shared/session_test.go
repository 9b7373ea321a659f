package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "sid", "secret", time.Hour, false), mr
}

func roundTrip(t *testing.T, sm *SessionManager, sess *Session) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestSessionPersistsUserAndFlash(t *testing.T) {
	sm, _ := newTestSessions(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("user-1")
	sess.SetRole("admin")
	sess.AddFlash(FlashMessage{Kind: "success", Message: "Saved"})
	cookie := roundTrip(t, sm, sess)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, sess.ID, loaded.ID)
	require.Equal(t, "user-1", loaded.User())
	require.Equal(t, "admin", loaded.Role())
	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	require.Equal(t, "Saved", flash.Message)
	require.Nil(t, loaded.PopFlash())
}

func TestSessionRejectsForgedCookie(t *testing.T) {
	sm, _ := newTestSessions(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("user-1")
	roundTrip(t, sm, sess)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: sess.ID + ".forged"})
	loaded, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	require.NotEqual(t, sess.ID, loaded.ID)
	require.False(t, loaded.IsAuthenticated())
}

func TestSessionDestroyAndRenew(t *testing.T) {
	sm, mr := newTestSessions(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	roundTrip(t, sm, sess)
	oldID := sess.ID
	require.True(t, mr.Exists("session:"+oldID))

	require.NoError(t, sm.Renew(context.Background(), sess))
	require.NotEqual(t, oldID, sess.ID)
	require.False(t, mr.Exists("session:"+oldID))
	roundTrip(t, sm, sess)
	require.True(t, mr.Exists("session:"+sess.ID))

	sm.Destroy(sess)
	cookie := roundTrip(t, sm, sess)
	require.Negative(t, cookie.MaxAge)
	require.False(t, mr.Exists("session:"+sess.ID))
}

func TestCSRFTokenBoundToSession(t *testing.T) {
	m := NewCSRFManager("k")
	sess := &Session{ID: "s1"}
	token, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	again, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, token, again)

	require.NoError(t, m.VerifyToken(context.Background(), sess, token))
	require.ErrorIs(t, m.VerifyToken(context.Background(), sess, ""), ErrCSRFTokenMissing)
	require.ErrorIs(t, m.VerifyToken(context.Background(), sess, token+"x"), ErrCSRFTokenMismatch)

	// A renewed session id invalidates the stored token.
	sess.ID = "s2"
	require.ErrorIs(t, m.VerifyToken(context.Background(), sess, token), ErrCSRFTokenMismatch)
	fresh, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	require.NotEqual(t, token, fresh)

	m.Rotate(sess)
	require.ErrorIs(t, m.VerifyToken(context.Background(), sess, fresh), ErrCSRFTokenMissing)
}

func TestTokenFromRequestPrefersForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(CSRFHeader, "from-header")
	require.Equal(t, "from-header", TokenFromRequest(req))
}
