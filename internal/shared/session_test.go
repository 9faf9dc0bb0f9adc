package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionFixture(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "meridian_session", time.Hour, false), mr
}

func TestSessionLoadWithoutCookieCreatesFresh(t *testing.T) {
	sm, _ := newSessionFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)

	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Empty(t, sess.User())
}

func TestSessionRoundTrip(t *testing.T) {
	sm, _ := newSessionFixture(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)

	sess.SetUser("42")
	sess.Set("csrf", "token-value")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, "meridian_session", cookie.Name)
	assert.Equal(t, sess.ID, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookie)
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, "42", loaded.User())
	assert.Equal(t, "token-value", loaded.Get("csrf"))
}

func TestSessionExpiresWithTTL(t *testing.T) {
	sm, mr := newSessionFixture(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("7")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))

	mr.FastForward(2 * time.Hour)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(rec.Result().Cookies()[0])
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	assert.Empty(t, loaded.User(), "expired sessions come back anonymous")
}

func TestSessionDestroy(t *testing.T) {
	sm, mr := newSessionFixture(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("13")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	require.True(t, mr.Exists("session:"+sess.ID))

	sm.Destroy(sess)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))

	assert.False(t, mr.Exists("session:"+sess.ID))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}

func TestSessionDeleteMarksDirty(t *testing.T) {
	sm, _ := newSessionFixture(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set("theme", "dark")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))

	cookie := &http.Cookie{Name: sm.CookieName(), Value: sess.ID}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	loaded.Delete("theme")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), loaded))

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.AddCookie(cookie)
	final, err := sm.Load(ctx, again)
	require.NoError(t, err)
	assert.Empty(t, final.Get("theme"))
}
