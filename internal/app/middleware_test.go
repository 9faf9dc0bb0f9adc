package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian-crm/internal/auth"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

func newSecuredRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := shared.NewSessionManager(client, "meridian_session", time.Hour, false)
	csrf := shared.NewCSRFManager("0123456789abcdef0123456789abcdef")

	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         logger,
		SessionManager: sessions,
		CSRFManager:    csrf,
	}) {
		r.Use(mw)
	}
	authHandler := auth.NewHandler(logger, nil, sessions, csrf, nil)
	r.Route("/api/v1/auth", authHandler.MountRoutes)
	r.Post("/api/v1/mutate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func TestCSRFRejectsTokenlessMutation(t *testing.T) {
	router := newSecuredRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/mutate", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRFTokenBootstrap(t *testing.T) {
	router := newSecuredRouter(t)

	// A fresh anonymous client fetches a token first.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Token string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	// The same session cookie plus the issued token unlocks mutations.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mutate", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	req.Header.Set(shared.CSRFHeader, body.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// The cookie alone, without the header, stays forbidden.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/mutate", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
