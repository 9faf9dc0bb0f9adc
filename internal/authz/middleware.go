package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// ClaimSource resolves the persisted claims for a user.
type ClaimSource interface {
	ClaimsForUser(ctx context.Context, userID int64) ([]Claim, error)
}

// Middleware wires permission checks into HTTP handlers.
type Middleware struct {
	Source ClaimSource
	Logger *slog.Logger
}

// Require ensures the current user holds the given token on resource.
func (m Middleware) Require(resource, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := m.currentUserID(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			allowed, err := m.Allowed(r.Context(), userID, resource, token)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz check", slog.Any("error", err), slog.String("resource", resource))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !allowed {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Allowed reports whether userID holds token on resource. Malformed or
// missing claims degrade to a deny, never an error.
func (m Middleware) Allowed(ctx context.Context, userID int64, resource, token string) (bool, error) {
	claims, err := m.Source.ClaimsForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	perm, ok := Decode(claims, resource)
	if !ok {
		return false, nil
	}
	return perm.Allows(token), nil
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("authz parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}
