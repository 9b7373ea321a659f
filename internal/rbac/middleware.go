// Package rbac guards handlers by the profile role of the signed-in user.
package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ss-insurance/insurance-manager/internal/shared"
)

// RoleResolver looks up the profile role of a user.
type RoleResolver interface {
	RoleOf(ctx context.Context, userID string) (string, error)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Roles  RoleResolver
	Logger *slog.Logger
}

// RequireRole ensures the current user holds one of the given roles. The
// role cached in the session is preferred; when it is absent the profile is
// consulted and the session refreshed.
func (m Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			role, ok := m.currentRole(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if _, granted := allowed[role]; granted {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func (m Middleware) currentRole(r *http.Request) (string, bool) {
	sess := shared.SessionFromContext(r.Context())
	if !sess.IsAuthenticated() {
		return "", false
	}
	if role := sess.Role(); role != "" {
		return strings.ToLower(role), true
	}
	if m.Roles == nil {
		return "", false
	}
	role, err := m.Roles.RoleOf(r.Context(), sess.User())
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac resolve role", slog.String("user_id", sess.User()), slog.Any("error", err))
		}
		return "", false
	}
	sess.SetRole(role)
	return strings.ToLower(role), true
}

func normalizeRoles(roles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role == "" {
			continue
		}
		set[role] = struct{}{}
	}
	return set
}
