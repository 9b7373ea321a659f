// Package guard redirects requests between the public auth pages and the
// dashboard depending on whether the session is signed in.
package guard

import (
	"net/http"
	"strings"

	"github.com/ss-insurance/insurance-manager/internal/shared"
)

const (
	loginPath     = "/login"
	signupPath    = "/signup"
	dashboardPath = "/dashboard"
)

// Routes returns the route-guard middleware. It must run after the session
// has been loaded into the request context.
func Routes() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signedIn := shared.SessionFromContext(r.Context()).IsAuthenticated()
			path := r.URL.Path
			switch {
			case !signedIn && isDashboard(path):
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			case signedIn && isAuthPage(path):
				http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isDashboard(path string) bool {
	return path == dashboardPath || strings.HasPrefix(path, dashboardPath+"/")
}

func isAuthPage(path string) bool {
	return strings.HasPrefix(path, loginPath) || strings.HasPrefix(path, signupPath)
}
