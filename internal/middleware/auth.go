package middleware

import (
	"net/http"
	"strings"

	"github.com/azerweys/panel/backend/internal/service/session"
	"github.com/azerweys/panel/backend/pkg/utils"
)

// LoginPage is where unauthenticated page requests are sent.
const LoginPage = "/login.html"

// RequireLogin rejects requests without a logged in session. API calls get
// 401, page loads are redirected to the login page.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if session.FromContext(r.Context()).Authenticated() {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") {
			utils.RespondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		http.Redirect(w, r, LoginPage, http.StatusFound)
	})
}

// RequireOwner rejects everyone but the owner role. It expects RequireLogin
// to run first.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if !sess.Authenticated() || !sess.User.IsOwner() {
			utils.RespondError(w, http.StatusForbidden, "owner role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOwnerVerified rejects sessions that have not re-entered the owner
// password.
func RequireOwnerVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).OwnerVerified {
			utils.RespondError(w, http.StatusForbidden, "owner verification required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
