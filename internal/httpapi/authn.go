package httpapi

import (
	"net/http"

	"warboard.gg/internal/auth"
)

// The broadcast channel stays open to unauthenticated clients; the game
// client connects before any operator logs in.
var publicPaths = []string{
	"/api/login",
	"/api/callback",
	"/api/manual-login",
	"/login-failed",
	"/ws",
	"/healthz",
	"/readyz",
	"/metrics",
	"/",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// withSession resolves the session cookie and binds the principal to the
// request context. Non-public paths without a valid session get 401.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := a.opts.Sessions.Resolve(r.Context(), r)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), sess.Principal)
		ctx = auth.ContextWithSessionID(ctx, sess.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
