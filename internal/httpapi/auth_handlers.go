package httpapi

import (
	"errors"
	"html"
	"net/http"
	"net/url"

	"warboard.gg/internal/audit"
	"warboard.gg/internal/auth"
	"warboard.gg/internal/discord"
)

type manualLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.opts.Broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, "discord login is not configured")
		return
	}
	a.opts.Broker.BeginHandshake(w, r)
}

func (a *API) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.opts.Broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, "discord login is not configured")
		return
	}

	if err := a.opts.Broker.VerifyState(w, r); err != nil {
		redirectLoginFailed(w, r, "login session expired, please try again")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		redirectLoginFailed(w, r, "authorization was cancelled")
		return
	}

	principal, err := a.opts.Broker.CompleteHandshake(r.Context(), w, code)
	if err != nil {
		var denied *discord.AccessDeniedError
		switch {
		case errors.As(err, &denied):
			_ = audit.LogEvent(r.Context(), "auth.denied", map[string]any{"reason": denied.Reason})
			redirectLoginFailed(w, r, denied.Reason)
		default:
			redirectLoginFailed(w, r, "authentication failed")
		}
		return
	}

	ctx := auth.ContextWithPrincipal(r.Context(), principal)
	_ = audit.LogEvent(ctx, "auth.login", map[string]any{
		"username": principal.Username,
		"roblox":   principal.RobloxUsername,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func redirectLoginFailed(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, "/login-failed?reason="+url.QueryEscape(reason), http.StatusFound)
}

func (a *API) handleManualLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.opts.Manual.Enabled() {
		writeError(w, r, http.StatusServiceUnavailable, "manual login is not configured")
		return
	}

	var req manualLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	principal, err := a.opts.Manual.Authenticate(req.Username, req.Password)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if _, err := a.opts.Sessions.Create(r.Context(), w, principal); err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not establish session")
		return
	}

	ctx := auth.ContextWithPrincipal(r.Context(), principal)
	_ = audit.LogEvent(ctx, "auth.login", map[string]any{
		"username": principal.Username,
		"manual":   true,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": map[string]any{
			"username":       principal.Username,
			"robloxUsername": principal.RobloxUsername,
		},
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	removed, _ := a.opts.Sessions.Destroy(r.Context(), w, r)
	if removed != nil {
		ctx := auth.ContextWithPrincipal(r.Context(), removed.Principal)
		_ = audit.LogEvent(ctx, "auth.logout", nil)
	}

	// Provider-backed sessions can be ended at the provider too.
	if removed != nil && !removed.Principal.IsManualLogin && a.opts.EndSessionURL != "" {
		http.Redirect(w, r, a.opts.EndSessionURL, http.StatusFound)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *API) handleAuthUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":              p.ID,
		"username":        p.Username,
		"email":           p.Email,
		"avatar":          p.Avatar,
		"robloxUsername":  p.RobloxUsername,
		"discordUsername": p.Username,
		"guilds":          p.Guilds,
		"rank":            p.RankName,
		"rankScore":       p.RankScore,
		"rankName":        p.RankName,
		"isManualLogin":   p.IsManualLogin,
		"profileImageUrl": p.AvatarURL,
	})
}

func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "validated",
		"message":  "Authentication valid",
		"username": p.Username,
		"email":    p.Email,
		"guilds":   len(p.Guilds),
	})
}

func (a *API) handleLoginFailed(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "Your account is not on the access list."
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Access Denied</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4rem;">
<h1>Access Denied</h1>
<p>` + html.EscapeString(reason) + `</p>
<p>This dashboard is restricted to approved operators. Link an approved
Roblox account to your Discord profile and try again.</p>
<p><a href="/api/login">Back to login</a></p>
</body>
</html>`))
}
