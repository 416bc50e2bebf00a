package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"warboard.gg/internal/auth"
	"warboard.gg/internal/broadcast"
	"warboard.gg/internal/discord"
	"warboard.gg/internal/game"
	"warboard.gg/internal/obs"
)

// ReadyProbe pings the database when one is configured. The in-memory
// deployment is always ready.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries everything the HTTP layer depends on. Broker is nil when
// OAuth is not configured; Hub is required.
type Options struct {
	Store    game.Store
	Sessions *auth.Manager
	Broker   *discord.Broker
	Manual   auth.ManualCredentials
	Hub      *broadcast.Hub

	Ready         ReadyProbe
	EndSessionURL string
	Version       string

	RateBurst  int
	RatePerSec int
}

// API is the HTTP layer.
type API struct {
	mux  *http.ServeMux
	opts Options
}

func New(opts Options) *API {
	a := &API{
		mux:  http.NewServeMux(),
		opts: opts,
	}

	a.mux.HandleFunc("/api/login", a.handleLogin)
	a.mux.HandleFunc("/api/callback", a.handleCallback)
	a.mux.HandleFunc("/api/manual-login", a.handleManualLogin)
	a.mux.HandleFunc("/api/logout", a.handleLogout)
	a.mux.HandleFunc("/api/auth/user", a.handleAuthUser)
	a.mux.HandleFunc("/api/validate", a.handleValidate)
	a.mux.HandleFunc("/login-failed", a.handleLoginFailed)

	a.mux.HandleFunc("/api/game/stats", a.handleGameStats)
	a.mux.HandleFunc("/api/ranks", a.handleRanks)
	a.mux.HandleFunc("/api/users", a.handleUsers)
	a.mux.HandleFunc("/api/users/", a.handleUserResource)
	a.mux.HandleFunc("/api/territories", a.handleTerritories)
	a.mux.HandleFunc("/api/territories/", a.handleTerritoryResource)
	a.mux.HandleFunc("/api/activity", a.handleActivity)
	a.mux.HandleFunc("/api/admin/command", a.handleAdminCommand)
	a.mux.HandleFunc("/api/admin/commands", a.handleAdminCommands)
	a.mux.HandleFunc("/api/tycoons", a.handleTycoons)
	a.mux.HandleFunc("/api/tycoons/", a.handleTycoonResource)
	a.mux.HandleFunc("/api/tycoons/active", a.handleActiveTycoons)

	if opts.Hub != nil {
		a.mux.Handle("/ws", opts.Hub)
	}

	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReadyz)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped server handler.
func (a *API) Handler() http.Handler {
	h := a.withSession(a.mux)
	h = RequestID(h)
	h = MaxBodyBytes(h, 1<<20)
	if a.opts.RateBurst > 0 && a.opts.RatePerSec > 0 {
		h = RateLimit(h, a.opts.RateBurst, a.opts.RatePerSec)
	}
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "warboard-api",
		"version": a.opts.Version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.opts.Ready.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
