package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warboard.gg/internal/auth"
	"warboard.gg/internal/broadcast"
	"warboard.gg/internal/config"
	"warboard.gg/internal/discord"
	"warboard.gg/internal/game"
	"warboard.gg/internal/httpapi"
	"warboard.gg/internal/obs"
	"warboard.gg/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		store        game.Store
		sessionStore auth.SessionStore
		ready        httpapi.ReadyProbe
		pgStore      *pg.Store
	)
	if cfg.PostgresDSN != "" {
		pgStore, err = pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		sessionStore = pg.NewSessionStore(pgStore.DB())
		ready = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		store = game.NewMemStore()
		sessionStore = auth.NewMemSessionStore()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := game.EnsureBuiltinRanks(ctx, store); err != nil {
		log.Fatalf("seed ranks: %v", err)
	}

	sessions, err := auth.NewManager(sessionStore, cfg.SessionSecret,
		auth.WithSessionTTL(cfg.SessionTTL),
		auth.WithSecureCookies(cfg.SecureCookies),
	)
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}

	var broker *discord.Broker
	if cfg.OAuthConfigured() {
		var policy discord.Policy
		switch cfg.AuthPolicy {
		case "name":
			policy = discord.NamePolicy{
				Fragment: cfg.AllowedFragment,
				Username: cfg.AllowedUsername,
			}
		default:
			policy = discord.ConnectionPolicy{Allowed: cfg.AllowedRoblox}
		}
		broker, err = discord.New(discord.Config{
			ClientID:           cfg.DiscordClientID,
			ClientSecret:       cfg.DiscordClientSecret,
			CallbackURL:        cfg.CallbackURL,
			Timeout:            cfg.ProviderTimeout,
			SecureCookies:      cfg.SecureCookies,
			EnforceTokenExpiry: cfg.EnforceTokenExpiry,
		}, store, sessions, policy)
		if err != nil {
			log.Fatalf("discord: %v", err)
		}
		if cfg.EnforceTokenExpiry {
			sessions, err = auth.NewManager(sessionStore, cfg.SessionSecret,
				auth.WithSessionTTL(cfg.SessionTTL),
				auth.WithSecureCookies(cfg.SecureCookies),
				auth.WithRefresher(broker),
			)
			if err != nil {
				log.Fatalf("sessions: %v", err)
			}
		}
	}

	hub := broadcast.NewHub(store.Stats, nil)
	go hub.Run(ctx, cfg.BroadcastInterval)

	go purgeSessions(ctx, sessionStore)

	api := httpapi.New(httpapi.Options{
		Store:    store,
		Sessions: sessions,
		Broker:   broker,
		Manual: auth.ManualCredentials{
			Username:       cfg.ManualUser,
			PasswordHash:   cfg.ManualPasswordHash,
			RobloxUsername: cfg.ManualRobloxUsername,
		},
		Hub:           hub,
		Ready:         ready,
		EndSessionURL: cfg.EndSessionURL,
		Version:       version,
		RateBurst:     cfg.RateBurst,
		RatePerSec:    cfg.RatePerSec,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting warboard-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}

// purgeSessions sweeps expired session records hourly. Resolution never
// depends on the sweep; it only keeps the store from growing unbounded.
func purgeSessions(ctx context.Context, store auth.SessionStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch s := store.(type) {
			case *pg.SessionStore:
				_, _ = s.PurgeExpired(ctx, time.Now().UTC())
			case *auth.MemSessionStore:
				_ = s.Purge(time.Now().UTC())
			}
		}
	}
}
