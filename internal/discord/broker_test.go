package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"warboard.gg/internal/auth"
	"warboard.gg/internal/game"
)

type fakeProvider struct {
	profile     Profile
	connections []Connection
	guilds      []map[string]any
	tokenStatus int
}

func (f *fakeProvider) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    604800,
		})
	})
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(f.profile)
	})
	mux.HandleFunc("/users/@me/connections", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(f.connections)
	})
	mux.HandleFunc("/users/@me/guilds", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(f.guilds)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestBroker(t *testing.T, srv *httptest.Server, store game.Store, sessions SessionCreator, policy Policy) *Broker {
	t.Helper()
	b, err := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackURL:  "http://localhost:8080/api/callback",
		APIBaseURL:   srv.URL,
		AuthURL:      srv.URL + "/oauth2/authorize",
		TokenURL:     srv.URL + "/oauth2/token",
	}, store, sessions, policy)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func newSessions(t *testing.T) *auth.Manager {
	t.Helper()
	m, err := auth.NewManager(auth.NewMemSessionStore(), "test-secret")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestCompleteHandshakeAllowed(t *testing.T) {
	provider := &fakeProvider{
		profile: Profile{ID: "discord-1", Username: "somebody", Email: "s@example.com", Avatar: "abc"},
		connections: []Connection{
			{Type: "roblox", Name: "yaniselpror"},
		},
		guilds: []map[string]any{{"id": "g1", "name": "War Tycoon"}},
	}
	srv := provider.server(t)

	store := game.NewMemStore()
	broker := newTestBroker(t, srv, store, newSessions(t), ConnectionPolicy{Allowed: []string{"Luisdiko87", "yaniselpror"}})

	rec := httptest.NewRecorder()
	principal, err := broker.CompleteHandshake(context.Background(), rec, "code-1")
	if err != nil {
		t.Fatalf("CompleteHandshake: %v", err)
	}

	if principal.RobloxUsername != "yaniselpror" {
		t.Fatalf("expected verified roblox name, got %q", principal.RobloxUsername)
	}
	if principal.RankScore != 5 {
		t.Fatalf("first login must default to operator rank, got %v", principal.RankScore)
	}
	if len(principal.Guilds) != 1 {
		t.Fatalf("guilds must pass through, got %d", len(principal.Guilds))
	}
	if !principal.ExpiresAt.IsZero() {
		t.Fatalf("token expiry must not bind the session by default, got %v", principal.ExpiresAt)
	}

	// Session cookie set.
	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "warboard_session" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected session cookie")
	}

	// Identity persisted.
	stored, err := store.GetUser(context.Background(), "discord-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if stored.Username != "somebody" {
		t.Fatalf("unexpected stored user: %+v", stored)
	}
	if stored.ProfileImageURL == "" {
		t.Fatal("avatar URL must be derived and stored")
	}
}

func TestCompleteHandshakeUsesStoredRank(t *testing.T) {
	provider := &fakeProvider{
		profile:     Profile{ID: "discord-2", Username: "mod"},
		connections: []Connection{{Type: "roblox", Name: "Luisdiko87"}},
	}
	srv := provider.server(t)

	store := game.NewMemStore()
	ctx := context.Background()
	if _, err := store.UpsertUser(ctx, game.UpsertUser{ID: "discord-2", Username: "mod"}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if _, err := store.UpdateUserRank(ctx, "discord-2", 4, "Head Administration"); err != nil {
		t.Fatalf("UpdateUserRank: %v", err)
	}

	broker := newTestBroker(t, srv, store, newSessions(t), ConnectionPolicy{Allowed: []string{"Luisdiko87"}})

	principal, err := broker.CompleteHandshake(ctx, httptest.NewRecorder(), "code-1")
	if err != nil {
		t.Fatalf("CompleteHandshake: %v", err)
	}
	if principal.RankScore != 4 || principal.RankName != "Head Administration" {
		t.Fatalf("stored rank must win over the operator default: %+v", principal)
	}
}

func TestCompleteHandshakeDenied(t *testing.T) {
	provider := &fakeProvider{
		profile:     Profile{ID: "discord-3", Username: "rando"},
		connections: []Connection{{Type: "roblox", Name: "not-allowed"}},
	}
	srv := provider.server(t)

	store := game.NewMemStore()
	broker := newTestBroker(t, srv, store, newSessions(t), ConnectionPolicy{Allowed: []string{"yaniselpror"}})

	rec := httptest.NewRecorder()
	_, err := broker.CompleteHandshake(context.Background(), rec, "code-1")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}

	// Denied accounts leave no trace: no store row, no cookie.
	if _, err := store.GetUser(context.Background(), "discord-3"); !errors.Is(err, game.ErrNotFound) {
		t.Fatalf("denied login must not persist a user, got %v", err)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("denied login must not set cookies")
	}
}

func TestCompleteHandshakeMalformedProfile(t *testing.T) {
	provider := &fakeProvider{profile: Profile{ID: "", Username: ""}}
	srv := provider.server(t)

	broker := newTestBroker(t, srv, game.NewMemStore(), newSessions(t), ConnectionPolicy{Allowed: []string{"x"}})

	if _, err := broker.CompleteHandshake(context.Background(), httptest.NewRecorder(), "code-1"); !errors.Is(err, ErrMalformedProfile) {
		t.Fatalf("expected ErrMalformedProfile, got %v", err)
	}
}

func TestCompleteHandshakeProviderFailure(t *testing.T) {
	provider := &fakeProvider{tokenStatus: http.StatusInternalServerError}
	srv := provider.server(t)

	broker := newTestBroker(t, srv, game.NewMemStore(), newSessions(t), ConnectionPolicy{Allowed: []string{"x"}})

	if _, err := broker.CompleteHandshake(context.Background(), httptest.NewRecorder(), "code-1"); !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

func TestStateRoundTrip(t *testing.T) {
	srv := (&fakeProvider{}).server(t)
	broker := newTestBroker(t, srv, game.NewMemStore(), newSessions(t), ConnectionPolicy{Allowed: []string{"x"}})

	rec := httptest.NewRecorder()
	broker.BeginHandshake(rec, httptest.NewRequest(http.MethodGet, "/api/login", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}

	var state *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "warboard_oauth_state" {
			state = c
		}
	}
	if state == nil || state.Value == "" {
		t.Fatal("expected state cookie")
	}

	cb := httptest.NewRequest(http.MethodGet, "/api/callback?state="+state.Value, nil)
	cb.AddCookie(state)
	if err := broker.VerifyState(httptest.NewRecorder(), cb); err != nil {
		t.Fatalf("VerifyState: %v", err)
	}

	bad := httptest.NewRequest(http.MethodGet, "/api/callback?state=forged", nil)
	bad.AddCookie(state)
	if err := broker.VerifyState(httptest.NewRecorder(), bad); !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch, got %v", err)
	}
}
