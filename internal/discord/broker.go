package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"warboard.gg/internal/auth"
	"warboard.gg/internal/game"
)

const (
	defaultAPIBaseURL = "https://discord.com/api/v10"
	defaultAuthURL    = "https://discord.com/oauth2/authorize"
	defaultTokenURL   = "https://discord.com/api/oauth2/token"
	avatarCDN         = "https://cdn.discordapp.com/avatars"

	stateCookieName = "warboard_oauth_state"
	stateCookieTTL  = 5 * time.Minute

	defaultTimeout = 10 * time.Second

	// Rank granted to a policy-passed principal whose stored row has no
	// explicit rank yet.
	operatorRankScore = 5
	operatorRankName  = "41 | Supreme Creator"
)

// ErrProvider marks a network or provider-side failure during the handshake
// or a token refresh. Terminal for the attempt; the client re-initiates.
var ErrProvider = errors.New("discord: provider failure")

// ErrMalformedProfile marks an unusable provider payload.
var ErrMalformedProfile = errors.New("discord: malformed profile payload")

// ErrStateMismatch marks a callback whose state does not match the cookie.
var ErrStateMismatch = errors.New("discord: oauth state mismatch")

// Profile is the subset of the provider account the broker consumes.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

// Connection is one linked third-party account on the provider profile.
type Connection struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// SessionCreator is the session establishment contract the broker delegates
// to on success. Satisfied by *auth.Manager.
type SessionCreator interface {
	Create(ctx context.Context, w http.ResponseWriter, principal auth.Principal) (*auth.Session, error)
}

// Config holds the OAuth application settings.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string

	// Overridable for tests; defaults point at the public Discord API.
	APIBaseURL string
	AuthURL    string
	TokenURL   string

	Timeout       time.Duration
	SecureCookies bool

	// EnforceTokenExpiry copies the provider token expiry onto the
	// principal so Resolve runs the refresh sub-protocol. The observed
	// linked-account deployment leaves this off.
	EnforceTokenExpiry bool
}

// Broker orchestrates the external OAuth handshake and applies the
// authorization policy. It depends on game.Store and SessionCreator
// interfaces only.
type Broker struct {
	oauth    oauth2.Config
	api      string
	client   *http.Client
	store    game.Store
	sessions SessionCreator
	policy   Policy
	secure   bool
	enforce  bool
	now      func() time.Time
}

// New constructs a Broker.
func New(cfg Config, store game.Store, sessions SessionCreator, policy Policy) (*Broker, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.CallbackURL == "" {
		return nil, errors.New("discord: client id, client secret and callback url are required")
	}
	if policy == nil {
		return nil, errors.New("discord: an authorization policy is required")
	}
	api := strings.TrimRight(cfg.APIBaseURL, "/")
	if api == "" {
		api = defaultAPIBaseURL
	}
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = defaultAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Broker{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"identify", "email", "connections", "guilds"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		api:      api,
		client:   &http.Client{Timeout: timeout},
		store:    store,
		sessions: sessions,
		policy:   policy,
		secure:   cfg.SecureCookies,
		enforce:  cfg.EnforceTokenExpiry,
		now:      time.Now,
	}, nil
}

// BeginHandshake redirects to the provider consent screen. The only side
// effect is the redirect plus the short-lived state cookie.
func (b *Broker) BeginHandshake(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   b.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(stateCookieTTL.Seconds()),
	})
	http.Redirect(w, r, b.oauth.AuthCodeURL(state), http.StatusFound)
}

// VerifyState checks the callback state parameter against the cookie set by
// BeginHandshake and clears the cookie.
func (b *Broker) VerifyState(w http.ResponseWriter, r *http.Request) error {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(stateCookieName)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   b.secure,
		MaxAge:   -1,
	})
	if err != nil || state == "" || cookie.Value != state {
		return ErrStateMismatch
	}
	return nil
}

// CompleteHandshake exchanges the authorization code, fetches the profile,
// applies the policy, upserts the durable identity fields and establishes a
// session. On policy failure nothing is persisted and no session exists.
func (b *Broker) CompleteHandshake(ctx context.Context, w http.ResponseWriter, code string) (auth.Principal, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.client)
	token, err := b.oauth.Exchange(ctx, code)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("%w: code exchange: %v", ErrProvider, err)
	}

	var profile Profile
	if err := b.getJSON(ctx, token.AccessToken, "/users/@me", &profile); err != nil {
		return auth.Principal{}, err
	}
	if strings.TrimSpace(profile.ID) == "" || strings.TrimSpace(profile.Username) == "" {
		return auth.Principal{}, ErrMalformedProfile
	}

	var connections []Connection
	if err := b.getJSON(ctx, token.AccessToken, "/users/@me/connections", &connections); err != nil {
		return auth.Principal{}, err
	}
	var guilds []json.RawMessage
	if err := b.getJSON(ctx, token.AccessToken, "/users/@me/guilds", &guilds); err != nil {
		return auth.Principal{}, err
	}

	robloxName, err := b.policy.Authorize(profile, connections)
	if err != nil {
		return auth.Principal{}, err
	}

	stored, err := b.store.UpsertUser(ctx, game.UpsertUser{
		ID:              profile.ID,
		Email:           profile.Email,
		Username:        profile.Username,
		ProfileImageURL: avatarURL(profile),
	})
	if err != nil {
		return auth.Principal{}, err
	}

	principal := auth.Principal{
		ID:             profile.ID,
		Username:       profile.Username,
		Email:          profile.Email,
		Avatar:         profile.Avatar,
		AvatarURL:      avatarURL(profile),
		RobloxUsername: robloxName,
		RankScore:      stored.RankScore,
		RankName:       stored.RankName,
		Guilds:         guilds,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
	}
	if principal.RankScore == 0 {
		// Policy-passed accounts operate the dashboard even before an
		// explicit rank assignment exists in the store.
		principal.RankScore = operatorRankScore
		principal.RankName = operatorRankName
	}
	if b.enforce && !token.Expiry.IsZero() {
		principal.ExpiresAt = token.Expiry.UTC()
	}

	if _, err := b.sessions.Create(ctx, w, principal); err != nil {
		return auth.Principal{}, err
	}
	return principal, nil
}

// Refresh implements auth.Refresher with a single refresh-token exchange.
func (b *Broker) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.client)
	src := b.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("%w: token refresh: %v", ErrProvider, err)
	}
	pair := auth.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		pair.ExpiresAt = token.Expiry.UTC()
	}
	return pair, nil
}

func (b *Broker) getJSON(ctx context.Context, accessToken, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.api+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProvider, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrProvider, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedProfile, path, err)
	}
	return nil
}

func avatarURL(p Profile) string {
	if p.Avatar == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s.png", avatarCDN, p.ID, p.Avatar)
}
