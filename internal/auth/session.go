package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"warboard.gg/internal/ids"
)

const (
	defaultCookieName = "warboard_session"
	defaultSessionTTL = 7 * 24 * time.Hour
	cookieIssuer      = "warboard"
)

// TokenPair is an access/refresh token pair returned by a provider refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Refresher exchanges a refresh token for fresh provider credentials.
// Implemented by the Discord broker; nil when the deployment's provider has
// no refresh capability.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// Manager owns the signed-cookie-backed session lifecycle.
type Manager struct {
	store      SessionStore
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	refresher  Refresher
	now        func() time.Time
}

// ManagerOption configures Manager behavior.
type ManagerOption func(*Manager)

// WithSessionTTL overrides the default one week session lifetime.
func WithSessionTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) ManagerOption {
	return func(m *Manager) {
		if strings.TrimSpace(name) != "" {
			m.cookieName = name
		}
	}
}

// WithSecureCookies toggles the Secure cookie attribute (off for local dev).
func WithSecureCookies(secure bool) ManagerOption {
	return func(m *Manager) { m.secure = secure }
}

// WithRefresher wires the provider token refresh exchange.
func WithRefresher(r Refresher) ManagerOption {
	return func(m *Manager) { m.refresher = r }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewManager constructs a Manager signing cookies with the given secret.
func NewManager(store SessionStore, secret string, opts ...ManagerOption) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: session secret is required")
	}
	m := &Manager{
		store:      store,
		secret:     []byte(secret),
		ttl:        defaultSessionTTL,
		cookieName: defaultCookieName,
		secure:     true,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Create establishes a session for the principal and sets the signed cookie.
// Manual-credential principals get a non-expiring session; everything else
// expires with the configured TTL.
func (m *Manager) Create(ctx context.Context, w http.ResponseWriter, principal Principal) (*Session, error) {
	now := m.now().UTC()
	s := &Session{
		ID:        ids.New(),
		Principal: principal,
		CreatedAt: now,
	}
	if !principal.IsManualLogin {
		s.ExpiresAt = now.Add(m.ttl)
	}
	if err := m.store.Put(ctx, s); err != nil {
		return nil, err
	}

	token, err := m.signCookie(s, now)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   m.cookieMaxAge(s),
	})
	return s, nil
}

// Resolve loads the session for the request's cookie. Expired provider
// tokens get exactly one refresh attempt; every other failure is terminal
// for the request and reported as ErrUnauthenticated.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	sid, err := m.verifyCookie(cookie.Value)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	s, err := m.store.Get(ctx, sid)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	now := m.now().UTC()
	if s.Expired(now) {
		return nil, ErrUnauthenticated
	}

	p := &s.Principal
	if p.ExpiresAt.IsZero() || now.Before(p.ExpiresAt) {
		return s, nil
	}
	if m.refresher == nil || p.RefreshToken == "" {
		return nil, ErrUnauthenticated
	}
	pair, err := m.refresher.Refresh(ctx, p.RefreshToken)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	p.AccessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		p.RefreshToken = pair.RefreshToken
	}
	p.ExpiresAt = pair.ExpiresAt
	if err := m.store.Put(ctx, s); err != nil {
		return nil, ErrUnauthenticated
	}
	return s, nil
}

// Destroy clears the store entry and the cookie. The removed session is
// returned, when one existed, so the caller can pick a post-logout redirect.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	var removed *Session
	if cookie, err := r.Cookie(m.cookieName); err == nil {
		if sid, err := m.verifyCookie(cookie.Value); err == nil {
			removed, _ = m.store.Get(ctx, sid)
			_ = m.store.Delete(ctx, sid)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	return removed, nil
}

// CookieName exposes the configured cookie name for handlers and tests.
func (m *Manager) CookieName() string { return m.cookieName }

func (m *Manager) cookieMaxAge(s *Session) int {
	if s.ExpiresAt.IsZero() {
		// Non-expiring session: pin the cookie for ten years rather than
		// letting it die with the browser.
		return int((10 * 365 * 24 * time.Hour).Seconds())
	}
	return int(m.ttl.Seconds())
}

func (m *Manager) signCookie(s *Session, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:   cookieIssuer,
		Subject:  s.ID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if !s.ExpiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(s.ExpiresAt)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) verifyCookie(value string) (string, error) {
	parsed, err := jwt.ParseWithClaims(value, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrUnauthenticated
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.now().UTC() }))
	if err != nil {
		return "", ErrUnauthenticated
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", ErrUnauthenticated
	}
	if claims.Issuer != cookieIssuer || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrUnauthenticated
	}
	return claims.Subject, nil
}
