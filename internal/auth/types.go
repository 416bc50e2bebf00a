package auth

import (
	"encoding/json"
	"time"
)

// Principal is the authenticated identity bound to a session. Everything on
// it lives only inside the session snapshot; the identity store persists the
// display fields alone.
type Principal struct {
	ID             string
	Username       string
	Email          string
	Avatar         string
	AvatarURL      string
	RobloxUsername string
	RankScore      float64
	RankName       string

	// Guild memberships pass through from the provider unmodified.
	Guilds []json.RawMessage

	// Provider token pair. Empty for manual-credential sessions.
	AccessToken  string
	RefreshToken string

	// ExpiresAt is the provider token expiry. Zero means the session never
	// requires a refresh and stays valid as long as the cookie does.
	ExpiresAt time.Time

	IsManualLogin bool
}

// Session is the server-side record behind a signed cookie, holding exactly
// one Principal snapshot.
type Session struct {
	ID        string
	Principal Principal
	CreatedAt time.Time

	// ExpiresAt bounds the session itself. Zero means the session is valid
	// until explicit destruction (manual-credential logins).
	ExpiresAt time.Time
}

// Expired reports whether the session record itself has aged out.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
