package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "WARBOARD_"

// Config carries every startup knob for warboard-api. Values come from
// WARBOARD_* environment variables, read once in Load.
type Config struct {
	Addr string

	// Postgres DSN. Empty selects the in-memory stores.
	PostgresDSN string

	// Session cookie signing secret. Required.
	SessionSecret string
	SessionTTL    time.Duration
	SecureCookies bool

	// Discord OAuth application.
	DiscordClientID     string
	DiscordClientSecret string
	CallbackURL         string
	ProviderTimeout     time.Duration
	EndSessionURL       string

	// EnforceTokenExpiry makes sessions inherit the provider token expiry
	// and go through the refresh exchange. Off by default: the observed
	// linked-account flow treats provider sessions as cookie-bound only.
	EnforceTokenExpiry bool

	// Authorization policy: "connection" (linked-account allow-list) or
	// "name" (username fragment allow-list).
	AuthPolicy      string
	AllowedRoblox   []string
	AllowedFragment string
	AllowedUsername string

	// Manual login credentials. Empty disables the endpoint.
	ManualUser           string
	ManualPasswordHash   string
	ManualRobloxUsername string

	BroadcastInterval time.Duration

	RateBurst  int
	RatePerSec int
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Addr:                 getString("ADDR", ":8080"),
		PostgresDSN:          getString("PG_DSN", ""),
		SessionSecret:        getString("SESSION_SECRET", ""),
		SessionTTL:           getDuration("SESSION_TTL", 7*24*time.Hour),
		SecureCookies:        getBool("SECURE_COOKIES", true),
		DiscordClientID:      getString("DISCORD_CLIENT_ID", ""),
		DiscordClientSecret:  getString("DISCORD_CLIENT_SECRET", ""),
		CallbackURL:          getString("CALLBACK_URL", ""),
		ProviderTimeout:      getDuration("PROVIDER_TIMEOUT", 10*time.Second),
		EndSessionURL:        getString("END_SESSION_URL", ""),
		EnforceTokenExpiry:   getBool("ENFORCE_TOKEN_EXPIRY", false),
		AuthPolicy:           getString("AUTH_POLICY", "connection"),
		AllowedRoblox:        getList("ALLOWED_ROBLOX", []string{"Luisdiko87", "yaniselpror"}),
		AllowedFragment:      getString("ALLOWED_FRAGMENT", "luis"),
		AllowedUsername:      getString("ALLOWED_USERNAME", "LuisTheDev"),
		ManualUser:           getString("MANUAL_USER", ""),
		ManualPasswordHash:   getString("MANUAL_PASSWORD_HASH", ""),
		ManualRobloxUsername: getString("MANUAL_ROBLOX_USERNAME", ""),
		BroadcastInterval:    getDuration("BROADCAST_INTERVAL", 30*time.Second),
		RateBurst:            getInt("RATE_BURST", 20),
		RatePerSec:           getInt("RATE_PER_SEC", 10),
	}
	if cfg.SessionSecret == "" {
		return Config{}, errors.New("config: " + envPrefix + "SESSION_SECRET is required")
	}
	switch cfg.AuthPolicy {
	case "connection", "name":
	default:
		return Config{}, errors.New("config: " + envPrefix + "AUTH_POLICY must be \"connection\" or \"name\"")
	}
	return cfg, nil
}

// OAuthConfigured reports whether the Discord handshake can run.
func (c Config) OAuthConfigured() bool {
	return c.DiscordClientID != "" && c.DiscordClientSecret != "" && c.CallbackURL != ""
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
