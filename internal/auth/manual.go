package auth

import "strings"

// Top of the builtin rank hierarchy; manual logins are trusted operators.
const (
	manualRankScore = 5
	manualRankName  = "41 | Supreme Creator"
)

// ManualCredentials is the single local-credential account configured for a
// deployment. Password is stored as a bcrypt hash.
type ManualCredentials struct {
	Username       string
	PasswordHash   string
	RobloxUsername string
}

// Enabled reports whether manual login is configured at all.
func (c ManualCredentials) Enabled() bool {
	return strings.TrimSpace(c.Username) != "" && strings.TrimSpace(c.PasswordHash) != ""
}

// Authenticate checks the credential pair (username case-insensitive) and
// returns a manual-login Principal. Sessions built from it never expire.
func (c ManualCredentials) Authenticate(username, password string) (Principal, error) {
	if !c.Enabled() {
		return Principal{}, ErrInvalidCredentials
	}
	if !strings.EqualFold(strings.TrimSpace(username), c.Username) {
		return Principal{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(c.PasswordHash, password); err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	return Principal{
		ID:             "manual-" + strings.ToLower(c.Username),
		Username:       c.Username,
		RobloxUsername: c.RobloxUsername,
		RankScore:      manualRankScore,
		RankName:       manualRankName,
		IsManualLogin:  true,
	}, nil
}
