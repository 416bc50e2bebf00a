package discord

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAccessDenied marks a terminal policy rejection: the account exists and
// authenticated fine, it is just not on the allow-list.
var ErrAccessDenied = errors.New("discord: access denied")

// AccessDeniedError carries the human-readable reason shown on the
// login-failed page.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return "discord: access denied: " + e.Reason
}

func (e *AccessDeniedError) Unwrap() error { return ErrAccessDenied }

// Policy decides whether a verified provider profile may hold a session.
// Exactly one policy is active per deployment; they are never combined.
type Policy interface {
	// Authorize returns the verified linked-account name (empty when the
	// policy does not involve one) or an AccessDeniedError.
	Authorize(profile Profile, connections []Connection) (string, error)
}

// NamePolicy accepts profiles whose username contains a fixed fragment
// (case-insensitive), equals a fixed username, or whose email contains the
// fragment.
type NamePolicy struct {
	Fragment string
	Username string
}

func (p NamePolicy) Authorize(profile Profile, _ []Connection) (string, error) {
	name := strings.ToLower(profile.Username)
	email := strings.ToLower(profile.Email)
	fragment := strings.ToLower(p.Fragment)
	if fragment != "" && (strings.Contains(name, fragment) || strings.Contains(email, fragment)) {
		return "", nil
	}
	if p.Username != "" && strings.EqualFold(profile.Username, p.Username) {
		return "", nil
	}
	return "", &AccessDeniedError{
		Reason: fmt.Sprintf("username or email must reference %q or equal %q", p.Fragment, p.Username),
	}
}

// ConnectionPolicy accepts profiles with a linked Roblox account whose name
// exactly matches the allow-list.
type ConnectionPolicy struct {
	Allowed []string
}

func (p ConnectionPolicy) Authorize(_ Profile, connections []Connection) (string, error) {
	for _, conn := range connections {
		if conn.Type != "roblox" {
			continue
		}
		for _, allowed := range p.Allowed {
			if conn.Name == allowed {
				return conn.Name, nil
			}
		}
		return "", &AccessDeniedError{
			Reason: "invalid Roblox connection: must be " + strings.Join(p.Allowed, " or "),
		}
	}
	return "", &AccessDeniedError{
		Reason: "a verified Roblox account must be connected to Discord",
	}
}
