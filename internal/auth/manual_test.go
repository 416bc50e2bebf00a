package auth

import (
	"errors"
	"testing"
)

func manualCreds(t *testing.T) ManualCredentials {
	t.Helper()
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return ManualCredentials{
		Username:       "luis",
		PasswordHash:   hash,
		RobloxUsername: "LuisTheDev",
	}
}

func TestManualAuthenticate(t *testing.T) {
	creds := manualCreds(t)

	p, err := creds.Authenticate("luis", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !p.IsManualLogin {
		t.Fatal("expected IsManualLogin")
	}
	if p.ID != "manual-luis" || p.RobloxUsername != "LuisTheDev" {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if p.RankScore != 5 {
		t.Fatalf("manual login must be a trusted operator, got score %v", p.RankScore)
	}
}

func TestManualAuthenticateCaseInsensitiveUsername(t *testing.T) {
	creds := manualCreds(t)
	if _, err := creds.Authenticate("LUIS", "hunter2"); err != nil {
		t.Fatalf("username compare must ignore case: %v", err)
	}
	if _, err := creds.Authenticate("  Luis ", "hunter2"); err != nil {
		t.Fatalf("username compare must trim whitespace: %v", err)
	}
}

func TestManualAuthenticateRejects(t *testing.T) {
	creds := manualCreds(t)

	if _, err := creds.Authenticate("luis", "HUNTER2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("password compare must be exact, got %v", err)
	}
	if _, err := creds.Authenticate("someoneelse", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	var disabled ManualCredentials
	if disabled.Enabled() {
		t.Fatal("zero credentials must be disabled")
	}
	if _, err := disabled.Authenticate("luis", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials when disabled, got %v", err)
	}
}
