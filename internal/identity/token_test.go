package identity_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jmerrifield20/mcptrust/internal/identity"
)

const testIssuer = "https://trust.mcplookup.example"

func newTestTokenIssuer(t *testing.T) *identity.TokenIssuer {
	t.Helper()
	ti, err := identity.NewTokenIssuer("test-secret-0123456789", testIssuer, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return ti
}

func TestNewTokenIssuer_emptySecret(t *testing.T) {
	_, err := identity.NewTokenIssuer("", testIssuer, 0)
	if !errors.Is(err, identity.ErrEmptySecret) {
		t.Errorf("expected ErrEmptySecret, got %v", err)
	}
}

func TestTokenIssuer_Issue(t *testing.T) {
	ti := newTestTokenIssuer(t)

	token, err := ti.Issue("ops@example.com", nil)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Errorf("expected 3-part JWT, got %d parts", len(parts))
	}
}

func TestTokenIssuer_Verify_valid(t *testing.T) {
	ti := newTestTokenIssuer(t)

	token, err := ti.Issue("ops@example.com", []string{identity.ScopeServersWrite})
	if err != nil {
		t.Fatal(err)
	}

	claims, err := ti.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.Subject != "ops@example.com" {
		t.Errorf("Subject: got %q", claims.Subject)
	}
	if len(claims.Scopes) != 1 || claims.Scopes[0] != identity.ScopeServersWrite {
		t.Errorf("Scopes: got %v", claims.Scopes)
	}
}

func TestTokenIssuer_Issue_defaultScopes(t *testing.T) {
	ti := newTestTokenIssuer(t)
	token, _ := ti.Issue("ops", nil)
	claims, err := ti.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if !identity.HasScope(claims, identity.ScopeChallengesWrite) || !identity.HasScope(claims, identity.ScopeServersWrite) {
		t.Errorf("default scopes missing: %v", claims.Scopes)
	}
}

func TestTokenIssuer_Verify_expired(t *testing.T) {
	ti, err := identity.NewTokenIssuer("test-secret-0123456789", testIssuer, time.Nanosecond)
	if err != nil {
		t.Fatal(err)
	}
	token, err := ti.Issue("ops", nil)
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(2 * time.Millisecond)

	if _, err := ti.Verify(token); err == nil {
		t.Error("expected error for expired token, got nil")
	}
}

func TestTokenIssuer_Verify_wrongSecret(t *testing.T) {
	ti := newTestTokenIssuer(t)
	other, _ := identity.NewTokenIssuer("another-secret", testIssuer, time.Hour)

	token, _ := ti.Issue("ops", nil)
	if _, err := other.Verify(token); err == nil {
		t.Error("expected error for token signed with another secret")
	}
}

func TestTokenIssuer_Verify_wrongIssuer(t *testing.T) {
	a, _ := identity.NewTokenIssuer("shared", "https://a.example", time.Hour)
	b, _ := identity.NewTokenIssuer("shared", "https://b.example", time.Hour)

	token, _ := a.Issue("ops", nil)
	if _, err := b.Verify(token); err == nil {
		t.Error("expected error for wrong issuer, got nil")
	}
}

func TestTokenIssuer_Verify_noneAlgorithm(t *testing.T) {
	ti := newTestTokenIssuer(t)
	// {"alg":"none","typ":"JWT"} . {"iss":testIssuer,"exp":9999999999} . (empty)
	token := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0." +
		"eyJpc3MiOiJodHRwczovL3RydXN0Lm1jcGxvb2t1cC5leGFtcGxlIiwiZXhwIjo5OTk5OTk5OTk5fQ."
	if _, err := ti.Verify(token); err == nil {
		t.Error("alg=none must be rejected")
	}
}

func TestHasScope(t *testing.T) {
	claims := &identity.OperatorClaims{Scopes: []string{identity.ScopeChallengesWrite}}

	if !identity.HasScope(claims, identity.ScopeChallengesWrite) {
		t.Error("HasScope(challenges:write) should be true")
	}
	if identity.HasScope(claims, identity.ScopeServersWrite) {
		t.Error("HasScope(servers:write) should be false")
	}
	if identity.HasScope(nil, identity.ScopeChallengesWrite) {
		t.Error("HasScope(nil, ...) should be false")
	}
}
