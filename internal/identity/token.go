package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Operator scopes.
const (
	ScopeChallengesWrite = "challenges:write"
	ScopeServersWrite    = "servers:write"
)

// DefaultScopes is granted when Issue is called without explicit scopes.
var DefaultScopes = []string{ScopeChallengesWrite, ScopeServersWrite}

// ErrEmptySecret is returned by NewTokenIssuer when no signing secret is set.
var ErrEmptySecret = errors.New("token signing secret is empty")

// OperatorClaims are the JWT claims of an operator token.
type OperatorClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// TokenIssuer issues and verifies operator tokens signed with HS256.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer.
//
//	secret: shared HMAC key; must be non-empty.
//	issuer: the "iss" claim value.
//	ttl:    token lifetime (default: 1 hour).
func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl == 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue creates a signed operator token for subject.
func (t *TokenIssuer) Issue(subject string, scopes []string) (string, error) {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	now := t.now().UTC()
	claims := OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.New().String(),
		},
		Scopes: scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates an operator token, returning its claims on success.
func (t *TokenIssuer) Verify(tokenStr string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&OperatorClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// TTL returns the configured token lifetime.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// HasScope checks whether the claims contain the requested scope.
func HasScope(claims *OperatorClaims, scope string) bool {
	if claims == nil {
		return false
	}
	for _, s := range claims.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
