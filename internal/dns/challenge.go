package dns

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	// ChallengeTTL is fixed; challenges are never extended.
	ChallengeTTL = 24 * time.Hour

	// TokenLength is the number of alphanumeric characters in a challenge token.
	TokenLength = 32

	challengeHostPrefix  = "_mcp-challenge."
	challengeValuePrefix = "mcp_challenge_"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Challenge holds the TXT record a claimant must publish to prove control of Domain.
type Challenge struct {
	Domain    string
	Token     string // random alphanumeric token
	TXTHost   string // DNS name the record is published under
	TXTRecord string // exact record value expected
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewChallenge generates a fresh ownership challenge for domain, anchored at now.
func NewChallenge(domain string, now time.Time) (*Challenge, error) {
	token, err := GenerateToken(TokenLength)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &Challenge{
		Domain:    domain,
		Token:     token,
		TXTHost:   TXTHost(domain),
		TXTRecord: challengeValuePrefix + token,
		CreatedAt: now,
		ExpiresAt: now.Add(ChallengeTTL),
	}, nil
}

// TXTHost returns the DNS hostname where the challenge TXT record must be placed for domain.
func TXTHost(domain string) string {
	return challengeHostPrefix + strings.TrimSuffix(domain, ".")
}

// GenerateToken produces n cryptographically random characters from [A-Za-z0-9].
func GenerateToken(n int) (string, error) {
	max := big.NewInt(int64(len(tokenAlphabet)))
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(tokenAlphabet[idx.Int64()])
	}
	return sb.String(), nil
}
