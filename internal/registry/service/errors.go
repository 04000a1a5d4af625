package service

import "errors"

// Sentinel errors for the verification services.
var (
	// ErrChallengeNotFound covers both unknown and expired challenges so the
	// two cannot be told apart by callers.
	ErrChallengeNotFound  = errors.New("challenge not found or expired")
	ErrVerificationFailed = errors.New("challenge TXT record not confirmed by a majority of resolvers")
	ErrServerNotFound     = errors.New("server not found")
	ErrDomainAnomaly      = errors.New("domain has more than one registration")
)
