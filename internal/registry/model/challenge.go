package model

import (
	"time"
)

// ChallengeReason records why an ownership challenge was opened.
type ChallengeReason string

const (
	ReasonOwnershipTransfer  ChallengeReason = "ownership_transfer"
	ReasonSuspiciousActivity ChallengeReason = "suspicious_activity"
	ReasonUserRequest        ChallengeReason = "user_request"
)

// Valid reports whether r is one of the known reasons.
func (r ChallengeReason) Valid() bool {
	switch r {
	case ReasonOwnershipTransfer, ReasonSuspiciousActivity, ReasonUserRequest:
		return true
	}
	return false
}

// ChallengeState is the externally visible lifecycle state of a challenge.
// A verified challenge is deleted, so "verified" is only ever reported in a
// TransferResult, never read back from storage.
type ChallengeState string

const (
	ChallengePending  ChallengeState = "pending"
	ChallengeVerified ChallengeState = "verified"
	ChallengeExpired  ChallengeState = "expired"
)

// OwnershipChallenge is a time-bounded, single-use proof request: publish
// TXTRecordValue at TXTRecordName before ExpiresAt.
type OwnershipChallenge struct {
	ChallengeID    string          `json:"challenge_id"`
	Domain         string          `json:"domain"`
	ChallengerIP   string          `json:"challenger_ip"`
	TXTRecordName  string          `json:"txt_record_name"`
	TXTRecordValue string          `json:"txt_record_value"`
	CreatedAt      time.Time       `json:"created_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
	Reason         ChallengeReason `json:"reason"`
}

// Expired reports whether the challenge can no longer be used at now.
func (c *OwnershipChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// State derives the lifecycle state of a stored challenge at now.
func (c *OwnershipChallenge) State(now time.Time) ChallengeState {
	if c.Expired(now) {
		return ChallengeExpired
	}
	return ChallengePending
}

// TransferResult is returned by a successful challenge verification.
type TransferResult struct {
	Verified    bool   `json:"verified"`
	Domain      string `json:"domain"`
	Transferred bool   `json:"transferred"`
	Message     string `json:"message"`
}
