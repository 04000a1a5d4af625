package trustledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// GenesisHash is the fixed hash of the genesis entry and the chain's anchor.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Ledger actions.
const (
	ActionGenesis              = "genesis"
	ActionChallengeVerified    = "challenge_verified"
	ActionOwnershipTransferred = "ownership_transferred"
	ActionServerUpdated        = "server_updated"
)

// SystemActor is recorded when no requester address is known.
const SystemActor = "mcptrust-system"

// Entry is one audit record.
type Entry struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Domain    string    `json:"domain"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`     // requester IP or SystemActor
	DataHash  string    `json:"data_hash"` // SHA-256 of the JSON payload
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// hashEntry hashes every field except Hash. Never used for the genesis entry.
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%s|%s",
		e.Index, e.Timestamp.Format(time.RFC3339Nano),
		e.Domain, e.Action, e.Actor, e.DataHash, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

func sha256Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// verifyChain checks a full chain in index order.
func verifyChain(entries []*Entry) error {
	for i, curr := range entries {
		if i == 0 {
			if curr.Hash != GenesisHash {
				return fmt.Errorf("genesis entry has wrong hash: got %q", curr.Hash)
			}
			continue
		}
		prev := entries[i-1]
		if curr.PrevHash != prev.Hash {
			return fmt.Errorf("hash chain broken at index %d", curr.Index)
		}
		if curr.Hash != hashEntry(curr) {
			return fmt.Errorf("entry %d has invalid hash", curr.Index)
		}
	}
	return nil
}
