package trustledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryLedger is an in-process Ledger. Entries do not survive a restart.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []*Entry
	now     func() time.Time
}

// New returns a MemoryLedger holding only the genesis entry.
func New() *MemoryLedger {
	l := &MemoryLedger{now: func() time.Time { return time.Now().UTC() }}
	l.entries = append(l.entries, &Entry{
		Index:     0,
		Timestamp: l.now(),
		Action:    ActionGenesis,
		Actor:     SystemActor,
		DataHash:  GenesisHash,
		PrevHash:  GenesisHash,
		Hash:      GenesisHash,
	})
	return l
}

// Append implements Ledger.
func (l *MemoryLedger) Append(_ context.Context, domain, action, actor string, payload any) (*Entry, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.entries[len(l.entries)-1]
	entry := &Entry{
		Index:     len(l.entries),
		Timestamp: l.now(),
		Domain:    domain,
		Action:    action,
		Actor:     actor,
		DataHash:  sha256Sum(payloadJSON),
		PrevHash:  prev.Hash,
	}
	entry.Hash = hashEntry(entry)
	l.entries = append(l.entries, entry)

	cp := *entry
	return &cp, nil
}

// Get implements Ledger.
func (l *MemoryLedger) Get(_ context.Context, index int) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.entries) {
		return nil, fmt.Errorf("index %d out of range", index)
	}
	cp := *l.entries[index]
	return &cp, nil
}

// ForDomain implements Ledger.
func (l *MemoryLedger) ForDomain(_ context.Context, domain string) ([]*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []*Entry{}
	for _, e := range l.entries[1:] {
		if e.Domain == domain {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Len implements Ledger.
func (l *MemoryLedger) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries), nil
}

// Verify implements Ledger.
func (l *MemoryLedger) Verify(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return verifyChain(l.entries)
}

// Root implements Ledger.
func (l *MemoryLedger) Root(_ context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[len(l.entries)-1].Hash, nil
}
