package trustledger

import "context"

// Ledger is the append-only ownership audit log.
type Ledger interface {
	// Append chains a new entry. payload is JSON-encoded and only its
	// SHA-256 is stored.
	Append(ctx context.Context, domain, action, actor string, payload any) (*Entry, error)

	// Get returns the entry at a zero-based index.
	Get(ctx context.Context, index int) (*Entry, error)

	// ForDomain returns a domain's entries, oldest first.
	ForDomain(ctx context.Context, domain string) ([]*Entry, error)

	// Len counts entries, genesis included.
	Len(ctx context.Context) (int, error)

	// Verify walks the chain; nil means intact.
	Verify(ctx context.Context) error

	// Root is the hash of the newest entry.
	Root(ctx context.Context) (string, error)
}
