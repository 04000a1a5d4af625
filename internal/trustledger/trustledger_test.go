package trustledger

import (
	"context"
	"testing"
)

var ctx = context.Background()

func TestNew_genesisEntry(t *testing.T) {
	l := New()

	n, err := l.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 genesis entry, got %d", n)
	}

	entry, err := l.Get(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Action != ActionGenesis {
		t.Errorf("expected action %q, got %q", ActionGenesis, entry.Action)
	}
	if entry.Hash != GenesisHash {
		t.Errorf("genesis hash: got %q, want GenesisHash", entry.Hash)
	}
}

func TestAppend_chainsCorrectly(t *testing.T) {
	l := New()

	e1, err := l.Append(ctx, "example.com", ActionChallengeVerified, "203.0.113.7", map[string]string{"challenge_id": "c-1"})
	if err != nil {
		t.Fatal(err)
	}
	e2, err := l.Append(ctx, "example.com", ActionServerUpdated, SystemActor, nil)
	if err != nil {
		t.Fatal(err)
	}

	if e2.PrevHash != e1.Hash {
		t.Errorf("chain broken: e2.PrevHash=%q, want e1.Hash=%q", e2.PrevHash, e1.Hash)
	}
	if e1.DataHash == e2.DataHash {
		t.Error("different payloads should hash differently")
	}

	n, _ := l.Len(ctx)
	if n != 3 { // genesis + 2
		t.Errorf("expected 3 entries, got %d", n)
	}
}

func TestAppend_unmarshalablePayload(t *testing.T) {
	l := New()
	if _, err := l.Append(ctx, "example.com", ActionServerUpdated, SystemActor, make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
	if n, _ := l.Len(ctx); n != 1 {
		t.Errorf("failed append must not add an entry, len=%d", n)
	}
}

func TestForDomain_filtersAndOrders(t *testing.T) {
	l := New()
	_, _ = l.Append(ctx, "a.example", ActionChallengeVerified, "ip", nil)
	_, _ = l.Append(ctx, "b.example", ActionChallengeVerified, "ip", nil)
	_, _ = l.Append(ctx, "a.example", ActionOwnershipTransferred, "ip", nil)

	got, err := l.ForDomain(ctx, "a.example")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Index != 1 || got[1].Index != 3 {
		t.Errorf("unexpected order: %d, %d", got[0].Index, got[1].Index)
	}

	none, err := l.ForDomain(ctx, "c.example")
	if err != nil {
		t.Fatal(err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}
}

func TestVerify_valid(t *testing.T) {
	l := New()
	_, _ = l.Append(ctx, "example.com", ActionChallengeVerified, "ip", nil)
	_, _ = l.Append(ctx, "example.com", ActionServerUpdated, "ip", nil)

	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() failed on valid chain: %v", err)
	}
}

func TestVerify_detectsTampering(t *testing.T) {
	l := New()
	_, _ = l.Append(ctx, "example.com", ActionChallengeVerified, "ip", nil)
	_, _ = l.Append(ctx, "example.com", ActionServerUpdated, "ip", nil)

	l.entries[1].Actor = "someone-else"
	if err := l.Verify(ctx); err == nil {
		t.Error("expected Verify to detect a rewritten entry")
	}
}

func TestVerify_detectsBrokenLink(t *testing.T) {
	l := New()
	_, _ = l.Append(ctx, "example.com", ActionChallengeVerified, "ip", nil)
	e, _ := l.Append(ctx, "example.com", ActionServerUpdated, "ip", nil)

	l.entries[2].PrevHash = GenesisHash
	l.entries[2].Hash = hashEntry(l.entries[2])
	if err := l.Verify(ctx); err == nil {
		t.Errorf("expected broken link at index %d", e.Index)
	}
}

func TestGet_returnsCopy(t *testing.T) {
	l := New()
	_, _ = l.Append(ctx, "example.com", ActionChallengeVerified, "ip", nil)

	e, _ := l.Get(ctx, 1)
	e.Domain = "mutated.example"
	if err := l.Verify(ctx); err != nil {
		t.Errorf("mutating a returned entry must not affect the chain: %v", err)
	}
	if _, err := l.Get(ctx, 5); err == nil {
		t.Error("expected out of range error")
	}
}

func TestRoot(t *testing.T) {
	l := New()
	root, _ := l.Root(ctx)
	if root != GenesisHash {
		t.Errorf("Root() on genesis-only: got %q, want GenesisHash", root)
	}

	e, _ := l.Append(ctx, "example.com", ActionChallengeVerified, "ip", nil)
	root, err := l.Root(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if root != e.Hash {
		t.Errorf("Root(): got %q, want %q", root, e.Hash)
	}
}
