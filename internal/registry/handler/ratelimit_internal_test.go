package handler

import (
	"testing"
	"time"
)

func TestClientBuckets_evictIdle(t *testing.T) {
	cb := newClientBuckets(1, 1)
	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	if !cb.allow("203.0.113.1", start) {
		t.Fatal("first request should pass")
	}
	if cb.allow("203.0.113.1", start) {
		t.Error("second request in the same instant should be limited")
	}
	cb.allow("203.0.113.2", start.Add(8*time.Minute))

	if left := cb.evictIdle(start.Add(11 * time.Minute)); left != 1 {
		t.Errorf("expected only the recently seen client to remain, got %d", left)
	}
	if _, ok := cb.buckets["203.0.113.2"]; !ok {
		t.Error("recent client was evicted")
	}

	// An evicted client starts over with a full bucket.
	if !cb.allow("203.0.113.1", start.Add(11*time.Minute)) {
		t.Error("evicted client should get a fresh bucket")
	}
}
