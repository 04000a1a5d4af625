package health

import (
	"sync"
	"time"

	"github.com/jmerrifield20/mcptrust/internal/registry/model"
)

// HistorySize is the number of probe samples kept per domain.
const HistorySize = 100

// SlowResponse is the response time at or above which a reachable server is
// reported as degraded.
const SlowResponse = 2 * time.Second

type trackerEntry struct {
	samples   []ProbeResult // oldest first
	expiresAt time.Time
}

func (e *trackerEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Tracker is a thread-safe in-memory store of recent probe results per domain.
// A domain's history is dropped once it has not been recorded for the TTL.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*trackerEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewTracker creates a Tracker. A zero ttl defaults to one hour.
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tracker{
		entries: make(map[string]*trackerEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Record appends r to domain's history and refreshes its expiry.
func (t *Tracker) Record(domain string, r ProbeResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	e, ok := t.entries[domain]
	if !ok || e.expired(now) {
		e = &trackerEntry{}
		t.entries[domain] = e
	}
	e.samples = append(e.samples, r)
	if len(e.samples) > HistorySize {
		e.samples = append([]ProbeResult(nil), e.samples[len(e.samples)-HistorySize:]...)
	}
	e.expiresAt = now.Add(t.ttl)
}

// Metrics summarizes domain's history. ok is false when there is no live history.
func (t *Tracker) Metrics(domain string) (*model.HealthMetrics, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[domain]
	if !ok || e.expired(t.now()) || len(e.samples) == 0 {
		return nil, false
	}
	return summarize(e.samples), true
}

// Invalidate forgets domain's history.
func (t *Tracker) Invalidate(domain string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, domain)
}

// Evict removes all expired histories and returns how many were removed.
func (t *Tracker) Evict() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	n := 0
	for k, e := range t.entries {
		if e.expired(now) {
			delete(t.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked domains, including expired ones.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func summarize(samples []ProbeResult) *model.HealthMetrics {
	last := samples[len(samples)-1]

	up, failed := 0, 0
	for _, s := range samples {
		if s.Reachable {
			up++
		}
		if !s.Reachable || !s.CapabilitiesWorking {
			failed++
		}
	}
	n := float64(len(samples))

	return &model.HealthMetrics{
		Status:           StatusOf(last),
		ResponseTimeMS:   model.Float(float64(last.ResponseTime) / float64(time.Millisecond)),
		UptimePercentage: model.Float(float64(up) / n * 100),
		ErrorRate:        model.Float(float64(failed) / n),
	}
}

// StatusOf classifies a single probe result.
func StatusOf(r ProbeResult) model.HealthStatus {
	switch {
	case !r.Reachable:
		return model.HealthUnhealthy
	case r.CapabilitiesWorking && r.ResponseTime < SlowResponse:
		return model.HealthHealthy
	default:
		return model.HealthDegraded
	}
}
