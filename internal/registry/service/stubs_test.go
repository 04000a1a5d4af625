package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmerrifield20/mcptrust/internal/registry/model"
	"github.com/jmerrifield20/mcptrust/internal/registry/repository"
	"github.com/jmerrifield20/mcptrust/internal/registry/service"
	"go.uber.org/zap"
)

// ── TXT verifier stub ──────────────────────────────────────────────────────

type stubTXT struct {
	ok    atomic.Bool
	calls atomic.Int32
	mu    sync.Mutex
	last  [2]string
}

func (s *stubTXT) VerifyTXTRecord(_ context.Context, name, value string) bool {
	s.calls.Add(1)
	s.mu.Lock()
	s.last = [2]string{name, value}
	s.mu.Unlock()
	return s.ok.Load()
}

// ── Registry stub ──────────────────────────────────────────────────────────

// stubRegistry can hold several records per domain, which the real
// registries never do, to exercise the anomaly path.
type stubRegistry struct {
	mu           sync.Mutex
	records      map[string][]*model.RegistrationRecord
	unregistered []string
	patches      []model.ServerPatch
	getErr       error
	unregErr     error
}

func newStubRegistry(recs ...*model.RegistrationRecord) *stubRegistry {
	r := &stubRegistry{records: make(map[string][]*model.RegistrationRecord)}
	for _, rec := range recs {
		r.records[rec.Domain] = append(r.records[rec.Domain], rec)
	}
	return r
}

func (r *stubRegistry) GetServersByDomain(_ context.Context, domain string) ([]*model.RegistrationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	var out []*model.RegistrationRecord
	for _, rec := range r.records[domain] {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (r *stubRegistry) UnregisterServer(_ context.Context, domain string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unregErr != nil {
		return r.unregErr
	}
	delete(r.records, domain)
	r.unregistered = append(r.unregistered, domain)
	return nil
}

func (r *stubRegistry) UpdateServer(_ context.Context, domain string, patch model.ServerPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	recs := r.records[domain]
	if len(recs) == 0 {
		return repository.ErrServerNotFound
	}
	updated := patch.Apply(*recs[0])
	recs[0] = &updated
	r.patches = append(r.patches, patch)
	return nil
}

func (r *stubRegistry) get(domain string) *model.RegistrationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if recs := r.records[domain]; len(recs) > 0 {
		cp := *recs[0]
		return &cp
	}
	return nil
}

// ── Ownership verifier stub ────────────────────────────────────────────────

type stubVerifier struct {
	result model.VerificationResult
	calls  atomic.Int32
}

func (v *stubVerifier) VerifyCurrentOwnership(_ context.Context, _ string) model.VerificationResult {
	v.calls.Add(1)
	return v.result
}

func verifiedBy(method string) *stubVerifier {
	return &stubVerifier{result: model.VerificationResult{Verified: true, Method: method, Details: "ok"}}
}

func unverified() *stubVerifier {
	return &stubVerifier{result: model.VerificationResult{Method: model.MethodNone, Details: "no proof"}}
}

// ── Storage that fails writes ──────────────────────────────────────────────

type failingStorage struct {
	*repository.MemoryStorage
	setErr    error
	deleteErr error
}

func (f *failingStorage) Set(ctx context.Context, c, k string, v any) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemoryStorage.Set(ctx, c, k, v)
}

func (f *failingStorage) Delete(ctx context.Context, c, k string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryStorage.Delete(ctx, c, k)
}

var errStorageDown = errors.New("storage unavailable")

// ── Helpers ────────────────────────────────────────────────────────────────

type fixture struct {
	store      *failingStorage
	repo       *repository.ChallengeRepository
	txt        *stubTXT
	registry   *stubRegistry
	challenges *service.ChallengeService
	now        time.Time
}

func newFixture(recs ...*model.RegistrationRecord) *fixture {
	f := &fixture{
		store:    &failingStorage{MemoryStorage: repository.NewMemoryStorage()},
		txt:      &stubTXT{},
		registry: newStubRegistry(recs...),
		now:      time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.repo = repository.NewChallengeRepository(f.store)
	f.challenges = service.NewChallengeService(f.repo, f.txt, f.registry, zap.NewNop())
	f.challenges.SetClock(func() time.Time { return f.now })
	return f
}

func record(domain, endpoint string, caps ...string) *model.RegistrationRecord {
	return &model.RegistrationRecord{Domain: domain, Endpoint: endpoint, Capabilities: caps}
}

func strPtr(s string) *string { return &s }
