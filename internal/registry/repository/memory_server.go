package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/mcptrust/internal/registry/model"
)

// MemoryServerRegistry is an in-process registry used with the memory storage
// driver and in tests. It mirrors ServerRepository's semantics.
type MemoryServerRegistry struct {
	mu      sync.RWMutex
	servers map[string]model.RegistrationRecord
}

// NewMemoryServerRegistry creates an empty registry.
func NewMemoryServerRegistry() *MemoryServerRegistry {
	return &MemoryServerRegistry{servers: make(map[string]model.RegistrationRecord)}
}

// Register adds rec. A domain may only be registered once.
func (m *MemoryServerRegistry) Register(_ context.Context, rec *model.RegistrationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.servers[rec.Domain]; exists {
		return fmt.Errorf("insert server: domain %q already registered", rec.Domain)
	}
	rec.ID = uuid.New()
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Capabilities = model.NormalizeCapabilities(rec.Capabilities)
	if rec.Capabilities == nil {
		rec.Capabilities = []string{}
	}
	m.servers[rec.Domain] = cloneRecord(*rec)
	return nil
}

// GetServersByDomain returns zero or one record for domain.
func (m *MemoryServerRegistry) GetServersByDomain(_ context.Context, domain string) ([]*model.RegistrationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.servers[domain]
	if !ok {
		return nil, nil
	}
	cp := cloneRecord(rec)
	return []*model.RegistrationRecord{&cp}, nil
}

// UnregisterServer removes the record for domain, if any.
func (m *MemoryServerRegistry) UnregisterServer(_ context.Context, domain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.servers, domain)
	return nil
}

// UpdateServer applies patch to the record for domain.
func (m *MemoryServerRegistry) UpdateServer(_ context.Context, domain string, patch model.ServerPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.servers[domain]
	if !ok {
		return ErrServerNotFound
	}
	rec = patch.Apply(rec)
	rec.UpdatedAt = time.Now().UTC()
	m.servers[domain] = cloneRecord(rec)
	return nil
}

func cloneRecord(r model.RegistrationRecord) model.RegistrationRecord {
	if r.Capabilities != nil {
		r.Capabilities = append([]string{}, r.Capabilities...)
	}
	if r.VerifiedAt != nil {
		t := *r.VerifiedAt
		r.VerifiedAt = &t
	}
	return r
}
