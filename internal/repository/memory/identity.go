// Package memory holds in-process repository implementations for
// single-instance deployments that list their identities in the config
// file, and for tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/warmup-scheduler/internal/domain"
	"github.com/ignite/warmup-scheduler/internal/service/sending"
)

// IdentityRegistry implements sending.Registry over a map.
type IdentityRegistry struct {
	mu         sync.RWMutex
	identities map[string]*domain.Identity
}

// NewIdentityRegistry copies the given identities into a new registry.
func NewIdentityRegistry(ids []domain.Identity) *IdentityRegistry {
	r := &IdentityRegistry{
		identities: make(map[string]*domain.Identity, len(ids)),
	}
	for _, id := range ids {
		cp := id
		r.identities[id.ID] = &cp
	}
	return r
}

// Put adds or replaces an identity.
func (r *IdentityRegistry) Put(id domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[id.ID] = &id
}

func (r *IdentityRegistry) List(_ context.Context) ([]domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Identity, 0, len(r.identities))
	for _, id := range r.identities {
		out = append(out, *id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *IdentityRegistry) Get(_ context.Context, id string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ident, ok := r.identities[id]
	if !ok {
		return nil, sending.ErrIdentityNotFound
	}
	cp := *ident
	return &cp, nil
}

func (r *IdentityRegistry) IncrementSent(_ context.Context, id string, day string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.identities[id]
	if !ok {
		return sending.ErrIdentityNotFound
	}
	if ident.SentTodayDate != day {
		ident.SentTodayDate = day
		ident.EmailsSentToday = 0
	}
	ident.EmailsSentToday++
	ident.EmailsSentTotal++
	return nil
}

func (r *IdentityRegistry) RecordError(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.identities[id]
	if !ok {
		return sending.ErrIdentityNotFound
	}
	ident.LastError = &at
	return nil
}
