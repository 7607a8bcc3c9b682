package saga

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/draftea/organization-system/shared/models"
	"github.com/pkg/errors"
)

var (
	ErrInstanceNotFound = errors.New("saga instance not found")
	ErrInstanceExists   = errors.New("saga instance already exists")
	ErrVersionConflict  = errors.New("saga instance version conflict")
)

// InstanceStore persists saga instances between steps
type InstanceStore interface {
	Create(ctx context.Context, instance *Instance) error
	Load(ctx context.Context, id models.ID) (*Instance, error)
	// Update stores instance if its Version matches the stored one and bumps it
	Update(ctx context.Context, instance *Instance) error
	// ListStalled returns non terminal instances not updated since before
	ListStalled(ctx context.Context, before time.Time, limit int) ([]*Instance, error)
}

var _ InstanceStore = (*MemoryStore)(nil)

// MemoryStore keeps instances in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	instances map[models.ID]*Instance
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{instances: make(map[models.ID]*Instance)}
}

func (s *MemoryStore) Create(_ context.Context, instance *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[instance.ID]; ok {
		return ErrInstanceExists
	}

	instance.Version = 1
	s.instances[instance.ID] = instance.Clone()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id models.ID) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instance, ok := s.instances[id]
	if !ok {
		return nil, ErrInstanceNotFound
	}
	return instance.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, instance *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.instances[instance.ID]
	if !ok {
		return ErrInstanceNotFound
	}
	if stored.Version != instance.Version {
		return errors.Wrapf(ErrVersionConflict, "expected version %d, got %d", instance.Version, stored.Version)
	}

	instance.Version++
	s.instances[instance.ID] = instance.Clone()
	return nil
}

func (s *MemoryStore) ListStalled(_ context.Context, before time.Time, limit int) ([]*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stalled []*Instance
	for _, instance := range s.instances {
		if instance.Status.IsTerminal() || !instance.UpdatedAt.Before(before) {
			continue
		}
		stalled = append(stalled, instance.Clone())
	}

	sort.Slice(stalled, func(i, j int) bool {
		return stalled[i].UpdatedAt.Before(stalled[j].UpdatedAt)
	})

	if limit > 0 && len(stalled) > limit {
		stalled = stalled[:limit]
	}
	return stalled, nil
}
