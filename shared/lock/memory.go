package lock

import (
	"context"
	"sync"
	"sync/atomic"
)

var _ Manager = (*MemoryManager)(nil)

// MemoryManager is a process local Manager
type MemoryManager struct {
	mu     sync.Mutex
	slots  map[string]*slot
	policy Policy
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewMemoryManager creates an in-process lock manager
func NewMemoryManager(policy Policy) *MemoryManager {
	return &MemoryManager{
		slots:  make(map[string]*slot),
		policy: policy,
	}
}

// Acquire takes the target, waiting for the current holder unless the
// manager is fail fast.
func (m *MemoryManager) Acquire(ctx context.Context, target Target) (Handle, error) {
	key := target.Key()
	s := m.ref(key)

	if m.policy == PolicyFailFast {
		select {
		case s.ch <- struct{}{}:
		default:
			m.unref(key)
			return nil, ErrLockHeld
		}
	} else {
		select {
		case s.ch <- struct{}{}:
		case <-ctx.Done():
			m.unref(key)
			return nil, ctx.Err()
		}
	}

	return &memoryHandle{manager: m, target: target, slot: s}, nil
}

// Held reports whether target is currently held
func (m *MemoryManager) Held(target Target) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[target.Key()]
	return ok && len(s.ch) > 0
}

func (m *MemoryManager) ref(key string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	return s
}

func (m *MemoryManager) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs <= 0 {
		delete(m.slots, key)
	}
}

type memoryHandle struct {
	manager  *MemoryManager
	target   Target
	slot     *slot
	released atomic.Bool
}

func (h *memoryHandle) Target() Target {
	return h.target
}

func (h *memoryHandle) Release(_ context.Context) error {
	if !h.released.CompareAndSwap(false, true) {
		return ErrNotHeld
	}
	<-h.slot.ch
	h.manager.unref(h.target.Key())
	return nil
}
