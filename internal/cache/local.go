package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/flightdesk/internal/domain"
)

// LocalLocker is an in-process keyed semaphore used when Redis is not configured.
// ttl is ignored: the lock lives until release.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot), wait: wait}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.unref(key, s)
			})
		}, nil
	case <-timer.C:
		l.unref(key, s)
		return nil, fmt.Errorf("lock %s: %w", key, domain.ErrConcurrencyConflict)
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

type MemorySnapshots struct {
	mu    sync.RWMutex
	items map[string]domain.SearchSnapshot
}

func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{items: make(map[string]domain.SearchSnapshot)}
}

func (m *MemorySnapshots) Save(_ context.Context, snap domain.SearchSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[snap.ID] = snap
	return nil
}

func (m *MemorySnapshots) Load(_ context.Context, id string) (domain.SearchSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.items[id]
	if !ok {
		return domain.SearchSnapshot{}, fmt.Errorf("search %s: %w", id, domain.ErrNotFound)
	}
	return snap, nil
}

// MemoryDedupe remembers delivery keys for the life of the process.
type MemoryDedupe struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDedupe() *MemoryDedupe {
	return &MemoryDedupe{seen: make(map[string]struct{})}
}

func (m *MemoryDedupe) FirstDelivery(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = struct{}{}
	return true, nil
}

func (m *MemoryDedupe) Forget(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, key)
	return nil
}
