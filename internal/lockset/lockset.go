// Package lockset provides mutual exclusion scoped by string key.
//
// Each key maps to a weight-1 semaphore, so waiters acquire in arrival
// order and give up when their context ends. Entries are reference counted
// and dropped once nobody holds or waits on them.
package lockset

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Set is a collection of keyed locks. The zero value is ready to use.
type Set struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// New returns an empty Set.
func New() *Set {
	return &Set{}
}

// Lock blocks until key is held or ctx is done. The returned unlock must be
// called exactly once.
func (s *Set) Lock(ctx context.Context, key string) (unlock func(), err error) {
	e := s.acquireRef(key)
	if err := e.sem.Acquire(ctx, 1); err != nil {
		s.releaseRef(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			s.releaseRef(key, e)
		})
	}, nil
}

// TryLock acquires key without blocking. ok is false when it is held.
func (s *Set) TryLock(key string) (unlock func(), ok bool) {
	e := s.acquireRef(key)
	if !e.sem.TryAcquire(1) {
		s.releaseRef(key, e)
		return nil, false
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			s.releaseRef(key, e)
		})
	}, true
}

func (s *Set) acquireRef(key string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*entry)
	}
	e, ok := s.locks[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		s.locks[key] = e
	}
	e.refs++
	return e
}

func (s *Set) releaseRef(key string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(s.locks, key)
	}
}

// ProjectKey is the lock key guarding all mutations within a project.
func ProjectKey(projectID string) string {
	return "project:" + projectID
}
