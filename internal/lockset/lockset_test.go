package lockset

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockExcludes(t *testing.T) {
	s := New()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := s.Lock(ctx, ProjectKey("WEB"))
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, held(s), "idle entries are dropped")
}

func TestDistinctKeysDoNotBlock(t *testing.T) {
	s := New()
	ctx := context.Background()

	unlockA, err := s.Lock(ctx, "project:A")
	require.NoError(t, err)
	defer unlockA()

	unlockB, ok := s.TryLock("project:B")
	require.True(t, ok)
	unlockB()

	_, ok = s.TryLock("project:A")
	assert.False(t, ok)
	assert.Equal(t, 1, held(s))
}

func TestLockHonoursContext(t *testing.T) {
	s := New()
	unlock, err := s.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // second call is a no-op
	assert.Equal(t, 0, held(s))

	unlock, err = s.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
}

func TestZeroValueUsable(t *testing.T) {
	var s Set
	unlock, err := s.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
}

// held reports how many keys have holders or waiters.
func held(s *Set) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
