package checkout

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "user:1")
			require.NoError(t, err)
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				old := atomic.LoadInt32(&maxInside)
				if n <= old || atomic.CompareAndSwapInt32(&maxInside, old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, m.size())
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	unlockA, err := m.Lock(ctx, "user:1")
	require.NoError(t, err)
	defer unlockA()

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockB, err := m.Lock(ctx2, "user:2")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_ContextCancelWhileWaiting(t *testing.T) {
	m := NewKeyedMutex()

	unlock, err := m.Lock(context.Background(), "guest:s")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "guest:s")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Equal(t, 0, m.size())
}

func TestKeyedMutex_UnlockTwiceIsSafe(t *testing.T) {
	m := NewKeyedMutex()

	unlock, err := m.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
	unlock()

	unlock, err = m.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	s := NewMemoryIdempotencyStore(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	res := &Result{}
	require.NoError(t, s.Put(ctx, "user:1", "k", res))

	got, ok, err := s.Get(ctx, "user:1", "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, res, got)

	_, ok, err = s.Get(ctx, "user:2", "k")
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = s.Get(ctx, "user:1", "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryIdempotencyStore_SeparatorInIdentity(t *testing.T) {
	s := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	res := &Result{}
	require.NoError(t, s.Put(ctx, "guest:a|b", "c", res))

	// "guest:a" + "b|c" would join to the same string
	_, ok, err := s.Get(ctx, "guest:a", "b|c")
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := s.Get(ctx, "guest:a|b", "c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, res, got)
}
