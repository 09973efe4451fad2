package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_MutualExclusion(t *testing.T) {
	l := NewLocalLocker(time.Second)
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "BK1", time.Minute)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.slots)
}

func TestLocalLocker_WaitExpiresWithConflict(t *testing.T) {
	l := NewLocalLocker(20 * time.Millisecond)
	release, err := l.Acquire(context.Background(), "BK1", time.Minute)
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(context.Background(), "BK1", time.Minute)

	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	l := NewLocalLocker(20 * time.Millisecond)
	r1, err := l.Acquire(context.Background(), "BK1", time.Minute)
	require.NoError(t, err)
	defer r1()

	r2, err := l.Acquire(context.Background(), "BK2", time.Minute)
	require.NoError(t, err)
	r2()
	r2()
}

func TestMemorySnapshots(t *testing.T) {
	s := NewMemorySnapshots()
	ctx := context.Background()

	_, err := s.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Save(ctx, domain.SearchSnapshot{ID: "S1", AnyPolling: true}))
	got, err := s.Load(ctx, "S1")
	require.NoError(t, err)
	assert.True(t, got.AnyPolling)
}

func TestMemoryDedupe(t *testing.T) {
	d := NewMemoryDedupe()
	ctx := context.Background()

	first, _ := d.FirstDelivery(ctx, "ORD-1:ticket.issued")
	second, _ := d.FirstDelivery(ctx, "ORD-1:ticket.issued")
	assert.True(t, first)
	assert.False(t, second)

	require.NoError(t, d.Forget(ctx, "ORD-1:ticket.issued"))
	again, _ := d.FirstDelivery(ctx, "ORD-1:ticket.issued")
	assert.True(t, again)
}
