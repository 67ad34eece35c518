package crawl

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateReserveNeverOvershoots(t *testing.T) {
	s := NewState(10, 20)

	require.Equal(t, 10, s.Reserve(15))
	assert.Equal(t, 0, s.Reserve(1))
	assert.Equal(t, 0, s.Snapshot().Remaining())

	for i := 0; i < 8; i++ {
		s.Commit()
	}
	s.Release()
	s.Drop()

	snap := s.Snapshot()
	assert.Equal(t, 8, snap.Saved)
	assert.Equal(t, 0, snap.Reserved)
	assert.Equal(t, 1, snap.Dropped)
	assert.Equal(t, 2, snap.Remaining())
	assert.False(t, s.Done())

	assert.Equal(t, 2, s.Reserve(5))
	s.Commit()
	s.Commit()
	assert.True(t, s.Done())
}

func TestStateTryAcceptConcurrent(t *testing.T) {
	s := NewState(10, 1)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryAccept() {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), accepted.Load())
	assert.Equal(t, 10, s.Snapshot().Saved)
	assert.True(t, s.Done())
}

func TestStateUnboundedTarget(t *testing.T) {
	s := NewState(Unbounded, 0)
	snap := s.Snapshot()
	assert.Equal(t, Unbounded, snap.Target)
	assert.Equal(t, 1, snap.MaxPages, "max pages has a floor of one")
	assert.Equal(t, 1000, s.Reserve(1000))
	assert.Equal(t, Unbounded, s.Snapshot().Remaining())
	assert.False(t, s.Done())
}

func TestStateFiniteTargetFloor(t *testing.T) {
	for _, target := range []int{0, -1} {
		s := NewState(target, 1)
		assert.Equal(t, 1, s.Snapshot().Target)
		assert.Equal(t, 1, s.Reserve(5))
		s.Commit()
		assert.True(t, s.Done())
	}
}

func TestStateMarkSeen(t *testing.T) {
	s := NewState(1, 1)
	assert.True(t, s.MarkSeen("https://x/jobs/a/1"))
	assert.False(t, s.MarkSeen("https://x/jobs/a/1"))
	assert.True(t, s.MarkSeen("https://x/jobs/a/2"))
}

func TestStateUnaccept(t *testing.T) {
	s := NewState(1, 1)
	require.True(t, s.TryAccept())
	require.False(t, s.TryAccept())
	s.Unaccept()
	assert.True(t, s.TryAccept())
}

func TestStateVisitPage(t *testing.T) {
	s := NewState(1, 5)
	assert.Equal(t, 1, s.VisitPage())
	assert.Equal(t, 2, s.VisitPage())
	assert.Equal(t, 2, s.Snapshot().Pages)
}
