package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func replacers(capacity int) map[string]Replacer {
	return map[string]Replacer{
		ReplacerClock: newClockReplacer(capacity),
		ReplacerLRU:   newLRUReplacer(capacity),
	}
}

func TestNewReplacer(t *testing.T) {
	r, err := NewReplacer("", 2)
	require.NoError(t, err)
	require.IsType(t, &clockReplacer{}, r)

	r, err = NewReplacer(ReplacerLRU, 2)
	require.NoError(t, err)
	require.IsType(t, &lruReplacer{}, r)

	_, err = NewReplacer("fifo", 2)
	require.Error(t, err)
}

func TestReplacer_SizeAndEvictable(t *testing.T) {
	for name, r := range replacers(4) {
		t.Run(name, func(t *testing.T) {
			r.RecordAccess(0)
			r.RecordAccess(1)
			require.Equal(t, 0, r.Size())

			r.SetEvictable(0, true)
			require.Equal(t, 1, r.Size())
			r.SetEvictable(0, true)
			require.Equal(t, 1, r.Size())

			r.SetEvictable(1, true)
			require.Equal(t, 2, r.Size())

			r.SetEvictable(0, false)
			require.Equal(t, 1, r.Size())

			// unknown frames are ignored
			r.SetEvictable(3, true)
			r.Remove(3)
			require.Equal(t, 1, r.Size())
		})
	}
}

func TestReplacer_NoneEvictable(t *testing.T) {
	for name, r := range replacers(2) {
		t.Run(name, func(t *testing.T) {
			r.RecordAccess(0)
			r.RecordAccess(1)
			_, ok := r.Evict()
			require.False(t, ok)
		})
	}
}

func TestReplacer_EvictsEachOnce(t *testing.T) {
	for name, r := range replacers(3) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				r.RecordAccess(i)
				r.SetEvictable(i, true)
			}
			seen := map[int]bool{}
			for i := 0; i < 3; i++ {
				v, ok := r.Evict()
				require.True(t, ok)
				require.False(t, seen[v])
				seen[v] = true
				require.Equal(t, 2-i, r.Size())
			}
			_, ok := r.Evict()
			require.False(t, ok)
		})
	}
}

func TestReplacer_RemovePreventsEviction(t *testing.T) {
	for name, r := range replacers(2) {
		t.Run(name, func(t *testing.T) {
			r.RecordAccess(0)
			r.RecordAccess(1)
			r.SetEvictable(0, true)
			r.SetEvictable(1, true)

			r.Remove(0)
			require.Equal(t, 1, r.Size())

			v, ok := r.Evict()
			require.True(t, ok)
			require.Equal(t, 1, v)

			_, ok = r.Evict()
			require.False(t, ok)
		})
	}
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	r := newLRUReplacer(3)
	for i := 0; i < 3; i++ {
		r.RecordAccess(i)
		r.SetEvictable(i, true)
	}
	r.RecordAccess(0)

	v, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, 1, v)

	v, ok = r.Evict()
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestClock_SecondChance(t *testing.T) {
	r := newClockReplacer(3)
	for i := 0; i < 3; i++ {
		r.RecordAccess(i)
		r.SetEvictable(i, true)
	}

	// every ref bit set: the first sweep clears them and frame 0 goes first
	v, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, 0, v)

	// frame 1 referenced again survives past frame 2
	r.RecordAccess(1)
	v, ok = r.Evict()
	require.True(t, ok)
	require.Equal(t, 2, v)
}
