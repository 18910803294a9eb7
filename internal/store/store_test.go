package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akshatgopal/distributed-cache-project/internal/entry"
)

func val(s string) entry.Value { return entry.Value{Bytes: []byte(s), ContentType: "text/plain"} }

func TestPutGetRoundTrip(t *testing.T) {
	s := New(10, nil)
	defer s.Shutdown()

	s.Put("k", val("v"), 0)
	got, ok := s.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", string(got.Bytes))
}

func TestZeroTTLNeverExpires(t *testing.T) {
	s := New(10, nil)
	defer s.Shutdown()

	s.Put("k", val("v"), 0)
	time.Sleep(5 * time.Millisecond)
	_, ok := s.Get("k")
	require.True(t, ok)
}

func TestExpiredEntryIsRemovedOnGet(t *testing.T) {
	s := New(10, nil)
	defer s.Shutdown()

	s.Put("k", val("v"), 1*time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	_, ok := s.Get("k")
	require.False(t, ok)
	require.Equal(t, uint64(1), s.Stats().Misses)
}

func TestDeleteRemovesKeyAndCountsUnconditionally(t *testing.T) {
	s := New(10, nil)
	defer s.Shutdown()

	s.Put("k", val("v"), 0)
	s.Delete("k")
	_, ok := s.Get("k")
	require.False(t, ok)

	// Deleting an already-missing key still increments deletes.
	s.Delete("missing")
	require.Equal(t, uint64(2), s.Stats().Deletes)
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	s := New(3, nil)
	defer s.Shutdown()

	s.Put("k1", val("1"), 0)
	s.Put("k2", val("2"), 0)
	s.Put("k3", val("3"), 0)
	s.Put("k4", val("4"), 0)

	require.LessOrEqual(t, s.Size(), 3)
	_, ok := s.Get("k1")
	require.False(t, ok, "k1 should have been evicted as least-recently-used")

	_, ok = s.Get("k4")
	require.True(t, ok)
}

func TestAccessPromotesKeyAndSavesItFromEviction(t *testing.T) {
	s := New(2, nil)
	defer s.Shutdown()

	s.Put("a", val("1"), 0)
	s.Put("b", val("2"), 0)
	// touch a, making b the least-recently-used
	_, _ = s.Get("a")
	s.Put("c", val("3"), 0)

	_, ok := s.Get("b")
	require.False(t, ok, "b should be evicted since a was refreshed")
	_, ok = s.Get("a")
	require.True(t, ok)
}

func TestMisconfiguredCapacityFallsBackToDefault(t *testing.T) {
	s := New(0, nil)
	defer s.Shutdown()
	require.Equal(t, DefaultMaxEntries, s.maxEntries)
}

func TestSnapshotExcludesExpiredAndIsConsistent(t *testing.T) {
	s := New(10, nil)
	defer s.Shutdown()

	s.Put("live", val("v"), 0)
	s.Put("dead", val("v"), 1*time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	snap := s.Snapshot()
	require.Contains(t, snap, "live")
	require.NotContains(t, snap, "dead")

	// Repeating the same operations yields identical observable state.
	snap2 := s.Snapshot()
	require.Equal(t, snap, snap2)
}

func TestHitsPlusMissesEqualsTotalGetCalls(t *testing.T) {
	s := New(10, nil)
	defer s.Shutdown()

	s.Put("k", val("v"), 0)
	s.Get("k")
	s.Get("missing")
	s.Get("k")

	stats := s.Stats()
	require.Equal(t, uint64(3), stats.Hits+stats.Misses)
}
