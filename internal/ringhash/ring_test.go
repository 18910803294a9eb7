package ringhash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func nodeAt(i int) Node {
	return Node{ID: "n", Host: "localhost", Port: 8080 + i}
}

func TestPrimaryIsDeterministic(t *testing.T) {
	r := New(2, nil)
	for i := 0; i < 3; i++ {
		r.AddPhysical(nodeAt(i))
	}
	p1, err := r.Primary("alpha")
	require.NoError(t, err)
	p2, err := r.Primary("alpha")
	require.NoError(t, err)
	require.Equal(t, p1, p2)
}

func TestPrimaryOnEmptyRingErrors(t *testing.T) {
	r := New(1, nil)
	_, err := r.Primary("k")
	require.Error(t, err)
}

func TestReplicaSetLengthAndPrimaryFirst(t *testing.T) {
	r := New(2, nil)
	for i := 0; i < 3; i++ {
		r.AddPhysical(nodeAt(i))
	}
	primary, err := r.Primary("k")
	require.NoError(t, err)

	set, err := r.ReplicaSet("k")
	require.NoError(t, err)
	require.Len(t, set, 2)
	require.Equal(t, primary, set[0])

	// All distinct.
	seen := map[Node]bool{}
	for _, n := range set {
		require.False(t, seen[n])
		seen[n] = true
	}
}

func TestReplicaSetShrinksWhenFewerPhysicalNodesThanR(t *testing.T) {
	r := New(5, func(string, ...any) {})
	r.AddPhysical(nodeAt(0))
	r.AddPhysical(nodeAt(1))

	set, err := r.ReplicaSet("k")
	require.NoError(t, err)
	require.Len(t, set, 2)
}

func TestAddPhysicalIsIdempotent(t *testing.T) {
	r := New(1, nil)
	n := nodeAt(0)
	r.AddPhysical(n)
	countAfterFirst := len(r.positions)
	r.AddPhysical(n)
	require.Equal(t, countAfterFirst, len(r.positions))
	require.Len(t, r.PhysicalNodes(), 1)
}

func TestRemovePhysicalDropsAllItsPositions(t *testing.T) {
	r := New(1, nil)
	a, b := nodeAt(0), nodeAt(1)
	r.AddPhysical(a)
	r.AddPhysical(b)
	r.RemovePhysical(a)

	require.False(t, r.Contains(a))
	require.True(t, r.Contains(b))
	for _, p := range r.positions {
		require.NotEqual(t, a, p.node)
	}
}

// TestAddingNodeMovesOnlySomeKeys checks the spec.md invariant: adding a
// physical node should move only the keys whose hash falls in its new
// virtual ranges, not every key's primary.
func TestAddingNodeMovesOnlySomeKeys(t *testing.T) {
	r := New(1, nil)
	for i := 0; i < 4; i++ {
		r.AddPhysical(nodeAt(i))
	}
	keys := make([]string, 200)
	before := make(map[string]Node, 200)
	for i := range keys {
		keys[i] = "key-" + string(rune('a'+i%26)) + string(rune('0'+i%10)) + string(rune('A'+i%26))
		p, err := r.Primary(keys[i])
		require.NoError(t, err)
		before[keys[i]] = p
	}

	r.AddPhysical(nodeAt(4))

	moved := 0
	for _, k := range keys {
		p, err := r.Primary(k)
		require.NoError(t, err)
		if p != before[k] {
			require.Equal(t, nodeAt(4), p)
			moved++
		}
	}
	// Some keys must move to the new node, but not all of them.
	require.Greater(t, moved, 0)
	require.Less(t, moved, len(keys))
}
