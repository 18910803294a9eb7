// Package ringhash implements the consistent-hash ring: virtual nodes,
// primary lookup, and replica-set enumeration, per spec.md §3/§4.2.
//
// Grounded on rishabhverma17-HyperCache's cluster hashring (virtual-node
// shape, replication factor) and yarpc-go's peer/hashring32 (sorted
// position slice + binary search for O(log n) lookup), with murmur3 used
// for both virtual-position and key hashing as spec.md mandates.
package ringhash

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/spaolacci/murmur3"

	"github.com/akshatgopal/distributed-cache-project/internal/cacheerr"
)

// VirtualNodesPerPhysical is V from spec.md §3: 100 hash positions per
// physical node.
const VirtualNodesPerPhysical = 100

type position struct {
	hash uint32
	node Node
}

// HashRing is an ordered mapping from 32-bit positions to physical Nodes.
// Reads (Primary, ReplicaSet, PhysicalNodes) are the hot path and take
// only a read lock; mutation (AddPhysical, RemovePhysical) is infrequent
// and takes a write lock.
type HashRing struct {
	mu                sync.RWMutex
	positions         []position // sorted by hash
	physical          map[Node]struct{}
	replicationFactor int
	onWarning         func(format string, args ...any)
}

// New builds an empty ring with the given (fixed-at-startup) replication
// factor. onWarning, if non-nil, receives ring-level warnings (short
// replica sets); pass nil to discard them.
func New(replicationFactor int, onWarning func(format string, args ...any)) *HashRing {
	if replicationFactor < 1 {
		replicationFactor = 1
	}
	if onWarning == nil {
		onWarning = func(string, ...any) {}
	}
	return &HashRing{
		physical:          make(map[Node]struct{}),
		replicationFactor: replicationFactor,
		onWarning:         onWarning,
	}
}

func hash32(b []byte) uint32 {
	return murmur3.Sum32(b)
}

// AddPhysical inserts V virtual positions for node. It is idempotent: a
// repeated call with the same node replaces the prior positions at
// identical hashes (functionally a no-op, since the hash of a given
// virtual-position label is deterministic).
func (r *HashRing) AddPhysical(node Node) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removePositionsLocked(node)

	addr := node.Address()
	for i := 0; i < VirtualNodesPerPhysical; i++ {
		label := fmt.Sprintf("%s-%d", addr, i)
		r.positions = append(r.positions, position{hash: hash32([]byte(label)), node: node})
	}
	sort.Slice(r.positions, func(i, j int) bool { return r.positions[i].hash < r.positions[j].hash })
	r.physical[node] = struct{}{}
}

// RemovePhysical removes every position mapped to node.
func (r *HashRing) RemovePhysical(node Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removePositionsLocked(node)
	delete(r.physical, node)
}

func (r *HashRing) removePositionsLocked(node Node) {
	if len(r.positions) == 0 {
		return
	}
	filtered := r.positions[:0]
	for _, p := range r.positions {
		if p.node != node {
			filtered = append(filtered, p)
		}
	}
	r.positions = filtered
}

// Primary returns the Node owning key: the node at the smallest position
// >= hash(key), wrapping cyclically to the smallest position overall.
func (r *HashRing) Primary(key string) (Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.positions) == 0 {
		return Node{}, errors.Wrapf(cacheerr.ErrRingEmpty, "primary(%q)", key)
	}
	idx := r.searchLocked(hash32([]byte(key)))
	return r.positions[idx].node, nil
}

// searchLocked returns the index of the first position >= h, wrapping to
// 0 if h is greater than every position. Caller must hold r.mu.
func (r *HashRing) searchLocked(h uint32) int {
	idx := sort.Search(len(r.positions), func(i int) bool { return r.positions[i].hash >= h })
	if idx == len(r.positions) {
		return 0
	}
	return idx
}

// ReplicaSet returns up to R distinct physical Nodes clockwise from (and
// including) the primary for key. If fewer than R physical nodes exist,
// it returns what it has and logs a warning, per spec.md §4.2/§4.3.
func (r *HashRing) ReplicaSet(key string) ([]Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.positions) == 0 {
		return nil, errors.Wrapf(cacheerr.ErrRingEmpty, "replicaSet(%q)", key)
	}

	start := r.searchLocked(hash32([]byte(key)))
	seen := make(map[Node]struct{}, r.replicationFactor)
	result := make([]Node, 0, r.replicationFactor)

	maxVisits := 2 * len(r.positions)
	for i := 0; i < len(r.positions) && i < maxVisits && len(result) < r.replicationFactor; i++ {
		p := r.positions[(start+i)%len(r.positions)]
		if _, dup := seen[p.node]; dup {
			continue
		}
		seen[p.node] = struct{}{}
		result = append(result, p.node)
	}

	if len(result) < r.replicationFactor {
		r.onWarning("ringhash: replica set for %q has only %d of %d requested replicas (physical nodes=%d)",
			key, len(result), r.replicationFactor, len(r.physical))
	}
	return result, nil
}

// PhysicalNodes returns the distinct Nodes currently in the ring.
func (r *HashRing) PhysicalNodes() []Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Node, 0, len(r.physical))
	for n := range r.physical {
		out = append(out, n)
	}
	return out
}

// Contains reports whether node is currently a member of the ring.
func (r *HashRing) Contains(node Node) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.physical[node]
	return ok
}
