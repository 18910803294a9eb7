// Package coordinator implements the request router / replication
// coordinator, per spec.md §4.3: serve-locally vs forward-to-primary for
// client requests, and primary-write vs replica-write for internally
// routed requests.
//
// Grounded on the teacher's handlePut/handleDelete/handleSync split
// between client-originated and peer-originated writes, generalized from
// LWW-merge semantics to primary/replica routing.
package coordinator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/akshatgopal/distributed-cache-project/internal/cacheerr"
	"github.com/akshatgopal/distributed-cache-project/internal/entry"
	"github.com/akshatgopal/distributed-cache-project/internal/peerclient"
	"github.com/akshatgopal/distributed-cache-project/internal/ringhash"
	"github.com/akshatgopal/distributed-cache-project/internal/store"
	"github.com/akshatgopal/distributed-cache-project/internal/workerpool"
)

// Coordinator routes client and peer requests to the right node and
// replicates primary writes asynchronously.
type Coordinator struct {
	self   ringhash.Node
	ring   *ringhash.HashRing
	store  *store.LocalStore
	peer   *peerclient.PeerClient
	pool   *workerpool.Pool
	logger *zap.Logger
}

// New builds a Coordinator.
func New(self ringhash.Node, ring *ringhash.HashRing, s *store.LocalStore, peer *peerclient.PeerClient, pool *workerpool.Pool, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{self: self, ring: ring, store: s, peer: peer, pool: pool, logger: logger}
}

// Get serves a client GET. If this node is the primary for key, it serves
// from LocalStore; otherwise it forwards to the primary. There is no
// replica fall-back on primary failure: the error is surfaced.
func (c *Coordinator) Get(ctx context.Context, key string) (entry.Value, bool, error) {
	primary, err := c.ring.Primary(key)
	if err != nil {
		return entry.Value{}, false, errors.Wrap(err, "coordinator: get")
	}
	if primary == c.self {
		v, ok := c.store.Get(key)
		return v, ok, nil
	}
	return c.peer.ForwardGet(ctx, primary, key)
}

// Put serves a client PUT. If this node is primary, it writes locally and
// fans out to replicas; otherwise it forwards to the primary and surfaces
// that call's result.
func (c *Coordinator) Put(ctx context.Context, key string, value entry.Value, ttl time.Duration) error {
	primary, err := c.ring.Primary(key)
	if err != nil {
		return errors.Wrap(err, "coordinator: put")
	}
	if primary == c.self {
		return c.primaryWrite(ctx, key, value, ttl)
	}
	return c.peer.ForwardPut(ctx, primary, key, value, ttl)
}

// Delete serves a client DELETE, symmetric to Put. An empty ring is
// treated as a no-op success, per spec.md §4.3's tie-break rule for
// deletes.
func (c *Coordinator) Delete(ctx context.Context, key string) error {
	primary, err := c.ring.Primary(key)
	if err != nil {
		if errors.Is(err, cacheerr.ErrRingEmpty) {
			return nil
		}
		return errors.Wrap(err, "coordinator: delete")
	}
	if primary == c.self {
		return c.primaryDelete(ctx, key)
	}
	return c.peer.ForwardDelete(ctx, primary, key)
}

// GetAll returns this node's local, non-expired (key, value) pairs. This
// is a per-node view, not a cluster-wide scan, despite the name clients
// see on the wire (spec.md §9 open question, preserved as specified).
func (c *Coordinator) GetAll() map[string]entry.Value {
	return c.store.Snapshot()
}

// OnInternalPut handles a PUT arriving on the internal peer endpoint. It
// recomputes primary(key) against the current ring: if this node is
// primary (e.g. the client's forward landed here), it replicates like any
// primary write; otherwise it's a replica write with no further routing.
func (c *Coordinator) OnInternalPut(ctx context.Context, key string, value entry.Value, ttl time.Duration) error {
	primary, err := c.ring.Primary(key)
	if err != nil {
		return errors.Wrap(err, "coordinator: internal put")
	}
	if primary == c.self {
		return c.primaryWrite(ctx, key, value, ttl)
	}
	c.replicaWrite(key, value, ttl)
	return nil
}

// OnInternalDelete is symmetric to OnInternalPut.
func (c *Coordinator) OnInternalDelete(ctx context.Context, key string) error {
	primary, err := c.ring.Primary(key)
	if err != nil {
		if errors.Is(err, cacheerr.ErrRingEmpty) {
			return nil
		}
		return errors.Wrap(err, "coordinator: internal delete")
	}
	if primary == c.self {
		return c.primaryDelete(ctx, key)
	}
	c.replicaDelete(key)
	return nil
}

// OnInternalGet serves purely from LocalStore; no further routing.
func (c *Coordinator) OnInternalGet(key string) (entry.Value, bool) {
	return c.store.Get(key)
}

// primaryWrite stores locally, then asynchronously fans the write out to
// up to R-1 other replicas. It returns success as soon as the local write
// completes; fan-out failures are logged, never surfaced.
func (c *Coordinator) primaryWrite(ctx context.Context, key string, value entry.Value, ttl time.Duration) error {
	c.store.Put(key, value, ttl)

	replicas, err := c.ring.ReplicaSet(key)
	if err != nil {
		// Ring emptied out from under us between Primary() and
		// ReplicaSet(); the local write already succeeded, so this is
		// not an error for the caller, only something to log.
		c.logger.Warn("coordinator: replica set unavailable after local write", zap.String("key", key), zap.Error(err))
		return nil
	}

	for _, node := range replicas {
		if node == c.self {
			continue
		}
		node := node
		submitted := c.pool.Submit(func() {
			fanoutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := c.peer.ForwardPut(fanoutCtx, node, key, value, ttl); err != nil {
				c.logger.Warn("coordinator: replication fan-out put failed",
					zap.String("key", key), zap.String("replica", node.Address()), zap.Error(err))
			}
		})
		if !submitted {
			c.logger.Warn("coordinator: replication worker pool full, dropped fan-out",
				zap.String("key", key), zap.String("replica", node.Address()))
		}
	}
	return nil
}

// primaryDelete is symmetric to primaryWrite.
func (c *Coordinator) primaryDelete(ctx context.Context, key string) error {
	c.store.Delete(key)

	replicas, err := c.ring.ReplicaSet(key)
	if err != nil {
		c.logger.Warn("coordinator: replica set unavailable after local delete", zap.String("key", key), zap.Error(err))
		return nil
	}

	for _, node := range replicas {
		if node == c.self {
			continue
		}
		node := node
		submitted := c.pool.Submit(func() {
			fanoutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := c.peer.ForwardDelete(fanoutCtx, node, key); err != nil {
				c.logger.Warn("coordinator: replication fan-out delete failed",
					zap.String("key", key), zap.String("replica", node.Address()), zap.Error(err))
			}
		})
		if !submitted {
			c.logger.Warn("coordinator: replication worker pool full, dropped fan-out",
				zap.String("key", key), zap.String("replica", node.Address()))
		}
	}
	return nil
}

// replicaWrite applies a local mutation only: no further routing, no
// fan-out.
func (c *Coordinator) replicaWrite(key string, value entry.Value, ttl time.Duration) {
	c.store.Put(key, value, ttl)
}

// replicaDelete is symmetric to replicaWrite.
func (c *Coordinator) replicaDelete(key string) {
	c.store.Delete(key)
}
