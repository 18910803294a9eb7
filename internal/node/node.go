// Package node wires one distcache process together: config, logger,
// LocalStore, HashRing, PeerClient, worker pool, Membership, Coordinator,
// and the three HTTP surfaces (public, internal, admin).
//
// Grounded on the teacher's cmd/cache-node/main.go + internal/cache.Node,
// which owns the same set of collaborators (store, client, peers) behind
// one struct; generalized into its own package so cmd/distcache-node can
// stay a thin CLI frontend.
package node

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/akshatgopal/distributed-cache-project/internal/config"
	"github.com/akshatgopal/distributed-cache-project/internal/coordinator"
	"github.com/akshatgopal/distributed-cache-project/internal/membership"
	"github.com/akshatgopal/distributed-cache-project/internal/metrics"
	"github.com/akshatgopal/distributed-cache-project/internal/peerclient"
	"github.com/akshatgopal/distributed-cache-project/internal/ringhash"
	"github.com/akshatgopal/distributed-cache-project/internal/store"
	"github.com/akshatgopal/distributed-cache-project/internal/transport/httpapi"
	"github.com/akshatgopal/distributed-cache-project/internal/workerpool"
)

// Node is one running distcache process.
type Node struct {
	cfg    *config.Config
	logger *zap.Logger

	self       ringhash.Node
	ring       *ringhash.HashRing
	store      *store.LocalStore
	peer       *peerclient.PeerClient
	pool       *workerpool.Pool
	membership *membership.Membership
	coord      *coordinator.Coordinator
	collector  *metrics.Collector

	publicSrv   *http.Server
	internalSrv *http.Server
	adminSrv    *http.Server

	metricsMu   sync.Mutex
	lastMetrics metrics.CounterSnapshot
}

// New constructs a Node and all of its collaborators. The store's TTL
// sweeper and the worker pool's goroutines start here; Membership's loops
// and the HTTP listeners do not start until Run.
func New(cfg *config.Config, logger *zap.Logger) *Node {
	if logger == nil {
		logger = zap.NewNop()
	}

	self := ringhash.Node{ID: cfg.NodeID, Host: cfg.NodeHost, Port: cfg.NodePort}
	ring := ringhash.New(cfg.ReplicationFactor, func(format string, args ...any) {
		logger.Sugar().Warnf(format, args...)
	})
	s := store.New(cfg.MaxEntries, logger)
	peer := peerclient.New(cfg.ConnectTimeout, cfg.ReadTimeout, cfg.HeartbeatTimeout, logger)
	pool := workerpool.New(cfg.WorkerPoolSize, cfg.WorkerPoolSize*4)

	initialPeers := make([]string, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		if p != self.Address() {
			initialPeers = append(initialPeers, p)
		}
	}
	mem := membership.New(self, ring, peer, initialPeers, logger)
	coord := coordinator.New(self, ring, s, peer, pool, logger)
	collector := metrics.New(cfg.NodeID)

	n := &Node{
		cfg:        cfg,
		logger:     logger,
		self:       self,
		ring:       ring,
		store:      s,
		peer:       peer,
		pool:       pool,
		membership: mem,
		coord:      coord,
		collector:  collector,
	}

	publicRouter := httpapi.NewPublicRouter(coord, logger)
	internalRouter := httpapi.NewInternalRouter(coord, mem.OnHeartbeatReceived, logger)
	adminRouter := httpapi.NewAdminRouter(n.adminStats, collector, logger)

	n.publicSrv = &http.Server{Addr: cfg.PublicAddr, Handler: publicRouter, ReadHeaderTimeout: 5 * time.Second}
	n.internalSrv = &http.Server{Addr: cfg.InternalAddr, Handler: internalRouter, ReadHeaderTimeout: 5 * time.Second}
	n.adminSrv = &http.Server{Addr: cfg.AdminAddr, Handler: adminRouter, ReadHeaderTimeout: 5 * time.Second}

	return n
}

// adminStats gathers the GET /admin/stats snapshot.
func (n *Node) adminStats() httpapi.AdminStats {
	stats := n.store.Stats()
	var ratio float64
	if total := stats.Hits + stats.Misses; total > 0 {
		ratio = float64(stats.Hits) / float64(total)
	}
	n.refreshGauges(stats)

	return httpapi.AdminStats{
		NodeID:                      n.self.ID,
		NodeAddress:                 n.self.Address(),
		Status:                      "UP",
		LocalKeyCount:               n.store.Size(),
		LocalMemoryUsageBytes:       n.store.MemoryUsage(),
		TotalJVMMemoryBytes:         n.store.TotalMemory(),
		CacheHitCount:               stats.Hits,
		CacheMissCount:              stats.Misses,
		CacheHitRatio:               ratio,
		PutCount:                    stats.Puts,
		DeleteCount:                 stats.Deletes,
		LastHeartbeatReceivedMillis: n.membership.LastHeartbeatReceivedMillis(),
		ActivePeerAddresses:         n.membership.ActiveAddresses(),
	}
}

// refreshGauges pushes the latest LocalStore/Membership readings into the
// Prometheus collector: counters advance by the delta since the last
// observation (Prometheus counters are monotonic-only), gauges are set
// directly from current state.
func (n *Node) refreshGauges(stats store.Stats) {
	n.metricsMu.Lock()
	prev := n.lastMetrics
	n.lastMetrics = n.collector.Observe(prev.Hits, prev.Misses, prev.Puts, prev.Deletes, metrics.CounterSnapshot{
		Hits:    stats.Hits,
		Misses:  stats.Misses,
		Puts:    stats.Puts,
		Deletes: stats.Deletes,
	})
	n.metricsMu.Unlock()

	n.collector.LocalKeys.Set(float64(n.store.Size()))
	n.collector.ActivePeers.Set(float64(len(n.membership.ActiveAddresses())))
}

// Run starts Membership's background loops and all three HTTP listeners.
// It blocks until ctx is cancelled, then shuts everything down gracefully.
func (n *Node) Run(ctx context.Context) error {
	n.membership.Start(ctx)

	errCh := make(chan error, 3)
	go func() { errCh <- serveOrNil(n.publicSrv) }()
	go func() { errCh <- serveOrNil(n.internalSrv) }()
	go func() { errCh <- serveOrNil(n.adminSrv) }()

	n.logger.Info("node: listening",
		zap.String("node_id", n.self.ID),
		zap.String("public_addr", n.cfg.PublicAddr),
		zap.String("internal_addr", n.cfg.InternalAddr),
		zap.String("admin_addr", n.cfg.AdminAddr))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			n.logger.Error("node: listener failed", zap.Error(err))
		}
	}

	return n.Shutdown()
}

// Shutdown stops background tasks and HTTP listeners. It is not safe to
// call more than once: a second call panics closing Membership's and the
// worker pool's already-closed stop channels. Run calls it on exit.
func (n *Node) Shutdown() error {
	n.membership.Shutdown()
	n.store.Shutdown()
	n.pool.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var firstErr error
	for _, srv := range []*http.Server{n.publicSrv, n.internalSrv, n.adminSrv} {
		if err := srv.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func serveOrNil(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
