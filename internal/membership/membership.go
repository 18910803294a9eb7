// Package membership implements the heartbeat-based failure detector:
// last-seen table, periodic sender/sweeper, and ring mutation on
// join/leave/rejoin, per spec.md §4.5.
//
// Grounded on the teacher's HeartbeatLoop/bumpFail (periodic peer polling,
// failure-based pruning), restructured around last-seen timestamps and a
// fixed liveness timeout the way tschottdorf-cockroach's node_liveness.go
// tracks node liveness, since spec.md ties eviction to elapsed time
// rather than a failure count.
package membership

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/akshatgopal/distributed-cache-project/internal/peerclient"
	"github.com/akshatgopal/distributed-cache-project/internal/ringhash"
)

// PeerTimeout is the liveness timeout from spec.md §3/glossary: a peer
// silent for longer than this is declared dead and evicted from the ring.
const PeerTimeout = 15 * time.Second

// HeartbeatInterval is the period for both the sender and sweeper tasks,
// per spec.md §4.5.
const HeartbeatInterval = 5 * time.Second

// Membership owns the peerLastSeen table and mutates the shared HashRing
// on join/leave/rejoin.
type Membership struct {
	self   ringhash.Node
	ring   *ringhash.HashRing
	client *peerclient.PeerClient
	logger *zap.Logger

	mu           sync.RWMutex
	peerLastSeen map[string]int64         // address -> unix millis
	peerNodes    map[string]ringhash.Node // address -> identity as last seen on a heartbeat

	heartbeatsReceived   atomic.Uint64
	lastHeartbeatReceived atomic.Int64 // unix millis of most recent inbound heartbeat

	senderStop  chan struct{}
	sweeperStop chan struct{}
}

// New builds a Membership table seeded with initialPeers (all stamped
// now) and adds self to the ring before returning, per spec.md §4.5's
// startup-ordering requirement. initialPeers are "host:port" strings,
// excluding self.
func New(self ringhash.Node, ring *ringhash.HashRing, client *peerclient.PeerClient, initialPeers []string, logger *zap.Logger) *Membership {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Membership{
		self:         self,
		ring:         ring,
		client:       client,
		logger:       logger,
		peerLastSeen: make(map[string]int64),
		peerNodes:    make(map[string]ringhash.Node),
		senderStop:   make(chan struct{}),
		sweeperStop:  make(chan struct{}),
	}

	now := time.Now().UnixMilli()
	for _, addr := range initialPeers {
		addr = strings.TrimSpace(addr)
		if addr == "" || addr == self.Address() {
			continue
		}
		m.peerLastSeen[addr] = now
	}

	// Membership must add the current node to the ring before the
	// sender/sweeper tasks start. Configured peers are NOT added here:
	// per spec.md §4.5, inbound heartbeats are the sole join path, so
	// each configured peer joins the ring once its first heartbeat
	// arrives rather than being seeded directly from config.
	ring.AddPhysical(self)
	return m
}

// Start launches the sender and sweeper background loops. Both tasks run
// at HeartbeatInterval with zero initial delay.
func (m *Membership) Start(ctx context.Context) {
	go m.senderLoop(ctx)
	go m.sweeperLoop(ctx)
}

// Shutdown cancels both scheduled tasks.
func (m *Membership) Shutdown() {
	close(m.senderStop)
	close(m.sweeperStop)
}

func (m *Membership) senderLoop(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	m.sendHeartbeats(ctx)
	for {
		select {
		case <-ticker.C:
			m.sendHeartbeats(ctx)
		case <-m.senderStop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Membership) sendHeartbeats(ctx context.Context) {
	hb := peerclient.Heartbeat{
		NodeID:    m.self.ID,
		NodeHost:  m.self.Host,
		NodePort:  m.self.Port,
		Timestamp: time.Now().UnixMilli(),
	}
	for _, addr := range m.addresses() {
		node, ok := parseAddress(addr)
		if !ok {
			m.logger.Warn("membership: malformed peer address, skipping heartbeat", zap.String("address", addr))
			continue
		}
		go m.client.SendHeartbeat(ctx, node, hb)
	}
}

func (m *Membership) sweeperLoop(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	m.sweep()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.sweeperStop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Membership) sweep() {
	now := time.Now().UnixMilli()
	var dead []ringhash.Node

	m.mu.Lock()
	for addr, lastSeen := range m.peerLastSeen {
		if now-lastSeen > PeerTimeout.Milliseconds() {
			if node, ok := m.peerNodes[addr]; ok {
				dead = append(dead, node)
				delete(m.peerNodes, addr)
			}
			delete(m.peerLastSeen, addr)
		}
	}
	m.mu.Unlock()

	for _, node := range dead {
		m.ring.RemovePhysical(node)
		m.logger.Warn("membership: peer timed out, removed from ring", zap.String("address", node.Address()))
	}
}

// OnHeartbeatReceived records an inbound heartbeat and, if the sender was
// previously unknown or had timed out, re-adds it to the ring. This is the
// sole join path for unknown or recovered peers, per spec.md §4.5.
func (m *Membership) OnHeartbeatReceived(hb peerclient.Heartbeat) {
	m.heartbeatsReceived.Inc()
	m.lastHeartbeatReceived.Store(time.Now().UnixMilli())
	sender := ringhash.Node{ID: hb.NodeID, Host: hb.NodeHost, Port: hb.NodePort}
	addr := sender.Address()
	if addr == m.self.Address() {
		return
	}

	m.mu.Lock()
	m.peerLastSeen[addr] = time.Now().UnixMilli()
	m.peerNodes[addr] = sender
	m.mu.Unlock()

	if !m.ring.Contains(sender) {
		m.ring.AddPhysical(sender)
		m.logger.Info("membership: peer (re)joined", zap.String("address", addr))
	}
}

// PeerInfo is a point-in-time view of one peer's liveness.
type PeerInfo struct {
	Address        string
	LastSeenMillis int64
	Live           bool
}

// Snapshot returns a view of every known peer, live or not, for the
// admin-stats endpoint.
func (m *Membership) Snapshot() []PeerInfo {
	now := time.Now().UnixMilli()
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PeerInfo, 0, len(m.peerLastSeen))
	for addr, lastSeen := range m.peerLastSeen {
		out = append(out, PeerInfo{
			Address:        addr,
			LastSeenMillis: lastSeen,
			Live:           now-lastSeen <= PeerTimeout.Milliseconds(),
		})
	}
	return out
}

// ActiveAddresses returns the addresses currently considered live.
func (m *Membership) ActiveAddresses() []string {
	snap := m.Snapshot()
	out := make([]string, 0, len(snap))
	for _, p := range snap {
		if p.Live {
			out = append(out, p.Address)
		}
	}
	return out
}

// HeartbeatsReceived returns the total count of inbound heartbeats this
// node has processed.
func (m *Membership) HeartbeatsReceived() uint64 {
	return m.heartbeatsReceived.Load()
}

// LastHeartbeatReceivedMillis returns the unix-millis timestamp of the
// most recently received inbound heartbeat, or 0 if none has arrived yet.
func (m *Membership) LastHeartbeatReceivedMillis() int64 {
	return m.lastHeartbeatReceived.Load()
}

func (m *Membership) addresses() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.peerLastSeen))
	for addr := range m.peerLastSeen {
		out = append(out, addr)
	}
	return out
}

func parseAddress(addr string) (ringhash.Node, bool) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 || idx == len(addr)-1 {
		return ringhash.Node{}, false
	}
	host := addr[:idx]
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil || host == "" {
		return ringhash.Node{}, false
	}
	return ringhash.Node{ID: addr, Host: host, Port: port}, true
}
