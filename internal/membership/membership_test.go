package membership

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akshatgopal/distributed-cache-project/internal/peerclient"
	"github.com/akshatgopal/distributed-cache-project/internal/ringhash"
)

func TestNewAddsSelfToRingButNotConfiguredPeers(t *testing.T) {
	self := ringhash.Node{ID: "self", Host: "localhost", Port: 9000}
	ring := ringhash.New(1, nil)
	client := peerclient.New(time.Second, time.Second, time.Second, nil)

	m := New(self, ring, client, []string{"localhost:9001"}, nil)
	defer m.Shutdown()

	require.True(t, ring.Contains(self))
	require.Len(t, ring.PhysicalNodes(), 1)
}

func TestOnHeartbeatReceivedJoinsSenderToRing(t *testing.T) {
	self := ringhash.Node{ID: "self", Host: "localhost", Port: 9000}
	ring := ringhash.New(1, nil)
	client := peerclient.New(time.Second, time.Second, time.Second, nil)
	m := New(self, ring, client, nil, nil)
	defer m.Shutdown()

	sender := peerclient.Heartbeat{NodeID: "peer", NodeHost: "localhost", NodePort: 9001, Timestamp: time.Now().UnixMilli()}
	m.OnHeartbeatReceived(sender)

	peerNode := ringhash.Node{ID: "peer", Host: "localhost", Port: 9001}
	require.True(t, ring.Contains(peerNode))
	require.Contains(t, m.ActiveAddresses(), "localhost:9001")
	require.Equal(t, uint64(1), m.HeartbeatsReceived())
}

func TestSweepRemovesTimedOutPeer(t *testing.T) {
	self := ringhash.Node{ID: "self", Host: "localhost", Port: 9000}
	ring := ringhash.New(1, nil)
	client := peerclient.New(time.Second, time.Second, time.Second, nil)
	m := New(self, ring, client, nil, nil)
	defer m.Shutdown()

	sender := peerclient.Heartbeat{NodeID: "peer", NodeHost: "localhost", NodePort: 9001, Timestamp: time.Now().UnixMilli()}
	m.OnHeartbeatReceived(sender)

	// Backdate the last-seen timestamp to simulate a timeout without
	// waiting PeerTimeout in real time.
	m.mu.Lock()
	m.peerLastSeen["localhost:9001"] = time.Now().Add(-PeerTimeout - time.Second).UnixMilli()
	m.mu.Unlock()

	m.sweep()

	peerNode := ringhash.Node{ID: "peer", Host: "localhost", Port: 9001}
	require.False(t, ring.Contains(peerNode))
	require.NotContains(t, m.ActiveAddresses(), "localhost:9001")
}

func TestRejoinAfterTimeout(t *testing.T) {
	self := ringhash.Node{ID: "self", Host: "localhost", Port: 9000}
	ring := ringhash.New(1, nil)
	client := peerclient.New(time.Second, time.Second, time.Second, nil)
	m := New(self, ring, client, nil, nil)
	defer m.Shutdown()

	hb := peerclient.Heartbeat{NodeID: "peer", NodeHost: "localhost", NodePort: 9001, Timestamp: time.Now().UnixMilli()}
	m.OnHeartbeatReceived(hb)
	m.mu.Lock()
	m.peerLastSeen["localhost:9001"] = time.Now().Add(-PeerTimeout - time.Second).UnixMilli()
	m.mu.Unlock()
	m.sweep()

	peerNode := ringhash.Node{ID: "peer", Host: "localhost", Port: 9001}
	require.False(t, ring.Contains(peerNode))

	m.OnHeartbeatReceived(hb)
	require.True(t, ring.Contains(peerNode))
}

func TestSenderLoopRunsWithoutPanicking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	self := ringhash.Node{ID: "self", Host: "localhost", Port: 9000}
	ring := ringhash.New(1, nil)
	client := peerclient.New(50*time.Millisecond, 50*time.Millisecond, 50*time.Millisecond, nil)
	m := New(self, ring, client, []string{"localhost:1"}, nil)
	defer m.Shutdown()

	m.Start(ctx)
	time.Sleep(20 * time.Millisecond)
}
