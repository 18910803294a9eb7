package coordinator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/akshatgopal/distributed-cache-project/internal/cacheerr"
	"github.com/akshatgopal/distributed-cache-project/internal/entry"
	"github.com/akshatgopal/distributed-cache-project/internal/peerclient"
	"github.com/akshatgopal/distributed-cache-project/internal/ringhash"
	"github.com/akshatgopal/distributed-cache-project/internal/store"
	"github.com/akshatgopal/distributed-cache-project/internal/workerpool"
)

func newCoordinator(self ringhash.Node, ring *ringhash.HashRing) *Coordinator {
	s := store.New(100, nil)
	client := peerclient.New(time.Second, time.Second, time.Second, nil)
	pool := workerpool.New(2, 4)
	return New(self, ring, s, client, pool, nil)
}

// serverNode turns an httptest.Server's URL into the ringhash.Node that
// addresses it, so forwarding tests can point the ring at a real listener.
func serverNode(t *testing.T, srv *httptest.Server) ringhash.Node {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := splitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return ringhash.Node{ID: "remote", Host: host, Port: port}
}

func splitHostPort(hostport string) (string, string, error) {
	idx := strings.LastIndex(hostport, ":")
	if idx < 0 {
		return "", "", errors.Errorf("no port in address %q", hostport)
	}
	return hostport[:idx], hostport[idx+1:], nil
}

func TestGetPutDeleteServedLocallyWhenSelfIsPrimary(t *testing.T) {
	self := ringhash.Node{ID: "self", Host: "localhost", Port: 9000}
	ring := ringhash.New(1, nil)
	ring.AddPhysical(self)
	c := newCoordinator(self, ring)

	require.NoError(t, c.Put(context.Background(), "k", entry.Value{Bytes: []byte("v")}, 0))

	v, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v.Bytes)

	require.NoError(t, c.Delete(context.Background(), "k"))
	_, ok, err = c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutOnEmptyRingReturnsError(t *testing.T) {
	self := ringhash.Node{ID: "self", Host: "localhost", Port: 9000}
	ring := ringhash.New(1, nil)
	c := newCoordinator(self, ring)

	err := c.Put(context.Background(), "k", entry.Value{Bytes: []byte("v")}, 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, cacheerr.ErrRingEmpty))
}

func TestDeleteOnEmptyRingIsNoOpSuccess(t *testing.T) {
	self := ringhash.Node{ID: "self", Host: "localhost", Port: 9000}
	ring := ringhash.New(1, nil)
	c := newCoordinator(self, ring)

	err := c.Delete(context.Background(), "k")
	require.NoError(t, err)
}

func TestGetForwardsToPrimaryWhenSelfIsNotPrimary(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("remote-value"))
	}))
	defer srv.Close()

	remoteNode := serverNode(t, srv)
	self := ringhash.Node{ID: "self", Host: "localhost", Port: 9000}

	ring := ringhash.New(1, nil)
	// remoteNode is the sole ring member, so it is primary for every key;
	// self never owns a key and every Get must forward.
	ring.AddPhysical(remoteNode)
	c := newCoordinator(self, ring)

	v, ok, err := c.Get(context.Background(), "some-key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("remote-value"), v.Bytes)
	require.Equal(t, 1, hits)
}

func TestOnInternalPutStoresLocallyWhetherPrimaryOrReplica(t *testing.T) {
	self := ringhash.Node{ID: "self", Host: "localhost", Port: 9000}
	other := ringhash.Node{ID: "other", Host: "localhost", Port: 9001}
	ring := ringhash.New(2, nil)
	ring.AddPhysical(self)
	ring.AddPhysical(other)
	c := newCoordinator(self, ring)

	// Whichever of self/other is primary for this key, OnInternalPut must
	// not error and must make the value locally readable via OnInternalGet.
	err := c.OnInternalPut(context.Background(), "k", entry.Value{Bytes: []byte("v")}, 0)
	require.NoError(t, err)

	v, ok := c.OnInternalGet("k")
	require.True(t, ok)
	require.Equal(t, []byte("v"), v.Bytes)
}

func TestGetAllReturnsLocalSnapshotOnly(t *testing.T) {
	self := ringhash.Node{ID: "self", Host: "localhost", Port: 9000}
	ring := ringhash.New(1, nil)
	ring.AddPhysical(self)
	c := newCoordinator(self, ring)

	require.NoError(t, c.Put(context.Background(), "a", entry.Value{Bytes: []byte("1")}, 0))
	require.NoError(t, c.Put(context.Background(), "b", entry.Value{Bytes: []byte("2")}, 0))

	all := c.GetAll()
	require.Len(t, all, 2)
}
