// Package peerclient implements outbound calls to another node's internal
// HTTP endpoint: forwardGet/Put/Delete and sendHeartbeat, per spec.md
// §4.4. Grounded on the teacher's shared *http.Client + context-timeout
// call shape in internal/cache/node.go.
package peerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/akshatgopal/distributed-cache-project/internal/cacheerr"
	"github.com/akshatgopal/distributed-cache-project/internal/entry"
	"github.com/akshatgopal/distributed-cache-project/internal/ringhash"
)

// PutRequest is a JSON write body: a value, an optional content type, and
// a millisecond TTL. Neither router decodes it: the public write endpoint
// decodes its own {value, ttlMillis} body, and the internal write endpoint
// takes the raw value bytes with the TTL in an X-TTL-Millis header, not a
// JSON body.
type PutRequest struct {
	Value       json.RawMessage `json:"value"`
	ContentType string          `json:"contentType,omitempty"`
	TTLMillis   int64           `json:"ttlMillis"`
}

// Heartbeat is the body shape for POST /internal/cache/heartbeat.
type Heartbeat struct {
	NodeID    string `json:"nodeId"`
	NodeHost  string `json:"nodeHost"`
	NodePort  int    `json:"nodePort"`
	Timestamp int64  `json:"timestamp"`
}

// PeerClient is the single shared HTTP resource used for every outbound
// peer call. dataTimeout bounds forwardGet/Put/Delete; heartbeatTimeout
// bounds sendHeartbeat, per spec.md §4.4.
type PeerClient struct {
	client           *http.Client
	dataTimeout      time.Duration
	heartbeatTimeout time.Duration
	logger           *zap.Logger
}

// New builds a PeerClient. connectTimeout/readTimeout are both enforced
// via the client's overall per-request Timeout (Go's net/http does not
// separate connect vs read deadlines on a pooled transport without
// lower-level dialer hooks, so the stricter of the two bounds the whole
// round trip, matching the teacher's single-timeout http.Client).
func New(connectTimeout, readTimeout, heartbeatTimeout time.Duration, logger *zap.Logger) *PeerClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	dataTimeout := readTimeout
	if connectTimeout < dataTimeout {
		dataTimeout = connectTimeout
	}
	return &PeerClient{
		client: &http.Client{
			Timeout: dataTimeout,
		},
		dataTimeout:      dataTimeout,
		heartbeatTimeout: heartbeatTimeout,
		logger:           logger,
	}
}

func internalURL(n ringhash.Node, key string) string {
	return "http://" + n.Address() + "/internal/cache/" + key
}

// ForwardGet forwards a GET to node's internal endpoint. 200 returns the
// value; 404 returns (Value{}, false, nil); anything else is an error.
func (c *PeerClient) ForwardGet(ctx context.Context, node ringhash.Node, key string) (entry.Value, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.dataTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, internalURL(node, key), nil)
	if err != nil {
		return entry.Value{}, false, errors.Wrap(err, "peerclient: build forwardGet request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return entry.Value{}, false, classify(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return entry.Value{}, false, errors.Wrap(err, "peerclient: read forwardGet body")
		}
		return entry.Value{Bytes: body, ContentType: resp.Header.Get("Content-Type")}, true, nil
	case http.StatusNotFound:
		return entry.Value{}, false, nil
	default:
		return entry.Value{}, false, peerErrorResponse(resp)
	}
}

// ForwardPut forwards a write to node's internal endpoint as a POST.
func (c *PeerClient) ForwardPut(ctx context.Context, node ringhash.Node, key string, value entry.Value, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, c.dataTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, internalURL(node, key), bytes.NewReader(value.Bytes))
	if err != nil {
		return errors.Wrap(err, "peerclient: build forwardPut request")
	}
	if value.ContentType != "" {
		req.Header.Set("Content-Type", value.ContentType)
	}
	req.Header.Set("X-TTL-Millis", strconv.FormatInt(ttl.Milliseconds(), 10))

	resp, err := c.client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return peerErrorResponse(resp)
	}
	return nil
}

// ForwardDelete forwards a DELETE to node's internal endpoint.
func (c *PeerClient) ForwardDelete(ctx context.Context, node ringhash.Node, key string) error {
	ctx, cancel := context.WithTimeout(ctx, c.dataTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, internalURL(node, key), nil)
	if err != nil {
		return errors.Wrap(err, "peerclient: build forwardDelete request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusNoContent {
		return peerErrorResponse(resp)
	}
	return nil
}

// SendHeartbeat posts a Heartbeat to node. Any failure (network or
// non-success status) is absorbed: it is logged and the call returns as
// completed, never propagating an error to the caller, per spec.md §4.4
// and §7.
func (c *PeerClient) SendHeartbeat(ctx context.Context, node ringhash.Node, hb Heartbeat) {
	ctx, cancel := context.WithTimeout(ctx, c.heartbeatTimeout)
	defer cancel()

	payload, err := json.Marshal(hb)
	if err != nil {
		c.logger.Warn("peerclient: marshal heartbeat failed", zap.Error(err))
		return
	}
	url := "http://" + node.Address() + "/internal/cache/heartbeat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		c.logger.Warn("peerclient: build heartbeat request failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("peerclient: heartbeat send failed", zap.String("peer", node.Address()), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("peerclient: heartbeat rejected", zap.String("peer", node.Address()), zap.Int("status", resp.StatusCode))
	}
}

func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrap(cacheerr.ErrPeerTimeout, err.Error())
	}
	return errors.Wrap(cacheerr.ErrPeerUnreachable, err.Error())
}

func peerErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return errors.Wrapf(cacheerr.ErrPeerErrorResponse, "status=%d body=%s", resp.StatusCode, string(body))
}
