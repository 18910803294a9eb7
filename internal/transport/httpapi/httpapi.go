// Package httpapi wires the Coordinator and Membership onto three
// gorilla/mux routers — public, internal, admin — per spec.md §6.
//
// Grounded on the teacher's internal/cache/http.go (key-from-path parsing,
// status-code contract per verb), generalized from the teacher's
// path-prefix ServeMux to gorilla/mux the way uber-kraken's tracker
// service routes its handlers, and from the teacher's plain-text
// /health to a structured JSON admin-stats payload.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/akshatgopal/distributed-cache-project/internal/coordinator"
	"github.com/akshatgopal/distributed-cache-project/internal/entry"
	"github.com/akshatgopal/distributed-cache-project/internal/metrics"
	"github.com/akshatgopal/distributed-cache-project/internal/peerclient"
)

// cachePutBody is the public PUT body shape from spec.md §6: an arbitrary
// JSON value plus a millisecond TTL.
type cachePutBody struct {
	Value     json.RawMessage `json:"value"`
	TTLMillis int64           `json:"ttlMillis"`
}

// AdminStats is the JSON shape served at GET /admin/stats, field-for-field
// matching spec.md §6.
type AdminStats struct {
	NodeID                      string   `json:"nodeId"`
	NodeAddress                 string   `json:"nodeAddress"`
	Status                      string   `json:"status"`
	LocalKeyCount               int      `json:"localKeyCount"`
	LocalMemoryUsageBytes       uint64   `json:"localMemoryUsageBytes"`
	TotalJVMMemoryBytes         uint64   `json:"totalJVMMemoryBytes"`
	CacheHitCount               uint64   `json:"cacheHitCount"`
	CacheMissCount              uint64   `json:"cacheMissCount"`
	CacheHitRatio               float64  `json:"cacheHitRatio"`
	PutCount                    uint64   `json:"putCount"`
	DeleteCount                 uint64   `json:"deleteCount"`
	LastHeartbeatReceivedMillis int64    `json:"lastHeartbeatReceivedMillis"`
	ActivePeerAddresses         []string `json:"activePeerAddresses"`
}

// StatsFunc produces a fresh AdminStats snapshot on each call.
type StatsFunc func() AdminStats

// NewPublicRouter builds the client-facing API: GET/POST/DELETE on
// /cache/ and /cache/{key}.
func NewPublicRouter(c *coordinator.Coordinator, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &publicHandlers{coordinator: c, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/cache/", h.getAll).Methods(http.MethodGet)
	r.HandleFunc("/cache/{key}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/cache/{key}", h.put).Methods(http.MethodPost)
	r.HandleFunc("/cache/{key}", h.delete).Methods(http.MethodDelete)
	return withLogging(r, logger)
}

// NewInternalRouter builds the peer-facing API: the internal cache
// endpoints plus the heartbeat receiver.
func NewInternalRouter(c *coordinator.Coordinator, onHeartbeat func(peerclient.Heartbeat), logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &internalHandlers{coordinator: c, onHeartbeat: onHeartbeat, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/internal/cache/heartbeat", h.heartbeat).Methods(http.MethodPost)
	r.HandleFunc("/internal/cache/{key}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/internal/cache/{key}", h.put).Methods(http.MethodPost)
	r.HandleFunc("/internal/cache/{key}", h.delete).Methods(http.MethodDelete)
	return withLogging(r, logger)
}

// NewAdminRouter builds the operator-facing API: JSON stats and a
// Prometheus scrape endpoint.
func NewAdminRouter(stats StatsFunc, collector *metrics.Collector, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := mux.NewRouter()
	r.HandleFunc("/admin/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, stats())
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(collector.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return withLogging(r, logger)
}

type publicHandlers struct {
	coordinator *coordinator.Coordinator
	logger      *zap.Logger
}

func (h *publicHandlers) getAll(w http.ResponseWriter, r *http.Request) {
	values := h.coordinator.GetAll()
	out := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		out[k] = json.RawMessage(v.Bytes)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *publicHandlers) get(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	value, ok, err := h.coordinator.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(value.Bytes)
}

func (h *publicHandlers) put(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var body cachePutBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad json body", http.StatusBadRequest)
		return
	}
	value := entry.Value{Bytes: body.Value, ContentType: "application/json"}
	ttl := time.Duration(body.TTLMillis) * time.Millisecond

	if err := h.coordinator.Put(r.Context(), key, value, ttl); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *publicHandlers) delete(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := h.coordinator.Delete(r.Context(), key); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type internalHandlers struct {
	coordinator *coordinator.Coordinator
	onHeartbeat func(peerclient.Heartbeat)
	logger      *zap.Logger
}

func (h *internalHandlers) get(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	value, ok := h.coordinator.OnInternalGet(key)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if value.ContentType != "" {
		w.Header().Set("Content-Type", value.ContentType)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(value.Bytes)
}

func (h *internalHandlers) put(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	ttlMillis, _ := strconv.ParseInt(r.Header.Get("X-TTL-Millis"), 10, 64)
	value := entry.Value{Bytes: body, ContentType: r.Header.Get("Content-Type")}

	if err := h.coordinator.OnInternalPut(r.Context(), key, value, time.Duration(ttlMillis)*time.Millisecond); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *internalHandlers) delete(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := h.coordinator.OnInternalDelete(r.Context(), key); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *internalHandlers) heartbeat(w http.ResponseWriter, r *http.Request) {
	var hb peerclient.Heartbeat
	if err := json.NewDecoder(r.Body).Decode(&hb); err != nil {
		http.Error(w, "bad json body", http.StatusBadRequest)
		return
	}
	h.onHeartbeat(hb)
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func withLogging(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("httpapi: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}
