package main

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"serenada/server/internal/stats"
)

// metricsCollector adapts stats.SnapshotNow into Prometheus's pull model.
// Collect runs once per scrape, so every metric reflects the same snapshot
// rather than drifting between counters read at different times.
type metricsCollector struct {
	activeClients        *prometheus.Desc
	activeWSClients      *prometheus.Desc
	activeSSEClients     *prometheus.Desc
	activeRooms          *prometheus.Desc
	watcherRooms         *prometheus.Desc
	watcherSubscriptions *prometheus.Desc

	connectionAttempts *prometheus.Desc
	connectionSuccess  *prometheus.Desc
	connectionFailures *prometheus.Desc
	sendQueueDrops     *prometheus.Desc
	disconnects        *prometheus.Desc

	messagesRx *prometheus.Desc
	messagesTx *prometheus.Desc

	joinLatencyBucket *prometheus.Desc
	joinLatencySum    *prometheus.Desc
	joinLatencyCount  *prometheus.Desc

	goroutines  *prometheus.Desc
	heapAlloc   *prometheus.Desc
	heapObjects *prometheus.Desc
	numGC       *prometheus.Desc
}

func newMetricsCollector() *metricsCollector {
	return &metricsCollector{
		activeClients:        prometheus.NewDesc("serenada_active_clients", "Currently connected clients across all transports.", nil, nil),
		activeWSClients:      prometheus.NewDesc("serenada_active_ws_clients", "Currently connected WebSocket clients.", nil, nil),
		activeSSEClients:     prometheus.NewDesc("serenada_active_sse_clients", "Currently connected SSE clients.", nil, nil),
		activeRooms:          prometheus.NewDesc("serenada_active_rooms", "Rooms with at least one participant.", nil, nil),
		watcherRooms:         prometheus.NewDesc("serenada_watcher_rooms", "Distinct rooms with at least one watcher.", nil, nil),
		watcherSubscriptions: prometheus.NewDesc("serenada_watcher_subscriptions", "Total active watch_rooms subscriptions.", nil, nil),

		connectionAttempts: prometheus.NewDesc("serenada_connection_attempts_total", "Connection attempts by transport.", []string{"transport"}, nil),
		connectionSuccess:  prometheus.NewDesc("serenada_connection_success_total", "Successful connections by transport.", []string{"transport"}, nil),
		connectionFailures: prometheus.NewDesc("serenada_connection_failures_total", "Failed connections by transport.", []string{"transport"}, nil),
		sendQueueDrops:     prometheus.NewDesc("serenada_send_queue_drops_total", "Outbound messages dropped due to a full or closed send queue.", nil, nil),
		disconnects:        prometheus.NewDesc("serenada_disconnects_total", "Client disconnects by reason.", []string{"reason"}, nil),

		messagesRx: prometheus.NewDesc("serenada_messages_received_total", "Inbound signaling messages by type.", []string{"type"}, nil),
		messagesTx: prometheus.NewDesc("serenada_messages_sent_total", "Outbound signaling messages by type.", []string{"type"}, nil),

		joinLatencyBucket: prometheus.NewDesc("serenada_join_latency_milliseconds_bucket", "Cumulative count of joins completing within le milliseconds.", []string{"le"}, nil),
		joinLatencySum:    prometheus.NewDesc("serenada_join_latency_milliseconds_sum", "Sum of join latencies in milliseconds.", nil, nil),
		joinLatencyCount:  prometheus.NewDesc("serenada_join_latency_milliseconds_count", "Count of observed join latencies.", nil, nil),

		goroutines:  prometheus.NewDesc("serenada_runtime_goroutines", "Current goroutine count.", nil, nil),
		heapAlloc:   prometheus.NewDesc("serenada_runtime_heap_alloc_bytes", "Heap bytes allocated and still in use.", nil, nil),
		heapObjects: prometheus.NewDesc("serenada_runtime_heap_objects", "Count of allocated heap objects.", nil, nil),
		numGC:       prometheus.NewDesc("serenada_runtime_gc_cycles_total", "Completed garbage collection cycles.", nil, nil),
	}
}

func (m *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		m.activeClients, m.activeWSClients, m.activeSSEClients, m.activeRooms,
		m.watcherRooms, m.watcherSubscriptions,
		m.connectionAttempts, m.connectionSuccess, m.connectionFailures,
		m.sendQueueDrops, m.disconnects, m.messagesRx, m.messagesTx,
		m.joinLatencyBucket, m.joinLatencySum, m.joinLatencyCount,
		m.goroutines, m.heapAlloc, m.heapObjects, m.numGC,
	} {
		ch <- d
	}
}

func (m *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	snap := stats.SnapshotNow()

	ch <- prometheus.MustNewConstMetric(m.activeClients, prometheus.GaugeValue, float64(snap.Gauges.ActiveClients))
	ch <- prometheus.MustNewConstMetric(m.activeWSClients, prometheus.GaugeValue, float64(snap.Gauges.ActiveWSClients))
	ch <- prometheus.MustNewConstMetric(m.activeSSEClients, prometheus.GaugeValue, float64(snap.Gauges.ActiveSSEClients))
	ch <- prometheus.MustNewConstMetric(m.activeRooms, prometheus.GaugeValue, float64(snap.Gauges.ActiveRooms))
	ch <- prometheus.MustNewConstMetric(m.watcherRooms, prometheus.GaugeValue, float64(snap.Gauges.WatcherRooms))
	ch <- prometheus.MustNewConstMetric(m.watcherSubscriptions, prometheus.GaugeValue, float64(snap.Gauges.WatcherSubscriptions))

	ch <- prometheus.MustNewConstMetric(m.connectionAttempts, prometheus.CounterValue, float64(snap.Counters.ConnectionAttemptsWS), "ws")
	ch <- prometheus.MustNewConstMetric(m.connectionAttempts, prometheus.CounterValue, float64(snap.Counters.ConnectionAttemptsSSE), "sse")
	ch <- prometheus.MustNewConstMetric(m.connectionSuccess, prometheus.CounterValue, float64(snap.Counters.ConnectionSuccessWS), "ws")
	ch <- prometheus.MustNewConstMetric(m.connectionSuccess, prometheus.CounterValue, float64(snap.Counters.ConnectionSuccessSSE), "sse")
	ch <- prometheus.MustNewConstMetric(m.connectionFailures, prometheus.CounterValue, float64(snap.Counters.ConnectionFailuresWS), "ws")
	ch <- prometheus.MustNewConstMetric(m.connectionFailures, prometheus.CounterValue, float64(snap.Counters.ConnectionFailuresSSE), "sse")
	ch <- prometheus.MustNewConstMetric(m.sendQueueDrops, prometheus.CounterValue, float64(snap.Counters.SendQueueDropTotal))

	for reason, count := range snap.Disconnects {
		ch <- prometheus.MustNewConstMetric(m.disconnects, prometheus.CounterValue, float64(count), reason)
	}

	for msgType, count := range snap.Messages.RxByType {
		ch <- prometheus.MustNewConstMetric(m.messagesRx, prometheus.CounterValue, float64(count), msgType)
	}
	for msgType, count := range snap.Messages.TxByType {
		ch <- prometheus.MustNewConstMetric(m.messagesTx, prometheus.CounterValue, float64(count), msgType)
	}

	running := int64(0)
	for i, boundary := range snap.JoinLatency.BoundariesMs {
		if i < len(snap.JoinLatency.BucketCounts) {
			running += snap.JoinLatency.BucketCounts[i]
		}
		ch <- prometheus.MustNewConstMetric(m.joinLatencyBucket, prometheus.CounterValue, float64(running), strconv.FormatInt(boundary, 10))
	}
	// The stats package keeps one extra overflow bucket past the last
	// boundary; surface it as the +Inf bucket Prometheus histograms expect.
	ch <- prometheus.MustNewConstMetric(m.joinLatencyBucket, prometheus.CounterValue, float64(snap.JoinLatency.Total), "+Inf")
	ch <- prometheus.MustNewConstMetric(m.joinLatencySum, prometheus.CounterValue, float64(snap.JoinLatency.SumMs))
	ch <- prometheus.MustNewConstMetric(m.joinLatencyCount, prometheus.CounterValue, float64(snap.JoinLatency.Total))

	ch <- prometheus.MustNewConstMetric(m.goroutines, prometheus.GaugeValue, float64(snap.Runtime.Goroutines))
	ch <- prometheus.MustNewConstMetric(m.heapAlloc, prometheus.GaugeValue, float64(snap.Runtime.HeapAlloc))
	ch <- prometheus.MustNewConstMetric(m.heapObjects, prometheus.GaugeValue, float64(snap.Runtime.HeapObjects))
	ch <- prometheus.MustNewConstMetric(m.numGC, prometheus.CounterValue, float64(snap.Runtime.NumGC))
}

// handleMetrics exposes the collector on /metrics, gated the same way as
// the internal JSON stats endpoint: it is operational telemetry, not a
// public surface, so it stays behind the same opt-in flag.
func handleMetrics(hub *Hub) http.HandlerFunc {
	enabled := strings.EqualFold(strings.TrimSpace(os.Getenv("ENABLE_INTERNAL_STATS")), "1")
	if !enabled {
		return func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(newMetricsCollector())
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return func(w http.ResponseWriter, r *http.Request) {
		hub.refreshStatsGauges()
		handler.ServeHTTP(w, r)
	}
}
