package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pongnet/pkg/logger"
	"pongnet/pkg/transport"
)

// Metrics backs C5's metrics surface (§4.5, §6) with
// github.com/prometheus/client_golang, serving Prometheus text exposition
// on a dedicated HTTP listener the way the original's metrics/prometheus.cpp
// does, without rebuilding its bespoke exporter (named out of scope, §1).
type Metrics struct {
	registry *prometheus.Registry

	tickDuration   prometheus.Histogram
	encodeDuration prometheus.Histogram
	payloadSize    *prometheus.HistogramVec
	droppedParse   prometheus.Counter
	activeRoles    prometheus.Gauge

	reliableRetries   prometheus.Counter
	reliableTimeouts  prometheus.Counter
	droppedDuplicates prometheus.Counter
	droppedOld        prometheus.Counter
	droppedWindow     prometheus.Counter

	lastCounters transport.Counters
}

// NewMetrics constructs and registers the server's Prometheus collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pongnet_tick_duration_seconds",
			Help:    "Wall-clock duration of one server tick handler invocation.",
			Buckets: prometheus.DefBuckets,
		}),
		encodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pongnet_encode_duration_seconds",
			Help:    "Wall-clock duration of one snapshot encode.",
			Buckets: prometheus.DefBuckets,
		}),
		payloadSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pongnet_snapshot_payload_bytes",
			Help:    "Encoded snapshot payload size, partitioned by keyframe vs delta.",
			Buckets: []float64{8, 16, 24, 32, 40, 48},
		}, []string{"kind"}),
		droppedParse: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pongnet_dropped_parse_total",
			Help: "Datagrams dropped for failing to parse a known message tag.",
		}),
		activeRoles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pongnet_active_roles",
			Help: "Number of peers currently bound to Left, Right, or Spectator.",
		}),
		reliableRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pongnet_transport_reliable_retries_total",
			Help: "Reliable packet retransmissions.",
		}),
		reliableTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pongnet_transport_reliable_timeouts_total",
			Help: "Reliable packets evicted after exceeding TTL or max retries.",
		}),
		droppedDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pongnet_transport_dropped_duplicates_total",
			Help: "Inbound datagrams dropped as duplicates.",
		}),
		droppedOld: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pongnet_transport_dropped_old_total",
			Help: "Inbound datagrams dropped as older than the receive window.",
		}),
		droppedWindow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pongnet_transport_dropped_window_total",
			Help: "Reliable sends dropped because the send window was full.",
		}),
	}

	registry.MustRegister(
		m.tickDuration, m.encodeDuration, m.payloadSize, m.droppedParse, m.activeRoles,
		m.reliableRetries, m.reliableTimeouts, m.droppedDuplicates, m.droppedOld, m.droppedWindow,
	)
	return m
}

// Serve exposes the registry on addr at /metrics until the returned
// http.Server is shut down by the caller.
func (m *Metrics) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics: server error: %v", err)
		}
	}()
	return srv
}

// ObserveTick records one tick handler's wall duration.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}

// ObserveEncode records one snapshot encode's duration and payload size,
// partitioned by keyframe vs delta.
func (m *Metrics) ObserveEncode(d time.Duration, payloadBytes int, isKeyframe bool) {
	m.encodeDuration.Observe(d.Seconds())
	kind := "delta"
	if isKeyframe {
		kind = "keyframe"
	}
	m.payloadSize.WithLabelValues(kind).Observe(float64(payloadBytes))
}

// IncDroppedParse records a malformed or unrecognized datagram.
func (m *Metrics) IncDroppedParse() {
	m.droppedParse.Inc()
}

// SetActiveRoles records the current count of role-bound peers.
func (m *Metrics) SetActiveRoles(count int) {
	m.activeRoles.Set(float64(count))
}

// ObserveCounters folds the transport's monotonic counters into the
// exposed totals. The transport only ever accumulates, so each call adds
// the delta since the last sample.
func (m *Metrics) ObserveCounters(c transport.Counters) {
	m.reliableRetries.Add(float64(c.ReliableRetriesTotal - m.lastCounters.ReliableRetriesTotal))
	m.reliableTimeouts.Add(float64(c.ReliableTimeoutsTotal - m.lastCounters.ReliableTimeoutsTotal))
	m.droppedDuplicates.Add(float64(c.DroppedDuplicatesTotal - m.lastCounters.DroppedDuplicatesTotal))
	m.droppedOld.Add(float64(c.DroppedOldTotal - m.lastCounters.DroppedOldTotal))
	m.droppedWindow.Add(float64(c.DroppedWindowTotal - m.lastCounters.DroppedWindowTotal))
	m.lastCounters = c
}
