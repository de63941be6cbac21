package someipc

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LatencyBuckets defines the control-request round-trip latency histogram
// buckets in nanoseconds, covering from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks client traffic and control-request latency. It keeps its
// own atomic counters for Snapshot (cheap, allocation-free reads on the hot
// path) and mirrors every update into a parallel set of Prometheus
// collectors, returned by Collectors, for scraping by the host process.
type Metrics struct {
	MessagesSent     atomic.Uint64
	MessagesReceived atomic.Uint64
	BytesSent        atomic.Uint64
	BytesReceived    atomic.Uint64
	SendErrors       atomic.Uint64
	ReceiveErrors    atomic.Uint64
	MalformedDropped atomic.Uint64

	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint32

	TotalLatencyNs atomic.Uint64
	RequestCount   atomic.Uint64

	// LatencyHistogram[i] is the cumulative count of requests with latency
	// <= LatencyBuckets[i].
	LatencyHistogram [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64

	promMessagesSent     prometheus.Counter
	promMessagesReceived prometheus.Counter
	promBytesSent        prometheus.Counter
	promBytesReceived    prometheus.Counter
	promSendErrors       prometheus.Counter
	promReceiveErrors    prometheus.Counter
	promMalformed        prometheus.Counter
	promQueueDepth       prometheus.Gauge
	promRequestLatency   prometheus.Histogram
}

// NewMetrics creates a Metrics instance with its Prometheus collectors
// ready to register.
func NewMetrics() *Metrics {
	m := &Metrics{
		promMessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "someipc", Name: "messages_sent_total", Help: "Total IPC messages sent to the daemon.",
		}),
		promMessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "someipc", Name: "messages_received_total", Help: "Total IPC messages received from the daemon.",
		}),
		promBytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "someipc", Name: "bytes_sent_total", Help: "Total bytes written to the send channel.",
		}),
		promBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "someipc", Name: "bytes_received_total", Help: "Total bytes read from the receive channel.",
		}),
		promSendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "someipc", Name: "send_errors_total", Help: "Total send-path failures.",
		}),
		promReceiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "someipc", Name: "receive_errors_total", Help: "Total receive-path failures.",
		}),
		promMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "someipc", Name: "malformed_messages_total", Help: "Total messages dropped for failing validation.",
		}),
		promQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "someipc", Name: "send_queue_depth", Help: "Current Send Queue data-class depth.",
		}),
		promRequestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "someipc", Name: "control_request_latency_seconds", Help: "Control-request round-trip latency.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 10, numLatencyBuckets),
		}),
	}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// Collectors returns every Prometheus collector this Metrics instance owns,
// for registration with a *prometheus.Registry.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.promMessagesSent, m.promMessagesReceived,
		m.promBytesSent, m.promBytesReceived,
		m.promSendErrors, m.promReceiveErrors, m.promMalformed,
		m.promQueueDepth, m.promRequestLatency,
	}
}

// RecordMessageSent records one successfully queued outgoing message.
func (m *Metrics) RecordMessageSent(bytes uint64) {
	m.MessagesSent.Add(1)
	m.BytesSent.Add(bytes)
	m.promMessagesSent.Inc()
	m.promBytesSent.Add(float64(bytes))
}

// RecordMessageReceived records one dispatched inbound message.
func (m *Metrics) RecordMessageReceived(bytes uint64) {
	m.MessagesReceived.Add(1)
	m.BytesReceived.Add(bytes)
	m.promMessagesReceived.Inc()
	m.promBytesReceived.Add(float64(bytes))
}

// RecordSendError records a send-path failure.
func (m *Metrics) RecordSendError() {
	m.SendErrors.Add(1)
	m.promSendErrors.Inc()
}

// RecordReceiveError records a receive-path failure.
func (m *Metrics) RecordReceiveError() {
	m.ReceiveErrors.Add(1)
	m.promReceiveErrors.Inc()
}

// RecordMalformedDropped records a message dropped for failing validation.
func (m *Metrics) RecordMalformedDropped() {
	m.MalformedDropped.Add(1)
	m.promMalformed.Inc()
}

// RecordQueueDepth records the Send Queue's current data-class depth.
func (m *Metrics) RecordQueueDepth(depth uint32) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)
	m.promQueueDepth.Set(float64(depth))

	for {
		current := m.MaxQueueDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

// RecordRequestLatency records one control request's round-trip latency.
func (m *Metrics) RecordRequestLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.RequestCount.Add(1)
	m.promRequestLatency.Observe(float64(latencyNs) / 1e9)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyHistogram[i].Add(1)
		}
	}
}

// Stop marks the client as disconnected for uptime accounting.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read without
// further synchronization.
type MetricsSnapshot struct {
	MessagesSent     uint64
	MessagesReceived uint64
	BytesSent        uint64
	BytesReceived    uint64
	SendErrors       uint64
	ReceiveErrors    uint64
	MalformedDropped uint64

	AvgQueueDepth float64
	MaxQueueDepth uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TotalMessages uint64
	TotalBytes    uint64
	ErrorRate     float64
}

// Snapshot returns a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		MessagesSent:     m.MessagesSent.Load(),
		MessagesReceived: m.MessagesReceived.Load(),
		BytesSent:        m.BytesSent.Load(),
		BytesReceived:    m.BytesReceived.Load(),
		SendErrors:       m.SendErrors.Load(),
		ReceiveErrors:    m.ReceiveErrors.Load(),
		MalformedDropped: m.MalformedDropped.Load(),
		MaxQueueDepth:    m.MaxQueueDepth.Load(),
	}

	snap.TotalMessages = snap.MessagesSent + snap.MessagesReceived
	snap.TotalBytes = snap.BytesSent + snap.BytesReceived

	queueDepthTotal := m.QueueDepthTotal.Load()
	queueDepthCount := m.QueueDepthCount.Load()
	if queueDepthCount > 0 {
		snap.AvgQueueDepth = float64(queueDepthTotal) / float64(queueDepthCount)
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	requestCount := m.RequestCount.Load()
	if requestCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / requestCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	totalErrors := snap.SendErrors + snap.ReceiveErrors + snap.MalformedDropped
	if snap.TotalMessages > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalMessages) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyHistogram[i].Load()
	}

	if requestCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	total := m.RequestCount.Load()
	if total == 0 {
		return 0
	}

	targetCount := uint64(float64(total) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyHistogram[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyHistogram[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Observer allows pluggable traffic/latency observation alongside the
// built-in Metrics, mirroring the teacher's device-level Observer hook.
type Observer interface {
	ObserveMessageSent(bytes uint64)
	ObserveMessageReceived(bytes uint64)
	ObserveRequestLatency(latencyNs uint64)
	ObserveQueueDepth(depth uint32)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveMessageSent(uint64)     {}
func (NoOpObserver) ObserveMessageReceived(uint64) {}
func (NoOpObserver) ObserveRequestLatency(uint64)  {}
func (NoOpObserver) ObserveQueueDepth(uint32)      {}

// MetricsObserver implements Observer using the built-in Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveMessageSent(bytes uint64)     { o.metrics.RecordMessageSent(bytes) }
func (o *MetricsObserver) ObserveMessageReceived(bytes uint64) { o.metrics.RecordMessageReceived(bytes) }
func (o *MetricsObserver) ObserveRequestLatency(latencyNs uint64) {
	o.metrics.RecordRequestLatency(latencyNs)
}
func (o *MetricsObserver) ObserveQueueDepth(depth uint32) { o.metrics.RecordQueueDepth(depth) }

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
