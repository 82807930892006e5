// Package metrics exposes Prometheus collectors for the terminal gateway.
// All methods are safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons for inbound messages
const (
	DropMalformed     = "malformed"
	DropUnknownTopic  = "unknown_topic"
	DropUnknownDevice = "unknown_device"
	DropHandlerError  = "handler_error"
)

type Metrics struct {
	messagesReceived   *prometheus.CounterVec
	messagesDropped    *prometheus.CounterVec
	scanOutcomes       *prometheus.CounterVec
	heartbeats         prometheus.Counter
	commands           *prometheus.CounterVec
	markedOffline      prometheus.Counter
	sweepDuration      prometheus.Histogram
	broadcasts         prometheus.Counter
	subscribersDropped prometheus.Counter
	subscribers        prometheus.Gauge
	brokerConnected    prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_mqtt_messages_received_total",
			Help: "Inbound device messages by topic kind.",
		}, []string{"kind"}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_mqtt_messages_dropped_total",
			Help: "Inbound device messages dropped without a response.",
		}, []string{"reason"}),
		scanOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_badge_scans_total",
			Help: "Badge scans answered, by validation outcome.",
		}, []string{"outcome"}),
		heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_heartbeats_recorded_total",
			Help: "Heartbeats written to the device registry.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_commands_total",
			Help: "Administrative commands by command and publish result.",
		}, []string{"command", "result"}),
		markedOffline: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_devices_marked_offline_total",
			Help: "Devices moved to offline by the liveness sweep.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_liveness_sweep_seconds",
			Help:    "Duration of liveness sweeps.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_realtime_broadcasts_total",
			Help: "Attendance events handed to the realtime hub.",
		}),
		subscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_realtime_subscribers_dropped_total",
			Help: "Realtime subscribers disconnected because they could not keep up.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_realtime_subscribers",
			Help: "Currently connected realtime subscribers.",
		}),
		brokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_mqtt_connected",
			Help: "1 when the broker connection is open.",
		}),
	}

	reg.MustRegister(
		m.messagesReceived,
		m.messagesDropped,
		m.scanOutcomes,
		m.heartbeats,
		m.commands,
		m.markedOffline,
		m.sweepDuration,
		m.broadcasts,
		m.subscribersDropped,
		m.subscribers,
		m.brokerConnected,
	)
	return m
}

func (m *Metrics) MessageReceived(kind string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) MessageDropped(reason string) {
	if m == nil {
		return
	}
	m.messagesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ScanAnswered(outcome string) {
	if m == nil {
		return
	}
	m.scanOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) HeartbeatRecorded() {
	if m == nil {
		return
	}
	m.heartbeats.Inc()
}

func (m *Metrics) CommandSent(command string, ok bool) {
	if m == nil {
		return
	}
	result := "published"
	if !ok {
		result = "failed"
	}
	m.commands.WithLabelValues(command, result).Inc()
}

func (m *Metrics) SweepCompleted(marked int, took time.Duration) {
	if m == nil {
		return
	}
	m.markedOffline.Add(float64(marked))
	m.sweepDuration.Observe(took.Seconds())
}

func (m *Metrics) Broadcast() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}

func (m *Metrics) SubscriberDropped() {
	if m == nil {
		return
	}
	m.subscribersDropped.Inc()
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

func (m *Metrics) SetBrokerConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.brokerConnected.Set(1)
		return
	}
	m.brokerConnected.Set(0)
}
