package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	tlmanager "github.com/uol/timelinemanager"
)

//
// Keeps the proxy statistics: flattened points sent by the timeline manager
// and the collectors exposed to prometheus.
// @author: rnojiri
//

const (
	namespace string = "graphiteproxy"

	metricLinesReceived     string = "graphite.lines.received"
	metricLinesDropped      string = "graphite.lines.dropped"
	metricPointsSent        string = "graphite.points.sent"
	metricPointsDiscarded   string = "graphite.points.discarded"
	metricPointsResubmitted string = "graphite.points.resubmitted"
	metricAcks              string = "graphite.acks"
	metricStaleAcks         string = "graphite.acks.stale"
	metricLedgerExpired     string = "graphite.ledger.expired"
	metricLedgerSize        string = "graphite.ledger.size"
	metricStreamErrors      string = "graphite.stream.errors"
	metricConnectionClose   string = "network.connection.close"
	metricHTTPRequest       string = "http.request"

	tagReason string = "reason"
	tagMethod string = "method"
	tagStatus string = "status"
)

// Manager - wraps the timeline manager and the prometheus registry
type Manager struct {
	timeline          *tlmanager.Instance
	registry          *prometheus.Registry
	linesReceived     prometheus.Counter
	linesDropped      *prometheus.CounterVec
	pointsSent        prometheus.Counter
	pointsDiscarded   prometheus.Counter
	pointsResubmitted prometheus.Counter
	acks              prometheus.Counter
	staleAcks         prometheus.Counter
	ledgerExpired     prometheus.Counter
	ledgerSize        prometheus.Gauge
	streamErrors      prometheus.Counter
	connections       prometheus.Gauge
	connectionsClosed *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
}

// New - creates a new stats manager, the timeline manager is optional
func New(timeline *tlmanager.Instance) *Manager {

	m := &Manager{
		timeline: timeline,
		registry: prometheus.NewRegistry(),
		linesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_received_total",
			Help:      "Total number of lines read from the telnet connections",
		}),
		linesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_dropped_total",
			Help:      "Total number of lines dropped by the decoder",
		}, []string{tagReason}),
		pointsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_sent_total",
			Help:      "Total number of points written to the backend stream",
		}),
		pointsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_discarded_total",
			Help:      "Total number of points discarded because the stream was broken",
		}),
		pointsResubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_resubmitted_total",
			Help:      "Total number of pending points sent again after a reconnection",
		}),
		acks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acks_total",
			Help:      "Total number of acknowledgments that evicted a ledger entry",
		}),
		staleAcks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_acks_total",
			Help:      "Total number of acknowledgments for unknown message ids",
		}),
		ledgerExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_expired_total",
			Help:      "Total number of ledger entries evicted by ttl",
		}),
		ledgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_size",
			Help:      "Number of points waiting for acknowledgment",
		}),
		streamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_errors_total",
			Help:      "Total number of backend stream failures",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of open telnet connections",
		}),
		connectionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Total number of closed telnet connections",
		}, []string{tagReason}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of requests served by the admin endpoint",
		}, []string{tagMethod, tagStatus}),
	}

	m.registry.MustRegister(
		m.linesReceived,
		m.linesDropped,
		m.pointsSent,
		m.pointsDiscarded,
		m.pointsResubmitted,
		m.acks,
		m.staleAcks,
		m.ledgerExpired,
		m.ledgerSize,
		m.streamErrors,
		m.connections,
		m.connectionsClosed,
		m.httpRequests,
	)

	return m
}

// Registry - returns the prometheus registry
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// countInc - adds one to the timeline metric if a timeline manager is configured
func (m *Manager) countInc(caller, metric string, tags ...interface{}) {

	if m.timeline == nil {
		return
	}

	m.timeline.FlattenCountIncN(caller, metric, tags...)
}
