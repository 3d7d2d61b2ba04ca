package stats

import (
	"strconv"

	"github.com/uol/graphiteproxy/lib/constants"
)

//
// Shortcut functions called by the proxy components.
// @author: rnojiri
//

// LineReceived - one line was read from a connection
func (m *Manager) LineReceived(caller string) {
	m.linesReceived.Inc()
	m.countInc(caller, metricLinesReceived)
}

// LineDropped - one line was dropped by the decoder
func (m *Manager) LineDropped(caller, reason string) {
	m.linesDropped.WithLabelValues(reason).Inc()
	m.countInc(caller, metricLinesDropped, tagReason, reason)
}

// PointSent - one point was written to the stream
func (m *Manager) PointSent(caller string) {
	m.pointsSent.Inc()
	m.countInc(caller, metricPointsSent)
}

// PointDiscarded - one point was not written because the stream is broken
func (m *Manager) PointDiscarded(caller string) {
	m.pointsDiscarded.Inc()
	m.countInc(caller, metricPointsDiscarded)
}

// PointsResubmitted - pending points were sent again
func (m *Manager) PointsResubmitted(caller string, n int) {
	if n == 0 {
		return
	}
	m.pointsResubmitted.Add(float64(n))
	if m.timeline != nil {
		m.timeline.FlattenCountN(caller, float64(n), metricPointsResubmitted)
	}
}

// Ack - one acknowledgment evicted a ledger entry
func (m *Manager) Ack(caller string) {
	m.acks.Inc()
	m.countInc(caller, metricAcks)
}

// StaleAck - one acknowledgment had no ledger entry
func (m *Manager) StaleAck(caller string) {
	m.staleAcks.Inc()
	m.countInc(caller, metricStaleAcks)
}

// LedgerExpired - ledger entries were evicted by ttl
func (m *Manager) LedgerExpired(caller string, n int) {
	if n == 0 {
		return
	}
	m.ledgerExpired.Add(float64(n))
	if m.timeline != nil {
		m.timeline.FlattenCountN(caller, float64(n), metricLedgerExpired)
	}
}

// LedgerSize - the current ledger size
func (m *Manager) LedgerSize(caller string, n int) {
	m.ledgerSize.Set(float64(n))
	if m.timeline != nil {
		m.timeline.FlattenMaxN(caller, float64(n), metricLedgerSize)
	}
}

// StreamError - the backend stream failed
func (m *Manager) StreamError(caller string) {
	m.streamErrors.Inc()
	m.countInc(caller, metricStreamErrors)
}

// ConnectionOpen - a telnet connection was accepted
func (m *Manager) ConnectionOpen(caller, port string, current uint32) {
	m.connections.Set(float64(current))
	m.countInc(caller, constants.StringsMetricNetworkConnection, constants.StringsPort, port)
}

// ConnectionClose - a telnet connection was closed
func (m *Manager) ConnectionClose(caller, port, reason string, current uint32) {
	m.connections.Set(float64(current))
	m.connectionsClosed.WithLabelValues(reason).Inc()
	m.countInc(caller, metricConnectionClose, constants.StringsPort, port, constants.StringsType, reason)
}

// HTTPRequest - one admin request was served
func (m *Manager) HTTPRequest(caller, method string, status int) {
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, code).Inc()
	m.countInc(caller, metricHTTPRequest, tagMethod, method, tagStatus, code)
}
