// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Transport metrics exported through Prometheus.
// Every series carries the remote mailbox as the "peer" label.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the transport collectors of one process or endpoint.
type Metrics struct {
	FramesSent            *prometheus.CounterVec
	FramesRetransmitted   *prometheus.CounterVec
	FramesDropped         *prometheus.CounterVec
	AckFramesSent         *prometheus.CounterVec
	FramesReceived        *prometheus.CounterVec
	DuplicateFrames       *prometheus.CounterVec
	TruncatedFrames       *prometheus.CounterVec
	MessagesApplied       *prometheus.CounterVec
	TransactionsPosted    *prometheus.CounterVec
	TransactionsCompleted *prometheus.CounterVec
	OutstandingFrames     *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg. A nil reg uses a private
// registry so several endpoints can coexist in one process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	counter := func(name, help string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dgrdma",
			Name:      name,
			Help:      help,
		}, []string{"peer"})
	}
	return &Metrics{
		FramesSent:            counter("frames_sent_total", "Frames transmitted, including retransmissions"),
		FramesRetransmitted:   counter("frames_retransmitted_total", "Frames retransmitted after an ACK timeout"),
		FramesDropped:         counter("frames_dropped_total", "Unacknowledged frames discarded with retransmission disabled"),
		AckFramesSent:         counter("ack_frames_sent_total", "ACK-only frames transmitted"),
		FramesReceived:        counter("frames_received_total", "Frames accepted by the receive path"),
		DuplicateFrames:       counter("duplicate_frames_total", "Frames suppressed by the duplicate filter"),
		TruncatedFrames:       counter("truncated_frames_total", "Frames abandoned because a message was truncated"),
		MessagesApplied:       counter("messages_applied_total", "Messages written into the local arena"),
		TransactionsPosted:    counter("transactions_posted_total", "Transactions queued for transmission"),
		TransactionsCompleted: counter("transactions_completed_total", "Transactions whose pending message count reached zero"),
		OutstandingFrames: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dgrdma",
			Name:      "outstanding_frames",
			Help:      "Frames awaiting acknowledgment",
		}, []string{"peer"}),
	}
}

// PeerMetrics is the per-connection view of Metrics.
type PeerMetrics struct {
	FramesSent            prometheus.Counter
	FramesRetransmitted   prometheus.Counter
	FramesDropped         prometheus.Counter
	AckFramesSent         prometheus.Counter
	FramesReceived        prometheus.Counter
	DuplicateFrames       prometheus.Counter
	TruncatedFrames       prometheus.Counter
	MessagesApplied       prometheus.Counter
	TransactionsPosted    prometheus.Counter
	TransactionsCompleted prometheus.Counter
	OutstandingFrames     prometheus.Gauge
}

// ForPeer binds every collector to one peer label value.
func (m *Metrics) ForPeer(peer string) *PeerMetrics {
	return &PeerMetrics{
		FramesSent:            m.FramesSent.WithLabelValues(peer),
		FramesRetransmitted:   m.FramesRetransmitted.WithLabelValues(peer),
		FramesDropped:         m.FramesDropped.WithLabelValues(peer),
		AckFramesSent:         m.AckFramesSent.WithLabelValues(peer),
		FramesReceived:        m.FramesReceived.WithLabelValues(peer),
		DuplicateFrames:       m.DuplicateFrames.WithLabelValues(peer),
		TruncatedFrames:       m.TruncatedFrames.WithLabelValues(peer),
		MessagesApplied:       m.MessagesApplied.WithLabelValues(peer),
		TransactionsPosted:    m.TransactionsPosted.WithLabelValues(peer),
		TransactionsCompleted: m.TransactionsCompleted.WithLabelValues(peer),
		OutstandingFrames:     m.OutstandingFrames.WithLabelValues(peer),
	}
}
