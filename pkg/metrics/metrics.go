// Package metrics holds the prometheus collectors shared by the stream and publish paths.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bridge"

// Drop reasons used as the "reason" label of DroppedTotal.
const (
	ReasonQueueFull     = "queue_full"
	ReasonPublishFailed = "publish_failed"
	ReasonClosed        = "closed"
)

// Collector groups every metric the bridge records. A nil *Collector is valid
// and records nothing, which keeps call sites free of nil checks.
type Collector struct {
	FramesReceived  prometheus.Counter
	DecodeErrors    prometheus.Counter
	Enqueued        prometheus.Counter
	Published       prometheus.Counter
	DroppedTotal    *prometheus.CounterVec
	Reconnects      prometheus.Counter
	ConnectionState prometheus.Gauge
	ThroughputRate  prometheus.Gauge
}

func newCounter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

func newGauge(subsystem, name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

// New creates the collectors and registers them on reg. A nil registerer skips registration.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		FramesReceived: newCounter("stream", "frames_received_total", "Frames read from the exchange stream"),
		DecodeErrors:   newCounter("stream", "decode_errors_total", "Frames dropped because they could not be decoded"),
		Reconnects:     newCounter("stream", "reconnects_total", "Stream sessions that ended and were scheduled for reconnect"),
		ConnectionState: newGauge("stream", "connection_state",
			"Current connection state (0=disconnected, 1=connecting, 2=connected, 3=closing)"),
		ThroughputRate: newGauge("stream", "throughput_messages_per_second", "Message rate over the last reporting window"),
		Enqueued:       newCounter("publisher", "enqueued_total", "Messages accepted into the send buffer"),
		Published:      newCounter("publisher", "published_total", "Messages handed to the broker successfully"),
		DroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "dropped_total",
			Help:      "Messages dropped before reaching the broker",
		}, []string{"reason"}),
	}

	if reg == nil {
		return c, nil
	}

	collectors := []prometheus.Collector{
		c.FramesReceived,
		c.DecodeErrors,
		c.Reconnects,
		c.ConnectionState,
		c.ThroughputRate,
		c.Enqueued,
		c.Published,
		c.DroppedTotal,
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return c, nil
}

func (c *Collector) FrameReceived() {
	if c != nil {
		c.FramesReceived.Inc()
	}
}

func (c *Collector) DecodeFailed() {
	if c != nil {
		c.DecodeErrors.Inc()
	}
}

func (c *Collector) Reconnect() {
	if c != nil {
		c.Reconnects.Inc()
	}
}

func (c *Collector) SetConnectionState(state int) {
	if c != nil {
		c.ConnectionState.Set(float64(state))
	}
}

func (c *Collector) SetThroughput(rate float64) {
	if c != nil {
		c.ThroughputRate.Set(rate)
	}
}

func (c *Collector) MessageEnqueued() {
	if c != nil {
		c.Enqueued.Inc()
	}
}

func (c *Collector) MessagesPublished(n int) {
	if c != nil {
		c.Published.Add(float64(n))
	}
}

func (c *Collector) MessagesDropped(reason string, n int) {
	if c != nil {
		c.DroppedTotal.WithLabelValues(reason).Add(float64(n))
	}
}
