package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestCollectorRecords
func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.FrameReceived()
	c.FrameReceived()
	c.DecodeFailed()
	c.MessageEnqueued()
	c.MessagesPublished(3)
	c.MessagesDropped(ReasonQueueFull, 2)
	c.SetConnectionState(2)
	c.SetThroughput(812.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.FramesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DecodeErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Enqueued))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Published))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.DroppedTotal.WithLabelValues(ReasonQueueFull)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ConnectionState))
	assert.Equal(t, 812.5, testutil.ToFloat64(c.ThroughputRate))
}

// go test -v --run TestCollectorDuplicateRegistration
func TestCollectorDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	require.Error(t, err)
}

// go test -v --run TestNilCollector
func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.FrameReceived()
		c.DecodeFailed()
		c.Reconnect()
		c.MessagesDropped(ReasonClosed, 1)
		c.SetThroughput(1)
	})
}
