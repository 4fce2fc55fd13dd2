package control

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	p := m.ForPeer("1")
	p.FramesSent.Inc()
	p.FramesSent.Inc()
	p.OutstandingFrames.Set(4)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.FramesSent.WithLabelValues("1")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.OutstandingFrames.WithLabelValues("1")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.FramesSent.WithLabelValues("2")))

	n, err := testutil.GatherAndCount(reg, "dgrdma_frames_sent_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewMetricsPrivateRegistry(t *testing.T) {
	// two sets must not collide on a nil registerer
	a := NewMetrics(nil)
	b := NewMetrics(nil)
	assert.NotSame(t, a.FramesSent, b.FramesSent)
}

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp)
	dp.RegisterProbe("answer", func() any { return 42 })
	state := dp.DumpState()
	assert.Equal(t, 42, state["answer"])
	assert.Contains(t, state, "platform.cpus")

	dp.UnregisterProbe("answer")
	assert.NotContains(t, dp.DumpState(), "answer")
}
