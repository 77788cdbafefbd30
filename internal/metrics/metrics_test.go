package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBridgeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBridgeMetrics(reg)

	m.BrokerFrame("rx")
	m.BrokerFrame("rx")
	m.Command("M", "ok")
	m.Discard("terminator")
	m.Timeout()
	m.Pulse()
	m.ObserveTransaction(3 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BrokerFrames.WithLabelValues("rx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("M", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LensDiscarded.WithLabelValues("terminator")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LensTimeouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncPulses))
}

func TestBridgeMetrics_NilSafe(t *testing.T) {
	var m *BridgeMetrics
	assert.NotPanics(t, func() {
		m.BrokerFrame("tx")
		m.LensFrame("tx")
		m.Discard("size")
		m.Command("X", "fail")
		m.Timeout()
		m.Pulse()
		m.ObserveTransaction(time.Second)
	})
}
