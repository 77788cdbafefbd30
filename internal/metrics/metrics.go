package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// BridgeMetrics 桥接业务指标
// 所有方法对 nil 接收者安全，测试中可直接传 nil。
type BridgeMetrics struct {
	BrokerFrames   *prometheus.CounterVec // labels: dir=rx|tx
	LensFrames     *prometheus.CounterVec // labels: dir=rx|tx
	LensDiscarded  *prometheus.CounterVec // labels: reason=size|terminator|stall|unmatched
	Commands       *prometheus.CounterVec // labels: cmd, result=ok|bypass|fail|timeout
	LensTimeouts   prometheus.Counter
	SyncPulses     prometheus.Counter
	TransactionDur prometheus.Histogram
}

// NewBridgeMetrics 注册并返回桥接指标
func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	m := &BridgeMetrics{
		BrokerFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_frames_total",
			Help: "Frames exchanged with the Lens Manager.",
		}, []string{"dir"}),
		LensFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lens_frames_total",
			Help: "Frames exchanged with the lens.",
		}, []string{"dir"}),
		LensDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lens_frames_discarded_total",
			Help: "Lens frames discarded while resynchronizing or waiting for a response.",
		}, []string{"reason"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_commands_total",
			Help: "Broker commands handled by command and result.",
		}, []string{"cmd", "result"}),
		LensTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lens_timeouts_total",
			Help: "Lens responses that did not arrive in time.",
		}),
		SyncPulses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sync_pulses_total",
			Help: "VD sync pulses driven on the lens line.",
		}),
		TransactionDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_transaction_seconds",
			Help:    "Time from broker request to broker reply.",
			Buckets: []float64{0.001, 0.005, 0.02, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
	}
	reg.MustRegister(m.BrokerFrames, m.LensFrames, m.LensDiscarded, m.Commands, m.LensTimeouts, m.SyncPulses, m.TransactionDur)
	return m
}

func (m *BridgeMetrics) BrokerFrame(dir string) {
	if m == nil {
		return
	}
	m.BrokerFrames.WithLabelValues(dir).Inc()
}

func (m *BridgeMetrics) LensFrame(dir string) {
	if m == nil {
		return
	}
	m.LensFrames.WithLabelValues(dir).Inc()
}

func (m *BridgeMetrics) Discard(reason string) {
	if m == nil {
		return
	}
	m.LensDiscarded.WithLabelValues(reason).Inc()
}

func (m *BridgeMetrics) Command(cmd, result string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(cmd, result).Inc()
}

func (m *BridgeMetrics) Timeout() {
	if m == nil {
		return
	}
	m.LensTimeouts.Inc()
}

func (m *BridgeMetrics) Pulse() {
	if m == nil {
		return
	}
	m.SyncPulses.Inc()
}

// ObserveTransaction 记录一次事务耗时
func (m *BridgeMetrics) ObserveTransaction(d time.Duration) {
	if m == nil {
		return
	}
	m.TransactionDur.Observe(d.Seconds())
}
