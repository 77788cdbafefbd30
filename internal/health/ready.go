package health

import (
	"context"
	"sync/atomic"
	"time"
)

// Readiness 进程就绪状态：串口已打开且桥接循环在运行
type Readiness struct {
	portsOpen   atomic.Bool
	loopRunning atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetPortsOpen(v bool)   { r.portsOpen.Store(v) }
func (r *Readiness) SetLoopRunning(v bool) { r.loopRunning.Store(v) }

// Ready 总体就绪：各项均为 true
func (r *Readiness) Ready() bool {
	return r.portsOpen.Load() && r.loopRunning.Load()
}

func (r *Readiness) Name() string { return "process" }

func (r *Readiness) Check(ctx context.Context) CheckResult {
	start := time.Now()
	res := CheckResult{
		Status: StatusHealthy,
		Details: map[string]any{
			"ports_open":   r.portsOpen.Load(),
			"loop_running": r.loopRunning.Load(),
		},
	}
	if !r.Ready() {
		res.Status = StatusUnhealthy
		res.Message = "bridge not running"
	}
	res.Latency = time.Since(start)
	return res
}
