package health

import (
	"context"
	"time"

	"github.com/taoyao-code/lens-broker/internal/bridge"
)

// 连续超时阈值
const (
	DegradedTimeouts  = 3
	UnhealthyTimeouts = 10
)

// StatsSource 桥接运行统计来源（*bridge.Loop）
type StatsSource interface {
	Stats() bridge.Stats
}

// LinkChecker 镜头链路健康检查器：按连续超时次数分级
type LinkChecker struct {
	src      StatsSource
	emulated bool
}

// NewLinkChecker 创建链路检查器；emulated 为纯模拟模式（不连接镜头）
func NewLinkChecker(src StatsSource, emulated bool) *LinkChecker {
	return &LinkChecker{src: src, emulated: emulated}
}

func (c *LinkChecker) Name() string {
	return "lens"
}

func (c *LinkChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	st := c.src.Stats()

	details := map[string]any{
		"requests":             st.Requests,
		"consecutive_timeouts": st.ConsecutiveTimeouts,
		"lens_attached":        st.LensAttached,
		"emulated":             c.emulated,
	}
	if !st.LastRequest.IsZero() {
		details["last_request"] = st.LastRequest
	}

	status := StatusHealthy
	message := "ok"
	switch {
	case !st.LensAttached && !c.emulated:
		status = StatusUnhealthy
		message = "lens link not attached"
	case st.ConsecutiveTimeouts >= UnhealthyTimeouts:
		status = StatusUnhealthy
		message = "lens not responding"
	case st.ConsecutiveTimeouts >= DegradedTimeouts:
		status = StatusDegraded
		message = "lens response timeouts"
	case c.emulated:
		message = "emulated"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: details,
		Latency: time.Since(start),
	}
}
