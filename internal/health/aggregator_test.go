package health

import (
	"context"
	"testing"
	"time"
)

// mockChecker 模拟检查器
type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{
		Status:  m.status,
		Message: "mock",
		Latency: time.Millisecond,
	}
}

func TestAggregator(t *testing.T) {
	t.Run("全部健康", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"lens", StatusHealthy},
			&mockChecker{"process", StatusHealthy},
		)
		if status := agg.OverallStatus(context.Background()); status != StatusHealthy {
			t.Errorf("期望StatusHealthy，实际: %v", status)
		}
		if !agg.Ready(context.Background()) {
			t.Error("全部健康时应该Ready")
		}
	})

	t.Run("镜头降级仍就绪", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"lens", StatusDegraded},
			&mockChecker{"process", StatusHealthy},
		)
		if status := agg.OverallStatus(context.Background()); status != StatusDegraded {
			t.Errorf("期望StatusDegraded，实际: %v", status)
		}
		if !agg.Ready(context.Background()) {
			t.Error("降级状态应该仍然Ready")
		}
	})

	t.Run("不健康优先于降级", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"lens", StatusDegraded},
			&mockChecker{"process", StatusUnhealthy},
		)
		if status := agg.OverallStatus(context.Background()); status != StatusUnhealthy {
			t.Errorf("期望StatusUnhealthy，实际: %v", status)
		}
		if agg.Ready(context.Background()) {
			t.Error("不健康状态不应该Ready")
		}
	})

	t.Run("动态添加检查器", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{"lens", StatusHealthy})
		agg.AddChecker(&mockChecker{"process", StatusHealthy})

		report := agg.Report(context.Background())
		if len(report.Checks) != 2 {
			t.Errorf("期望2个结果，实际: %d", len(report.Checks))
		}
		if report.Timestamp.IsZero() {
			t.Error("报告缺少时间戳")
		}
	})

	t.Run("Alive始终返回true", func(t *testing.T) {
		if !NewAggregator().Alive() {
			t.Error("Alive应该始终返回true")
		}
	})
}

func TestReadiness(t *testing.T) {
	r := New()
	if r.Ready() {
		t.Fatal("初始状态不应就绪")
	}
	if res := r.Check(context.Background()); res.Status != StatusUnhealthy {
		t.Errorf("期望StatusUnhealthy，实际: %v", res.Status)
	}

	r.SetPortsOpen(true)
	r.SetLoopRunning(true)
	if !r.Ready() {
		t.Fatal("串口打开且循环运行时应就绪")
	}
	if res := r.Check(context.Background()); res.Status != StatusHealthy {
		t.Errorf("期望StatusHealthy，实际: %v", res.Status)
	}
}
