package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	cfgpkg "github.com/taoyao-code/lens-broker/internal/config"
	"github.com/taoyao-code/lens-broker/internal/health"
	appmetrics "github.com/taoyao-code/lens-broker/internal/metrics"
)

type staticChecker health.Status

func (s staticChecker) Name() string { return "lens" }
func (s staticChecker) Check(context.Context) health.CheckResult {
	return health.CheckResult{Status: health.Status(s)}
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHealthzReadyzMetrics(t *testing.T) {
	reg := appmetrics.NewRegistry()
	bm := appmetrics.NewBridgeMetrics(reg)
	bm.Command("lens model get", "ok")
	ready := health.New()
	ready.SetPortsOpen(true)
	ready.SetLoopRunning(true)
	srv := New(Options{
		Config:      cfgpkg.HTTPConfig{Addr: ":0", ReadTimeout: time.Second, WriteTimeout: time.Second},
		MetricsPath: "/metrics",
		Metrics:     appmetrics.Handler(reg),
		Ready:       ready,
	})

	if rr := get(srv, "/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("/healthz code=%d", rr.Code)
	}
	if rr := get(srv, "/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("/readyz code=%d", rr.Code)
	}
	rr := get(srv, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics code=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "bridge_commands_total") {
		t.Fatalf("/metrics missing bridge counters")
	}
}

func TestReadyzNotReady(t *testing.T) {
	ready := health.New()
	ready.SetPortsOpen(true)
	srv := New(Options{Config: cfgpkg.HTTPConfig{Addr: ":0"}, Ready: ready})

	if rr := get(srv, "/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("/readyz not-ready code=%d", rr.Code)
	}
	if rr := get(srv, "/metrics"); rr.Code != http.StatusNotFound {
		t.Fatalf("未配置指标时 /metrics code=%d", rr.Code)
	}
}

func TestHealthRoutes(t *testing.T) {
	srv := New(Options{
		Config: cfgpkg.HTTPConfig{Addr: ":0"},
		Health: health.NewAggregator(staticChecker(health.StatusUnhealthy)),
	})
	if rr := get(srv, "/health"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("/health code=%d", rr.Code)
	}
	if rr := get(srv, "/health/live"); rr.Code != http.StatusOK {
		t.Fatalf("/health/live code=%d", rr.Code)
	}

	bare := New(Options{Config: cfgpkg.HTTPConfig{Addr: ":0"}})
	if rr := get(bare, "/health"); rr.Code != http.StatusNotFound {
		t.Fatalf("未挂载健康检查时 /health code=%d", rr.Code)
	}
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	srv := New(Options{Config: cfgpkg.HTTPConfig{Addr: ":0"}, Logger: zap.New(core)})
	get(srv, "/healthz")

	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("期望1条请求日志，实际: %d", len(entries))
	}
	if got := entries[0].ContextMap()["path"]; got != "/healthz" {
		t.Fatalf("path=%v", got)
	}
}
