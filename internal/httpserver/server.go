package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/lens-broker/internal/config"
	"github.com/taoyao-code/lens-broker/internal/health"
)

// Options HTTP 服务依赖；除 Config 外均可为空
type Options struct {
	Config      cfgpkg.HTTPConfig
	MetricsPath string
	Metrics     http.Handler
	// Ready /readyz 的就绪来源；为空时始终就绪
	Ready *health.Readiness
	// Health 非空时挂载 /health、/health/ready、/health/live
	Health *health.Aggregator
	Logger *zap.Logger
}

// Server 运维 HTTP 服务：探针、指标与健康报告
type Server struct {
	srv *http.Server
}

// New 创建 Gin 引擎与 HTTP Server
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(opts.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if opts.Ready == nil || opts.Ready.Ready() {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(opts.Metrics))
	}
	if opts.Health != nil {
		health.RegisterHTTPRoutes(r, opts.Health)
	}

	return &Server{srv: &http.Server{
		Addr:         opts.Config.Addr,
		Handler:      r,
		ReadTimeout:  opts.Config.ReadTimeout,
		WriteTimeout: opts.Config.WriteTimeout,
	}}
}

// accessLog 请求日志；探针与指标抓取频繁，只记 Debug
func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// Start 启动 HTTP 服务（阻塞）
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
