package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterHTTPRoutes 注册健康检查路由
func RegisterHTTPRoutes(r gin.IRoutes, aggregator *Aggregator) {
	// GET /health/ready
	r.GET("/health/ready", func(c *gin.Context) {
		if !aggregator.Ready(c.Request.Context()) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": StatusUnhealthy, "ready": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ready": true})
	})

	// GET /health/live
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"alive": aggregator.Alive()})
	})

	// GET /health 详细报告；降级仍返回 200
	r.GET("/health", func(c *gin.Context) {
		report := aggregator.Report(c.Request.Context())
		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	})
}
