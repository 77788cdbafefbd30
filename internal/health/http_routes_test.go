package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, agg *Aggregator, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHTTPRoutes(r, agg)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestRoutes_Degraded(t *testing.T) {
	agg := NewAggregator(&mockChecker{"lens", StatusDegraded})

	rr := serve(t, agg, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	var report HealthReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Contains(t, report.Checks, "lens")

	assert.Equal(t, http.StatusOK, serve(t, agg, "/health/ready").Code)
}

func TestRoutes_Unhealthy(t *testing.T) {
	agg := NewAggregator(&mockChecker{"lens", StatusUnhealthy})
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, agg, "/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, agg, "/health/ready").Code)
	assert.Equal(t, http.StatusOK, serve(t, agg, "/health/live").Code)
}
