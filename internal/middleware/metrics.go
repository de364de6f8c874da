// metrics.go records Prometheus HTTP metrics for every request.

package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/telemetry"
)

// noRouteLabel is the path label for requests that matched no route.
const noRouteLabel = "<no-route>"

// MetricsMiddleware records http_requests_total and http_request_duration_seconds for every
// request. The path label is the Gin route template (/api/v1/companies/:company_id/webhooks),
// never the raw URL, so company and resource ids do not explode label cardinality.
//
// Register it after RequestIDMiddleware so statuses written by error handlers are counted.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRouteLabel
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
