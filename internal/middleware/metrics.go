// Package middleware holds the gin middleware shared by every route: request
// ids, access logging, CORS, security headers, metrics, rate limiting, admin
// and session authentication, and auditing. internal/api/router.go decides
// which group gets which.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recordstore/recordstore/internal/telemetry"
)

// noRoute labels requests that matched no route so 404 scans cannot grow the
// label set without bound.
const noRoute = "<no-route>"

// MetricsMiddleware records http_requests_total and http_request_duration_seconds.
// The path label is the matched route template (/raw/*path), not the raw URL.
// Register it after gin.Recovery so the final status is captured.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRoute
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
