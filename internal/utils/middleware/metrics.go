package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sokoni/server/internal/utils/metrics"
)

// Metrics returns a middleware that records request counts and latency.
// Routes are labelled by their pattern to keep cardinality bounded.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
