package endpoint

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// StatsFunc returns a named block of service statistics for /metrics.
type StatsFunc func() (name string, stats any)

// Metrics returns a handler that reports runtime memory and goroutine metrics
// plus any service statistics, such as model queue occupancy.
func Metrics(extra ...StatsFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		body := gin.H{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc_mb":       m.Alloc / 1024 / 1024,
				"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
				"sys_mb":         m.Sys / 1024 / 1024,
				"gc_runs":        m.NumGC,
			},
		}
		for _, fn := range extra {
			name, stats := fn()
			body[name] = stats
		}
		c.JSON(http.StatusOK, body)
	}
}
