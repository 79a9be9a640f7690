package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/diarizer/version"
)

// startTime records when the process started for uptime calculation.
var startTime = time.Now()

// InfoFunc contributes service-specific fields to /info, such as the
// diarization provider and the device it runs on.
type InfoFunc func(ctx context.Context) map[string]any

// Info returns a handler that reports service version, build and runtime details.
func Info(serviceName string, extra InfoFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		v := version.GetVersionInfo()
		body := gin.H{
			"service":    serviceName,
			"version":    v.Version,
			"git_commit": v.GitCommit,
			"build_time": v.BuildTime,
			"go_version": v.GoVersion,
			"uptime":     time.Since(startTime).Round(time.Second).String(),
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		}
		if extra != nil {
			for k, val := range extra(c.Request.Context()) {
				body[k] = val
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
