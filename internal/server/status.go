package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Healthz is the liveness probe.
func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status reports the build version and uptime. Uptime is measured from the
// immutable process start time, so it is monotonic across requests.
func (s *Server) Status(c *gin.Context) {
	up := time.Since(s.start)
	body := gin.H{
		"version":        s.version,
		"started_at":     s.start.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(up.Seconds()),
		"uptime":         up.Truncate(time.Second).String(),
	}
	if s.upstreams != nil {
		body["upstreams"] = s.upstreams()
	}
	c.JSON(http.StatusOK, body)
}
