package server

import (
	"net/http"
	"time"

	"ipnotify/internal/types"
	"ipnotify/internal/version"

	"github.com/gin-gonic/gin"
)

// Health states reported by /healthz
const (
	StatusStarting = "starting"
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// StatusProvider exposes the most recent check cycle
type StatusProvider interface {
	Last() (types.CheckResult, bool)
}

// HealthResponse is the /healthz body
type HealthResponse struct {
	Status    string             `json:"status"`
	Version   string             `json:"version"`
	Uptime    string             `json:"uptime"`
	LastCheck *types.CheckResult `json:"last_check,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	resp := HealthResponse{
		Status:  StatusStarting,
		Version: version.Version,
		Uptime:  time.Since(s.started).Truncate(time.Second).String(),
	}

	if last, ok := s.status.Last(); ok {
		resp.LastCheck = &last
		resp.Status = StatusOK
		if last.Status == types.CheckFailed {
			resp.Status = StatusDegraded
		}
	}

	// Degraded still answers 200, the process itself is alive
	c.JSON(http.StatusOK, resp)
}
