// Package health exposes the liveness and readiness probes.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Handler struct {
	db *sqlx.DB
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

// LivenessCheck answers as long as the process is serving.
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP", "time": time.Now().UTC()})
}

// ReadinessCheck additionally requires a reachable database.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "DOWN",
			"reason": "database unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP", "time": time.Now().UTC()})
}
