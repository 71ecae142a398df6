package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readyTimeout = 2 * time.Second

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

type namedCheck struct {
	name  string
	check Check
}

// Health serves /health, /live and /ready.
type Health struct {
	service string
	checks  []namedCheck
}

func NewHealth(service string) *Health {
	return &Health{service: service}
}

// AddCheck adds a readiness check. Checks run in the order they were added.
func (h *Health) AddCheck(name string, check Check) {
	h.checks = append(h.checks, namedCheck{name: name, check: check})
}

func (h *Health) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.health)
	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/ready", h.ready)
}

func (h *Health) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"service":   h.service,
	})
}

func (h *Health) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	for _, nc := range h.checks {
		if err := nc.check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   nc.name + " unavailable",
				"details": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"service":   h.service,
	})
}
