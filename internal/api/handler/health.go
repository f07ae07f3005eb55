package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/russtat/internal/catalog"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	catalog *catalog.Store
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store *catalog.Store) *HealthHandler {
	return &HealthHandler{catalog: store}
}

// Health returns the health status of the service and the loaded catalog size
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"datasets": h.catalog.Len(),
	})
}
