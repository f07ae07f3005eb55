package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/russtat/internal/api/middleware"
	"github.com/timmy/russtat/internal/domain"
)

// respondError maps domain errors to HTTP status codes.
func respondError(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNetwork):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		middleware.GetLogger(c).WithError(err).Error(msg)
	}
	c.JSON(status, gin.H{"error": msg + ": " + err.Error()})
}
