package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mouleshgs/onboardX/service"
)

// writeServiceError maps the lifecycle error taxonomy onto HTTP
// statuses so the UI can tell "not signed yet" (403) from "does not
// exist" (404), "temporarily unavailable" (502, retry-safe) and
// "already signed" (409).
func writeServiceError(c *gin.Context, err error) {
	var invalid *service.InvalidDocumentError
	var upstream *service.UpstreamError

	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Contract not signed yet"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Contract already signed"})
	case errors.Is(err, service.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service not configured"})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
	case errors.As(err, &upstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Storage temporarily unavailable, retry later"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
