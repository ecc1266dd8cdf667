package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptdeck/promptdeck/domain"
)

// writeError translates the domain error taxonomy into HTTP statuses.
// Backend and unknown errors never leak internals to the client.
func writeError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case domain.IsDuplicate(err):
		var dup *domain.DuplicateError
		body := gin.H{"error": "duplicate prompt"}
		if errors.As(err, &dup) && dup.ExistingID != "" {
			body["existing_id"] = dup.ExistingID
		}
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case domain.IsBackendUnavailable(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": "storage backend unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
