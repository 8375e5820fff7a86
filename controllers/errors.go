package controllers

import (
	"errors"
	"net/http"

	"intel-review-api/services"

	"github.com/gin-gonic/gin"
)

// respondError maps the service error taxonomy onto HTTP statuses.
// Validation and authorization failures are final; a ConflictError tells the
// caller to re-read current state and decide again.
func respondError(c *gin.Context, err error) {
	var (
		validation *services.ValidationError
		conflict   *services.ConflictError
		notFound   *services.NotFoundError
		authz      *services.AuthorizationError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message})
	case errors.As(err, &authz):
		c.JSON(http.StatusForbidden, gin.H{"error": authz.Message})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Message})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
