package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gift-platform/internal/apperr"
	"gift-platform/internal/logger"
)

// respondError writes the categorized error body every endpoint shares.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status := apperr.StatusOf(err)
	message := "internal error"
	var appErr *apperr.Error
	if errors.As(err, &appErr) && status < http.StatusInternalServerError {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "path", c.FullPath(), "status", status, "error", err)
	} else {
		log.Infow("request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"success": false, "error": message, "code": apperr.CodeOf(err)})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message, "code": "INVALID_REQUEST"})
}
