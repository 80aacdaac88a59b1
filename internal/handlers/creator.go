package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gift-platform/internal/apperr"
	"gift-platform/internal/logger"
	"gift-platform/internal/middleware"
	"gift-platform/internal/models"
	"gift-platform/internal/store"
)

type CreatorLookup interface {
	CreatorByID(ctx context.Context, id int64) (*models.Creator, error)
}

type CreatorHandler struct {
	Creators CreatorLookup
	Log      *logger.Logger
}

func NewCreatorHandler(creators CreatorLookup, log *logger.Logger) *CreatorHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CreatorHandler{Creators: creators, Log: log}
}

// GetMyProfile returns the creator behind the verified token.
func (h *CreatorHandler) GetMyProfile(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	creator, err := h.Creators.CreatorByID(c.Request.Context(), id.CreatorID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Creator not found", "code": "CREATOR_NOT_FOUND"})
		return
	}
	if err != nil {
		respondError(c, h.Log, apperr.Persistence("lookup creator", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "creator": creator, "role": id.Role})
}
