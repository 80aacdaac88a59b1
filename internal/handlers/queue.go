package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gift-platform/internal/logger"
	"gift-platform/internal/mediaqueue"
	"gift-platform/internal/middleware"
	"gift-platform/internal/models"
)

type QueueHandler struct {
	Engine *mediaqueue.Engine
	Log    *logger.Logger
}

func NewQueueHandler(engine *mediaqueue.Engine, log *logger.Logger) *QueueHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &QueueHandler{Engine: engine, Log: log}
}

// ListQueue returns the creator's PENDING and PLAYING items in play order.
func (h *QueueHandler) ListQueue(c *gin.Context) {
	items, err := h.Engine.ListActive(c.Request.Context(), c.Param("creator"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "items": items})
}

func (h *QueueHandler) NextItem(c *gin.Context) {
	item, err := h.Engine.Next(c.Request.Context(), c.Param("creator"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
}

type enqueueRequest struct {
	GiftRef string `json:"gift_ref" binding:"required"`
}

func (h *QueueHandler) Enqueue(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "gift_ref is required")
		return
	}
	item, err := h.Engine.EnqueueRef(c.Request.Context(), req.GiftRef, id.CreatorID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "item": item})
}

type advanceRequest struct {
	ID            string `json:"id" binding:"required"`
	Status        string `json:"status" binding:"required"`
	ActualSeconds int    `json:"actual_seconds"`
}

func (h *QueueHandler) Advance(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "id and status are required")
		return
	}
	status, err := models.ParseQueueStatus(req.Status)
	if err != nil || status == models.QueuePending {
		badRequest(c, "status must be PLAYING, PLAYED or SKIPPED")
		return
	}
	if req.ActualSeconds < 0 {
		badRequest(c, "actual_seconds cannot be negative")
		return
	}
	item, err := h.Engine.Advance(c.Request.Context(), req.ID, status, req.ActualSeconds, id.CreatorID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
}

type skipRequest struct {
	ID     string `json:"id" form:"id"`
	Reason string `json:"reason" form:"reason"`
}

func (h *QueueHandler) Skip(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	var req skipRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
	}
	if req.ID == "" {
		req.ID = c.Query("id")
		req.Reason = c.DefaultQuery("reason", req.Reason)
	}
	if req.ID == "" {
		badRequest(c, "id is required")
		return
	}
	item, err := h.Engine.Skip(c.Request.Context(), req.ID, req.Reason, id.CreatorID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
}
