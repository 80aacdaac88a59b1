package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gift-platform/internal/archive"
	"gift-platform/internal/logger"
)

type ArchiveHandler struct {
	Pipeline *archive.Pipeline
	Log      *logger.Logger
}

func NewArchiveHandler(p *archive.Pipeline, log *logger.Logger) *ArchiveHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ArchiveHandler{Pipeline: p, Log: log}
}

// RunArchive is the operator trigger; the shared secret is checked by
// middleware.
func (h *ArchiveHandler) RunArchive(c *gin.Context) {
	summary, err := h.Pipeline.Run(c.Request.Context())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
