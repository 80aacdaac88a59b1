package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gift-platform/internal/leaderboard"
	"gift-platform/internal/logger"
)

type LeaderboardHandler struct {
	Service *leaderboard.Service
	Log     *logger.Logger
}

func NewLeaderboardHandler(svc *leaderboard.Service, log *logger.Logger) *LeaderboardHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &LeaderboardHandler{Service: svc, Log: log}
}

// GetLeaderboard serves ?month=YYYY-MM, defaulting to the current month.
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	lb, err := h.Service.Get(c.Request.Context(), c.Param("creator"), c.Query("month"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "leaderboard": lb})
}
