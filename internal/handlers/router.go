package handlers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"gift-platform/internal/logger"
	"gift-platform/internal/middleware"
)

// Router holds everything the HTTP surface is built from. Webhook, Donation,
// Archive and WebSocket handlers are optional.
type Router struct {
	JWTSecret    string
	CronSecret   string
	CORSOrigins  []string
	WebhookLimit *middleware.RateLimiter

	Webhook     *WebhookHandler
	Donation    *DonationHandler
	Queue       *QueueHandler
	Leaderboard *LeaderboardHandler
	Archive     *ArchiveHandler
	WebSocket   *WebSocketHandler
	Creator     *CreatorHandler
	Log         *logger.Logger
}

func (rt *Router) Engine() *gin.Engine {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	if len(rt.CORSOrigins) == 0 || (len(rt.CORSOrigins) == 1 && rt.CORSOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = rt.CORSOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	api := r.Group("/api")
	{
		if rt.Webhook != nil {
			webhook := api.Group("/webhook")
			if rt.WebhookLimit != nil {
				webhook.Use(rt.WebhookLimit.Middleware())
			}
			webhook.POST("/payment", rt.Webhook.HandlePaymentSignal)
			if rt.Webhook.Gateway != nil {
				webhook.POST("/midtrans", rt.Webhook.HandleMidtransNotification)
			}
		}
		if rt.Donation != nil {
			api.POST("/donate/:username", rt.Donation.CreateDonation)
		}
		if rt.Archive != nil {
			api.POST("/archive", middleware.SharedSecret("X-Cron-Secret", rt.CronSecret), rt.Archive.RunArchive)
		}
		if rt.Leaderboard != nil {
			api.GET("/leaderboard/:creator", rt.Leaderboard.GetLeaderboard)
		}
		if rt.WebSocket != nil {
			api.GET("/ws/:secretToken", rt.WebSocket.ServerWs)
		}

		if rt.Creator != nil {
			api.GET("/me", middleware.AuthMiddleware(rt.JWTSecret, rt.Log), rt.Creator.GetMyProfile)
		}

		if rt.Queue != nil {
			api.GET("/queue/:creator", rt.Queue.ListQueue)
			api.GET("/queue/:creator/next", rt.Queue.NextItem)

			protected := api.Group("/queue")
			protected.Use(middleware.AuthMiddleware(rt.JWTSecret, rt.Log))
			{
				protected.POST("", middleware.RequireRole(middleware.RoleCreator), rt.Queue.Enqueue)
				protected.PUT("", middleware.RequireRole(middleware.RoleCreator, middleware.RoleOverlay), rt.Queue.Advance)
				protected.DELETE("", middleware.RequireRole(middleware.RoleCreator), rt.Queue.Skip)
			}
		}
	}
	return r
}
