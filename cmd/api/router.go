package api

import (
	"net/http"

	"github.com/allan-cais/besunny-ai-sub007/internal/auth/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Signup issues the API token; everything else requires it.
		api.POST("/auth/signup", h.authHandler.Signup)

		// Google push channels authenticate by channel id, not by user token.
		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/calendar", h.calendarHandler.Webhook)
			webhooks.POST("/drive", h.driveHandler.Webhook)
		}

		auth := delivery.AuthMiddleware(h.authUsecase)

		me := api.Group("/me")
		me.Use(auth)
		{
			me.GET("", h.authHandler.Me)
		}

		devices := api.Group("/devices")
		devices.Use(auth)
		{
			devices.POST("/register", h.authHandler.RegisterDeviceToken)
			devices.DELETE("/:token", h.authHandler.UnregisterDeviceToken)
		}

		activity := api.Group("/activity")
		activity.Use(auth)
		{
			activity.POST("", h.authHandler.RecordActivity)
		}

		credentials := api.Group("/credentials")
		credentials.Use(auth)
		{
			credentials.POST("/:service", h.credentialHandler.Connect)
			credentials.DELETE("/:service", h.credentialHandler.Disconnect)
		}

		sync := api.Group("/sync")
		sync.Use(auth)
		{
			sync.POST("/calendar", h.calendarHandler.Resync)
			sync.POST("/email", h.emailHandler.Resync)
			sync.POST("/drive", h.driveHandler.Resync)
		}

		meetings := api.Group("/meetings")
		meetings.Use(auth)
		{
			meetings.GET("", h.meetingHandler.List)
			meetings.GET("/:id", h.meetingHandler.Get)
			meetings.POST("/:id/bot", h.meetingHandler.SendBot)
			meetings.POST("/:id/bot/chat", h.meetingHandler.SendChat)
			meetings.POST("/:id/bot/pause", h.meetingHandler.PauseRecording)
			meetings.POST("/:id/bot/resume", h.meetingHandler.ResumeRecording)
			meetings.GET("/:id/bot/participants", h.meetingHandler.ParticipantEvents)
		}

		documents := api.Group("/documents")
		documents.Use(auth)
		{
			documents.GET("", h.documentHandler.List)
			documents.GET("/:id", h.documentHandler.Get)
			documents.POST("/drive-watch", h.driveHandler.WatchFile)
		}
	}
}
