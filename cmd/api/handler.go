package api

import (
	authDelivery "github.com/allan-cais/besunny-ai-sub007/internal/auth/delivery"
	authUsecase "github.com/allan-cais/besunny-ai-sub007/internal/auth/usecase"
	calendarDelivery "github.com/allan-cais/besunny-ai-sub007/internal/calendar/delivery"
	credentialDelivery "github.com/allan-cais/besunny-ai-sub007/internal/credential/delivery"
	documentDelivery "github.com/allan-cais/besunny-ai-sub007/internal/document/delivery"
	driveDelivery "github.com/allan-cais/besunny-ai-sub007/internal/drive/delivery"
	emailDelivery "github.com/allan-cais/besunny-ai-sub007/internal/email/delivery"
	meetingDelivery "github.com/allan-cais/besunny-ai-sub007/internal/meeting/delivery"

	"github.com/gin-gonic/gin"
)

// Handler bundles the HTTP delivery layer.
type Handler struct {
	authUsecase       authUsecase.AuthUsecase
	authHandler       *authDelivery.AuthHandler
	credentialHandler *credentialDelivery.CredentialHandler
	calendarHandler   *calendarDelivery.CalendarHandler
	driveHandler      *driveDelivery.DriveHandler
	emailHandler      *emailDelivery.EmailHandler
	meetingHandler    *meetingDelivery.MeetingHandler
	documentHandler   *documentDelivery.DocumentHandler
}

func NewHandler(
	authUc authUsecase.AuthUsecase,
	authHandler *authDelivery.AuthHandler,
	credentialHandler *credentialDelivery.CredentialHandler,
	calendarHandler *calendarDelivery.CalendarHandler,
	driveHandler *driveDelivery.DriveHandler,
	emailHandler *emailDelivery.EmailHandler,
	meetingHandler *meetingDelivery.MeetingHandler,
	documentHandler *documentDelivery.DocumentHandler,
) *Handler {
	return &Handler{
		authUsecase:       authUc,
		authHandler:       authHandler,
		credentialHandler: credentialHandler,
		calendarHandler:   calendarHandler,
		driveHandler:      driveHandler,
		emailHandler:      emailHandler,
		meetingHandler:    meetingHandler,
		documentHandler:   documentHandler,
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	gin.SetMode(gin.ReleaseMode)

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h)

	return r.Run(addr)
}
