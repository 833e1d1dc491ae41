package delivery

import (
	"net/http"

	"github.com/allan-cais/besunny-ai-sub007/internal/email/usecase"
	logdomain "github.com/allan-cais/besunny-ai-sub007/internal/synclog/domain"

	"github.com/gin-gonic/gin"
)

// EmailHandler serves the manual mailbox reconciliation surface. Push intake
// arrives through Pub/Sub, not HTTP, so there is no webhook route here.
type EmailHandler struct {
	detectorUC usecase.DetectorUsecase
}

func NewEmailHandler(detectorUC usecase.DetectorUsecase) *EmailHandler {
	return &EmailHandler{detectorUC: detectorUC}
}

// Resync runs an immediate mailbox poll for the authenticated user,
// bypassing the notification skip window.
func (h *EmailHandler) Resync(c *gin.Context) {
	stats, err := h.detectorUC.PollMailbox(c.Request.Context(), c.GetString("userID"), logdomain.TriggerManual)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "stats": stats})
		return
	}
	c.JSON(http.StatusOK, stats)
}
