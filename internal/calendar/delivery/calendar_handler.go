package delivery

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/allan-cais/besunny-ai-sub007/internal/calendar/usecase"
	logdomain "github.com/allan-cais/besunny-ai-sub007/internal/synclog/domain"
	watchusecase "github.com/allan-cais/besunny-ai-sub007/internal/watch/usecase"

	"github.com/gin-gonic/gin"
)

// CalendarHandler serves the calendar webhook and the manual resync surface.
type CalendarHandler struct {
	syncUC  usecase.SyncUsecase
	watchUC watchusecase.WatchUsecase
}

func NewCalendarHandler(syncUC usecase.SyncUsecase, watchUC watchusecase.WatchUsecase) *CalendarHandler {
	return &CalendarHandler{
		syncUC:  syncUC,
		watchUC: watchUC,
	}
}

// Webhook handles Google push notifications. Always acknowledges with 2xx;
// a non-2xx makes Google retry and eventually kill the channel. The actual
// reconciliation runs off the request goroutine.
func (h *CalendarHandler) Webhook(c *gin.Context) {
	channelID := c.GetHeader("X-Goog-Channel-ID")
	state := c.GetHeader("X-Goog-Resource-State")

	// "sync" is the channel-created handshake, no change to process.
	if state == "sync" || channelID == "" {
		c.Status(http.StatusOK)
		return
	}

	watch, err := h.watchUC.ResolveChannel(channelID)
	if err != nil {
		log.Printf("[CalendarWebhook] Channel lookup failed for %s: %v", channelID, err)
		c.Status(http.StatusOK)
		return
	}
	if watch == nil {
		// Orphaned channel; acknowledged so Google stops retrying this one.
		c.Status(http.StatusOK)
		return
	}

	if err := h.watchUC.RecordNotification(watch.ID, time.Now()); err != nil {
		log.Printf("[CalendarWebhook] Failed to record notification for watch %s: %v", watch.ID, err)
	}

	go func(userID string) {
		if _, err := h.syncUC.SyncUser(context.Background(), userID, logdomain.TriggerWebhook); err != nil {
			log.Printf("[CalendarWebhook] Sync failed for user %s: %v", userID, err)
		}
	}(watch.UserID)

	c.Status(http.StatusOK)
}

// Resync runs an immediate reconciliation for the authenticated user.
func (h *CalendarHandler) Resync(c *gin.Context) {
	stats, err := h.syncUC.SyncUser(c.Request.Context(), c.GetString("userID"), logdomain.TriggerManual)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "stats": stats})
		return
	}
	c.JSON(http.StatusOK, stats)
}
