package delivery

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/allan-cais/besunny-ai-sub007/internal/drive/usecase"
	logdomain "github.com/allan-cais/besunny-ai-sub007/internal/synclog/domain"
	watchusecase "github.com/allan-cais/besunny-ai-sub007/internal/watch/usecase"

	"github.com/gin-gonic/gin"
)

// DriveHandler serves the drive webhook plus the file-watch management
// surface.
type DriveHandler struct {
	pollerUC usecase.PollerUsecase
	watchUC  watchusecase.WatchUsecase
}

func NewDriveHandler(pollerUC usecase.PollerUsecase, watchUC watchusecase.WatchUsecase) *DriveHandler {
	return &DriveHandler{
		pollerUC: pollerUC,
		watchUC:  watchUC,
	}
}

// Webhook handles Google push notifications for watched files. Always
// acknowledges with 2xx; the reconciliation runs off the request goroutine.
func (h *DriveHandler) Webhook(c *gin.Context) {
	channelID := c.GetHeader("X-Goog-Channel-ID")
	state := c.GetHeader("X-Goog-Resource-State")

	if state == "sync" || channelID == "" {
		c.Status(http.StatusOK)
		return
	}

	watch, err := h.watchUC.ResolveChannel(channelID)
	if err != nil {
		log.Printf("[DriveWebhook] Channel lookup failed for %s: %v", channelID, err)
		c.Status(http.StatusOK)
		return
	}
	if watch == nil {
		c.Status(http.StatusOK)
		return
	}

	if err := h.watchUC.RecordNotification(watch.ID, time.Now()); err != nil {
		log.Printf("[DriveWebhook] Failed to record notification for watch %s: %v", watch.ID, err)
	}

	go func() {
		if err := h.pollerUC.PollWatch(context.Background(), watch); err != nil {
			log.Printf("[DriveWebhook] Poll failed for %s: %v", watch.ResourceKey, err)
		}
	}()

	c.Status(http.StatusOK)
}

type watchFileRequest struct {
	FileID string `json:"file_id" binding:"required"`
}

// WatchFile starts tracking one drive file for the authenticated user.
func (h *DriveHandler) WatchFile(c *gin.Context) {
	var req watchFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.pollerUC.WatchFile(c.Request.Context(), c.GetString("userID"), req.FileID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Resync polls every watched file of the authenticated user immediately.
func (h *DriveHandler) Resync(c *gin.Context) {
	stats, err := h.pollerUC.PollUserFiles(c.Request.Context(), c.GetString("userID"), logdomain.TriggerManual)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "stats": stats})
		return
	}
	c.JSON(http.StatusOK, stats)
}
