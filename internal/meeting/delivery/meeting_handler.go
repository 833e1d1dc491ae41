package delivery

import (
	"net/http"
	"strconv"

	meetingdomain "github.com/allan-cais/besunny-ai-sub007/internal/meeting/domain"
	"github.com/allan-cais/besunny-ai-sub007/internal/meeting/usecase"

	"github.com/gin-gonic/gin"
)

// MeetingHandler serves meeting reads and the bot operation surface.
type MeetingHandler struct {
	meetingUC usecase.MeetingUsecase
	botUC     usecase.BotUsecase
}

func NewMeetingHandler(meetingUC usecase.MeetingUsecase, botUC usecase.BotUsecase) *MeetingHandler {
	return &MeetingHandler{
		meetingUC: meetingUC,
		botUC:     botUC,
	}
}

func (h *MeetingHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	meetings, total, err := h.meetingUC.ListByUser(c.GetString("userID"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list meetings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meetings": meetings,
		"total":    total,
	})
}

func (h *MeetingHandler) Get(c *gin.Context) {
	meeting, err := h.meetingUC.GetByID(c.GetString("userID"), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
		return
	}
	c.JSON(http.StatusOK, meeting)
}

type sendBotRequest struct {
	BotName         string `json:"bot_name"`
	GreetingMessage string `json:"greeting_message"`
	RecordingMode   string `json:"recording_mode"`
}

func (h *MeetingHandler) SendBot(c *gin.Context) {
	var req sendBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meeting, err := h.botUC.SendBot(c.Request.Context(), c.GetString("userID"), c.Param("id"), meetingdomain.BotConfig{
		BotName:         req.BotName,
		GreetingMessage: req.GreetingMessage,
		RecordingMode:   req.RecordingMode,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, meeting)
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

func (h *MeetingHandler) SendChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.botUC.SendChat(c.Request.Context(), c.GetString("userID"), c.Param("id"), req.Message); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (h *MeetingHandler) PauseRecording(c *gin.Context) {
	if err := h.botUC.PauseRecording(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

func (h *MeetingHandler) ResumeRecording(c *gin.Context) {
	if err := h.botUC.ResumeRecording(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resumed"})
}

func (h *MeetingHandler) ParticipantEvents(c *gin.Context) {
	events, err := h.botUC.ParticipantEvents(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
