package delivery

import (
	"net/http"
	"time"

	creddomain "github.com/allan-cais/besunny-ai-sub007/internal/credential/domain"
	"github.com/allan-cais/besunny-ai-sub007/internal/credential/usecase"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

// CredentialHandler serves the connect/disconnect surface. The OAuth consent
// flow runs client side; this API receives the resulting grant.
type CredentialHandler struct {
	credUC usecase.CredentialUsecase
}

func NewCredentialHandler(credUC usecase.CredentialUsecase) *CredentialHandler {
	return &CredentialHandler{credUC: credUC}
}

type connectRequest struct {
	AccessToken  string    `json:"access_token" binding:"required"`
	RefreshToken string    `json:"refresh_token" binding:"required"`
	ExpiresAt    time.Time `json:"expires_at" binding:"required"`
	Scope        string    `json:"scope"`
}

func (h *CredentialHandler) Connect(c *gin.Context) {
	service, ok := parseService(c.Param("service"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown service"})
		return
	}

	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token := &oauth2.Token{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		Expiry:       req.ExpiresAt,
	}
	if err := h.credUC.StoreCredential(c.GetString("userID"), service, token, req.Scope); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store credential"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connected"})
}

func (h *CredentialHandler) Disconnect(c *gin.Context) {
	service, ok := parseService(c.Param("service"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown service"})
		return
	}

	if err := h.credUC.Disconnect(c.Request.Context(), c.GetString("userID"), service); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disconnect"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

func parseService(raw string) (creddomain.Service, bool) {
	switch creddomain.Service(raw) {
	case creddomain.ServiceCalendar, creddomain.ServiceGmail, creddomain.ServiceDrive:
		return creddomain.Service(raw), true
	}
	return "", false
}
