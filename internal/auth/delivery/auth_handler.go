package delivery

import (
	"net/http"

	authdomain "github.com/allan-cais/besunny-ai-sub007/internal/auth/domain"
	authrepo "github.com/allan-cais/besunny-ai-sub007/internal/auth/repository"
	authusecase "github.com/allan-cais/besunny-ai-sub007/internal/auth/usecase"
	logdomain "github.com/allan-cais/besunny-ai-sub007/internal/synclog/domain"
	logrepo "github.com/allan-cais/besunny-ai-sub007/internal/synclog/repository"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves the session surface: signup with token issuance, current
// user, device registration for push, and interaction recording for the
// adaptive scheduler.
type AuthHandler struct {
	userRepo     authrepo.UserRepository
	deviceRepo   authrepo.DeviceTokenRepository
	activityRepo logrepo.ActivityLogRepository
	authUC       authusecase.AuthUsecase
}

func NewAuthHandler(userRepo authrepo.UserRepository, deviceRepo authrepo.DeviceTokenRepository, activityRepo logrepo.ActivityLogRepository, authUC authusecase.AuthUsecase) *AuthHandler {
	return &AuthHandler{
		userRepo:     userRepo,
		deviceRepo:   deviceRepo,
		activityRepo: activityRepo,
		authUC:       authUC,
	}
}

type signupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name"`
	Username string `json:"username" binding:"required"`
}

// Signup creates the account and issues its API token. Posting an existing
// email again re-issues a token for that account.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userRepo.FindByEmail(req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up user"})
		return
	}
	status := http.StatusOK
	if user == nil {
		user = &authdomain.User{
			Email:    req.Email,
			Name:     req.Name,
			Username: req.Username,
		}
		if err := h.userRepo.Create(user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}
		status = http.StatusCreated
	}

	token, err := h.authUC.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(status, gin.H{"token": token, "user": user})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user := c.MustGet("user").(*authdomain.User)
	c.JSON(http.StatusOK, user)
}

type registerDeviceRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *AuthHandler) RegisterDeviceToken(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if err := h.deviceRepo.SaveToken(userID, req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register device token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "registered"})
}

func (h *AuthHandler) UnregisterDeviceToken(c *gin.Context) {
	token := c.Param("token")
	if err := h.deviceRepo.DeleteToken(token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unregister device token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unregistered"})
}

type recordActivityRequest struct {
	Kind   string `json:"kind" binding:"required"`
	Detail string `json:"detail"`
}

// RecordActivity stores an interaction event. The scheduler reads these to
// raise the sync cadence while the user is around.
func (h *AuthHandler) RecordActivity(c *gin.Context) {
	var req recordActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry := &logdomain.ActivityLog{
		UserID: c.GetString("userID"),
		Kind:   req.Kind,
		Detail: req.Detail,
	}
	if err := h.activityRepo.Append(entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record activity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}
