package notification

import (
	"context"
	"log"
	"time"

	authrepo "github.com/allan-cais/besunny-ai-sub007/internal/auth/repository"
	logdomain "github.com/allan-cais/besunny-ai-sub007/internal/synclog/domain"
	logrepo "github.com/allan-cais/besunny-ai-sub007/internal/synclog/repository"
	"github.com/allan-cais/besunny-ai-sub007/pkg/fcm"
)

// Notifier fans domain events out to the activity log and, when FCM is
// configured, to the user's registered devices. It backs the EventService
// interfaces of the sync usecases.
type Notifier struct {
	deviceRepo   authrepo.DeviceTokenRepository
	activityRepo logrepo.ActivityLogRepository
	fcmClient    *fcm.Client
}

func NewNotifier(deviceRepo authrepo.DeviceTokenRepository, activityRepo logrepo.ActivityLogRepository, fcmClient *fcm.Client) *Notifier {
	return &Notifier{
		deviceRepo:   deviceRepo,
		activityRepo: activityRepo,
		fcmClient:    fcmClient,
	}
}

// Emit records the event and pushes it to devices. Push is best effort and
// runs off the caller's goroutine; the sync paths never block on FCM.
func (n *Notifier) Emit(userID, kind, detail string) {
	if err := n.activityRepo.Append(&logdomain.ActivityLog{
		UserID: userID,
		Kind:   kind,
		Detail: detail,
	}); err != nil {
		log.Printf("[Notifier] Failed to append activity log for user %s: %v", userID, err)
	}

	if n.fcmClient == nil {
		return
	}
	go n.push(userID, kind, detail)
}

func (n *Notifier) push(userID, kind, detail string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tokens, err := n.deviceRepo.GetTokensByUserID(userID)
	if err != nil {
		log.Printf("[Notifier] Error getting device tokens for user %s: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	tokenStrings := make([]string, 0, len(tokens))
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	body := detail
	if len(body) > 100 {
		body = body[:97] + "..."
	}

	failedTokens, err := n.fcmClient.SendToDevices(ctx, tokenStrings, fcm.NotificationData{
		Title: titleFor(kind),
		Body:  body,
		Data: map[string]string{
			"kind": kind,
		},
	})
	if err != nil {
		log.Printf("[Notifier] Error sending push to user %s: %v", userID, err)
		return
	}
	for _, token := range failedTokens {
		if derr := n.deviceRepo.DeleteToken(token); derr != nil {
			log.Printf("[Notifier] Failed to purge device token: %v", derr)
		}
	}
}

func titleFor(kind string) string {
	switch kind {
	case "meeting_created":
		return "New meeting scheduled"
	case "meeting_cancelled":
		return "Meeting cancelled"
	case "bot_scheduled":
		return "Notetaker scheduled"
	case "bot_status_changed":
		return "Notetaker update"
	case "transcript_ready":
		return "Transcript ready"
	case "document_created":
		return "New document"
	case "document_updated":
		return "Document updated"
	case "document_deleted":
		return "Document removed"
	default:
		return kind
	}
}
