package main

import (
	"context"
	"fmt"
	"log"

	api "github.com/allan-cais/besunny-ai-sub007/cmd/api"
	authdomain "github.com/allan-cais/besunny-ai-sub007/internal/auth/domain"
	authDelivery "github.com/allan-cais/besunny-ai-sub007/internal/auth/delivery"
	authRepo "github.com/allan-cais/besunny-ai-sub007/internal/auth/repository"
	authUsecase "github.com/allan-cais/besunny-ai-sub007/internal/auth/usecase"
	calendarDelivery "github.com/allan-cais/besunny-ai-sub007/internal/calendar/delivery"
	calendarUsecase "github.com/allan-cais/besunny-ai-sub007/internal/calendar/usecase"
	credentialDelivery "github.com/allan-cais/besunny-ai-sub007/internal/credential/delivery"
	creddomain "github.com/allan-cais/besunny-ai-sub007/internal/credential/domain"
	credentialRepo "github.com/allan-cais/besunny-ai-sub007/internal/credential/repository"
	credentialUsecase "github.com/allan-cais/besunny-ai-sub007/internal/credential/usecase"
	documentDelivery "github.com/allan-cais/besunny-ai-sub007/internal/document/delivery"
	docdomain "github.com/allan-cais/besunny-ai-sub007/internal/document/domain"
	documentRepo "github.com/allan-cais/besunny-ai-sub007/internal/document/repository"
	driveDelivery "github.com/allan-cais/besunny-ai-sub007/internal/drive/delivery"
	driveUsecase "github.com/allan-cais/besunny-ai-sub007/internal/drive/usecase"
	emailDelivery "github.com/allan-cais/besunny-ai-sub007/internal/email/delivery"
	emailUsecase "github.com/allan-cais/besunny-ai-sub007/internal/email/usecase"
	meetingDelivery "github.com/allan-cais/besunny-ai-sub007/internal/meeting/delivery"
	meetingdomain "github.com/allan-cais/besunny-ai-sub007/internal/meeting/domain"
	meetingRepo "github.com/allan-cais/besunny-ai-sub007/internal/meeting/repository"
	meetingUsecase "github.com/allan-cais/besunny-ai-sub007/internal/meeting/usecase"
	"github.com/allan-cais/besunny-ai-sub007/internal/notification"
	"github.com/allan-cais/besunny-ai-sub007/internal/scheduler"
	logdomain "github.com/allan-cais/besunny-ai-sub007/internal/synclog/domain"
	synclogRepo "github.com/allan-cais/besunny-ai-sub007/internal/synclog/repository"
	watchdomain "github.com/allan-cais/besunny-ai-sub007/internal/watch/domain"
	watchRepo "github.com/allan-cais/besunny-ai-sub007/internal/watch/repository"
	watchUsecase "github.com/allan-cais/besunny-ai-sub007/internal/watch/usecase"
	"github.com/allan-cais/besunny-ai-sub007/pkg/attendee"
	"github.com/allan-cais/besunny-ai-sub007/pkg/classifier"
	"github.com/allan-cais/besunny-ai-sub007/pkg/config"
	"github.com/allan-cais/besunny-ai-sub007/pkg/database"
	"github.com/allan-cais/besunny-ai-sub007/pkg/fcm"
	"github.com/allan-cais/besunny-ai-sub007/pkg/gcal"
	"github.com/allan-cais/besunny-ai-sub007/pkg/gdrive"
	"github.com/allan-cais/besunny-ai-sub007/pkg/gmailapi"
	"github.com/allan-cais/besunny-ai-sub007/pkg/googleauth"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&authdomain.User{},
		&authdomain.DeviceToken{},
		&creddomain.Credential{},
		&watchdomain.Watch{},
		&meetingdomain.Meeting{},
		&meetingdomain.Bot{},
		&docdomain.Document{},
		&logdomain.SyncLog{},
		&logdomain.ActivityLog{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepository := authRepo.NewUserRepository(db)
	deviceTokenRepository := authRepo.NewDeviceTokenRepository(db)
	credentialRepository := credentialRepo.NewCredentialRepository(db)
	watchRepository := watchRepo.NewWatchRepository(db)
	meetingRepository := meetingRepo.NewMeetingRepository(db)
	botRepository := meetingRepo.NewBotRepository(db)
	documentRepository := documentRepo.NewDocumentRepository(db)
	syncLogRepository := synclogRepo.NewSyncLogRepository(db)
	activityLogRepository := synclogRepo.NewActivityLogRepository(db)

	// Initialize external clients
	provider := googleauth.NewProvider(cfg.GoogleClientID, cfg.GoogleClientSecret)
	calendarService := gcal.NewService(provider)
	gmailService := gmailapi.NewService(provider)
	driveService := gdrive.NewService(provider)
	attendeeClient := attendee.NewClient(cfg.AttendeeBaseURL, cfg.AttendeeAPIKey)
	classifierClient := classifier.NewClient(cfg.ClassifierWebhookURL)

	// FCM is optional; everything degrades to activity-log-only events.
	var fcmClient *fcm.Client
	if cfg.FirebaseCredentials != "" {
		fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
			fcmClient = nil
		}
	}
	notifier := notification.NewNotifier(deviceTokenRepository, activityLogRepository, fcmClient)

	// Gmail watch requests need the fully qualified topic resource name.
	gmailTopic := ""
	if cfg.GoogleProjectID != "" {
		gmailTopic = fmt.Sprintf("projects/%s/topics/%s", cfg.GoogleProjectID, cfg.GmailPubSubTopic)
	}

	// Initialize use cases (dependency injection)
	authUC := authUsecase.NewAuthUsecase(userRepository, cfg.JWTSecret)
	credUC := credentialUsecase.NewCredentialUsecase(credentialRepository, watchRepository, provider)
	watchUC := watchUsecase.NewWatchUsecase(watchRepository)

	calendarUC := calendarUsecase.NewSyncUsecase(credUC, watchUC, watchRepository, meetingRepository, syncLogRepository, calendarService, notifier)
	emailUC := emailUsecase.NewDetectorUsecase(
		userRepository, documentRepository, watchRepository, watchUC, credUC, syncLogRepository,
		gmailService, classifierClient, notifier,
		gmailTopic, cfg.EmailPrefix, cfg.EmailDomain, cfg.EmailPollSkipWindow,
	)
	driveUC := driveUsecase.NewPollerUsecase(credUC, watchUC, watchRepository, documentRepository, syncLogRepository, driveService, classifierClient, notifier)
	botUC := meetingUsecase.NewBotUsecase(meetingRepository, botRepository, attendeeClient, notifier)
	meetingUC := meetingUsecase.NewMeetingUsecase(meetingRepository)

	watchUC.RegisterSubscriber("calendar", calendarUsecase.NewSubscriber(credUC, calendarService, cfg.WebhookBaseURL+"/api/webhooks/calendar"))
	watchUC.RegisterSubscriber("gmail", emailUsecase.NewSubscriber(credUC, gmailService, gmailTopic))
	watchUC.RegisterSubscriber("drive", driveUsecase.NewSubscriber(credUC, driveService, cfg.WebhookBaseURL+"/api/webhooks/drive"))

	// Gmail push intake via Pub/Sub
	if cfg.GoogleProjectID != "" {
		pubsubService, err := notification.NewPubSubService(cfg.GoogleProjectID, cfg.GmailPubSubTopic, cfg.GmailPubSubSub, emailUC, cfg.GoogleCredentials)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize pubsub service: %v", err)
		} else {
			go pubsubService.Start(context.Background())
		}
	} else {
		log.Printf("[WARN] GoogleProjectID not configured, Gmail push intake disabled")
	}

	// Adaptive sync scheduler
	syncScheduler := scheduler.NewSyncScheduler(
		userRepository, watchRepository, syncLogRepository, activityLogRepository,
		calendarUC, emailUC, driveUC, botUC, watchUC,
	)
	syncScheduler.Start()
	defer syncScheduler.Stop()

	// Initialize HTTP handler
	handler := api.NewHandler(
		authUC,
		authDelivery.NewAuthHandler(userRepository, deviceTokenRepository, activityLogRepository, authUC),
		credentialDelivery.NewCredentialHandler(credUC),
		calendarDelivery.NewCalendarHandler(calendarUC, watchUC),
		driveDelivery.NewDriveHandler(driveUC, watchUC),
		emailDelivery.NewEmailHandler(emailUC),
		meetingDelivery.NewMeetingHandler(meetingUC, botUC),
		documentDelivery.NewDocumentHandler(documentRepository),
	)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
