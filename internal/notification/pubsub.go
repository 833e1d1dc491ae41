package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	emailusecase "github.com/allan-cais/besunny-ai-sub007/internal/email/usecase"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes on mailbox changes.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// PubSubService receives Gmail push notifications and hands them to the
// email detector. Gmail delivers at least once; notifications whose history
// id does not move past the last seen value are dropped.
type PubSubService struct {
	pubsubClient *pubsub.Client
	detector     emailusecase.DetectorUsecase
	topicName    string
	subName      string

	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

func NewPubSubService(projectID, topicName, subName string, detector emailusecase.DetectorUsecase, credentialsFile string) (*PubSubService, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return &PubSubService{
		pubsubClient:  client,
		detector:      detector,
		topicName:     topicName,
		subName:       subName,
		lastHistoryID: make(map[string]uint64),
	}, nil
}

func (s *PubSubService) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting Gmail intake with topic: %s, subscription: %s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic %s does not exist, cannot create subscription", s.topicName)
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	log.Printf("[PubSub] Listening for messages on subscription: %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *PubSubService) handleMessage(ctx context.Context, msg *pubsub.Message) {
	var notification GmailNotification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		log.Printf("[PubSub] Failed to unmarshal notification: %v", err)
		return
	}
	if notification.EmailAddress == "" {
		return
	}

	if s.isDuplicate(notification) {
		log.Printf("[PubSub] Skipping duplicate notification for %s (historyId %d)", notification.EmailAddress, notification.HistoryID)
		return
	}

	if err := s.detector.HandleNotification(ctx, notification.EmailAddress); err != nil {
		log.Printf("[PubSub] Notification handling failed for %s: %v", notification.EmailAddress, err)
	}
}

func (s *PubSubService) isDuplicate(notification GmailNotification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, seen := s.lastHistoryID[notification.EmailAddress]
	if seen && notification.HistoryID != 0 && notification.HistoryID <= last {
		return true
	}
	if notification.HistoryID > last {
		s.lastHistoryID[notification.EmailAddress] = notification.HistoryID
	}
	return false
}
