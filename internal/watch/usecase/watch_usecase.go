package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	watchdomain "github.com/allan-cais/besunny-ai-sub007/internal/watch/domain"
	"github.com/allan-cais/besunny-ai-sub007/internal/watch/repository"

	"github.com/google/uuid"
)

// renewalWindow is how far before expiry a watch gets renewed.
const renewalWindow = 24 * time.Hour

// Subscriber opens a provider-side push channel for one resource. Each source
// ("calendar", "gmail", "drive") registers its own implementation.
type Subscriber interface {
	Subscribe(ctx context.Context, userID, resourceKey, channelID string) (resourceID string, expiration time.Time, initialCursor *string, err error)
}

// WatchUsecase owns the lifecycle of push subscriptions: creation, renewal
// and channel resolution for incoming notifications.
type WatchUsecase interface {
	RegisterSubscriber(sourcePrefix string, sub Subscriber)
	EnsureWatch(ctx context.Context, userID, resourceKey string) (*watchdomain.Watch, error)
	RenewExpiring(ctx context.Context) error
	// ResolveChannel maps an incoming channel id to its watch. A nil watch
	// with nil error is an orphaned channel; callers acknowledge and move on.
	ResolveChannel(channelID string) (*watchdomain.Watch, error)
	RecordNotification(watchID string, at time.Time) error
}

type watchUsecase struct {
	watchRepo   repository.WatchRepository
	subscribers map[string]Subscriber
}

func NewWatchUsecase(watchRepo repository.WatchRepository) WatchUsecase {
	return &watchUsecase{
		watchRepo:   watchRepo,
		subscribers: make(map[string]Subscriber),
	}
}

// RegisterSubscriber is called during wiring, before any goroutine touches
// the usecase; the map is read-only afterwards.
func (u *watchUsecase) RegisterSubscriber(sourcePrefix string, sub Subscriber) {
	u.subscribers[sourcePrefix] = sub
}

func (u *watchUsecase) EnsureWatch(ctx context.Context, userID, resourceKey string) (*watchdomain.Watch, error) {
	existing, err := u.watchRepo.FindActiveByUserAndResource(userID, resourceKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	sub, ok := u.subscribers[sourceOf(resourceKey)]
	if !ok {
		return nil, fmt.Errorf("no subscriber registered for resource %s", resourceKey)
	}

	channelID := uuid.New().String()
	resourceID, expiration, cursor, err := sub.Subscribe(ctx, userID, resourceKey, channelID)
	if err != nil {
		return nil, err
	}

	watch := &watchdomain.Watch{
		UserID:      userID,
		ResourceKey: resourceKey,
		ChannelID:   channelID,
		ResourceID:  resourceID,
		CursorToken: cursor,
		Expiration:  expiration,
		IsActive:    true,
	}
	if err := u.watchRepo.Create(watch); err != nil {
		return nil, err
	}
	if watch.ChannelID != channelID {
		// A concurrent registration won the insert; our channel becomes an
		// orphan and is dropped at its provider-side expiry.
		log.Printf("[Watch] Concurrent registration for %s user %s, adopting existing channel %s", resourceKey, userID, watch.ChannelID)
		return watch, nil
	}
	log.Printf("[Watch] Created %s watch for user %s (channel %s, expires %s)", resourceKey, userID, channelID, expiration.Format(time.RFC3339))
	return watch, nil
}

// RenewExpiring re-subscribes every active watch expiring within the renewal
// window. The channel identifiers are swapped in place and the cursor is
// preserved, so no delta is lost across the renewal.
func (u *watchUsecase) RenewExpiring(ctx context.Context) error {
	expiring, err := u.watchRepo.FindExpiringBefore(time.Now().Add(renewalWindow))
	if err != nil {
		return err
	}

	for _, watch := range expiring {
		sub, ok := u.subscribers[watch.Source()]
		if !ok {
			log.Printf("[Watch] No subscriber for %s, deactivating watch %s", watch.ResourceKey, watch.ID)
			if err := u.watchRepo.Deactivate(watch.ID); err != nil {
				return err
			}
			continue
		}

		channelID := uuid.New().String()
		resourceID, expiration, _, err := sub.Subscribe(ctx, watch.UserID, watch.ResourceKey, channelID)
		if err != nil {
			log.Printf("[Watch] Renewal failed for watch %s (%s): %v", watch.ID, watch.ResourceKey, err)
			if derr := u.watchRepo.Deactivate(watch.ID); derr != nil {
				return derr
			}
			continue
		}

		if err := u.watchRepo.ReplaceChannel(watch.ID, channelID, resourceID, expiration); err != nil {
			return err
		}
		log.Printf("[Watch] Renewed %s watch for user %s (new channel %s)", watch.ResourceKey, watch.UserID, channelID)
	}
	return nil
}

func (u *watchUsecase) ResolveChannel(channelID string) (*watchdomain.Watch, error) {
	watch, err := u.watchRepo.FindByChannelID(channelID)
	if err != nil {
		return nil, err
	}
	if watch == nil || !watch.IsActive {
		// Stale channels keep notifying until their provider-side expiry.
		log.Printf("[Watch] Notification on unknown or inactive channel %s", channelID)
		return nil, nil
	}
	return watch, nil
}

func (u *watchUsecase) RecordNotification(watchID string, at time.Time) error {
	return u.watchRepo.Touch(watchID, at)
}

func sourceOf(resourceKey string) string {
	if i := strings.IndexByte(resourceKey, ':'); i >= 0 {
		return resourceKey[:i]
	}
	return resourceKey
}
