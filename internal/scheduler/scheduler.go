package scheduler

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	authrepo "github.com/allan-cais/besunny-ai-sub007/internal/auth/repository"
	calusecase "github.com/allan-cais/besunny-ai-sub007/internal/calendar/usecase"
	driveusecase "github.com/allan-cais/besunny-ai-sub007/internal/drive/usecase"
	emailusecase "github.com/allan-cais/besunny-ai-sub007/internal/email/usecase"
	meetingusecase "github.com/allan-cais/besunny-ai-sub007/internal/meeting/usecase"
	logdomain "github.com/allan-cais/besunny-ai-sub007/internal/synclog/domain"
	logrepo "github.com/allan-cais/besunny-ai-sub007/internal/synclog/repository"
	watchrepo "github.com/allan-cais/besunny-ai-sub007/internal/watch/repository"
	watchusecase "github.com/allan-cais/besunny-ai-sub007/internal/watch/usecase"
)

// interactionKinds are the activity-log kinds that count as the user being
// around for cadence purposes.
var interactionKinds = []string{"app_opened", "calendar_viewed", "documents_viewed"}

// sourcePrefix maps a sync-log source to its watch-registry prefix.
var sourcePrefix = map[string]string{
	"calendar": "calendar",
	"email":    "gmail",
	"drive":    "drive",
}

// SyncScheduler drives the periodic reconciliation work: per-user source
// syncs at an adaptive cadence, bot polling, transcript retries and watch
// renewal.
type SyncScheduler struct {
	userRepo     authrepo.UserRepository
	watchRepo    watchrepo.WatchRepository
	syncLogRepo  logrepo.SyncLogRepository
	activityRepo logrepo.ActivityLogRepository
	calendarUC   calusecase.SyncUsecase
	emailUC      emailusecase.DetectorUsecase
	driveUC      driveusecase.PollerUsecase
	botUC        meetingusecase.BotUsecase
	watchUC      watchusecase.WatchUsecase
	interval     time.Duration
	stopChan     chan struct{}
	tickCount    int
}

func NewSyncScheduler(
	userRepo authrepo.UserRepository,
	watchRepo watchrepo.WatchRepository,
	syncLogRepo logrepo.SyncLogRepository,
	activityRepo logrepo.ActivityLogRepository,
	calendarUC calusecase.SyncUsecase,
	emailUC emailusecase.DetectorUsecase,
	driveUC driveusecase.PollerUsecase,
	botUC meetingusecase.BotUsecase,
	watchUC watchusecase.WatchUsecase,
) *SyncScheduler {
	return &SyncScheduler{
		userRepo:     userRepo,
		watchRepo:    watchRepo,
		syncLogRepo:  syncLogRepo,
		activityRepo: activityRepo,
		calendarUC:   calendarUC,
		emailUC:      emailUC,
		driveUC:      driveUC,
		botUC:        botUC,
		watchUC:      watchUC,
		interval:     1 * time.Minute,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the scheduler loop.
func (s *SyncScheduler) Start() {
	log.Println("[SyncScheduler] Starting adaptive sync scheduler (tick: 1 minute)")

	go func() {
		s.tick()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stopChan:
				log.Println("[SyncScheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *SyncScheduler) Stop() {
	close(s.stopChan)
}

func (s *SyncScheduler) tick() {
	s.tickCount++
	ctx := context.Background()

	if err := s.watchUC.RenewExpiring(ctx); err != nil {
		log.Printf("[SyncScheduler] Watch renewal sweep failed: %v", err)
	}

	if err := s.botUC.PollActiveBots(ctx); err != nil {
		log.Printf("[SyncScheduler] Bot polling failed: %v", err)
	}
	// Transcript retries are cheap but remote-heavy; run them every fifth
	// tick.
	if s.tickCount%5 == 0 {
		if err := s.botUC.RetryTranscripts(ctx); err != nil {
			log.Printf("[SyncScheduler] Transcript retry sweep failed: %v", err)
		}
	}

	users, err := s.userRepo.ListAll()
	if err != nil {
		log.Printf("[SyncScheduler] Error listing users: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, user := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			s.syncUser(ctx, userID)
		}(user.ID)
	}
	wg.Wait()
}

// syncUser runs each due source for one user. A slow or failing source only
// delays this user's remaining sources, never other users.
func (s *SyncScheduler) syncUser(ctx context.Context, userID string) {
	if s.isDue(userID, "calendar") {
		if _, err := s.calendarUC.SyncUser(ctx, userID, logdomain.TriggerPoll); err != nil {
			log.Printf("[SyncScheduler] Calendar sync failed for user %s: %v", userID, err)
		}
	}
	if s.isDue(userID, "email") {
		if _, err := s.emailUC.PollMailbox(ctx, userID, logdomain.TriggerPoll); err != nil {
			log.Printf("[SyncScheduler] Mailbox poll failed for user %s: %v", userID, err)
		}
	}
	if s.isDue(userID, "drive") {
		if _, err := s.driveUC.PollUserFiles(ctx, userID, logdomain.TriggerPoll); err != nil {
			log.Printf("[SyncScheduler] Drive poll failed for user %s: %v", userID, err)
		}
	}
}

func (s *SyncScheduler) isDue(userID, source string) bool {
	last, err := s.syncLogRepo.LastByUserAndSource(userID, source)
	if err != nil {
		log.Printf("[SyncScheduler] Error reading sync log for user %s source %s: %v", userID, source, err)
		return false
	}
	if last == nil {
		return true
	}
	next := NextInterval(time.Now(), s.signals(userID, source))
	return time.Since(last.CreatedAt) >= next
}

func (s *SyncScheduler) signals(userID, source string) Signals {
	var sig Signals

	if watches, err := s.watchRepo.ListActiveByUserAndPrefix(userID, sourcePrefix[source]); err == nil {
		for _, w := range watches {
			if w.LastNotificationAt == nil {
				continue
			}
			if sig.LastNotificationAt == nil || w.LastNotificationAt.After(*sig.LastNotificationAt) {
				sig.LastNotificationAt = w.LastNotificationAt
			}
		}
	}

	if interaction, err := s.activityRepo.LastByUserAndKinds(userID, interactionKinds); err == nil && interaction != nil {
		sig.LastInteractionAt = &interaction.CreatedAt
	}

	// A rate-limited run anywhere in the backoff window holds the source at
	// the idle cadence, even when a later run succeeded.
	since := time.Now().Add(-rateLimitBackoff)
	if recent, err := s.syncLogRepo.RecentByUserAndSource(userID, source, since); err == nil {
		for _, entry := range recent {
			if entry.Error != "" && strings.Contains(entry.Error, "rate limited") {
				sig.LastRateLimitedAt = &entry.CreatedAt
				break
			}
		}
	}
	return sig
}
