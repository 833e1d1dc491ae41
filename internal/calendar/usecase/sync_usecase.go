package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	caldomain "github.com/allan-cais/besunny-ai-sub007/internal/calendar/domain"
	creddomain "github.com/allan-cais/besunny-ai-sub007/internal/credential/domain"
	credusecase "github.com/allan-cais/besunny-ai-sub007/internal/credential/usecase"
	meetingdomain "github.com/allan-cais/besunny-ai-sub007/internal/meeting/domain"
	meetingrepo "github.com/allan-cais/besunny-ai-sub007/internal/meeting/repository"
	"github.com/allan-cais/besunny-ai-sub007/internal/syncerrors"
	logdomain "github.com/allan-cais/besunny-ai-sub007/internal/synclog/domain"
	logrepo "github.com/allan-cais/besunny-ai-sub007/internal/synclog/repository"
	watchdomain "github.com/allan-cais/besunny-ai-sub007/internal/watch/domain"
	watchrepo "github.com/allan-cais/besunny-ai-sub007/internal/watch/repository"
	watchusecase "github.com/allan-cais/besunny-ai-sub007/internal/watch/usecase"
	"github.com/allan-cais/besunny-ai-sub007/pkg/googleauth"
)

const (
	// ResourceKeyPrimary identifies the user's primary calendar in the watch
	// registry; the sync cursor lives on this row.
	ResourceKeyPrimary = "calendar:primary"

	fullRangePast   = 7 * 24 * time.Hour
	fullRangeFuture = 60 * 24 * time.Hour
)

// CalendarAPI is the remote calendar surface the sync engine needs.
type CalendarAPI interface {
	ListChanges(ctx context.Context, accessToken, refreshToken, cursor string, onRefresh googleauth.TokenUpdateFunc) (*caldomain.ChangeSet, error)
	ListRange(ctx context.Context, accessToken, refreshToken string, from, to time.Time, onRefresh googleauth.TokenUpdateFunc) (*caldomain.ChangeSet, error)
	Watch(ctx context.Context, accessToken, refreshToken, channelID, address string, onRefresh googleauth.TokenUpdateFunc) (string, time.Time, error)
}

// EventService receives domain events for device push and activity logging.
type EventService interface {
	Emit(userID, kind, detail string)
}

// SyncStats are the per-run reconciliation counts written to the sync log.
type SyncStats struct {
	Processed int
	Created   int
	Updated   int
	Deleted   int
	Skipped   int
}

// SyncUsecase reconciles the local meeting store against the remote calendar.
type SyncUsecase interface {
	SyncUser(ctx context.Context, userID string, trigger logdomain.Trigger) (*SyncStats, error)
}

type syncUsecase struct {
	credUC      credusecase.CredentialUsecase
	watchUC     watchusecase.WatchUsecase
	watchRepo   watchrepo.WatchRepository
	meetingRepo meetingrepo.MeetingRepository
	syncLogRepo logrepo.SyncLogRepository
	api         CalendarAPI
	events      EventService
}

func NewSyncUsecase(
	credUC credusecase.CredentialUsecase,
	watchUC watchusecase.WatchUsecase,
	watchRepo watchrepo.WatchRepository,
	meetingRepo meetingrepo.MeetingRepository,
	syncLogRepo logrepo.SyncLogRepository,
	api CalendarAPI,
	events EventService,
) SyncUsecase {
	return &syncUsecase{
		credUC:      credUC,
		watchUC:     watchUC,
		watchRepo:   watchRepo,
		meetingRepo: meetingRepo,
		syncLogRepo: syncLogRepo,
		api:         api,
		events:      events,
	}
}

// SyncUser runs one reconciliation pass. The audit row is written even when
// the run fails partway through, carrying the counts accumulated so far.
func (u *syncUsecase) SyncUser(ctx context.Context, userID string, trigger logdomain.Trigger) (stats *SyncStats, err error) {
	started := time.Now()
	stats = &SyncStats{}
	defer func() {
		entry := &logdomain.SyncLog{
			UserID:     userID,
			Source:     "calendar",
			Trigger:    trigger,
			Processed:  stats.Processed,
			Created:    stats.Created,
			Updated:    stats.Updated,
			Deleted:    stats.Deleted,
			Skipped:    stats.Skipped,
			DurationMs: time.Since(started).Milliseconds(),
		}
		if err != nil {
			entry.Error = err.Error()
		}
		if aerr := u.syncLogRepo.Append(entry); aerr != nil {
			log.Printf("[CalendarSync] Failed to append sync log for user %s: %v", userID, aerr)
		}
	}()

	cred, err := u.credUC.GetValidCredential(ctx, userID, creddomain.ServiceCalendar)
	if err != nil {
		return stats, err
	}
	onRefresh := u.credUC.TokenUpdateCallback(userID, creddomain.ServiceCalendar)

	watch := u.ensureWatch(ctx, userID)

	var set *caldomain.ChangeSet
	cursor := ""
	if watch != nil && watch.CursorToken != nil {
		cursor = *watch.CursorToken
	}

	if cursor != "" {
		set, err = u.api.ListChanges(ctx, cred.AccessToken, cred.RefreshToken, cursor, onRefresh)
		if errors.Is(err, syncerrors.ErrCursorInvalid) {
			// Discard the expired cursor right away so a failed full-range run
			// does not replay the delta/410 round trip forever.
			log.Printf("[CalendarSync] Cursor expired for user %s, falling back to full-range fetch", userID)
			if uerr := u.watchRepo.UpdateCursor(watch.ID, nil); uerr != nil {
				return stats, uerr
			}
			set, err = nil, nil
		}
		if err != nil {
			return stats, err
		}
	}
	if set == nil {
		now := time.Now()
		set, err = u.api.ListRange(ctx, cred.AccessToken, cred.RefreshToken, now.Add(-fullRangePast), now.Add(fullRangeFuture), onRefresh)
		if err != nil {
			return stats, err
		}
	}

	for _, event := range set.Events {
		if perr := u.processEvent(userID, event, stats); perr != nil {
			return stats, perr
		}
		stats.Processed++
	}

	// Last-successful-run-wins: the cursor advances only after every event in
	// the batch has been applied.
	if watch != nil && set.NextCursor != "" {
		next := set.NextCursor
		if uerr := u.watchRepo.UpdateCursor(watch.ID, &next); uerr != nil {
			return stats, uerr
		}
	}
	return stats, nil
}

// ensureWatch sets up the push channel and cursor row. Sync still works
// without it (full-range every run), so failures are logged, not fatal.
func (u *syncUsecase) ensureWatch(ctx context.Context, userID string) *watchdomain.Watch {
	watch, err := u.watchUC.EnsureWatch(ctx, userID, ResourceKeyPrimary)
	if err != nil {
		log.Printf("[CalendarSync] Watch setup failed for user %s: %v", userID, err)
		return nil
	}
	return watch
}

func (u *syncUsecase) processEvent(userID string, event *caldomain.RemoteEvent, stats *SyncStats) error {
	existing, err := u.meetingRepo.FindByUserAndEventID(userID, event.ID)
	if err != nil {
		return err
	}

	if event.Cancelled {
		return u.handleCancellation(userID, existing, stats)
	}

	url := ResolveMeetingURL(event)
	if existing == nil {
		if url == "" {
			stats.Skipped++
			return nil
		}
		meeting := &meetingdomain.Meeting{
			UserID:           userID,
			ExternalEventID:  event.ID,
			Title:            event.Title,
			Description:      event.Description,
			StartTime:        event.StartTime,
			EndTime:          event.EndTime,
			JoinURL:          url,
			AttendanceStatus: attendanceFrom(event.ResponseStatus),
		}
		if err := u.meetingRepo.Create(meeting); err != nil {
			return err
		}
		stats.Created++
		u.events.Emit(userID, "meeting_created", event.Title)
		return nil
	}

	// Calendar-owned columns only; bot state and transcript stay untouched.
	fields := map[string]interface{}{
		"title":             event.Title,
		"description":       event.Description,
		"start_time":        event.StartTime,
		"end_time":          event.EndTime,
		"attendance_status": attendanceFrom(event.ResponseStatus),
	}
	if url != "" {
		fields["join_url"] = url
	}
	if err := u.meetingRepo.UpdateCalendarFields(existing.ID, fields); err != nil {
		return err
	}
	stats.Updated++
	return nil
}

// handleCancellation first suppresses duplicate rows sharing the survivor's
// title and start time, then applies the delete-vs-mark rule to the meeting
// itself: rows without bot activity, transcript or project assignment are
// hard-deleted, anything else is marked declined.
func (u *syncUsecase) handleCancellation(userID string, existing *meetingdomain.Meeting, stats *SyncStats) error {
	if existing == nil {
		stats.Skipped++
		return nil
	}

	dups, err := u.meetingRepo.FindDuplicates(userID, existing.Title, existing.StartTime, existing.ID)
	if err != nil {
		return err
	}
	for _, dup := range dups {
		if dup.HasImportantData() {
			continue
		}
		if err := u.meetingRepo.Delete(dup.ID); err != nil {
			return err
		}
		stats.Deleted++
	}

	if !existing.HasImportantData() {
		if err := u.meetingRepo.Delete(existing.ID); err != nil {
			return err
		}
		stats.Deleted++
		return nil
	}

	failBot := existing.BotRef != nil && !existing.BotStatus.Terminal()
	if err := u.meetingRepo.MarkCancelled(existing.ID, failBot); err != nil {
		return err
	}
	stats.Updated++
	u.events.Emit(userID, "meeting_cancelled", existing.Title)
	return nil
}

func attendanceFrom(responseStatus string) meetingdomain.AttendanceStatus {
	switch responseStatus {
	case "declined":
		return meetingdomain.AttendanceDeclined
	case "tentative":
		return meetingdomain.AttendanceTentative
	default:
		return meetingdomain.AttendanceAccepted
	}
}
