package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	userrepo "github.com/allan-cais/besunny-ai-sub007/internal/auth/repository"
	creddomain "github.com/allan-cais/besunny-ai-sub007/internal/credential/domain"
	credusecase "github.com/allan-cais/besunny-ai-sub007/internal/credential/usecase"
	docdomain "github.com/allan-cais/besunny-ai-sub007/internal/document/domain"
	docrepo "github.com/allan-cais/besunny-ai-sub007/internal/document/repository"
	emaildomain "github.com/allan-cais/besunny-ai-sub007/internal/email/domain"
	"github.com/allan-cais/besunny-ai-sub007/internal/syncerrors"
	logdomain "github.com/allan-cais/besunny-ai-sub007/internal/synclog/domain"
	logrepo "github.com/allan-cais/besunny-ai-sub007/internal/synclog/repository"
	watchrepo "github.com/allan-cais/besunny-ai-sub007/internal/watch/repository"
	watchusecase "github.com/allan-cais/besunny-ai-sub007/internal/watch/usecase"
	"github.com/allan-cais/besunny-ai-sub007/pkg/classifier"
	"github.com/allan-cais/besunny-ai-sub007/pkg/googleauth"
)

// ResourceKeyInbox identifies the user's mailbox in the watch registry.
const ResourceKeyInbox = "gmail:inbox"

// GmailAPI is the remote mailbox surface the detector needs.
type GmailAPI interface {
	HistoryDelta(ctx context.Context, accessToken, refreshToken, cursor string, onRefresh googleauth.TokenUpdateFunc) (*emaildomain.HistoryDelta, error)
	GetMessage(ctx context.Context, accessToken, refreshToken, messageID string, onRefresh googleauth.TokenUpdateFunc) (*emaildomain.InboundMessage, error)
	Watch(ctx context.Context, accessToken, refreshToken, topicName string, onRefresh googleauth.TokenUpdateFunc) (string, time.Time, error)
}

// ClassifierNotifier forwards new documents to the external classification
// workflow.
type ClassifierNotifier interface {
	Notify(ctx context.Context, payload classifier.Payload) error
}

// EventService receives domain events for device push and activity logging.
type EventService interface {
	Emit(userID, kind, detail string)
}

// Stats are the per-run detection counts written to the sync log.
type Stats struct {
	Processed int
	Created   int
	Skipped   int
}

// DetectorUsecase watches mailboxes for messages addressed to per-user
// virtual aliases and turns them into documents.
type DetectorUsecase interface {
	PollMailbox(ctx context.Context, userID string, trigger logdomain.Trigger) (*Stats, error)
	// HandleNotification reacts to a mailbox push notification: records the
	// notification time and runs an immediate reconciliation.
	HandleNotification(ctx context.Context, emailAddress string) error
}

type detectorUsecase struct {
	userRepo    userrepo.UserRepository
	docRepo     docrepo.DocumentRepository
	watchRepo   watchrepo.WatchRepository
	watchUC     watchusecase.WatchUsecase
	credUC      credusecase.CredentialUsecase
	syncLogRepo logrepo.SyncLogRepository
	gmail       GmailAPI
	classifier  ClassifierNotifier
	events      EventService
	topicName   string
	skipWindow  time.Duration
	aliasRe     *regexp.Regexp
}

func NewDetectorUsecase(
	userRepo userrepo.UserRepository,
	docRepo docrepo.DocumentRepository,
	watchRepo watchrepo.WatchRepository,
	watchUC watchusecase.WatchUsecase,
	credUC credusecase.CredentialUsecase,
	syncLogRepo logrepo.SyncLogRepository,
	gmail GmailAPI,
	classifierClient ClassifierNotifier,
	events EventService,
	topicName, aliasPrefix, aliasDomain string,
	skipWindow time.Duration,
) DetectorUsecase {
	return &detectorUsecase{
		userRepo:    userRepo,
		docRepo:     docRepo,
		watchRepo:   watchRepo,
		watchUC:     watchUC,
		credUC:      credUC,
		syncLogRepo: syncLogRepo,
		gmail:       gmail,
		classifier:  classifierClient,
		events:      events,
		topicName:   topicName,
		skipWindow:  skipWindow,
		aliasRe:     aliasPattern(aliasPrefix, aliasDomain),
	}
}

func aliasPattern(prefix, domain string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(prefix) + `\+([a-z0-9._-]+)@` + regexp.QuoteMeta(domain) + `$`)
}

// PollMailbox runs one mailbox reconciliation. Scheduled polls are skipped
// without any remote call when a push notification arrived within the skip
// window; webhook- and manually-triggered runs always execute.
func (u *detectorUsecase) PollMailbox(ctx context.Context, userID string, trigger logdomain.Trigger) (stats *Stats, err error) {
	started := time.Now()
	stats = &Stats{}
	defer func() {
		entry := &logdomain.SyncLog{
			UserID:     userID,
			Source:     "email",
			Trigger:    trigger,
			Processed:  stats.Processed,
			Created:    stats.Created,
			Skipped:    stats.Skipped,
			DurationMs: time.Since(started).Milliseconds(),
		}
		if err != nil {
			entry.Error = err.Error()
		}
		if aerr := u.syncLogRepo.Append(entry); aerr != nil {
			log.Printf("[EmailDetector] Failed to append sync log for user %s: %v", userID, aerr)
		}
	}()

	watch, err := u.watchRepo.FindActiveByUserAndResource(userID, ResourceKeyInbox)
	if err != nil {
		return stats, err
	}
	if watch == nil {
		watch, err = u.watchUC.EnsureWatch(ctx, userID, ResourceKeyInbox)
		if err != nil {
			return stats, err
		}
	}

	if trigger == logdomain.TriggerPoll && watch.LastNotificationAt != nil && time.Since(*watch.LastNotificationAt) < u.skipWindow {
		stats.Skipped++
		return stats, nil
	}

	cred, err := u.credUC.GetValidCredential(ctx, userID, creddomain.ServiceGmail)
	if err != nil {
		return stats, err
	}
	onRefresh := u.credUC.TokenUpdateCallback(userID, creddomain.ServiceGmail)

	if watch.CursorToken == nil {
		return stats, u.rebaseline(ctx, cred.AccessToken, cred.RefreshToken, watch.ID, onRefresh)
	}

	delta, err := u.gmail.HistoryDelta(ctx, cred.AccessToken, cred.RefreshToken, *watch.CursorToken, onRefresh)
	if errors.Is(err, syncerrors.ErrCursorInvalid) {
		log.Printf("[EmailDetector] History cursor expired for user %s, re-establishing baseline", userID)
		return stats, u.rebaseline(ctx, cred.AccessToken, cred.RefreshToken, watch.ID, onRefresh)
	}
	if err != nil {
		return stats, err
	}

	for _, messageID := range delta.AddedMessageIDs {
		msg, merr := u.gmail.GetMessage(ctx, cred.AccessToken, cred.RefreshToken, messageID, onRefresh)
		if merr != nil {
			return stats, merr
		}
		if perr := u.processMessage(ctx, msg, stats); perr != nil {
			return stats, perr
		}
		stats.Processed++
	}

	if delta.NextCursor != "" {
		next := delta.NextCursor
		if uerr := u.watchRepo.UpdateCursor(watch.ID, &next); uerr != nil {
			return stats, uerr
		}
	}
	return stats, nil
}

// rebaseline re-registers the mailbox watch to obtain a fresh history cursor.
// Messages between cursor loss and the new baseline are not recoverable.
func (u *detectorUsecase) rebaseline(ctx context.Context, accessToken, refreshToken, watchID string, onRefresh googleauth.TokenUpdateFunc) error {
	cursor, _, err := u.gmail.Watch(ctx, accessToken, refreshToken, u.topicName, onRefresh)
	if err != nil {
		return err
	}
	return u.watchRepo.UpdateCursor(watchID, &cursor)
}

// processMessage scans To and Cc for virtual aliases. Each matched alias that
// resolves to a user yields a document for that user; everything else is
// counted as skipped.
func (u *detectorUsecase) processMessage(ctx context.Context, msg *emaildomain.InboundMessage, stats *Stats) error {
	matched := false
	for _, address := range append(append([]string{}, msg.To...), msg.Cc...) {
		username, ok := u.extractUsername(address)
		if !ok {
			continue
		}
		matched = true

		user, err := u.userRepo.FindByUsername(username)
		if err != nil {
			return err
		}
		if user == nil {
			log.Printf("[EmailDetector] Alias %q does not resolve to a user, message %s skipped", username, msg.ID)
			stats.Skipped++
			continue
		}

		doc := &docdomain.Document{
			UserID:    user.ID,
			Source:    docdomain.SourceEmail,
			SourceRef: msg.ID,
			Title:     msg.Subject,
			Content:   msg.Snippet,
		}
		created, err := u.docRepo.UpsertBySourceRef(doc)
		if err != nil {
			return err
		}
		if !created {
			continue
		}
		stats.Created++
		u.events.Emit(user.ID, "document_created", msg.Subject)
		if nerr := u.classifier.Notify(ctx, classifier.Payload{
			DocumentID: doc.ID,
			UserID:     user.ID,
			Action:     "created",
			Content:    msg.Snippet,
		}); nerr != nil {
			log.Printf("[EmailDetector] Classification notify failed for document %s: %v", doc.ID, nerr)
		}
	}
	if !matched {
		stats.Skipped++
	}
	return nil
}

// extractUsername pulls the alias tag out of one recipient address. Handles
// both bare addresses and the "Display Name <addr>" form.
func (u *detectorUsecase) extractUsername(address string) (string, bool) {
	spec := address
	if open := strings.LastIndexByte(address, '<'); open >= 0 {
		if close := strings.IndexByte(address[open:], '>'); close > 0 {
			spec = address[open+1 : open+close]
		}
	}
	spec = strings.TrimSpace(spec)
	match := u.aliasRe.FindStringSubmatch(spec)
	if match == nil {
		return "", false
	}
	return strings.ToLower(match[1]), true
}

func (u *detectorUsecase) HandleNotification(ctx context.Context, emailAddress string) error {
	user, err := u.userRepo.FindByEmail(emailAddress)
	if err != nil {
		return err
	}
	if user == nil {
		// Mailbox notifications can outlive the account; acknowledge and drop.
		log.Printf("[EmailDetector] Notification for unknown mailbox %s", emailAddress)
		return nil
	}

	watch, err := u.watchRepo.FindActiveByUserAndResource(user.ID, ResourceKeyInbox)
	if err != nil {
		return err
	}
	if watch != nil {
		if terr := u.watchRepo.Touch(watch.ID, time.Now()); terr != nil {
			log.Printf("[EmailDetector] Failed to record notification time for watch %s: %v", watch.ID, terr)
		}
	}

	if _, err := u.PollMailbox(ctx, user.ID, logdomain.TriggerWebhook); err != nil {
		return fmt.Errorf("mailbox reconciliation after notification: %w", err)
	}
	return nil
}
