package usecase

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	creddomain "github.com/allan-cais/besunny-ai-sub007/internal/credential/domain"
	credusecase "github.com/allan-cais/besunny-ai-sub007/internal/credential/usecase"
	docdomain "github.com/allan-cais/besunny-ai-sub007/internal/document/domain"
	docrepo "github.com/allan-cais/besunny-ai-sub007/internal/document/repository"
	drivedomain "github.com/allan-cais/besunny-ai-sub007/internal/drive/domain"
	"github.com/allan-cais/besunny-ai-sub007/internal/syncerrors"
	logdomain "github.com/allan-cais/besunny-ai-sub007/internal/synclog/domain"
	logrepo "github.com/allan-cais/besunny-ai-sub007/internal/synclog/repository"
	watchdomain "github.com/allan-cais/besunny-ai-sub007/internal/watch/domain"
	watchrepo "github.com/allan-cais/besunny-ai-sub007/internal/watch/repository"
	watchusecase "github.com/allan-cais/besunny-ai-sub007/internal/watch/usecase"
	"github.com/allan-cais/besunny-ai-sub007/pkg/classifier"
	"github.com/allan-cais/besunny-ai-sub007/pkg/googleauth"
)

// ResourcePrefix is the watch-registry prefix for drive file watches.
const ResourcePrefix = "drive"

// FileResourceKey builds the watch resource key for one file.
func FileResourceKey(fileID string) string {
	return ResourcePrefix + ":" + fileID
}

// DriveAPI is the remote file surface the poller needs.
type DriveAPI interface {
	GetFileMetadata(ctx context.Context, accessToken, refreshToken, fileID string, onRefresh googleauth.TokenUpdateFunc) (*drivedomain.FileMetadata, error)
	Watch(ctx context.Context, accessToken, refreshToken, fileID, channelID, address string, onRefresh googleauth.TokenUpdateFunc) (string, time.Time, error)
}

// ClassifierNotifier forwards document lifecycle changes to the external
// classification workflow.
type ClassifierNotifier interface {
	Notify(ctx context.Context, payload classifier.Payload) error
}

type EventService interface {
	Emit(userID, kind, detail string)
}

// Stats are the per-run poll counts written to the sync log.
type Stats struct {
	Processed int
	Created   int
	Updated   int
	Deleted   int
	Skipped   int
}

// PollerUsecase tracks individually watched drive files and mirrors their
// lifecycle onto documents.
type PollerUsecase interface {
	// WatchFile starts tracking a file: validates access, creates the
	// document and registers the push watch.
	WatchFile(ctx context.Context, userID, fileID string) (*docdomain.Document, error)
	PollUserFiles(ctx context.Context, userID string, trigger logdomain.Trigger) (*Stats, error)
	// PollWatch reconciles a single watched file, used by the webhook path.
	PollWatch(ctx context.Context, watch *watchdomain.Watch) error
}

type pollerUsecase struct {
	credUC      credusecase.CredentialUsecase
	watchUC     watchusecase.WatchUsecase
	watchRepo   watchrepo.WatchRepository
	docRepo     docrepo.DocumentRepository
	syncLogRepo logrepo.SyncLogRepository
	api         DriveAPI
	classifier  ClassifierNotifier
	events      EventService
}

func NewPollerUsecase(
	credUC credusecase.CredentialUsecase,
	watchUC watchusecase.WatchUsecase,
	watchRepo watchrepo.WatchRepository,
	docRepo docrepo.DocumentRepository,
	syncLogRepo logrepo.SyncLogRepository,
	api DriveAPI,
	classifierClient ClassifierNotifier,
	events EventService,
) PollerUsecase {
	return &pollerUsecase{
		credUC:      credUC,
		watchUC:     watchUC,
		watchRepo:   watchRepo,
		docRepo:     docRepo,
		syncLogRepo: syncLogRepo,
		api:         api,
		classifier:  classifierClient,
		events:      events,
	}
}

func (u *pollerUsecase) WatchFile(ctx context.Context, userID, fileID string) (*docdomain.Document, error) {
	cred, err := u.credUC.GetValidCredential(ctx, userID, creddomain.ServiceDrive)
	if err != nil {
		return nil, err
	}
	onRefresh := u.credUC.TokenUpdateCallback(userID, creddomain.ServiceDrive)

	meta, err := u.api.GetFileMetadata(ctx, cred.AccessToken, cred.RefreshToken, fileID, onRefresh)
	if err != nil {
		return nil, err
	}

	modifiedAt := meta.ModifiedTime
	doc := &docdomain.Document{
		UserID:       userID,
		Source:       docdomain.SourceDrive,
		SourceRef:    fileID,
		Title:        meta.Name,
		LastSyncedAt: &modifiedAt,
	}
	created, err := u.docRepo.UpsertBySourceRef(doc)
	if err != nil {
		return nil, err
	}

	if _, err := u.watchUC.EnsureWatch(ctx, userID, FileResourceKey(fileID)); err != nil {
		// The file is still polled on schedule; push is best effort.
		log.Printf("[DrivePoller] Push watch setup failed for file %s: %v", fileID, err)
	}

	if created {
		u.events.Emit(userID, "document_created", meta.Name)
		if nerr := u.classifier.Notify(ctx, classifier.Payload{
			DocumentID: doc.ID,
			UserID:     userID,
			Action:     "created",
		}); nerr != nil {
			log.Printf("[DrivePoller] Classification notify failed for document %s: %v", doc.ID, nerr)
		}
	}
	return doc, nil
}

// PollUserFiles reconciles every watched file of one user. Per-file failures
// do not abort the run; the first error is recorded on the audit row after
// all files were attempted.
func (u *pollerUsecase) PollUserFiles(ctx context.Context, userID string, trigger logdomain.Trigger) (stats *Stats, err error) {
	started := time.Now()
	stats = &Stats{}
	defer func() {
		entry := &logdomain.SyncLog{
			UserID:     userID,
			Source:     "drive",
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
			log.Printf("[DrivePoller] Failed to append sync log for user %s: %v", userID, aerr)
		}
	}()

	watches, err := u.watchRepo.ListActiveByUserAndPrefix(userID, ResourcePrefix)
	if err != nil {
		return stats, err
	}
	if len(watches) == 0 {
		return stats, nil
	}

	cred, err := u.credUC.GetValidCredential(ctx, userID, creddomain.ServiceDrive)
	if err != nil {
		return stats, err
	}
	onRefresh := u.credUC.TokenUpdateCallback(userID, creddomain.ServiceDrive)

	var firstErr error
	for _, watch := range watches {
		if perr := u.pollOne(ctx, cred.AccessToken, cred.RefreshToken, onRefresh, watch, stats); perr != nil {
			log.Printf("[DrivePoller] Poll failed for %s: %v", watch.ResourceKey, perr)
			if firstErr == nil {
				firstErr = perr
			}
			continue
		}
		stats.Processed++
	}
	return stats, firstErr
}

func (u *pollerUsecase) PollWatch(ctx context.Context, watch *watchdomain.Watch) error {
	cred, err := u.credUC.GetValidCredential(ctx, watch.UserID, creddomain.ServiceDrive)
	if err != nil {
		return err
	}
	onRefresh := u.credUC.TokenUpdateCallback(watch.UserID, creddomain.ServiceDrive)
	return u.pollOne(ctx, cred.AccessToken, cred.RefreshToken, onRefresh, watch, &Stats{})
}

func (u *pollerUsecase) pollOne(ctx context.Context, accessToken, refreshToken string, onRefresh googleauth.TokenUpdateFunc, watch *watchdomain.Watch, stats *Stats) error {
	fileID := strings.TrimPrefix(watch.ResourceKey, ResourcePrefix+":")

	meta, err := u.api.GetFileMetadata(ctx, accessToken, refreshToken, fileID, onRefresh)
	if errors.Is(err, syncerrors.ErrRemoteNotFound) {
		return u.handleDeletion(ctx, watch, fileID, stats)
	}
	if err != nil {
		return err
	}
	if meta.Trashed {
		return u.handleDeletion(ctx, watch, fileID, stats)
	}

	doc, err := u.docRepo.FindBySourceRef(watch.UserID, docdomain.SourceDrive, fileID)
	if err != nil {
		return err
	}
	if doc == nil {
		// The document was removed out of band; recreate it from metadata.
		modifiedAt := meta.ModifiedTime
		doc = &docdomain.Document{
			UserID:       watch.UserID,
			Source:       docdomain.SourceDrive,
			SourceRef:    fileID,
			Title:        meta.Name,
			LastSyncedAt: &modifiedAt,
		}
		if _, err := u.docRepo.UpsertBySourceRef(doc); err != nil {
			return err
		}
		stats.Created++
		return nil
	}

	// Compare against the remote modification time recorded on the previous
	// reconciliation, not UpdatedAt; classification writes touch UpdatedAt.
	if doc.LastSyncedAt != nil && !meta.ModifiedTime.After(*doc.LastSyncedAt) {
		return nil
	}

	if err := u.docRepo.UpdateStatus(doc.ID, docdomain.ClassificationUpdated); err != nil {
		return err
	}
	if err := u.docRepo.MarkSynced(doc.ID, meta.ModifiedTime); err != nil {
		return err
	}
	stats.Updated++
	u.events.Emit(watch.UserID, "document_updated", meta.Name)
	if nerr := u.classifier.Notify(ctx, classifier.Payload{
		DocumentID: doc.ID,
		UserID:     watch.UserID,
		Action:     "updated",
	}); nerr != nil {
		log.Printf("[DrivePoller] Classification notify failed for document %s: %v", doc.ID, nerr)
	}
	return nil
}

// handleDeletion deactivates the watch and marks the document deleted. The
// document row survives for audit; only its status changes.
func (u *pollerUsecase) handleDeletion(ctx context.Context, watch *watchdomain.Watch, fileID string, stats *Stats) error {
	if err := u.watchRepo.Deactivate(watch.ID); err != nil {
		return err
	}

	doc, err := u.docRepo.FindBySourceRef(watch.UserID, docdomain.SourceDrive, fileID)
	if err != nil {
		return err
	}
	if doc == nil || doc.Status == docdomain.ClassificationDeleted {
		return nil
	}

	if err := u.docRepo.UpdateStatus(doc.ID, docdomain.ClassificationDeleted); err != nil {
		return err
	}
	stats.Deleted++
	u.events.Emit(watch.UserID, "document_deleted", doc.Title)
	if nerr := u.classifier.Notify(ctx, classifier.Payload{
		DocumentID: doc.ID,
		UserID:     watch.UserID,
		Action:     "deleted",
	}); nerr != nil {
		log.Printf("[DrivePoller] Classification notify failed for document %s: %v", doc.ID, nerr)
	}
	return nil
}
