package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	caldomain "github.com/allan-cais/besunny-ai-sub007/internal/calendar/domain"
	creddomain "github.com/allan-cais/besunny-ai-sub007/internal/credential/domain"
	meetingdomain "github.com/allan-cais/besunny-ai-sub007/internal/meeting/domain"
	"github.com/allan-cais/besunny-ai-sub007/internal/syncerrors"
	logdomain "github.com/allan-cais/besunny-ai-sub007/internal/synclog/domain"
	watchdomain "github.com/allan-cais/besunny-ai-sub007/internal/watch/domain"
	watchrepo "github.com/allan-cais/besunny-ai-sub007/internal/watch/repository"
	watchusecase "github.com/allan-cais/besunny-ai-sub007/internal/watch/usecase"
	"github.com/allan-cais/besunny-ai-sub007/pkg/googleauth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeCredUC struct {
	cred *creddomain.Credential
	err  error
}

func (f *fakeCredUC) GetValidCredential(ctx context.Context, userID string, service creddomain.Service) (*creddomain.Credential, error) {
	return f.cred, f.err
}

func (f *fakeCredUC) StoreCredential(userID string, service creddomain.Service, token *oauth2.Token, scope string) error {
	return nil
}

func (f *fakeCredUC) Disconnect(ctx context.Context, userID string, service creddomain.Service) error {
	return nil
}

func (f *fakeCredUC) TokenUpdateCallback(userID string, service creddomain.Service) googleauth.TokenUpdateFunc {
	return func(*oauth2.Token) error { return nil }
}

type fakeWatchUC struct {
	watch *watchdomain.Watch
	err   error
}

func (f *fakeWatchUC) RegisterSubscriber(sourcePrefix string, sub watchusecase.Subscriber) {}

func (f *fakeWatchUC) EnsureWatch(ctx context.Context, userID, resourceKey string) (*watchdomain.Watch, error) {
	return f.watch, f.err
}

func (f *fakeWatchUC) RenewExpiring(ctx context.Context) error { return nil }

func (f *fakeWatchUC) ResolveChannel(channelID string) (*watchdomain.Watch, error) { return nil, nil }

func (f *fakeWatchUC) RecordNotification(watchID string, at time.Time) error { return nil }

// cursorRecorder embeds the repository interface so only the method the sync
// engine touches needs an implementation.
type cursorRecorder struct {
	watchrepo.WatchRepository
	cursors map[string]*string
}

func (r *cursorRecorder) UpdateCursor(id string, cursor *string) error {
	r.cursors[id] = cursor
	return nil
}

type fakeMeetingRepo struct {
	meetings  map[string]*meetingdomain.Meeting
	updates   []map[string]interface{}
	deleted   []string
	cancelled map[string]bool // id -> failBot
}

func newFakeMeetingRepo() *fakeMeetingRepo {
	return &fakeMeetingRepo{
		meetings:  make(map[string]*meetingdomain.Meeting),
		cancelled: make(map[string]bool),
	}
}

func (r *fakeMeetingRepo) Create(m *meetingdomain.Meeting) error {
	if m.ID == "" {
		m.ID = "m-" + m.ExternalEventID
	}
	if m.BotStatus == "" {
		m.BotStatus = meetingdomain.BotStatusPending
	}
	r.meetings[m.ID] = m
	return nil
}

func (r *fakeMeetingRepo) FindByID(id string) (*meetingdomain.Meeting, error) {
	m, ok := r.meetings[id]
	if !ok {
		return nil, nil
	}
	return m, nil
}

func (r *fakeMeetingRepo) FindByUserAndEventID(userID, externalEventID string) (*meetingdomain.Meeting, error) {
	for _, m := range r.meetings {
		if m.UserID == userID && m.ExternalEventID == externalEventID {
			return m, nil
		}
	}
	return nil, nil
}

func (r *fakeMeetingRepo) FindDuplicates(userID, title string, startTime time.Time, excludeID string) ([]*meetingdomain.Meeting, error) {
	var out []*meetingdomain.Meeting
	for _, m := range r.meetings {
		if m.UserID == userID && m.Title == title && m.StartTime.Equal(startTime) && m.ID != excludeID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMeetingRepo) ListByUser(userID string, limit, offset int) ([]*meetingdomain.Meeting, int64, error) {
	return nil, 0, nil
}

func (r *fakeMeetingRepo) ListUpcomingWithBots(cutoff time.Time) ([]*meetingdomain.Meeting, error) {
	return nil, nil
}

func (r *fakeMeetingRepo) ListCompletedWithoutTranscript() ([]*meetingdomain.Meeting, error) {
	return nil, nil
}

func (r *fakeMeetingRepo) UpdateCalendarFields(id string, fields map[string]interface{}) error {
	r.updates = append(r.updates, fields)
	return nil
}

func (r *fakeMeetingRepo) AdvanceBotStatus(id string, prev, next meetingdomain.BotStatus) (bool, error) {
	return false, nil
}

func (r *fakeMeetingRepo) SetBotRef(id, botRef string, status meetingdomain.BotStatus) error {
	return nil
}

func (r *fakeMeetingRepo) CompleteWithTranscript(id string, prev meetingdomain.BotStatus, transcript string, meta meetingdomain.TranscriptMeta, retrievedAt time.Time) (bool, error) {
	return false, nil
}

func (r *fakeMeetingRepo) MarkCancelled(id string, failBot bool) error {
	r.cancelled[id] = failBot
	return nil
}

func (r *fakeMeetingRepo) Delete(id string) error {
	r.deleted = append(r.deleted, id)
	delete(r.meetings, id)
	return nil
}

type fakeSyncLogRepo struct {
	entries []*logdomain.SyncLog
}

func (r *fakeSyncLogRepo) Append(entry *logdomain.SyncLog) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeSyncLogRepo) LastByUserAndSource(userID, source string) (*logdomain.SyncLog, error) {
	return nil, nil
}

func (r *fakeSyncLogRepo) RecentByUserAndSource(userID, source string, since time.Time) ([]*logdomain.SyncLog, error) {
	return nil, nil
}

type fakeEvents struct {
	kinds []string
}

func (e *fakeEvents) Emit(userID, kind, detail string) {
	e.kinds = append(e.kinds, kind)
}

type fakeCalendarAPI struct {
	changes     *caldomain.ChangeSet
	changesErr  error
	ranged      *caldomain.ChangeSet
	changeCalls int
	rangeCalls  int
}

func (a *fakeCalendarAPI) ListChanges(ctx context.Context, accessToken, refreshToken, cursor string, onRefresh googleauth.TokenUpdateFunc) (*caldomain.ChangeSet, error) {
	a.changeCalls++
	if a.changesErr != nil {
		return nil, a.changesErr
	}
	return a.changes, nil
}

func (a *fakeCalendarAPI) ListRange(ctx context.Context, accessToken, refreshToken string, from, to time.Time, onRefresh googleauth.TokenUpdateFunc) (*caldomain.ChangeSet, error) {
	a.rangeCalls++
	return a.ranged, nil
}

func (a *fakeCalendarAPI) Watch(ctx context.Context, accessToken, refreshToken, channelID, address string, onRefresh googleauth.TokenUpdateFunc) (string, time.Time, error) {
	return "res-1", time.Now().Add(24 * time.Hour), nil
}

type syncFixture struct {
	uc          SyncUsecase
	api         *fakeCalendarAPI
	meetingRepo *fakeMeetingRepo
	watchRepo   *cursorRecorder
	syncLogs    *fakeSyncLogRepo
	events      *fakeEvents
}

func newSyncFixture(watch *watchdomain.Watch, api *fakeCalendarAPI) *syncFixture {
	f := &syncFixture{
		api:         api,
		meetingRepo: newFakeMeetingRepo(),
		watchRepo:   &cursorRecorder{cursors: make(map[string]*string)},
		syncLogs:    &fakeSyncLogRepo{},
		events:      &fakeEvents{},
	}
	f.uc = NewSyncUsecase(
		&fakeCredUC{cred: &creddomain.Credential{AccessToken: "at", RefreshToken: "rt"}},
		&fakeWatchUC{watch: watch},
		f.watchRepo,
		f.meetingRepo,
		f.syncLogs,
		api,
		f.events,
	)
	return f
}

func TestSyncUserCreatesMeetings(t *testing.T) {
	start := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	api := &fakeCalendarAPI{ranged: &caldomain.ChangeSet{
		Events: []*caldomain.RemoteEvent{
			{ID: "ev-1", Title: "Standup", HangoutLink: "https://meet.google.com/abc-defg-hij", StartTime: start, EndTime: start.Add(time.Hour)},
			{ID: "ev-2", Title: "Lunch", Location: "Cafe"},
		},
		NextCursor: "cur-1",
	}}
	watch := &watchdomain.Watch{ID: "w-1", UserID: "u1", ResourceKey: ResourceKeyPrimary, IsActive: true}
	f := newSyncFixture(watch, api)

	stats, err := f.uc.SyncUser(context.Background(), "u1", logdomain.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 1, api.rangeCalls, "no cursor means a full-range fetch")
	assert.Zero(t, api.changeCalls)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.Skipped, "events without a conferencing url are skipped")
	assert.Contains(t, f.events.kinds, "meeting_created")

	created, err := f.meetingRepo.FindByUserAndEventID("u1", "ev-1")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", created.JoinURL)

	require.NotNil(t, f.watchRepo.cursors["w-1"])
	assert.Equal(t, "cur-1", *f.watchRepo.cursors["w-1"])

	require.Len(t, f.syncLogs.entries, 1)
	entry := f.syncLogs.entries[0]
	assert.Equal(t, "calendar", entry.Source)
	assert.Equal(t, logdomain.TriggerManual, entry.Trigger)
	assert.Empty(t, entry.Error)
}

func TestSyncUserUpdatePreservesBotFields(t *testing.T) {
	cursor := "cur-0"
	watch := &watchdomain.Watch{ID: "w-1", UserID: "u1", ResourceKey: ResourceKeyPrimary, CursorToken: &cursor, IsActive: true}
	start := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	api := &fakeCalendarAPI{changes: &caldomain.ChangeSet{
		Events: []*caldomain.RemoteEvent{
			{ID: "ev-1", Title: "Standup (moved)", StartTime: start.Add(time.Hour), EndTime: start.Add(2 * time.Hour)},
		},
		NextCursor: "cur-1",
	}}
	f := newSyncFixture(watch, api)

	botRef := "bot-1"
	require.NoError(t, f.meetingRepo.Create(&meetingdomain.Meeting{
		UserID:          "u1",
		ExternalEventID: "ev-1",
		Title:           "Standup",
		JoinURL:         "https://meet.google.com/abc-defg-hij",
		BotRef:          &botRef,
		BotStatus:       meetingdomain.BotStatusTranscribing,
	}))

	stats, err := f.uc.SyncUser(context.Background(), "u1", logdomain.TriggerWebhook)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	require.Len(t, f.meetingRepo.updates, 1)
	fields := f.meetingRepo.updates[0]
	assert.Equal(t, "Standup (moved)", fields["title"])
	assert.NotContains(t, fields, "bot_status")
	assert.NotContains(t, fields, "bot_ref")
	assert.NotContains(t, fields, "transcript")
	assert.NotContains(t, fields, "join_url", "empty resolved url must not clear the stored one")
}

func TestSyncUserCursorInvalidFallsBack(t *testing.T) {
	cursor := "cur-stale"
	watch := &watchdomain.Watch{ID: "w-1", UserID: "u1", ResourceKey: ResourceKeyPrimary, CursorToken: &cursor, IsActive: true}
	api := &fakeCalendarAPI{
		changesErr: syncerrors.ErrCursorInvalid,
		ranged:     &caldomain.ChangeSet{NextCursor: "cur-fresh"},
	}
	f := newSyncFixture(watch, api)

	_, err := f.uc.SyncUser(context.Background(), "u1", logdomain.TriggerPoll)
	require.NoError(t, err)

	assert.Equal(t, 1, api.changeCalls)
	assert.Equal(t, 1, api.rangeCalls, "expired cursor must fall back to a full-range fetch")
	require.NotNil(t, f.watchRepo.cursors["w-1"])
	assert.Equal(t, "cur-fresh", *f.watchRepo.cursors["w-1"])
}

func TestSyncUserCursorInvalidDiscardsStaleCursor(t *testing.T) {
	cursor := "cur-stale"
	watch := &watchdomain.Watch{ID: "w-1", UserID: "u1", ResourceKey: ResourceKeyPrimary, CursorToken: &cursor, IsActive: true}
	// the full-range response carries no fresh cursor
	api := &fakeCalendarAPI{
		changesErr: syncerrors.ErrCursorInvalid,
		ranged:     &caldomain.ChangeSet{},
	}
	f := newSyncFixture(watch, api)

	_, err := f.uc.SyncUser(context.Background(), "u1", logdomain.TriggerPoll)
	require.NoError(t, err)

	stored, ok := f.watchRepo.cursors["w-1"]
	require.True(t, ok, "the expired cursor must be discarded")
	assert.Nil(t, stored)
}

func TestSyncUserCancellationDeletesUnimportant(t *testing.T) {
	start := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	api := &fakeCalendarAPI{ranged: &caldomain.ChangeSet{
		Events: []*caldomain.RemoteEvent{{ID: "ev-1", Cancelled: true}},
	}}
	f := newSyncFixture(nil, api)

	require.NoError(t, f.meetingRepo.Create(&meetingdomain.Meeting{
		ID: "m-1", UserID: "u1", ExternalEventID: "ev-1", Title: "Standup", StartTime: start,
	}))
	// duplicate rows sharing title and start time
	require.NoError(t, f.meetingRepo.Create(&meetingdomain.Meeting{
		ID: "m-dup", UserID: "u1", ExternalEventID: "ev-1-dup", Title: "Standup", StartTime: start,
	}))
	transcript := "notes"
	require.NoError(t, f.meetingRepo.Create(&meetingdomain.Meeting{
		ID: "m-keep", UserID: "u1", ExternalEventID: "ev-1-keep", Title: "Standup", StartTime: start,
		Transcript: &transcript,
	}))

	stats, err := f.uc.SyncUser(context.Background(), "u1", logdomain.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Deleted)
	assert.ElementsMatch(t, []string{"m-1", "m-dup"}, f.meetingRepo.deleted)
	_, kept := f.meetingRepo.meetings["m-keep"]
	assert.True(t, kept, "rows with a transcript survive duplicate suppression")
	assert.Empty(t, f.meetingRepo.cancelled)
}

func TestSyncUserCancellationMarksDeclined(t *testing.T) {
	api := &fakeCalendarAPI{ranged: &caldomain.ChangeSet{
		Events: []*caldomain.RemoteEvent{{ID: "ev-1", Cancelled: true}},
	}}
	f := newSyncFixture(nil, api)

	botRef := "bot-1"
	require.NoError(t, f.meetingRepo.Create(&meetingdomain.Meeting{
		ID: "m-1", UserID: "u1", ExternalEventID: "ev-1", Title: "Planning",
		BotRef: &botRef, BotStatus: meetingdomain.BotStatusJoined,
	}))

	stats, err := f.uc.SyncUser(context.Background(), "u1", logdomain.TriggerWebhook)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Updated)
	assert.Empty(t, f.meetingRepo.deleted)
	failBot, ok := f.meetingRepo.cancelled["m-1"]
	require.True(t, ok)
	assert.True(t, failBot, "a mid-flight bot is failed alongside the cancellation")
	assert.Contains(t, f.events.kinds, "meeting_cancelled")
}

func TestSyncUserUnknownCancellationSkipped(t *testing.T) {
	api := &fakeCalendarAPI{ranged: &caldomain.ChangeSet{
		Events: []*caldomain.RemoteEvent{{ID: "ev-unknown", Cancelled: true}},
	}}
	f := newSyncFixture(nil, api)

	stats, err := f.uc.SyncUser(context.Background(), "u1", logdomain.TriggerPoll)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, f.meetingRepo.deleted)
}

func TestSyncUserLogsFailure(t *testing.T) {
	cursor := "cur-0"
	watch := &watchdomain.Watch{ID: "w-1", UserID: "u1", ResourceKey: ResourceKeyPrimary, CursorToken: &cursor, IsActive: true}
	api := &fakeCalendarAPI{changesErr: errors.New("remote unavailable: 503")}
	f := newSyncFixture(watch, api)

	_, err := f.uc.SyncUser(context.Background(), "u1", logdomain.TriggerPoll)
	require.Error(t, err)

	require.Len(t, f.syncLogs.entries, 1)
	assert.Contains(t, f.syncLogs.entries[0].Error, "remote unavailable")
	assert.Nil(t, f.watchRepo.cursors["w-1"], "cursor must not advance on a failed run")
}
