package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	meetingdomain "github.com/allan-cais/besunny-ai-sub007/internal/meeting/domain"
	"github.com/allan-cais/besunny-ai-sub007/internal/syncerrors"
	"github.com/allan-cais/besunny-ai-sub007/pkg/attendee"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMeetingRepo struct {
	meetings map[string]*meetingdomain.Meeting
}

func newFakeMeetingRepo() *fakeMeetingRepo {
	return &fakeMeetingRepo{meetings: make(map[string]*meetingdomain.Meeting)}
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
	copied := *m
	return &copied, nil
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
	return nil, nil
}

func (r *fakeMeetingRepo) ListByUser(userID string, limit, offset int) ([]*meetingdomain.Meeting, int64, error) {
	return nil, 0, nil
}

func (r *fakeMeetingRepo) ListUpcomingWithBots(cutoff time.Time) ([]*meetingdomain.Meeting, error) {
	var out []*meetingdomain.Meeting
	for _, m := range r.meetings {
		if m.BotRef != nil && !m.BotStatus.Terminal() && m.EndTime.After(cutoff) {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeMeetingRepo) ListCompletedWithoutTranscript() ([]*meetingdomain.Meeting, error) {
	var out []*meetingdomain.Meeting
	for _, m := range r.meetings {
		if m.BotStatus == meetingdomain.BotStatusCompleted && m.Transcript == nil {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeMeetingRepo) UpdateCalendarFields(id string, fields map[string]interface{}) error {
	return nil
}

func (r *fakeMeetingRepo) AdvanceBotStatus(id string, prev, next meetingdomain.BotStatus) (bool, error) {
	if !next.Advances(prev) {
		return false, nil
	}
	m, ok := r.meetings[id]
	if !ok || m.BotStatus != prev {
		return false, nil
	}
	m.BotStatus = next
	return true, nil
}

func (r *fakeMeetingRepo) SetBotRef(id, botRef string, status meetingdomain.BotStatus) error {
	if m, ok := r.meetings[id]; ok {
		ref := botRef
		m.BotRef = &ref
		m.BotStatus = status
	}
	return nil
}

func (r *fakeMeetingRepo) CompleteWithTranscript(id string, prev meetingdomain.BotStatus, transcript string, meta meetingdomain.TranscriptMeta, retrievedAt time.Time) (bool, error) {
	m, ok := r.meetings[id]
	if !ok || m.BotStatus != prev || m.Transcript != nil {
		return false, nil
	}
	m.BotStatus = meetingdomain.BotStatusCompleted
	text := transcript
	m.Transcript = &text
	m.TranscriptMeta = meta
	at := retrievedAt
	m.TranscriptRetrievedAt = &at
	return true, nil
}

func (r *fakeMeetingRepo) MarkCancelled(id string, failBot bool) error { return nil }

func (r *fakeMeetingRepo) Delete(id string) error {
	delete(r.meetings, id)
	return nil
}

type fakeBotRepo struct {
	bots []*meetingdomain.Bot
}

func (r *fakeBotRepo) Create(bot *meetingdomain.Bot) error {
	if bot.ID == "" {
		bot.ID = "bot-row-1"
	}
	r.bots = append(r.bots, bot)
	return nil
}

func (r *fakeBotRepo) FindByMeetingID(meetingID string) (*meetingdomain.Bot, error) {
	for _, b := range r.bots {
		if b.MeetingID == meetingID {
			return b, nil
		}
	}
	return nil, nil
}

func (r *fakeBotRepo) Deactivate(id string) error {
	for _, b := range r.bots {
		if b.ID == id {
			b.IsActive = false
		}
	}
	return nil
}

type fakeProvider struct {
	createRef       string
	createErr       error
	createCalls     int
	lastCreate      attendee.CreateBotRequest
	state           string
	stateErr        error
	segments        []attendee.TranscriptSegment
	transcriptErr   error
	transcriptCalls int
	chatMessages    []string
}

func (p *fakeProvider) CreateBot(ctx context.Context, req attendee.CreateBotRequest) (string, error) {
	p.createCalls++
	p.lastCreate = req
	if p.createErr != nil {
		return "", p.createErr
	}
	return p.createRef, nil
}

func (p *fakeProvider) GetBotStatus(ctx context.Context, providerRef string) (string, error) {
	if p.stateErr != nil {
		return "", p.stateErr
	}
	return p.state, nil
}

func (p *fakeProvider) GetTranscript(ctx context.Context, providerRef string) ([]attendee.TranscriptSegment, error) {
	p.transcriptCalls++
	if p.transcriptErr != nil {
		return nil, p.transcriptErr
	}
	return p.segments, nil
}

func (p *fakeProvider) SendChatMessage(ctx context.Context, providerRef, text string) error {
	p.chatMessages = append(p.chatMessages, text)
	return nil
}

func (p *fakeProvider) PauseRecording(ctx context.Context, providerRef string) error { return nil }

func (p *fakeProvider) ResumeRecording(ctx context.Context, providerRef string) error { return nil }

func (p *fakeProvider) ListParticipantEvents(ctx context.Context, providerRef string) ([]attendee.ParticipantEvent, error) {
	return nil, nil
}

type botEvents struct {
	kinds []string
}

func (e *botEvents) Emit(userID, kind, detail string) {
	e.kinds = append(e.kinds, kind)
}

func seedMeeting(repo *fakeMeetingRepo, m *meetingdomain.Meeting) *meetingdomain.Meeting {
	if m.ID == "" {
		m.ID = "m-1"
	}
	if m.UserID == "" {
		m.UserID = "u1"
	}
	if m.BotStatus == "" {
		m.BotStatus = meetingdomain.BotStatusPending
	}
	repo.meetings[m.ID] = m
	return m
}

func TestSendBotDeploys(t *testing.T) {
	repo := newFakeMeetingRepo()
	botRepo := &fakeBotRepo{}
	provider := &fakeProvider{createRef: "bot-1"}
	events := &botEvents{}
	uc := NewBotUsecase(repo, botRepo, provider, events)

	seedMeeting(repo, &meetingdomain.Meeting{
		Title:     "Planning",
		JoinURL:   "https://meet.google.com/abc-defg-hij",
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
	})

	meeting, err := uc.SendBot(context.Background(), "u1", "m-1", meetingdomain.BotConfig{})
	require.NoError(t, err)

	require.NotNil(t, meeting.BotRef)
	assert.Equal(t, "bot-1", *meeting.BotRef)
	assert.Equal(t, meetingdomain.BotStatusScheduled, meeting.BotStatus)
	assert.Equal(t, "Sunny AI Notetaker", provider.lastCreate.BotName)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", provider.lastCreate.MeetingURL)
	require.Len(t, botRepo.bots, 1)
	assert.Equal(t, "bot-1", botRepo.bots[0].ProviderRef)
	assert.Contains(t, events.kinds, "bot_scheduled")
}

func TestSendBotIdempotent(t *testing.T) {
	repo := newFakeMeetingRepo()
	provider := &fakeProvider{createRef: "bot-2"}
	uc := NewBotUsecase(repo, &fakeBotRepo{}, provider, &botEvents{})

	ref := "bot-1"
	seedMeeting(repo, &meetingdomain.Meeting{
		JoinURL:   "https://meet.google.com/abc-defg-hij",
		BotRef:    &ref,
		BotStatus: meetingdomain.BotStatusScheduled,
	})

	meeting, err := uc.SendBot(context.Background(), "u1", "m-1", meetingdomain.BotConfig{})
	require.NoError(t, err)
	assert.Equal(t, "bot-1", *meeting.BotRef)
	assert.Zero(t, provider.createCalls, "existing deployment must be returned, not recreated")
}

func TestSendBotAdoptsOrphanedDeployment(t *testing.T) {
	repo := newFakeMeetingRepo()
	botRepo := &fakeBotRepo{bots: []*meetingdomain.Bot{{
		ID: "bot-row-old", UserID: "u1", MeetingID: "m-1",
		ProviderRef: "bot-old", IsActive: true,
	}}}
	provider := &fakeProvider{createRef: "bot-new"}
	uc := NewBotUsecase(repo, botRepo, provider, &botEvents{})

	// bot row exists but the meeting never got its bot_ref
	seedMeeting(repo, &meetingdomain.Meeting{
		JoinURL:   "https://meet.google.com/abc-defg-hij",
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
	})

	meeting, err := uc.SendBot(context.Background(), "u1", "m-1", meetingdomain.BotConfig{})
	require.NoError(t, err)

	require.NotNil(t, meeting.BotRef)
	assert.Equal(t, "bot-old", *meeting.BotRef, "the orphaned provider bot is adopted")
	assert.Equal(t, meetingdomain.BotStatusScheduled, meeting.BotStatus)
	assert.Zero(t, provider.createCalls, "no second provider bot is created")
	assert.Len(t, botRepo.bots, 1)
}

func TestSendBotRequiresURL(t *testing.T) {
	repo := newFakeMeetingRepo()
	uc := NewBotUsecase(repo, &fakeBotRepo{}, &fakeProvider{}, &botEvents{})

	seedMeeting(repo, &meetingdomain.Meeting{Title: "Lunch"})

	_, err := uc.SendBot(context.Background(), "u1", "m-1", meetingdomain.BotConfig{})
	assert.Error(t, err)
}

func TestSendBotOwnership(t *testing.T) {
	repo := newFakeMeetingRepo()
	provider := &fakeProvider{}
	uc := NewBotUsecase(repo, &fakeBotRepo{}, provider, &botEvents{})

	seedMeeting(repo, &meetingdomain.Meeting{JoinURL: "https://meet.google.com/abc-defg-hij"})

	_, err := uc.SendBot(context.Background(), "u2", "m-1", meetingdomain.BotConfig{})
	assert.Error(t, err)
	assert.Zero(t, provider.createCalls)
}

func TestPollMeetingAdvances(t *testing.T) {
	repo := newFakeMeetingRepo()
	provider := &fakeProvider{state: "joined_recording"}
	events := &botEvents{}
	uc := NewBotUsecase(repo, &fakeBotRepo{}, provider, events)

	ref := "bot-1"
	m := seedMeeting(repo, &meetingdomain.Meeting{BotRef: &ref, BotStatus: meetingdomain.BotStatusJoined})

	require.NoError(t, uc.PollMeeting(context.Background(), m))

	assert.Equal(t, meetingdomain.BotStatusTranscribing, repo.meetings["m-1"].BotStatus)
	assert.Contains(t, events.kinds, "bot_status_changed")
}

func TestPollMeetingNeverRegresses(t *testing.T) {
	repo := newFakeMeetingRepo()
	provider := &fakeProvider{state: "joined"}
	events := &botEvents{}
	uc := NewBotUsecase(repo, &fakeBotRepo{}, provider, events)

	ref := "bot-1"
	m := seedMeeting(repo, &meetingdomain.Meeting{BotRef: &ref, BotStatus: meetingdomain.BotStatusTranscribing})

	require.NoError(t, uc.PollMeeting(context.Background(), m))

	assert.Equal(t, meetingdomain.BotStatusTranscribing, repo.meetings["m-1"].BotStatus)
	assert.Empty(t, events.kinds, "a stale observation must not emit anything")
}

func TestPollMeetingUnknownStateFails(t *testing.T) {
	repo := newFakeMeetingRepo()
	provider := &fakeProvider{state: "quantum_flux"}
	uc := NewBotUsecase(repo, &fakeBotRepo{}, provider, &botEvents{})

	ref := "bot-1"
	m := seedMeeting(repo, &meetingdomain.Meeting{BotRef: &ref, BotStatus: meetingdomain.BotStatusJoined})

	require.NoError(t, uc.PollMeeting(context.Background(), m))
	assert.Equal(t, meetingdomain.BotStatusFailed, repo.meetings["m-1"].BotStatus)
}

func TestPollMeetingBotGone(t *testing.T) {
	repo := newFakeMeetingRepo()
	provider := &fakeProvider{stateErr: syncerrors.ErrRemoteNotFound}
	uc := NewBotUsecase(repo, &fakeBotRepo{}, provider, &botEvents{})

	ref := "bot-1"
	m := seedMeeting(repo, &meetingdomain.Meeting{BotRef: &ref, BotStatus: meetingdomain.BotStatusScheduled})

	require.NoError(t, uc.PollMeeting(context.Background(), m))
	assert.Equal(t, meetingdomain.BotStatusFailed, repo.meetings["m-1"].BotStatus)
}

func TestPollMeetingRetrievesTranscriptOnce(t *testing.T) {
	repo := newFakeMeetingRepo()
	provider := &fakeProvider{
		state: "completed",
		segments: []attendee.TranscriptSegment{
			{Speaker: "Alice", Text: "hello everyone", StartSeconds: 0, DurationSecs: 2},
			{Speaker: "Bob", Text: "hi", StartSeconds: 2, DurationSecs: 1},
		},
	}
	events := &botEvents{}
	uc := NewBotUsecase(repo, &fakeBotRepo{}, provider, events)

	ref := "bot-1"
	m := seedMeeting(repo, &meetingdomain.Meeting{Title: "Standup", BotRef: &ref, BotStatus: meetingdomain.BotStatusTranscribing})

	require.NoError(t, uc.PollMeeting(context.Background(), m))

	stored := repo.meetings["m-1"]
	assert.Equal(t, meetingdomain.BotStatusCompleted, stored.BotStatus)
	require.NotNil(t, stored.Transcript)
	assert.Equal(t, "Alice: hello everyone\nBob: hi", *stored.Transcript)
	assert.Equal(t, []string{"Alice", "Bob"}, stored.TranscriptMeta.Speakers)
	assert.Contains(t, events.kinds, "transcript_ready")
	assert.Equal(t, 1, provider.transcriptCalls)

	// a second poll after completion is a no-op
	reloaded, err := repo.FindByID("m-1")
	require.NoError(t, err)
	require.NoError(t, uc.PollMeeting(context.Background(), reloaded))
	assert.Equal(t, 1, provider.transcriptCalls, "the transcript is retrieved exactly once")
}

func TestPollMeetingDeactivatesBotOnTerminalStatus(t *testing.T) {
	repo := newFakeMeetingRepo()
	botRepo := &fakeBotRepo{bots: []*meetingdomain.Bot{{
		ID: "bot-row-1", UserID: "u1", MeetingID: "m-1",
		ProviderRef: "bot-1", IsActive: true,
	}}}
	provider := &fakeProvider{stateErr: syncerrors.ErrRemoteNotFound}
	uc := NewBotUsecase(repo, botRepo, provider, &botEvents{})

	ref := "bot-1"
	m := seedMeeting(repo, &meetingdomain.Meeting{BotRef: &ref, BotStatus: meetingdomain.BotStatusScheduled})

	require.NoError(t, uc.PollMeeting(context.Background(), m))

	assert.Equal(t, meetingdomain.BotStatusFailed, repo.meetings["m-1"].BotStatus)
	assert.False(t, botRepo.bots[0].IsActive, "a terminal meeting retires its bot row")
}

func TestTranscriptRetrievalFailureThenRetry(t *testing.T) {
	repo := newFakeMeetingRepo()
	provider := &fakeProvider{state: "completed", transcriptErr: errors.New("not ready")}
	events := &botEvents{}
	uc := NewBotUsecase(repo, &fakeBotRepo{}, provider, events)

	ref := "bot-1"
	m := seedMeeting(repo, &meetingdomain.Meeting{Title: "Standup", BotRef: &ref, BotStatus: meetingdomain.BotStatusTranscribing})

	require.NoError(t, uc.PollMeeting(context.Background(), m))

	stored := repo.meetings["m-1"]
	assert.Equal(t, meetingdomain.BotStatusCompleted, stored.BotStatus, "status advances even when retrieval fails")
	assert.Nil(t, stored.Transcript)

	provider.transcriptErr = nil
	provider.segments = []attendee.TranscriptSegment{{Speaker: "Alice", Text: "recap", StartSeconds: 0, DurationSecs: 3}}

	require.NoError(t, uc.RetryTranscripts(context.Background()))

	stored = repo.meetings["m-1"]
	require.NotNil(t, stored.Transcript)
	assert.Equal(t, "Alice: recap", *stored.Transcript)
	assert.Contains(t, events.kinds, "transcript_ready")
}

func TestSendChatRequiresBot(t *testing.T) {
	repo := newFakeMeetingRepo()
	provider := &fakeProvider{}
	uc := NewBotUsecase(repo, &fakeBotRepo{}, provider, &botEvents{})

	seedMeeting(repo, &meetingdomain.Meeting{})

	err := uc.SendChat(context.Background(), "u1", "m-1", "hello")
	assert.Error(t, err)
	assert.Empty(t, provider.chatMessages)
}

func TestAggregateTranscriptMeta(t *testing.T) {
	segments := []attendee.TranscriptSegment{
		{Speaker: "Alice", Text: "let's get started", StartSeconds: 10, DurationSecs: 3},
		{Speaker: "Bob", Text: "sounds good", StartSeconds: 14, DurationSecs: 2},
		{Speaker: "Alice", Text: "first item", StartSeconds: 17, DurationSecs: 4},
		{Speaker: "Carol", Text: "", StartSeconds: 22, DurationSecs: 1}, // empty segments are dropped
	}

	text, meta := aggregateTranscript(segments)

	assert.Equal(t, "Alice: let's get started\nBob: sounds good\nAlice: first item", text)
	assert.Equal(t, 10, meta.WordCount)
	assert.Equal(t, len(text), meta.CharCount)
	assert.Equal(t, []string{"Alice", "Bob"}, meta.Speakers)
	assert.Equal(t, 11.0, meta.DurationSeconds) // 21 - 10
}
