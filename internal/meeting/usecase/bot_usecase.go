package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	meetingdomain "github.com/allan-cais/besunny-ai-sub007/internal/meeting/domain"
	"github.com/allan-cais/besunny-ai-sub007/internal/meeting/repository"
	"github.com/allan-cais/besunny-ai-sub007/internal/syncerrors"
	"github.com/allan-cais/besunny-ai-sub007/pkg/attendee"
)

const (
	// joinLeadTime is how long before the meeting start the bot joins.
	joinLeadTime = 2 * time.Minute

	defaultBotName = "Sunny AI Notetaker"

	// pollTrailWindow keeps recently ended meetings in the poll set so
	// post-processing states are still observed.
	pollTrailWindow = 2 * time.Hour
)

// BotProvider is the hosted meeting-bot surface the orchestrator drives.
type BotProvider interface {
	CreateBot(ctx context.Context, req attendee.CreateBotRequest) (string, error)
	GetBotStatus(ctx context.Context, providerRef string) (string, error)
	GetTranscript(ctx context.Context, providerRef string) ([]attendee.TranscriptSegment, error)
	SendChatMessage(ctx context.Context, providerRef, text string) error
	PauseRecording(ctx context.Context, providerRef string) error
	ResumeRecording(ctx context.Context, providerRef string) error
	ListParticipantEvents(ctx context.Context, providerRef string) ([]attendee.ParticipantEvent, error)
}

// EventService receives domain events for device push and activity logging.
type EventService interface {
	Emit(userID, kind, detail string)
}

// BotUsecase owns the bot lifecycle: deployment, status polling, transcript
// retrieval and in-call operations.
type BotUsecase interface {
	SendBot(ctx context.Context, userID, meetingID string, cfg meetingdomain.BotConfig) (*meetingdomain.Meeting, error)
	PollMeeting(ctx context.Context, meeting *meetingdomain.Meeting) error
	PollActiveBots(ctx context.Context) error
	RetryTranscripts(ctx context.Context) error
	SendChat(ctx context.Context, userID, meetingID, text string) error
	PauseRecording(ctx context.Context, userID, meetingID string) error
	ResumeRecording(ctx context.Context, userID, meetingID string) error
	ParticipantEvents(ctx context.Context, userID, meetingID string) ([]attendee.ParticipantEvent, error)
}

type botUsecase struct {
	meetingRepo repository.MeetingRepository
	botRepo     repository.BotRepository
	provider    BotProvider
	events      EventService
}

func NewBotUsecase(meetingRepo repository.MeetingRepository, botRepo repository.BotRepository, provider BotProvider, events EventService) BotUsecase {
	return &botUsecase{
		meetingRepo: meetingRepo,
		botRepo:     botRepo,
		provider:    provider,
		events:      events,
	}
}

// SendBot deploys a bot into a meeting. Calling it again for the same meeting
// returns the existing deployment instead of creating a second bot.
func (u *botUsecase) SendBot(ctx context.Context, userID, meetingID string, cfg meetingdomain.BotConfig) (*meetingdomain.Meeting, error) {
	meeting, err := u.ownedMeeting(userID, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.BotRef != nil {
		return meeting, nil
	}
	// A bot row without a matching bot_ref on the meeting means an earlier
	// deployment crashed between the two writes. Adopt the existing provider
	// bot instead of deploying a second one.
	existing, err := u.botRepo.FindByMeetingID(meeting.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.IsActive {
		if err := u.meetingRepo.SetBotRef(meeting.ID, existing.ProviderRef, meetingdomain.BotStatusScheduled); err != nil {
			return nil, err
		}
		log.Printf("[BotOrchestrator] Adopted existing bot %s for meeting %s", existing.ProviderRef, meeting.ID)
		return u.meetingRepo.FindByID(meeting.ID)
	}
	if meeting.JoinURL == "" {
		return nil, fmt.Errorf("meeting %s has no conferencing URL", meetingID)
	}
	if meeting.BotStatus.Terminal() {
		return nil, fmt.Errorf("meeting %s bot already %s", meetingID, meeting.BotStatus)
	}

	if cfg.BotName == "" {
		cfg.BotName = defaultBotName
	}
	joinAt := meeting.StartTime.Add(-joinLeadTime)
	if now := time.Now(); joinAt.Before(now) {
		joinAt = now
	}

	ref, err := u.provider.CreateBot(ctx, attendee.CreateBotRequest{
		MeetingURL: meeting.JoinURL,
		BotName:    cfg.BotName,
		JoinAt:     joinAt,
		Greeting:   cfg.GreetingMessage,
	})
	if err != nil {
		return nil, err
	}

	bot := &meetingdomain.Bot{
		UserID:        userID,
		MeetingID:     meeting.ID,
		ProviderRef:   ref,
		Name:          cfg.BotName,
		Configuration: cfg,
		IsActive:      true,
	}
	if err := u.botRepo.Create(bot); err != nil {
		return nil, err
	}
	if err := u.meetingRepo.SetBotRef(meeting.ID, ref, meetingdomain.BotStatusScheduled); err != nil {
		return nil, err
	}

	log.Printf("[BotOrchestrator] Deployed bot %s for meeting %s (joins %s)", ref, meeting.ID, joinAt.Format(time.RFC3339))
	u.events.Emit(userID, "bot_scheduled", meeting.Title)
	return u.meetingRepo.FindByID(meeting.ID)
}

// PollMeeting reconciles one meeting's bot status against the provider.
// Status only moves forward; a poll observing an older state writes nothing.
func (u *botUsecase) PollMeeting(ctx context.Context, meeting *meetingdomain.Meeting) error {
	if meeting.BotRef == nil {
		return nil
	}
	prev := meeting.BotStatus

	state, err := u.provider.GetBotStatus(ctx, *meeting.BotRef)
	if errors.Is(err, syncerrors.ErrRemoteNotFound) {
		// The provider no longer knows the bot.
		advanced, aerr := u.meetingRepo.AdvanceBotStatus(meeting.ID, prev, meetingdomain.BotStatusFailed)
		if aerr != nil {
			return aerr
		}
		if advanced {
			u.deactivateBot(meeting.ID)
		}
		return nil
	}
	if err != nil {
		return err
	}

	mapped, mapErr := MapProviderState(state)
	if mapErr != nil {
		log.Printf("[BotOrchestrator] Meeting %s: %v", meeting.ID, mapErr)
	}

	if mapped == prev {
		if prev == meetingdomain.BotStatusCompleted && meeting.Transcript == nil {
			return u.retrieveTranscript(ctx, meeting, prev)
		}
		return nil
	}

	if mapped == meetingdomain.BotStatusCompleted && !prev.Terminal() {
		return u.retrieveTranscript(ctx, meeting, prev)
	}

	advanced, err := u.meetingRepo.AdvanceBotStatus(meeting.ID, prev, mapped)
	if err != nil {
		return err
	}
	if advanced {
		u.events.Emit(meeting.UserID, "bot_status_changed", string(mapped))
		if mapped.Terminal() {
			u.deactivateBot(meeting.ID)
		}
	}
	return nil
}

// deactivateBot retires the bot row once its meeting reached a terminal
// status, removing it from the active set.
func (u *botUsecase) deactivateBot(meetingID string) {
	bot, err := u.botRepo.FindByMeetingID(meetingID)
	if err != nil || bot == nil || !bot.IsActive {
		return
	}
	if err := u.botRepo.Deactivate(bot.ID); err != nil {
		log.Printf("[BotOrchestrator] Failed to deactivate bot for meeting %s: %v", meetingID, err)
	}
}

// retrieveTranscript fetches and stores the transcript on the completion
// transition. When retrieval fails the status still advances; the transcript
// is picked up by the retry sweep.
func (u *botUsecase) retrieveTranscript(ctx context.Context, meeting *meetingdomain.Meeting, prev meetingdomain.BotStatus) error {
	segments, err := u.provider.GetTranscript(ctx, *meeting.BotRef)
	if err != nil {
		log.Printf("[BotOrchestrator] Transcript retrieval failed for meeting %s: %v", meeting.ID, err)
		if prev != meetingdomain.BotStatusCompleted {
			advanced, aerr := u.meetingRepo.AdvanceBotStatus(meeting.ID, prev, meetingdomain.BotStatusCompleted)
			if aerr != nil {
				return aerr
			}
			if advanced {
				u.deactivateBot(meeting.ID)
			}
		}
		return nil
	}

	text, meta := aggregateTranscript(segments)
	stored, err := u.meetingRepo.CompleteWithTranscript(meeting.ID, prev, text, meta, time.Now())
	if err != nil {
		return err
	}
	if stored {
		u.events.Emit(meeting.UserID, "transcript_ready", meeting.Title)
		u.deactivateBot(meeting.ID)
	}
	return nil
}

// PollActiveBots reconciles every non-terminal bot. Per-meeting failures are
// logged and do not stop the sweep.
func (u *botUsecase) PollActiveBots(ctx context.Context) error {
	meetings, err := u.meetingRepo.ListUpcomingWithBots(time.Now().Add(-pollTrailWindow))
	if err != nil {
		return err
	}
	for _, meeting := range meetings {
		if err := u.PollMeeting(ctx, meeting); err != nil {
			log.Printf("[BotOrchestrator] Poll failed for meeting %s: %v", meeting.ID, err)
		}
	}
	return nil
}

// RetryTranscripts re-attempts retrieval for completed meetings whose
// transcript is still missing.
func (u *botUsecase) RetryTranscripts(ctx context.Context) error {
	meetings, err := u.meetingRepo.ListCompletedWithoutTranscript()
	if err != nil {
		return err
	}
	for _, meeting := range meetings {
		if meeting.BotRef == nil {
			continue
		}
		if err := u.retrieveTranscript(ctx, meeting, meetingdomain.BotStatusCompleted); err != nil {
			log.Printf("[BotOrchestrator] Transcript retry failed for meeting %s: %v", meeting.ID, err)
		}
	}
	return nil
}

func (u *botUsecase) SendChat(ctx context.Context, userID, meetingID, text string) error {
	ref, err := u.ownedBotRef(userID, meetingID)
	if err != nil {
		return err
	}
	if err := u.provider.SendChatMessage(ctx, ref, text); err != nil {
		return err
	}
	u.events.Emit(userID, "bot_chat_sent", text)
	return nil
}

func (u *botUsecase) PauseRecording(ctx context.Context, userID, meetingID string) error {
	ref, err := u.ownedBotRef(userID, meetingID)
	if err != nil {
		return err
	}
	if err := u.provider.PauseRecording(ctx, ref); err != nil {
		return err
	}
	u.events.Emit(userID, "recording_paused", meetingID)
	return nil
}

func (u *botUsecase) ResumeRecording(ctx context.Context, userID, meetingID string) error {
	ref, err := u.ownedBotRef(userID, meetingID)
	if err != nil {
		return err
	}
	if err := u.provider.ResumeRecording(ctx, ref); err != nil {
		return err
	}
	u.events.Emit(userID, "recording_resumed", meetingID)
	return nil
}

func (u *botUsecase) ParticipantEvents(ctx context.Context, userID, meetingID string) ([]attendee.ParticipantEvent, error) {
	ref, err := u.ownedBotRef(userID, meetingID)
	if err != nil {
		return nil, err
	}
	return u.provider.ListParticipantEvents(ctx, ref)
}

func (u *botUsecase) ownedMeeting(userID, meetingID string) (*meetingdomain.Meeting, error) {
	meeting, err := u.meetingRepo.FindByID(meetingID)
	if err != nil {
		return nil, err
	}
	if meeting == nil || meeting.UserID != userID {
		return nil, fmt.Errorf("meeting %s not found", meetingID)
	}
	return meeting, nil
}

func (u *botUsecase) ownedBotRef(userID, meetingID string) (string, error) {
	meeting, err := u.ownedMeeting(userID, meetingID)
	if err != nil {
		return "", err
	}
	if meeting.BotRef == nil {
		return "", fmt.Errorf("meeting %s has no bot", meetingID)
	}
	return *meeting.BotRef, nil
}

// aggregateTranscript folds provider segments into one speaker-attributed
// text plus summary metadata.
func aggregateTranscript(segments []attendee.TranscriptSegment) (string, meetingdomain.TranscriptMeta) {
	var b strings.Builder
	var speakers []string
	seen := make(map[string]bool)
	var minStart, maxEnd float64
	first := true

	for _, seg := range segments {
		if seg.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		if seg.Speaker != "" {
			b.WriteString(seg.Speaker)
			b.WriteString(": ")
			if !seen[seg.Speaker] {
				seen[seg.Speaker] = true
				speakers = append(speakers, seg.Speaker)
			}
		}
		b.WriteString(seg.Text)

		end := seg.StartSeconds + seg.DurationSecs
		if first {
			minStart, maxEnd = seg.StartSeconds, end
			first = false
			continue
		}
		if seg.StartSeconds < minStart {
			minStart = seg.StartSeconds
		}
		if end > maxEnd {
			maxEnd = end
		}
	}

	text := b.String()
	meta := meetingdomain.TranscriptMeta{
		WordCount: len(strings.Fields(text)),
		CharCount: len(text),
		Speakers:  speakers,
	}
	if !first {
		meta.DurationSeconds = maxEnd - minStart
	}
	return text, meta
}
