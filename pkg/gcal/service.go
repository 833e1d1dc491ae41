package gcal

import (
	"context"
	"fmt"
	"time"

	caldomain "github.com/allan-cais/besunny-ai-sub007/internal/calendar/domain"
	"github.com/allan-cais/besunny-ai-sub007/internal/syncerrors"
	"github.com/allan-cais/besunny-ai-sub007/pkg/googleauth"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Service wraps the Google Calendar API for the sync engine.
type Service struct {
	provider *googleauth.Provider
}

func NewService(provider *googleauth.Provider) *Service {
	return &Service{provider: provider}
}

func (s *Service) calendarService(ctx context.Context, accessToken, refreshToken string, onRefresh googleauth.TokenUpdateFunc) (*calendar.Service, error) {
	client := s.provider.Client(ctx, accessToken, refreshToken, time.Now(), onRefresh)
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %v", err)
	}
	return srv, nil
}

// ListChanges fetches the delta since the given sync token. A provider
// cursor-expired response surfaces as syncerrors.ErrCursorInvalid.
func (s *Service) ListChanges(ctx context.Context, accessToken, refreshToken, cursor string, onRefresh googleauth.TokenUpdateFunc) (*caldomain.ChangeSet, error) {
	srv, err := s.calendarService(ctx, accessToken, refreshToken, onRefresh)
	if err != nil {
		return nil, err
	}

	set := &caldomain.ChangeSet{}
	pageToken := ""
	for {
		call := srv.Events.List("primary").
			SyncToken(cursor).
			SingleEvents(true).
			ShowDeleted(true).
			MaxResults(250)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, syncerrors.FromGoogle(err)
		}

		for _, item := range resp.Items {
			set.Events = append(set.Events, convertEvent(item))
		}

		if resp.NextPageToken == "" {
			set.NextCursor = resp.NextSyncToken
			return set, nil
		}
		pageToken = resp.NextPageToken
	}
}

// ListRange fetches every event between from and to and returns a fresh sync
// token. Used for the initial sync and the cursor-expired fallback.
func (s *Service) ListRange(ctx context.Context, accessToken, refreshToken string, from, to time.Time, onRefresh googleauth.TokenUpdateFunc) (*caldomain.ChangeSet, error) {
	srv, err := s.calendarService(ctx, accessToken, refreshToken, onRefresh)
	if err != nil {
		return nil, err
	}

	set := &caldomain.ChangeSet{}
	pageToken := ""
	for {
		call := srv.Events.List("primary").
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(to.Format(time.RFC3339)).
			SingleEvents(true).
			ShowDeleted(true).
			MaxResults(250)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, syncerrors.FromGoogle(err)
		}

		for _, item := range resp.Items {
			set.Events = append(set.Events, convertEvent(item))
		}

		if resp.NextPageToken == "" {
			set.NextCursor = resp.NextSyncToken
			return set, nil
		}
		pageToken = resp.NextPageToken
	}
}

// Watch opens a push channel for the user's primary calendar.
func (s *Service) Watch(ctx context.Context, accessToken, refreshToken, channelID, address string, onRefresh googleauth.TokenUpdateFunc) (resourceID string, expiration time.Time, err error) {
	srv, err := s.calendarService(ctx, accessToken, refreshToken, onRefresh)
	if err != nil {
		return "", time.Time{}, err
	}

	channel := &calendar.Channel{
		Id:      channelID,
		Type:    "web_hook",
		Address: address,
	}
	resp, err := srv.Events.Watch("primary", channel).Context(ctx).Do()
	if err != nil {
		return "", time.Time{}, syncerrors.FromGoogle(err)
	}
	return resp.ResourceId, time.UnixMilli(resp.Expiration), nil
}

// Stop closes a push channel. Safe to call for channels the provider no
// longer knows about.
func (s *Service) Stop(ctx context.Context, accessToken, refreshToken, channelID, resourceID string, onRefresh googleauth.TokenUpdateFunc) error {
	srv, err := s.calendarService(ctx, accessToken, refreshToken, onRefresh)
	if err != nil {
		return err
	}
	channel := &calendar.Channel{
		Id:         channelID,
		ResourceId: resourceID,
	}
	if err := srv.Channels.Stop(channel).Context(ctx).Do(); err != nil {
		return syncerrors.FromGoogle(err)
	}
	return nil
}

func convertEvent(item *calendar.Event) *caldomain.RemoteEvent {
	event := &caldomain.RemoteEvent{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		HangoutLink: item.HangoutLink,
		Cancelled:   item.Status == "cancelled",
		StartTime:   parseEventTime(item.Start),
		EndTime:     parseEventTime(item.End),
	}

	if item.ConferenceData != nil {
		for _, entry := range item.ConferenceData.EntryPoints {
			if entry.EntryPointType == "video" && entry.Uri != "" {
				event.ConferenceURI = entry.Uri
				break
			}
		}
	}

	for _, attendee := range item.Attendees {
		if attendee.Self {
			event.ResponseStatus = attendee.ResponseStatus
			break
		}
	}

	return event
}

func parseEventTime(t *calendar.EventDateTime) time.Time {
	if t == nil {
		return time.Time{}
	}
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed
		}
	}
	if t.Date != "" {
		if parsed, err := time.Parse("2006-01-02", t.Date); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
