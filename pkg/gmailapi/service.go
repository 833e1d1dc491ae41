package gmailapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	emaildomain "github.com/allan-cais/besunny-ai-sub007/internal/email/domain"
	"github.com/allan-cais/besunny-ai-sub007/internal/syncerrors"
	"github.com/allan-cais/besunny-ai-sub007/pkg/googleauth"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Service wraps the Gmail API for the virtual-address detector.
type Service struct {
	provider *googleauth.Provider
}

func NewService(provider *googleauth.Provider) *Service {
	return &Service{provider: provider}
}

func (s *Service) gmailService(ctx context.Context, accessToken, refreshToken string, onRefresh googleauth.TokenUpdateFunc) (*gmail.Service, error) {
	client := s.provider.Client(ctx, accessToken, refreshToken, time.Now(), onRefresh)
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}
	return srv, nil
}

// HistoryDelta lists message ids added since the given history cursor. Gmail
// answers a stale cursor with 404, which maps to ErrCursorInvalid so the
// caller can reset.
func (s *Service) HistoryDelta(ctx context.Context, accessToken, refreshToken, cursor string, onRefresh googleauth.TokenUpdateFunc) (*emaildomain.HistoryDelta, error) {
	srv, err := s.gmailService(ctx, accessToken, refreshToken, onRefresh)
	if err != nil {
		return nil, err
	}

	startID, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed history cursor %q", syncerrors.ErrCursorInvalid, cursor)
	}

	delta := &emaildomain.HistoryDelta{NextCursor: cursor}
	pageToken := ""
	for {
		call := srv.Users.History.List("me").
			StartHistoryId(startID).
			HistoryTypes("messageAdded").
			LabelId("INBOX")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Context(ctx).Do()
		if err != nil {
			var gerr *googleapi.Error
			if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
				return nil, fmt.Errorf("%w: history cursor %s rejected", syncerrors.ErrCursorInvalid, cursor)
			}
			return nil, syncerrors.FromGoogle(err)
		}

		for _, history := range resp.History {
			for _, added := range history.MessagesAdded {
				if added.Message != nil {
					delta.AddedMessageIDs = append(delta.AddedMessageIDs, added.Message.Id)
				}
			}
		}
		if resp.HistoryId > 0 {
			delta.NextCursor = strconv.FormatUint(resp.HistoryId, 10)
		}

		if resp.NextPageToken == "" {
			return delta, nil
		}
		pageToken = resp.NextPageToken
	}
}

// GetMessage fetches addressing headers and the snippet for one message.
func (s *Service) GetMessage(ctx context.Context, accessToken, refreshToken, messageID string, onRefresh googleauth.TokenUpdateFunc) (*emaildomain.InboundMessage, error) {
	srv, err := s.gmailService(ctx, accessToken, refreshToken, onRefresh)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", messageID).
		Format("metadata").
		MetadataHeaders("To", "Cc", "From", "Subject").
		Context(ctx).Do()
	if err != nil {
		return nil, syncerrors.FromGoogle(err)
	}

	message := &emaildomain.InboundMessage{
		ID:         msg.Id,
		Snippet:    msg.Snippet,
		ReceivedAt: time.UnixMilli(msg.InternalDate),
	}
	if msg.Payload != nil {
		message.To = splitAddresses(getHeader(msg.Payload.Headers, "To"))
		message.Cc = splitAddresses(getHeader(msg.Payload.Headers, "Cc"))
		message.From = getHeader(msg.Payload.Headers, "From")
		message.Subject = getHeader(msg.Payload.Headers, "Subject")
	}
	return message, nil
}

// Watch sets up push notifications for the user's mailbox and returns the
// initial history cursor.
func (s *Service) Watch(ctx context.Context, accessToken, refreshToken, topicName string, onRefresh googleauth.TokenUpdateFunc) (cursor string, expiration time.Time, err error) {
	srv, err := s.gmailService(ctx, accessToken, refreshToken, onRefresh)
	if err != nil {
		return "", time.Time{}, err
	}

	// Clear any existing watch first; Gmail allows only one push client per
	// mailbox.
	_ = srv.Users.Stop("me").Do()

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}
	resp, err := srv.Users.Watch("me", req).Context(ctx).Do()
	if err != nil {
		return "", time.Time{}, syncerrors.FromGoogle(err)
	}
	return strconv.FormatUint(resp.HistoryId, 10), time.UnixMilli(resp.Expiration), nil
}

// Stop stops push notifications for the user's mailbox.
func (s *Service) Stop(ctx context.Context, accessToken, refreshToken string, onRefresh googleauth.TokenUpdateFunc) error {
	srv, err := s.gmailService(ctx, accessToken, refreshToken, onRefresh)
	if err != nil {
		return err
	}
	if err := srv.Users.Stop("me").Do(); err != nil {
		return syncerrors.FromGoogle(err)
	}
	return nil
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if header.Name == name {
			return header.Value
		}
	}
	return ""
}

func splitAddresses(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
