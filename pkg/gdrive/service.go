package gdrive

import (
	"context"
	"fmt"
	"time"

	drivedomain "github.com/allan-cais/besunny-ai-sub007/internal/drive/domain"
	"github.com/allan-cais/besunny-ai-sub007/internal/syncerrors"
	"github.com/allan-cais/besunny-ai-sub007/pkg/googleauth"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Service wraps the Google Drive API for the file-change poller.
type Service struct {
	provider *googleauth.Provider
}

func NewService(provider *googleauth.Provider) *Service {
	return &Service{provider: provider}
}

func (s *Service) driveService(ctx context.Context, accessToken, refreshToken string, onRefresh googleauth.TokenUpdateFunc) (*drive.Service, error) {
	client := s.provider.Client(ctx, accessToken, refreshToken, time.Now(), onRefresh)
	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %v", err)
	}
	return srv, nil
}

// GetFileMetadata fetches the watched file's current metadata. A 404 maps to
// ErrRemoteNotFound, which the poller treats as a deletion signal.
func (s *Service) GetFileMetadata(ctx context.Context, accessToken, refreshToken, fileID string, onRefresh googleauth.TokenUpdateFunc) (*drivedomain.FileMetadata, error) {
	srv, err := s.driveService(ctx, accessToken, refreshToken, onRefresh)
	if err != nil {
		return nil, err
	}

	file, err := srv.Files.Get(fileID).
		Fields("id", "name", "mimeType", "modifiedTime", "trashed", "size").
		Context(ctx).Do()
	if err != nil {
		return nil, syncerrors.FromGoogle(err)
	}

	meta := &drivedomain.FileMetadata{
		ID:       file.Id,
		Name:     file.Name,
		MimeType: file.MimeType,
		Trashed:  file.Trashed,
		Size:     file.Size,
	}
	if file.ModifiedTime != "" {
		if parsed, err := time.Parse(time.RFC3339, file.ModifiedTime); err == nil {
			meta.ModifiedTime = parsed
		}
	}
	return meta, nil
}

// Watch opens a push channel for a single file.
func (s *Service) Watch(ctx context.Context, accessToken, refreshToken, fileID, channelID, address string, onRefresh googleauth.TokenUpdateFunc) (resourceID string, expiration time.Time, err error) {
	srv, err := s.driveService(ctx, accessToken, refreshToken, onRefresh)
	if err != nil {
		return "", time.Time{}, err
	}

	channel := &drive.Channel{
		Id:      channelID,
		Type:    "web_hook",
		Address: address,
	}
	resp, err := srv.Files.Watch(fileID, channel).Context(ctx).Do()
	if err != nil {
		return "", time.Time{}, syncerrors.FromGoogle(err)
	}
	return resp.ResourceId, time.UnixMilli(resp.Expiration), nil
}

// Stop closes a push channel.
func (s *Service) Stop(ctx context.Context, accessToken, refreshToken, channelID, resourceID string, onRefresh googleauth.TokenUpdateFunc) error {
	srv, err := s.driveService(ctx, accessToken, refreshToken, onRefresh)
	if err != nil {
		return err
	}
	channel := &drive.Channel{
		Id:         channelID,
		ResourceId: resourceID,
	}
	if err := srv.Channels.Stop(channel).Context(ctx).Do(); err != nil {
		return syncerrors.FromGoogle(err)
	}
	return nil
}
