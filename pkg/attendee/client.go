package attendee

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/allan-cais/besunny-ai-sub007/internal/syncerrors"
)

// Client talks to the hosted meeting-bot provider. A single shared service
// credential (API key) covers all users' bots; the per-bot identifier the
// provider assigns on creation keys every subsequent call.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateBotRequest is the deployment payload for a new meeting bot.
type CreateBotRequest struct {
	MeetingURL string    `json:"meeting_url"`
	BotName    string    `json:"bot_name,omitempty"`
	JoinAt     time.Time `json:"join_at"`
	// Chat message the bot posts after joining.
	Greeting string `json:"bot_chat_message,omitempty"`
}

type createBotResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type botStatusResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// TranscriptSegment is one speaker-attributed utterance.
type TranscriptSegment struct {
	Speaker      string  `json:"speaker_name"`
	Text         string  `json:"transcription"`
	StartSeconds float64 `json:"timestamp_seconds"`
	DurationSecs float64 `json:"duration_seconds"`
}

// ParticipantEvent is a join/leave record for one participant.
type ParticipantEvent struct {
	Participant string    `json:"participant_name"`
	EventType   string    `json:"event_type"` // join | leave
	Timestamp   time.Time `json:"timestamp"`
}

// CreateBot schedules a bot into a meeting and returns the provider-assigned
// reference.
func (c *Client) CreateBot(ctx context.Context, req CreateBotRequest) (string, error) {
	var resp createBotResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/bots", req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create bot: provider returned no id")
	}
	return resp.ID, nil
}

// GetBotStatus returns the provider's raw state string for a bot.
func (c *Client) GetBotStatus(ctx context.Context, providerRef string) (string, error) {
	var resp botStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/bots/"+providerRef, nil, &resp); err != nil {
		return "", err
	}
	return resp.State, nil
}

// GetTranscript fetches the full speaker-attributed transcript.
func (c *Client) GetTranscript(ctx context.Context, providerRef string) ([]TranscriptSegment, error) {
	var segments []TranscriptSegment
	if err := c.do(ctx, http.MethodGet, "/api/v1/bots/"+providerRef+"/transcript", nil, &segments); err != nil {
		return nil, err
	}
	return segments, nil
}

// SendChatMessage posts a chat message through the bot.
func (c *Client) SendChatMessage(ctx context.Context, providerRef, text string) error {
	body := map[string]string{"message": text}
	return c.do(ctx, http.MethodPost, "/api/v1/bots/"+providerRef+"/chat_messages", body, nil)
}

// PauseRecording pauses the bot's recording.
func (c *Client) PauseRecording(ctx context.Context, providerRef string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/bots/"+providerRef+"/pause_recording", nil, nil)
}

// ResumeRecording resumes the bot's recording.
func (c *Client) ResumeRecording(ctx context.Context, providerRef string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/bots/"+providerRef+"/resume_recording", nil, nil)
}

// ListParticipantEvents returns the join/leave history of the call.
func (c *Client) ListParticipantEvents(ctx context.Context, providerRef string) ([]ParticipantEvent, error) {
	var events []ParticipantEvent
	if err := c.do(ctx, http.MethodGet, "/api/v1/bots/"+providerRef+"/participant_events", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", syncerrors.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", syncerrors.ErrRemoteNotFound, method, path)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s %s", syncerrors.ErrRemoteRateLimited, method, path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s returned %d", syncerrors.ErrRemoteUnavailable, method, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bot provider %s %s returned %d: %s", method, path, resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %v", err)
	}
	return nil
}
