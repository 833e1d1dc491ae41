package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// ProjectCandidate is lightweight project metadata forwarded so the
// collaborator can pick an assignment.
type ProjectCandidate struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

// Payload is the classification request body. The collaborator's response is
// never parsed beyond the HTTP status; assignment comes back out of band.
type Payload struct {
	DocumentID string             `json:"document_id"`
	UserID     string             `json:"user_id"`
	Action     string             `json:"action"` // created | updated | deleted
	Content    string             `json:"content,omitempty"`
	Candidates []ProjectCandidate `json:"candidate_projects,omitempty"`
}

// Client posts classification payloads to the external workflow webhook.
type Client struct {
	webhookURL string
	httpClient *http.Client
}

func NewClient(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Notify fires the webhook. Failures are logged and returned but callers
// treat them as non-fatal; classification is eventually retried by the
// collaborator side, not by us.
func (c *Client) Notify(ctx context.Context, payload Payload) error {
	if c.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal classification payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Classifier] Webhook call failed for document %s: %v", payload.DocumentID, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("[Classifier] Webhook returned %d for document %s", resp.StatusCode, payload.DocumentID)
		return fmt.Errorf("classifier webhook returned %d", resp.StatusCode)
	}
	return nil
}
