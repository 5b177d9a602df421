// Package push fans notifications out to a push-gateway webhook.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const httpTimeout = 10 * time.Second

// Sender posts broadcast pushes to a configured webhook. If the URL is
// empty, every send is a no-op.
type Sender struct {
	webhookURL string
	client     *http.Client
}

// New creates a push sender.
func New(webhookURL string) *Sender {
	return &Sender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

type payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Link  string `json:"link,omitempty"`
}

// PushToAll posts one broadcast push. The gateway owns per-device delivery;
// this side guarantees nothing beyond a 2xx handshake.
func (s *Sender) PushToAll(ctx context.Context, title, body, link string) error {
	if s.webhookURL == "" {
		return nil
	}

	buf, err := json.Marshal(payload{Title: title, Body: body, Link: link})
	if err != nil {
		return fmt.Errorf("push: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("push: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("push: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
