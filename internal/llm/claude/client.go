// Package claude implements the risk.Provider contract against the
// Anthropic Messages API.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const responseTokens = 2048

// Client sends single-shot completion requests to Claude.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

// New creates a client for the given API key and model name.
func New(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// Complete sends one system+user prompt pair and returns the concatenated
// text content of the response. Errors are returned as-is; the caller owns
// fallback behavior.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: responseTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude: %w", err)
	}

	return collectText(msg)
}

// collectText concatenates the text blocks of a response. Non-text blocks
// are ignored; an all-empty response is an error so the scorer falls back.
func collectText(msg *anthropic.Message) (string, error) {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("claude: empty response (stop_reason=%s)", msg.StopReason)
	}
	return b.String(), nil
}
