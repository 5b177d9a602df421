package claude

import (
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestCollectText_SingleBlock(t *testing.T) {
	t.Parallel()

	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: `{"severity":"high"}`},
		},
		StopReason: anthropic.StopReasonEndTurn,
	}

	got, err := collectText(msg)
	if err != nil {
		t.Fatalf("collectText: %v", err)
	}
	if got != `{"severity":"high"}` {
		t.Errorf("text = %q, want %q", got, `{"severity":"high"}`)
	}
}

func TestCollectText_ConcatenatesBlocks(t *testing.T) {
	t.Parallel()

	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: `{"severity":`},
			{Type: "text", Text: `"medium"}`},
		},
		StopReason: anthropic.StopReasonEndTurn,
	}

	got, err := collectText(msg)
	if err != nil {
		t.Fatalf("collectText: %v", err)
	}
	if got != `{"severity":"medium"}` {
		t.Errorf("text = %q, want %q", got, `{"severity":"medium"}`)
	}
}

func TestCollectText_EmptyResponse(t *testing.T) {
	t.Parallel()

	msg := &anthropic.Message{
		Content:    []anthropic.ContentBlockUnion{},
		StopReason: anthropic.StopReasonMaxTokens,
	}

	_, err := collectText(msg)
	if err == nil {
		t.Fatal("expected error for empty response")
	}
	if !strings.Contains(err.Error(), "empty response") {
		t.Errorf("error = %v, want mention of empty response", err)
	}
}

func TestCollectText_IgnoresNonText(t *testing.T) {
	t.Parallel()

	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "thinking", Text: "hmm"},
			{Type: "text", Text: "ok"},
		},
		StopReason: anthropic.StopReasonEndTurn,
	}

	got, err := collectText(msg)
	if err != nil {
		t.Fatalf("collectText: %v", err)
	}
	if got != "ok" {
		t.Errorf("text = %q, want %q", got, "ok")
	}
}
