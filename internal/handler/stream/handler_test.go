package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/junyaoz/solace/backend/internal/config"
	"github.com/junyaoz/solace/backend/internal/llm"
	"github.com/junyaoz/solace/backend/internal/persona"
	"github.com/junyaoz/solace/backend/internal/prompt"
	"github.com/junyaoz/solace/backend/internal/session"
	"github.com/junyaoz/solace/backend/internal/transcript"
)

func setupHandler(client llm.Client) (*Handler, *session.Orchestrator) {
	store := transcript.NewStore()
	assembler := prompt.NewAssembler(config.ModelConfig{Name: "gpt-test"}, 40)
	orchestrator := session.New(store, assembler, client, persona.Default(""), 200)
	return New(orchestrator), orchestrator
}

func TestHandleStreamRequestEmitsDeltasAndEnd(t *testing.T) {
	h, o := setupHandler(llm.NewMock("Tell me more about that."))
	sess := o.StartSession()

	resp := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), resp, sess.ID, "I feel anxious"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected SSE content type, got %q", ct)
	}

	body := resp.Body.String()
	for _, want := range []string{`"event":"start"`, `"event":"delta"`, `"event":"message"`, `"event":"end"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s in stream body:\n%s", want, body)
		}
	}
	if !strings.Contains(body, "Tell me more about that.") {
		t.Fatalf("full reply missing from message event:\n%s", body)
	}
}

func TestHandleStreamRequestValidationError(t *testing.T) {
	h, o := setupHandler(llm.NewMock("hi"))
	sess := o.StartSession()

	resp := httptest.NewRecorder()
	err := h.HandleStreamRequest(context.Background(), resp, sess.ID, "   ")
	if err == nil {
		t.Fatal("expected error for empty message")
	}

	body := resp.Body.String()
	if !strings.Contains(body, `"event":"error"`) || !strings.Contains(body, `"kind":"validation"`) {
		t.Fatalf("expected validation error event, got:\n%s", body)
	}
}

func TestHandleStreamRequestCommitsAssistantTurn(t *testing.T) {
	h, o := setupHandler(llm.NewMock("one two three"))
	sess := o.StartSession()

	resp := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), resp, sess.ID, "count"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	turns := o.History(sess.ID, 0)
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[2].Content != "one two three" {
		t.Fatalf("assistant turn content: %q", turns[2].Content)
	}
}
