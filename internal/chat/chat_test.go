package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

type mockCompleter struct {
	completeFunc func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	calls        []openai.ChatCompletionRequest
}

func (m *mockCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.calls = append(m.calls, req)
	if m.completeFunc != nil {
		return m.completeFunc(ctx, req)
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "hey bestie!"}},
		},
	}, nil
}

func newTestResponder(m *mockCompleter) *Responder {
	config := NewConfig()
	config.Persona = "You are Poppy."
	config.Cooldown = time.Nanosecond
	return NewResponder(config, "", WithCompleter(m))
}

func TestResponder_Reply(t *testing.T) {
	m := &mockCompleter{}
	r := newTestResponder(m)

	reply, err := r.Reply(context.Background(), "ch-1", "user-1", "Sam", "hi poppy")
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	if reply != "hey bestie!" {
		t.Errorf("Unexpected reply %q", reply)
	}

	if len(m.calls) != 1 {
		t.Fatalf("Expected one completion call, got %d", len(m.calls))
	}
	req := m.calls[0]
	if req.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Error("Expected the persona prompt to lead the conversation")
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != openai.ChatMessageRoleUser || last.Content != "hi poppy" {
		t.Errorf("Expected the user message last, got %+v", last)
	}
}

func TestResponder_Reply_KeepsHistory(t *testing.T) {
	m := &mockCompleter{}
	r := newTestResponder(m)
	ctx := context.Background()

	if _, err := r.Reply(ctx, "ch-1", "user-1", "Sam", "first"); err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	time.Sleep(time.Millisecond) // let the cooldown entry lapse
	if _, err := r.Reply(ctx, "ch-1", "user-1", "Sam", "second"); err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}

	req := m.calls[1]
	// system + first exchange + new user message
	if len(req.Messages) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(req.Messages))
	}
	if req.Messages[1].Content != "first" {
		t.Errorf("Expected the first user message in history, got %q", req.Messages[1].Content)
	}
	if req.Messages[2].Role != openai.ChatMessageRoleAssistant {
		t.Errorf("Expected the assistant turn in history, got %q", req.Messages[2].Role)
	}
}

func TestResponder_Reply_TrimsHistory(t *testing.T) {
	m := &mockCompleter{}
	config := NewConfig()
	config.Persona = "You are Poppy."
	config.Cooldown = time.Nanosecond
	config.HistoryTurns = 2
	r := NewResponder(config, "", WithCompleter(m))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := r.Reply(ctx, "ch-1", "user-1", "Sam", fmt.Sprintf("turn %d", i)); err != nil {
			t.Fatalf("Unexpected error on turn %d: %+v", i, err)
		}
		time.Sleep(time.Millisecond)
	}

	req := m.calls[4]
	// system + 2 retained exchange pairs + new user message
	if len(req.Messages) != 6 {
		t.Errorf("Expected trimmed history of 6 messages, got %d", len(req.Messages))
	}
}

func TestResponder_Reply_SeparateConversations(t *testing.T) {
	m := &mockCompleter{}
	r := newTestResponder(m)
	ctx := context.Background()

	if _, err := r.Reply(ctx, "ch-1", "user-1", "Sam", "hi"); err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	if _, err := r.Reply(ctx, "ch-1", "user-2", "Alex", "hi"); err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}

	// The second user starts fresh: system + own message only.
	if len(m.calls[1].Messages) != 2 {
		t.Errorf("Expected an empty history for a different user, got %d messages", len(m.calls[1].Messages))
	}
}

func TestResponder_Reply_Cooldown(t *testing.T) {
	m := &mockCompleter{}
	config := NewConfig()
	config.Cooldown = time.Hour
	r := NewResponder(config, "", WithCompleter(m))
	ctx := context.Background()

	if _, err := r.Reply(ctx, "ch-1", "user-1", "Sam", "hi"); err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	_, err := r.Reply(ctx, "ch-1", "user-1", "Sam", "hi again")
	if !errors.Is(err, ErrCooldown) {
		t.Errorf("Expected ErrCooldown, got %+v", err)
	}
	if len(m.calls) != 1 {
		t.Errorf("Expected the cooled-down message to be dropped, got %d calls", len(m.calls))
	}
}

func TestResponder_Reply_Disabled(t *testing.T) {
	r := NewResponder(NewConfig(), "")
	if _, err := r.Reply(context.Background(), "ch-1", "user-1", "Sam", "hi"); !errors.Is(err, ErrDisabled) {
		t.Errorf("Expected ErrDisabled, got %+v", err)
	}
}
