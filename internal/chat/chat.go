// Package chat generates Poppy's persona replies for messages that mention
// the bot. Conversation history is a bounded TTL cache keyed by channel and
// user, so idle conversations evict themselves instead of growing a
// process-wide map.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sashabaranov/go-openai"
)

// ErrDisabled indicates that no API key was configured for the responder.
var ErrDisabled = errors.New("chat responder is not configured")

// ErrCooldown indicates that the user is rate-limited and the message should
// be silently dropped.
var ErrCooldown = errors.New("user is on cooldown")

// completer is the slice of the OpenAI client the responder uses.
// *openai.Client satisfies it; tests supply a fake.
type completer interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config contains tuning knobs for the responder.
type Config struct {
	// Model is the chat completion model identifier.
	Model string `json:"model" yaml:"model"`
	// Persona is the system prompt establishing the bot's voice.
	Persona string `json:"persona" yaml:"persona"`
	// HistoryTurns bounds how many user/assistant exchange pairs are kept
	// per conversation.
	HistoryTurns int `json:"history_turns" yaml:"history_turns"`
	// HistoryTTL evicts idle conversations.
	HistoryTTL time.Duration `json:"history_ttl" yaml:"history_ttl"`
	// Cooldown is the minimum gap between replies to one user.
	Cooldown time.Duration `json:"cooldown" yaml:"cooldown"`
}

// NewConfig returns a Config with default settings. Persona is empty and
// should be set before use.
func NewConfig() *Config {
	return &Config{
		Model:        openai.GPT4oMini,
		HistoryTurns: 8,
		HistoryTTL:   10 * time.Minute,
		Cooldown:     3 * time.Second,
	}
}

// Responder produces persona replies with per-conversation history.
type Responder struct {
	config   *Config
	client   completer
	history  *cache.Cache
	cooldown *cache.Cache
}

// ResponderOption is a functional option for Responder.
type ResponderOption func(*Responder)

// WithCompleter injects a chat completion client. Used by tests.
func WithCompleter(client completer) ResponderOption {
	return func(r *Responder) {
		r.client = client
	}
}

// NewResponder creates a Responder. With an empty apiKey and no injected
// client, Reply always returns ErrDisabled.
func NewResponder(config *Config, apiKey string, options ...ResponderOption) *Responder {
	r := &Responder{
		config:   config,
		history:  cache.New(config.HistoryTTL, config.HistoryTTL),
		cooldown: cache.New(config.Cooldown, time.Minute),
	}
	if apiKey != "" {
		r.client = openai.NewClient(apiKey)
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func conversationKey(channelID, userID string) string {
	return channelID + "_" + userID
}

// Reply generates a persona reply to the user's message. It returns
// ErrCooldown when the user messaged again too quickly and ErrDisabled when
// no API key is configured; callers drop the message silently in both cases.
func (r *Responder) Reply(ctx context.Context, channelID, userID, userName, message string) (string, error) {
	if r.client == nil {
		return "", ErrDisabled
	}

	key := conversationKey(channelID, userID)
	if err := r.cooldown.Add(key, struct{}{}, r.config.Cooldown); err != nil {
		return "", ErrCooldown
	}

	var history []openai.ChatCompletionMessage
	if v, ok := r.history.Get(key); ok {
		history = v.([]openai.ChatCompletionMessage)
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf("%s\nYou are talking to %s.", r.config.Persona, userName),
	})
	messages = append(messages, history...)
	userMessage := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	}
	messages = append(messages, userMessage)

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.config.Model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	reply := resp.Choices[0].Message.Content

	history = append(history, userMessage, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply,
	})
	if max := r.config.HistoryTurns * 2; len(history) > max {
		history = history[len(history)-max:]
	}
	r.history.Set(key, history, r.config.HistoryTTL)

	return reply, nil
}
