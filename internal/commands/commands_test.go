package commands

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-sarah/v4"

	"github.com/poppy-bot/poppy/internal/discord"
)

func testMessage(content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "msg-1",
			ChannelID: "ch-1",
			GuildID:   "guild-1",
			Content:   content,
			Timestamp: time.Now(),
			Author: &discordgo.User{
				ID:       "user-1",
				Username: "tester",
			},
		},
	}
}

func testInput(t *testing.T, content string) *discord.Input {
	t.Helper()
	input, err := discord.MessageToInput(testMessage(content))
	if err != nil {
		t.Fatalf("Failed to build input: %s", err)
	}
	return input
}

type mockNotifier struct {
	mu      sync.Mutex
	outputs []sarah.Output
}

func (m *mockNotifier) SendMessage(_ context.Context, output sarah.Output) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs = append(m.outputs, output)
}

func (m *mockNotifier) sent() []sarah.Output {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sarah.Output(nil), m.outputs...)
}

func responseText(t *testing.T, response *sarah.CommandResponse) string {
	t.Helper()
	if response == nil {
		t.Fatal("Response is nil.")
	}
	text, ok := response.Content.(string)
	if !ok {
		t.Fatalf("Response content is not a string: %#v", response.Content)
	}
	return text
}
