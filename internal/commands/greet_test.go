package commands

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestPersonalize(t *testing.T) {
	tests := []struct {
		name     string
		template string
		userName string
		expected string
	}{
		{
			name:     "placeholder replaced",
			template: "Good morning, {user}!",
			userName: "poppy",
			expected: "Good morning, poppy!",
		},
		{
			name:     "no placeholder",
			template: "Good night everyone",
			userName: "poppy",
			expected: "Good night everyone",
		},
		{
			name:     "empty template falls back",
			template: "",
			userName: "poppy",
			expected: "Hey poppy!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := personalize(tt.template, tt.userName); got != tt.expected {
				t.Errorf("Expected %q, got %q.", tt.expected, got)
			}
		})
	}
}

func TestGreet(t *testing.T) {
	greetings := DefaultGreetings()

	t.Run("plain text greeting", func(t *testing.T) {
		response, err := greet(greetings, testInput(t, ".gm"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		text := responseText(t, response)
		if !strings.Contains(text, "Good morning") || !strings.Contains(text, "tester") {
			t.Errorf("Unexpected greeting: %s.", text)
		}
	})

	t.Run("greeting with image uses embed", func(t *testing.T) {
		withImages := map[string]Greeting{
			"gn": {Message: "Night, {user}", Images: []string{"https://img.test/moon.png"}},
		}

		response, err := greet(withImages, testInput(t, ".gn"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		if response == nil {
			t.Fatal("Response is nil.")
		}
		send, ok := response.Content.(*discordgo.MessageSend)
		if !ok {
			t.Fatalf("Expected *discordgo.MessageSend, got %#v.", response.Content)
		}
		if send.Content != "Night, tester" {
			t.Errorf("Unexpected text: %s.", send.Content)
		}
		if len(send.Embeds) != 1 || send.Embeds[0].Image == nil || send.Embeds[0].Image.URL != "https://img.test/moon.png" {
			t.Errorf("Unexpected embed: %#v.", send.Embeds)
		}
	})

	t.Run("unknown greeting key", func(t *testing.T) {
		response, err := greet(map[string]Greeting{}, testInput(t, ".ge"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		if response != nil {
			t.Errorf("Expected no response, got %#v.", response)
		}
	})
}
