package config

import (
	"errors"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		t.Setenv("DISCORD_TOKEN", "")

		_, err := Load()
		if !errors.Is(err, ErrNoDiscordToken) {
			t.Errorf("Expected ErrNoDiscordToken, got %v.", err)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("DISCORD_TOKEN", "token")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		if cfg.DiscordToken != "token" {
			t.Errorf("Unexpected token: %s.", cfg.DiscordToken)
		}
		if cfg.Persona == "" {
			t.Error("Expected a default persona.")
		}
		if len(cfg.AllowedDomains) == 0 {
			t.Error("Expected default allowed domains.")
		}
		if len(cfg.Statuses) == 0 {
			t.Error("Expected default statuses.")
		}
		if len(cfg.ModeratorIDs) != 0 {
			t.Errorf("Expected no default moderators, got %#v.", cfg.ModeratorIDs)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("DISCORD_TOKEN", "token")
		t.Setenv("POPPY_ALLOWED_DOMAINS", "example.com, example.org ,")
		t.Setenv("POPPY_MODERATOR_IDS", "111,222")
		t.Setenv("POPPY_PERSONA", "You are a test fixture.")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		if len(cfg.AllowedDomains) != 2 || cfg.AllowedDomains[0] != "example.com" || cfg.AllowedDomains[1] != "example.org" {
			t.Errorf("Unexpected allowed domains: %#v.", cfg.AllowedDomains)
		}
		if len(cfg.ModeratorIDs) != 2 || cfg.ModeratorIDs[1] != "222" {
			t.Errorf("Unexpected moderator IDs: %#v.", cfg.ModeratorIDs)
		}
		if cfg.Persona != "You are a test fixture." {
			t.Errorf("Unexpected persona: %s.", cfg.Persona)
		}
	})
}
