// Package config loads the bot's runtime settings from environment
// variables.
package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoDiscordToken indicates that DISCORD_TOKEN is not set.
var ErrNoDiscordToken = errors.New("DISCORD_TOKEN environment variable is required")

// Config holds every externally supplied setting. Empty optional fields
// disable the corresponding feature rather than failing startup.
type Config struct {
	// DiscordToken authenticates the gateway session. Required.
	DiscordToken string
	// DatabaseURL is the Postgres connection string. Empty means the
	// in-memory store, which loses everything on restart.
	DatabaseURL string
	// URLScanAPIKey enables the primary URL scan provider.
	URLScanAPIKey string
	// VirusTotalAPIKey enables the fallback URL scan provider.
	VirusTotalAPIKey string
	// OpenAIAPIKey enables the persona chat responder.
	OpenAIAPIKey string
	// Persona overrides the default system prompt for the chat responder.
	Persona string
	// AllowedDomains are hosts the link guard never scans.
	AllowedDomains []string
	// ModeratorIDs are the Discord user IDs allowed to use warning commands.
	ModeratorIDs []string
	// Statuses rotate through the bot's "watching" presence.
	Statuses []string
	// GreetingImages are image URLs the greeting commands pick from.
	GreetingImages []string
}

const defaultPersona = "You are Poppy, a cheerful and slightly sassy Discord companion. " +
	"Keep replies short, warm and playful, and sprinkle in the occasional emoji."

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return nil, ErrNoDiscordToken
	}

	return &Config{
		DiscordToken:     token,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		URLScanAPIKey:    os.Getenv("URLSCAN_API_KEY"),
		VirusTotalAPIKey: os.Getenv("VIRUSTOTAL_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		Persona:          getEnv("POPPY_PERSONA", defaultPersona),
		AllowedDomains: getEnvList("POPPY_ALLOWED_DOMAINS", []string{
			"discord.com",
			"discord.gg",
			"github.com",
			"youtube.com",
			"youtu.be",
		}),
		ModeratorIDs: getEnvList("POPPY_MODERATOR_IDS", nil),
		Statuses: getEnvList("POPPY_STATUSES", []string{
			"over the server 👀",
			"out for sketchy links",
			"you all being lovely 💖",
		}),
		GreetingImages: getEnvList("POPPY_GREETING_IMAGES", nil),
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty elements.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
