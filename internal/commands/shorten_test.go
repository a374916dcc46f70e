package commands

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/poppy-bot/poppy/internal/shortener"
	"github.com/poppy-bot/poppy/internal/store"
)

type mockURLShortener struct {
	shortenFunc func(ctx context.Context, longURL string) (*shortener.ShortURL, error)
}

func (m *mockURLShortener) Shorten(ctx context.Context, longURL string) (*shortener.ShortURL, error) {
	return m.shortenFunc(ctx, longURL)
}

type mockShortURLStore struct {
	saveFunc func(ctx context.Context, rec *store.ShortenedURL) error
	listFunc func(ctx context.Context, userID string, limit int) ([]store.ShortenedURL, error)
}

func (m *mockShortURLStore) SaveShortenedURL(ctx context.Context, rec *store.ShortenedURL) error {
	return m.saveFunc(ctx, rec)
}

func (m *mockShortURLStore) ListShortenedURLs(ctx context.Context, userID string, limit int) ([]store.ShortenedURL, error) {
	return m.listFunc(ctx, userID, limit)
}

func TestShortenURL(t *testing.T) {
	t.Run("shortens and saves history", func(t *testing.T) {
		var saved *store.ShortenedURL
		client := &mockURLShortener{
			shortenFunc: func(_ context.Context, longURL string) (*shortener.ShortURL, error) {
				if longURL != "https://example.com/very/long" {
					t.Errorf("Unexpected URL: %s.", longURL)
				}
				return &shortener.ShortURL{URL: "https://cleanuri.com/pEqXje", Code: "pEqXje"}, nil
			},
		}
		history := &mockShortURLStore{
			saveFunc: func(_ context.Context, rec *store.ShortenedURL) error {
				saved = rec
				return nil
			},
		}

		response, err := shortenURL(context.Background(), client, history, testInput(t, ".surl https://example.com/very/long"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		if response == nil {
			t.Fatal("Response is nil.")
		}
		send, ok := response.Content.(*discordgo.MessageSend)
		if !ok {
			t.Fatalf("Expected embed response, got %#v.", response.Content)
		}
		if !strings.Contains(send.Embeds[0].Description, "https://cleanuri.com/pEqXje") {
			t.Errorf("Unexpected description: %s.", send.Embeds[0].Description)
		}

		if saved == nil {
			t.Fatal("History was not saved.")
		}
		if saved.UserID != "user-1" || saved.ShortCode != "pEqXje" {
			t.Errorf("Unexpected history record: %#v.", saved)
		}
	})

	t.Run("missing URL", func(t *testing.T) {
		response, err := shortenURL(context.Background(), &mockURLShortener{}, &mockShortURLStore{}, testInput(t, ".surl"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		if !strings.Contains(responseText(t, response), "Usage") {
			t.Errorf("Expected usage hint, got %s.", responseText(t, response))
		}
	})

	t.Run("invalid scheme", func(t *testing.T) {
		response, err := shortenURL(context.Background(), &mockURLShortener{}, &mockShortURLStore{}, testInput(t, ".surl ftp://example.com"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		if !strings.Contains(responseText(t, response), "valid URL") {
			t.Errorf("Expected validation hint, got %s.", responseText(t, response))
		}
	})

	t.Run("service rejection is surfaced", func(t *testing.T) {
		client := &mockURLShortener{
			shortenFunc: func(_ context.Context, _ string) (*shortener.ShortURL, error) {
				return nil, &shortener.APIError{Message: "URL is blacklisted"}
			},
		}

		response, err := shortenURL(context.Background(), client, &mockShortURLStore{}, testInput(t, ".surl https://blocked.test"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		if !strings.Contains(responseText(t, response), "URL is blacklisted") {
			t.Errorf("Expected service message, got %s.", responseText(t, response))
		}
	})

	t.Run("transport error hides details", func(t *testing.T) {
		client := &mockURLShortener{
			shortenFunc: func(_ context.Context, _ string) (*shortener.ShortURL, error) {
				return nil, errors.New("connection refused")
			},
		}

		response, err := shortenURL(context.Background(), client, &mockShortURLStore{}, testInput(t, ".surl https://example.com"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		text := responseText(t, response)
		if strings.Contains(text, "connection refused") {
			t.Errorf("Internal error leaked to the user: %s.", text)
		}
	})
}

func TestListURLs(t *testing.T) {
	t.Run("empty history", func(t *testing.T) {
		history := &mockShortURLStore{
			listFunc: func(_ context.Context, userID string, _ int) ([]store.ShortenedURL, error) {
				if userID != "user-1" {
					t.Errorf("Unexpected user: %s.", userID)
				}
				return nil, nil
			},
		}

		response, err := listURLs(context.Background(), history, testInput(t, ".myurls"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		if !strings.Contains(responseText(t, response), "haven't shortened") {
			t.Errorf("Unexpected response: %s.", responseText(t, response))
		}
	})

	t.Run("lists entries", func(t *testing.T) {
		history := &mockShortURLStore{
			listFunc: func(_ context.Context, _ string, _ int) ([]store.ShortenedURL, error) {
				return []store.ShortenedURL{
					{ShortURL: "https://cleanuri.com/abc", OriginalURL: "https://example.com/1"},
					{ShortURL: "https://cleanuri.com/def", OriginalURL: "https://example.com/2"},
				}, nil
			},
		}

		response, err := listURLs(context.Background(), history, testInput(t, ".myurls"))
		if err != nil {
			t.Fatalf("Unexpected error: %s.", err)
		}
		if response == nil {
			t.Fatal("Response is nil.")
		}
		send, ok := response.Content.(*discordgo.MessageSend)
		if !ok {
			t.Fatalf("Expected embed response, got %#v.", response.Content)
		}
		if !strings.Contains(send.Embeds[0].Description, "https://cleanuri.com/abc") {
			t.Errorf("Unexpected description: %s.", send.Embeds[0].Description)
		}
	})
}
