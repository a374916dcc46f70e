package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
	"github.com/oklahomer/go-sarah/v4"

	"github.com/poppy-bot/poppy/internal/discord"
	"github.com/poppy-bot/poppy/internal/shortener"
	"github.com/poppy-bot/poppy/internal/store"
)

// URLShortener shortens a long URL. *shortener.Client satisfies it.
type URLShortener interface {
	Shorten(ctx context.Context, longURL string) (*shortener.ShortURL, error)
}

var (
	surlPattern   = regexp.MustCompile(`^\.surl`)
	myurlsPattern = regexp.MustCompile(`^\.myurls`)
)

// RegisterShortener registers the .surl and .myurls commands.
func RegisterShortener(client URLShortener, history store.ShortURLStore) {
	shorten := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("surl").
		MatchPattern(surlPattern).
		Func(func(ctx context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			return shortenURL(ctx, client, history, input)
		}).
		Instruction("Input .surl <url> to shorten a long URL.").
		MustBuild()
	sarah.RegisterCommandProps(shorten)

	myurls := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("myurls").
		MatchPattern(myurlsPattern).
		Func(func(ctx context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			return listURLs(ctx, history, input)
		}).
		Instruction("Input .myurls to list the URLs you shortened recently.").
		MustBuild()
	sarah.RegisterCommandProps(myurls)
}

func shortenURL(ctx context.Context, client URLShortener, history store.ShortURLStore, input sarah.Input) (*sarah.CommandResponse, error) {
	longURL := strings.TrimSpace(sarah.StripMessage(surlPattern, input.Message()))
	if longURL == "" {
		return discord.NewResponse(input, "Hey! You need to give me a URL to shorten. Usage: `.surl <your_long_url>`")
	}
	if !strings.HasPrefix(longURL, "http://") && !strings.HasPrefix(longURL, "https://") {
		return discord.NewResponse(input, "Hmm, that doesn't look like a valid URL. Make sure it starts with `http://` or `https://`.")
	}

	short, err := client.Shorten(ctx, longURL)
	if err != nil {
		var apiErr *shortener.APIError
		if errors.As(err, &apiErr) {
			return discord.NewResponse(input, fmt.Sprintf("Sorry, I couldn't shorten that URL. The service said: %q", apiErr.Message))
		}
		logger.Errorf("Shortening failed for %s: %+v", longURL, err)
		return discord.NewResponse(input, "Yikes! Something went wrong while shortening that. Please try again in a bit. 🛠️")
	}

	msg, _ := input.(*discord.Input)
	if msg != nil {
		saveErr := history.SaveShortenedURL(ctx, &store.ShortenedURL{
			UserID:      msg.SenderID(),
			OriginalURL: longURL,
			ShortCode:   short.Code,
			ShortURL:    short.URL,
			CreatedAt:   time.Now(),
		})
		if saveErr != nil {
			// The short URL still works; history is best effort.
			logger.Errorf("Failed to save shortening history: %+v", saveErr)
		}
	}

	return discord.NewResponse(input, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       "🔗 Short URL Ready!",
				Description: fmt.Sprintf("Your shortened URL is: **%s**", short.URL),
				Color:       embedColor,
				Fields: []*discordgo.MessageEmbedField{
					{Name: "Original URL", Value: "`" + longURL + "`"},
				},
				Footer: &discordgo.MessageEmbedFooter{Text: "Use .myurls to see your history."},
			},
		},
	})
}

func listURLs(ctx context.Context, history store.ShortURLStore, input sarah.Input) (*sarah.CommandResponse, error) {
	msg, ok := input.(*discord.Input)
	if !ok {
		return nil, nil
	}

	entries, err := history.ListShortenedURLs(ctx, msg.SenderID(), 10)
	if err != nil {
		logger.Errorf("Failed to list shortening history for %s: %+v", msg.SenderID(), err)
		return discord.NewResponse(input, "Oops! I had trouble fetching your URL history. Please try again later. 😕")
	}
	if len(entries) == 0 {
		return discord.NewResponse(input, "You haven't shortened any URLs with me yet! Use `.surl <your_long_url>` to start. 😊")
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("**Short:** %s\n**Original:** `%s`", e.ShortURL, e.OriginalURL))
	}

	return discord.NewResponse(input, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       fmt.Sprintf("🔗 Your Shortened URLs, %s", msg.SenderName()),
				Description: strings.Join(lines, "\n\n"),
				Color:       embedColor,
			},
		},
	})
}
