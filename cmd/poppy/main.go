package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
	"github.com/oklahomer/go-sarah/v4"

	"github.com/poppy-bot/poppy/internal/chat"
	"github.com/poppy-bot/poppy/internal/commands"
	"github.com/poppy-bot/poppy/internal/config"
	"github.com/poppy-bot/poppy/internal/discord"
	"github.com/poppy-bot/poppy/internal/scanner"
	"github.com/poppy-bot/poppy/internal/shortener"
	"github.com/poppy-bot/poppy/internal/store"
	"github.com/poppy-bot/poppy/internal/store/memory"
	"github.com/poppy-bot/poppy/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, cleanup, err := buildStore(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up storage: %s\n", err)
		os.Exit(1)
	}
	defer cleanup()

	// The session is shared between the adapter and the chat matcher, which
	// needs the bot's own user ID once the gateway is ready.
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create Discord session: %s\n", err)
		os.Exit(1)
	}

	discordConfig := discord.NewConfig()
	discordConfig.Token = cfg.DiscordToken
	session.Identify.Intents = discordConfig.Intents

	adapter, err := discord.NewAdapter(discordConfig, discord.WithSession(session))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create adapter: %s\n", err)
		os.Exit(1)
	}

	storage := sarah.NewUserContextStorage(sarah.NewCacheConfig())
	bot := sarah.NewBot(adapter, sarah.BotWithStorage(storage))
	sarah.RegisterBot(bot)

	engine := scanner.NewEngine(
		scanner.NewConfig(),
		repo,
		scanner.NewURLScanClient(cfg.URLScanAPIKey),
		scanner.NewVirusTotalClient(cfg.VirusTotalAPIKey),
	)
	commands.RegisterLinkGuard(ctx, engine, adapter, cfg.AllowedDomains)

	commands.RegisterShortener(shortener.NewClient(), repo)
	commands.RegisterModeration(repo, cfg.ModeratorIDs)
	commands.RegisterReminders(ctx, adapter)
	commands.RegisterGreetings(buildGreetings(cfg.GreetingImages))
	commands.RegisterCustomCommands(repo)

	chatConfig := chat.NewConfig()
	chatConfig.Persona = cfg.Persona
	responder := chat.NewResponder(chatConfig, cfg.OpenAIAPIKey)
	commands.RegisterChat(responder, func() string {
		if session.State != nil && session.State.User != nil {
			return session.State.User.ID
		}
		return ""
	})

	registerStatusRotation(adapter, cfg.Statuses)

	if err := sarah.Run(ctx, sarah.NewConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run: %s\n", err)
		os.Exit(1)
	}

	logger.Infof("Poppy is running. Press Ctrl+C to stop.")

	<-ctx.Done()

	logger.Infof("Shutting down...")
}

// buildStore connects to Postgres when a URL is configured and falls back to
// the in-memory store otherwise.
func buildStore(ctx context.Context, databaseURL string) (store.Store, func(), error) {
	if databaseURL == "" {
		logger.Warnf("DATABASE_URL is not set. Using the in-memory store; data is lost on restart.")
		return memory.New(), func() {}, nil
	}

	pool, err := postgres.NewDB(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to the database: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to prepare the schema: %w", err)
	}

	return postgres.NewRepository(pool), pool.Close, nil
}

func buildGreetings(images []string) map[string]commands.Greeting {
	greetings := commands.DefaultGreetings()
	if len(images) == 0 {
		return greetings
	}
	for key, g := range greetings {
		g.Images = images
		greetings[key] = g
	}
	return greetings
}

// registerStatusRotation rotates the bot's "watching" presence through the
// configured statuses.
func registerStatusRotation(adapter *discord.Adapter, statuses []string) {
	if len(statuses) == 0 {
		return
	}

	task := sarah.NewScheduledTaskPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("status_rotation").
		Func(func(_ context.Context) ([]*sarah.ScheduledTaskResult, error) {
			status := statuses[rand.Intn(len(statuses))]
			if err := adapter.UpdateStatus(status); err != nil {
				logger.Warnf("Failed to update status: %+v", err)
			}
			return nil, nil
		}).
		Schedule("@every 10m").
		MustBuild()
	sarah.RegisterScheduledTaskProps(task)
}
