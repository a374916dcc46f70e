package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
	"github.com/oklahomer/go-sarah/v4"

	"github.com/poppy-bot/poppy/internal/discord"
	"github.com/poppy-bot/poppy/internal/store"
)

var (
	ccPattern     = regexp.MustCompile(`^\.cc\b`)
	invokePattern = regexp.MustCompile(`^\.c\s+\S+`)
	// Command names are short lowercase handles so invocation stays predictable.
	commandNameRegex = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)
)

// RegisterCustomCommands registers the .cc management command and the .c
// invocation command backed by the guild's stored responses.
func RegisterCustomCommands(commands store.CustomCommandStore) {
	manage := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("customcommands").
		MatchPattern(ccPattern).
		Func(func(ctx context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			return manageCustomCommand(ctx, commands, input)
		}).
		Instruction("Input .cc add <name> <response>, .cc remove <name> or .cc list to manage this server's custom commands.").
		MustBuild()
	sarah.RegisterCommandProps(manage)

	invoke := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("custominvoke").
		MatchPattern(invokePattern).
		Func(func(ctx context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			return invokeCustomCommand(ctx, commands, input)
		}).
		Instruction("Input .c <name> to run one of this server's custom commands.").
		MustBuild()
	sarah.RegisterCommandProps(invoke)
}

func manageCustomCommand(ctx context.Context, commands store.CustomCommandStore, input sarah.Input) (*sarah.CommandResponse, error) {
	msg, ok := input.(*discord.Input)
	if !ok {
		return nil, nil
	}
	if msg.GuildID() == "" {
		return discord.NewResponse(input, "Custom commands only work inside a server, not in DMs!")
	}

	args := strings.Fields(sarah.StripMessage(ccPattern, input.Message()))
	if len(args) == 0 {
		return discord.NewResponse(input, "Usage: `.cc add <name> <response>`, `.cc remove <name>` or `.cc list`.")
	}

	switch args[0] {
	case "add":
		return addCustomCommand(ctx, commands, msg, args[1:])
	case "remove":
		return removeCustomCommand(ctx, commands, msg, args[1:])
	case "list":
		return listCustomCommands(ctx, commands, msg)
	default:
		return discord.NewResponse(input, fmt.Sprintf("I don't know the subcommand %q. Try `add`, `remove` or `list`.", args[0]))
	}
}

func addCustomCommand(ctx context.Context, commands store.CustomCommandStore, msg *discord.Input, args []string) (*sarah.CommandResponse, error) {
	if len(args) < 2 {
		return discord.NewResponse(msg, "Usage: `.cc add <name> <response>`.")
	}
	name := strings.ToLower(args[0])
	if !commandNameRegex.MatchString(name) {
		return discord.NewResponse(msg, "Command names must be 1-32 characters of lowercase letters, digits, `-` or `_`.")
	}

	cmd := &store.CustomCommand{
		GuildID:   msg.GuildID(),
		Name:      name,
		Response:  strings.Join(args[1:], " "),
		CreatorID: msg.SenderID(),
	}
	if err := commands.CreateCustomCommand(ctx, cmd); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return discord.NewResponse(msg, fmt.Sprintf("A command named `%s` already exists. Remove it first with `.cc remove %s`.", name, name))
		}
		logger.Errorf("Failed to create custom command %s: %+v", name, err)
		return discord.NewResponse(msg, "I couldn't save that command. Please try again later.")
	}

	return discord.NewResponse(msg, fmt.Sprintf("✨ Saved! Run it with `.c %s`.", name))
}

func removeCustomCommand(ctx context.Context, commands store.CustomCommandStore, msg *discord.Input, args []string) (*sarah.CommandResponse, error) {
	if len(args) != 1 {
		return discord.NewResponse(msg, "Usage: `.cc remove <name>`.")
	}
	name := strings.ToLower(args[0])

	if err := commands.DeleteCustomCommand(ctx, msg.GuildID(), name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return discord.NewResponse(msg, fmt.Sprintf("There's no command named `%s` on this server.", name))
		}
		logger.Errorf("Failed to delete custom command %s: %+v", name, err)
		return discord.NewResponse(msg, "I couldn't remove that command. Please try again later.")
	}

	return discord.NewResponse(msg, fmt.Sprintf("🗑️ Removed `%s`.", name))
}

func listCustomCommands(ctx context.Context, commands store.CustomCommandStore, msg *discord.Input) (*sarah.CommandResponse, error) {
	list, err := commands.ListCustomCommands(ctx, msg.GuildID())
	if err != nil {
		logger.Errorf("Failed to list custom commands: %+v", err)
		return discord.NewResponse(msg, "I couldn't fetch the command list. Please try again later.")
	}
	if len(list) == 0 {
		return discord.NewResponse(msg, "This server has no custom commands yet. Create one with `.cc add <name> <response>`!")
	}

	lines := make([]string, 0, len(list))
	for _, c := range list {
		lines = append(lines, fmt.Sprintf("`.c %s` — used %d time(s)", c.Name, c.UsageCount))
	}

	return discord.NewResponse(msg, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       fmt.Sprintf("Custom commands (%d)", len(list)),
				Description: strings.Join(lines, "\n"),
				Color:       embedColor,
			},
		},
	})
}

func invokeCustomCommand(ctx context.Context, commands store.CustomCommandStore, input sarah.Input) (*sarah.CommandResponse, error) {
	msg, ok := input.(*discord.Input)
	if !ok {
		return nil, nil
	}
	if msg.GuildID() == "" {
		return nil, nil
	}

	args := strings.Fields(input.Message())
	if len(args) < 2 {
		return nil, nil
	}
	name := strings.ToLower(args[1])

	cmd, err := commands.GetCustomCommand(ctx, msg.GuildID(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return discord.NewResponse(input, fmt.Sprintf("There's no command named `%s` here. See `.cc list`.", name))
		}
		logger.Errorf("Failed to look up custom command %s: %+v", name, err)
		return discord.NewResponse(input, "Something went wrong running that command. Please try again later.")
	}

	if err := commands.IncrementCommandUsage(ctx, msg.GuildID(), name); err != nil {
		// The response still goes out; the counter is cosmetic.
		logger.Errorf("Failed to bump usage for %s: %+v", name, err)
	}

	return discord.NewResponse(input, cmd.Response)
}
