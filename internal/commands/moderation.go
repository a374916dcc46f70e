package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
	"github.com/oklahomer/go-sarah/v4"

	"github.com/poppy-bot/poppy/internal/discord"
	"github.com/poppy-bot/poppy/internal/store"
)

var (
	warnPattern      = regexp.MustCompile(`^\.warn\b`)
	warningsPattern  = regexp.MustCompile(`^\.warnings\b`)
	clearPattern     = regexp.MustCompile(`^\.clearwarnings\b`)
	userMentionRegex = regexp.MustCompile(`^<@!?(\d+)>$`)
)

// RegisterModeration registers the warning ledger commands. Only users listed
// in moderatorIDs may use them; resolving Discord permission flags is left to
// the server setup.
func RegisterModeration(warnings store.WarningStore, moderatorIDs []string) {
	warn := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("warn").
		MatchPattern(warnPattern).
		Func(func(ctx context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			return warnMember(ctx, warnings, moderatorIDs, input)
		}).
		Instruction("Input .warn @user <reason> to record a warning (moderators only).").
		MustBuild()
	sarah.RegisterCommandProps(warn)

	list := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("warnings").
		MatchPattern(warningsPattern).
		Func(func(ctx context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			return listMemberWarnings(ctx, warnings, moderatorIDs, input)
		}).
		Instruction("Input .warnings @user to list a member's warnings (moderators only).").
		MustBuild()
	sarah.RegisterCommandProps(list)

	clear := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("clearwarnings").
		MatchPattern(clearPattern).
		Func(func(ctx context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			return clearMemberWarnings(ctx, warnings, moderatorIDs, input)
		}).
		Instruction("Input .clearwarnings @user to clear a member's warnings (moderators only).").
		MustBuild()
	sarah.RegisterCommandProps(clear)
}

func isModerator(moderatorIDs []string, userID string) bool {
	for _, id := range moderatorIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// parseMention extracts the user ID from a leading <@id> or <@!id> token.
func parseMention(token string) (string, bool) {
	m := userMentionRegex.FindStringSubmatch(token)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func moderationTarget(pattern *regexp.Regexp, input sarah.Input) (msg *discord.Input, targetID string, rest []string, errResponse *sarah.CommandResponse) {
	msg, ok := input.(*discord.Input)
	if !ok {
		return nil, "", nil, nil
	}

	args := strings.Fields(sarah.StripMessage(pattern, input.Message()))
	if len(args) == 0 {
		resp, _ := discord.NewResponse(input, "You need to mention a user, like `@user`.")
		return nil, "", nil, resp
	}
	targetID, ok = parseMention(args[0])
	if !ok {
		resp, _ := discord.NewResponse(input, "That doesn't look like a user mention. Try `@user`.")
		return nil, "", nil, resp
	}
	return msg, targetID, args[1:], nil
}

func warnMember(ctx context.Context, warnings store.WarningStore, moderatorIDs []string, input sarah.Input) (*sarah.CommandResponse, error) {
	msg, targetID, rest, errResp := moderationTarget(warnPattern, input)
	if errResp != nil || msg == nil {
		return errResp, nil
	}
	if !isModerator(moderatorIDs, msg.SenderID()) {
		return discord.NewResponse(input, "Sorry, only moderators can do that! 💅")
	}

	reason := strings.Join(rest, " ")
	if reason == "" {
		reason = "No reason given"
	}

	w := &store.Warning{
		GuildID:     msg.GuildID(),
		UserID:      targetID,
		ModeratorID: msg.SenderID(),
		Reason:      reason,
		CreatedAt:   time.Now(),
	}
	if err := warnings.AddWarning(ctx, w); err != nil {
		logger.Errorf("Failed to record warning: %+v", err)
		return discord.NewResponse(input, "I couldn't save that warning. Please try again later.")
	}

	existing, err := warnings.ListWarnings(ctx, msg.GuildID(), targetID)
	if err != nil {
		logger.Errorf("Failed to count warnings: %+v", err)
	}

	return discord.NewResponse(input, fmt.Sprintf("⚠️ Warned <@%s>: %s (warning #%d)", targetID, reason, len(existing)))
}

func listMemberWarnings(ctx context.Context, warnings store.WarningStore, moderatorIDs []string, input sarah.Input) (*sarah.CommandResponse, error) {
	msg, targetID, _, errResp := moderationTarget(warningsPattern, input)
	if errResp != nil || msg == nil {
		return errResp, nil
	}
	if !isModerator(moderatorIDs, msg.SenderID()) {
		return discord.NewResponse(input, "Sorry, only moderators can do that! 💅")
	}

	list, err := warnings.ListWarnings(ctx, msg.GuildID(), targetID)
	if err != nil {
		logger.Errorf("Failed to list warnings: %+v", err)
		return discord.NewResponse(input, "I couldn't fetch those warnings. Please try again later.")
	}
	if len(list) == 0 {
		return discord.NewResponse(input, fmt.Sprintf("<@%s> has a clean slate! ✨", targetID))
	}

	fields := make([]*discordgo.MessageEmbedField, 0, len(list))
	for i, w := range list {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("#%d — %s", i+1, w.CreatedAt.Format("2006-01-02")),
			Value: fmt.Sprintf("%s (by <@%s>)", w.Reason, w.ModeratorID),
		})
	}

	return discord.NewResponse(input, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:  fmt.Sprintf("Warnings for member (%d total)", len(list)),
				Color:  embedColor,
				Fields: fields,
			},
		},
	})
}

func clearMemberWarnings(ctx context.Context, warnings store.WarningStore, moderatorIDs []string, input sarah.Input) (*sarah.CommandResponse, error) {
	msg, targetID, _, errResp := moderationTarget(clearPattern, input)
	if errResp != nil || msg == nil {
		return errResp, nil
	}
	if !isModerator(moderatorIDs, msg.SenderID()) {
		return discord.NewResponse(input, "Sorry, only moderators can do that! 💅")
	}

	n, err := warnings.ClearWarnings(ctx, msg.GuildID(), targetID)
	if err != nil {
		logger.Errorf("Failed to clear warnings: %+v", err)
		return discord.NewResponse(input, "I couldn't clear those warnings. Please try again later.")
	}

	return discord.NewResponse(input, fmt.Sprintf("🧹 Cleared %d warning(s) for <@%s>.", n, targetID))
}
