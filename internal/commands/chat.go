package commands

import (
	"context"
	"errors"

	"github.com/oklahomer/go-kasumi/logger"
	"github.com/oklahomer/go-sarah/v4"

	"github.com/poppy-bot/poppy/internal/chat"
	"github.com/poppy-bot/poppy/internal/discord"
)

// RegisterChat registers the persona responder, which answers any message that
// mentions the bot. botID must return the bot's own user ID; it is called per
// message because the ID is only known once the gateway session is ready.
func RegisterChat(responder *chat.Responder, botID func() string) {
	props := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("chat").
		MatchFunc(func(input sarah.Input) bool {
			msg, ok := input.(*discord.Input)
			if !ok {
				return false
			}
			id := botID()
			return id != "" && msg.Mentions(id)
		}).
		Func(func(ctx context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			return replyToMention(ctx, responder, botID(), input)
		}).
		Instruction("Mention me with a message and I'll chat with you!").
		MustBuild()
	sarah.RegisterCommandProps(props)
}

func replyToMention(ctx context.Context, responder *chat.Responder, botID string, input sarah.Input) (*sarah.CommandResponse, error) {
	msg, ok := input.(*discord.Input)
	if !ok {
		return nil, nil
	}

	text := discord.StripMention(input.Message(), botID)
	if text == "" {
		return discord.NewResponse(input, "Hey there! What's up? 💖")
	}

	reply, err := responder.Reply(ctx, string(msg.ChannelID()), msg.SenderID(), msg.SenderName(), text)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrCooldown):
			// Too chatty; stay quiet rather than scold.
			return nil, nil
		case errors.Is(err, chat.ErrDisabled):
			return nil, nil
		default:
			logger.Errorf("Chat reply failed for %s: %+v", msg.SenderID(), err)
			return discord.NewResponse(input, "My brain glitched for a second there. 😵 Try me again in a moment!")
		}
	}

	return discord.NewResponse(input, reply)
}
