package commands

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-sarah/v4"

	"github.com/poppy-bot/poppy/internal/discord"
)

var greetPattern = regexp.MustCompile(`^\.(gm|ge|gn)\b`)

// Greeting is one greeting command: a message template and the image URLs to
// pick from. {user} in the message is replaced with the sender's name.
type Greeting struct {
	Message string
	Images  []string
}

// DefaultGreetings returns the stock greeting set without images. Image URLs
// come from configuration.
func DefaultGreetings() map[string]Greeting {
	return map[string]Greeting{
		"gm": {Message: "Good morning, {user}! Rise and shine ☀️"},
		"ge": {Message: "Good evening, {user}! Hope your day was lovely 🌆"},
		"gn": {Message: "Good night, {user}! Sweet dreams 🌙"},
	}
}

// RegisterGreetings registers the .gm, .ge and .gn commands.
func RegisterGreetings(greetings map[string]Greeting) {
	props := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("greeting").
		MatchPattern(greetPattern).
		Func(func(_ context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			return greet(greetings, input)
		}).
		Instruction("Input .gm, .ge or .gn for a greeting.").
		MustBuild()
	sarah.RegisterCommandProps(props)
}

func greet(greetings map[string]Greeting, input sarah.Input) (*sarah.CommandResponse, error) {
	msg, ok := input.(*discord.Input)
	if !ok {
		return nil, nil
	}

	m := greetPattern.FindStringSubmatch(input.Message())
	if m == nil {
		return nil, nil
	}
	g, ok := greetings[m[1]]
	if !ok {
		return nil, nil
	}

	text := personalize(g.Message, msg.SenderName())
	if len(g.Images) == 0 {
		return discord.NewResponse(input, text)
	}

	image := g.Images[rand.Intn(len(g.Images))]
	return discord.NewResponse(input, &discordgo.MessageSend{
		Content: text,
		Embeds: []*discordgo.MessageEmbed{
			{
				Color: embedColor,
				Image: &discordgo.MessageEmbedImage{URL: image},
			},
		},
	})
}

func personalize(template, userName string) string {
	if template == "" {
		return fmt.Sprintf("Hey %s!", userName)
	}
	return strings.ReplaceAll(template, "{user}", userName)
}
