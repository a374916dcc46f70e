// Package commands registers Poppy's chat commands with go-sarah: the link
// guard that feeds the URL verdict engine, the URL shortener, moderation
// warnings, reminders, greetings, guild custom commands and the persona
// responder.
package commands

import (
	"context"

	"github.com/oklahomer/go-sarah/v4"
)

// Notifier delivers messages outside a command's request/response cycle,
// e.g. scan results and reminders that resolve long after the triggering
// message. *discord.Adapter satisfies it.
type Notifier interface {
	SendMessage(ctx context.Context, output sarah.Output)
}

const embedColor = 0x5865F2 // Discord blurple
