// Package discord provides a sarah.Adapter implementation for Discord.
//
// It bridges go-sarah's bot framework with Discord using discordgo for the
// underlying API integration: Discord message events become sarah.Input, and
// sarah.Output is dispatched as plain messages, rich embeds or emoji
// reactions. The package also exposes the proactive sending surface the rest
// of the bot uses for scan results and reminders.
package discord
