package commands

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
	"github.com/oklahomer/go-sarah/v4"

	"github.com/poppy-bot/poppy/internal/discord"
	"github.com/poppy-bot/poppy/internal/scanner"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>]+`)

// VerdictChecker resolves the safety verdict for a URL. *scanner.Engine
// satisfies it.
type VerdictChecker interface {
	CheckURL(ctx context.Context, target string) scanner.Verdict
}

// linkGuard watches every message for URLs outside the allow-list and checks
// them in the background. A scan can take minutes, so the triggering message
// is never blocked on it; the outcome arrives later as a reaction or a
// warning message.
type linkGuard struct {
	ctx      context.Context
	checker  VerdictChecker
	notifier Notifier
	allowed  []string
}

// RegisterLinkGuard registers passive link scanning. The given context bounds
// the background scans; canceling it stops them on shutdown.
func RegisterLinkGuard(ctx context.Context, checker VerdictChecker, notifier Notifier, allowedDomains []string) {
	g := &linkGuard{
		ctx:      ctx,
		checker:  checker,
		notifier: notifier,
		allowed:  allowedDomains,
	}

	props := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("linkguard").
		MatchFunc(func(input sarah.Input) bool {
			return len(suspectURLs(input.Message(), g.allowed)) > 0
		}).
		Func(g.run).
		Instruction("Links posted in chat are scanned for malware automatically.").
		MustBuild()

	sarah.RegisterCommandProps(props)
}

func (g *linkGuard) run(_ context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
	msg, ok := input.(*discord.Input)
	if !ok {
		return nil, nil
	}

	for _, target := range suspectURLs(msg.Message(), g.allowed) {
		go g.scan(target, msg.ChannelID(), msg.Event.ID)
	}

	// The verdicts arrive asynchronously; nothing to reply with yet.
	return nil, nil
}

func (g *linkGuard) scan(target string, channelID discord.ChannelID, messageID string) {
	verdict := g.checker.CheckURL(g.ctx, target)

	switch verdict {
	case scanner.VerdictMalicious:
		g.notifier.SendMessage(g.ctx, sarah.NewOutputMessage(channelID, &discord.Reaction{
			MessageID: messageID,
			Emoji:     "⚠️",
		}))
		g.notifier.SendMessage(g.ctx, sarah.NewOutputMessage(channelID, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "⚠️ Hold up! That link looks dangerous",
					Description: "A link posted above was flagged as malicious:\n`" + target + "`\nPlease don't click it! 💔",
					Color:       0xED4245, // Discord red
				},
			},
		}))

	case scanner.VerdictSafe:
		g.notifier.SendMessage(g.ctx, sarah.NewOutputMessage(channelID, &discord.Reaction{
			MessageID: messageID,
			Emoji:     "✅",
		}))

	default:
		// unknown and error: neither warn nor vouch.
		logger.Debugf("Inconclusive verdict %q for %s. Staying quiet.", verdict, target)
	}
}

// suspectURLs extracts the URLs in the text that are not covered by the
// domain allow-list. Duplicates are collapsed so one message cannot trigger
// redundant scans of the same URL.
func suspectURLs(text string, allowedDomains []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, raw := range urlPattern.FindAllString(text, -1) {
		candidate := strings.TrimRight(raw, ".,;:!?)")
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		if !domainAllowed(candidate, allowedDomains) {
			out = append(out, candidate)
		}
	}
	return out
}

// domainAllowed reports whether the URL's host is one of the allowed domains
// or a subdomain of one.
func domainAllowed(rawURL string, allowedDomains []string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, domain := range allowedDomains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
