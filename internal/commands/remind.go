package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oklahomer/go-sarah/v4"
	"github.com/rs/xid"

	"github.com/poppy-bot/poppy/internal/discord"
)

var (
	remindPattern = regexp.MustCompile(`^\.remind\b`)
	timerPattern  = regexp.MustCompile(`^\.timer\b`)

	dayWeekSuffix = regexp.MustCompile(`^(\d+)([dw])$`)
)

const maxReminderDuration = 7 * 24 * time.Hour

var errDurationTooLong = errors.New("duration exceeds the reminder limit")

// parseReminderDuration parses durations like 90s, 10m, 2h plus the d and w
// suffixes time.ParseDuration does not know.
func parseReminderDuration(s string) (time.Duration, error) {
	if m := dayWeekSuffix.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, err
		}
		unit := 24 * time.Hour
		if m[2] == "w" {
			unit = 7 * 24 * time.Hour
		}
		d := time.Duration(n) * unit
		if d > maxReminderDuration {
			return 0, errDurationTooLong
		}
		return d, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("duration must be positive")
	}
	if d > maxReminderDuration {
		return 0, errDurationTooLong
	}
	return d, nil
}

// RegisterReminders registers the .remind and .timer commands. Reminders are
// in-process only; a restart drops pending ones.
func RegisterReminders(ctx context.Context, notifier Notifier) {
	remind := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("remind").
		MatchPattern(remindPattern).
		Func(func(_ context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			return setReminder(ctx, notifier, input)
		}).
		Instruction("Input .remind <duration> <text> to get pinged later, e.g. .remind 30m hydrate.").
		MustBuild()
	sarah.RegisterCommandProps(remind)

	timer := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("timer").
		MatchPattern(timerPattern).
		Func(func(_ context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			return setTimer(ctx, notifier, input)
		}).
		Instruction("Input .timer <duration> to start a countdown, e.g. .timer 5m.").
		MustBuild()
	sarah.RegisterCommandProps(timer)
}

func setReminder(ctx context.Context, notifier Notifier, input sarah.Input) (*sarah.CommandResponse, error) {
	msg, ok := input.(*discord.Input)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(sarah.StripMessage(remindPattern, input.Message()))
	if len(args) < 2 {
		return discord.NewResponse(input, "Usage: `.remind <duration> <text>`, e.g. `.remind 30m take a break`")
	}

	d, err := parseReminderDuration(args[0])
	if err != nil {
		if errors.Is(err, errDurationTooLong) {
			return discord.NewResponse(input, "That's too far out! I can remind you up to a week ahead.")
		}
		return discord.NewResponse(input, "I couldn't read that duration. Try something like `30m`, `2h` or `1d`.")
	}

	text := strings.Join(args[1:], " ")
	id := xid.New().String()
	channelID := msg.ChannelID()
	senderID := msg.SenderID()

	schedule(ctx, d, func() {
		notifier.SendMessage(ctx, sarah.NewOutputMessage(channelID, fmt.Sprintf("⏰ <@%s> reminder: %s", senderID, text)))
	})

	return discord.NewResponse(input, fmt.Sprintf("Gotchu! I'll remind you in %s 💖 (id: %s)", d, id))
}

func setTimer(ctx context.Context, notifier Notifier, input sarah.Input) (*sarah.CommandResponse, error) {
	msg, ok := input.(*discord.Input)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(sarah.StripMessage(timerPattern, input.Message()))
	if len(args) != 1 {
		return discord.NewResponse(input, "Usage: `.timer <duration>`, e.g. `.timer 5m`")
	}

	d, err := parseReminderDuration(args[0])
	if err != nil {
		if errors.Is(err, errDurationTooLong) {
			return discord.NewResponse(input, "That's too long for a timer! Keep it under a week.")
		}
		return discord.NewResponse(input, "I couldn't read that duration. Try something like `90s` or `5m`.")
	}

	channelID := msg.ChannelID()
	senderID := msg.SenderID()

	schedule(ctx, d, func() {
		notifier.SendMessage(ctx, sarah.NewOutputMessage(channelID, fmt.Sprintf("⏳ <@%s> time's up!", senderID)))
	})

	return discord.NewResponse(input, fmt.Sprintf("Timer set for %s! ⏳", d))
}

// schedule fires fn after d unless the context is canceled first.
func schedule(ctx context.Context, d time.Duration, fn func()) {
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			fn()
		case <-ctx.Done():
		}
	}()
}
