// Command channel-test sends one test notification through the configured
// channels so a deployment can be verified without waiting for real mail.
// With -dry-run the sends go to mock channels instead of live providers.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/channels"
	"github.com/example/mailwatch/internal/config"
	"github.com/example/mailwatch/internal/models"
)

func main() {
	var (
		kindList = flag.String("kind", "all", "comma separated channel kinds to test, or all")
		subject  = flag.String("subject", "mailwatch channel test", "test notification subject")
		body     = flag.String("body", "If you can read this, the channel works.", "test notification body")
		dryRun   = flag.Bool("dry-run", false, "use mock channels instead of real providers")
		timeout  = flag.Duration("timeout", 30*time.Second, "per channel send timeout")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	wanted := parseKinds(*kindList)
	if len(wanted) == 0 {
		logger.Fatal().Str("kind", *kindList).Msg("no valid channel kinds selected")
	}

	var selected []channels.Channel
	if *dryRun {
		for _, kind := range wanted {
			selected = append(selected, channels.NewMock(kind, logger))
		}
	} else {
		cfg, err := config.Load()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load config")
		}
		registry, err := channels.Build(cfg.Channels, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build channels")
		}
		for _, ch := range registry.Channels() {
			if kindSelected(wanted, ch.Kind()) {
				selected = append(selected, ch)
			}
		}
	}
	if len(selected) == 0 {
		logger.Fatal().Msg("no enabled channel matches the selection")
	}

	note := models.Notification{
		MessageID:  "channel-test",
		From:       "channel-test@localhost",
		Subject:    *subject,
		Body:       *body,
		ReceivedAt: time.Now().UTC(),
	}

	failures := 0
	for _, ch := range selected {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		err := ch.Send(ctx, note)
		cancel()

		if err != nil {
			failures++
			logger.Error().
				Str("channel", string(ch.Kind())).
				Str("reason", channels.Reason(err)).
				Err(err).
				Msg("channel test failed")
			continue
		}
		logger.Info().Str("channel", string(ch.Kind())).Msg("channel test passed")
	}

	if failures > 0 {
		logger.Error().Int("failures", failures).Msg("channel test finished with failures")
		os.Exit(1)
	}
	logger.Info().Int("channels", len(selected)).Msg("all channel tests passed")
}

func parseKinds(raw string) []models.ChannelKind {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" || raw == "all" {
		return models.AllKinds()
	}
	var kinds []models.ChannelKind
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kind := models.ChannelKind(part)
		if !kindSelected(models.AllKinds(), kind) {
			continue
		}
		kinds = append(kinds, kind)
	}
	return kinds
}

func kindSelected(wanted []models.ChannelKind, kind models.ChannelKind) bool {
	for _, w := range wanted {
		if w == kind {
			return true
		}
	}
	return false
}
