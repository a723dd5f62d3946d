package channels_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/channels"
	"github.com/example/mailwatch/internal/config"
	"github.com/example/mailwatch/internal/models"
)

func slackConfig(channel string) config.SlackConfig {
	return config.SlackConfig{
		Enabled: true,
		Token:   "xoxb-test",
		Channel: channel,
	}
}

func TestNewSlackValidation(t *testing.T) {
	logger := zerolog.New(io.Discard)

	cfg := slackConfig("#alerts")
	cfg.Token = ""
	if _, err := channels.NewSlack(cfg, logger); !errors.Is(err, channels.ErrMissingConfig) {
		t.Fatalf("expected missing config for empty token, got %v", err)
	}

	cfg = slackConfig("")
	if _, err := channels.NewSlack(cfg, logger); !errors.Is(err, channels.ErrMissingConfig) {
		t.Fatalf("expected missing config for empty channel, got %v", err)
	}
}

func TestSlackPostsMessage(t *testing.T) {
	captured, stub := captureJSON(t, 200, `{"ok":true}`)

	slack, err := channels.NewSlack(slackConfig("alerts"), zerolog.New(io.Discard),
		channels.WithSlackHTTPClient(stub),
		channels.WithSlackBaseURL("https://slack.test/api"),
	)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	note := models.Notification{MessageID: "msg-1", Subject: "Build failed", Body: "pipeline 42 is red"}
	if err := slack.Send(context.Background(), note); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	if captured.URL != "https://slack.test/api/chat.postMessage" {
		t.Fatalf("unexpected url %s", captured.URL)
	}
	if got := captured.Headers.Get("Authorization"); got != "Bearer xoxb-test" {
		t.Fatalf("unexpected auth header %q", got)
	}
	if got := captured.stringField(t, "channel"); got != "#alerts" {
		t.Fatalf("expected bare name to gain # prefix, got %q", got)
	}
	if got := captured.stringField(t, "text"); got != "*Build failed*\npipeline 42 is red" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestSlackChannelForms(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		want    string
	}{
		{name: "bare name", channel: "ops", want: "#ops"},
		{name: "hash name", channel: "#ops", want: "#ops"},
		{name: "user target", channel: "@oncall", want: "@oncall"},
		{name: "channel id", channel: "C0123456789", want: "C0123456789"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			captured, stub := captureJSON(t, 200, `{"ok":true}`)
			slack, err := channels.NewSlack(slackConfig(tc.channel), zerolog.New(io.Discard),
				channels.WithSlackHTTPClient(stub),
			)
			if err != nil {
				t.Fatalf("unexpected constructor error: %v", err)
			}
			if err := slack.Send(context.Background(), models.Notification{Subject: "x"}); err != nil {
				t.Fatalf("unexpected send error: %v", err)
			}
			if got := captured.stringField(t, "channel"); got != tc.want {
				t.Fatalf("expected channel %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSlackAPIErrors(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{name: "auth rejected", response: `{"ok":false,"error":"invalid_auth"}`, want: models.ReasonAuthRejected},
		{name: "rate limited", response: `{"ok":false,"error":"ratelimited"}`, want: models.ReasonRateLimited},
		{name: "other api error", response: `{"ok":false,"error":"channel_not_found"}`, want: models.ReasonRejected},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, stub := captureJSON(t, 200, tc.response)
			slack, err := channels.NewSlack(slackConfig("#alerts"), zerolog.New(io.Discard),
				channels.WithSlackHTTPClient(stub),
			)
			if err != nil {
				t.Fatalf("unexpected constructor error: %v", err)
			}

			err = slack.Send(context.Background(), models.Notification{Subject: "x"})
			if err == nil {
				t.Fatalf("expected send error")
			}
			if got := channels.Reason(err); got != tc.want {
				t.Fatalf("expected reason %s, got %s", tc.want, got)
			}
			if !strings.Contains(err.Error(), "slack") {
				t.Fatalf("expected slack context in error, got %v", err)
			}
		})
	}
}
