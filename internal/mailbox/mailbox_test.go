package mailbox_test

import (
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/mailbox"
)

func TestNewIMAPClientValidation(t *testing.T) {
	logger := zerolog.New(io.Discard)
	valid := mailbox.Config{
		Host:     "imap.example.com",
		Username: "watcher@example.com",
		Password: "secret",
	}

	if _, err := mailbox.NewIMAPClient(valid, logger); err != nil {
		t.Fatalf("unexpected error for valid config: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*mailbox.Config)
	}{
		{name: "missing host", mutate: func(c *mailbox.Config) { c.Host = " " }},
		{name: "missing username", mutate: func(c *mailbox.Config) { c.Username = "" }},
		{name: "missing password", mutate: func(c *mailbox.Config) { c.Password = "" }},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			if _, err := mailbox.NewIMAPClient(cfg, logger); err == nil {
				t.Fatalf("expected constructor error")
			}
		})
	}
}
