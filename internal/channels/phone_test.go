package channels_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/channels"
	"github.com/example/mailwatch/internal/channels/twilio"
	"github.com/example/mailwatch/internal/config"
	"github.com/example/mailwatch/internal/models"
)

// formCapture records the form bodies of every Twilio request.
type formCapture struct {
	URLs  []string
	Forms []url.Values
}

func newTwilioStub(t *testing.T, status int, respBody string) (*formCapture, *twilio.Client) {
	t.Helper()
	captured := &formCapture{}
	stub := httpStub(func(req *http.Request) (*http.Response, error) {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		form, err := url.ParseQuery(string(raw))
		if err != nil {
			t.Fatalf("parse form body: %v", err)
		}
		captured.URLs = append(captured.URLs, req.URL.String())
		captured.Forms = append(captured.Forms, form)
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client, err := twilio.NewClient("AC123", "token", zerolog.New(io.Discard),
		twilio.WithHTTPClient(stub),
		twilio.WithBaseURL("https://twilio.test"),
	)
	if err != nil {
		t.Fatalf("unexpected twilio client error: %v", err)
	}
	return captured, client
}

func phoneConfig(numbers ...string) config.PhoneChannelConfig {
	return config.PhoneChannelConfig{
		Enabled:    true,
		FromNumber: "+15550001111",
		ToNumbers:  numbers,
	}
}

func TestNewSMSValidation(t *testing.T) {
	logger := zerolog.New(io.Discard)
	_, client := newTwilioStub(t, http.StatusCreated, `{"sid":"SM1"}`)

	if _, err := channels.NewSMS(phoneConfig("+15550002222"), 0, nil, logger); !errors.Is(err, channels.ErrMissingConfig) {
		t.Fatalf("expected missing config for nil client, got %v", err)
	}

	cfg := phoneConfig("+15550002222")
	cfg.FromNumber = ""
	if _, err := channels.NewSMS(cfg, 0, client, logger); !errors.Is(err, channels.ErrMissingConfig) {
		t.Fatalf("expected missing config for empty from, got %v", err)
	}

	if _, err := channels.NewSMS(phoneConfig("not-a-number"), 0, client, logger); !errors.Is(err, channels.ErrMissingConfig) {
		t.Fatalf("expected missing config for invalid destination, got %v", err)
	}

	if _, err := channels.NewSMS(phoneConfig(), 0, client, logger); !errors.Is(err, channels.ErrMissingConfig) {
		t.Fatalf("expected missing config for no destinations, got %v", err)
	}
}

func TestSMSSendTruncatesAndDeliversAll(t *testing.T) {
	captured, client := newTwilioStub(t, http.StatusCreated, `{"sid":"SM1","status":"queued"}`)

	cfg := phoneConfig("+15550002222", "+15550003333")
	cfg.MaxLength = 24
	sms, err := channels.NewSMS(cfg, 1600, client, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	note := models.Notification{
		MessageID: "msg-1",
		Subject:   "Disk alert",
		Body:      "volume /data is above ninety percent capacity",
	}
	if err := sms.Send(context.Background(), note); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	if len(captured.Forms) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(captured.Forms))
	}
	wantBody := "Disk alert: volume /d..."
	for i, form := range captured.Forms {
		if got := form.Get("Body"); got != wantBody {
			t.Fatalf("request %d: expected body %q, got %q", i, wantBody, got)
		}
		if got := form.Get("From"); got != "+15550001111" {
			t.Fatalf("request %d: unexpected from %q", i, got)
		}
	}
	if got := captured.Forms[0].Get("To"); got != "+15550002222" {
		t.Fatalf("unexpected first recipient %q", got)
	}
	if got := captured.Forms[1].Get("To"); got != "+15550003333" {
		t.Fatalf("unexpected second recipient %q", got)
	}
}

func TestSMSSubjectOnlyWhenBodyBlank(t *testing.T) {
	captured, client := newTwilioStub(t, http.StatusCreated, `{"sid":"SM1"}`)

	sms, err := channels.NewSMS(phoneConfig("+15550002222"), 1600, client, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	note := models.Notification{MessageID: "msg-2", Subject: "Ping", Body: "  \n "}
	if err := sms.Send(context.Background(), note); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if got := captured.Forms[0].Get("Body"); got != "Ping" {
		t.Fatalf("expected subject-only body, got %q", got)
	}
}

func TestSMSFailureClassified(t *testing.T) {
	_, client := newTwilioStub(t, http.StatusBadRequest, `{"code":21211,"message":"Invalid 'To' Phone Number"}`)

	sms, err := channels.NewSMS(phoneConfig("+15550002222"), 1600, client, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	err = sms.Send(context.Background(), models.Notification{MessageID: "msg-3", Subject: "x"})
	if err == nil {
		t.Fatalf("expected send error")
	}
	if errors.Is(err, channels.ErrMissingConfig) {
		t.Fatalf("provider failure must not look like missing config: %v", err)
	}
	if got := channels.Reason(err); got != models.ReasonRejected {
		t.Fatalf("expected reason %s, got %s", models.ReasonRejected, got)
	}
}

func TestVoiceEscapesTwiml(t *testing.T) {
	captured, client := newTwilioStub(t, http.StatusCreated, `{"sid":"CA1"}`)

	voice, err := channels.NewVoice(phoneConfig("+15550002222"), client, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	note := models.Notification{MessageID: "msg-4", Subject: "Load <high> & rising"}
	if err := voice.Send(context.Background(), note); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	if !strings.HasSuffix(captured.URLs[0], "/Calls.json") {
		t.Fatalf("expected Calls.json endpoint, got %s", captured.URLs[0])
	}
	twiml := captured.Forms[0].Get("Twiml")
	want := "<Response><Say>Load &lt;high&gt; &amp; rising</Say></Response>"
	if twiml != want {
		t.Fatalf("expected twiml %q, got %q", want, twiml)
	}
}

func TestWhatsAppAddsWirePrefix(t *testing.T) {
	captured, client := newTwilioStub(t, http.StatusCreated, `{"sid":"WA1"}`)

	cfg := config.PhoneChannelConfig{
		Enabled:    true,
		FromNumber: "+15550001111",
		ToNumbers:  []string{"whatsapp:+15550002222", "+15550003333"},
	}
	whatsapp, err := channels.NewWhatsApp(cfg, client, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	note := models.Notification{MessageID: "msg-5", Subject: "hi"}
	if err := whatsapp.Send(context.Background(), note); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	if len(captured.Forms) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(captured.Forms))
	}
	for i, form := range captured.Forms {
		if got := form.Get("From"); got != "whatsapp:+15550001111" {
			t.Fatalf("request %d: unexpected from %q", i, got)
		}
		if got := form.Get("To"); !strings.HasPrefix(got, "whatsapp:+") {
			t.Fatalf("request %d: expected whatsapp prefix on %q", i, got)
		}
	}
}
