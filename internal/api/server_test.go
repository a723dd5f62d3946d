package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/api"
	"github.com/example/mailwatch/internal/dispatch"
	"github.com/example/mailwatch/internal/journal"
	"github.com/example/mailwatch/internal/models"
	"github.com/example/mailwatch/internal/scheduler"
)

type engineStub struct {
	state scheduler.State
	stats models.CycleStats
	ok    bool
}

func (e *engineStub) State() scheduler.State {
	return e.state
}

func (e *engineStub) LastCycle() (models.CycleStats, bool) {
	return e.stats, e.ok
}

func TestNewValidation(t *testing.T) {
	logger := zerolog.New(io.Discard)

	_, err := api.New(api.Config{}, api.Dependencies{Engine: &engineStub{}, Logger: logger})
	if err == nil {
		t.Fatalf("expected error for missing address")
	}

	_, err = api.New(api.Config{Addr: ":0"}, api.Dependencies{Logger: logger})
	if err == nil {
		t.Fatalf("expected error for missing engine")
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, api.Config{Addr: ":0"}, api.Dependencies{Engine: &engineStub{state: scheduler.StateIdle}})

	rec := doGet(t, server, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestStatusEndpoint(t *testing.T) {
	stats := models.CycleStats{CycleID: "c1", Seq: 4, Scanned: 3, Matched: 2, Marked: 2}
	engine := &engineStub{state: scheduler.StateScanning, stats: stats, ok: true}

	store := journal.NewMemory()
	if err := store.Record(journal.Entry{MessageID: "m1", Channel: models.KindSlack, Outcome: models.OutcomeSent}); err != nil {
		t.Fatalf("seed journal: %v", err)
	}

	server := newTestServer(t, api.Config{
		Addr:     ":0",
		Policy:   dispatch.PolicyAtLeastOne,
		Interval: 90 * time.Second,
		Kinds:    []models.ChannelKind{models.KindSlack, models.KindTelegram},
	}, api.Dependencies{Engine: engine, Journal: store})

	rec := doGet(t, server, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		State           string               `json:"state"`
		Policy          string               `json:"policy"`
		IntervalSeconds int                  `json:"check_interval_seconds"`
		Channels        []models.ChannelKind `json:"channels"`
		JournalEntries  int                  `json:"journal_entries"`
		LastCycle       *models.CycleStats   `json:"last_cycle"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode status: %v", err)
	}

	if body.State != "scanning" {
		t.Fatalf("unexpected state %s", body.State)
	}
	if body.Policy != "at-least-one-success" {
		t.Fatalf("unexpected policy %s", body.Policy)
	}
	if body.IntervalSeconds != 90 {
		t.Fatalf("unexpected interval %d", body.IntervalSeconds)
	}
	if len(body.Channels) != 2 || body.Channels[0] != models.KindSlack {
		t.Fatalf("unexpected channels %v", body.Channels)
	}
	if body.JournalEntries != 1 {
		t.Fatalf("unexpected journal count %d", body.JournalEntries)
	}
	if body.LastCycle == nil || body.LastCycle.Seq != 4 {
		t.Fatalf("unexpected last cycle %+v", body.LastCycle)
	}
}

func TestStatusOmitsLastCycleBeforeFirstRun(t *testing.T) {
	server := newTestServer(t, api.Config{Addr: ":0"}, api.Dependencies{Engine: &engineStub{state: scheduler.StateIdle}})

	rec := doGet(t, server, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "last_cycle") {
		t.Fatalf("expected last_cycle omitted, got %s", rec.Body.String())
	}
}

func TestHistoryEndpoint(t *testing.T) {
	history := dispatch.NewHistory(10)
	history.Add(dispatch.Summary{MessageID: "m1", Handled: true})
	history.Add(dispatch.Summary{MessageID: "m2", Handled: false})

	server := newTestServer(t, api.Config{Addr: ":0"}, api.Dependencies{
		Engine:  &engineStub{state: scheduler.StateIdle},
		History: history,
	})

	rec := doGet(t, server, "/api/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var summaries []dispatch.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(summaries) != 2 || summaries[0].MessageID != "m2" {
		t.Fatalf("expected newest first, got %v", summaries)
	}
}

func TestHistoryEmptyWithoutDependency(t *testing.T) {
	server := newTestServer(t, api.Config{Addr: ":0"}, api.Dependencies{Engine: &engineStub{state: scheduler.StateIdle}})

	rec := doGet(t, server, "/api/history")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestJournalEndpoint(t *testing.T) {
	store := journal.NewMemory()
	at := time.Unix(10, 0).UTC()
	entries := []journal.Entry{
		{MessageID: "m1", Channel: models.KindSlack, Outcome: models.OutcomeSent, At: at},
		{MessageID: "m1", Channel: models.KindSMS, Outcome: models.OutcomeFailed, Reason: models.ReasonNetwork, At: at.Add(time.Second)},
	}
	for _, entry := range entries {
		if err := store.Record(entry); err != nil {
			t.Fatalf("seed journal: %v", err)
		}
	}

	server := newTestServer(t, api.Config{Addr: ":0"}, api.Dependencies{
		Engine:  &engineStub{state: scheduler.StateIdle},
		Journal: store,
	})

	rec := doGet(t, server, "/api/journal")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var decoded []journal.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode journal: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected two entries, got %d", len(decoded))
	}
	if decoded[0].Channel != models.KindSlack || decoded[1].Reason != models.ReasonNetwork {
		t.Fatalf("unexpected entries %v", decoded)
	}
}

func newTestServer(t *testing.T, cfg api.Config, deps api.Dependencies) *api.Server {
	t.Helper()
	deps.Logger = zerolog.New(io.Discard)
	server, err := api.New(cfg, deps)
	if err != nil {
		t.Fatalf("unexpected server constructor error: %v", err)
	}
	return server
}

func doGet(t *testing.T, server *api.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}
