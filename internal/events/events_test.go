package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/events"
	"github.com/example/mailwatch/internal/models"
)

type recordingSink struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (s *recordingSink) Emit(_ context.Context, event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type producerStub struct {
	mu      sync.Mutex
	topic   string
	key     []byte
	headers map[string][]byte
	payload []byte
	err     error
	calls   int
}

func (p *producerStub) PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.topic = topic
	p.key = key
	p.headers = headers
	p.payload = payload
	return p.err
}

func TestMultiDeliversToEverySink(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	multi := events.Multi{first, nil, second}

	event := models.Event{Type: models.EventCycleStarted, CycleID: "c1", Timestamp: time.Unix(0, 0).UTC()}
	if err := multi.Emit(context.Background(), event); err != nil {
		t.Fatalf("unexpected emit error: %v", err)
	}

	if first.count() != 1 || second.count() != 1 {
		t.Fatalf("expected every sink to receive the event")
	}
}

func TestMultiJoinsSinkErrors(t *testing.T) {
	failing := &recordingSink{err: errors.New("sink one down")}
	alsoFailing := &recordingSink{err: errors.New("sink two down")}
	healthy := &recordingSink{}
	multi := events.Multi{failing, healthy, alsoFailing}

	err := multi.Emit(context.Background(), models.Event{Type: models.EventCycleStarted})
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if !strings.Contains(err.Error(), "sink one down") || !strings.Contains(err.Error(), "sink two down") {
		t.Fatalf("expected both sink errors reported, got %v", err)
	}
	if healthy.count() != 1 {
		t.Fatalf("a failing sink must not block the healthy one")
	}
}

func TestKafkaSinkPublishesEvent(t *testing.T) {
	producer := &producerStub{}
	sink := events.NewKafkaSink(producer, "mailwatch.events", zerolog.Nop())
	if sink == nil {
		t.Fatalf("expected sink for non-nil producer")
	}

	handled := true
	event := models.Event{
		Type:      models.EventMessageDispatched,
		CycleID:   "c1",
		MessageID: "m1",
		Handled:   &handled,
		Timestamp: time.Unix(42, 0).UTC(),
	}
	if err := sink.Emit(context.Background(), event); err != nil {
		t.Fatalf("unexpected emit error: %v", err)
	}

	if producer.topic != "mailwatch.events" {
		t.Fatalf("unexpected topic %s", producer.topic)
	}
	if string(producer.key) != "m1" {
		t.Fatalf("expected message id as partition key, got %q", producer.key)
	}
	if got := string(producer.headers["content-type"]); got != "application/json" {
		t.Fatalf("unexpected content type header %q", got)
	}

	var decoded models.Event
	if err := json.Unmarshal(producer.payload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.Type != event.Type || decoded.MessageID != event.MessageID {
		t.Fatalf("unexpected payload %+v", decoded)
	}
	if decoded.Handled == nil || !*decoded.Handled {
		t.Fatalf("expected handled flag preserved")
	}
}

func TestKafkaSinkKeyFallsBackToCycle(t *testing.T) {
	producer := &producerStub{}
	sink := events.NewKafkaSink(producer, "mailwatch.events", zerolog.Nop())

	event := models.Event{Type: models.EventCycleFinished, CycleID: "c7"}
	if err := sink.Emit(context.Background(), event); err != nil {
		t.Fatalf("unexpected emit error: %v", err)
	}
	if string(producer.key) != "c7" {
		t.Fatalf("expected cycle id as partition key, got %q", producer.key)
	}
}

func TestKafkaSinkWithoutProducer(t *testing.T) {
	if sink := events.NewKafkaSink(nil, "mailwatch.events", zerolog.Nop()); sink != nil {
		t.Fatalf("expected nil sink for nil producer")
	}

	var sink *events.KafkaSink
	err := sink.Emit(context.Background(), models.Event{Type: models.EventCycleStarted})
	if !errors.Is(err, events.ErrProducerNotInitialised()) {
		t.Fatalf("expected producer-not-initialised error, got %v", err)
	}
}

func TestKafkaSinkWrapsPublishFailure(t *testing.T) {
	producer := &producerStub{err: errors.New("broker unreachable")}
	sink := events.NewKafkaSink(producer, "mailwatch.events", zerolog.Nop())

	err := sink.Emit(context.Background(), models.Event{Type: models.EventCycleStarted, CycleID: "c1"})
	if err == nil {
		t.Fatalf("expected publish error")
	}
	if !strings.Contains(err.Error(), "publish event") {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}

func TestLogSinkWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	sink := events.NewLogSink(zerolog.New(&buf))

	stats := models.CycleStats{CycleID: "c1", Seq: 3, Scanned: 2, Marked: 1}
	event := models.Event{Type: models.EventCycleFinished, CycleID: "c1", Stats: &stats}
	if err := sink.Emit(context.Background(), event); err != nil {
		t.Fatalf("unexpected emit error: %v", err)
	}

	line := buf.String()
	if !strings.Contains(line, `"event":"cycle_finished"`) {
		t.Fatalf("expected event type in log line, got %s", line)
	}
	if !strings.Contains(line, `"level":"info"`) {
		t.Fatalf("expected cycle summaries at info level, got %s", line)
	}
	if !strings.Contains(line, `"cycle_id":"c1"`) {
		t.Fatalf("expected cycle id in log line, got %s", line)
	}
}
