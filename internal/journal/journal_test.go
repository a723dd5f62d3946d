package journal_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/example/mailwatch/internal/journal"
	"github.com/example/mailwatch/internal/models"
)

func TestMemoryLookupAndRecord(t *testing.T) {
	j := journal.NewMemory()

	if _, ok := j.Lookup("101", models.KindSlack); ok {
		t.Fatalf("expected no entry before recording")
	}

	entry := journal.Entry{
		MessageID: "101",
		Channel:   models.KindSlack,
		Outcome:   models.OutcomeFailed,
		Reason:    models.ReasonRateLimited,
		At:        time.Now(),
	}
	if err := j.Record(entry); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}

	outcome, ok := j.Lookup("101", models.KindSlack)
	if !ok || outcome != models.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %q ok=%v", outcome, ok)
	}

	// a later success for the same pair replaces the failure
	entry.Outcome = models.OutcomeSent
	if err := j.Record(entry); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}
	outcome, ok = j.Lookup("101", models.KindSlack)
	if !ok || outcome != models.OutcomeSent {
		t.Fatalf("expected sent outcome after replacement, got %q ok=%v", outcome, ok)
	}

	if _, ok := j.Lookup("101", models.KindDiscord); ok {
		t.Fatalf("expected channel isolation in lookups")
	}
	if j.Len() != 1 {
		t.Fatalf("expected one recorded pair, got %d", j.Len())
	}
}

func TestMemoryConcurrentRecords(t *testing.T) {
	j := journal.NewMemory()

	var wg sync.WaitGroup
	for _, kind := range models.AllKinds() {
		wg.Add(1)
		go func(kind models.ChannelKind) {
			defer wg.Done()
			_ = j.Record(journal.Entry{MessageID: "7", Channel: kind, Outcome: models.OutcomeSent})
		}(kind)
	}
	wg.Wait()

	if j.Len() != len(models.AllKinds()) {
		t.Fatalf("expected %d pairs, got %d", len(models.AllKinds()), j.Len())
	}
}

func TestFileAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	j, err := journal.NewFile(path, "run-1")
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}

	entries := []journal.Entry{
		{MessageID: "11", Channel: models.KindDiscord, Outcome: models.OutcomeSent, At: time.Now().UTC()},
		{MessageID: "11", Channel: models.KindSlack, Outcome: models.OutcomeFailed, Reason: models.ReasonNetwork, At: time.Now().UTC()},
	}
	for _, entry := range entries {
		if err := j.Record(entry); err != nil {
			t.Fatalf("unexpected record error: %v", err)
		}
	}

	if outcome, ok := j.Lookup("11", models.KindDiscord); !ok || outcome != models.OutcomeSent {
		t.Fatalf("expected memory lookup through file journal, got %q ok=%v", outcome, ok)
	}

	if err := j.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening journal file: %v", err)
	}
	defer file.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line is not valid json: %v", err)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanning journal file: %v", err)
	}

	if len(lines) != 3 {
		t.Fatalf("expected header plus two entries, got %d lines", len(lines))
	}
	if lines[0]["run_id"] != "run-1" {
		t.Fatalf("expected run header first, got %v", lines[0])
	}
	if lines[1]["channel"] != "discord" || lines[1]["outcome"] != "sent" {
		t.Fatalf("unexpected first entry: %v", lines[1])
	}
	if lines[2]["reason"] != "network_error" {
		t.Fatalf("unexpected second entry: %v", lines[2])
	}
}

func TestFileTruncatesOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	first, err := journal.NewFile(path, "run-1")
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	if err := first.Record(journal.Entry{MessageID: "1", Channel: models.KindTeams, Outcome: models.OutcomeSent}); err != nil {
		t.Fatalf("unexpected record error: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	second, err := journal.NewFile(path, "run-2")
	if err != nil {
		t.Fatalf("unexpected reopen error: %v", err)
	}

	// the previous run's outcomes are gone from memory and from disk
	if _, ok := second.Lookup("1", models.KindTeams); ok {
		t.Fatalf("expected journal to start empty after reopen")
	}
	if err := second.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading journal file: %v", err)
	}
	var header map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &header); err != nil {
		t.Fatalf("expected a single run header line, got %q: %v", string(data), err)
	}
	if header["run_id"] != "run-2" {
		t.Fatalf("expected only the new run header, got %v", header)
	}
}
