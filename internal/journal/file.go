package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

const writerBufferSize = 64 * 1024

// File wraps Memory and appends every entry as one JSON line so operators
// can inspect what a run delivered. The file is truncated at open: the
// journal never carries state across restarts.
type File struct {
	*Memory

	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
}

type runHeader struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
}

// NewFile opens (and truncates) the journal file at path and writes a run
// header line identifying this process run.
func NewFile(path, runID string) (*File, error) {
	handle, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	writer := bufio.NewWriterSize(handle, writerBufferSize)
	journal := &File{
		Memory:  NewMemory(),
		file:    handle,
		writer:  writer,
		encoder: json.NewEncoder(writer),
	}

	if runID != "" {
		header := runHeader{RunID: runID, StartedAt: time.Now().UTC()}
		if err := journal.encoder.Encode(header); err != nil {
			_ = handle.Close()
			return nil, fmt.Errorf("journal: write run header: %w", err)
		}
	}

	return journal, nil
}

// Record stores the outcome in memory and appends it to the file.
func (f *File) Record(entry Entry) error {
	if err := f.Memory.Record(entry); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.encoder.Encode(entry); err != nil {
		return fmt.Errorf("journal: append entry: %w", err)
	}
	return nil
}

// Flush forces buffered entries to disk.
func (f *File) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("journal: flush: %w", err)
	}
	return nil
}

// Close flushes and releases the file handle.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	if err := f.writer.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("journal: flush: %w", err))
	}
	if err := f.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("journal: close: %w", err))
	}
	return errors.Join(errs...)
}
