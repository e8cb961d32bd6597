// Package progress implements the append-only progress log: one structured
// JSON event per line, written once and never mutated. Run and slice state is
// always derived by replaying the log (or by scanning outputs), never stored
// as mutable counters.
package progress

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"vidsweep/internal/fileutil"
)

// Event types emitted by the slice executor.
const (
	EventSliceStart            = "slice_start"
	EventSliceDone             = "slice_done"
	EventSampleStart           = "sample_start"
	EventSkipExisting          = "skip_existing"
	EventSkipMissingInput      = "skip_missing_input"
	EventSkipMissingCheckpoint = "skip_missing_checkpoint"
	EventHeartbeat             = "heartbeat"
	EventDone                  = "done"
	EventFailed                = "failed"
	EventMissingOutput         = "missing_output"
)

// Event is one timestamped lifecycle record.
type Event struct {
	TS            time.Time `json:"ts"`
	Event         string    `json:"event"`
	RunID         string    `json:"run_id,omitempty"`
	Model         string    `json:"model,omitempty"`
	Dataset       string    `json:"dataset,omitempty"`
	Task          string    `json:"task,omitempty"`
	SampleID      string    `json:"sample_id,omitempty"`
	ElapsedSec    float64   `json:"elapsed_seconds,omitempty"`
	OutputPresent *bool     `json:"output_present,omitempty"`
	LogPath       string    `json:"log_path,omitempty"`
	Detail        string    `json:"detail,omitempty"`
}

// Writer appends events to a progress log file. Safe for use from the
// executor's heartbeat goroutine alongside the main loop.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	path string
}

// NewWriter opens (appending) the progress log at path.
func NewWriter(path string) (*Writer, error) {
	if err := fileutil.EnsureParent(path); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)
	return &Writer{file: file, enc: enc, path: path}, nil
}

// Path returns the log file location.
func (w *Writer) Path() string { return w.path }

// Write appends one event, stamping the time when unset.
func (w *Writer) Write(event Event) error {
	if event.TS.IsZero() {
		event.TS = time.Now().UTC()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(event)
}

// Close releases the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Counters aggregates a replayed log for one slice or a whole run.
type Counters struct {
	Attempted           int
	Done                int
	Failed              int
	SkippedExisting     int
	SkippedMissingInput int
	MissingOutputs      int
	Heartbeats          int
}

// Replay reads a progress log and derives counters by aggregation. Lines that
// fail to decode are ignored; the log may be mid-write by another process.
func Replay(path string) (Counters, error) {
	events, err := ReadEvents(path)
	if err != nil {
		return Counters{}, err
	}
	return Aggregate(events), nil
}

// Aggregate folds events into counters.
func Aggregate(events []Event) Counters {
	var c Counters
	for _, event := range events {
		switch event.Event {
		case EventSampleStart:
			c.Attempted++
		case EventDone:
			c.Done++
		case EventFailed:
			c.Failed++
		case EventSkipExisting:
			c.SkippedExisting++
		case EventSkipMissingInput:
			c.SkippedMissingInput++
		case EventMissingOutput:
			c.MissingOutputs++
		case EventHeartbeat:
			c.Heartbeats++
		}
	}
	return c
}

// ReadEvents decodes every parseable event line of a progress log.
func ReadEvents(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Tail returns the last n raw lines of the log, oldest first.
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ring, nil
}
