// Package monitor renders a read-only live view of a run: the scheduler
// queue, per-slice completion, the tail of the newest progress log, and
// recent error markers from backend logs. It never mutates run state.
package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vidsweep/internal/logging"
	"vidsweep/internal/progress"
	"vidsweep/internal/reconcile"
	"vidsweep/internal/runs"
	"vidsweep/internal/scheduler"
)

// errorMarker matches the failure signatures backend logs actually produce:
// Python tracebacks, CUDA memory errors, and generic error lines.
var errorMarker = regexp.MustCompile(`(?i)(traceback \(most recent call last\)|cuda out of memory|error|exception)`)

var titleCaser = cases.Title(language.English)

// LogError is one error marker found in a backend log.
type LogError struct {
	Slice runs.Slice
	File  string
	Line  string
}

// Snapshot is one observation of the run.
type Snapshot struct {
	Time         time.Time
	Queue        []scheduler.JobStatus
	QueueError   error
	Statuses     []reconcile.SliceStatus
	ProgressPath string
	ProgressTail []string
	Errors       []LogError
}

// Monitor periodically snapshots and renders one run.
type Monitor struct {
	Run        runs.Run
	Slices     []runs.Slice
	Reconciler *reconcile.Reconciler
	Scheduler  scheduler.Client
	Filter     scheduler.Filter
	Interval   time.Duration
	TailLines  int
	ErrorLines int
	Out        io.Writer
	Logger     *slog.Logger
}

// Snapshot gathers the current view. Queue failures are recorded in the
// snapshot rather than aborting it; the filesystem view is still useful when
// the scheduler is unreachable.
func (m *Monitor) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Time: time.Now()}

	if m.Scheduler != nil {
		queue, err := m.Scheduler.Queue(ctx, m.Filter)
		if err != nil {
			snap.QueueError = err
		} else {
			snap.Queue = queue
		}
	}

	report, err := m.Reconciler.Reconcile(m.Slices)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Statuses = report.Statuses

	tailLines := m.TailLines
	if tailLines <= 0 {
		tailLines = 10
	}
	if path := progress.LatestLogPath(m.Run.Root); path != "" {
		snap.ProgressPath = path
		if lines, err := progress.Tail(path, tailLines); err == nil {
			snap.ProgressTail = lines
		}
	}

	errorLines := m.ErrorLines
	if errorLines <= 0 {
		errorLines = 10
	}
	snap.Errors = m.collectLogErrors(errorLines)
	return snap, nil
}

// collectLogErrors scans the most recently modified backend logs of every
// slice for error markers, newest first, up to the limit.
func (m *Monitor) collectLogErrors(limit int) []LogError {
	type logFile struct {
		slice   runs.Slice
		path    string
		modTime time.Time
	}
	var files []logFile
	for _, slice := range m.Slices {
		entries, err := os.ReadDir(m.Run.LogsDir(slice))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			files = append(files, logFile{
				slice:   slice,
				path:    filepath.Join(m.Run.LogsDir(slice), entry.Name()),
				modTime: info.ModTime(),
			})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	var found []LogError
	for _, file := range files {
		if len(found) >= limit {
			break
		}
		lines, err := progress.Tail(file.path, 40)
		if err != nil {
			continue
		}
		for _, line := range lines {
			if !errorMarker.MatchString(line) {
				continue
			}
			found = append(found, LogError{
				Slice: file.slice,
				File:  filepath.Base(file.path),
				Line:  strings.TrimSpace(line),
			})
			if len(found) >= limit {
				break
			}
		}
	}
	return found
}

// Render writes one snapshot as text.
func (m *Monitor) Render(w io.Writer, snap Snapshot) {
	fmt.Fprintf(w, "vidsweep monitor  run=%s  %s\n\n", m.Run.ID, snap.Time.Format("2006-01-02 15:04:05"))

	fmt.Fprintln(w, "Scheduler queue")
	switch {
	case m.Scheduler == nil:
		fmt.Fprintln(w, "  (no scheduler configured)")
	case snap.QueueError != nil:
		fmt.Fprintf(w, "  queue unavailable: %v\n", snap.QueueError)
	case len(snap.Queue) == 0:
		fmt.Fprintln(w, "  (empty)")
	default:
		rows := make([][]string, 0, len(snap.Queue))
		for _, job := range snap.Queue {
			rows = append(rows, []string{job.ID, job.Name, job.State, job.Partition, job.Elapsed, job.Reason})
		}
		fmt.Fprintln(w, RenderTable(
			[]string{"JOB", "NAME", "STATE", "PARTITION", "ELAPSED", "REASON"},
			rows,
		))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Slice completion")
	rows := make([][]string, 0, len(snap.Statuses))
	for _, status := range snap.Statuses {
		state := "pending"
		switch {
		case !status.Planned:
			state = "unplanned"
		case status.Complete():
			state = "complete"
		}
		rows = append(rows, []string{
			titleCaser.String(status.Slice.Model),
			status.Slice.Dataset,
			string(status.Slice.Task),
			fmt.Sprintf("%d/%d", status.Got, status.Expected),
			state,
		})
	}
	fmt.Fprintln(w, RenderTable([]string{"MODEL", "DATASET", "TASK", "GOT/EXPECTED", "STATE"}, rows, 4))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Progress log")
	if snap.ProgressPath == "" {
		fmt.Fprintln(w, "  (no progress log yet)")
	} else {
		fmt.Fprintf(w, "  %s\n", snap.ProgressPath)
		for _, line := range snap.ProgressTail {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Recent errors")
	if len(snap.Errors) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		for _, logError := range snap.Errors {
			fmt.Fprintf(w, "  %s %s: %s\n", logError.Slice, logError.File, logError.Line)
		}
	}
}

// Watch renders snapshots until the context is cancelled. On a terminal each
// refresh clears the screen; otherwise snapshots append.
func (m *Monitor) Watch(ctx context.Context) error {
	logger := logging.NewComponentLogger(m.Logger, "monitor")
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	interval := m.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	clearScreen := isTerminal(out)

	render := func() {
		snap, err := m.Snapshot(ctx)
		if err != nil {
			logger.Warn("snapshot failed", logging.Error(err))
			return
		}
		if clearScreen {
			fmt.Fprint(out, "\x1b[2J\x1b[H")
		}
		m.Render(out, snap)
	}

	render()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			render()
		}
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// RenderTable renders a rounded text table. Columns listed in numeric
// (1-based) are right-aligned; count columns read badly left-aligned. The
// reconcile command shares this renderer for its completion report.
func RenderTable(headers []string, rows [][]string, numeric ...int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		tw.AppendRow(r)
	}

	rightAligned := make(map[int]bool, len(numeric))
	for _, column := range numeric {
		rightAligned[column] = true
	}
	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if rightAligned[i+1] {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}
