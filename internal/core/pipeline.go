package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/LeadSync/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Row outcomes reported to a RowObserver.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRejected  = "rejected"
	OutcomeSkipped   = "skipped"
)

// RowObserver receives one call per processed row.
type RowObserver interface {
	ObserveRow(outcome string)
}

// JobOptions configures a Job.
type JobOptions struct {
	// Separator is the field separator for delimited text.
	Separator rune

	// PreviewRows is how many mapped rows Preview returns (default: 5).
	PreviewRows int

	// ErrorLogSize bounds the retained error entries (default: 5).
	ErrorLogSize int

	Defaults Defaults

	// Limiter paces submissions. Nil submits as fast as the backend answers.
	Limiter *rate.Limiter

	// OnProgress is called after every processed row.
	OnProgress ProgressCallback

	Observer RowObserver
}

// Job is one import session:
//
//	upload -> map -> preview -> importing -> complete
//
// A Job is safe for concurrent use. Run holds the job in the importing
// phase, during which every other mutation fails with ErrWrongPhase.
type Job struct {
	mu   sync.Mutex
	opts JobOptions

	id       string
	phase    Phase
	fileName string
	table    *Table
	mappings []Mapping
	progress Progress
	errors   *ErrorLog
	summary  *Summary
}

// NewJob returns a job in the upload phase.
func NewJob(opts JobOptions) *Job {
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = 5
	}
	if opts.ErrorLogSize <= 0 {
		opts.ErrorLogSize = 5
	}
	if opts.Defaults == (Defaults{}) {
		opts.Defaults = DefaultDefaults()
	}
	j := &Job{opts: opts, errors: NewErrorLog(opts.ErrorLogSize)}
	j.resetLocked()
	return j
}

// ID identifies the current session. It changes on Reset.
func (j *Job) ID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.id
}

func (j *Job) Phase() Phase {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.phase
}

// Load parses text and seeds the mapping, moving upload -> map.
func (j *Job) Load(fileName, text string) error {
	t, err := NewParser(j.opts.Separator).Parse(text)
	if err != nil {
		return err
	}
	return j.LoadTable(fileName, t)
}

// LoadTable accepts an already-parsed table and moves to map. Loading a new
// file from any phase but importing starts a fresh session first.
func (j *Job) LoadTable(fileName string, t *Table) error {
	if t == nil || len(t.Headers) == 0 {
		return ErrEmptyFile
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase == PhaseImporting {
		return fmt.Errorf("load: %w (phase %s)", ErrWrongPhase, j.phase)
	}
	if j.phase != PhaseUpload {
		j.resetLocked()
	}

	j.fileName = fileName
	j.table = t
	j.mappings = Suggest(t.Headers)
	j.progress = Progress{Phase: PhaseMap, Total: len(t.Rows)}
	j.phase = PhaseMap
	return nil
}

// Table returns the parsed input, or nil before Load.
func (j *Job) Table() *Table {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.table
}

// FileName returns the name given to Load.
func (j *Job) FileName() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileName
}

// Mappings returns a copy of the current mapping.
func (j *Job) Mappings() []Mapping {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Mapping(nil), j.mappings...)
}

// SetMapping overrides the target of one column. Only valid in map.
func (j *Job) SetMapping(column int, target Field) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase != PhaseMap {
		return fmt.Errorf("set mapping: %w (phase %s)", ErrWrongPhase, j.phase)
	}
	if column < 0 || column >= len(j.mappings) {
		return fmt.Errorf("set mapping: column %d out of range", column)
	}
	j.mappings[column].Target = target
	return nil
}

// ApplyProfile overlays a saved profile onto the current mapping. It
// returns how many columns the profile matched. Only valid in map.
func (j *Job) ApplyProfile(p *Profile) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase != PhaseMap {
		return 0, fmt.Errorf("apply profile: %w (phase %s)", ErrWrongPhase, j.phase)
	}
	return p.Apply(j.mappings), nil
}

// ToPreview moves map -> preview once at least one column has a target.
func (j *Job) ToPreview() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase != PhaseMap {
		return fmt.Errorf("preview: %w (phase %s)", ErrWrongPhase, j.phase)
	}
	if !HasTarget(j.mappings) {
		return ErrNoMapping
	}
	j.phase = PhasePreview
	j.progress.Phase = PhasePreview
	return nil
}

// PreviewRow is one mapped row shown before import. Err is set for rows
// that would be skipped.
type PreviewRow struct {
	Line   int
	Record Record
	Err    error
}

// Preview maps the first rows without submitting anything.
func (j *Job) Preview() ([]PreviewRow, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase != PhasePreview {
		return nil, fmt.Errorf("preview: %w (phase %s)", ErrWrongPhase, j.phase)
	}

	n := min(j.opts.PreviewRows, len(j.table.Rows))
	out := make([]PreviewRow, 0, n)
	for _, row := range j.table.Rows[:n] {
		rec, err := BuildRecord(row, j.mappings, j.opts.Defaults)
		out = append(out, PreviewRow{Line: row.Line, Record: rec, Err: err})
	}
	return out, nil
}

// Back moves exactly one phase backward: preview -> map, or map -> upload
// (dropping the loaded file). Importing and complete cannot go back.
func (j *Job) Back() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.phase {
	case PhasePreview:
		j.phase = PhaseMap
		j.progress.Phase = PhaseMap
	case PhaseMap:
		j.resetLocked()
	default:
		return fmt.Errorf("back: %w (phase %s)", ErrWrongPhase, j.phase)
	}
	return nil
}

// Reset discards all state and starts a new session in upload. It is
// refused while a run is in progress.
func (j *Job) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase == PhaseImporting {
		return fmt.Errorf("reset: %w (phase %s)", ErrWrongPhase, j.phase)
	}
	j.resetLocked()
	return nil
}

func (j *Job) resetLocked() {
	j.id = uuid.NewString()
	j.phase = PhaseUpload
	j.fileName = ""
	j.table = nil
	j.mappings = nil
	j.progress = Progress{Phase: PhaseUpload}
	j.errors.Reset()
	j.summary = nil
}

// Progress returns a snapshot of the run.
func (j *Job) Progress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Errors returns the retained error entries, oldest first.
func (j *Job) Errors() []RowError {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.errors.Entries()
}

// Summary returns the final result once the job is complete.
func (j *Job) Summary() *Summary {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.summary
}

// Run submits every row in file order, one at a time, and moves
// preview -> importing -> complete.
//
// A row failure never stops the batch. ctx is checked before each
// submission; once it is done the run stops early and completes with the
// counts so far and Summary.Cancelled set.
func (j *Job) Run(ctx context.Context, sub Submitter) (*Summary, error) {
	j.mu.Lock()
	if j.phase != PhasePreview {
		phase := j.phase
		j.mu.Unlock()
		return nil, fmt.Errorf("run: %w (phase %s)", ErrWrongPhase, phase)
	}
	j.phase = PhaseImporting
	j.progress = Progress{Phase: PhaseImporting, Total: len(j.table.Rows)}
	j.errors.Reset()
	rows := j.table.Rows
	mappings := append([]Mapping(nil), j.mappings...)
	fileName := j.fileName
	jobID := j.id
	j.mu.Unlock()

	ctx = logging.WithJob(ctx, jobID)
	logger := logging.WithFields(ctx, "file", fileName, "rows", len(rows))
	logger.Info("import started")
	j.notify()

	start := time.Now()
	cancelled := false

	for _, row := range rows {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		rec, err := BuildRecord(row, mappings, j.opts.Defaults)
		if err != nil {
			j.record(row.Line, OutcomeSkipped, err)
			continue
		}

		if j.opts.Limiter != nil {
			if err := j.opts.Limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					cancelled = true
					break
				}
				// The wait would outlast the deadline; submit now and let
				// the deadline decide.
				logger.Debug("pacing skipped", "line", row.Line, "error", err)
			}
		}

		err = sub.Submit(ctx, rec)
		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// Interrupted mid-flight: the row's outcome is unknown.
			cancelled = true
			break
		}
		if err != nil {
			logger.Debug("row rejected", "line", row.Line, "error", err)
			j.record(row.Line, OutcomeRejected, err)
			continue
		}
		j.record(row.Line, OutcomeSucceeded, nil)
	}

	j.mu.Lock()
	j.phase = PhaseComplete
	j.progress.Phase = PhaseComplete
	j.summary = &Summary{
		JobID:     jobID,
		FileName:  fileName,
		Total:     j.progress.Total,
		Processed: j.progress.Processed,
		Succeeded: j.progress.Succeeded,
		Failed:    j.progress.Failed,
		Errors:    j.errors.Entries(),
		Cancelled: cancelled,
		StartedAt: start,
		Duration:  time.Since(start),
	}
	summary := *j.summary
	j.mu.Unlock()
	j.notify()

	logger.Info("import complete",
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Bool("cancelled", summary.Cancelled),
		slog.Duration("duration", summary.Duration),
	)
	return &summary, nil
}

// record accounts for one processed row and publishes progress.
func (j *Job) record(line int, outcome string, err error) {
	j.mu.Lock()
	j.progress.Processed++
	if err != nil {
		j.progress.Failed++
		j.errors.Add(RowError{Line: line, Reason: err.Error()})
	} else {
		j.progress.Succeeded++
	}
	j.mu.Unlock()

	if j.opts.Observer != nil {
		j.opts.Observer.ObserveRow(outcome)
	}
	j.notify()
}

func (j *Job) notify() {
	if j.opts.OnProgress == nil {
		return
	}
	j.opts.OnProgress(j.Progress())
}
