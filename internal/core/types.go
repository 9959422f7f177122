package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyFile is returned when the input holds no header line.
	ErrEmptyFile = errors.New("empty file")

	// ErrFileTooLarge is returned when the input exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupportedFile is returned for input types the loader cannot read.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrNoMapping blocks leaving the map phase with every column skipped.
	ErrNoMapping = errors.New("no column is mapped to a target field")

	// ErrWrongPhase is returned when an action is not valid in the job's
	// current phase.
	ErrWrongPhase = errors.New("action not allowed in current phase")
)

// Phase is a step of the import state machine. Phases only move forward
// one step at a time, except Back which moves exactly one step backward.
type Phase string

const (
	PhaseUpload    Phase = "upload"
	PhaseMap       Phase = "map"
	PhasePreview   Phase = "preview"
	PhaseImporting Phase = "importing"
	PhaseComplete  Phase = "complete"
)

// Table is the parsed form of an input file. Every row has exactly
// len(Headers) cells.
type Table struct {
	Headers []string
	Rows    []Row

	// Reconciled counts rows that were padded or truncated to the header
	// width.
	Reconciled int
}

// Row is one retained data row.
type Row struct {
	// Line is the 1-based line number in the source file.
	Line  int
	Cells []string
}

// Record is one lead built from a row by applying the mapping.
type Record struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone,omitempty"`
	Company string  `json:"company,omitempty"`
	Source  string  `json:"source"`
	Status  string  `json:"status"`
	Value   float64 `json:"value"`
	Notes   string  `json:"notes,omitempty"`
}

// Submitter sends one record to the backend. The import run calls it once
// per row, sequentially.
type Submitter interface {
	Submit(ctx context.Context, rec Record) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, rec Record) error

func (f SubmitterFunc) Submit(ctx context.Context, rec Record) error { return f(ctx, rec) }

// RowError is one entry in the bounded error log.
type RowError struct {
	// Line is the 1-based file line the row came from.
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) String() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}

// Progress is a snapshot of a running import.
type Progress struct {
	Phase     Phase
	Total     int
	Processed int
	Succeeded int
	Failed    int
}

// Fraction returns Processed/Total. An empty run reads 0 until it is
// complete and 1 after.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		if p.Phase == PhaseComplete {
			return 1
		}
		return 0
	}
	return float64(p.Processed) / float64(p.Total)
}

// Percent returns the progress as a percentage (0-100).
func (p Progress) Percent() int {
	if p.Total == 0 {
		if p.Phase == PhaseComplete {
			return 100
		}
		return 0
	}
	return (p.Processed * 100) / p.Total
}

// ProgressCallback is called after every processed row.
type ProgressCallback func(Progress)

// Summary is the final result of an import run.
type Summary struct {
	JobID     string        `json:"jobId"`
	FileName  string        `json:"fileName"`
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Errors    []RowError    `json:"errors"`
	Cancelled bool          `json:"cancelled"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}
