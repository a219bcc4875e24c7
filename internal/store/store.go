package store

import (
	"context"
	"time"

	"github.com/ppiankov/steelminer/internal/model"
)

// RunStatus tracks the lifecycle of an extraction run
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one invocation of extract or batch
type Run struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	Settings   string     `json:"settings"`
	Documents  int        `json:"documents"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// MeasurementFilter selects stored measurements. Empty fields match all.
type MeasurementFilter struct {
	RunID  string
	Field  string
	Domain string
	Min    *float64
	Max    *float64
	Limit  int
}

// MeasurementRow is one stored measurement with its document
type MeasurementRow struct {
	RunID       string            `json:"run_id"`
	DocumentID  string            `json:"document_id"`
	Domain      string            `json:"domain"`
	Measurement model.Measurement `json:"measurement"`
}

// Store defines persistence for extraction runs and their reports
type Store interface {
	// Runs
	BeginRun(ctx context.Context, settings string) (*Run, error)
	FinishRun(ctx context.Context, runID string, status RunStatus, documents, failed int) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Reports
	SaveReport(ctx context.Context, runID string, report model.Report) error
	ListReports(ctx context.Context, runID string) ([]model.Report, error)
	QueryMeasurements(ctx context.Context, filter MeasurementFilter) ([]MeasurementRow, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
