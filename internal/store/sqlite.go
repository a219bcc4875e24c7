package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/steelminer/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	settings    TEXT NOT NULL DEFAULT '',
	documents   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	document_id  TEXT NOT NULL,
	source       TEXT NOT NULL,
	adapter      TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	confidence   REAL NOT NULL DEFAULT 0,
	report       TEXT NOT NULL,
	extracted_at DATETIME NOT NULL,
	UNIQUE (run_id, document_id)
);

CREATE TABLE IF NOT EXISTS measurements (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	document    TEXT NOT NULL REFERENCES documents(id),
	domain      TEXT NOT NULL,
	field       TEXT NOT NULL,
	value       REAL,
	category    TEXT,
	unit        TEXT,
	range_min   REAL,
	range_max   REAL,
	method      TEXT NOT NULL,
	page        INTEGER,
	raw         TEXT NOT NULL DEFAULT '',
	measurement TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_run_id ON documents(run_id);
CREATE INDEX IF NOT EXISTS idx_documents_content_hash ON documents(content_hash);
CREATE INDEX IF NOT EXISTS idx_measurements_document ON measurements(document);
CREATE INDEX IF NOT EXISTS idx_measurements_field ON measurements(field);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) BeginRun(ctx context.Context, settings string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, settings, started_at) VALUES (?, ?, ?, ?)`,
		id, string(RunStatusRunning), settings, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{
		ID:        id,
		Status:    RunStatusRunning,
		Settings:  settings,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status RunStatus, documents, failed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, documents = ?, failed = ?, finished_at = ? WHERE id = ?`,
		string(status), documents, failed, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, settings, documents, failed, started_at, finished_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, settings, documents, failed, started_at, finished_at FROM runs
		 ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveReport stores a report and its measurements in one transaction.
// Saving the same document twice in a run replaces the earlier copy.
func (s *SQLiteStore) SaveReport(ctx context.Context, runID string, report model.Report) (err error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM measurements WHERE document IN
		 (SELECT id FROM documents WHERE run_id = ? AND document_id = ?)`,
		runID, report.DocumentID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: replace measurements %s", report.DocumentID)
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM documents WHERE run_id = ? AND document_id = ?`,
		runID, report.DocumentID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: replace document %s", report.DocumentID)
	}

	docRow := uuid.New().String()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, run_id, document_id, source, adapter, content_hash, confidence, report, extracted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		docRow, runID, report.DocumentID, report.Source, report.SourceMeta.Adapter,
		report.SourceMeta.ContentHash, report.Quality.Confidence, string(reportJSON), report.ExtractedAt.UTC(),
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert document %s", report.DocumentID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO measurements (document, domain, field, value, category, unit, range_min, range_max, method, page, raw, measurement)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare measurement insert")
	}
	defer func() { _ = stmt.Close() }()

	for _, domain := range model.Domains {
		section := report.Result.Section(domain)
		for _, field := range section.Fields() {
			for _, m := range section[field] {
				if err = insertMeasurement(ctx, stmt, docRow, domain, m); err != nil {
					return err
				}
			}
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit report")
}

func insertMeasurement(ctx context.Context, stmt *sql.Stmt, docRow, domain string, m model.Measurement) error {
	data, err := json.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal measurement")
	}

	var value, rangeMin, rangeMax sql.NullFloat64
	var category, unit sql.NullString
	var page sql.NullInt64
	if m.IsCategorical() {
		category = sql.NullString{String: m.Category, Valid: true}
	} else {
		value = sql.NullFloat64{Float64: m.Value, Valid: true}
		unit = sql.NullString{String: m.Unit, Valid: m.Unit != ""}
	}
	if m.Range != nil {
		rangeMin = sql.NullFloat64{Float64: m.Range.Min, Valid: true}
		rangeMax = sql.NullFloat64{Float64: m.Range.Max, Valid: true}
	}
	if m.Metadata.Page != nil {
		page = sql.NullInt64{Int64: int64(*m.Metadata.Page), Valid: true}
	}

	_, err = stmt.ExecContext(ctx,
		docRow, domain, m.Field, value, category, unit, rangeMin, rangeMax,
		m.Metadata.Method, page, m.Raw, string(data),
	)
	return eris.Wrapf(err, "sqlite: insert measurement %s", m.Field)
}

func (s *SQLiteStore) ListReports(ctx context.Context, runID string) ([]model.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT report FROM documents WHERE run_id = ? ORDER BY document_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer func() { _ = rows.Close() }()

	var reports []model.Report
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		var r model.Report
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report")
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: list reports iterate")
}

func (s *SQLiteStore) QueryMeasurements(ctx context.Context, filter MeasurementFilter) ([]MeasurementRow, error) {
	query := `SELECT d.run_id, d.document_id, m.domain, m.measurement
		FROM measurements m JOIN documents d ON d.id = m.document WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		query += ` AND d.run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Field != "" {
		query += ` AND m.field = ?`
		args = append(args, filter.Field)
	}
	if filter.Domain != "" {
		query += ` AND m.domain = ?`
		args = append(args, filter.Domain)
	}
	if filter.Min != nil {
		query += ` AND m.value >= ?`
		args = append(args, *filter.Min)
	}
	if filter.Max != nil {
		query += ` AND m.value <= ?`
		args = append(args, *filter.Max)
	}
	query += ` ORDER BY d.document_id, m.id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query measurements")
	}
	defer func() { _ = rows.Close() }()

	var out []MeasurementRow
	for rows.Next() {
		var r MeasurementRow
		var data string
		if err := rows.Scan(&r.RunID, &r.DocumentID, &r.Domain, &data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan measurement")
		}
		if err := json.Unmarshal([]byte(data), &r.Measurement); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal measurement")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: query measurements iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var status string
	var finished sql.NullTime

	err := row.Scan(&r.ID, &status, &r.Settings, &r.Documents, &r.Failed, &r.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Status = RunStatus(status)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
