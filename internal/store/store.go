// Package store persists processed batches and their quality reports in
// Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/cali-upid/internal/debug"
	"github.com/cali-upid/internal/etl"
	"github.com/cali-upid/internal/geometry"
	"github.com/cali-upid/internal/validation"
)

// ErrNoRuns is returned by LatestReport when nothing has been stored yet
var ErrNoRuns = errors.New("no runs stored")

// Store writes runs and annotated records under a configurable table prefix
type Store struct {
	db     *sql.DB
	prefix string
}

// New creates a store. prefix must already be validated as an identifier part.
func New(db *sql.DB, prefix string) *Store {
	if prefix == "" {
		prefix = "upid"
	}
	return &Store{db: db, prefix: prefix}
}

func (s *Store) runsTable() string    { return pq.QuoteIdentifier(s.prefix + "_runs") }
func (s *Store) recordsTable() string { return pq.QuoteIdentifier(s.prefix + "_records") }
func (s *Store) recordsTableName() string {
	return s.prefix + "_records"
}

// EnsureSchema creates the tables and indexes when they do not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id       BIGSERIAL PRIMARY KEY,
			started_at   TIMESTAMPTZ NOT NULL,
			finished_at  TIMESTAMPTZ NOT NULL,
			source_name  TEXT NOT NULL,
			input_format TEXT NOT NULL,
			total        INTEGER NOT NULL,
			with_issues  INTEGER NOT NULL,
			report       JSONB NOT NULL
		)`, s.runsTable()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id          BIGINT NOT NULL REFERENCES %s (run_id) ON DELETE CASCADE,
			record_index    INTEGER NOT NULL,
			upid            TEXT,
			source          TEXT,
			category        TEXT,
			lat             DOUBLE PRECISION,
			lon             DOUBLE PRECISION,
			geometry        JSONB,
			properties      JSONB NOT NULL,
			issue_types     TEXT[] NOT NULL,
			worst_severity  TEXT,
			PRIMARY KEY (run_id, record_index)
		)`, s.recordsTable(), s.runsTable()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (upid)`,
			pq.QuoteIdentifier(s.prefix+"_records_upid_idx"), s.recordsTable()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (worst_severity)`,
			pq.QuoteIdentifier(s.prefix+"_records_severity_idx"), s.recordsTable()),
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// SaveBatch stores the run report and its annotated records in one
// transaction, so a failed copy leaves no run behind. It returns the new run
// id and the number of records written.
func (s *Store) SaveBatch(ctx context.Context, localDebug bool, sourceName string, started time.Time, out *etl.Output) (int64, int, error) {
	defer debug.DebugTiming(localDebug, "save batch")()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runID, err := s.insertRun(ctx, tx, sourceName, started, out)
	if err != nil {
		return 0, 0, err
	}
	saved, err := s.copyRecords(ctx, localDebug, tx, runID, out)
	if err != nil {
		return 0, saved, err
	}

	if err := tx.Commit(); err != nil {
		return 0, saved, fmt.Errorf("failed to commit run %d: %w", runID, err)
	}
	debug.DebugOutput(localDebug, "Saved run %d with %d records", runID, saved)
	return runID, saved, nil
}

func (s *Store) insertRun(ctx context.Context, tx *sql.Tx, sourceName string, started time.Time, out *etl.Output) (int64, error) {
	report, err := json.Marshal(out.Report)
	if err != nil {
		return 0, fmt.Errorf("failed to encode report: %w", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (started_at, finished_at, source_name, input_format, total, with_issues, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING run_id
	`, s.runsTable()),
		started, time.Now(), sourceName, out.Batch.Format.String(),
		out.Report.Total, out.Report.WithIssues, report,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// copyRecords bulk loads the annotated records of a run with COPY
func (s *Store) copyRecords(ctx context.Context, localDebug bool, tx *sql.Tx, runID int64, out *etl.Output) (int, error) {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.recordsTableName(),
		"run_id", "record_index", "upid", "source", "category", "lat", "lon",
		"geometry", "properties", "issue_types", "worst_severity",
	))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare copy: %w", err)
	}
	defer stmt.Close()

	saved := 0
	for i, r := range out.Results {
		row, err := recordRow(runID, out, i)
		if err != nil {
			return saved, err
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return saved, fmt.Errorf("failed to copy record %d: %w", r.Record.Index, err)
		}
		saved++
		if saved%5000 == 0 {
			debug.DebugOutput(localDebug, "Copied %d/%d records", saved, len(out.Results))
		}
	}

	// Flush the COPY buffer
	if _, err := stmt.ExecContext(ctx); err != nil {
		return saved, fmt.Errorf("failed to flush copy: %w", err)
	}
	return saved, nil
}

// recordRow builds the COPY values for one result
func recordRow(runID int64, out *etl.Output, i int) ([]interface{}, error) {
	r := out.Results[i]

	g, err := geometry.Encode(r.Record.Geometry)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", r.Record.Index, err)
	}
	var geomCol interface{}
	if r.Record.Geometry != nil {
		geomCol = string(g)
	}

	props, err := json.Marshal(out.Properties(i))
	if err != nil {
		return nil, fmt.Errorf("record %d: failed to encode properties: %w", r.Record.Index, err)
	}

	return []interface{}{
		runID,
		r.Record.Index,
		nullString(r.Outcome.ID),
		nullString(r.Outcome.Source),
		nullString(r.Outcome.Category),
		nullFloat(r.Record.Lat),
		nullFloat(r.Record.Lon),
		geomCol,
		string(props),
		issueTypes(r.Outcome.Issues),
		worstSeverity(r.Outcome),
	}, nil
}

// LatestReport returns the most recently stored report and its run id
func (s *Store) LatestReport(ctx context.Context) (int64, *validation.Report, error) {
	var id int64
	var raw []byte
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT run_id, report FROM %s ORDER BY run_id DESC LIMIT 1`, s.runsTable(),
	)).Scan(&id, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, ErrNoRuns
	}
	if err != nil {
		return 0, nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	var rep validation.Report
	if err := json.Unmarshal(raw, &rep); err != nil {
		return 0, nil, fmt.Errorf("run %d: failed to decode report: %w", id, err)
	}
	return id, &rep, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func issueTypes(issues []validation.Issue) interface{} {
	types := make([]string, 0, len(issues))
	for _, i := range issues {
		types = append(types, string(i.Type))
	}
	return pq.Array(types)
}

func worstSeverity(o validation.Outcome) interface{} {
	if s, ok := o.Worst(); ok {
		return string(s)
	}
	return nil
}
