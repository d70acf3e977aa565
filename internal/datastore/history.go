package datastore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/transfer"
)

// Database is the Datasette database name history is published to.
const Database = "rats"

const (
	RunsTable    = "transfer_runs"
	HistoryTable = "transfer_history"
)

// RunsSchema holds one row per run.
const RunsSchema = `
CREATE TABLE IF NOT EXISTS transfer_runs (
	run_id TEXT PRIMARY KEY NOT NULL,
	source TEXT NOT NULL,
	destination TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	records INTEGER NOT NULL,
	submitted INTEGER NOT NULL,
	already_rated INTEGER NOT NULL,
	no_match INTEGER NOT NULL,
	ambiguous INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	truncated BOOLEAN NOT NULL,
	cancelled BOOLEAN NOT NULL,
	extract_error TEXT
);
`

// HistorySchema holds one row per record outcome.
const HistorySchema = `
CREATE TABLE IF NOT EXISTS transfer_history (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	source TEXT NOT NULL,
	destination TEXT NOT NULL,
	source_id TEXT NOT NULL,
	title TEXT NOT NULL,
	year INTEGER,
	rating INTEGER NOT NULL,
	status TEXT NOT NULL,
	target_id TEXT,
	detail TEXT,
	attempts INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_transfer_history_source_id ON transfer_history(source, source_id);
`

// RecordReport stores the run summary and every outcome of report.
func RecordReport(store Store, report *transfer.Report) error {
	if err := errors.Join(store.CreateTable(RunsSchema), store.CreateTable(HistorySchema)); err != nil {
		return err
	}

	if err := store.BatchInsert(Database, RunsTable, []map[string]any{runRow(report)}); err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}
	if err := store.BatchInsert(Database, HistoryTable, historyRows(report)); err != nil {
		return fmt.Errorf("failed to store outcomes: %w", err)
	}

	slog.Debug("Stored run history", "run_id", report.RunID, "outcomes", len(report.Outcomes))
	return nil
}

func runRow(r *transfer.Report) map[string]any {
	counts := r.Counts()
	var extractErr any
	if r.ExtractErr != nil {
		extractErr = r.ExtractErr.Error()
	}
	var finished any
	if !r.FinishedAt.IsZero() {
		finished = r.FinishedAt.UTC().Format(time.RFC3339)
	}

	return map[string]any{
		"run_id":        r.RunID,
		"source":        r.Source,
		"destination":   r.Destination,
		"started_at":    r.StartedAt.UTC().Format(time.RFC3339),
		"finished_at":   finished,
		"records":       len(r.Records),
		"submitted":     counts[rating.StatusSubmitted],
		"already_rated": counts[rating.StatusAlreadyRated],
		"no_match":      counts[rating.StatusNoMatch],
		"ambiguous":     counts[rating.StatusAmbiguousMatch],
		"failed":        counts[rating.StatusSubmitFailed],
		"truncated":     r.Truncated,
		"cancelled":     r.Cancelled,
		"extract_error": extractErr,
	}
}

func historyRows(r *transfer.Report) []map[string]any {
	rows := make([]map[string]any, 0, len(r.Outcomes))
	for i, o := range r.Outcomes {
		rows = append(rows, map[string]any{
			"run_id":      r.RunID,
			"position":    i,
			"source":      r.Source,
			"destination": r.Destination,
			"source_id":   o.Record.SourceID,
			"title":       o.Record.Title,
			"year":        o.Record.Year,
			"rating":      o.Record.Rating,
			"status":      string(o.Status),
			"target_id":   o.TargetID,
			"detail":      o.Detail,
			"attempts":    o.Attempts,
		})
	}
	return rows
}
