package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// RunRecord is one row of run history.
type RunRecord struct {
	RunID      string         `json:"run_id"`
	BoardID    string         `json:"board_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	State      string         `json:"state"`
	Since      time.Time      `json:"since"`
	FetchedAt  time.Time      `json:"fetched_at,omitzero"`
	Fetched    int            `json:"fetched"`
	Kept       int            `json:"kept"`
	Delivered  int            `json:"delivered"`
	Suppressed int            `json:"suppressed"`
	Malformed  int            `json:"malformed"`
	Failed     int            `json:"failed"`
	Dropped    map[string]int `json:"dropped,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// RecordRun inserts rec. Recording the same run id twice is an error.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("record run: empty run id")
	}
	dropped := rec.Dropped
	if dropped == nil {
		dropped = map[string]int{}
	}
	droppedJSON, err := json.Marshal(dropped)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	var fetchedAt sql.NullString
	if !rec.FetchedAt.IsZero() {
		fetchedAt = sql.NullString{String: formatTime(rec.FetchedAt), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, board_id, started_at, finished_at, state, since, fetched_at,
		 fetched, kept, delivered, suppressed, malformed, failed, dropped, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RunID,
		rec.BoardID,
		formatTime(rec.StartedAt),
		formatTime(rec.FinishedAt),
		rec.State,
		formatTime(rec.Since),
		fetchedAt,
		rec.Fetched,
		rec.Kept,
		rec.Delivered,
		rec.Suppressed,
		rec.Malformed,
		rec.Failed,
		string(droppedJSON),
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs of boardID, most recent first. A
// non-positive limit returns every run.
func (s *Store) ListRuns(ctx context.Context, boardID string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, board_id, started_at, finished_at, state, since, fetched_at,
		       fetched, kept, delivered, suppressed, malformed, failed, dropped, error
		FROM runs
		WHERE board_id = ?
		ORDER BY started_at DESC, run_id DESC
		LIMIT ?
	`, boardID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func scanRun(rows *sql.Rows) (RunRecord, error) {
	var (
		rec                      RunRecord
		started, finished, since string
		fetchedAt                sql.NullString
		droppedJSON              string
	)
	err := rows.Scan(
		&rec.RunID, &rec.BoardID, &started, &finished, &rec.State, &since, &fetchedAt,
		&rec.Fetched, &rec.Kept, &rec.Delivered, &rec.Suppressed, &rec.Malformed, &rec.Failed,
		&droppedJSON, &rec.Error,
	)
	if err != nil {
		return RunRecord{}, err
	}

	if rec.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return RunRecord{}, fmt.Errorf("run %s: started_at: %w", rec.RunID, err)
	}
	if rec.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return RunRecord{}, fmt.Errorf("run %s: finished_at: %w", rec.RunID, err)
	}
	if rec.Since, err = time.Parse(timeLayout, since); err != nil {
		return RunRecord{}, fmt.Errorf("run %s: since: %w", rec.RunID, err)
	}
	if rec.FetchedAt, err = parseOptionalTime(fetchedAt); err != nil {
		return RunRecord{}, fmt.Errorf("run %s: fetched_at: %w", rec.RunID, err)
	}
	if err := json.Unmarshal([]byte(droppedJSON), &rec.Dropped); err != nil {
		return RunRecord{}, fmt.Errorf("run %s: dropped: %w", rec.RunID, err)
	}
	if len(rec.Dropped) == 0 {
		rec.Dropped = nil
	}
	return rec, nil
}
