package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeLayout is used for every stored timestamp. The fraction is fixed width
// and values are always UTC, so string order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// LoadCheckpoint returns the stored checkpoint for boardID. ok is false when
// the board has never been checkpointed.
func (s *Store) LoadCheckpoint(ctx context.Context, boardID string) (t time.Time, ok bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx,
		`SELECT last_update FROM checkpoints WHERE board_id = ?`, boardID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load checkpoint: %w", err)
	}

	t, err = time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load checkpoint: parse %q: %w", raw, err)
	}
	return t, true, nil
}

// SaveCheckpoint replaces the checkpoint of boardID with t.
func (s *Store) SaveCheckpoint(ctx context.Context, boardID string, t time.Time) error {
	if t.IsZero() {
		return fmt.Errorf("save checkpoint: zero time")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (board_id, last_update)
		VALUES (?, ?)
		ON CONFLICT(board_id) DO UPDATE SET
			last_update = excluded.last_update,
			updated_at  = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`, boardID, formatTime(t))
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// DeleteCheckpoint removes the checkpoint of boardID. It reports whether a
// checkpoint existed.
func (s *Store) DeleteCheckpoint(ctx context.Context, boardID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE board_id = ?`, boardID)
	if err != nil {
		return false, fmt.Errorf("delete checkpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete checkpoint: %w", err)
	}
	return n > 0, nil
}

// Checkpoints gives one board scoped access to a database file. Every call
// opens the file, performs one operation and closes it again, so the file is
// never held open while the caller talks to the network.
type Checkpoints struct {
	Path    string
	BoardID string
}

// Load returns the board's checkpoint; ok is false when none is stored.
func (c Checkpoints) Load(ctx context.Context) (t time.Time, ok bool, err error) {
	err = c.with(func(s *Store) error {
		t, ok, err = s.LoadCheckpoint(ctx, c.BoardID)
		return err
	})
	return t, ok, err
}

// Save stores t as the board's checkpoint.
func (c Checkpoints) Save(ctx context.Context, t time.Time) error {
	return c.with(func(s *Store) error {
		return s.SaveCheckpoint(ctx, c.BoardID, t)
	})
}

// Record appends a finished run to the board's history. The record's board
// id is forced to the scoped board.
func (c Checkpoints) Record(ctx context.Context, rec RunRecord) error {
	rec.BoardID = c.BoardID
	return c.with(func(s *Store) error {
		return s.RecordRun(ctx, rec)
	})
}

func (c Checkpoints) with(fn func(*Store) error) (err error) {
	s, err := Open(c.Path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close database: %w", cerr)
		}
	}()
	return fn(s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseOptionalTime(raw sql.NullString) (time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, raw.String)
}
