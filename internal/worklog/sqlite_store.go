package worklog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS work_logs (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	user_name  TEXT NOT NULL DEFAULT '',
	task       TEXT NOT NULL,
	goal_id    TEXT NOT NULL DEFAULT '',
	goal_title TEXT NOT NULL DEFAULT '',
	date       TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time   TEXT NOT NULL,
	duration   INTEGER NOT NULL,
	memo       TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_work_logs_user_date ON work_logs (user_id, date);
`

// SQLiteStore is the append-only historical record of completed intervals.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create worklog dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open worklog db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate worklog db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes one entry and returns its store-assigned id. Entries with
// non-positive duration are rejected, never written.
func (s *SQLiteStore) Append(ctx context.Context, e Entry) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("worklog store is not initialized")
	}
	if err := e.Validate(); err != nil {
		return "", err
	}
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO work_logs (id, user_id, user_name, task, goal_id, goal_title, date, start_time, end_time, duration, memo, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.UserID, e.UserName, e.Task, e.GoalID, e.GoalTitle, e.Date,
		e.StartTime.UTC().Format(time.RFC3339), e.EndTime.UTC().Format(time.RFC3339),
		e.Duration, e.Memo, string(e.Source),
	)
	if err != nil {
		return "", fmt.Errorf("append work log: %w", err)
	}
	return id, nil
}

// ListByUser returns a user's entries with date in [from, to], newest first.
func (s *SQLiteStore) ListByUser(ctx context.Context, userID, fromDate, toDate string) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("worklog store is not initialized")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, user_name, task, goal_id, goal_title, date, start_time, end_time, duration, memo, source
		FROM work_logs
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY start_time DESC`,
		userID, fromDate, toDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var start, end, source string
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.Task, &e.GoalID, &e.GoalTitle,
			&e.Date, &start, &end, &e.Duration, &e.Memo, &source); err != nil {
			return nil, err
		}
		if e.StartTime, err = time.Parse(time.RFC3339, start); err != nil {
			return nil, fmt.Errorf("decode start_time: %w", err)
		}
		if e.EndTime, err = time.Parse(time.RFC3339, end); err != nil {
			return nil, fmt.Errorf("decode end_time: %w", err)
		}
		e.Source = Source(source)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
