// Package runlog persists a ledger of generation outcomes so runs can be
// audited and reported on after the fact.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/longform-ai/longform/pkg/models"
)

// Ledger records and queries generation outcomes.
type Ledger interface {
	// Record stores one run record.
	Record(ctx context.Context, rec models.RunRecord) error
	// Recent returns the most recent records, newest first.
	Recent(ctx context.Context, limit int) ([]models.RunRecord, error)
	// Summary returns per-episode, per-status aggregates, optionally
	// filtered by episode.
	Summary(ctx context.Context, episode string) ([]models.RunSummary, error)
	// PurgeOlderThan deletes records older than the cutoff and returns the
	// number removed.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// Close releases resources.
	Close() error
}

// SQLiteLedger implements Ledger with a SQLite database.
type SQLiteLedger struct {
	db *sql.DB
}

const createRunsTable = `
CREATE TABLE IF NOT EXISTS run_records (
	id TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	episode TEXT NOT NULL,
	segment_index INTEGER NOT NULL,
	status TEXT NOT NULL,
	origin TEXT NOT NULL,
	attempt_count INTEGER NOT NULL,
	word_count INTEGER NOT NULL,
	target_words INTEGER NOT NULL,
	latency_ms INTEGER NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_episode_time ON run_records(episode, created_at);
CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON run_records(fingerprint);
`

// New creates a SQLiteLedger and runs auto-migration.
func New(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open run ledger db: %w", err)
	}
	if _, err := db.Exec(createRunsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate run ledger db: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// Record stores one run record. A missing ID or timestamp is filled in.
func (l *SQLiteLedger) Record(ctx context.Context, rec models.RunRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO run_records
			(id, fingerprint, episode, segment_index, status, origin,
			 attempt_count, word_count, target_words, latency_ms,
			 error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Fingerprint, rec.Episode, rec.SegmentIndex,
		string(rec.Status), string(rec.Origin), rec.AttemptCount,
		rec.WordCount, rec.TargetWords, rec.LatencyMs,
		rec.ErrorMessage, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// Recent returns the most recent records, newest first.
func (l *SQLiteLedger) Recent(ctx context.Context, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, fingerprint, episode, segment_index, status, origin,
		       attempt_count, word_count, target_words, latency_ms,
		       error_message, created_at
		FROM run_records
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var records []models.RunRecord
	for rows.Next() {
		var rec models.RunRecord
		var status, origin string
		if err := rows.Scan(&rec.ID, &rec.Fingerprint, &rec.Episode,
			&rec.SegmentIndex, &status, &origin, &rec.AttemptCount,
			&rec.WordCount, &rec.TargetWords, &rec.LatencyMs,
			&rec.ErrorMessage, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		rec.Status = models.Status(status)
		rec.Origin = models.Origin(origin)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Summary returns per-episode, per-status aggregates. An empty episode
// matches all episodes.
func (l *SQLiteLedger) Summary(ctx context.Context, episode string) ([]models.RunSummary, error) {
	query := `
		SELECT episode, status, COUNT(*),
		       COALESCE(SUM(word_count), 0),
		       CAST(COALESCE(AVG(latency_ms), 0) AS INTEGER)
		FROM run_records`
	args := []any{}
	if episode != "" {
		query += ` WHERE episode = ?`
		args = append(args, episode)
	}
	query += ` GROUP BY episode, status ORDER BY episode, status`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.RunSummary
	for rows.Next() {
		var s models.RunSummary
		var status string
		if err := rows.Scan(&s.Episode, &status, &s.Count, &s.TotalWords, &s.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		s.Status = models.Status(status)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// PurgeOlderThan deletes records created before cutoff.
func (l *SQLiteLedger) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM run_records WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge run records: %w", err)
	}
	return res.RowsAffected()
}

// Close releases resources.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
