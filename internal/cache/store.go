// Package cache persists analyses of local files in SQLite so re-running
// the scheduler with different selection settings skips ffmpeg.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kikiluvv/cuepoint/internal/analyzer"
	"github.com/kikiluvv/cuepoint/pkg/util"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store manages cached analyses backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Entry describes one cached analysis
type Entry struct {
	Key       Key
	Shots     int
	HasTrace  bool
	Duration  float64
	CreatedAt time.Time
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS analyses (
        uri             TEXT    NOT NULL,
        size            INTEGER NOT NULL,
        mod_time        INTEGER NOT NULL,
        scene_threshold REAL    NOT NULL,
        loudness_window REAL    NOT NULL,
        analysis_json   TEXT    NOT NULL,
        shots           INTEGER NOT NULL,
        has_trace       INTEGER NOT NULL,
        duration        REAL    NOT NULL,
        created_at      TEXT    NOT NULL,
        PRIMARY KEY (uri, size, mod_time, scene_threshold, loudness_window)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses (created_at)`,
}

// Open initializes or connects to the cache database and applies migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("cache path is required")
	}
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("ensure cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applyMigrations(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for i := version; i < len(migrations); i++ {
		if _, err := s.db.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	}
	return nil
}

// Get returns the cached analysis for key, if any
func (s *Store) Get(ctx context.Context, key Key) (*analyzer.Analysis, bool, error) {
	var payload string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT analysis_json FROM analyses
             WHERE uri = ? AND size = ? AND mod_time = ? AND scene_threshold = ? AND loudness_window = ?`,
			key.URI, key.Size, key.ModTime.UnixNano(), key.SceneThreshold, key.LoudnessWindow,
		).Scan(&payload)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get analysis: %w", err)
	}

	var result analyzer.Analysis
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, false, fmt.Errorf("decode cached analysis: %w", err)
	}
	return &result, true, nil
}

// Put stores result under key, replacing any previous entry
func (s *Store) Put(ctx context.Context, key Key, result *analyzer.Analysis) error {
	if result == nil {
		return errors.New("analysis is nil")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	err = retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO analyses (
                uri, size, mod_time, scene_threshold, loudness_window,
                analysis_json, shots, has_trace, duration, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			key.URI, key.Size, key.ModTime.UnixNano(), key.SceneThreshold, key.LoudnessWindow,
			string(payload), len(result.Events()), result.HasTrace, result.Duration,
			time.Now().UTC().Format(time.RFC3339Nano),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("put analysis: %w", err)
	}
	return nil
}

// List returns every cached entry, newest first
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uri, size, mod_time, scene_threshold, loudness_window, shots, has_trace, duration, created_at
         FROM analyses ORDER BY created_at DESC, uri`)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			modTime int64
			created string
		)
		if err := rows.Scan(&e.Key.URI, &e.Key.Size, &modTime, &e.Key.SceneThreshold, &e.Key.LoudnessWindow,
			&e.Shots, &e.HasTrace, &e.Duration, &created); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		e.Key.ModTime = time.Unix(0, modTime).UTC()
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear deletes every entry and reports how many were removed
func (s *Store) Clear(ctx context.Context) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx, `DELETE FROM analyses`)
		if execErr != nil {
			return execErr
		}
		removed, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("clear analyses: %w", err)
	}
	return removed, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
