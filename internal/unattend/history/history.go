// Copyright (C) 2025 The vbox-unattend Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package history provides a SQLite-backed, append-only audit trail of
// Orchestrator runs: what OS was detected, which installer variant was
// chosen, what media was produced, and how reconfiguration resolved.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5 * time.Second

// ErrNotFound indicates no rows matched the query.
var ErrNotFound = errors.New("not found")

// Store wraps a SQLite database connection holding the audit trail.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at path, applies connection
// pragmas, runs migrations, and returns a ready Store.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)",
		path, int(defaultBusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetConnMaxLifetime(0)
	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(4)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
  id                 TEXT PRIMARY KEY,
  started_at         TIMESTAMP NOT NULL,
  finished_at        TIMESTAMP NULL,
  profile_hash       TEXT NOT NULL,
  detected_os        TEXT NULL,
  installer_variant  TEXT NULL,
  media_produced     TEXT NOT NULL DEFAULT '[]',
  reconfig_result    TEXT NULL,
  error_kind         TEXT NULL,
  error_message      TEXT NULL
);`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	const idx = `CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`
	if _, err := s.db.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("create runs index: %w", err)
	}
	return nil
}

// Run is one append-only audit record of a full Orchestrator lifecycle.
type Run struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       *time.Time
	ProfileHash      string
	DetectedOS       string
	InstallerVariant string
	MediaProduced    []string
	ReconfigResult   string
	ErrorKind        string
	ErrorMessage     string
}

// BeginRun inserts a new run record and returns its generated ID.
func (s *Store) BeginRun(ctx context.Context, profileHash string) (string, error) {
	id := uuid.NewString()
	const ins = `INSERT INTO runs(id, started_at, profile_hash, media_produced) VALUES (?, ?, ?, '[]')`
	if _, err := s.db.ExecContext(ctx, ins, id, time.Now().UTC(), profileHash); err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// RecordDetection updates the run's detected OS family.
func (s *Store) RecordDetection(ctx context.Context, runID, detectedOS string) error {
	const upd = `UPDATE runs SET detected_os=? WHERE id=?`
	return s.execAffectingRow(ctx, upd, detectedOS, runID)
}

// RecordVariant updates the run's chosen installer variant.
func (s *Store) RecordVariant(ctx context.Context, runID, variant string) error {
	const upd = `UPDATE runs SET installer_variant=? WHERE id=?`
	return s.execAffectingRow(ctx, upd, variant, runID)
}

// RecordMedia appends a produced media path to the run's media list.
func (s *Store) RecordMedia(ctx context.Context, runID, path string) error {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	run.MediaProduced = append(run.MediaProduced, path)
	const upd = `UPDATE runs SET media_produced=? WHERE id=?`
	return s.execAffectingRow(ctx, upd, encodeMediaList(run.MediaProduced), runID)
}

// RecordReconfigResult updates the run's reconfiguration outcome summary.
func (s *Store) RecordReconfigResult(ctx context.Context, runID, result string) error {
	const upd = `UPDATE runs SET reconfig_result=? WHERE id=?`
	return s.execAffectingRow(ctx, upd, result, runID)
}

// FinishRun marks a run complete, optionally recording an error-kind/message
// pair if the run failed. Pass empty strings for a successful run.
func (s *Store) FinishRun(ctx context.Context, runID, errorKind, errorMessage string) error {
	const upd = `UPDATE runs SET finished_at=?, error_kind=?, error_message=? WHERE id=?`
	res, err := s.db.ExecContext(ctx, upd, time.Now().UTC(), nullIfEmpty(errorKind), nullIfEmpty(errorMessage), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return affectedOrNotFound(res)
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	const q = `SELECT id, started_at, finished_at, profile_hash, detected_os, installer_variant, media_produced, reconfig_result, error_kind, error_message
FROM runs WHERE id=?`
	var row struct {
		id, profileHash, mediaJSON string
		detectedOS, variant        sql.NullString
		reconfigResult             sql.NullString
		errorKind, errorMessage    sql.NullString
		startedAt                 time.Time
		finishedAt                sql.NullTime
	}
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&row.id, &row.startedAt, &row.finishedAt, &row.profileHash, &row.detectedOS, &row.variant,
		&row.mediaJSON, &row.reconfigResult, &row.errorKind, &row.errorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	run := &Run{
		ID:               row.id,
		StartedAt:        row.startedAt.UTC(),
		ProfileHash:      row.profileHash,
		DetectedOS:       row.detectedOS.String,
		InstallerVariant: row.variant.String,
		MediaProduced:    decodeMediaList(row.mediaJSON),
		ReconfigResult:   row.reconfigResult.String,
		ErrorKind:        row.errorKind.String,
		ErrorMessage:     row.errorMessage.String,
	}
	if row.finishedAt.Valid {
		t := row.finishedAt.Time.UTC()
		run.FinishedAt = &t
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. If limit <= 0, all
// runs are returned.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	q := `SELECT id, started_at, finished_at, profile_hash, detected_os, installer_variant, media_produced, reconfig_result, error_kind, error_message
FROM runs ORDER BY started_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		var row struct {
			id, profileHash, mediaJSON string
			detectedOS, variant        sql.NullString
			reconfigResult             sql.NullString
			errorKind, errorMessage    sql.NullString
			startedAt                 time.Time
			finishedAt                sql.NullTime
		}
		if err := rows.Scan(&row.id, &row.startedAt, &row.finishedAt, &row.profileHash, &row.detectedOS, &row.variant,
			&row.mediaJSON, &row.reconfigResult, &row.errorKind, &row.errorMessage); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run := &Run{
			ID:               row.id,
			StartedAt:        row.startedAt.UTC(),
			ProfileHash:      row.profileHash,
			DetectedOS:       row.detectedOS.String,
			InstallerVariant: row.variant.String,
			MediaProduced:    decodeMediaList(row.mediaJSON),
			ReconfigResult:   row.reconfigResult.String,
			ErrorKind:        row.errorKind.String,
			ErrorMessage:     row.errorMessage.String,
		}
		if row.finishedAt.Valid {
			t := row.finishedAt.Time.UTC()
			run.FinishedAt = &t
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func (s *Store) execAffectingRow(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return affectedOrNotFound(res)
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func encodeMediaList(paths []string) string {
	if len(paths) == 0 {
		return "[]"
	}
	b, err := json.Marshal(paths)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeMediaList(raw string) []string {
	var out []string
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
