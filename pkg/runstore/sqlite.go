// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jllopis/gnosis/pkg/core"
	"github.com/jllopis/gnosis/pkg/errors"

	_ "modernc.org/sqlite"
)

const (
	runTable      = "runs"
	feedbackTable = "feedback"
)

// SQLiteStore persists runs and feedback in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed store and ensures its schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Open opens the SQLite database at path, creating it if needed, and
// returns a store backed by it.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			answer TEXT NOT NULL,
			mode TEXT NOT NULL,
			tool_calls TEXT NOT NULL,
			retrieved_docs TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);`, runTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_created ON %s(created_at);`, runTable, runTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			score REAL NOT NULL,
			comment TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`, feedbackTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_run ON %s(run_id);`, feedbackTable, feedbackTable),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun inserts or replaces a run.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *core.Run) error {
	if run == nil || run.ID == "" {
		return errors.New(errors.CodeInvalidInput, "run must have an ID", nil)
	}
	toolCalls, err := json.Marshal(run.ToolCalls)
	if err != nil {
		return err
	}
	docs, err := json.Marshal(run.RetrievedDocs)
	if err != nil {
		return err
	}
	var finishedAt int64
	if !run.FinishedAt.IsZero() {
		finishedAt = run.FinishedAt.UTC().UnixMilli()
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (run_id, query, answer, mode, tool_calls, retrieved_docs, status, error, created_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id) DO UPDATE SET
				answer = excluded.answer,
				tool_calls = excluded.tool_calls,
				retrieved_docs = excluded.retrieved_docs,
				status = excluded.status,
				error = excluded.error,
				finished_at = excluded.finished_at`, runTable),
		run.ID, run.Query, run.Answer, run.Mode, string(toolCalls), string(docs),
		string(run.Status), run.Error, run.CreatedAt.UTC().UnixMilli(), finishedAt)
	return err
}

// GetRun returns the run with the given ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*core.Run, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT run_id, query, answer, mode, tool_calls, retrieved_docs, status, error, created_at, finished_at FROM %s WHERE run_id = ?", runTable),
		runID)

	var (
		run        core.Run
		toolCalls  string
		docs       string
		status     string
		createdAt  int64
		finishedAt int64
	)
	err := row.Scan(&run.ID, &run.Query, &run.Answer, &run.Mode, &toolCalls, &docs, &status, &run.Error, &createdAt, &finishedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("run %q not found", runID), nil)
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(toolCalls), &run.ToolCalls); err != nil {
		return nil, fmt.Errorf("malformed tool_calls for run %q: %w", runID, err)
	}
	if err := json.Unmarshal([]byte(docs), &run.RetrievedDocs); err != nil {
		return nil, fmt.Errorf("malformed retrieved_docs for run %q: %w", runID, err)
	}
	run.Status = core.RunStatus(status)
	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	if finishedAt > 0 {
		run.FinishedAt = time.UnixMilli(finishedAt).UTC()
	}
	return &run, nil
}

// SaveFeedback records feedback for a previously saved run.
func (s *SQLiteStore) SaveFeedback(ctx context.Context, fb *core.Feedback) error {
	if fb == nil || fb.RunID == "" {
		return errors.New(errors.CodeInvalidInput, "feedback must reference a run", nil)
	}
	createdAt := fb.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	var exists int
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE run_id = ?", runTable), fb.RunID).Scan(&exists)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if exists == 0 {
		_ = tx.Rollback()
		return errors.New(errors.CodeNotFound, fmt.Sprintf("run %q not found", fb.RunID), nil)
	}
	_, err = tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, run_id, score, comment, created_at) VALUES (?, ?, ?, ?, ?)", feedbackTable),
		uuid.NewString(), fb.RunID, fb.Score, fb.Comment, createdAt.UnixMilli())
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ListFeedback returns all feedback for a run in submission order.
func (s *SQLiteStore) ListFeedback(ctx context.Context, runID string) ([]*core.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT run_id, score, comment, created_at FROM %s WHERE run_id = ? ORDER BY created_at ASC, id ASC", feedbackTable),
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*core.Feedback{}
	for rows.Next() {
		var (
			fb        core.Feedback
			createdAt int64
		)
		if err := rows.Scan(&fb.RunID, &fb.Score, &fb.Comment, &createdAt); err != nil {
			return nil, err
		}
		fb.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, &fb)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
