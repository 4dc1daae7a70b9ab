// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package manifest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout is fixed width so that text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRecorder persists runs to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
}

var _ Recorder = (*SQLiteRecorder)(nil)

// Open opens (or creates) the SQLite database and runs migrations.
func Open(path string) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error migrating: %w", err)
	}
	return r, nil
}

// Close closes the underlying database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			started_at  TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			template    TEXT NOT NULL,
			electrodes  INTEGER NOT NULL,
			mode        TEXT NOT NULL,
			output      TEXT NOT NULL,
			status      TEXT NOT NULL,
			error       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS electrodes (
			run_id    TEXT NOT NULL REFERENCES runs(id),
			electrode INTEGER NOT NULL,
			path      TEXT NOT NULL,
			present   INTEGER NOT NULL,
			PRIMARY KEY (run_id, electrode)
		)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("error executing %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores a run and its electrode outcomes in one transaction.
func (r *SQLiteRecorder) RecordRun(ctx context.Context, run Run, electrodes []Electrode) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, started_at, finished_at, template, electrodes, mode, output, status, error)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		run.ID,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
		run.Template, run.Electrodes, run.Mode, run.Output, run.Status, run.Error,
	); err != nil {
		return fmt.Errorf("error inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO electrodes (run_id, electrode, path, present) VALUES (?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range electrodes {
		if _, err = stmt.ExecContext(ctx, run.ID, e.Electrode, e.Path, e.Present); err != nil {
			return fmt.Errorf("error inserting electrode %d: %w", e.Electrode, err)
		}
	}

	return tx.Commit()
}

// Runs returns the most recent runs, newest first.
func (r *SQLiteRecorder) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, started_at, finished_at, template, electrodes, mode, output, status, error
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			started, finished string
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.Template, &run.Electrodes,
			&run.Mode, &run.Output, &run.Status, &run.Error); err != nil {
			return nil, err
		}
		if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("error parsing started_at: %w", err)
		}
		if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("error parsing finished_at: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Electrodes returns the electrode outcomes of a run in electrode order.
func (r *SQLiteRecorder) Electrodes(ctx context.Context, runID string) ([]Electrode, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT electrode, path, present FROM electrodes
		WHERE run_id = ? ORDER BY electrode`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Electrode
	for rows.Next() {
		var e Electrode
		if err := rows.Scan(&e.Electrode, &e.Path, &e.Present); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
