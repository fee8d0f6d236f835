// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package storage persists raw sample windows so detections can be
// re-analyzed offline.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/relabs-tech/woodguard/internal/accel"
	"github.com/relabs-tech/woodguard/internal/timing"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: closed")

const schema = `
CREATE TABLE IF NOT EXISTS windows (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT    NOT NULL,
	phase        INTEGER NOT NULL,
	recorded_at  TEXT    NOT NULL,
	sample_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS samples (
	window_id INTEGER NOT NULL REFERENCES windows(id) ON DELETE CASCADE,
	idx       INTEGER NOT NULL,
	g         REAL    NOT NULL,
	PRIMARY KEY (window_id, idx)
);
CREATE INDEX IF NOT EXISTS windows_run ON windows(run_id, phase);
`

// Window describes one persisted acquisition.
type Window struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Phase      int       `json:"phase"`
	RecordedAt time.Time `json:"recorded_at"`
	Samples    int       `json:"samples"`
}

// SQLiteStore writes each window and its samples in one transaction.
type SQLiteStore struct {
	path  string
	clock timing.Clock
	log   *zap.Logger

	mu sync.Mutex
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string, clock timing.Clock, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &SQLiteStore{path: path, clock: clock, log: log.Named("storage")}
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	s.db = db
	s.log.Info("sample store opened", zap.String("path", path))
	return s, nil
}

func (s *SQLiteStore) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", s.path, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		schema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: init %s: %w", s.path, err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping %s: %w", s.path, err)
	}
	return db, nil
}

// transaction runs fn in a transaction and rolls back when fn fails.
func (s *SQLiteStore) transaction(fn func(*sql.Tx) error) error {
	if s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Write stores buf as one window. Either the window and all its samples are
// stored or nothing is.
func (s *SQLiteStore) Write(runID string, phase int, buf *accel.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vals := buf.Values()
	err := s.transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO windows (run_id, phase, recorded_at, sample_count) VALUES (?, ?, ?, ?)`,
			runID, phase, s.clock.Now().UTC().Format(time.RFC3339Nano), len(vals),
		)
		if err != nil {
			return fmt.Errorf("insert window: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("window id: %w", err)
		}

		stmt, err := tx.Prepare(`INSERT INTO samples (window_id, idx, g) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare samples: %w", err)
		}
		defer stmt.Close()
		for i, v := range vals {
			if _, err := stmt.Exec(id, i, float64(v)); err != nil {
				return fmt.Errorf("insert sample %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage: write phase %d: %w", phase, err)
	}
	s.log.Debug("window stored", zap.String("run_id", runID), zap.Int("phase", phase), zap.Int("samples", len(vals)))
	return nil
}

// Remount closes and reopens the database file.
func (s *SQLiteStore) Remount() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("close before remount failed", zap.Error(err))
		}
		s.db = nil
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	s.db = db
	s.log.Info("sample store remounted", zap.String("path", s.path))
	return nil
}

// Close releases the database. Remount reopens it.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Windows lists stored windows, newest first, at most limit of them.
func (s *SQLiteStore) Windows(limit int) ([]Window, error) {
	return s.queryWindows(
		`SELECT id, run_id, phase, recorded_at, sample_count FROM windows ORDER BY id DESC LIMIT ?`, limit)
}

// RunWindows lists the windows written by one run in phase order.
func (s *SQLiteStore) RunWindows(runID string) ([]Window, error) {
	return s.queryWindows(
		`SELECT id, run_id, phase, recorded_at, sample_count FROM windows WHERE run_id = ? ORDER BY phase, id`, runID)
}

func (s *SQLiteStore) queryWindows(query string, args ...any) ([]Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list windows: %w", err)
	}
	defer rows.Close()

	var out []Window
	for rows.Next() {
		var (
			w  Window
			at string
		)
		if err := rows.Scan(&w.ID, &w.RunID, &w.Phase, &at, &w.Samples); err != nil {
			return nil, fmt.Errorf("storage: scan window: %w", err)
		}
		if w.RecordedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("storage: window %d time: %w", w.ID, err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Samples returns the stored values of one window in acquisition order.
func (s *SQLiteStore) Samples(windowID int64) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.Query(`SELECT g FROM samples WHERE window_id = ? ORDER BY idx`, windowID)
	if err != nil {
		return nil, fmt.Errorf("storage: read samples: %w", err)
	}
	defer rows.Close()

	var out []float32
	for rows.Next() {
		var g float64
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("storage: scan sample: %w", err)
		}
		out = append(out, float32(g))
	}
	return out, rows.Err()
}
