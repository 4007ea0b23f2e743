/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "gostoryboard/internal/log"
	"gostoryboard/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	SQLiteFileName = "storyboard.sqlite"

	// sqliteSchemaVersion tracks the kv database layout; bump it together with a new
	// case in migrateSQLite.
	sqliteSchemaVersion = 2
)

// SQLiteSlot keeps values in a single-file SQLite database (WAL mode).
type SQLiteSlot struct {
	db   *sql.DB
	path string
}

// OpenSQLiteSlot opens or creates <dir>/storyboard.sqlite and brings its schema up to date.
func OpenSQLiteSlot(ctx context.Context, dir string) (*SQLiteSlot, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "sqlite_open").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	path := filepath.Join(dir, SQLiteFileName)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureSQLiteVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure version table failed", slog.Any("err", err))
		return nil, err
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		l.Error("migration failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("sqlite slot ready", slog.String("path", path))
	return &SQLiteSlot{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLiteSlot) Path() string { return s.path }

func ensureSQLiteVersion(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS version (
		id          INTEGER PRIMARY KEY CHECK(id=1),
		schema      INTEGER NOT NULL,
		app         TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);`); err != nil {
		return fmt.Errorf("create version table: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	// a fresh database starts at schema 0 and is walked up by migrateSQLite
	if _, err := db.ExecContext(ctx,
		`INSERT INTO version (id, schema, app, created_at, updated_at) VALUES (1, 0, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET app=excluded.app, updated_at=excluded.updated_at`,
		version.String(), now, now); err != nil {
		return fmt.Errorf("seed version: %w", err)
	}
	return nil
}

var sqliteMigrations = map[int][]string{
	1: {
		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	},
	2: {
		`ALTER TABLE kv ADD COLUMN revision INTEGER NOT NULL DEFAULT 0;`,
	},
}

// migrateSQLite applies one transaction per schema step up to sqliteSchemaVersion.
// Databases from a newer build are left alone.
func migrateSQLite(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for next := cur + 1; next <= sqliteSchemaVersion; next++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range sqliteMigrations[next] {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
	}
	return nil
}

func (s *SQLiteSlot) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLiteSlot) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at, revision) VALUES (?, ?, ?, 1)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at, revision=kv.revision+1`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite put %s: %w", key, err)
	}
	return nil
}

// Revision returns how many times key has been written, or 0 when absent.
func (s *SQLiteSlot) Revision(ctx context.Context, key string) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM kv WHERE key=?`, key).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return rev, err
}

func (s *SQLiteSlot) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key=?`, key); err != nil {
		return fmt.Errorf("sqlite delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteSlot) Close() error { return s.db.Close() }
