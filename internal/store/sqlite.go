/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package store

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

	applog "mangaeditor/internal/log"
	"mangaeditor/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// schemaVersion tracks the SQLite schema. Bump it together with a new
// migration step in runMigrations.
const schemaVersion = 2

// OpenSQLite opens (or creates) the database file at path, enables WAL and
// foreign keys, and brings the schema up to date.
func OpenSQLite(path string) (*SQLStore, error) {
	l := applog.WithOperation(applog.WithComponent("store"), "sqlite_open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			l.Error("create data dir failed", slog.Any("err", err))
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; also keeps transactions on a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure version failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Info("store ready")
	return newSQLStore(db, dialectSQLite, DriverSQLite), nil
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			name               TEXT    NOT NULL,
			original_image_url TEXT    NOT NULL,
			edited_image_url   TEXT,
			width              INTEGER NOT NULL,
			height             INTEGER NOT NULL,
			created_at         INTEGER NOT NULL,
			updated_at         INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS text_boxes (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id       INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			x                INTEGER NOT NULL,
			y                INTEGER NOT NULL,
			width            INTEGER NOT NULL,
			height           INTEGER NOT NULL,
			original_text    TEXT,
			edited_text      TEXT,
			confidence       INTEGER,
			font_size        INTEGER NOT NULL DEFAULT 14,
			font_color       TEXT    NOT NULL DEFAULT '#000000',
			background_color TEXT,
			is_bold          INTEGER NOT NULL DEFAULT 0,
			is_italic        INTEGER NOT NULL DEFAULT 0,
			is_underline     INTEGER NOT NULL DEFAULT 0,
			created_at       INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_text_boxes_project ON text_boxes(project_id, created_at, id);`,
		`CREATE INDEX IF NOT EXISTS idx_projects_updated ON projects(updated_at, id);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ensureVersion seeds or refreshes the single-row version table.
func ensureVersion(ctx context.Context, db *sql.DB) error {
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
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema steps up to schemaVersion.
// A database written by a newer build is left alone.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			// v1 lacked the ordering indexes.
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_text_boxes_project ON text_boxes(project_id, created_at, id);`,
				`CREATE INDEX IF NOT EXISTS idx_projects_updated ON projects(updated_at, id);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// SchemaVersion reports the schema version recorded in the database.
func (s *SQLStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}
