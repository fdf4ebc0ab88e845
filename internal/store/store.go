/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package store persists projects and their text boxes. Three backends share
// one contract: an in-memory map for development and tests, an embedded
// SQLite file and a PostgreSQL database.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mangaeditor/internal/config"
	"mangaeditor/internal/domain"
)

// Repository is the text-region store. Deleting a project removes its text
// boxes atomically. Not-found lookups return an apperr NotFound error and
// leave the store unchanged.
type Repository interface {
	CreateProject(ctx context.Context, in domain.NewProject) (domain.Project, error)
	GetProject(ctx context.Context, id int64) (domain.Project, error)
	// ListProjects orders by updatedAt descending, ties by id descending.
	ListProjects(ctx context.Context) ([]domain.Project, error)
	UpdateProject(ctx context.Context, id int64, patch domain.ProjectPatch) (domain.Project, error)
	DeleteProject(ctx context.Context, id int64) error

	CreateTextBox(ctx context.Context, in domain.NewTextBox) (domain.TextBox, error)
	GetTextBox(ctx context.Context, id int64) (domain.TextBox, error)
	// ListTextBoxesByProject orders by createdAt ascending, ties by id ascending.
	ListTextBoxesByProject(ctx context.Context, projectID int64) ([]domain.TextBox, error)
	// UpdateTextBox returns the patched box and the state it replaced, both
	// read under the same lock or transaction as the write.
	UpdateTextBox(ctx context.Context, id int64, patch domain.TextBoxPatch) (after, before domain.TextBox, err error)
	DeleteTextBox(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
	Close() error
}

// Clock returns the current time. Stores stamp records with it.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the repository selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Repository, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverMemory:
		return NewMemory(nil), nil
	case DriverSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case DriverPostgres, "postgresql", "pg":
		return OpenPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
