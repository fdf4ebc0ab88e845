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
	"strconv"
	"strings"
	"time"

	"mangaeditor/internal/apperr"
	"mangaeditor/internal/domain"
	applog "mangaeditor/internal/log"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// lockRow is appended to a SELECT that precedes an UPDATE of the same row.
// SQLite runs on a single connection so transactions already serialize.
func (d dialect) lockRow() string {
	if d == dialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// rebind rewrites ? placeholders into $1..$n for PostgreSQL.
func (d dialect) rebind(q string) string {
	if d != dialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// SQLStore implements Repository on database/sql. Timestamps are stored as
// unix nanoseconds.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     Clock
	log     *slog.Logger
}

func newSQLStore(db *sql.DB, d dialect, name string) *SQLStore {
	return &SQLStore{db: db, dialect: d, now: systemClock, log: applog.WithComponent("store").With(slog.String("driver", name))}
}

// SetClock replaces the clock used to stamp records.
func (s *SQLStore) SetClock(c Clock) {
	if c != nil {
		s.now = c
	}
}

// DB exposes the underlying handle for maintenance tasks.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLStore) Close() error                   { return s.db.Close() }

const projectCols = `id, name, original_image_url, edited_image_url, width, height, created_at, updated_at`

const boxCols = `id, project_id, x, y, width, height, original_text, edited_text, confidence,
	font_size, font_color, background_color, is_bold, is_italic, is_underline, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanProject(r rowScanner) (domain.Project, error) {
	var (
		p       domain.Project
		edited  sql.NullString
		created int64
		updated int64
	)
	if err := r.Scan(&p.ID, &p.Name, &p.OriginalImageURL, &edited, &p.Width, &p.Height, &created, &updated); err != nil {
		return domain.Project{}, err
	}
	p.EditedImageURL = fromNullString(edited)
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return p, nil
}

func scanBox(r rowScanner) (domain.TextBox, error) {
	var (
		b                  domain.TextBox
		orig, edited, bg   sql.NullString
		conf               sql.NullInt64
		bold, italic, undl bool
		created            int64
	)
	if err := r.Scan(&b.ID, &b.ProjectID, &b.X, &b.Y, &b.Width, &b.Height, &orig, &edited, &conf,
		&b.FontSize, &b.FontColor, &bg, &bold, &italic, &undl, &created); err != nil {
		return domain.TextBox{}, err
	}
	b.OriginalText = fromNullString(orig)
	b.EditedText = fromNullString(edited)
	b.BackgroundColor = fromNullString(bg)
	if conf.Valid {
		c := int(conf.Int64)
		b.Confidence = &c
	}
	b.IsBold, b.IsItalic, b.IsUnderline = bold, italic, undl
	b.CreatedAt = time.Unix(0, created).UTC()
	return b, nil
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func toNullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func (s *SQLStore) internal(op string, err error) error {
	s.log.Error("query failed", slog.String("op", op), slog.Any("err", err))
	return apperr.Internal(op, err)
}

func (s *SQLStore) CreateProject(ctx context.Context, in domain.NewProject) (domain.Project, error) {
	p, err := in.Build(0, s.now())
	if err != nil {
		return domain.Project{}, err
	}
	q := s.dialect.rebind(`INSERT INTO projects (name, original_image_url, edited_image_url, width, height, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err = s.db.QueryRowContext(ctx, q, p.Name, p.OriginalImageURL, toNullString(p.EditedImageURL),
		p.Width, p.Height, p.CreatedAt.UnixNano(), p.UpdatedAt.UnixNano()).Scan(&p.ID)
	if err != nil {
		return domain.Project{}, s.internal("create project", err)
	}
	return p, nil
}

func (s *SQLStore) getProject(ctx context.Context, q querier, id int64) (domain.Project, error) {
	row := q.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+projectCols+` FROM projects WHERE id = ?`), id)
	p, err := scanProject(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Project{}, apperr.NotFound("project", id)
	case err != nil:
		return domain.Project{}, s.internal("get project", err)
	}
	return p, nil
}

func (s *SQLStore) GetProject(ctx context.Context, id int64) (domain.Project, error) {
	return s.getProject(ctx, s.db, id)
}

func (s *SQLStore) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectCols+` FROM projects ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, s.internal("list projects", err)
	}
	defer rows.Close()
	out := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, s.internal("scan project", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.internal("list projects", err)
	}
	return out, nil
}

func (s *SQLStore) UpdateProject(ctx context.Context, id int64, patch domain.ProjectPatch) (domain.Project, error) {
	var out domain.Project
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		p, err := s.getProject(ctx, tx, id)
		if err != nil {
			return err
		}
		if p, err = patch.Apply(p, s.now()); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.dialect.rebind(`UPDATE projects SET name = ?, original_image_url = ?, edited_image_url = ?, updated_at = ? WHERE id = ?`),
			p.Name, p.OriginalImageURL, toNullString(p.EditedImageURL), p.UpdatedAt.UnixNano(), id)
		if err != nil {
			return s.internal("update project", err)
		}
		out = p
		return nil
	})
	return out, err
}

// DeleteProject removes the project and all of its text boxes in one
// transaction.
func (s *SQLStore) DeleteProject(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM text_boxes WHERE project_id = ?`), id); err != nil {
			return s.internal("delete project boxes", err)
		}
		res, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM projects WHERE id = ?`), id)
		if err != nil {
			return s.internal("delete project", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("project", id)
		}
		return nil
	})
}

func (s *SQLStore) CreateTextBox(ctx context.Context, in domain.NewTextBox) (domain.TextBox, error) {
	b, err := in.Build(0, s.now())
	if err != nil {
		return domain.TextBox{}, err
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getProject(ctx, tx, b.ProjectID); err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return apperr.Validationf("project %d does not exist", b.ProjectID)
			}
			return err
		}
		q := s.dialect.rebind(`INSERT INTO text_boxes (project_id, x, y, width, height, original_text, edited_text, confidence,
			font_size, font_color, background_color, is_bold, is_italic, is_underline, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
		err := tx.QueryRowContext(ctx, q, b.ProjectID, b.X, b.Y, b.Width, b.Height,
			toNullString(b.OriginalText), toNullString(b.EditedText), toNullInt(b.Confidence),
			b.FontSize, b.FontColor, toNullString(b.BackgroundColor), b.IsBold, b.IsItalic, b.IsUnderline,
			b.CreatedAt.UnixNano()).Scan(&b.ID)
		if err != nil {
			return s.internal("create text box", err)
		}
		return nil
	})
	if err != nil {
		return domain.TextBox{}, err
	}
	return b, nil
}

func (s *SQLStore) getTextBox(ctx context.Context, q querier, id int64) (domain.TextBox, error) {
	return s.selectTextBox(ctx, q, id, "")
}

func (s *SQLStore) selectTextBox(ctx context.Context, q querier, id int64, suffix string) (domain.TextBox, error) {
	row := q.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+boxCols+` FROM text_boxes WHERE id = ?`+suffix), id)
	b, err := scanBox(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.TextBox{}, apperr.NotFound("text box", id)
	case err != nil:
		return domain.TextBox{}, s.internal("get text box", err)
	}
	return b, nil
}

func (s *SQLStore) GetTextBox(ctx context.Context, id int64) (domain.TextBox, error) {
	return s.getTextBox(ctx, s.db, id)
}

func (s *SQLStore) ListTextBoxesByProject(ctx context.Context, projectID int64) ([]domain.TextBox, error) {
	if _, err := s.getProject(ctx, s.db, projectID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`SELECT `+boxCols+` FROM text_boxes WHERE project_id = ? ORDER BY created_at ASC, id ASC`), projectID)
	if err != nil {
		return nil, s.internal("list text boxes", err)
	}
	defer rows.Close()
	out := []domain.TextBox{}
	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return nil, s.internal("scan text box", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, s.internal("list text boxes", err)
	}
	return out, nil
}

func (s *SQLStore) UpdateTextBox(ctx context.Context, id int64, patch domain.TextBoxPatch) (domain.TextBox, domain.TextBox, error) {
	var out, prev domain.TextBox
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		prev, err = s.selectTextBox(ctx, tx, id, s.dialect.lockRow())
		if err != nil {
			return err
		}
		b, err := patch.Apply(prev)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.dialect.rebind(`UPDATE text_boxes SET x = ?, y = ?, width = ?, height = ?, edited_text = ?,
			confidence = ?, font_size = ?, font_color = ?, background_color = ?, is_bold = ?, is_italic = ?, is_underline = ?
			WHERE id = ?`),
			b.X, b.Y, b.Width, b.Height, toNullString(b.EditedText), toNullInt(b.Confidence), b.FontSize, b.FontColor,
			toNullString(b.BackgroundColor), b.IsBold, b.IsItalic, b.IsUnderline, id)
		if err != nil {
			return s.internal("update text box", err)
		}
		out = b
		return nil
	})
	if err != nil {
		return domain.TextBox{}, domain.TextBox{}, err
	}
	return out, prev, nil
}

func (s *SQLStore) DeleteTextBox(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM text_boxes WHERE id = ?`), id)
	if err != nil {
		return s.internal("delete text box", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("text box", id)
	}
	return nil
}

// inTx runs fn in a transaction, committing only when fn returns nil.
func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.internal("begin tx", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.internal("commit", fmt.Errorf("commit: %w", err))
	}
	return nil
}
