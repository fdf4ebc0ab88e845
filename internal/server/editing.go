/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/disintegration/imaging"

	"mangaeditor/internal/apperr"
	"mangaeditor/internal/domain"
	"mangaeditor/internal/export"
	"mangaeditor/internal/filter"
	"mangaeditor/internal/overlay"
	"mangaeditor/internal/vector"
	"mangaeditor/internal/viewport"
)

type hitTestRequest struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	ZoomLevel float64 `json:"zoomLevel"`
	PanX      float64 `json:"panX"`
	PanY      float64 `json:"panY"`
}

type hitTestResponse struct {
	Hit     bool            `json:"hit"`
	TextBox *domain.TextBox `json:"textBox"`
	ImageX  float64         `json:"imageX"`
	ImageY  float64         `json:"imageY"`
}

// handleHitTest maps a screen point through the given viewport state and
// returns the topmost box under it.
func (s *Server) handleHitTest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "project")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req hitTestRequest
	if err := s.decodeValidated(r, schemaHitTest, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ZoomLevel == 0 {
		req.ZoomLevel = 1
	}
	boxes, err := s.repo.ListTextBoxesByProject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st := viewport.State{ZoomLevel: req.ZoomLevel, PanX: req.PanX, PanY: req.PanY}
	screen := vector.Pt{X: req.X, Y: req.Y}
	img := st.ToImage(screen)
	resp := hitTestResponse{ImageX: img.X, ImageY: img.Y}
	if b, ok := overlay.HitTest(st, screen, boxes); ok {
		resp.Hit, resp.TextBox = true, &b
	}
	writeJSON(w, http.StatusOK, resp)
}

type exportRequest struct {
	Format  string        `json:"format"`
	Filters []filter.Step `json:"filters"`
}

// handleExport renders the project with filters and text boxes. PNG output
// is also stored and becomes the project's edited image.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "project")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req exportRequest
	if err := s.decodeValidated(r, schemaExport, &req); err != nil {
		writeError(w, r, err)
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		writeError(w, r, apperr.Validationf("%v", err))
		return
	}
	p, err := s.repo.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	boxes, err := s.repo.ListTextBoxesByProject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	src, err := s.uploads.Open(p.OriginalImageURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	start := time.Now()
	opts := export.Options{Filters: req.Filters, Fonts: s.fonts, Padding: 4}
	var buf bytes.Buffer
	switch format {
	case export.FormatPDF:
		if err := export.WritePDF(&buf, src, boxes, export.PDFOptions{Options: opts, Title: p.Name}); err != nil {
			writeError(w, r, exportErr(err))
			return
		}
	default:
		out, err := export.Render(src, boxes, opts)
		if err != nil {
			writeError(w, r, exportErr(err))
			return
		}
		stored, err := s.uploads.SavePNG(out)
		if err != nil {
			writeError(w, r, err)
			return
		}
		old := p.EditedImageURL
		if _, err := s.repo.UpdateProject(r.Context(), id, domain.ProjectPatch{EditedImageURL: domain.NullStringFrom(&stored.URL)}); err != nil {
			_ = s.uploads.Remove(stored.URL)
			writeError(w, r, err)
			return
		}
		if old != nil && *old != stored.URL {
			_ = s.uploads.Remove(*old)
		}
		w.Header().Set("X-Edited-Image-URL", stored.URL)
		if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
			writeError(w, r, apperr.Internal("encode png", err))
			return
		}
	}
	s.log.InfoContext(r.Context(), "project exported",
		slog.Int64("project", id), slog.String("format", string(format)),
		slog.Int("boxes", len(boxes)), slog.Duration("took", time.Since(start)))
	s.event("export", map[string]any{"format": string(format), "boxes": len(boxes), "filters": len(req.Filters)})

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"project-%d.%s\"", id, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func exportErr(err error) error {
	if apperr.KindOf(err) == apperr.KindValidation {
		return err
	}
	return apperr.Internal("export failed", err)
}
