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
	"log/slog"
	"net/http"
	"strings"

	"mangaeditor/internal/apperr"
	"mangaeditor/internal/domain"
	"mangaeditor/internal/ocr"
)

// multipartOverhead is allowed on top of the image size limit for form fields.
const multipartOverhead = 1 << 20

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploads.MaxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			writeError(w, r, apperr.Validationf("file too large: limit is %d MB", s.uploads.MaxBytes>>20))
			return
		}
		writeError(w, r, apperr.Validationf("expected multipart form with an image: %v", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		writeError(w, r, apperr.Validationf("project name is required"))
		return
	}
	file, fh, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, apperr.Validationf("no image uploaded"))
		return
	}
	defer file.Close()

	stored, err := s.uploads.Save(fh.Filename, fh.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.repo.CreateProject(r.Context(), domain.NewProject{
		Name:             name,
		OriginalImageURL: stored.URL,
		Width:            stored.Width,
		Height:           stored.Height,
	})
	if err != nil {
		_ = s.uploads.Remove(stored.URL)
		writeError(w, r, err)
		return
	}
	s.log.InfoContext(r.Context(), "project created", slog.Int64("project", p.ID), slog.String("image", stored.URL))
	s.event("project_created", map[string]any{"width": p.Width, "height": p.Height, "type": stored.ContentType})
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.ListProjects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Project{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "project")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.repo.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "project")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch domain.ProjectPatch
	if err := s.decodeValidated(r, schemaProjectPatch, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.repo.UpdateProject(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "project")
	if err != nil {
		writeError(w, r, err)
		return
	}
	boxes, err := s.repo.ListTextBoxesByProject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.repo.DeleteProject(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	ids := make([]int64, len(boxes))
	for i, b := range boxes {
		ids[i] = b.ID
	}
	s.history.Clear(ids...)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type ocrResponse struct {
	TextBoxes    []domain.TextBox `json:"textBoxes"`
	DetectorUsed ocr.Source       `json:"detectorUsed"`
	Detector     string           `json:"detector"`
}

func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "project")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.repo.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.ocr.Run(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ocrResponse{TextBoxes: res.TextBoxes, DetectorUsed: res.Source, Detector: res.Detector})
}

// decodeValidated reads the body, checks it against the named schema and
// decodes it into dst.
func (s *Server) decodeValidated(r *http.Request, schema string, dst any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if err := decodeJSON(body, new(any)); err != nil {
		return err
	}
	if err := s.schemas.validate(schema, body); err != nil {
		return err
	}
	return decodeJSON(body, dst)
}
