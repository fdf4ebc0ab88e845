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
	"encoding/json"
	"net/http"

	"mangaeditor/internal/apperr"
	"mangaeditor/internal/domain"
)

func (s *Server) handleListTextBoxes(w http.ResponseWriter, r *http.Request) {
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
	if boxes == nil {
		boxes = []domain.TextBox{}
	}
	writeJSON(w, http.StatusOK, boxes)
}

func (s *Server) handleCreateTextBox(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "project")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in domain.NewTextBox
	if err := s.decodeValidated(r, schemaTextBoxNew, &in); err != nil {
		writeError(w, r, err)
		return
	}
	// The project must exist; creation under a missing project is a 404 here.
	if _, err := s.repo.GetProject(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	in.ProjectID = id
	b, err := s.repo.CreateTextBox(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleGetTextBox(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "text box")
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.repo.GetTextBox(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleUpdateTextBox applies a patch and records the previous state for undo.
func (s *Server) handleUpdateTextBox(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "text box")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch domain.TextBoxPatch
	if err := s.decodeValidated(r, schemaTextBoxPatch, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	after, before, err := s.repo.UpdateTextBox(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if blob, err := json.Marshal(before); err == nil {
		s.history.Record(id, blob)
	}
	writeJSON(w, http.StatusOK, after)
}

func (s *Server) handleDeleteTextBox(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "text box")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.repo.DeleteTextBox(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.history.Clear(id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) { s.step(w, r, true) }
func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) { s.step(w, r, false) }

// step restores the previous (undo) or next (redo) state of a text box.
func (s *Server) step(w http.ResponseWriter, r *http.Request, undo bool) {
	id, err := pathID(r, "text box")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cur, err := s.repo.GetTextBox(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	blob, err := json.Marshal(cur)
	if err != nil {
		writeError(w, r, apperr.Internal("encode text box", err))
		return
	}
	op := s.history.Redo
	what := "redo"
	if undo {
		op = s.history.Undo
		what = "undo"
	}
	snap, ok := op(id, blob)
	if !ok {
		writeError(w, r, apperr.Validationf("nothing to %s for text box %d", what, id))
		return
	}
	var prev domain.TextBox
	if err := json.Unmarshal(snap.Blob, &prev); err != nil {
		writeError(w, r, apperr.Internal("decode history", err))
		return
	}
	b, _, err := s.repo.UpdateTextBox(r.Context(), id, domain.RestorePatch(prev))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
