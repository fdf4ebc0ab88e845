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
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"mangaeditor/internal/apperr"
	applog "mangaeditor/internal/log"
	"mangaeditor/internal/version"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and writes {"error": msg}. Internal
// causes are logged, not returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusOK {
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		applog.WithComponent("server").ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("err", err))
	}
	writeJSON(w, status, map[string]any{"error": apperr.Message(err)})
}

func pathID(r *http.Request, entity string) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validationf("invalid %s id %q", entity, raw)
	}
	return id, nil
}

// readBody reads a bounded JSON body. An empty body is returned as "{}".
func readBody(r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody+1))
	if err != nil {
		return nil, apperr.Validationf("read body: %v", err)
	}
	if len(b) > maxJSONBody {
		return nil, apperr.Validationf("request body too large")
	}
	if len(b) == 0 {
		return []byte("{}"), nil
	}
	return b, nil
}

func decodeJSON(b []byte, dst any) error {
	if err := json.Unmarshal(b, dst); err != nil {
		var se *json.SyntaxError
		if errors.As(err, &se) {
			return apperr.Validationf("malformed JSON at offset %d", se.Offset)
		}
		return apperr.Validationf("invalid JSON body: %v", err)
	}
	return nil
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(version.String()))
}
