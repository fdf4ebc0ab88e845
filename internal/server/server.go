/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package server exposes projects, text boxes, OCR and export over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	applog "mangaeditor/internal/log"
	"mangaeditor/internal/ocr"
	"mangaeditor/internal/store"
	"mangaeditor/internal/textlayout"
	"mangaeditor/internal/undo"
	"mangaeditor/internal/upload"
)

// Options wires the server's collaborators. Store and Uploads are required.
type Options struct {
	Store   store.Repository
	Uploads *upload.Store
	OCR     *ocr.Pipeline
	History *undo.Manager
	Fonts   textlayout.Provider
	// DataDir receives crash reports for recovered handler panics.
	DataDir string
	// Event records telemetry; nil drops events.
	Event func(name string, props map[string]any)
}

// Server holds the handlers. Create with New.
type Server struct {
	repo    store.Repository
	uploads *upload.Store
	ocr     *ocr.Pipeline
	history *undo.Manager
	fonts   textlayout.Provider
	dataDir string
	event   func(string, map[string]any)
	schemas *schemas
	log     *slog.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Store == nil || opts.Uploads == nil {
		return nil, errors.New("server: store and uploads are required")
	}
	sc, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	s := &Server{
		repo:    opts.Store,
		uploads: opts.Uploads,
		ocr:     opts.OCR,
		history: opts.History,
		fonts:   opts.Fonts,
		dataDir: opts.DataDir,
		event:   opts.Event,
		schemas: sc,
		log:     applog.WithComponent("server"),
	}
	if s.ocr == nil {
		s.ocr = ocr.New(opts.Store, nil)
	}
	if s.ocr.ResolvePath == nil {
		s.ocr.ResolvePath = s.uploads.Resolve
	}
	if s.history == nil {
		s.history = undo.NewManager(undo.Config{MaxPerBox: 100, MinInterval: 500 * time.Millisecond})
	}
	if s.fonts == nil {
		gf, err := textlayout.NewGoFonts()
		if err != nil {
			return nil, err
		}
		s.fonts = gf
	}
	if s.event == nil {
		s.event = func(string, map[string]any) {}
	}
	return s, nil
}

// Handler returns the routed handler wrapped in request id, logging and
// recover middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /version", handleVersion)
	mux.Handle("GET "+upload.URLPrefix, s.uploads.Handler())

	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("PATCH /api/projects/{id}", s.handleUpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)
	mux.HandleFunc("POST /api/projects/{id}/ocr", s.handleOCR)
	mux.HandleFunc("GET /api/projects/{id}/textboxes", s.handleListTextBoxes)
	mux.HandleFunc("POST /api/projects/{id}/textboxes", s.handleCreateTextBox)
	mux.HandleFunc("POST /api/projects/{id}/hittest", s.handleHitTest)
	mux.HandleFunc("POST /api/projects/{id}/export", s.handleExport)

	mux.HandleFunc("GET /api/textboxes/{id}", s.handleGetTextBox)
	mux.HandleFunc("PATCH /api/textboxes/{id}", s.handleUpdateTextBox)
	mux.HandleFunc("DELETE /api/textboxes/{id}", s.handleDeleteTextBox)
	mux.HandleFunc("POST /api/textboxes/{id}/undo", s.handleUndo)
	mux.HandleFunc("POST /api/textboxes/{id}/redo", s.handleRedo)

	return withRequestID(withLogging(s.withRecover(mux)))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.repo.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
