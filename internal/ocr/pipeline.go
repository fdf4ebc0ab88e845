/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package ocr turns detector output into persisted text boxes. When the
// detector is unavailable it substitutes a deterministic placeholder set so a
// project always ends up with something to edit.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"mangaeditor/internal/apperr"
	"mangaeditor/internal/config"
	"mangaeditor/internal/detector"
	"mangaeditor/internal/domain"
	applog "mangaeditor/internal/log"
	"mangaeditor/internal/store"
	"mangaeditor/internal/telemetry"
)

// Source tells where a result came from.
type Source string

const (
	SourceExternal Source = "external"
	SourceFallback Source = "fallback"
)

const (
	DefaultText       = "Detected text"
	DefaultConfidence = 0.8
	DefaultTimeout    = time.Duration(config.DefaultDetectorTimeoutMs) * time.Millisecond
)

// Result is the outcome of one OCR run.
type Result struct {
	Source    Source
	Detector  string
	TextBoxes []domain.TextBox
}

// Pipeline runs detection for a project and persists the boxes.
type Pipeline struct {
	Store    store.Repository
	Detector detector.Detector
	// Timeout bounds the detector call; zero uses DefaultTimeout.
	Timeout time.Duration
	// ResolvePath maps an image URL to a local file for detectors that need one.
	ResolvePath func(url string) (string, bool)
	// Event records a telemetry event; nil uses the package default client.
	Event func(name string, props map[string]any)
}

// New returns a pipeline with the default timeout.
func New(repo store.Repository, det detector.Detector) *Pipeline {
	return &Pipeline{Store: repo, Detector: det, Timeout: DefaultTimeout}
}

// Run detects text regions for p and persists them in order. Detector
// failures of any kind are logged and replaced by the fallback set; only
// store failures are returned.
func (pl *Pipeline) Run(ctx context.Context, p domain.Project) (Result, error) {
	l := applog.WithOperation(applog.WithComponent("ocr"), "run").With(slog.Int64("project", p.ID))
	start := time.Now()

	res := Result{Source: SourceFallback, Detector: string(SourceFallback)}
	candidates, name, err := pl.detect(ctx, p)
	switch {
	case err != nil:
		l.Warn("detector unavailable, using fallback", slog.Any("err", err))
	case len(candidates) == 0:
		l.Warn("detector returned no regions, using fallback")
	default:
		res.Source = SourceExternal
		res.Detector = name
	}
	if res.Source == SourceFallback {
		candidates = FallbackBoxes(p)
	}

	res.TextBoxes = make([]domain.TextBox, 0, len(candidates))
	for i, c := range candidates {
		c.ProjectID = p.ID
		b, err := pl.Store.CreateTextBox(ctx, c)
		if err != nil {
			l.Error("persist text box failed", slog.Int("index", i), slog.Any("err", err))
			if k := apperr.KindOf(err); k == apperr.KindNotFound || k == apperr.KindValidation {
				return Result{}, err
			}
			return Result{}, apperr.Internal("persist detected text boxes", err)
		}
		res.TextBoxes = append(res.TextBoxes, b)
	}
	l.Info("ocr finished",
		slog.String("source", string(res.Source)),
		slog.String("detector", res.Detector),
		slog.Int("boxes", len(res.TextBoxes)),
		slog.Duration("took", time.Since(start)))
	pl.event("ocr_run", map[string]any{"source": string(res.Source), "count": len(res.TextBoxes)})
	return res, nil
}

func (pl *Pipeline) detect(ctx context.Context, p domain.Project) ([]domain.NewTextBox, string, error) {
	if pl.Detector == nil {
		return nil, "", fmt.Errorf("no detector configured")
	}
	timeout := pl.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req := detector.Request{ImageURL: p.OriginalImageURL}
	if pl.ResolvePath != nil {
		if path, ok := pl.ResolvePath(p.OriginalImageURL); ok {
			req.ImagePath = path
		}
	}
	dets, name, err := detector.DetectNamed(dctx, pl.Detector, req)
	if err != nil {
		return nil, name, err
	}
	return MapDetections(dets), name, nil
}

func (pl *Pipeline) event(name string, props map[string]any) {
	if pl.Event != nil {
		pl.Event(name, props)
		return
	}
	telemetry.Event(name, props)
}

// MapDetections converts raw detections into text box inputs: coordinates are
// rounded and clamped to zero, missing text becomes DefaultText and
// confidence is scaled to 0..100 (absent means DefaultConfidence).
func MapDetections(dets []detector.Detection) []domain.NewTextBox {
	out := make([]domain.NewTextBox, 0, len(dets))
	for _, d := range dets {
		text := strings.TrimSpace(d.Text)
		if text == "" {
			text = DefaultText
		}
		c := DefaultConfidence
		if d.Confidence != nil && !math.IsNaN(*d.Confidence) {
			c = *d.Confidence
		}
		conf := domain.ClampConfidence(int(math.Round(c * 100)))
		out = append(out, domain.NewTextBox{
			X:            px(d.X),
			Y:            px(d.Y),
			Width:        px(d.Width),
			Height:       px(d.Height),
			OriginalText: &text,
			Confidence:   &conf,
		})
	}
	return out
}

func px(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	return int(math.Round(v))
}

// FallbackBoxes is the deterministic placeholder set for p, proportional to
// the image size.
func FallbackBoxes(p domain.Project) []domain.NewTextBox {
	w, h := float64(p.Width), float64(p.Height)
	mk := func(fx, fy, fw, fh float64, text string, conf int) domain.NewTextBox {
		return domain.NewTextBox{
			X:            int(math.Floor(w * fx)),
			Y:            int(math.Floor(h * fy)),
			Width:        int(math.Floor(w * fw)),
			Height:       int(math.Floor(h * fh)),
			OriginalText: domain.Ptr(text),
			Confidence:   domain.Ptr(conf),
		}
	}
	return []domain.NewTextBox{
		mk(0.15, 0.10, 0.30, 0.08, "Sample detected text", 87),
		mk(0.55, 0.25, 0.35, 0.06, "Another text block", 92),
	}
}
