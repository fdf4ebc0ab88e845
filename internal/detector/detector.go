/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package detector talks to text-region detectors: the external comic text
// detection service over HTTP, a local Tesseract engine, and combinators that
// chain or cache them.
package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	applog "mangaeditor/internal/log"
)

// Detection is one raw text region as reported by a detector, in image
// pixels. Confidence is in [0, 1] when present.
type Detection struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Request identifies the image to analyse. ImageURL is what the web client
// sees; ImagePath is the local file, when known.
type Request struct {
	ImageURL  string
	ImagePath string
}

// Key returns a stable identifier for caching.
func (r Request) Key() string {
	if r.ImageURL != "" {
		return r.ImageURL
	}
	return r.ImagePath
}

// Detector finds text regions in an image.
type Detector interface {
	Name() string
	Detect(ctx context.Context, req Request) ([]Detection, error)
}

// ErrNoDetections is returned by Chain when no detector found anything.
var ErrNoDetections = errors.New("no text regions detected")

// ErrTesseractNotEnabled is returned when local recognition was not
// compiled in. Rebuild with -tags tesseract (requires libtesseract).
var ErrTesseractNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags tesseract")

// Chain tries detectors in order; the first non-empty result wins.
type Chain []Detector

func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, d := range c {
		names = append(names, d.Name())
	}
	return strings.Join(names, ",")
}

func (c Chain) Detect(ctx context.Context, req Request) ([]Detection, error) {
	out, _, err := c.DetectSourced(ctx, req)
	return out, err
}

// DetectSourced returns the first non-empty result and the name of the
// detector that produced it. When all detectors fail or come back empty the
// joined errors are returned.
func (c Chain) DetectSourced(ctx context.Context, req Request) ([]Detection, string, error) {
	l := applog.WithOperation(applog.WithComponent("detector"), "chain")
	var errs []error
	for _, d := range c {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		out, name, err := DetectNamed(ctx, d, req)
		if err != nil {
			l.Debug("detector failed", slog.String("detector", d.Name()), slog.Any("err", err))
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}
		if len(out) > 0 {
			return out, name, nil
		}
	}
	if len(errs) == 0 {
		return nil, "", ErrNoDetections
	}
	return nil, "", errors.Join(errs...)
}

// Sourced is implemented by detectors that wrap others and can tell which
// one produced a result.
type Sourced interface {
	DetectSourced(ctx context.Context, req Request) ([]Detection, string, error)
}

// DetectNamed runs d and reports the name of the detector that answered.
func DetectNamed(ctx context.Context, d Detector, req Request) ([]Detection, string, error) {
	if s, ok := d.(Sourced); ok {
		return s.DetectSourced(ctx, req)
	}
	out, err := d.Detect(ctx, req)
	return out, d.Name(), err
}
