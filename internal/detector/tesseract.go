//go:build tesseract

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package detector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text lines locally. It reads the image from
// Request.ImagePath.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract creates a Tesseract engine for the given languages
// (default "eng").
func NewTesseract(langs ...string) (*Tesseract, error) {
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	c := gosseract.NewClient()
	if err := c.SetLanguage(langs...); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("set tesseract language: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	return &Tesseract{client: c}, nil
}

func (t *Tesseract) Name() string { return "tesseract" }

// Detect returns one detection per recognized text line.
func (t *Tesseract) Detect(ctx context.Context, req Request) ([]Detection, error) {
	if req.ImagePath == "" {
		return nil, errors.New("tesseract needs a local image path")
	}
	if _, err := os.Stat(req.ImagePath); err != nil {
		return nil, fmt.Errorf("stat image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// gosseract clients are not safe for concurrent use.
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.client.SetImage(req.ImagePath); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	out := make([]Detection, 0, len(boxes))
	for _, b := range boxes {
		text := strings.Join(strings.Fields(b.Word), " ")
		if text == "" {
			continue
		}
		conf := b.Confidence / 100
		r := b.Box
		out = append(out, Detection{
			X:          float64(r.Min.X),
			Y:          float64(r.Min.Y),
			Width:      float64(r.Dx()),
			Height:     float64(r.Dy()),
			Text:       text,
			Confidence: &conf,
		})
	}
	return out, nil
}

func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
