/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// GoFonts resolves faces from the bundled Go font family (regular, bold,
// italic, bold italic). Faces are cached per size and style.
type GoFonts struct {
	mu    sync.Mutex
	fonts map[styleKey]*opentype.Font
	faces map[faceKey]font.Face
	// Fallback is used if a face cannot be created.
	Fallback Provider
}

type styleKey struct{ bold, italic bool }

type faceKey struct {
	style styleKey
	size  float64
}

var (
	goFontsOnce sync.Once
	goFontsErr  error
	goFontSet   map[styleKey]*opentype.Font
)

func parseGoFonts() (map[styleKey]*opentype.Font, error) {
	goFontsOnce.Do(func() {
		src := map[styleKey][]byte{
			{false, false}: goregular.TTF,
			{true, false}:  gobold.TTF,
			{false, true}:  goitalic.TTF,
			{true, true}:   gobolditalic.TTF,
		}
		goFontSet = make(map[styleKey]*opentype.Font, len(src))
		for k, data := range src {
			f, err := opentype.Parse(data)
			if err != nil {
				goFontsErr = fmt.Errorf("parse go font: %w", err)
				return
			}
			goFontSet[k] = f
		}
	})
	return goFontSet, goFontsErr
}

// NewGoFonts parses the Go fonts once per process.
func NewGoFonts() (*GoFonts, error) {
	set, err := parseGoFonts()
	if err != nil {
		return nil, err
	}
	return &GoFonts{fonts: set, faces: map[faceKey]font.Face{}, Fallback: BasicProvider{}}, nil
}

func (g *GoFonts) Resolve(spec FontSpec) (font.Face, Metrics) {
	if spec.SizePx <= 0 {
		spec.SizePx = 12
	}
	k := faceKey{style: styleKey{spec.Bold, spec.Italic}, size: math.Round(spec.SizePx*4) / 4}
	g.mu.Lock()
	defer g.mu.Unlock()
	if f, ok := g.faces[k]; ok {
		return f, metricsOf(f)
	}
	if otf := g.fonts[k.style]; otf != nil {
		// DPI 72 makes Size equal to pixels.
		face, err := opentype.NewFace(otf, &opentype.FaceOptions{Size: k.size, DPI: 72, Hinting: font.HintingFull})
		if err == nil {
			g.faces[k] = face
			return face, metricsOf(face)
		}
	}
	fb := g.Fallback
	if fb == nil {
		fb = BasicProvider{}
	}
	return fb.Resolve(spec)
}
