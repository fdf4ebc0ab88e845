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

// Text measurement and line breaking for rendering text boxes onto panel
// images. All measurements are in image pixels.

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/text/unicode/norm"
)

// FontSpec describes a requested face.
type FontSpec struct {
	SizePx float64
	Bold   bool
	Italic bool
}

// Metrics are the vertical metrics of a resolved face, in pixels.
type Metrics struct {
	Ascent, Descent, LineGap float64
}

// LineHeight is ascent + descent + gap.
func (m Metrics) LineHeight() float64 { return m.Ascent + m.Descent + m.LineGap }

// Provider maps a FontSpec to a concrete font.Face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// BasicProvider uses x/image/basicfont Face7x13 for deterministic tests.
type BasicProvider struct{}

func (BasicProvider) Resolve(FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	return f, metricsOf(f)
}

func metricsOf(f font.Face) Metrics {
	m := f.Metrics()
	return Metrics{
		Ascent:  float64(m.Ascent.Round()),
		Descent: float64(m.Descent.Round()),
		LineGap: float64(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
	}
}

// Line is one laid out line.
type Line struct {
	Text  string
	Width float64
}

// Block is text broken into lines for a given width.
type Block struct {
	Lines   []Line
	Width   float64
	Height  float64
	Metrics Metrics
	Face    font.Face
}

// Layout breaks text on spaces and explicit newlines so that each line fits
// maxWidth where possible. Words wider than maxWidth are split by rune.
// maxWidth <= 0 disables wrapping. Text is NFC-normalized first so
// combining marks measure and draw as one glyph.
func Layout(p Provider, spec FontSpec, text string, maxWidth float64) Block {
	if p == nil {
		p = BasicProvider{}
	}
	face, met := p.Resolve(spec)
	d := &font.Drawer{Face: face}
	b := Block{Metrics: met, Face: face}
	b.Lines = Wrap(text, maxWidth, func(s string) float64 { return advance(d, s) })
	for _, ln := range b.Lines {
		if ln.Width > b.Width {
			b.Width = ln.Width
		}
	}
	b.Height = float64(len(b.Lines)) * met.LineHeight()
	return b
}

// Wrap is the line breaker behind Layout with the width function supplied by
// the caller, so renderers with their own font metrics wrap the same way.
// measure receives NFC-normalized UTF-8.
func Wrap(text string, maxWidth float64, measure func(string) float64) []Line {
	text = norm.NFC.String(text)
	var lines []Line
	add := func(s string) {
		lines = append(lines, Line{Text: s, Width: measure(s)})
	}
	for _, para := range strings.Split(text, "\n") {
		cur := ""
		for _, word := range strings.Fields(para) {
			cand := word
			if cur != "" {
				cand = cur + " " + word
			}
			if maxWidth <= 0 || measure(cand) <= maxWidth {
				cur = cand
				continue
			}
			if cur != "" {
				add(cur)
			}
			cur = word
			for maxWidth > 0 && measure(cur) > maxWidth && len([]rune(cur)) > 1 {
				head, tail := splitToFit(measure, cur, maxWidth)
				add(head)
				cur = tail
			}
		}
		add(cur)
	}
	return lines
}

// splitToFit returns the longest rune prefix of s that fits (at least one rune).
func splitToFit(measure func(string) float64, s string, maxWidth float64) (string, string) {
	rs := []rune(s)
	n := 1
	for n < len(rs) && measure(string(rs[:n+1])) <= maxWidth {
		n++
	}
	return string(rs[:n]), string(rs[n:])
}

func advance(d *font.Drawer, s string) float64 {
	return float64(d.MeasureString(s)) / 64 // fixed.Int26_6 to px
}

// Measure returns the single-line width of text and the line height.
func Measure(p Provider, spec FontSpec, text string) (w, h float64) {
	if p == nil {
		p = BasicProvider{}
	}
	face, met := p.Resolve(spec)
	return advance(&font.Drawer{Face: face}, text), met.LineHeight()
}
