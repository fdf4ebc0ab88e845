/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export renders an edited panel (filters plus styled text boxes)
// and writes it as PNG or PDF.
package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"mangaeditor/internal/domain"
	"mangaeditor/internal/filter"
	"mangaeditor/internal/textlayout"
)

// Format is an output format.
type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// ParseFormat accepts "png" and "pdf"; empty means png.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatPNG:
		return FormatPNG, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "image/png"
}

// Options controls rendering.
type Options struct {
	Filters []filter.Step
	// Fonts resolves faces; nil uses the bundled Go fonts.
	Fonts textlayout.Provider
	// Padding inside each box, in pixels.
	Padding float64
}

var black = color.NRGBA{A: 255}

// Render applies filters to img and draws boxes on top. Boxes are drawn in
// slice order so later boxes overlap earlier ones.
func Render(img image.Image, boxes []domain.TextBox, opts Options) (*image.NRGBA, error) {
	dst, err := filter.ApplyImage(img, opts.Filters...)
	if err != nil {
		return nil, err
	}
	fonts := opts.Fonts
	if fonts == nil {
		gf, err := textlayout.NewGoFonts()
		if err != nil {
			return nil, err
		}
		fonts = gf
	}
	for _, b := range boxes {
		drawBox(dst, b, fonts, opts.Padding)
	}
	return dst, nil
}

func drawBox(dst *image.NRGBA, b domain.TextBox, fonts textlayout.Provider, pad float64) {
	r := image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height).Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	if b.BackgroundColor != nil {
		bg := colorOr(b.BackgroundColor, color.NRGBA{})
		draw.Draw(dst, r, image.NewUniform(bg), image.Point{}, draw.Over)
	}
	text := b.DisplayText()
	if text == "" {
		return
	}
	fg := colorOr(&b.FontColor, black)
	spec := textlayout.FontSpec{SizePx: float64(b.FontSize), Bold: b.IsBold, Italic: b.IsItalic}
	block := textlayout.Layout(fonts, spec, text, float64(b.Width)-2*pad)

	d := &font.Drawer{Dst: dst, Src: image.NewUniform(fg), Face: block.Face}
	lh := block.Metrics.LineHeight()
	top := float64(b.Y) + (float64(b.Height)-block.Height)/2
	cx := float64(b.X) + float64(b.Width)/2
	for i, ln := range block.Lines {
		x := cx - ln.Width/2
		base := top + float64(i)*lh + block.Metrics.Ascent
		d.Dot = fixed.P(int(math.Round(x)), int(math.Round(base)))
		d.DrawString(ln.Text)
		if b.IsUnderline && ln.Width > 0 {
			thick := int(math.Max(1, math.Round(float64(b.FontSize)/14)))
			y := int(math.Round(base)) + thick + 1
			u := image.Rect(int(math.Round(x)), y, int(math.Round(x+ln.Width)), y+thick).Intersect(dst.Bounds())
			draw.Draw(dst, u, image.NewUniform(fg), image.Point{}, draw.Over)
		}
	}
}
