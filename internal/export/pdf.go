/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"

	"mangaeditor/internal/domain"
	"mangaeditor/internal/textlayout"
)

// PDFOptions controls PDF export. Units are points; one image pixel maps to
// one point so box coordinates carry over unchanged.
type PDFOptions struct {
	Options
	Title string
}

// WritePDF writes a single page sized to img with the filtered image as
// background and each box drawn as vector text in Helvetica. Text outside
// cp1252 is replaced by the translator.
func WritePDF(w io.Writer, img image.Image, boxes []domain.TextBox, opt PDFOptions) error {
	base, err := Render(img, nil, opt.Options)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, base, imaging.PNG); err != nil {
		return fmt.Errorf("encode page image: %w", err)
	}
	b := base.Bounds()
	pw, ph := float64(b.Dx()), float64(b.Dy())

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pw, Ht: ph},
	})
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	pdf.SetCreator("mangaeditor", false)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.RegisterImageOptionsReader("page", gofpdf.ImageOptions{ImageType: "PNG"}, &buf)
	pdf.ImageOptions("page", 0, 0, pw, ph, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, tb := range boxes {
		drawPDFBox(pdf, tr, tb, opt.Padding)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func drawPDFBox(pdf *gofpdf.Fpdf, tr func(string) string, tb domain.TextBox, pad float64) {
	x, y, w, h := float64(tb.X), float64(tb.Y), float64(tb.Width), float64(tb.Height)
	if tb.BackgroundColor != nil {
		bg := colorOr(tb.BackgroundColor, color.NRGBA{})
		setFillColor(pdf, bg)
		pdf.SetAlpha(float64(bg.A)/255, "Normal")
		pdf.Rect(x, y, w, h, "F")
		pdf.SetAlpha(1, "Normal")
	}
	text := tb.DisplayText()
	if text == "" {
		return
	}
	size := float64(tb.FontSize)
	if size <= 0 {
		size = domain.DefaultFontSize
	}
	pdf.SetFont("Helvetica", pdfStyle(tb), size)
	fg := colorOr(&tb.FontColor, black)
	pdf.SetTextColor(int(fg.R), int(fg.G), int(fg.B))

	maxW := w - 2*pad
	if maxW <= 0 {
		maxW = w
	}
	lines := pdfLines(pdf, tr, text, maxW)
	lh := size * 1.2
	top := y + (h-float64(len(lines))*lh)/2
	for i, ln := range lines {
		pdf.SetXY(x, top+float64(i)*lh)
		pdf.CellFormat(w, lh, ln, "", 0, "CM", false, 0, "")
	}
}

// pdfLines wraps UTF-8 text against the current core font and returns each
// line translated to the font's code page. gofpdf's core-font width table is
// indexed by byte, so measuring happens on the translated form.
func pdfLines(pdf *gofpdf.Fpdf, tr func(string) string, text string, maxW float64) []string {
	wrapped := textlayout.Wrap(text, maxW, func(s string) float64 {
		return pdf.GetStringWidth(tr(s))
	})
	out := make([]string, len(wrapped))
	for i, ln := range wrapped {
		out[i] = tr(ln.Text)
	}
	return out
}

// pdfStyle maps text box styling onto a gofpdf style string.
func pdfStyle(tb domain.TextBox) string {
	s := ""
	if tb.IsBold {
		s += "B"
	}
	if tb.IsItalic {
		s += "I"
	}
	if tb.IsUnderline {
		s += "U"
	}
	return s
}

func setFillColor(pdf *gofpdf.Fpdf, c color.NRGBA) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}
