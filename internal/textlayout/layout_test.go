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

import "testing"

func TestLayoutWraps(t *testing.T) {
	b := Layout(BasicProvider{}, FontSpec{}, "Hello world from Go", 50)
	if len(b.Lines) < 2 {
		t.Fatalf("expected wrapping into multiple lines, got %d", len(b.Lines))
	}
	for _, l := range b.Lines {
		if l.Width > 50 {
			t.Fatalf("line %q too wide: %v", l.Text, l.Width)
		}
	}
	if b.Width <= 0 || b.Height <= 0 {
		t.Fatalf("expected positive block size: %+v", b)
	}
}

func TestLayoutNewlinesAndNoWrap(t *testing.T) {
	b := Layout(nil, FontSpec{}, "one two\nthree", 0)
	if len(b.Lines) != 2 || b.Lines[0].Text != "one two" || b.Lines[1].Text != "three" {
		t.Fatalf("unexpected lines: %+v", b.Lines)
	}
	if b.Height != 2*b.Metrics.LineHeight() {
		t.Fatalf("height should be two line heights, got %v", b.Height)
	}
}

func TestLayoutSplitsLongWords(t *testing.T) {
	// Face7x13 advances 7px per rune.
	b := Layout(BasicProvider{}, FontSpec{}, "abcdefghij", 21)
	if len(b.Lines) != 4 || b.Lines[0].Text != "abc" || b.Lines[3].Text != "j" {
		t.Fatalf("unexpected split: %+v", b.Lines)
	}
}

func TestMeasureDeterministic(t *testing.T) {
	w1, h1 := Measure(BasicProvider{}, FontSpec{}, "ABC")
	w2, h2 := Measure(BasicProvider{}, FontSpec{}, "ABC")
	if w1 != 21 || w1 != w2 || h1 != h2 {
		t.Fatalf("expected stable measure, got %v/%v vs %v/%v", w1, h1, w2, h2)
	}
}

func TestGoFontsStyles(t *testing.T) {
	g, err := NewGoFonts()
	if err != nil {
		t.Fatalf("NewGoFonts: %v", err)
	}
	wr, _ := Measure(g, FontSpec{SizePx: 20}, "Manga")
	wb, _ := Measure(g, FontSpec{SizePx: 20, Bold: true}, "Manga")
	ws, _ := Measure(g, FontSpec{SizePx: 10}, "Manga")
	if wr <= 0 || wb <= wr || ws >= wr {
		t.Fatalf("unexpected widths regular=%v bold=%v small=%v", wr, wb, ws)
	}
	f1, _ := g.Resolve(FontSpec{SizePx: 20, Italic: true})
	f2, _ := g.Resolve(FontSpec{SizePx: 20, Italic: true})
	if f1 != f2 {
		t.Fatalf("faces should be cached")
	}
}

func TestLayoutNormalizesCombiningMarks(t *testing.T) {
	// "e" + combining acute composes to a single rune.
	b := Layout(BasicProvider{}, FontSpec{}, "é", 0)
	if len(b.Lines) != 1 || b.Lines[0].Text != "é" {
		t.Fatalf("expected composed text, got %+v", b.Lines)
	}
}

func TestWrapWithCustomMeasure(t *testing.T) {
	perRune := func(s string) float64 { return float64(len([]rune(s))) }
	lines := Wrap("ünï cödé", 4, perRune)
	if len(lines) != 2 || lines[0].Text != "ünï" || lines[1].Text != "cödé" || lines[1].Width != 4 {
		t.Fatalf("unexpected lines %+v", lines)
	}
}
