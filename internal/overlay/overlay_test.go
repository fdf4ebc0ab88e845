/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package overlay

import (
	"testing"

	"mangaeditor/internal/domain"
	"mangaeditor/internal/vector"
	"mangaeditor/internal/viewport"
)

func box(id int64, x, y, w, h int) domain.TextBox {
	return domain.TextBox{ID: id, ProjectID: 1, X: x, Y: y, Width: w, Height: h, FontSize: 14, FontColor: "#000000"}
}

func TestHitTestThroughViewport(t *testing.T) {
	boxes := []domain.TextBox{box(1, 10, 10, 100, 50)}
	vs := viewport.State{ZoomLevel: 2, PanX: 20, PanY: 30}
	// image (10,10) -> screen (40,50)
	if b, ok := HitTest(vs, vector.Pt{X: 40, Y: 50}, boxes); !ok || b.ID != 1 {
		t.Fatalf("expected hit on box corner")
	}
	// image (110,60) -> screen (240,150), inclusive far edge
	if _, ok := HitTest(vs, vector.Pt{X: 240, Y: 150}, boxes); !ok {
		t.Fatalf("expected inclusive edge hit")
	}
	if _, ok := HitTest(vs, vector.Pt{X: 39, Y: 50}, boxes); ok {
		t.Fatalf("expected miss left of box")
	}
}

func TestHitTestTopmostWins(t *testing.T) {
	boxes := []domain.TextBox{box(1, 0, 0, 100, 100), box(2, 50, 50, 100, 100)}
	b, ok := HitTestImage(vector.Pt{X: 75, Y: 75}, boxes)
	if !ok || b.ID != 2 {
		t.Fatalf("expected last box to win overlap, got %v %v", b.ID, ok)
	}
	b, _ = HitTestImage(vector.Pt{X: 10, Y: 10}, boxes)
	if b.ID != 1 {
		t.Fatalf("expected first box outside overlap, got %v", b.ID)
	}
}

func TestHitTestRoundTripProperty(t *testing.T) {
	boxes := []domain.TextBox{box(7, 100, 200, 40, 30)}
	for _, vs := range []viewport.State{
		{ZoomLevel: 0.1}, {ZoomLevel: 0.75, PanX: -300, PanY: 15}, {ZoomLevel: 5, PanX: 12.5, PanY: -9},
	} {
		for _, ip := range []vector.Pt{{X: 100.5, Y: 200.5}, {X: 120, Y: 215}, {X: 139.5, Y: 229.5}} {
			if _, ok := HitTest(vs, vs.ToScreen(ip), boxes); !ok {
				t.Fatalf("state %+v: image point %v inside box must hit", vs, ip)
			}
		}
		if _, ok := HitTest(vs, vs.ToScreen(vector.Pt{X: 141, Y: 231}), boxes); ok {
			t.Fatalf("state %+v: outside point must miss", vs)
		}
	}
}

func TestSelectionToggle(t *testing.T) {
	var s Selection
	s.Click(3, true)
	if id, ok := s.Selected(); !ok || id != 3 {
		t.Fatalf("expected 3 selected")
	}
	s.Click(4, true)
	if id, _ := s.Selected(); id != 4 {
		t.Fatalf("clicking another box should switch selection")
	}
	s.Click(4, true)
	if _, ok := s.Selected(); ok {
		t.Fatalf("clicking the selected box should deselect")
	}
	s.Click(4, true)
	s.Click(0, false)
	if _, ok := s.Selected(); ok {
		t.Fatalf("clicking empty canvas should deselect")
	}
}

func TestSelectionClickAtAndSync(t *testing.T) {
	var s Selection
	boxes := []domain.TextBox{box(1, 0, 0, 10, 10), box(2, 20, 20, 10, 10)}
	vs := viewport.State{ZoomLevel: 1}
	if b, ok := s.ClickAt(vs, vector.Pt{X: 25, Y: 25}, boxes); !ok || b.ID != 2 {
		t.Fatalf("expected box 2")
	}
	s.Sync(boxes[:1])
	if _, ok := s.Selected(); ok {
		t.Fatalf("selection of removed box should be dropped")
	}
	s.Select(1)
	s.Sync(boxes)
	if id, ok := s.Selected(); !ok || id != 1 {
		t.Fatalf("selection of present box should survive sync")
	}
}
