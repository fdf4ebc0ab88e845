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

// Pointer hit-testing of text boxes drawn over the panel and the single
// selection model of the editor.

import (
	"mangaeditor/internal/domain"
	"mangaeditor/internal/vector"
)

// Mapper converts screen coordinates to image coordinates.
// viewport.State and *viewport.Viewport implement it.
type Mapper interface {
	ToImage(p vector.Pt) vector.Pt
}

// HitTest returns the topmost box under the screen point. Later boxes in the
// slice are drawn above earlier ones.
func HitTest(m Mapper, screen vector.Pt, boxes []domain.TextBox) (domain.TextBox, bool) {
	return HitTestImage(m.ToImage(screen), boxes)
}

// HitTestImage is HitTest for a point already in image space.
func HitTestImage(p vector.Pt, boxes []domain.TextBox) (domain.TextBox, bool) {
	for i := len(boxes) - 1; i >= 0; i-- {
		if boxes[i].Rect().Contains(p) {
			return boxes[i], true
		}
	}
	return domain.TextBox{}, false
}

// Selection tracks at most one selected text box by id.
type Selection struct {
	id  int64
	set bool
}

// Selected returns the selected box id.
func (s *Selection) Selected() (int64, bool) { return s.id, s.set }

func (s *Selection) Select(id int64) { s.id, s.set = id, true }
func (s *Selection) Clear()          { s.id, s.set = 0, false }

// Click applies a click on the overlay: hit is false for empty canvas.
// Clicking the selected box again deselects it.
func (s *Selection) Click(id int64, hit bool) {
	switch {
	case !hit:
		s.Clear()
	case s.set && s.id == id:
		s.Clear()
	default:
		s.Select(id)
	}
}

// ClickAt hit-tests the screen point and applies Click with the result.
func (s *Selection) ClickAt(m Mapper, screen vector.Pt, boxes []domain.TextBox) (domain.TextBox, bool) {
	b, ok := HitTest(m, screen, boxes)
	s.Click(b.ID, ok)
	return b, ok
}

// Sync drops the selection when its box is no longer present.
func (s *Selection) Sync(boxes []domain.TextBox) {
	if !s.set {
		return
	}
	for _, b := range boxes {
		if b.ID == s.id {
			return
		}
	}
	s.Clear()
}
