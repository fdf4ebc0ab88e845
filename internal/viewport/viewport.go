/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package viewport

// Zoom/pan state of the panel canvas and the mapping between image pixels
// and screen pixels. screen = image*zoom + pan.

import (
	"math"

	"mangaeditor/internal/vector"
)

const (
	MinZoom    = 0.1
	MaxZoom    = 5.0
	ZoomFactor = 1.2
	// WheelScale converts a wheel deltaY into an additive zoom delta.
	WheelScale = 0.001
)

// State is the serializable part of a viewport.
type State struct {
	ZoomLevel float64 `json:"zoomLevel"`
	PanX      float64 `json:"panX"`
	PanY      float64 `json:"panY"`
}

// Transform returns the image-to-screen transform for s.
func (s State) Transform() vector.Affine2D {
	return vector.Translate(s.PanX, s.PanY).Mul(vector.Scale(s.ZoomLevel, s.ZoomLevel))
}

// ToScreen maps an image point to screen space.
func (s State) ToScreen(p vector.Pt) vector.Pt { return s.Transform().Apply(p) }

// ToImage maps a screen point back to image space. A zero zoom cannot be
// inverted and maps everything to the origin.
func (s State) ToImage(p vector.Pt) vector.Pt {
	inv, ok := s.Transform().Invert()
	if !ok {
		return vector.Pt{}
	}
	return inv.Apply(p)
}

// Viewport holds the zoom level, pan offset and the container/image sizes
// needed for fit-to-screen. Not safe for concurrent use.
type Viewport struct {
	st        State
	container vector.Size
	image     vector.Size

	dragging bool
	last     vector.Pt
}

// New returns a viewport at zoom 1 with no pan.
func New() *Viewport {
	return &Viewport{st: State{ZoomLevel: 1}}
}

// FromState restores a viewport from a client-supplied state; the zoom is
// clamped to the supported range.
func FromState(s State) *Viewport {
	s.ZoomLevel = clampZoom(s.ZoomLevel)
	return &Viewport{st: s}
}

func (v *Viewport) State() State       { return v.st }
func (v *Viewport) Zoom() float64      { return v.st.ZoomLevel }
func (v *Viewport) Offset() vector.Pt  { return vector.Pt{X: v.st.PanX, Y: v.st.PanY} }
func (v *Viewport) Dragging() bool     { return v.dragging }
func (v *Viewport) Image() vector.Size { return v.image }

func (v *Viewport) ZoomIn()  { v.st.ZoomLevel = clampZoom(v.st.ZoomLevel * ZoomFactor) }
func (v *Viewport) ZoomOut() { v.st.ZoomLevel = clampZoom(v.st.ZoomLevel / ZoomFactor) }

// ZoomAt adds delta to the zoom level.
func (v *Viewport) ZoomAt(delta float64) {
	v.st.ZoomLevel = clampZoom(v.st.ZoomLevel + delta)
}

// Wheel applies a mouse wheel event; scrolling up (negative deltaY) zooms in.
func (v *Viewport) Wheel(deltaY float64) { v.ZoomAt(-deltaY * WheelScale) }

// FitToScreen scales the image to fit the container without upscaling and
// resets the pan. Non-positive image dimensions leave the zoom unchanged.
func (v *Viewport) FitToScreen(containerW, containerH, imageW, imageH float64) {
	if imageW <= 0 || imageH <= 0 {
		v.st.ZoomLevel = clampZoom(v.st.ZoomLevel)
		return
	}
	scale := math.Min(math.Min(containerW/imageW, containerH/imageH), 1.0)
	v.st.ZoomLevel = clampZoom(scale)
	v.st.PanX, v.st.PanY = 0, 0
}

// ResetView restores zoom 1 and no pan.
func (v *Viewport) ResetView() {
	v.st = State{ZoomLevel: 1}
	v.dragging = false
}

// Pan accumulates a pan offset in screen pixels.
func (v *Viewport) Pan(dx, dy float64) {
	v.st.PanX += dx
	v.st.PanY += dy
}

func (v *Viewport) BeginDrag(x, y float64) {
	v.dragging = true
	v.last = vector.Pt{X: x, Y: y}
}

// DragTo pans by the pointer movement since the previous drag position.
func (v *Viewport) DragTo(x, y float64) {
	if !v.dragging {
		return
	}
	v.Pan(x-v.last.X, y-v.last.Y)
	v.last = vector.Pt{X: x, Y: y}
}

func (v *Viewport) EndDrag() { v.dragging = false }

// SetContainer records the canvas size and refits when an image is loaded.
func (v *Viewport) SetContainer(w, h float64) {
	v.container = vector.Size{W: w, H: h}
	v.autoFit()
}

// LoadImage switches to a new image: the view is reset, then refitted if
// the container size is known.
func (v *Viewport) LoadImage(w, h float64) {
	v.image = vector.Size{W: w, H: h}
	v.ResetView()
	v.autoFit()
}

func (v *Viewport) autoFit() {
	if v.container.W > 0 && v.container.H > 0 && v.image.W > 0 && v.image.H > 0 {
		v.FitToScreen(v.container.W, v.container.H, v.image.W, v.image.H)
	}
}

func (v *Viewport) Transform() vector.Affine2D     { return v.st.Transform() }
func (v *Viewport) ToScreen(p vector.Pt) vector.Pt { return v.st.ToScreen(p) }
func (v *Viewport) ToImage(p vector.Pt) vector.Pt  { return v.st.ToImage(p) }

func clampZoom(z float64) float64 {
	if math.IsNaN(z) {
		return 1
	}
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}
