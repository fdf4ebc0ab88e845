/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package filter implements the panel image adjustments: brightness,
// contrast and saturation over interleaved RGBA bytes. Each pass reads and
// writes the buffer once and leaves alpha alone. Passes are not commutative.
package filter

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"

	"mangaeditor/internal/apperr"
)

const (
	MinValue = -100
	MaxValue = 100
)

// Kind names an adjustment.
type Kind string

const (
	KindBrightness Kind = "brightness"
	KindContrast   Kind = "contrast"
	KindSaturation Kind = "saturation"
)

// Step is one explicit filter pass.
type Step struct {
	Kind  Kind    `json:"kind"`
	Value float64 `json:"value"`
}

// ParseKind accepts the kind names case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindBrightness, KindContrast, KindSaturation:
		return k, nil
	default:
		return "", apperr.Validationf("unknown filter %q", s)
	}
}

// Validate checks the kind and the value range.
func (s Step) Validate() error {
	if _, err := ParseKind(string(s.Kind)); err != nil {
		return err
	}
	if math.IsNaN(s.Value) || s.Value < MinValue || s.Value > MaxValue {
		return apperr.Validationf("%s value must be within [%d, %d], got %v", s.Kind, MinValue, MaxValue, s.Value)
	}
	return nil
}

// Brightness adds v to R, G and B.
func Brightness(pix []byte, v float64) {
	mapRGB(pix, func(c float64) float64 { return c + v })
}

// Contrast scales each channel around mid-gray.
func Contrast(pix []byte, v float64) {
	f := ContrastFactor(v)
	mapRGB(pix, func(c float64) float64 { return f*(c-128) + 128 })
}

// ContrastFactor is 259(v+255) / (255(259-v)); 1 at v=0.
func ContrastFactor(v float64) float64 {
	return 259 * (v + 255) / (255 * (259 - v))
}

// Saturation mixes each channel with the pixel's luma. The mixing factor is
// 1+v/100: 0 keeps the image, -100 is grayscale, 100 doubles saturation.
func Saturation(pix []byte, v float64) {
	s := SaturationFactor(v)
	for i := 0; i+3 < len(pix); i += 4 {
		r, g, b := float64(pix[i]), float64(pix[i+1]), float64(pix[i+2])
		gray := 0.299*r + 0.587*g + 0.114*b
		pix[i] = clamp(gray + s*(r-gray))
		pix[i+1] = clamp(gray + s*(g-gray))
		pix[i+2] = clamp(gray + s*(b-gray))
	}
}

// SaturationFactor maps a slider value to the luma mixing factor.
func SaturationFactor(v float64) float64 { return 1 + v/100 }

// Apply validates step and runs it over pix in place.
func Apply(pix []byte, step Step) error {
	if err := step.Validate(); err != nil {
		return err
	}
	if step.Value == 0 {
		return nil
	}
	switch Kind(strings.ToLower(string(step.Kind))) {
	case KindBrightness:
		Brightness(pix, step.Value)
	case KindContrast:
		Contrast(pix, step.Value)
	case KindSaturation:
		Saturation(pix, step.Value)
	}
	return nil
}

// ApplyImage converts img to NRGBA and runs the steps in order. The input
// image is not modified.
func ApplyImage(img image.Image, steps ...Step) (*image.NRGBA, error) {
	for i, s := range steps {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	out := imaging.Clone(img)
	for _, s := range steps {
		_ = Apply(out.Pix, s)
	}
	return out, nil
}

func mapRGB(pix []byte, fn func(c float64) float64) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i] = clamp(fn(float64(pix[i])))
		pix[i+1] = clamp(fn(float64(pix[i+1])))
		pix[i+2] = clamp(fn(float64(pix[i+2])))
	}
}

func clamp(v float64) byte {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 255:
		return 255
	default:
		return byte(math.Round(v))
	}
}
