/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

// Core records of the editor: a Project is one uploaded panel image, a
// TextBox is a rectangular text region on it (detected or user-made).
// Both serialize with camelCase field names for the web client.

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"time"

	"mangaeditor/internal/apperr"
	"mangaeditor/internal/vector"
)

// Style defaults applied to text boxes created without explicit styling.
const (
	DefaultFontSize  = 14
	DefaultFontColor = "#000000"
	MinFontSize      = 1
	MaxFontSize      = 512
	MinConfidence    = 0
	MaxConfidence    = 100
)

var colorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Project is an uploaded manga panel and its metadata. Width and Height are
// fixed at creation.
type Project struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	OriginalImageURL string    `json:"originalImageUrl"`
	EditedImageURL   *string   `json:"editedImageUrl"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NewProject is the input for creating a project.
type NewProject struct {
	Name             string
	OriginalImageURL string
	EditedImageURL   *string
	Width            int
	Height           int
}

// Validate checks the required fields of a new project.
func (n NewProject) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return apperr.Validationf("project name is required")
	}
	if strings.TrimSpace(n.OriginalImageURL) == "" {
		return apperr.Validationf("original image url is required")
	}
	if n.Width <= 0 || n.Height <= 0 {
		return apperr.Validationf("image dimensions must be positive, got %dx%d", n.Width, n.Height)
	}
	return nil
}

// Build returns the persisted form of n with the given id and timestamps.
func (n NewProject) Build(id int64, now time.Time) (Project, error) {
	if err := n.Validate(); err != nil {
		return Project{}, err
	}
	return Project{
		ID:               id,
		Name:             strings.TrimSpace(n.Name),
		OriginalImageURL: n.OriginalImageURL,
		EditedImageURL:   nonEmpty(n.EditedImageURL),
		Width:            n.Width,
		Height:           n.Height,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ProjectPatch carries the mutable project fields; nil/unset fields are left alone.
type ProjectPatch struct {
	Name             *string    `json:"name,omitempty"`
	OriginalImageURL *string    `json:"originalImageUrl,omitempty"`
	EditedImageURL   NullString `json:"editedImageUrl,omitzero"`
}

// Apply merges the patch into p and bumps UpdatedAt.
func (pp ProjectPatch) Apply(p Project, now time.Time) (Project, error) {
	if pp.Name != nil {
		name := strings.TrimSpace(*pp.Name)
		if name == "" {
			return p, apperr.Validationf("project name must not be empty")
		}
		p.Name = name
	}
	if pp.OriginalImageURL != nil {
		if strings.TrimSpace(*pp.OriginalImageURL) == "" {
			return p, apperr.Validationf("original image url must not be empty")
		}
		p.OriginalImageURL = *pp.OriginalImageURL
	}
	if pp.EditedImageURL.Set {
		p.EditedImageURL = pp.EditedImageURL.Ptr()
	}
	p.UpdatedAt = now
	return p, nil
}

// TextBox is a text region in image pixel space plus its typography.
type TextBox struct {
	ID              int64     `json:"id"`
	ProjectID       int64     `json:"projectId"`
	X               int       `json:"x"`
	Y               int       `json:"y"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	OriginalText    *string   `json:"originalText"`
	EditedText      *string   `json:"editedText"`
	Confidence      *int      `json:"confidence"`
	FontSize        int       `json:"fontSize"`
	FontColor       string    `json:"fontColor"`
	BackgroundColor *string   `json:"backgroundColor"`
	IsBold          bool      `json:"isBold"`
	IsItalic        bool      `json:"isItalic"`
	IsUnderline     bool      `json:"isUnderline"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Rect returns the box rectangle in image coordinates.
func (b TextBox) Rect() vector.Rect {
	return vector.R(float64(b.X), float64(b.Y), float64(b.Width), float64(b.Height))
}

// DisplayText is the user's edit when present, otherwise the detected text.
func (b TextBox) DisplayText() string {
	if b.EditedText != nil {
		return *b.EditedText
	}
	if b.OriginalText != nil {
		return *b.OriginalText
	}
	return ""
}

// NewTextBox is the input for creating a text box. Nil style fields get defaults.
type NewTextBox struct {
	ProjectID       int64   `json:"-"`
	X               int     `json:"x"`
	Y               int     `json:"y"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	OriginalText    *string `json:"originalText,omitempty"`
	EditedText      *string `json:"editedText,omitempty"`
	Confidence      *int    `json:"confidence,omitempty"`
	FontSize        *int    `json:"fontSize,omitempty"`
	FontColor       *string `json:"fontColor,omitempty"`
	BackgroundColor *string `json:"backgroundColor,omitempty"`
	IsBold          *bool   `json:"isBold,omitempty"`
	IsItalic        *bool   `json:"isItalic,omitempty"`
	IsUnderline     *bool   `json:"isUnderline,omitempty"`
}

// Build applies defaults, clamps confidence and validates the result.
func (n NewTextBox) Build(id int64, now time.Time) (TextBox, error) {
	if n.ProjectID <= 0 {
		return TextBox{}, apperr.Validationf("projectId is required")
	}
	b := TextBox{
		ID:              id,
		ProjectID:       n.ProjectID,
		X:               n.X,
		Y:               n.Y,
		Width:           n.Width,
		Height:          n.Height,
		OriginalText:    nonEmpty(n.OriginalText),
		EditedText:      nonEmpty(n.EditedText),
		Confidence:      clampConfidence(n.Confidence),
		FontSize:        DefaultFontSize,
		FontColor:       DefaultFontColor,
		BackgroundColor: nonEmpty(n.BackgroundColor),
		CreatedAt:       now,
	}
	if n.FontSize != nil {
		b.FontSize = *n.FontSize
	}
	if n.FontColor != nil && *n.FontColor != "" {
		b.FontColor = *n.FontColor
	}
	if n.IsBold != nil {
		b.IsBold = *n.IsBold
	}
	if n.IsItalic != nil {
		b.IsItalic = *n.IsItalic
	}
	if n.IsUnderline != nil {
		b.IsUnderline = *n.IsUnderline
	}
	if err := validateBox(b); err != nil {
		return TextBox{}, err
	}
	return b, nil
}

// TextBoxPatch carries the mutable text box fields. ProjectID, OriginalText
// and CreatedAt are immutable and have no patch field.
type TextBoxPatch struct {
	X               *int       `json:"x,omitempty"`
	Y               *int       `json:"y,omitempty"`
	Width           *int       `json:"width,omitempty"`
	Height          *int       `json:"height,omitempty"`
	EditedText      NullString `json:"editedText,omitzero"`
	Confidence      NullInt    `json:"confidence,omitzero"`
	FontSize        *int       `json:"fontSize,omitempty"`
	FontColor       *string    `json:"fontColor,omitempty"`
	BackgroundColor NullString `json:"backgroundColor,omitzero"`
	IsBold          *bool      `json:"isBold,omitempty"`
	IsItalic        *bool      `json:"isItalic,omitempty"`
	IsUnderline     *bool      `json:"isUnderline,omitempty"`
}

// Apply merges the patch into b and validates the result.
func (p TextBoxPatch) Apply(b TextBox) (TextBox, error) {
	setInt(&b.X, p.X)
	setInt(&b.Y, p.Y)
	setInt(&b.Width, p.Width)
	setInt(&b.Height, p.Height)
	setInt(&b.FontSize, p.FontSize)
	if p.EditedText.Set {
		b.EditedText = p.EditedText.Ptr()
	}
	if p.Confidence.Set {
		b.Confidence = clampConfidence(p.Confidence.Ptr())
	}
	if p.FontColor != nil {
		b.FontColor = *p.FontColor
	}
	if p.BackgroundColor.Set {
		b.BackgroundColor = nonEmpty(p.BackgroundColor.Ptr())
	}
	setBool(&b.IsBold, p.IsBold)
	setBool(&b.IsItalic, p.IsItalic)
	setBool(&b.IsUnderline, p.IsUnderline)
	if err := validateBox(b); err != nil {
		return b, err
	}
	return b, nil
}

// RestorePatch returns a patch that resets every mutable field to the values in b.
func RestorePatch(b TextBox) TextBoxPatch {
	return TextBoxPatch{
		X:               &b.X,
		Y:               &b.Y,
		Width:           &b.Width,
		Height:          &b.Height,
		EditedText:      NullStringFrom(b.EditedText),
		Confidence:      NullIntFrom(b.Confidence),
		FontSize:        &b.FontSize,
		FontColor:       &b.FontColor,
		BackgroundColor: NullStringFrom(b.BackgroundColor),
		IsBold:          &b.IsBold,
		IsItalic:        &b.IsItalic,
		IsUnderline:     &b.IsUnderline,
	}
}

func validateBox(b TextBox) error {
	if b.X < 0 || b.Y < 0 || b.Width < 0 || b.Height < 0 {
		return apperr.Validationf("rectangle fields must be non-negative, got x=%d y=%d w=%d h=%d", b.X, b.Y, b.Width, b.Height)
	}
	if b.FontSize < MinFontSize || b.FontSize > MaxFontSize {
		return apperr.Validationf("fontSize must be within [%d, %d], got %d", MinFontSize, MaxFontSize, b.FontSize)
	}
	if !ValidColor(b.FontColor) {
		return apperr.Validationf("invalid fontColor %q", b.FontColor)
	}
	if b.BackgroundColor != nil && !ValidColor(*b.BackgroundColor) {
		return apperr.Validationf("invalid backgroundColor %q", *b.BackgroundColor)
	}
	return nil
}

// ValidColor reports whether s is a #RGB, #RRGGBB or #RRGGBBAA hex color.
func ValidColor(s string) bool { return colorRe.MatchString(s) }

// ClampConfidence limits c to [0, 100].
func ClampConfidence(c int) int {
	return int(math.Max(MinConfidence, math.Min(MaxConfidence, float64(c))))
}

func clampConfidence(c *int) *int {
	if c == nil {
		return nil
	}
	v := ClampConfidence(*c)
	return &v
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// NullString is a patch field that distinguishes an absent key, an explicit
// null and a value.
type NullString struct {
	Set   bool
	Valid bool
	Value string
}

// NullStringFrom builds a set NullString from an optional value.
func NullStringFrom(s *string) NullString {
	if s == nil {
		return NullString{Set: true}
	}
	return NullString{Set: true, Valid: true, Value: *s}
}

// Ptr returns the value, or nil for null.
func (n NullString) Ptr() *string {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

func (n *NullString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Valid = false
		n.Value = ""
		return nil
	}
	if err := json.Unmarshal(b, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

func (n NullString) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// NullInt is the integer counterpart of NullString.
type NullInt struct {
	Set   bool
	Valid bool
	Value int
}

// NullIntFrom builds a set NullInt from an optional value.
func NullIntFrom(v *int) NullInt {
	if v == nil {
		return NullInt{Set: true}
	}
	return NullInt{Set: true, Valid: true, Value: *v}
}

// Ptr returns the value, or nil for null.
func (n NullInt) Ptr() *int {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

func (n *NullInt) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Valid = false
		n.Value = 0
		return nil
	}
	if err := json.Unmarshal(b, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

func (n NullInt) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Ptr is a small helper for building optional literals.
func Ptr[T any](v T) *T { return &v }
