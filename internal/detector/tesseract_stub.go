//go:build !tesseract

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package detector

import (
	"context"
)

// Tesseract is a stub that fails every call.
type Tesseract struct{}

// NewTesseract returns ErrTesseractNotEnabled.
func NewTesseract(langs ...string) (*Tesseract, error) {
	return nil, ErrTesseractNotEnabled
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Detect(context.Context, Request) ([]Detection, error) {
	return nil, ErrTesseractNotEnabled
}

// Close is safe on a nil receiver.
func (t *Tesseract) Close() error { return nil }
