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
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	"mangaeditor/internal/domain"
)

// WritePNG renders img with boxes and encodes it as PNG to w.
func WritePNG(w io.Writer, img image.Image, boxes []domain.TextBox, opts Options) error {
	out, err := Render(img, boxes, opts)
	if err != nil {
		return err
	}
	if err := imaging.Encode(w, out, imaging.PNG); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
