/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package upload

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mangaeditor/internal/apperr"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestSavePNGReadsDimensions(t *testing.T) {
	s := New(t.TempDir(), 0)
	st, err := s.Save("panel.PNG", "image/png", bytes.NewReader(pngBytes(t, 64, 32)))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if st.Width != 64 || st.Height != 32 || !strings.HasPrefix(st.URL, URLPrefix) || !strings.HasSuffix(st.Name, ".png") {
		t.Fatalf("unexpected stored: %+v", st)
	}
	if _, err := os.Stat(st.Path); err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if p, ok := s.Resolve(st.URL); !ok || p != st.Path {
		t.Fatalf("Resolve(%q) = %q %v", st.URL, p, ok)
	}
	img, err := s.Open(st.URL)
	if err != nil || img.Bounds().Dx() != 64 {
		t.Fatalf("Open: %v", err)
	}
	if matches, _ := filepath.Glob(filepath.Join(s.Dir, "*.tmp")); len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestSaveJPEGWithoutDeclaredType(t *testing.T) {
	s := New(t.TempDir(), 0)
	st, err := s.Save("a.jpeg", "", bytes.NewReader(jpegBytes(t, 10, 20)))
	if err != nil || st.Width != 10 || st.Height != 20 || st.ContentType != "image/jpeg" {
		t.Fatalf("unexpected result %+v %v", st, err)
	}
}

func TestSaveRejects(t *testing.T) {
	s := New(t.TempDir(), 2048)
	cases := map[string]struct {
		name, ct string
		data     []byte
	}{
		"gif extension":    {"a.gif", "image/gif", []byte("GIF89a")},
		"type mismatch":    {"a.png", "image/jpeg", pngBytes(t, 2, 2)},
		"content mismatch": {"a.png", "image/png", jpegBytes(t, 2, 2)},
		"not an image":     {"a.jpg", "image/jpeg", []byte("hello world")},
		"too large":        {"a.png", "image/png", append(pngBytes(t, 1, 1), make([]byte, 4096)...)},
	}
	for name, c := range cases {
		_, err := s.Save(c.name, c.ct, bytes.NewReader(c.data))
		if !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if entries, _ := os.ReadDir(s.Dir); len(entries) != 0 {
		t.Fatalf("rejected uploads must not be written, found %d files", len(entries))
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	s := New(t.TempDir(), 0)
	for _, u := range []string{"/uploads/../secret", "/uploads/", "/other/a.png", "/uploads/a/b.png", "/uploads/.."} {
		if _, ok := s.Resolve(u); ok {
			t.Fatalf("Resolve(%q) should fail", u)
		}
	}
}

func TestHandlerServesFiles(t *testing.T) {
	s := New(t.TempDir(), 0)
	st, err := s.SavePNG(image.NewNRGBA(image.Rect(0, 0, 3, 3)))
	if err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, st.URL, nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if err := s.Remove(st.URL); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(st.Path); !os.IsNotExist(err) {
		t.Fatalf("file should be gone")
	}
}
