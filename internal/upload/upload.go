/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package upload stores panel images on disk and serves them back by URL.
package upload

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"mangaeditor/internal/apperr"
	applog "mangaeditor/internal/log"
)

// DefaultMaxBytes is the upload cap (10 MB).
const DefaultMaxBytes int64 = 10 << 20

// URLPrefix is where stored files are served.
const URLPrefix = "/uploads/"

var allowed = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Store keeps uploaded images in Dir under random names.
type Store struct {
	Dir      string
	MaxBytes int64
}

// Stored describes a saved image.
type Stored struct {
	Name        string
	URL         string
	Path        string
	ContentType string
	Width       int
	Height      int
}

// New returns a store rooted at dir. maxBytes <= 0 uses DefaultMaxBytes.
func New(dir string, maxBytes int64) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Store{Dir: dir, MaxBytes: maxBytes}
}

// Save validates and stores an uploaded image. Only JPEG and PNG files whose
// extension, declared type and content agree are accepted. The image is
// decoded to read its dimensions (EXIF orientation applied).
func (s *Store) Save(filename, contentType string, r io.Reader) (Stored, error) {
	l := applog.WithOperation(applog.WithComponent("upload"), "save").With(slog.String("file", filename))
	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := allowed[ext]
	if !ok {
		return Stored{}, apperr.Validationf("only JPEG and PNG images are allowed")
	}
	if ct := normalizeType(contentType); ct != "" && ct != "application/octet-stream" && ct != want {
		return Stored{}, apperr.Validationf("content type %q does not match %s file", contentType, ext)
	}
	data, err := io.ReadAll(io.LimitReader(r, s.MaxBytes+1))
	if err != nil {
		return Stored{}, apperr.Validationf("read upload: %v", err)
	}
	if int64(len(data)) > s.MaxBytes {
		return Stored{}, apperr.Validationf("file too large: limit is %d MB", s.MaxBytes>>20)
	}
	if sniffed := http.DetectContentType(data); sniffed != want {
		return Stored{}, apperr.Validationf("file content is %s, expected %s", sniffed, want)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Stored{}, apperr.Validationf("cannot decode image: %v", err)
	}
	name := uuid.NewString() + ext
	st, err := s.write(name, data)
	if err != nil {
		l.Error("write upload failed", slog.Any("err", err))
		return Stored{}, apperr.Internal("store upload", err)
	}
	st.ContentType = want
	st.Width, st.Height = img.Bounds().Dx(), img.Bounds().Dy()
	l.Info("upload stored", slog.String("name", name), slog.Int("w", st.Width), slog.Int("h", st.Height), slog.Int("bytes", len(data)))
	return st, nil
}

// SavePNG encodes img as PNG under a new name, e.g. for rendered exports.
func (s *Store) SavePNG(img image.Image) (Stored, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return Stored{}, fmt.Errorf("encode png: %w", err)
	}
	st, err := s.write(uuid.NewString()+".png", buf.Bytes())
	if err != nil {
		return Stored{}, err
	}
	st.ContentType = "image/png"
	st.Width, st.Height = img.Bounds().Dx(), img.Bounds().Dy()
	return st, nil
}

// write stores data atomically: temp file, fsync, rename.
func (s *Store) write(name string, data []byte) (Stored, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return Stored{}, fmt.Errorf("create upload dir: %w", err)
	}
	dst := filepath.Join(s.Dir, name)
	tmp := dst + ".tmp"
	if err := writeFileSync(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return Stored{}, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return Stored{}, err
	}
	return Stored{Name: name, URL: URLPrefix + name, Path: dst}, nil
}

// Resolve maps a stored URL back to its file. Only plain names directly
// under URLPrefix resolve.
func (s *Store) Resolve(url string) (string, bool) {
	if !strings.HasPrefix(url, URLPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(url, URLPrefix)
	if name == "" || name != path.Base(name) || strings.ContainsAny(name, `/\`) || name == ".." {
		return "", false
	}
	return filepath.Join(s.Dir, name), true
}

// Open decodes the stored image behind url.
func (s *Store) Open(url string) (image.Image, error) {
	p, ok := s.Resolve(url)
	if !ok {
		return nil, apperr.Validationf("image %q is not a stored upload", url)
	}
	img, err := imaging.Open(p, imaging.AutoOrientation(true))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Validationf("image %q no longer exists", url)
		}
		return nil, apperr.Internal("open stored image", err)
	}
	return img, nil
}

// Remove deletes the stored file behind url; unknown files are ignored.
func (s *Store) Remove(url string) error {
	p, ok := s.Resolve(url)
	if !ok {
		return nil
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Handler serves stored files; mount it under URLPrefix.
func (s *Store) Handler() http.Handler {
	return http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.Dir)))
}

func normalizeType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "image/jpg" || ct == "image/pjpeg" {
		return "image/jpeg"
	}
	return ct
}

func writeFileSync(name string, data []byte) (err error) {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}
