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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mangaeditor/internal/apperr"
)

type fakeDetector struct {
	name  string
	out   []Detection
	err   error
	calls int
}

func (f *fakeDetector) Name() string { return f.name }
func (f *fakeDetector) Detect(context.Context, Request) ([]Detection, error) {
	f.calls++
	return f.out, f.err
}

func TestHTTPDetectSuccess(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/detect_url" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"text_boxes":[{"x":10.4,"y":20,"width":30,"height":40,"text":"hello","confidence":0.91},{"x":1,"y":2,"width":3,"height":4}]}`))
	}))
	defer srv.Close()

	d := NewHTTP(srv.URL+"/", "secret")
	out, err := d.Detect(context.Background(), Request{ImageURL: "/uploads/a.png", ImagePath: "uploads/a.png"})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(out) != 2 || out[0].Text != "hello" || *out[0].Confidence != 0.91 || out[1].Confidence != nil {
		t.Fatalf("unexpected detections: %+v", out)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("missing bearer token, got %q", gotAuth)
	}
	if gotBody["image_url"] != "/uploads/a.png" {
		t.Fatalf("unexpected request body: %v", gotBody)
	}
}

func TestHTTPDetectFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		},
		"unsuccessful": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"error":"model not loaded"}`))
		},
	}
	for name, h := range cases {
		srv := httptest.NewServer(h)
		_, err := NewHTTP(srv.URL, "").Detect(context.Background(), Request{ImageURL: "x"})
		srv.Close()
		if !errors.Is(err, apperr.ErrUpstream) {
			t.Fatalf("%s: expected upstream error, got %v", name, err)
		}
	}
}

func TestHTTPDetectTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewHTTP(srv.URL, "").Detect(ctx, Request{ImageURL: "x"})
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestHTTPUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	_, err := NewHTTP(url, "").Detect(context.Background(), Request{ImageURL: "x"})
	if apperr.KindOf(err) != apperr.KindUpstream {
		t.Fatalf("expected upstream kind, got %v", err)
	}
}

func TestHTTPHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()
	if err := NewHTTP(srv.URL, "").Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestChainFirstNonEmptyWins(t *testing.T) {
	conf := 0.5
	a := &fakeDetector{name: "a", err: errors.New("down")}
	b := &fakeDetector{name: "b"}
	c := &fakeDetector{name: "c", out: []Detection{{Text: "x", Confidence: &conf}}}
	d := &fakeDetector{name: "d", out: []Detection{{Text: "y"}}}
	out, name, err := Chain{a, b, c, d}.DetectSourced(context.Background(), Request{})
	if err != nil || name != "c" || len(out) != 1 || out[0].Text != "x" {
		t.Fatalf("unexpected chain result: %v %q %v", out, name, err)
	}
	if d.calls != 0 {
		t.Fatalf("chain should stop at first non-empty result")
	}
	if got := (Chain{a, b}).Name(); got != "a,b" {
		t.Fatalf("unexpected chain name %q", got)
	}
}

func TestChainAllFail(t *testing.T) {
	_, err := Chain{&fakeDetector{name: "a"}}.Detect(context.Background(), Request{})
	if !errors.Is(err, ErrNoDetections) {
		t.Fatalf("expected ErrNoDetections, got %v", err)
	}
	boom := errors.New("boom")
	_, err = Chain{&fakeDetector{name: "a", err: boom}}.Detect(context.Background(), Request{})
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "a: boom") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestDetectNamedPlain(t *testing.T) {
	_, name, _ := DetectNamed(context.Background(), &fakeDetector{name: "solo"}, Request{})
	if name != "solo" {
		t.Fatalf("unexpected name %q", name)
	}
}

func TestCacheKeyStable(t *testing.T) {
	a := CacheKey(Request{ImageURL: "/uploads/a.png"})
	b := CacheKey(Request{ImageURL: "/uploads/a.png", ImagePath: "other"})
	c := CacheKey(Request{ImageURL: "/uploads/b.png"})
	if a != b || a == c || !strings.HasPrefix(a, cacheKeyPrefix) {
		t.Fatalf("unexpected cache keys: %s %s %s", a, b, c)
	}
}
