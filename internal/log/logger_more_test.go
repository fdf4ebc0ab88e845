/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package log

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestFromEnvAndGetenv(t *testing.T) {
	t.Setenv("MGE_LOG_LEVEL", "warn")
	t.Setenv("MGE_LOG_FORMAT", "json")
	t.Setenv("MGE_LOG_SOURCE", "true")
	t.Setenv("MGE_LOG_FILE", "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
	if err := os.Unsetenv("SOME_UNSET_VAR"); err != nil {
		t.Fatalf("Unsetenv error: %v", err)
	}
	if v := getenv("SOME_UNSET_VAR", "fallback"); v != "fallback" {
		t.Fatalf("getenv fallback failed: %q", v)
	}
}

func TestPrettyTextHandler_Behavior(t *testing.T) {
	var buf bytes.Buffer
	h := &prettyTextHandler{opts: prettyOpts{Level: slog.LevelWarn}, w: &buf}
	ctx := context.Background()

	if h.Enabled(ctx, slog.LevelInfo) {
		t.Fatalf("info should not be enabled at warn level")
	}
	if !h.Enabled(ctx, slog.LevelError) {
		t.Fatalf("error should be enabled at warn level")
	}

	h2 := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).WithGroup("grp")
	r := slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)
	r.AddAttrs(slog.Int("n", 42), slog.Float64("pi", 3.14), slog.Bool("ok", true))
	if err := h2.Handle(ctx, r); err != nil {
		t.Fatalf("handle error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"boom", "k=v", "grp.n=42", "ERR", "pi=3.14", "ok=true"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q: %q", want, out)
		}
	}
}

func TestPrettyTextHandler_AddSource(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&prettyTextHandler{opts: prettyOpts{Level: slog.LevelInfo, AddSource: true}, w: &buf})
	logger.Info("here")
	if out := buf.String(); !strings.Contains(out, "src=") || !strings.Contains(out, "logger_more_test.go:") {
		t.Fatalf("expected call site in output: %q", out)
	}

	buf.Reset()
	h := &prettyTextHandler{opts: prettyOpts{Level: slog.LevelInfo, AddSource: true}, w: &buf}
	if err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "nopc", 0)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if strings.Contains(buf.String(), "src=") {
		t.Fatalf("record without pc must not print a source: %q", buf.String())
	}
}
