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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func lastJSONLine(t *testing.T, path string) map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	scanner := bufio.NewScanner(strings.NewReader(string(b)))
	var last string
	for scanner.Scan() {
		if s := strings.TrimSpace(scanner.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines found")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log: %v", err)
	}
	return m
}

func TestInitAndStructuredLoggingToFile(t *testing.T) {
	fpath := filepath.Join(os.TempDir(), fmt.Sprintf("mge_log_%d.json", time.Now().UnixNano()))
	Init(Options{Level: "debug", Format: "json", File: fpath})

	l := WithOperation(WithComponent("testcomp"), "op1")
	l.Info("hello world", slog.String("k", "v"))
	time.Sleep(50 * time.Millisecond)

	m := lastJSONLine(t, fpath)
	if m["app"] != "mangaeditor" {
		t.Fatalf("missing app attr: %v", m["app"])
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
	if m["component"] != "testcomp" || m["op"] != "op1" {
		t.Fatalf("context attrs mismatch: %v", m)
	}
	if m["msg"] != "hello world" {
		t.Fatalf("msg mismatch: %v", m["msg"])
	}
}

func TestRequestIDFromContext(t *testing.T) {
	fpath := filepath.Join(os.TempDir(), fmt.Sprintf("mge_log_req_%d.json", time.Now().UnixNano()))
	Init(Options{Level: "info", Format: "json", File: fpath})

	ctx := ContextWithRequestID(context.Background(), "req-42")
	if got := RequestID(ctx); got != "req-42" {
		t.Fatalf("RequestID = %q", got)
	}
	WithComponent("http").InfoContext(ctx, "handled")
	time.Sleep(50 * time.Millisecond)

	m := lastJSONLine(t, fpath)
	if m["req"] != "req-42" {
		t.Fatalf("expected req attr, got %v", m["req"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in).Level(); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
