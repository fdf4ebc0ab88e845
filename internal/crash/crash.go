/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns panics into crash reports on disk.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "mangaeditor/internal/log"
	"mangaeditor/internal/telemetry"
	"mangaeditor/internal/version"
)

// DirName is the subdirectory of the data dir that holds reports.
const DirName = "crash"

// exitFn is swapped in tests.
var exitFn = os.Exit

// Recover logs a panic with its stack, writes a report under dataDir and
// exits with code 2. Use as: defer crash.Recover(dataDir)
func Recover(dataDir string) {
	r := recover()
	if r == nil {
		return
	}
	path, _ := Report(dataDir, r, debug.Stack())
	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", path)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

// Report logs panicVal and writes a crash report file, returning its path.
// The report is also handed to telemetry, which uploads it only when opted in.
func Report(dataDir string, panicVal any, stack []byte) (string, error) {
	l := applog.WithComponent("crash")
	l.Error("panic recovered", slog.Any("panic", panicVal), slog.String("stack", string(stack)))
	path, err := writeReport(dataDir, panicVal, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err), slog.String("path", path))
	}
	return path, err
}

func writeReport(dataDir string, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if dataDir != "" {
		dir = filepath.Join(dataDir, DirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			dir = os.TempDir()
		}
	}
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("crash-%s-%d.log", now.Format("20060102-150405"), now.Nanosecond()))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Manga Editor Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return path, err
	}
	_ = f.Sync()
	if err := f.Close(); err != nil {
		return path, err
	}

	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
