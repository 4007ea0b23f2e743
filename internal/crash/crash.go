/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a fatal panic into a report file plus a snapshot of the in-memory
// document, so unsaved work survives even when the store itself is the thing failing.
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

	"gostoryboard/internal/domain"
	applog "gostoryboard/internal/log"
	"gostoryboard/internal/storage"
	"gostoryboard/internal/telemetry"
	"gostoryboard/internal/version"
)

// exitFn lets tests run Recover without terminating the process.
var exitFn = os.Exit

// StateSource exposes the live document for the crash snapshot.
type StateSource interface {
	Snapshot() domain.State
}

// Recover must be called directly from a deferred function:
//
//	defer crash.Recover(dir, session)
//
// On panic it logs the stack, writes crash-<stamp>.log and a state snapshot into dir, and
// exits with status 2. src may be nil.
func Recover(dir string, src StateSource) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(dir, r, stack)
	if err != nil {
		l.Error("writing crash report failed", slog.Any("err", err))
	}
	if src != nil {
		if path, err := snapshot(dir, src); err != nil {
			l.Error("crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("crash snapshot written", slog.String("path", path))
		}
	}

	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

// snapshot reads the state without letting a second panic escape.
func snapshot(dir string, src StateSource) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading state: %v", r)
		}
	}()
	return storage.CrashSnapshot(reportDir(dir), src.Snapshot())
}

func reportDir(dir string) string {
	if dir == "" {
		return os.TempDir()
	}
	return dir
}

func writeReport(dir string, panicVal any, stack []byte) (string, error) {
	dir = reportDir(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure crash dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405")))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "gostoryboard crash report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

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
