/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func lastJSONLine(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var last string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines found")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log %q: %v", last, err)
	}
	return m
}

func TestJSONLoggingCarriesStaticAndContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Format: "json", Writer: &buf})

	ctx := ContextWith(context.Background(), slog.String("project", "p-1"))
	ctx = ContextWith(ctx, slog.String("request_id", "r-9"))
	l := WithOperation(WithComponent("storage"), "save")
	l.InfoContext(ctx, "saved", slog.Int("bytes", 42))

	m := lastJSONLine(t, buf.Bytes())
	for k, want := range map[string]any{
		"app":        "gostoryboard",
		"component":  "storage",
		"op":         "save",
		"msg":        "saved",
		"project":    "p-1",
		"request_id": "r-9",
	} {
		if m[k] != want {
			t.Fatalf("%s = %v, want %v", k, m[k], want)
		}
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
}

func TestFileSinkRotatesJSON(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "gsb.log")
	var console bytes.Buffer
	Init(Options{Level: "info", File: fpath, Writer: &console})
	WithComponent("test").Warn("to file", slog.String("k", "v"))

	// lumberjack writes synchronously; give slow filesystems a moment anyway
	time.Sleep(20 * time.Millisecond)
	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	m := lastJSONLine(t, b)
	if m["msg"] != "to file" || m["k"] != "v" {
		t.Fatalf("unexpected file record: %v", m)
	}
	if !strings.Contains(console.String(), "WRN to file") {
		t.Fatalf("console sink missed the record: %q", console.String())
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GSB_LOG_LEVEL", "warn")
	t.Setenv("GSB_LOG_FORMAT", "json")
	t.Setenv("GSB_LOG_SOURCE", "TRUE")
	t.Setenv("GSB_LOG_FILE", "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
	if v := getenv("GSB_SURELY_UNSET_VAR", "fallback"); v != "fallback" {
		t.Fatalf("getenv fallback failed: %q", v)
	}
}

func TestPrettyTextHandler(t *testing.T) {
	var buf bytes.Buffer
	h := &prettyTextHandler{opts: prettyOpts{Level: slog.LevelWarn}, w: &buf}

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info should not be enabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("error should be enabled at warn level")
	}

	h2 := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).WithGroup("grp")
	r := slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)
	r.AddAttrs(slog.Int("n", 42), slog.Float64("pi", 3.14), slog.Bool("ok", true),
		slog.String("title", "two words"), slog.Any("err", errors.New("disk full")))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("handle error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"ERR boom", " k=v", "grp.n=42", "grp.pi=3.14", "grp.ok=true", `grp.title="two words"`, `grp.err="disk full"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q: %q", want, out)
		}
	}
}
