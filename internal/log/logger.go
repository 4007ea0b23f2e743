/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log provides the slog based logging used across gostoryboard.
// A pretty one-line console handler (or JSON) is always installed; a rotating JSON file
// sink is added when a log file is configured. Attributes stored in a context with
// ContextWith are appended to every record logged through the *Context methods.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gostoryboard/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization. FromEnv reads them from
//   - GSB_LOG_LEVEL=debug|info|warn|error
//   - GSB_LOG_FORMAT=console|json
//   - GSB_LOG_FILE=<path> (rotated JSON file)
//   - GSB_LOG_SOURCE=true|false
type Options struct {
	Level     string
	Format    string
	AddSource bool
	File      string

	// Writer replaces stderr for the console handler. Tests use it.
	Writer io.Writer
}

const appName = "gostoryboard"

var (
	mu      sync.RWMutex
	current *slog.Logger
)

// L returns the process logger, initializing it from the environment on first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	return Init(FromEnv())
}

// Init builds the logger described by opts, installs it as slog.Default and returns it.
func Init(opts Options) *slog.Logger {
	lvl := parseLevel(opts.Level)
	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}

	var console slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		console = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource})
	} else {
		console = &prettyTextHandler{opts: prettyOpts{Level: lvl, AddSource: opts.AddSource}, w: out, mu: &sync.Mutex{}}
	}
	handlers := []slog.Handler{withEnricher(console)}

	if f := strings.TrimSpace(opts.File); f != "" {
		w := &lj.Logger{Filename: f, MaxSize: 10, MaxBackups: 5, MaxAge: 14, Compress: true}
		handlers = append(handlers, withEnricher(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource})))
	}

	h := handlers[0]
	if len(handlers) > 1 {
		h = multiHandler(handlers...)
	}
	logger := slog.New(h).With(
		slog.String("app", appName),
		slog.String("ver", version.String()),
	)

	mu.Lock()
	current = logger
	mu.Unlock()
	slog.SetDefault(logger)
	return logger
}

// FromEnv builds Options from GSB_LOG_* variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("GSB_LOG_LEVEL", "info"),
		Format:    getenv("GSB_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("GSB_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("GSB_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger tagged with the component name.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation tags l with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

type ctxKey struct{}

// ContextWith returns a child context carrying attrs in addition to any already stored.
func ContextWith(ctx context.Context, attrs ...slog.Attr) context.Context {
	prev := attrsFrom(ctx)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(merged, prev...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, ctxKey{}, merged)
}

func attrsFrom(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(ctxKey{}).([]slog.Attr)
	return a
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
