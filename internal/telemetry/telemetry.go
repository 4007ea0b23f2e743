/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous usage events (panel generated, page exported) and
// optional crash reports. Events carry counts and durations only, never prompts or images.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	applog "gostoryboard/internal/log"
	"gostoryboard/internal/version"
)

// Event names.
const (
	EventPanelGenerated   = "panel_generated"
	EventGenerationFailed = "generation_failed"
	EventPageExported     = "page_exported"
	EventExportFailed     = "export_failed"
	EventStateReset       = "state_reset"
)

// Config controls the sender. Nothing is sent unless OptIn is set and EventsURL is non-empty.
//
// Environment variables read by FromEnv:
//   - GSB_TELEMETRY_OPT_IN: 1, true, yes or on
//   - GSB_TELEMETRY_URL: endpoint receiving JSON events
//   - GSB_CRASH_UPLOAD_URL: endpoint receiving crash reports
//   - GSB_TELEMETRY_TIMEOUT_MS: request timeout, default 1500
//   - GSB_TELEMETRY_DEBUG: log send attempts
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
	// EventsPerMinute bounds outgoing events; 0 means 30.
	EventsPerMinute int
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("GSB_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("GSB_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("GSB_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("GSB_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("GSB_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil {
			cfg.Timeout = v
		}
	}
	return cfg
}

// WithOptIn returns cfg with the opt-in flag from the user config OR-ed in.
func (c Config) WithOptIn(optIn bool) Config {
	c.OptIn = c.OptIn || optIn
	return c
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Client is an async sender. Events are queued on a bounded channel and dropped when the
// queue is full, the rate limit is exceeded, or delivery fails.
type Client struct {
	cfg     Config
	log     *slog.Logger
	cli     *http.Client
	limiter *rate.Limiter
	q       chan map[string]any
	once    sync.Once
	closed  chan struct{}
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Default returns the package client, created from the environment on first use.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// SetDefault installs c as the package client and returns the previous one.
func SetDefault(c *Client) *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultClient
	defaultClient = c
	return prev
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	perMin := cfg.EventsPerMinute
	if perMin <= 0 {
		perMin = 30
	}
	c := &Client{
		cfg:     cfg,
		log:     applog.WithComponent("telemetry"),
		cli:     &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
		q:       make(chan map[string]any, 64),
		closed:  make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events will be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues a named event. props must not contain personal data.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	if !c.limiter.Allow() {
		return
	}
	payload := map[string]any{
		"name":    name,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"version": version.String(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for k, v := range props {
		payload[k] = v
	}
	select {
	case c.q <- payload:
	default:
	}
}

// Event queues on the default client.
func Event(name string, props map[string]any) { Default().Event(name, props) }

// Flush waits up to 500ms for the queue to drain.
func (c *Client) Flush(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for len(c.q) > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Close stops the background sender.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case item := <-c.q:
			b, err := json.Marshal(item)
			if err != nil {
				continue
			}
			c.post(c.cfg.EventsURL, "application/json", b, "telemetry event")
		}
	}
}

func (c *Client) post(url, contentType string, body []byte, what string) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug(what+" send failed", slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug(what+" sent", slog.Int("status", resp.StatusCode))
	}
}

// UploadCrash posts a serialized crash report when opted in and a crash URL is configured.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	go c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", append([]byte(nil), report...), "crash report")
}

// UploadCrash uses the default client.
func UploadCrash(report []byte) { Default().UploadCrash(report) }
