/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	events  [][]byte
	crashes [][]byte
}

func (r *recorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.events = append(r.events, b)
		r.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.crashes = append(r.crashes, b)
		r.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events), len(r.crashes)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEventAndCrashUpload(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()

	c.Event(EventPanelGenerated, map[string]any{"aspect": "16:9", "ms": 1200})
	c.Flush(context.Background())
	waitFor(t, func() bool { e, _ := rec.counts(); return e == 1 })

	var m map[string]any
	rec.mu.Lock()
	err := json.Unmarshal(rec.events[0], &m)
	rec.mu.Unlock()
	if err != nil {
		t.Fatalf("bad event json: %v", err)
	}
	if m["name"] != EventPanelGenerated || m["aspect"] != "16:9" {
		t.Fatalf("unexpected payload %v", m)
	}
	if _, ok := m["ts"].(string); !ok {
		t.Fatalf("missing ts")
	}

	c.UploadCrash([]byte("STACK"))
	waitFor(t, func() bool { _, n := rec.counts(); return n == 1 })
}

func TestDisabledSendsNothing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }))
	defer srv.Close()

	c := New(Config{EventsURL: srv.URL, CrashURL: srv.URL})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("client without opt-in must be disabled")
	}
	c.Event(EventPageExported, nil)
	c.UploadCrash([]byte("x"))

	on := New(Config{OptIn: true, EventsURL: srv.URL})
	defer on.Close()
	on.Event("", nil)
	on.Flush(nil)
	time.Sleep(50 * time.Millisecond)
	if hits.Load() != 0 {
		t.Fatalf("expected no requests, got %d", hits.Load())
	}
}

func TestRateLimitDropsBurst(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", EventsPerMinute: 2})
	defer c.Close()
	for i := 0; i < 10; i++ {
		c.Event(EventPageExported, nil)
	}
	c.Flush(context.Background())
	waitFor(t, func() bool { e, _ := rec.counts(); return e >= 2 })
	time.Sleep(50 * time.Millisecond)
	if e, _ := rec.counts(); e != 2 {
		t.Fatalf("expected burst of 2 events, got %d", e)
	}
}

func TestSendErrorsAreSwallowed(t *testing.T) {
	c := New(Config{OptIn: true, EventsURL: "http://127.0.0.1:1/events", CrashURL: "http://127.0.0.1:1/crash",
		Timeout: 50 * time.Millisecond, DebugLogging: true})
	defer c.Close()
	c.Event("err", map[string]any{"a": 1})
	c.Flush(context.Background())
	c.UploadCrash([]byte("oops"))
	time.Sleep(80 * time.Millisecond)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GSB_TELEMETRY_OPT_IN", "yes")
	t.Setenv("GSB_TELEMETRY_URL", " https://example.invalid/e ")
	t.Setenv("GSB_TELEMETRY_TIMEOUT_MS", "250")
	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL != "https://example.invalid/e" || cfg.Timeout != 250*time.Millisecond {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !(Config{}).WithOptIn(true).OptIn {
		t.Fatalf("WithOptIn should enable")
	}
}
