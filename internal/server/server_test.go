/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gostoryboard/internal/app"
	"gostoryboard/internal/domain"
	"gostoryboard/internal/export"
	"gostoryboard/internal/generation"
	"gostoryboard/internal/storage"
	"gostoryboard/internal/telemetry"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T, gw generation.Gateway) *httptest.Server {
	t.Helper()
	tele := telemetry.New(telemetry.Config{})
	t.Cleanup(tele.Close)
	sess := app.New(domain.DefaultState(), app.Options{
		Store:     storage.NewStore(storage.NewMemorySlot()),
		Gateway:   gw,
		Exporter:  export.New(export.WithScale(1)),
		Telemetry: tele,
	})
	srv := httptest.NewServer(New(sess, Options{}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHealthAndVersion(t *testing.T) {
	srv := newTestServer(t, nil)
	resp := do(t, srv, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}
	h := decodeBody[map[string]any](t, resp)
	if h["offline"] != true {
		t.Fatalf("session without gateway should report offline: %v", h)
	}
	if resp := do(t, srv, http.MethodGet, "/version", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("version = %d", resp.StatusCode)
	}
}

func TestStructureEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)
	v := decodeBody[app.View](t, do(t, srv, http.MethodGet, "/api/state", ""))
	if v.Project.Name != domain.DefaultProjectName {
		t.Fatalf("project = %q", v.Project.Name)
	}

	// deleting the only page is refused
	resp := do(t, srv, http.MethodDelete, "/api/pages/"+v.Page.ID, "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("delete last page = %d", resp.StatusCode)
	}

	resp = do(t, srv, http.MethodPost, "/api/pages", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add page = %d", resp.StatusCode)
	}
	v = decodeBody[app.View](t, resp)
	if v.Page.Number != 2 {
		t.Fatalf("active page number = %d", v.Page.Number)
	}

	resp = do(t, srv, http.MethodPatch, "/api/issues/"+v.Issue.ID, `{"title":"Issue #1: Renamed"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rename issue = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPut, "/api/projects/nope/select", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("select unknown project = %d", resp.StatusCode)
	}
	notices := decodeBody[[]app.Notice](t, do(t, srv, http.MethodGet, "/api/notices", ""))
	if len(notices) != 1 || notices[0].Kind != app.NoticeRefusal {
		t.Fatalf("notices = %+v", notices)
	}
	if resp := do(t, srv, http.MethodDelete, "/api/notices/"+notices[0].ID, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("dismiss = %d", resp.StatusCode)
	}
}

func TestGenerateOfflineAndBadInput(t *testing.T) {
	srv := newTestServer(t, nil)
	if resp := do(t, srv, http.MethodPost, "/api/generate", `{"prompt":"x"}`); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("offline generate = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPost, "/api/generate", `{`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPut, "/api/layout", `{"name":"ULTRA"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad layout = %d", resp.StatusCode)
	}
}

func TestGenerateDragAndExport(t *testing.T) {
	gw := generation.GatewayFunc(func(_ context.Context, req generation.Request) (generation.Image, error) {
		return generation.Image{MIMEType: "image/png", Data: tinyPNG(t)}, nil
	})
	srv := newTestServer(t, gw)

	c := decodeBody[domain.Character](t, do(t, srv, http.MethodPost, "/api/characters", `{"name":"Ash","archetype":"Wanderer"}`))
	if c.ID == "" {
		t.Fatalf("character id not assigned")
	}
	sel := decodeBody[map[string][]string](t, do(t, srv, http.MethodPost, "/api/characters/"+c.ID+"/toggle", ""))
	if len(sel["selectedCharacters"]) != 1 {
		t.Fatalf("selection = %v", sel)
	}
	if resp := do(t, srv, http.MethodPut, "/api/layout", `{"name":"CLOSE"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("layout = %d", resp.StatusCode)
	}

	resp := do(t, srv, http.MethodPost, "/api/generate", `{"prompt":"close on Ash"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate = %d", resp.StatusCode)
	}
	pn := decodeBody[domain.Panel](t, resp)
	if pn.AspectRatio != domain.Ratio1x1 || pn.Width != 400 || len(pn.CharactersInvolved) != 1 {
		t.Fatalf("panel = %+v", pn)
	}

	events := []string{
		`{"type":"drag_start","panelId":"` + pn.ID + `","x":10,"y":10,"panelX":100,"panelY":100}`,
		`{"type":"move","x":60,"y":30}`,
		`{"type":"up"}`,
	}
	for _, e := range events {
		if resp := do(t, srv, http.MethodPost, "/api/pointer", e); resp.StatusCode != http.StatusOK {
			t.Fatalf("pointer %s = %d", e, resp.StatusCode)
		}
	}
	v := decodeBody[app.View](t, do(t, srv, http.MethodGet, "/api/state", ""))
	if got := v.Page.Panels[0]; got.X != 150 || got.Y != 120 || got.ZIndex <= pn.ZIndex {
		t.Fatalf("panel after drag = %+v", got)
	}

	resp = do(t, srv, http.MethodPatch, "/api/panels/"+pn.ID, `{"width":50,"aspectRatio":"9:16"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch = %d", resp.StatusCode)
	}
	v = decodeBody[app.View](t, resp)
	if got := v.Page.Panels[0]; got.Width != 200 || got.AspectRatio != domain.Ratio9x16 {
		t.Fatalf("patched panel = %+v", got)
	}

	resp = do(t, srv, http.MethodPost, "/api/export?format=png", "")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("export = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "_Page1.png") {
		t.Fatalf("content disposition = %q", cd)
	}
	if resp := do(t, srv, http.MethodPost, "/api/export?format=gif", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad format = %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPost, "/api/pointer", `{"type":"wiggle"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad pointer = %d", resp.StatusCode)
	}
}

func TestContentPolicyStatus(t *testing.T) {
	gw := generation.GatewayFunc(func(context.Context, generation.Request) (generation.Image, error) {
		return generation.Image{}, generation.ErrContentPolicy
	})
	srv := newTestServer(t, gw)
	resp := do(t, srv, http.MethodPost, "/api/generate", `{"prompt":"x"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody[errorBody](t, resp)
	if !strings.Contains(body.Error, "safety") {
		t.Fatalf("error = %q", body.Error)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/state", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("missing CORS header")
	}
}

func TestResetEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	_ = do(t, srv, http.MethodPost, "/api/projects", `{"name":"Second"}`)
	v := decodeBody[app.View](t, do(t, srv, http.MethodPost, "/api/reset", ""))
	if len(v.State.Projects) != 1 || v.Project.Name != domain.DefaultProjectName {
		t.Fatalf("after reset = %+v", v.State.Projects)
	}
}

func TestConnectLeavesOfflineMode(t *testing.T) {
	tele := telemetry.New(telemetry.Config{})
	t.Cleanup(tele.Close)
	gw := generation.GatewayFunc(func(context.Context, generation.Request) (generation.Image, error) {
		return generation.Image{MIMEType: "image/png", Data: tinyPNG(t)}, nil
	})
	connect := func(context.Context) (generation.Gateway, error) { return gw, nil }
	sess := app.New(domain.DefaultState(), app.Options{
		Store:     storage.NewStore(storage.NewMemorySlot()),
		Connect:   connect,
		Telemetry: tele,
	})
	srv := httptest.NewServer(New(sess, Options{}).Handler())
	t.Cleanup(srv.Close)

	if resp := do(t, srv, http.MethodPost, "/api/generate", `{"prompt":"x"}`); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("offline generate = %d", resp.StatusCode)
	}
	resp := do(t, srv, http.MethodPost, "/api/connect", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("connect = %d", resp.StatusCode)
	}
	if v := decodeBody[app.View](t, resp); v.Offline {
		t.Fatalf("view still offline after connect")
	}
	if resp := do(t, srv, http.MethodPost, "/api/generate", `{"prompt":"x"}`); resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate after connect = %d", resp.StatusCode)
	}
}

func TestConnectWithoutConnector(t *testing.T) {
	srv := newTestServer(t, nil)
	if resp := do(t, srv, http.MethodPost, "/api/connect", ""); resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("connect = %d", resp.StatusCode)
	}
}
