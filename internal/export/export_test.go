/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"gostoryboard/internal/domain"
	"gostoryboard/internal/generation"
)

func solidPNG(t *testing.T, c color.RGBA, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func dataURL(t *testing.T, c color.RGBA) string {
	return generation.Image{MIMEType: "image/png", Data: solidPNG(t, c, 32, 32)}.DataURL()
}

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func overlappingPage(t *testing.T) domain.Page {
	// blue is listed first but red has the higher z, so red must paint on top
	return domain.Page{ID: "pg", Number: 2, Panels: []domain.Panel{
		{ID: "b", X: 100, Y: 100, Width: 200, AspectRatio: domain.Ratio1x1, ZIndex: 101, ImageURL: dataURL(t, blue)},
		{ID: "r", X: 0, Y: 0, Width: 200, AspectRatio: domain.Ratio1x1, ZIndex: 105, ImageURL: dataURL(t, red)},
	}}
}

// near tolerates rounding from the resampling kernel.
func near(a, b color.RGBA) bool {
	d := func(x, y uint8) bool { return max(x, y)-min(x, y) <= 2 }
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B) && d(a.A, b.A)
}

func TestBoundsSymmetricMargin(t *testing.T) {
	panels := []domain.Panel{
		{X: -120, Y: 40, Width: 400, AspectRatio: domain.Ratio16x9},
		{X: 300, Y: -10, Width: 200, AspectRatio: domain.Ratio3x4},
	}
	r, ok := Bounds(panels, 50)
	if !ok {
		t.Fatalf("expected bounds")
	}
	// x: -120..500, y: -10..265 (the 16:9 panel reaches lower than the 3:4 one)
	if r.X != -170 || r.Y != -60 {
		t.Fatalf("origin = %v,%v", r.X, r.Y)
	}
	if r.W != 720 {
		t.Fatalf("width = %v", r.W)
	}
	wantH := 265.0 + 10 + 100
	if d := r.H - wantH; d > 1e-9 || d < -1e-9 {
		t.Fatalf("height = %v want %v", r.H, wantH)
	}
	if _, ok := Bounds(nil, 50); ok {
		t.Fatalf("empty page must have no bounds")
	}
}

func TestFileName(t *testing.T) {
	p := domain.Project{Name: "Primary Archive"}
	iss := domain.Issue{Title: "Issue #1: The Crossing"}
	got := FileName(p, iss, domain.Page{Number: 3}, "png")
	if got != "Primary_Archive_Issue__1__The_Crossing_Page3.png" {
		t.Fatalf("file name = %q", got)
	}
	if got := FileName(domain.Project{}, domain.Issue{}, domain.Page{Number: 1}, ""); got != "Project_Issue_Page1.png" {
		t.Fatalf("fallback name = %q", got)
	}
}

func TestExportPNGStacksByZ(t *testing.T) {
	ex := New(WithScale(1), WithMargin(50))
	res, err := ex.Export(context.Background(), Request{
		Project: domain.Project{Name: "P"},
		Issue:   domain.Issue{Title: "I"},
		Page:    overlappingPage(t),
		Format:  FormatPNG,
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.MIMEType != "image/png" || res.FileName != "P_I_Page2.png" {
		t.Fatalf("unexpected result meta: %+v", res.FileName)
	}
	img, err := png.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 400 {
		t.Fatalf("size = %v", b)
	}
	check := func(x, y int, want color.RGBA) {
		t.Helper()
		got := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
		if !near(got, want) {
			t.Fatalf("pixel %d,%d = %v want %v", x, y, got, want)
		}
	}
	check(5, 5, Background)
	check(100, 100, red)  // canvas 50,50: only red
	check(200, 200, red)  // canvas 150,150: overlap, red has higher z
	check(300, 300, blue) // canvas 250,250: only blue
}

func TestExportScalesOutput(t *testing.T) {
	res, err := New().Export(context.Background(), Request{Page: overlappingPage(t)})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.Width != 600 || res.Height != 600 {
		t.Fatalf("scaled size = %dx%d, want 600x600", res.Width, res.Height)
	}
}

func TestExportPDF(t *testing.T) {
	res, err := New().Export(context.Background(), Request{Page: overlappingPage(t), Format: FormatPDF})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.MIMEType != "application/pdf" || !strings.HasSuffix(res.FileName, ".pdf") {
		t.Fatalf("unexpected meta %q %q", res.MIMEType, res.FileName)
	}
	if !bytes.HasPrefix(res.Data, []byte("%PDF")) {
		t.Fatalf("output is not a pdf")
	}
}

func TestExportEmptyPage(t *testing.T) {
	_, err := New().Export(context.Background(), Request{Page: domain.Page{Number: 1}})
	if !errors.Is(err, ErrExport) {
		t.Fatalf("want ErrExport, got %v", err)
	}
	var ee *ExportError
	if !errors.As(err, &ee) || ee.Retryable {
		t.Fatalf("empty page should not be retryable: %#v", err)
	}
}

func TestExportBadImageIsRetryable(t *testing.T) {
	pg := domain.Page{Number: 1, Panels: []domain.Panel{{ID: "x", Width: 300, AspectRatio: domain.Ratio4x3, ImageURL: "ftp://nope"}}}
	_, err := New().Export(context.Background(), Request{Page: pg})
	var ee *ExportError
	if !errors.As(err, &ee) || !ee.Retryable || ee.Hint != RenderHint {
		t.Fatalf("want retryable export error with hint, got %v", err)
	}
}

func TestExportOversizedPageIsRetryable(t *testing.T) {
	far := float64(1<<32) - 500
	pg := domain.Page{Number: 1, Panels: []domain.Panel{
		{ID: "a", Width: 400, AspectRatio: domain.Ratio1x1},
		{ID: "b", X: far, Y: far, Width: 400, AspectRatio: domain.Ratio1x1},
	}}
	for _, f := range []Format{FormatPNG, FormatPDF} {
		_, err := New(WithScale(1)).Export(context.Background(), Request{Page: pg, Format: f})
		var ee *ExportError
		if !errors.As(err, &ee) || !ee.Retryable || ee.Hint != RenderHint {
			t.Fatalf("%s: want retryable export error with hint, got %v", f, err)
		}
	}
}

func TestExportPanelWithoutImage(t *testing.T) {
	pg := domain.Page{Number: 1, Panels: []domain.Panel{{ID: "x", Width: 200, AspectRatio: domain.Ratio1x1}}}
	res, err := New(WithScale(1)).Export(context.Background(), Request{Page: pg})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	img, _ := png.Decode(bytes.NewReader(res.Data))
	if got := color.RGBAModel.Convert(img.At(150, 150)).(color.RGBA); got != placeholder {
		t.Fatalf("placeholder pixel = %v", got)
	}
}

func TestResolverFetchesAndCaches(t *testing.T) {
	body := solidPNG(t, blue, 8, 8)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	r := NewResolver(srv.Client())
	u := srv.URL + "/panel.png"
	imgs, err := r.ResolveAll(context.Background(), []string{u, u, ""})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(imgs) != 1 {
		t.Fatalf("want 1 image, got %d", len(imgs))
	}
	if _, err := r.Resolve(context.Background(), u); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("expected one fetch, got %d", n)
	}
}

func TestResolverHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if _, err := NewResolver(srv.Client()).Resolve(context.Background(), srv.URL+"/x.png"); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	p, err := WriteFile(dir, Result{FileName: "a.png", Data: []byte("x")})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if b, _ := os.ReadFile(p); string(b) != "x" {
		t.Fatalf("content = %q", b)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("PDF"); err != nil || f != FormatPDF {
		t.Fatalf("pdf: %v %v", f, err)
	}
	if f, _ := ParseFormat(""); f != FormatPNG {
		t.Fatalf("default = %v", f)
	}
	if _, err := ParseFormat("tiff"); err == nil {
		t.Fatalf("tiff should be rejected")
	}
}
