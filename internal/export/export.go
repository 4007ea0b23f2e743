/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export flattens the panels of one page into a single image file.
// Only panel images are drawn, stacked by z index. Selection outlines, handles and
// character chips belong to the editor chrome and never appear in an export.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gostoryboard/internal/domain"
	applog "gostoryboard/internal/log"
)

// ErrExport marks every export failure.
var ErrExport = errors.New("export failed")

// RenderHint is shown to the user when rendering fails.
const RenderHint = "Memory limit reached or render failed. Try fewer panels per page."

// ExportError describes a failed export. The document is never modified by an export, so a
// retryable failure can simply be attempted again.
type ExportError struct {
	Op        string
	Err       error
	Retryable bool
	Hint      string
}

func (e *ExportError) Error() string { return fmt.Sprintf("export %s: %v", e.Op, e.Err) }

func (e *ExportError) Unwrap() error { return e.Err }

func (e *ExportError) Is(target error) bool { return target == ErrExport }

// Format is an output encoding.
type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// ParseFormat accepts "png" or "pdf" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPNG, FormatPDF:
		return f, nil
	case "":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// MIMEType returns the content type of files in this format.
func (f Format) MIMEType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "image/png"
}

// Request selects the page to export.
type Request struct {
	Project domain.Project
	Issue   domain.Issue
	Page    domain.Page
	Format  Format
}

// Result is an encoded export.
type Result struct {
	FileName string
	MIMEType string
	Data     []byte
	Region   Rect
	Width    int
	Height   int
}

// Exporter renders pages. The zero value is not usable; use New.
type Exporter struct {
	resolver *Resolver
	scale    float64
	margin   float64
	log      *slog.Logger
}

type Option func(*Exporter)

// WithScale sets the pixel density multiplier (default 1.5).
func WithScale(s float64) Option {
	return func(e *Exporter) {
		if s > 0 {
			e.scale = s
		}
	}
}

// WithMargin sets the padding around the panels' bounding box (default 50).
func WithMargin(m float64) Option {
	return func(e *Exporter) {
		if m >= 0 {
			e.margin = m
		}
	}
}

// WithResolver replaces the default image resolver.
func WithResolver(r *Resolver) Option {
	return func(e *Exporter) { e.resolver = r }
}

func New(opts ...Option) *Exporter {
	e := &Exporter{scale: 1.5, margin: 50, log: applog.WithComponent("export")}
	for _, o := range opts {
		o(e)
	}
	if e.resolver == nil {
		e.resolver = NewResolver(nil)
	}
	return e
}

// Export renders the page in the requested format.
func (e *Exporter) Export(ctx context.Context, req Request) (Result, error) {
	l := applog.WithOperation(e.log, "export").With(
		slog.String("page_id", req.Page.ID),
		slog.Int("panels", len(req.Page.Panels)),
		slog.String("format", string(req.Format)),
	)
	format := req.Format
	if format == "" {
		format = FormatPNG
	}
	region, ok := Bounds(req.Page.Panels, e.margin)
	if !ok {
		return Result{}, &ExportError{Op: "bounds", Err: errors.New("page has no panels")}
	}

	start := time.Now()
	panels := stackOrder(req.Page.Panels)
	urls := make([]string, 0, len(panels))
	for _, p := range panels {
		urls = append(urls, p.ImageURL)
	}
	images, err := e.resolver.ResolveAll(ctx, urls)
	if err != nil {
		l.Error("resolving panel images failed", slog.Any("err", err))
		return Result{}, &ExportError{Op: "resolve", Err: err, Retryable: true, Hint: RenderHint}
	}
	layers := make([]layer, 0, len(panels))
	for _, p := range panels {
		layers = append(layers, layer{panel: p, img: images[p.ImageURL]})
	}

	var (
		data   []byte
		pw, ph int
	)
	switch format {
	case FormatPNG:
		data, pw, ph, err = renderPNG(layers, region, e.scale)
	case FormatPDF:
		data, pw, ph, err = renderPDF(layers, region, e.scale, req.Project.Name+" - "+req.Issue.Title)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		l.Error("render failed", slog.Any("err", err))
		return Result{}, &ExportError{Op: "render", Err: err, Retryable: true, Hint: RenderHint}
	}
	l.Info("page exported", slog.Int("bytes", len(data)), slog.Duration("took", time.Since(start).Round(time.Millisecond)))
	return Result{
		FileName: FileName(req.Project, req.Issue, req.Page, string(format)),
		MIMEType: format.MIMEType(),
		Data:     data,
		Region:   region,
		Width:    pw,
		Height:   ph,
	}, nil
}

// WriteFile stores res under dir and returns the full path.
func WriteFile(dir string, res Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &ExportError{Op: "write", Err: fmt.Errorf("ensure out dir: %w", err), Retryable: true}
	}
	p := filepath.Join(dir, res.FileName)
	if err := os.WriteFile(p, res.Data, 0o644); err != nil {
		return "", &ExportError{Op: "write", Err: err, Retryable: true}
	}
	return p, nil
}

type layer struct {
	panel domain.Panel
	img   image.Image
}

// stackOrder returns panels lowest z first; equal z keeps document order reversed so the
// earlier (newer, prepended) panel paints on top, matching the canvas.
func stackOrder(panels []domain.Panel) []domain.Panel {
	out := make([]domain.Panel, len(panels))
	for i, p := range panels {
		out[len(panels)-1-i] = p
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}
