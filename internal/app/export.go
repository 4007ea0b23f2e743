/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package app

import (
	"context"
	"errors"
	"log/slog"

	"gostoryboard/internal/document"
	"gostoryboard/internal/export"
	"gostoryboard/internal/telemetry"
)

// ExportResult is an export plus where it was written, if anywhere.
type ExportResult struct {
	export.Result
	Path string
}

// Export renders the active page. The document is read under the lock and rendering runs
// outside it. With an export dir configured the file is also written there. Failures raise an
// export notice carrying the mitigation hint and never touch the document.
func (s *Session) Export(ctx context.Context, format export.Format) (ExportResult, error) {
	s.mu.Lock()
	if format == "" {
		format = s.format
	}
	p, _ := document.ActiveProject(s.state)
	iss, _ := document.ActiveIssue(s.state)
	pg, _ := document.ActivePage(s.state)
	dir := s.exportDir
	s.mu.Unlock()

	res, err := s.exporter.Export(ctx, export.Request{Project: p, Issue: iss, Page: pg, Format: format})
	out := ExportResult{Result: res}
	if err == nil && dir != "" {
		out.Path, err = export.WriteFile(dir, res)
	}
	if err != nil {
		s.exportFailed(err)
		return ExportResult{}, err
	}
	s.tele.Event(telemetry.EventPageExported, map[string]any{
		"format": string(format),
		"panels": len(pg.Panels),
		"bytes":  len(res.Data),
	})
	s.log.Info("page exported", slog.String("file", res.FileName), slog.String("path", out.Path))
	return out, nil
}

func (s *Session) exportFailed(err error) {
	hint := export.RenderHint
	msg := "Export failed."
	var ee *export.ExportError
	if errors.As(err, &ee) {
		if ee.Hint != "" {
			hint = ee.Hint
		}
		if !ee.Retryable {
			msg = "Nothing to export: " + ee.Err.Error() + "."
			hint = ""
		}
	}
	s.mu.Lock()
	s.addNotice(NoticeExport, msg, hint)
	s.mu.Unlock()
	s.tele.Event(telemetry.EventExportFailed, nil)
	s.log.Warn("export failed", slog.Any("err", err))
}
