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
	"log/slog"
	"slices"
	"strings"
	"time"

	"gostoryboard/internal/document"
	"gostoryboard/internal/domain"
	"gostoryboard/internal/generation"
	"gostoryboard/internal/telemetry"
)

// Generate asks the gateway for a new panel and prepends it to the active page.
//
// The request is built from a snapshot taken under the lock: the selected characters that
// still exist, the active page's panels in chronological order, and the current layout.
// The lock is released for the gateway call so pointer gestures and other edits keep
// working; the panel lands on whichever page is active when the call returns. There is no
// timeout and ctx is passed through unchanged.
func (s *Session) Generate(ctx context.Context, prompt string) (domain.Panel, error) {
	prompt = strings.TrimSpace(prompt)
	s.mu.Lock()
	switch {
	case s.offline || s.gateway == nil:
		s.mu.Unlock()
		return domain.Panel{}, ErrOffline
	case prompt == "":
		s.mu.Unlock()
		return domain.Panel{}, ErrEmptyPrompt
	case s.generating:
		s.mu.Unlock()
		return domain.Panel{}, ErrBusy
	}
	req, charIDs := s.generationRequestLocked(prompt)
	gw := s.gateway
	s.generating = true
	s.mu.Unlock()

	l := s.log.With(slog.String("op", "generate"), slog.String("ratio", string(req.AspectRatio)))
	start := time.Now()
	img, err := gw.Generate(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false
	took := time.Since(start).Milliseconds()
	if err != nil {
		kind := generation.Classify(err)
		if kind == generation.KindUnavailable {
			s.offline = true
		}
		s.addNotice(NoticeGeneration, generation.Message(err), "")
		s.tele.Event(telemetry.EventGenerationFailed, map[string]any{"kind": kind.String(), "ms": took})
		l.Warn("generation failed", slog.String("kind", kind.String()), slog.Any("err", err))
		return domain.Panel{}, err
	}

	var pn domain.Panel
	s.state, pn = document.AddGeneratedPanel(s.state, document.PanelDraft{
		Prompt:       prompt,
		ImageURL:     img.DataURL(),
		CharacterIDs: charIDs,
		AspectRatio:  req.AspectRatio,
		Timestamp:    s.now(),
	})
	s.persistLocked(ctx)
	s.tele.Event(telemetry.EventPanelGenerated, map[string]any{
		"aspect":     string(pn.AspectRatio),
		"characters": len(charIDs),
		"ms":         took,
	})
	l.Info("panel added", slog.String("panel_id", pn.ID), slog.Int("z", pn.ZIndex))
	return pn, nil
}

// generationRequestLocked snapshots the generation inputs; callers hold s.mu.
func (s *Session) generationRequestLocked(prompt string) (generation.Request, []string) {
	p, _ := document.ActiveProject(s.state)
	pg, _ := document.ActivePage(s.state)
	chars := domain.ResolveCharacters(p.Characters, s.selected)
	ids := make([]string, 0, len(chars))
	for _, c := range chars {
		ids = append(ids, c.ID)
	}
	prior := slices.Clone(pg.Panels)
	slices.SortStableFunc(prior, func(a, b domain.Panel) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	return generation.Request{
		Prompt:      prompt,
		Characters:  chars,
		PriorPanels: prior,
		AspectRatio: s.layout.Ratio,
	}, ids
}
