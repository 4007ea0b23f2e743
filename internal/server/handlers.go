/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gostoryboard/internal/app"
	"gostoryboard/internal/canvas"
	"gostoryboard/internal/document"
	"gostoryboard/internal/domain"
	"gostoryboard/internal/export"
	"gostoryboard/internal/generation"
	"gostoryboard/internal/version"
)

type errorBody struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Error: err.Error()}
	var ee *export.ExportError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, app.ErrEmptyPrompt), errors.Is(err, app.ErrUnknownLayout):
		status = http.StatusBadRequest
	case errors.Is(err, document.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, document.ErrRefused), errors.Is(err, app.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, app.ErrOffline), errors.Is(err, generation.ErrUnavailable), errors.Is(err, generation.ErrTransient):
		status = http.StatusServiceUnavailable
	case errors.Is(err, app.ErrNoConnector):
		status = http.StatusNotImplemented
	case errors.Is(err, generation.ErrContentPolicy):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, generation.ErrNoImage), errors.Is(err, generation.ErrBlocked):
		status = http.StatusBadGateway
	case errors.As(err, &ee):
		body.Hint = ee.Hint
		if !ee.Retryable {
			status = http.StatusUnprocessableEntity
		}
	}
	if k := generation.Classify(err); k != generation.KindNone && k != generation.KindOther {
		body.Error = generation.Message(err)
	}
	writeJSON(w, status, body)
}

var errBadRequest = errors.New("bad request")

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// commit runs a document op and answers with the fresh view.
func (s *Server) commit(w http.ResponseWriter, r *http.Request, status int, op func(domain.State) (domain.State, error)) {
	if err := s.session.Commit(r.Context(), op); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, s.session.View())
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "offline": s.session.Offline()})
}

func (s *Server) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.String()})
}

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.View())
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	// a failed purge still resets memory and leaves a notice, so the view is returned either way
	_ = s.session.Reset(r.Context())
	writeJSON(w, http.StatusOK, s.session.View())
}

type nameBody struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

func (s *Server) addProject(w http.ResponseWriter, r *http.Request) {
	var b nameBody
	if err := decode(r, &b); err != nil {
		writeError(w, err)
		return
	}
	s.commit(w, r, http.StatusCreated, func(st domain.State) (domain.State, error) {
		st, _ = document.AddProject(st, b.Name)
		return st, nil
	})
}

func (s *Server) renameProject(w http.ResponseWriter, r *http.Request) {
	var b nameBody
	if err := decode(r, &b); err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "projectID")
	s.commit(w, r, http.StatusOK, func(st domain.State) (domain.State, error) {
		return document.RenameProject(st, id, b.Name)
	})
}

func (s *Server) selectProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	s.commit(w, r, http.StatusOK, func(st domain.State) (domain.State, error) {
		return document.SelectProject(st, id)
	})
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	s.commit(w, r, http.StatusOK, func(st domain.State) (domain.State, error) {
		return document.DeleteProject(st, id)
	})
}

func (s *Server) addIssue(w http.ResponseWriter, r *http.Request) {
	s.commit(w, r, http.StatusCreated, func(st domain.State) (domain.State, error) {
		st, _ = document.AddIssue(st)
		return st, nil
	})
}

func (s *Server) renameIssue(w http.ResponseWriter, r *http.Request) {
	var b nameBody
	if err := decode(r, &b); err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "issueID")
	s.commit(w, r, http.StatusOK, func(st domain.State) (domain.State, error) {
		return document.RenameIssue(st, id, b.Title)
	})
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "issueID")
	s.commit(w, r, http.StatusOK, func(st domain.State) (domain.State, error) {
		return document.DeleteIssue(st, id)
	})
}

func (s *Server) selectPage(w http.ResponseWriter, r *http.Request) {
	issueID, pageID := chi.URLParam(r, "issueID"), chi.URLParam(r, "pageID")
	s.commit(w, r, http.StatusOK, func(st domain.State) (domain.State, error) {
		return document.SelectPage(st, issueID, pageID)
	})
}

func (s *Server) addPage(w http.ResponseWriter, r *http.Request) {
	s.commit(w, r, http.StatusCreated, func(st domain.State) (domain.State, error) {
		st, _ = document.AddPage(st)
		return st, nil
	})
}

func (s *Server) deletePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "pageID")
	s.commit(w, r, http.StatusOK, func(st domain.State) (domain.State, error) {
		return document.DeletePage(st, id)
	})
}

func (s *Server) upsertCharacter(w http.ResponseWriter, r *http.Request) {
	var c domain.Character
	if err := decode(r, &c); err != nil {
		writeError(w, err)
		return
	}
	if c.Name == "" {
		writeError(w, fmt.Errorf("%w: character name is required", errBadRequest))
		return
	}
	var saved domain.Character
	err := s.session.Commit(r.Context(), func(st domain.State) (domain.State, error) {
		st, saved = document.UpsertCharacter(st, c)
		return st, nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) deleteCharacter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "characterID")
	s.commit(w, r, http.StatusOK, func(st domain.State) (domain.State, error) {
		return document.DeleteCharacter(st, id), nil
	})
}

func (s *Server) toggleCharacter(w http.ResponseWriter, r *http.Request) {
	sel := s.session.ToggleCharacter(chi.URLParam(r, "characterID"))
	writeJSON(w, http.StatusOK, map[string]any{"selectedCharacters": sel})
}

func (s *Server) setLayout(w http.ResponseWriter, r *http.Request) {
	var b nameBody
	if err := decode(r, &b); err != nil {
		writeError(w, err)
		return
	}
	l, err := s.session.SetLayout(b.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var b struct {
		Prompt string `json:"prompt"`
	}
	if err := decode(r, &b); err != nil {
		writeError(w, err)
		return
	}
	// the request context is not used: a started generation always runs to completion
	pn, err := s.session.Generate(context.WithoutCancel(r.Context()), b.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pn)
}

// reconnect rebuilds the gateway, e.g. after the API key was stored, and leaves offline mode.
func (s *Server) reconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Reconnect(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.View())
}

type panelPatch struct {
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
	Width       *float64 `json:"width"`
	AspectRatio *string  `json:"aspectRatio"`
}

func (s *Server) updatePanel(w http.ResponseWriter, r *http.Request) {
	var b panelPatch
	if err := decode(r, &b); err != nil {
		writeError(w, err)
		return
	}
	var ratio domain.AspectRatio
	if b.AspectRatio != nil {
		var err error
		if ratio, err = domain.ParseAspectRatio(*b.AspectRatio); err != nil {
			writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
	}
	id := chi.URLParam(r, "panelID")
	s.commit(w, r, http.StatusOK, func(st domain.State) (domain.State, error) {
		pn, ok := document.FindPanel(st, id)
		if !ok {
			return st, fmt.Errorf("panel %s: %w", id, document.ErrNotFound)
		}
		if b.X != nil || b.Y != nil {
			x, y := pn.X, pn.Y
			if b.X != nil {
				x = *b.X
			}
			if b.Y != nil {
				y = *b.Y
			}
			st = document.MovePanel(st, id, x, y)
		}
		if b.Width != nil {
			st = document.ResizePanel(st, id, *b.Width)
		}
		if ratio != "" {
			st = document.SetPanelAspect(st, id, ratio)
		}
		return st, nil
	})
}

func (s *Server) bringToFront(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "panelID")
	s.commit(w, r, http.StatusOK, func(st domain.State) (domain.State, error) {
		return document.BringToFront(st, id), nil
	})
}

func (s *Server) deletePanel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "panelID")
	s.commit(w, r, http.StatusOK, func(st domain.State) (domain.State, error) {
		return document.DeletePanel(st, id), nil
	})
}

// pointerBody is one pointer event. Type is drag_start, resize_start, move or up.
type pointerBody struct {
	Type    string  `json:"type"`
	PanelID string  `json:"panelId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	PanelX  float64 `json:"panelX"`
	PanelY  float64 `json:"panelY"`
	Width   float64 `json:"width"`
}

func (b pointerBody) event() (canvas.Event, error) {
	p := canvas.Point{X: b.X, Y: b.Y}
	switch b.Type {
	case "drag_start":
		return canvas.DragStart{PanelID: b.PanelID, Pointer: p, PanelPos: canvas.Point{X: b.PanelX, Y: b.PanelY}}, nil
	case "resize_start":
		return canvas.ResizeStart{PanelID: b.PanelID, Pointer: p, Width: b.Width}, nil
	case "move":
		return canvas.PointerMove{Pointer: p}, nil
	case "up":
		return canvas.PointerUp{}, nil
	}
	return nil, fmt.Errorf("%w: unknown pointer event %q", errBadRequest, b.Type)
}

func (s *Server) pointer(w http.ResponseWriter, r *http.Request) {
	var b pointerBody
	if err := decode(r, &b); err != nil {
		writeError(w, err)
		return
	}
	ev, err := b.event()
	if err != nil {
		writeError(w, err)
		return
	}
	g := s.session.Pointer(r.Context(), ev)
	writeJSON(w, http.StatusOK, map[string]any{
		"active":   g.Active(),
		"captured": s.session.Captured(),
	})
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	res, err := s.session.Export(r.Context(), format)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", res.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	_, _ = w.Write(res.Data)
}

func (s *Server) notices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Notices())
}

func (s *Server) dismissNotice(w http.ResponseWriter, r *http.Request) {
	if !s.session.Dismiss(chi.URLParam(r, "noticeID")) {
		writeError(w, fmt.Errorf("notice: %w", document.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
