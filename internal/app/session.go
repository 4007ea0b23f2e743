/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package app hosts the editor session: the document, the canvas gesture controller, the
// ephemeral prompt-bar state and the notices shown to the user. All mutations go through one
// mutex, which plays the role of the single UI thread. Only the generation call runs outside it.
package app

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"gostoryboard/internal/canvas"
	"gostoryboard/internal/document"
	"gostoryboard/internal/domain"
	"gostoryboard/internal/export"
	"gostoryboard/internal/generation"
	applog "gostoryboard/internal/log"
	"gostoryboard/internal/storage"
	"gostoryboard/internal/telemetry"
)

var (
	// ErrOffline rejects generation while no usable gateway is connected.
	ErrOffline = errors.New("generation is offline")
	// ErrEmptyPrompt rejects a blank prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrBusy rejects a second generation while one is pending.
	ErrBusy = errors.New("a generation is already in progress")
	// ErrUnknownLayout rejects a layout name that is not offered.
	ErrUnknownLayout = errors.New("unknown layout")
	// ErrNoConnector means Reconnect has no way to build a gateway.
	ErrNoConnector = errors.New("no gateway connector configured")
)

// Connector builds a fresh gateway, e.g. after the API key changed.
type Connector func(ctx context.Context) (generation.Gateway, error)

// Options wires a Session to its collaborators. Only Store is required.
type Options struct {
	Store *storage.Store
	// Gateway may be nil, in which case the session starts offline.
	Gateway generation.Gateway
	// Connect rebuilds the gateway for Reconnect.
	Connect      Connector
	Exporter     *export.Exporter
	ExportDir    string
	ExportFormat export.Format
	Telemetry    *telemetry.Client
	Now          func() time.Time
}

// Session is the running editor. It is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	state    domain.State
	ctrl     *canvas.Controller
	selected []string
	layout   domain.Layout

	notices   []Notice
	noticeSeq int

	offline    bool
	generating bool

	store     *storage.Store
	gateway   generation.Gateway
	connect   Connector
	exporter  *export.Exporter
	exportDir string
	format    export.Format
	tele      *telemetry.Client
	now       func() time.Time
	log       *slog.Logger
}

// Open loads the stored state and starts a session on it. A load that fell back to the
// default state is reported through the returned LoadReport, never as an error.
func Open(ctx context.Context, opts Options) (*Session, storage.LoadReport) {
	st, rep := opts.Store.Load(ctx)
	s := New(st, opts)
	s.log.Info("session opened", slog.String("source", rep.Source), slog.String("reason", rep.Reason),
		slog.Int("projects", len(st.Projects)))
	return s, rep
}

// New starts a session on st.
func New(st domain.State, opts Options) *Session {
	s := &Session{
		state:     document.Normalize(st),
		ctrl:      canvas.NewController(),
		layout:    domain.Layouts[0],
		store:     opts.Store,
		gateway:   opts.Gateway,
		connect:   opts.Connect,
		exporter:  opts.Exporter,
		exportDir: opts.ExportDir,
		format:    opts.ExportFormat,
		tele:      opts.Telemetry,
		now:       opts.Now,
		log:       applog.WithComponent("app"),
	}
	if s.exporter == nil {
		s.exporter = export.New()
	}
	if s.format == "" {
		s.format = export.FormatPNG
	}
	if s.tele == nil {
		s.tele = telemetry.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.offline = s.gateway == nil
	return s
}

// Snapshot returns the current document. Document values are never mutated in place, so
// the result can be read freely.
func (s *Session) Snapshot() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Commit applies op to the document and persists the result. A failing op leaves the
// document untouched; refusals additionally raise a refusal notice. A failed save keeps
// the new in-memory state and raises a persistence notice, it is not returned.
func (s *Session) Commit(ctx context.Context, op func(domain.State) (domain.State, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := op(s.state)
	if err != nil {
		if errors.Is(err, document.ErrRefused) {
			s.addNotice(NoticeRefusal, refusalMessage(err), "")
		}
		return err
	}
	s.state = next
	s.persistLocked(ctx)
	return nil
}

// persistLocked saves the current state; callers hold s.mu.
func (s *Session) persistLocked(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.state); err != nil {
		s.addNotice(NoticePersistence, "Changes could not be saved. Storage may be full or unavailable; editing continues in memory.", "")
	}
}

func refusalMessage(err error) string {
	switch {
	case errors.Is(err, document.ErrLastProject):
		return "The last project cannot be deleted."
	case errors.Is(err, document.ErrLastIssue):
		return "The last issue of a project cannot be deleted."
	case errors.Is(err, document.ErrLastPage):
		return "The last page of an issue cannot be deleted."
	default:
		return err.Error()
	}
}

// Pointer feeds one pointer event to the canvas controller. The document is saved when a
// gesture starts (bring to front) and when it ends; intermediate moves stay in memory, so a
// crash mid-drag loses the moves since the press and the store still holds the pre-drag
// position.
func (s *Session) Pointer(ctx context.Context, ev canvas.Event) canvas.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasActive := s.ctrl.State().Active()
	s.state = s.ctrl.Handle(s.state, ev)
	switch ev.(type) {
	case canvas.DragStart, canvas.ResizeStart:
		if !wasActive {
			s.persistLocked(ctx)
		}
	case canvas.PointerUp:
		if wasActive {
			s.persistLocked(ctx)
		}
	}
	return s.ctrl.State()
}

// Captured reports whether a gesture currently owns the pointer.
func (s *Session) Captured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Captured()
}

// ToggleCharacter adds or removes a character from the selection for the next generation.
// Unknown ids are ignored. The selection is not persisted.
func (s *Session) ToggleCharacter(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.selected, id); i >= 0 {
		s.selected = slices.Delete(slices.Clone(s.selected), i, i+1)
		return slices.Clone(s.selected)
	}
	p, _ := document.ActiveProject(s.state)
	if _, ok := (domain.CharacterRef{ID: id}).Resolve(p.Characters); ok {
		s.selected = append(slices.Clone(s.selected), id)
	}
	return slices.Clone(s.selected)
}

// SelectedCharacters returns the current selection.
func (s *Session) SelectedCharacters() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.selected)
}

// SetLayout picks the framing preset (WIDE, STD or CLOSE) for the next generation.
func (s *Session) SetLayout(name string) (domain.Layout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range domain.Layouts {
		if l.Name == name {
			s.layout = l
			return l, nil
		}
	}
	return s.layout, ErrUnknownLayout
}

// Layout returns the active framing preset.
func (s *Session) Layout() domain.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout
}

// Offline reports whether generation is gated.
func (s *Session) Offline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline
}

// Generating reports whether a generation request is outstanding.
func (s *Session) Generating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}

// Connect installs a gateway (for example after the user supplied an API key) and leaves
// offline mode.
func (s *Session) Connect(g generation.Gateway) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gateway = g
	s.offline = g == nil
}

// Reconnect builds a new gateway through Options.Connect and, on success, leaves offline
// mode. A failure keeps the session offline and raises a generation notice.
func (s *Session) Reconnect(ctx context.Context) error {
	if s.connect == nil {
		return ErrNoConnector
	}
	gw, err := s.connect(ctx)
	if err == nil && gw == nil {
		err = generation.ErrUnavailable
	}
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.addNotice(NoticeGeneration, generation.Message(err), "")
		s.log.Warn("reconnect failed", slog.Any("err", err))
		return err
	}
	s.Connect(gw)
	s.log.Info("generation back online")
	return nil
}

// Reset purges the stored state and restarts from a fresh default project. The in-memory
// reset happens even when the purge fails, which is reported as a persistence notice.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := domain.DefaultState()
	var err error
	if s.store != nil {
		fresh, err = s.store.Reset(ctx)
		if err != nil {
			s.addNotice(NoticePersistence, "Stored data could not be purged.", "")
		}
	}
	s.state = fresh
	s.ctrl.Reset()
	s.selected = nil
	s.layout = domain.Layouts[0]
	s.tele.Event(telemetry.EventStateReset, nil)
	s.log.Info("session reset")
	return err
}

// View is a read-only summary of everything a front end renders.
type View struct {
	State      domain.State    `json:"state"`
	Project    domain.Project  `json:"project"`
	Issue      domain.Issue    `json:"issue"`
	Page       domain.Page     `json:"page"`
	Selected   []string        `json:"selectedCharacters"`
	Layout     domain.Layout   `json:"layout"`
	Layouts    []domain.Layout `json:"layouts"`
	Notices    []Notice        `json:"notices"`
	Offline    bool            `json:"offline"`
	Generating bool            `json:"generating"`
	Captured   bool            `json:"captured"`
}

// View returns the current summary.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, _ := document.ActiveProject(s.state)
	iss, _ := document.ActiveIssue(s.state)
	pg, _ := document.ActivePage(s.state)
	return View{
		State:      s.state,
		Project:    p,
		Issue:      iss,
		Page:       pg,
		Selected:   slices.Clone(s.selected),
		Layout:     s.layout,
		Layouts:    domain.Layouts,
		Notices:    append([]Notice(nil), s.notices...),
		Offline:    s.offline,
		Generating: s.generating,
		Captured:   s.ctrl.Captured(),
	}
}
