/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gostoryboard/internal/document"
	"gostoryboard/internal/domain"
	applog "gostoryboard/internal/log"
)

// DefaultKey is the single key the whole state lives under.
const DefaultKey = "owb_project_v6"

// ErrPersistence marks a failed save. The in-memory state stays authoritative.
var ErrPersistence = errors.New("persistence failed")

// PersistenceError wraps the slot error of a failed save or reset.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Load sources.
const (
	SourceStored  = "stored"
	SourceDefault = "default"
)

// LoadReport says where a loaded state came from and, for defaults, why.
type LoadReport struct {
	Source      string
	Reason      string
	FromVersion int
	Migrated    bool
}

// Store maps the editor state onto one slot key.
type Store struct {
	slot    Slot
	key     string
	timeout time.Duration
	log     *slog.Logger
}

type Option func(*Store)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithTimeout bounds each slot call.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

func NewStore(slot Slot, opts ...Option) *Store {
	s := &Store{
		slot:    slot,
		key:     DefaultKey,
		timeout: 5 * time.Second,
		log:     applog.WithComponent("storage"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Key returns the slot key in use.
func (s *Store) Key() string { return s.key }

// Slot exposes the underlying slot.
func (s *Store) Slot() Slot { return s.slot }

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Load restores the state. It never fails: a missing, unreadable, unparseable, invalid or
// empty document yields domain.DefaultState and a report naming the reason.
func (s *Store) Load(ctx context.Context) (domain.State, LoadReport) {
	l := applog.WithOperation(s.log, "load")
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.slot.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.DefaultState(), LoadReport{Source: SourceDefault, Reason: "empty store"}
		}
		l.ErrorContext(ctx, "read failed", slog.Any("err", err))
		return domain.DefaultState(), LoadReport{Source: SourceDefault, Reason: "read: " + err.Error()}
	}
	st, rep, err := Decode(raw)
	if err != nil {
		l.ErrorContext(ctx, "stored state rejected", slog.Any("err", err))
		return domain.DefaultState(), LoadReport{Source: SourceDefault, Reason: err.Error(), FromVersion: rep.FromVersion}
	}
	if rep.Migrated {
		l.InfoContext(ctx, "migrated stored state", slog.Int("from", rep.FromVersion), slog.Int("to", domain.SchemaVersion))
	}
	return st, rep
}

// Decode turns a stored document of any known layout into a normalized current state.
func Decode(raw []byte) (domain.State, LoadReport, error) {
	rep := LoadReport{Source: SourceStored}
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&doc); err != nil {
		return domain.State{}, rep, fmt.Errorf("parse: %w", err)
	}
	if doc == nil {
		return domain.State{}, rep, errors.New("parse: document is null")
	}
	doc, from, err := migrate(doc)
	rep.FromVersion = from
	rep.Migrated = from < domain.SchemaVersion
	if err != nil {
		return domain.State{}, rep, err
	}
	if err := validateDocument(doc); err != nil {
		return domain.State{}, rep, err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return domain.State{}, rep, fmt.Errorf("re-encode: %w", err)
	}
	var st domain.State
	if err := json.Unmarshal(b, &st); err != nil {
		return domain.State{}, rep, fmt.Errorf("decode: %w", err)
	}
	if len(st.Projects) == 0 {
		return domain.State{}, rep, errors.New("no projects stored")
	}
	return document.Normalize(st), rep, nil
}

// Encode renders the state in the current persisted layout.
func Encode(st domain.State) ([]byte, error) {
	st.SchemaVersion = domain.SchemaVersion
	return json.Marshal(st)
}

// Save writes st. Failures come back as *PersistenceError and are logged as warnings.
func (s *Store) Save(ctx context.Context, st domain.State) error {
	l := applog.WithOperation(s.log, "save")
	b, err := Encode(st)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: s.key, Err: err}
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.slot.Put(ctx, s.key, b); err != nil {
		l.WarnContext(ctx, "save failed; in-memory state kept", slog.Int("bytes", len(b)), slog.Any("err", err))
		return &PersistenceError{Op: "save", Key: s.key, Err: err}
	}
	l.DebugContext(ctx, "saved", slog.Int("bytes", len(b)))
	return nil
}

// Reset purges the stored state and returns a fresh default.
func (s *Store) Reset(ctx context.Context) (domain.State, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.slot.Delete(ctx, s.key); err != nil {
		return domain.DefaultState(), &PersistenceError{Op: "reset", Key: s.key, Err: err}
	}
	applog.WithOperation(s.log, "reset").InfoContext(ctx, "stored state purged")
	return domain.DefaultState(), nil
}

func (s *Store) Close() error { return s.slot.Close() }
