/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the storyboard data model: projects own issues and a character codex,
// issues own pages, pages own freely positioned panels. Everything serializes to the single
// JSON blob mirrored by the storage package, so JSON tags follow the persisted camelCase layout.

import (
	"strings"

	"github.com/google/uuid"
)

// SchemaVersion is the current persisted layout version.
// 0: legacy single-project blob, 1: project list, 2: persisted z counter.
const SchemaVersion = 2

// MinZIndex is the floor for the session z counter; freshly created states start here.
const MinZIndex = 100

// State is the whole application state: every project plus the active project pointer.
type State struct {
	SchemaVersion   int       `json:"schemaVersion"`
	Projects        []Project `json:"projects"`
	ActiveProjectID string    `json:"activeProjectId"`
	// ZCounter is the monotonic "most recently focused" counter shared by all panels.
	ZCounter int `json:"zCounter"`
}

// Project is the top-level container of issues and the character codex.
type Project struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Issues        []Issue     `json:"issues"`
	Characters    []Character `json:"characters"`
	ActiveIssueID string      `json:"activeIssueId"`
	ActivePageID  string      `json:"activePageId"`
}

// Issue is an ordered collection of pages grouped as a narrative unit.
type Issue struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Pages []Page `json:"pages"`
}

// Page holds the panels of one storyboard page.
// Number is a positional display label (dense, 1-based), not an identifier.
type Page struct {
	ID     string  `json:"id"`
	Number int     `json:"number"`
	Panels []Panel `json:"panels"`
}

// Panel is one positioned, sized, generated image frame.
type Panel struct {
	ID                 string      `json:"id"`
	Prompt             string      `json:"prompt"`
	ImageURL           string      `json:"imageUrl"`
	Timestamp          int64       `json:"timestamp"` // unix millis
	CharactersInvolved []string    `json:"charactersInvolved"`
	X                  float64     `json:"x"`
	Y                  float64     `json:"y"`
	Width              float64     `json:"width"`
	AspectRatio        AspectRatio `json:"aspectRatio"`
	ZIndex             int         `json:"zIndex"`
}

// Height is derived from width and aspect ratio; it is never stored.
func (p Panel) Height() float64 { return p.AspectRatio.HeightFor(p.Width) }

// CharacterRefs returns weak references for every involved character id.
func (p Panel) CharacterRefs() []CharacterRef {
	refs := make([]CharacterRef, 0, len(p.CharactersInvolved))
	for _, id := range p.CharactersInvolved {
		refs = append(refs, CharacterRef{ID: id})
	}
	return refs
}

// Character is a reusable codex entry used as consistency context during generation.
type Character struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Traits         string `json:"traits"`
	Archetype      string `json:"archetype"`
	Motivation     string `json:"motivation"`
	Backstory      string `json:"backstory"`
	VisualKey      string `json:"visualKey,omitempty"`
	ReferenceImage string `json:"referenceImage,omitempty"` // data URL
}

// CharacterRef is a weak reference to a codex entry. The target may have been deleted.
type CharacterRef struct {
	ID string
}

// Resolve looks the reference up in codex. A dangling reference yields false.
func (r CharacterRef) Resolve(codex []Character) (Character, bool) {
	for _, c := range codex {
		if c.ID == r.ID {
			return c, true
		}
	}
	return Character{}, false
}

// ResolveCharacters returns the codex entries referenced by ids, skipping dangling ones.
func ResolveCharacters(codex []Character, ids []string) []Character {
	out := make([]Character, 0, len(ids))
	for _, id := range ids {
		if c, ok := (CharacterRef{ID: id}).Resolve(codex); ok {
			out = append(out, c)
		}
	}
	return out
}

// NewID mints an opaque unique identifier with a readable prefix, e.g. "page-<uuid>".
func NewID(prefix string) string {
	id := uuid.NewString()
	if strings.TrimSpace(prefix) == "" {
		return id
	}
	return prefix + "-" + id
}
