/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestStateJSONUsesPersistedFieldNames(t *testing.T) {
	s := DefaultState()
	s.Projects[0].Issues[0].Pages[0].Panels = []Panel{{ID: "p1", AspectRatio: Ratio16x9, Width: 500, CharactersInvolved: []string{"c1"}}}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"activeProjectId"`, `"activeIssueId"`, `"activePageId"`, `"charactersInvolved"`, `"aspectRatio":"16:9"`, `"zIndex"`, `"imageUrl"`, `"zCounter"`} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("expected %s in %s", key, b)
		}
	}
}

func TestAspectRatioHeight(t *testing.T) {
	cases := []struct {
		r    AspectRatio
		w    float64
		want float64
	}{
		{Ratio1x1, 400, 400},
		{Ratio16x9, 1600, 900},
		{Ratio9x16, 900, 1600},
		{Ratio4x3, 400, 300},
		{Ratio3x4, 300, 400},
		{AspectRatio("bogus"), 160, 90},
	}
	for _, c := range cases {
		if got := c.r.HeightFor(c.w); got != c.want {
			t.Fatalf("%s HeightFor(%v) = %v, want %v", c.r, c.w, got, c.want)
		}
	}
	if _, err := ParseAspectRatio("2:1"); err == nil {
		t.Fatalf("expected 2:1 to be rejected")
	}
	if len(AspectRatios) != 5 {
		t.Fatalf("expected exactly five ratios, got %d", len(AspectRatios))
	}
}

func TestDanglingCharacterRefResolvesToNoMatch(t *testing.T) {
	codex := []Character{{ID: "a", Name: "Ana"}}
	p := Panel{CharactersInvolved: []string{"a", "gone"}}
	refs := p.CharacterRefs()
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if c, ok := refs[0].Resolve(codex); !ok || c.Name != "Ana" {
		t.Fatalf("expected first ref to resolve to Ana")
	}
	if _, ok := refs[1].Resolve(codex); ok {
		t.Fatalf("expected dangling ref to yield no match")
	}
	if got := ResolveCharacters(codex, p.CharactersInvolved); len(got) != 1 {
		t.Fatalf("expected dangling ids to be skipped, got %d", len(got))
	}
}

func TestDefaultStateShape(t *testing.T) {
	s := DefaultState()
	if len(s.Projects) != 1 || len(s.Projects[0].Issues) != 1 || len(s.Projects[0].Issues[0].Pages) != 1 {
		t.Fatalf("unexpected default shape: %+v", s)
	}
	p := s.Projects[0]
	if s.ActiveProjectID != p.ID || p.ActiveIssueID != p.Issues[0].ID || p.ActivePageID != p.Issues[0].Pages[0].ID {
		t.Fatalf("active ids do not point at the default entities")
	}
	if s.ZCounter != MinZIndex {
		t.Fatalf("ZCounter = %d, want %d", s.ZCounter, MinZIndex)
	}
	if NewID("x") == NewID("x") {
		t.Fatalf("ids must be unique")
	}
}
