/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"gostoryboard/internal/domain"
)

func activePanels(t *testing.T, s domain.State) []domain.Panel {
	t.Helper()
	pg, ok := ActivePage(s)
	if !ok {
		t.Fatalf("no active page")
	}
	return pg.Panels
}

func assertDense(t *testing.T, iss domain.Issue) {
	t.Helper()
	for i, pg := range iss.Pages {
		if pg.Number != i+1 {
			t.Fatalf("page %d has number %d; numbers: %v", i, pg.Number, pageNumbers(iss))
		}
	}
}

func pageNumbers(iss domain.Issue) []int {
	out := make([]int, 0, len(iss.Pages))
	for _, pg := range iss.Pages {
		out = append(out, pg.Number)
	}
	return out
}

func TestPageNumbersStayDenseUnderRandomAddDelete(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := domain.DefaultState()
	for step := 0; step < 500; step++ {
		iss, _ := ActiveIssue(s)
		if rng.Intn(3) == 0 || len(iss.Pages) == 1 {
			s, _ = AddPage(s)
		} else {
			victim := iss.Pages[rng.Intn(len(iss.Pages))].ID
			var err error
			s, err = DeletePage(s, victim)
			if err != nil {
				t.Fatalf("step %d: delete page: %v", step, err)
			}
		}
		iss, _ = ActiveIssue(s)
		if len(iss.Pages) < 1 {
			t.Fatalf("step %d: issue lost its last page", step)
		}
		assertDense(t, iss)
		if _, ok := ActivePage(s); !ok {
			t.Fatalf("step %d: active page does not resolve", step)
		}
	}
}

func TestDeletingLastPageOrIssueIsRefusedAndNoOp(t *testing.T) {
	s := domain.DefaultState()
	iss, _ := ActiveIssue(s)

	got, err := DeletePage(s, iss.Pages[0].ID)
	if !errors.Is(err, ErrRefused) || !errors.Is(err, ErrLastPage) {
		t.Fatalf("expected last-page refusal, got %v", err)
	}
	if !reflect.DeepEqual(got, s) {
		t.Fatalf("state changed on refused page delete")
	}

	got, err = DeleteIssue(s, iss.ID)
	var refusal *RefusalError
	if !errors.As(err, &refusal) || !errors.Is(err, ErrLastIssue) {
		t.Fatalf("expected last-issue refusal, got %v", err)
	}
	if !reflect.DeepEqual(got, s) {
		t.Fatalf("state changed on refused issue delete")
	}

	_, err = DeleteProject(s, s.ActiveProjectID)
	if !errors.Is(err, ErrLastProject) {
		t.Fatalf("expected last-project refusal, got %v", err)
	}
}

func TestDeleteIssueMovesSelection(t *testing.T) {
	s := domain.DefaultState()
	first, _ := ActiveIssue(s)
	s, second := AddIssue(s)
	if cur, _ := ActiveIssue(s); cur.ID != second.ID {
		t.Fatalf("new issue should become active")
	}
	if second.Title != "Issue #2: Untitled" {
		t.Fatalf("unexpected title %q", second.Title)
	}
	s, err := DeleteIssue(s, second.ID)
	if err != nil {
		t.Fatalf("DeleteIssue: %v", err)
	}
	p, _ := ActiveProject(s)
	if p.ActiveIssueID != first.ID || p.ActivePageID != first.Pages[0].ID {
		t.Fatalf("selection not moved to surviving issue: %+v", p)
	}
}

func TestSelectorsFallBackToFirstEntry(t *testing.T) {
	s := domain.DefaultState()
	s, _ = AddPage(s)
	s.ActiveProjectID = "missing"
	s.Projects[0].ActiveIssueID = "missing"
	s.Projects[0].ActivePageID = "missing"

	p, ok := ActiveProject(s)
	if !ok || p.ID != s.Projects[0].ID {
		t.Fatalf("project fallback failed")
	}
	iss, ok := ActiveIssue(s)
	if !ok || iss.ID != p.Issues[0].ID {
		t.Fatalf("issue fallback failed")
	}
	pg, ok := ActivePage(s)
	if !ok || pg.ID != iss.Pages[0].ID {
		t.Fatalf("page fallback failed")
	}
}

func TestUpdatePanelsSharesSiblingSubtrees(t *testing.T) {
	s := domain.DefaultState()
	s, _ = AddGeneratedPanel(s, PanelDraft{Prompt: "first page", AspectRatio: domain.Ratio1x1})
	firstIssue, _ := ActiveIssue(s)
	s, _ = AddIssue(s)
	s, _ = AddGeneratedPanel(s, PanelDraft{Prompt: "second issue", AspectRatio: domain.Ratio1x1})

	before := s
	after := UpdatePanelsOfActivePage(s, func(ps []domain.Panel) []domain.Panel {
		return mapPanel(ps, ps[0].ID, func(p domain.Panel) domain.Panel { p.X = 999; return p })
	})

	if &before.Projects[0].Issues[0].Pages[0] != &after.Projects[0].Issues[0].Pages[0] {
		t.Fatalf("sibling issue pages were copied")
	}
	if after.Projects[0].Issues[0].ID != firstIssue.ID {
		t.Fatalf("unexpected issue order")
	}
	if &before.Projects[0].Issues[1].Pages[0] == &after.Projects[0].Issues[1].Pages[0] {
		t.Fatalf("mutated path was not rebuilt")
	}
	if before.Projects[0].Issues[1].Pages[0].Panels[0].X == 999 {
		t.Fatalf("input state was mutated")
	}
	if after.Projects[0].Issues[1].Pages[0].Panels[0].X != 999 {
		t.Fatalf("update not applied")
	}
}

func TestBringToFrontIsStrictlyMonotonicAcrossPages(t *testing.T) {
	s := domain.DefaultState()
	s, a := AddGeneratedPanel(s, PanelDraft{Prompt: "a"})
	s, b := AddGeneratedPanel(s, PanelDraft{Prompt: "b"})
	s, _ = AddPage(s)
	s, c := AddGeneratedPanel(s, PanelDraft{Prompt: "c"})

	last := c.ZIndex
	s = BringToFront(s, c.ID)
	if got, _ := FindPanel(s, c.ID); got.ZIndex <= last {
		t.Fatalf("bring to front did not raise z: %d <= %d", got.ZIndex, last)
	}
	iss, _ := ActiveIssue(s)
	s, _ = SelectPage(s, iss.ID, iss.Pages[0].ID)
	s = BringToFront(s, a.ID)
	s = BringToFront(s, b.ID)
	pa, _ := FindPanel(s, a.ID)
	pb, _ := FindPanel(s, b.ID)
	if pb.ZIndex <= pa.ZIndex {
		t.Fatalf("second bring-to-front must win: a=%d b=%d", pa.ZIndex, pb.ZIndex)
	}
	if pa.ZIndex <= last+1 {
		t.Fatalf("z order must be global across pages: a=%d, page-two max=%d", pa.ZIndex, last+1)
	}

	unchanged := BringToFront(s, "nope")
	if unchanged.ZCounter != s.ZCounter {
		t.Fatalf("unknown id must not consume the counter")
	}
}

func TestGenerationScenarioPrimaryArchive(t *testing.T) {
	s := domain.DefaultState()
	if p, _ := ActiveProject(s); p.Name != "Primary Archive" {
		t.Fatalf("unexpected default project name %q", p.Name)
	}
	s, _ = AddIssue(s)
	s, _ = AddPage(s)
	s, _ = UpsertCharacter(s, domain.Character{ID: "c1", Name: "Vera"})
	s, _ = UpsertCharacter(s, domain.Character{ID: "c2", Name: "Oleg"})
	s, _ = AddGeneratedPanel(s, PanelDraft{Prompt: "earlier", AspectRatio: domain.Ratio4x3})

	s, pn := AddGeneratedPanel(s, PanelDraft{
		Prompt:       "wide establishing shot",
		ImageURL:     "data:image/png;base64,AAAA",
		CharacterIDs: []string{"c1", "c2"},
		AspectRatio:  domain.Ratio16x9,
	})
	if pn.Width != 500 || pn.AspectRatio != domain.Ratio16x9 || len(pn.CharactersInvolved) != 2 {
		t.Fatalf("unexpected panel %+v", pn)
	}
	panels := activePanels(t, s)
	if panels[0].ID != pn.ID {
		t.Fatalf("generated panel must be prepended")
	}
	if pn.X != 140 || pn.Y != 140 {
		t.Fatalf("expected cascade offset 140, got (%v,%v)", pn.X, pn.Y)
	}
	if panels[1].Width != 400 {
		t.Fatalf("non-wide panels default to 400, got %v", panels[1].Width)
	}
}

func TestUpsertCharacterReplacesInPlace(t *testing.T) {
	s := domain.DefaultState()
	s, _ = UpsertCharacter(s, domain.Character{ID: "a", Name: "A"})
	s, _ = UpsertCharacter(s, domain.Character{ID: "b", Name: "B"})
	s, _ = UpsertCharacter(s, domain.Character{ID: "a", Name: "A2"})
	p, _ := ActiveProject(s)
	if len(p.Characters) != 2 || p.Characters[0].Name != "A2" || p.Characters[1].ID != "b" {
		t.Fatalf("unexpected codex %+v", p.Characters)
	}
	s, c := UpsertCharacter(s, domain.Character{Name: "fresh"})
	if c.ID == "" {
		t.Fatalf("expected id to be minted")
	}
	if p, _ := ActiveProject(s); p.Characters[2].ID != c.ID {
		t.Fatalf("new character should be appended")
	}
}

func TestDeleteCharacterLeavesDanglingPanelReference(t *testing.T) {
	s := domain.DefaultState()
	s, _ = UpsertCharacter(s, domain.Character{ID: "ghost", Name: "Ghost"})
	s, pn := AddGeneratedPanel(s, PanelDraft{Prompt: "p", CharacterIDs: []string{"ghost"}})
	s = DeleteCharacter(s, "ghost")

	got, _ := FindPanel(s, pn.ID)
	if len(got.CharactersInvolved) != 1 || got.CharactersInvolved[0] != "ghost" {
		t.Fatalf("panel references must survive character deletion: %+v", got.CharactersInvolved)
	}
	p, _ := ActiveProject(s)
	if _, ok := got.CharacterRefs()[0].Resolve(p.Characters); ok {
		t.Fatalf("dangling reference must resolve to no match")
	}
}

func TestPanelEditsOnUnknownIDAreNoOps(t *testing.T) {
	s := domain.DefaultState()
	s, pn := AddGeneratedPanel(s, PanelDraft{Prompt: "p"})
	for name, got := range map[string]domain.State{
		"move":   MovePanel(s, "gone", 1, 1),
		"resize": ResizePanel(s, "gone", 300),
		"aspect": SetPanelAspect(s, "gone", domain.Ratio1x1),
		"delete": DeletePanel(s, "gone"),
	} {
		if !reflect.DeepEqual(got, s) {
			t.Fatalf("%s on unknown id changed state", name)
		}
	}
	s = SetPanelAspect(s, pn.ID, domain.Ratio9x16)
	s = ResizePanel(s, pn.ID, 5000)
	got, _ := FindPanel(s, pn.ID)
	if got.AspectRatio != domain.Ratio9x16 || got.Width != MaxPanelWidth {
		t.Fatalf("unexpected panel after edits: %+v", got)
	}
	s = DeletePanel(s, pn.ID)
	if len(activePanels(t, s)) != 0 {
		t.Fatalf("panel not deleted")
	}
}

func TestProjectsAddSelectDelete(t *testing.T) {
	s := domain.DefaultState()
	first := s.ActiveProjectID
	s, p := AddProject(s, "  Side Story ")
	if s.ActiveProjectID != p.ID || p.Name != "Side Story" {
		t.Fatalf("new project not active or name not trimmed: %+v", p)
	}
	if s, err := SelectProject(s, "nope"); !errors.Is(err, ErrNotFound) || s.ActiveProjectID != p.ID {
		t.Fatalf("selecting unknown project should fail without change")
	}
	s, err := DeleteProject(s, p.ID)
	if err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if s.ActiveProjectID != first {
		t.Fatalf("active project not moved after delete")
	}
}

func TestNormalizeRepairsPartialState(t *testing.T) {
	broken := domain.State{
		ActiveProjectID: "gone",
		Projects: []domain.Project{{
			ID:   "p",
			Name: "Partial",
			Issues: []domain.Issue{
				{ID: "i1", Pages: []domain.Page{{ID: "a", Number: 7, Panels: []domain.Panel{{ID: "x", ZIndex: 450, AspectRatio: "7:5"}}}, {ID: "b", Number: 9}}},
				{ID: "i2"},
			},
		}},
	}
	s := Normalize(broken)
	p := s.Projects[0]
	if s.ActiveProjectID != "p" || p.ActiveIssueID != "i1" || p.ActivePageID != "a" {
		t.Fatalf("active ids not repaired: %s %s %s", s.ActiveProjectID, p.ActiveIssueID, p.ActivePageID)
	}
	if p.Characters == nil {
		t.Fatalf("nil codex not repaired")
	}
	assertDense(t, p.Issues[0])
	if len(p.Issues[1].Pages) != 1 {
		t.Fatalf("empty issue did not receive a page")
	}
	if s.ZCounter != 450 {
		t.Fatalf("z counter should be raised to the stored maximum, got %d", s.ZCounter)
	}
	pn := p.Issues[0].Pages[0].Panels[0]
	if pn.AspectRatio != domain.Ratio16x9 || pn.Width != 500 || pn.CharactersInvolved == nil {
		t.Fatalf("panel not repaired: %+v", pn)
	}

	empty := Normalize(domain.State{})
	if len(empty.Projects) != 1 || empty.ZCounter != domain.MinZIndex {
		t.Fatalf("empty state should normalize to one project: %+v", empty)
	}
}
