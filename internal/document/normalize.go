/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import (
	"fmt"

	"gostoryboard/internal/domain"
)

// Normalize repairs a restored state so every invariant holds again:
//   - nil collections become empty ones
//   - every project has an issue, every issue a page, and the state a project
//   - active ids resolve (dangling ones fall back to the first entry)
//   - page numbers are dense and 1-based
//   - the z counter is at least MinZIndex and at least every stored z index
//   - unknown aspect ratio tags become 16:9, widths are clamped
//
// It always returns a deep copy so the result shares nothing with the input.
func Normalize(s domain.State) domain.State {
	out := domain.State{
		SchemaVersion:   domain.SchemaVersion,
		ActiveProjectID: s.ActiveProjectID,
		ZCounter:        s.ZCounter,
	}
	if out.ZCounter < domain.MinZIndex {
		out.ZCounter = domain.MinZIndex
	}
	out.Projects = make([]domain.Project, 0, len(s.Projects))
	for _, p := range s.Projects {
		np, maxZ := normalizeProject(p)
		if maxZ > out.ZCounter {
			out.ZCounter = maxZ
		}
		out.Projects = append(out.Projects, np)
	}
	if len(out.Projects) == 0 {
		out.Projects = append(out.Projects, domain.NewProject(domain.DefaultProjectName))
	}
	out.ActiveProjectID = out.Projects[activeProjectIndex(out)].ID
	return out
}

func normalizeProject(p domain.Project) (domain.Project, int) {
	maxZ := 0
	np := domain.Project{
		ID:            p.ID,
		Name:          p.Name,
		ActiveIssueID: p.ActiveIssueID,
		ActivePageID:  p.ActivePageID,
	}
	if np.ID == "" {
		np.ID = domain.NewID("project")
	}
	np.Characters = append(make([]domain.Character, 0, len(p.Characters)), p.Characters...)
	np.Issues = make([]domain.Issue, 0, len(p.Issues))
	for i, iss := range p.Issues {
		ni := domain.Issue{ID: iss.ID, Title: iss.Title, Pages: make([]domain.Page, 0, len(iss.Pages))}
		if ni.ID == "" {
			ni.ID = domain.NewID("issue")
		}
		if ni.Title == "" {
			ni.Title = fmt.Sprintf("Issue #%d: Untitled", i+1)
		}
		for _, pg := range iss.Pages {
			npg := domain.Page{ID: pg.ID, Panels: make([]domain.Panel, 0, len(pg.Panels))}
			if npg.ID == "" {
				npg.ID = domain.NewID("page")
			}
			for _, pn := range pg.Panels {
				pn.CharactersInvolved = append(make([]string, 0, len(pn.CharactersInvolved)), pn.CharactersInvolved...)
				if !pn.AspectRatio.Valid() {
					pn.AspectRatio = domain.Ratio16x9
				}
				if pn.Width == 0 {
					pn.Width = domain.DefaultPanelWidth(pn.AspectRatio)
				}
				pn.Width = ClampWidth(pn.Width)
				if pn.ZIndex > maxZ {
					maxZ = pn.ZIndex
				}
				npg.Panels = append(npg.Panels, pn)
			}
			ni.Pages = append(ni.Pages, npg)
		}
		if len(ni.Pages) == 0 {
			ni.Pages = append(ni.Pages, domain.Page{ID: domain.NewID("page"), Panels: []domain.Panel{}})
		}
		ni.Pages = renumber(ni.Pages)
		np.Issues = append(np.Issues, ni)
	}
	if len(np.Issues) == 0 {
		fresh := domain.NewProject(np.Name)
		np.Issues = fresh.Issues
	}
	ii := activeIssueIndex(np)
	np.ActiveIssueID = np.Issues[ii].ID
	np.ActivePageID = np.Issues[ii].Pages[pageIndex(np.Issues[ii], np.ActivePageID)].ID
	return np, maxZ
}
