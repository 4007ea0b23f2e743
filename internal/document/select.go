/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import "gostoryboard/internal/domain"

// ActiveProject resolves the active project, falling back to the first one when the stored id
// no longer resolves. ok is false only for a state without projects.
func ActiveProject(s domain.State) (domain.Project, bool) {
	i := activeProjectIndex(s)
	if i < 0 {
		return domain.Project{}, false
	}
	return s.Projects[i], true
}

// ActiveIssue resolves the active issue of the active project with first-entry fallback.
func ActiveIssue(s domain.State) (domain.Issue, bool) {
	p, ok := ActiveProject(s)
	if !ok {
		return domain.Issue{}, false
	}
	i := activeIssueIndex(p)
	if i < 0 {
		return domain.Issue{}, false
	}
	return p.Issues[i], true
}

// ActivePage resolves the active page within the active issue with first-entry fallback.
func ActivePage(s domain.State) (domain.Page, bool) {
	p, ok := ActiveProject(s)
	if !ok {
		return domain.Page{}, false
	}
	ii := activeIssueIndex(p)
	if ii < 0 {
		return domain.Page{}, false
	}
	pi := pageIndex(p.Issues[ii], p.ActivePageID)
	if pi < 0 {
		return domain.Page{}, false
	}
	return p.Issues[ii].Pages[pi], true
}

// FindPanel looks a panel up on the active page.
func FindPanel(s domain.State, panelID string) (domain.Panel, bool) {
	pg, ok := ActivePage(s)
	if !ok {
		return domain.Panel{}, false
	}
	for _, pn := range pg.Panels {
		if pn.ID == panelID {
			return pn, true
		}
	}
	return domain.Panel{}, false
}

func activeProjectIndex(s domain.State) int {
	if len(s.Projects) == 0 {
		return -1
	}
	for i := range s.Projects {
		if s.Projects[i].ID == s.ActiveProjectID {
			return i
		}
	}
	return 0
}

func activeIssueIndex(p domain.Project) int {
	if len(p.Issues) == 0 {
		return -1
	}
	for i := range p.Issues {
		if p.Issues[i].ID == p.ActiveIssueID {
			return i
		}
	}
	return 0
}

// pageIndex returns the page with id, the first page when id does not resolve, or -1 for no pages.
func pageIndex(iss domain.Issue, id string) int {
	if len(iss.Pages) == 0 {
		return -1
	}
	for i := range iss.Pages {
		if iss.Pages[i].ID == id {
			return i
		}
	}
	return 0
}
