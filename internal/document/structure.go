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
	"strings"

	"gostoryboard/internal/domain"
)

// mapActiveProject copies the project slice and replaces the active project with fn's result.
func mapActiveProject(s domain.State, fn func(domain.Project) domain.Project) domain.State {
	i := activeProjectIndex(s)
	if i < 0 {
		return s
	}
	projects := append([]domain.Project(nil), s.Projects...)
	projects[i] = fn(projects[i])
	s.Projects = projects
	return s
}

// mapActiveIssue rebuilds the spine down to the active issue.
func mapActiveIssue(s domain.State, fn func(domain.Project, domain.Issue) domain.Issue) domain.State {
	return mapActiveProject(s, func(p domain.Project) domain.Project {
		ii := activeIssueIndex(p)
		if ii < 0 {
			return p
		}
		issues := append([]domain.Issue(nil), p.Issues...)
		issues[ii] = fn(p, issues[ii])
		p.Issues = issues
		return p
	})
}

// AddProject appends a fresh project and makes it active.
func AddProject(s domain.State, name string) (domain.State, domain.Project) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Project %d", len(s.Projects)+1)
	}
	p := domain.NewProject(name)
	projects := make([]domain.Project, 0, len(s.Projects)+1)
	projects = append(projects, s.Projects...)
	s.Projects = append(projects, p)
	s.ActiveProjectID = p.ID
	return s, p
}

// SelectProject switches the active project.
func SelectProject(s domain.State, projectID string) (domain.State, error) {
	for _, p := range s.Projects {
		if p.ID == projectID {
			s.ActiveProjectID = projectID
			return s, nil
		}
	}
	return s, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
}

// RenameProject changes a project's display name.
func RenameProject(s domain.State, projectID, name string) (domain.State, error) {
	for i := range s.Projects {
		if s.Projects[i].ID != projectID {
			continue
		}
		projects := append([]domain.Project(nil), s.Projects...)
		projects[i].Name = strings.TrimSpace(name)
		s.Projects = projects
		return s, nil
	}
	return s, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
}

// DeleteProject removes a project. Deleting the only project is refused.
func DeleteProject(s domain.State, projectID string) (domain.State, error) {
	idx := -1
	for i := range s.Projects {
		if s.Projects[i].ID == projectID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if len(s.Projects) <= 1 {
		return s, refuse("delete project", ErrLastProject)
	}
	projects := make([]domain.Project, 0, len(s.Projects)-1)
	projects = append(projects, s.Projects[:idx]...)
	projects = append(projects, s.Projects[idx+1:]...)
	if s.ActiveProjectID == projectID {
		s.ActiveProjectID = projects[0].ID
	}
	s.Projects = projects
	return s, nil
}

// AddIssue appends an untitled issue with one page to the active project and selects it.
func AddIssue(s domain.State) (domain.State, domain.Issue) {
	var added domain.Issue
	s = mapActiveProject(s, func(p domain.Project) domain.Project {
		pg := domain.Page{ID: domain.NewID("page"), Number: 1, Panels: []domain.Panel{}}
		added = domain.Issue{
			ID:    domain.NewID("issue"),
			Title: fmt.Sprintf("Issue #%d: Untitled", len(p.Issues)+1),
			Pages: []domain.Page{pg},
		}
		issues := make([]domain.Issue, 0, len(p.Issues)+1)
		issues = append(issues, p.Issues...)
		p.Issues = append(issues, added)
		p.ActiveIssueID = added.ID
		p.ActivePageID = pg.ID
		return p
	})
	return s, added
}

// RenameIssue sets an issue title within the active project.
func RenameIssue(s domain.State, issueID, title string) (domain.State, error) {
	found := false
	s = mapActiveProject(s, func(p domain.Project) domain.Project {
		for i := range p.Issues {
			if p.Issues[i].ID == issueID {
				issues := append([]domain.Issue(nil), p.Issues...)
				issues[i].Title = strings.TrimSpace(title)
				p.Issues = issues
				found = true
				break
			}
		}
		return p
	})
	if !found {
		return s, fmt.Errorf("issue %s: %w", issueID, ErrNotFound)
	}
	return s, nil
}

// DeleteIssue removes an issue from the active project. Deleting the only issue is refused.
func DeleteIssue(s domain.State, issueID string) (domain.State, error) {
	p, ok := ActiveProject(s)
	if !ok {
		return s, fmt.Errorf("issue %s: %w", issueID, ErrNotFound)
	}
	idx := -1
	for i := range p.Issues {
		if p.Issues[i].ID == issueID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s, fmt.Errorf("issue %s: %w", issueID, ErrNotFound)
	}
	if len(p.Issues) <= 1 {
		return s, refuse("delete issue", ErrLastIssue)
	}
	return mapActiveProject(s, func(p domain.Project) domain.Project {
		issues := make([]domain.Issue, 0, len(p.Issues)-1)
		issues = append(issues, p.Issues[:idx]...)
		issues = append(issues, p.Issues[idx+1:]...)
		p.Issues = issues
		if p.ActiveIssueID == issueID {
			p.ActiveIssueID = issues[0].ID
			p.ActivePageID = ""
			if len(issues[0].Pages) > 0 {
				p.ActivePageID = issues[0].Pages[0].ID
			}
		}
		return p
	}), nil
}

// AddPage appends an empty page to the active issue and selects it.
func AddPage(s domain.State) (domain.State, domain.Page) {
	var added domain.Page
	s = mapActiveProject(s, func(p domain.Project) domain.Project {
		ii := activeIssueIndex(p)
		if ii < 0 {
			return p
		}
		issues := append([]domain.Issue(nil), p.Issues...)
		iss := issues[ii]
		added = domain.Page{ID: domain.NewID("page"), Number: len(iss.Pages) + 1, Panels: []domain.Panel{}}
		pages := make([]domain.Page, 0, len(iss.Pages)+1)
		pages = append(pages, iss.Pages...)
		iss.Pages = append(pages, added)
		issues[ii] = iss
		p.Issues = issues
		p.ActiveIssueID = iss.ID
		p.ActivePageID = added.ID
		return p
	})
	return s, added
}

// DeletePage removes a page from whichever issue of the active project holds it and renumbers
// the survivors densely from 1. Deleting the only page of an issue is refused.
func DeletePage(s domain.State, pageID string) (domain.State, error) {
	p, ok := ActiveProject(s)
	if !ok {
		return s, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	ii, pi := -1, -1
	for i := range p.Issues {
		for j := range p.Issues[i].Pages {
			if p.Issues[i].Pages[j].ID == pageID {
				ii, pi = i, j
			}
		}
	}
	if ii < 0 {
		return s, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	if len(p.Issues[ii].Pages) <= 1 {
		return s, refuse("delete page", ErrLastPage)
	}
	return mapActiveProject(s, func(p domain.Project) domain.Project {
		issues := append([]domain.Issue(nil), p.Issues...)
		iss := issues[ii]
		pages := make([]domain.Page, 0, len(iss.Pages)-1)
		pages = append(pages, iss.Pages[:pi]...)
		pages = append(pages, iss.Pages[pi+1:]...)
		iss.Pages = renumber(pages)
		issues[ii] = iss
		p.Issues = issues
		if p.ActivePageID == pageID {
			next := pi
			if next >= len(iss.Pages) {
				next = len(iss.Pages) - 1
			}
			p.ActivePageID = iss.Pages[next].ID
		}
		return p
	}), nil
}

// SelectPage makes the given page (and its issue) active within the active project.
func SelectPage(s domain.State, issueID, pageID string) (domain.State, error) {
	p, ok := ActiveProject(s)
	if !ok {
		return s, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	for _, iss := range p.Issues {
		if iss.ID != issueID {
			continue
		}
		for _, pg := range iss.Pages {
			if pg.ID == pageID {
				return mapActiveProject(s, func(p domain.Project) domain.Project {
					p.ActiveIssueID = issueID
					p.ActivePageID = pageID
					return p
				}), nil
			}
		}
	}
	return s, fmt.Errorf("page %s in issue %s: %w", pageID, issueID, ErrNotFound)
}

// renumber rewrites page numbers to 1..N in place; pages must already be a private copy.
func renumber(pages []domain.Page) []domain.Page {
	for i := range pages {
		pages[i].Number = i + 1
	}
	return pages
}
