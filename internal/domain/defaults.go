/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

const (
	DefaultProjectName = "Primary Archive"
	DefaultIssueTitle  = "Issue #1: The Crossing"
)

// NewProject returns a project with one issue holding one empty page, both active.
func NewProject(name string) Project {
	if name == "" {
		name = DefaultProjectName
	}
	pg := Page{ID: NewID("page"), Number: 1, Panels: []Panel{}}
	iss := Issue{ID: NewID("issue"), Title: DefaultIssueTitle, Pages: []Page{pg}}
	return Project{
		ID:            NewID("project"),
		Name:          name,
		Issues:        []Issue{iss},
		Characters:    []Character{},
		ActiveIssueID: iss.ID,
		ActivePageID:  pg.ID,
	}
}

// DefaultState is what a fresh, empty or unreadable store starts from.
func DefaultState() State {
	p := NewProject(DefaultProjectName)
	return State{
		SchemaVersion:   SchemaVersion,
		Projects:        []Project{p},
		ActiveProjectID: p.ID,
		ZCounter:        MinZIndex,
	}
}
