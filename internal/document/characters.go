/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import "gostoryboard/internal/domain"

// UpsertCharacter inserts c into the active project's codex when its id is new and replaces
// the existing entry in place otherwise. An empty id gets a fresh one.
func UpsertCharacter(s domain.State, c domain.Character) (domain.State, domain.Character) {
	if c.ID == "" {
		c.ID = domain.NewID("char")
	}
	s = mapActiveProject(s, func(p domain.Project) domain.Project {
		for i := range p.Characters {
			if p.Characters[i].ID == c.ID {
				chars := append([]domain.Character(nil), p.Characters...)
				chars[i] = c
				p.Characters = chars
				return p
			}
		}
		chars := make([]domain.Character, 0, len(p.Characters)+1)
		chars = append(chars, p.Characters...)
		p.Characters = append(chars, c)
		return p
	})
	return s, c
}

// DeleteCharacter removes a codex entry. Panels keep the now dangling id in
// CharactersInvolved; lookups of it simply resolve to no match.
func DeleteCharacter(s domain.State, characterID string) domain.State {
	return mapActiveProject(s, func(p domain.Project) domain.Project {
		chars := make([]domain.Character, 0, len(p.Characters))
		for _, c := range p.Characters {
			if c.ID != characterID {
				chars = append(chars, c)
			}
		}
		p.Characters = chars
		return p
	})
}
