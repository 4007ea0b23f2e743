/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"

	"gostoryboard/internal/domain"
)

// Persisted layouts:
//
//	0  a single project object at the top level (issues, characters, active ids)
//	1  {projects, activeProjectId}
//	2  adds schemaVersion and the session z counter
var migrations = map[int]func(map[string]any) (map[string]any, error){
	1: migrateSingleProject,
	2: migrateZCounter,
}

var errEmptyLegacy = errors.New("legacy project has no issues")

// detectVersion reads the layout version of a raw document.
func detectVersion(doc map[string]any) int {
	if v, ok := doc["schemaVersion"].(float64); ok {
		return int(v)
	}
	if _, ok := doc["projects"]; ok {
		return 1
	}
	return 0
}

// migrate walks doc from its detected version up to domain.SchemaVersion one step at a time.
func migrate(doc map[string]any) (map[string]any, int, error) {
	from := detectVersion(doc)
	for v := from + 1; v <= domain.SchemaVersion; v++ {
		step, ok := migrations[v]
		if !ok {
			return nil, from, fmt.Errorf("no migration to version %d", v)
		}
		next, err := step(doc)
		if err != nil {
			return nil, from, fmt.Errorf("migrate to v%d: %w", v, err)
		}
		doc = next
	}
	return doc, from, nil
}

func migrateSingleProject(doc map[string]any) (map[string]any, error) {
	issues, _ := doc["issues"].([]any)
	if len(issues) == 0 {
		return nil, errEmptyLegacy
	}
	id, _ := doc["id"].(string)
	if id == "" {
		id = domain.NewID("project")
		doc["id"] = id
	}
	if _, ok := doc["name"].(string); !ok {
		doc["name"] = domain.DefaultProjectName
	}
	return map[string]any{
		"projects":        []any{doc},
		"activeProjectId": id,
	}, nil
}

func migrateZCounter(doc map[string]any) (map[string]any, error) {
	maxZ := float64(domain.MinZIndex)
	projects, _ := doc["projects"].([]any)
	for _, p := range projects {
		walkPanels(p, func(panel map[string]any) {
			if z, ok := panel["zIndex"].(float64); ok && z > maxZ {
				maxZ = z
			}
		})
	}
	doc["zCounter"] = maxZ
	doc["schemaVersion"] = float64(2)
	return doc, nil
}

func walkPanels(project any, fn func(map[string]any)) {
	pm, _ := project.(map[string]any)
	issues, _ := pm["issues"].([]any)
	for _, iss := range issues {
		im, _ := iss.(map[string]any)
		pages, _ := im["pages"].([]any)
		for _, pg := range pages {
			gm, _ := pg.(map[string]any)
			panels, _ := gm["panels"].([]any)
			for _, pn := range panels {
				if m, ok := pn.(map[string]any); ok {
					fn(m)
				}
			}
		}
	}
}
