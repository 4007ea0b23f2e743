/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"math"
	"regexp"
	"strconv"

	"gostoryboard/internal/domain"
)

// Rect is a canvas-space rectangle.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Bounds returns the box enclosing every panel (height derived from the aspect ratio), grown
// by margin on each side. ok is false for an empty page.
func Bounds(panels []domain.Panel, margin float64) (r Rect, ok bool) {
	if len(panels) == 0 {
		return Rect{}, false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range panels {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X+p.Width)
		maxY = math.Max(maxY, p.Y+p.Height())
	}
	return Rect{
		X: minX - margin,
		Y: minY - margin,
		W: maxX - minX + 2*margin,
		H: maxY - minY + 2*margin,
	}, true
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9]`)

// FileName builds a deterministic file name such as
// Primary_Archive_Issue__1__The_Crossing_Page1.png.
func FileName(p domain.Project, iss domain.Issue, pg domain.Page, ext string) string {
	project := unsafeChars.ReplaceAllString(p.Name, "_")
	if project == "" {
		project = "Project"
	}
	issue := unsafeChars.ReplaceAllString(iss.Title, "_")
	if issue == "" {
		issue = "Issue"
	}
	if ext == "" {
		ext = "png"
	}
	return project + "_" + issue + "_Page" + strconv.Itoa(pg.Number) + "." + ext
}
