/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "fmt"

// AspectRatio is the panel frame shape. Panels store the tag, never raw dimensions.
type AspectRatio string

const (
	Ratio1x1  AspectRatio = "1:1"
	Ratio3x4  AspectRatio = "3:4"
	Ratio4x3  AspectRatio = "4:3"
	Ratio9x16 AspectRatio = "9:16"
	Ratio16x9 AspectRatio = "16:9"
)

// AspectRatios lists every supported ratio in picker order.
var AspectRatios = []AspectRatio{Ratio1x1, Ratio4x3, Ratio16x9, Ratio9x16, Ratio3x4}

var ratioShapes = map[AspectRatio][2]float64{
	Ratio1x1:  {1, 1},
	Ratio3x4:  {3, 4},
	Ratio4x3:  {4, 3},
	Ratio9x16: {9, 16},
	Ratio16x9: {16, 9},
}

// Valid reports whether r is one of the five supported ratios.
func (r AspectRatio) Valid() bool {
	_, ok := ratioShapes[r]
	return ok
}

// HeightFor derives the display box height for the given width.
// Unknown ratios fall back to 16:9 so rendering never fails on a bad tag.
func (r AspectRatio) HeightFor(width float64) float64 {
	s, ok := ratioShapes[r]
	if !ok {
		s = ratioShapes[Ratio16x9]
	}
	return width * s[1] / s[0]
}

// ParseAspectRatio validates a user supplied ratio tag.
func ParseAspectRatio(s string) (AspectRatio, error) {
	r := AspectRatio(s)
	if !r.Valid() {
		return "", fmt.Errorf("unsupported aspect ratio %q", s)
	}
	return r, nil
}

// Layout is a named prompt-bar preset selecting the ratio for the next generation.
type Layout struct {
	Name  string      `json:"name"`
	Ratio AspectRatio `json:"ratio"`
}

// Layouts are the presets offered next to the prompt bar.
var Layouts = []Layout{
	{Name: "WIDE", Ratio: Ratio16x9},
	{Name: "STD", Ratio: Ratio4x3},
	{Name: "CLOSE", Ratio: Ratio1x1},
}

// DefaultPanelWidth returns the initial width for a freshly generated panel.
func DefaultPanelWidth(r AspectRatio) float64 {
	if r == Ratio16x9 {
		return 500
	}
	return 400
}
