/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package generation

import (
	"fmt"
	"strings"

	"gostoryboard/internal/domain"
)

// DefaultStylePrompt is used when no style is configured.
const DefaultStylePrompt = `CORE VISUAL STYLE: grounded ink-and-paint comic illustration.
- Architecture and machinery use crisp, deliberate ink lines with strong 2- or 3-point perspective.
- Deep shadows are solid spot blacks; organic effects such as smoke, clouds and glow have no outlines.
- Painterly colouring with visible brushwork and volumetric, high-contrast lighting.
- Palette: desaturated concrete grey, oxidized copper green and rust orange, with coloured shadows.
- A light film grain over the whole frame.`

// continuityDepth is how many prior panel prompts are quoted for continuity.
const continuityDepth = 2

// PromptBuilder assembles the text part of a generation request.
type PromptBuilder struct {
	Style string
}

// BuildPrompt assembles the prompt with DefaultStylePrompt.
func BuildPrompt(req Request) string { return PromptBuilder{}.Build(req) }

// Build assembles, in order: the style block, the cast, continuity from the most recent prior
// panels, the director's script and the framing instructions.
func (b PromptBuilder) Build(req Request) string {
	style := strings.TrimSpace(b.Style)
	if style == "" {
		style = DefaultStylePrompt
	}
	ratio := req.AspectRatio
	if !ratio.Valid() {
		ratio = domain.Ratio16x9
	}

	var sb strings.Builder
	sb.WriteString(style)
	sb.WriteString("\n\nACTORS ON SET (keep narrative and visual consistency):\n")
	sb.WriteString(castBlock(req.Characters))
	if c := continuity(req.PriorPanels); c != "" {
		sb.WriteString("\n\n")
		sb.WriteString(c)
	}
	fmt.Fprintf(&sb, "\n\nDIRECTOR'S SCRIPT FOR THIS PANEL:\n%q\n\n", strings.TrimSpace(req.Prompt))
	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString("1. Keep every listed character visually consistent with their visual key and traits.\n")
	sb.WriteString("2. Let motivation and archetype drive pose, expression and framing.\n")
	sb.WriteString("3. Attached reference images are the source of truth for character appearance.\n")
	sb.WriteString("4. Apply the core visual style to every element of the composition.\n")
	fmt.Fprintf(&sb, "5. Use %s framing.", ratio)
	return sb.String()
}

func castBlock(chars []domain.Character) string {
	if len(chars) == 0 {
		return "No specific recurring characters."
	}
	blocks := make([]string, 0, len(chars))
	for _, c := range chars {
		visual := ""
		if c.VisualKey != "" {
			visual = "Visual description/signature: " + c.VisualKey + "."
		}
		blocks = append(blocks, strings.Join([]string{
			"CHARACTER: " + c.Name,
			"ARCHETYPE: " + orDefault(c.Archetype, "Unknown"),
			"MOTIVATION: " + orDefault(c.Motivation, "Unknown"),
			"BACKSTORY: " + orDefault(c.Backstory, "N/A"),
			"TRAITS: " + c.Traits,
			"VISUAL KEY: " + visual,
			"ROLE: " + c.Description,
		}, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// continuity quotes the prompts of the last continuityDepth prior panels, oldest first.
func continuity(prior []domain.Panel) string {
	if len(prior) == 0 {
		return ""
	}
	start := len(prior) - continuityDepth
	if start < 0 {
		start = 0
	}
	prompts := make([]string, 0, continuityDepth)
	for _, p := range prior[start:] {
		prompts = append(prompts, p.Prompt)
	}
	return "CONTINUITY: The previous sequence showed: " + strings.Join(prompts, " then ") + "."
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// ReferenceImages decodes the reference images of the given characters. Entries that are
// not valid data URLs are skipped.
func ReferenceImages(chars []domain.Character) []Image {
	var out []Image
	for _, c := range chars {
		if c.ReferenceImage == "" {
			continue
		}
		img, err := ParseDataURL(c.ReferenceImage)
		if err != nil || len(img.Data) == 0 {
			continue
		}
		out = append(out, img)
	}
	return out
}
