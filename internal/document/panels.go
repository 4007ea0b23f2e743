/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import (
	"time"

	"gostoryboard/internal/domain"
)

const (
	MinPanelWidth = 200
	MaxPanelWidth = 1200

	// new panels cascade down-right from this origin
	cascadeOrigin = 100
	cascadeStep   = 40
)

// ClampWidth bounds a panel width to [MinPanelWidth, MaxPanelWidth].
func ClampWidth(w float64) float64 {
	if w < MinPanelWidth {
		return MinPanelWidth
	}
	if w > MaxPanelWidth {
		return MaxPanelWidth
	}
	return w
}

// UpdatePanelsOfActivePage applies fn to exactly the panel list of the active page.
// fn must return a new slice rather than modify its argument.
func UpdatePanelsOfActivePage(s domain.State, fn func([]domain.Panel) []domain.Panel) domain.State {
	return mapActiveIssue(s, func(p domain.Project, iss domain.Issue) domain.Issue {
		pi := pageIndex(iss, p.ActivePageID)
		if pi < 0 {
			return iss
		}
		pages := append([]domain.Page(nil), iss.Pages...)
		pages[pi].Panels = fn(pages[pi].Panels)
		iss.Pages = pages
		return iss
	})
}

// mapPanel returns a copy of panels with the panel matching id replaced by fn's result.
// An unknown id yields an unchanged copy.
func mapPanel(panels []domain.Panel, id string, fn func(domain.Panel) domain.Panel) []domain.Panel {
	out := make([]domain.Panel, len(panels))
	for i, pn := range panels {
		if pn.ID == id {
			pn = fn(pn)
		}
		out[i] = pn
	}
	return out
}

func updatePanel(s domain.State, id string, fn func(domain.Panel) domain.Panel) domain.State {
	if _, ok := FindPanel(s, id); !ok {
		return s
	}
	return UpdatePanelsOfActivePage(s, func(panels []domain.Panel) []domain.Panel {
		return mapPanel(panels, id, fn)
	})
}

// PanelDraft carries the inputs for a freshly generated panel.
type PanelDraft struct {
	Prompt       string
	ImageURL     string
	CharacterIDs []string
	AspectRatio  domain.AspectRatio
	Timestamp    time.Time
}

// AddGeneratedPanel prepends a new panel to the active page. It cascades from the origin by
// the number of existing panels, takes the default width for its ratio and the next z index.
func AddGeneratedPanel(s domain.State, d PanelDraft) (domain.State, domain.Panel) {
	pg, ok := ActivePage(s)
	if !ok {
		return s, domain.Panel{}
	}
	ratio := d.AspectRatio
	if !ratio.Valid() {
		ratio = domain.Ratio16x9
	}
	ts := d.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	offset := float64(cascadeOrigin + len(pg.Panels)*cascadeStep)
	s.ZCounter++
	pn := domain.Panel{
		ID:                 domain.NewID("panel"),
		Prompt:             d.Prompt,
		ImageURL:           d.ImageURL,
		Timestamp:          ts.UnixMilli(),
		CharactersInvolved: append([]string{}, d.CharacterIDs...),
		X:                  offset,
		Y:                  offset,
		Width:              domain.DefaultPanelWidth(ratio),
		AspectRatio:        ratio,
		ZIndex:             s.ZCounter,
	}
	s = UpdatePanelsOfActivePage(s, func(panels []domain.Panel) []domain.Panel {
		out := make([]domain.Panel, 0, len(panels)+1)
		out = append(out, pn)
		return append(out, panels...)
	})
	return s, pn
}

// BringToFront gives the panel the next value of the session z counter, which is strictly
// greater than every z index handed out before. Unknown ids leave the counter untouched.
func BringToFront(s domain.State, panelID string) domain.State {
	if _, ok := FindPanel(s, panelID); !ok {
		return s
	}
	s.ZCounter++
	z := s.ZCounter
	return updatePanel(s, panelID, func(p domain.Panel) domain.Panel {
		p.ZIndex = z
		return p
	})
}

// MovePanel sets the panel's top-left canvas position. No clamping is applied.
func MovePanel(s domain.State, panelID string, x, y float64) domain.State {
	return updatePanel(s, panelID, func(p domain.Panel) domain.Panel {
		p.X, p.Y = x, y
		return p
	})
}

// ResizePanel sets the panel width, clamped to the supported range.
func ResizePanel(s domain.State, panelID string, width float64) domain.State {
	width = ClampWidth(width)
	return updatePanel(s, panelID, func(p domain.Panel) domain.Panel {
		p.Width = width
		return p
	})
}

// SetPanelAspect changes the frame shape; the width is kept and the height re-derived.
func SetPanelAspect(s domain.State, panelID string, ratio domain.AspectRatio) domain.State {
	if !ratio.Valid() {
		return s
	}
	return updatePanel(s, panelID, func(p domain.Panel) domain.Panel {
		p.AspectRatio = ratio
		return p
	})
}

// DeletePanel removes a panel from the active page.
func DeletePanel(s domain.State, panelID string) domain.State {
	if _, ok := FindPanel(s, panelID); !ok {
		return s
	}
	return UpdatePanelsOfActivePage(s, func(panels []domain.Panel) []domain.Panel {
		out := make([]domain.Panel, 0, len(panels))
		for _, pn := range panels {
			if pn.ID != panelID {
				out = append(out, pn)
			}
		}
		return out
	})
}
