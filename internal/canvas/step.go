/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

// Step is the gesture transition function. It never touches a document; callers apply the
// returned effects in order.
func Step(s State, ev Event) (State, []Effect) {
	if s.Drag == nil {
		s.Drag = Idle{}
	}
	if s.Resize == nil {
		s.Resize = Idle{}
	}
	switch e := ev.(type) {
	case DragStart:
		if s.Drag.Active() {
			return s, nil
		}
		var effects []Effect
		if !s.Active() {
			effects = append(effects, Capture{})
		}
		s.Drag = Dragging{PanelID: e.PanelID, Start: e.Pointer, Origin: e.PanelPos}
		// raise even if the gesture turns out to be a plain click
		return s, append(effects, BringToFront{PanelID: e.PanelID})

	case ResizeStart:
		if s.Resize.Active() {
			return s, nil
		}
		var effects []Effect
		if !s.Active() {
			effects = append(effects, Capture{})
		}
		s.Resize = Resizing{PanelID: e.PanelID, Start: e.Pointer, StartWidth: e.Width}
		return s, effects

	case PointerMove:
		var effects []Effect
		if d, ok := s.Drag.(Dragging); ok {
			pos := d.Origin.Add(e.Pointer.Sub(d.Start))
			effects = append(effects, Move{PanelID: d.PanelID, X: pos.X, Y: pos.Y})
		}
		if r, ok := s.Resize.(Resizing); ok {
			w := ClampWidth(r.StartWidth + e.Pointer.X - r.Start.X)
			effects = append(effects, Resize{PanelID: r.PanelID, Width: w})
		}
		return s, effects

	case PointerUp:
		if !s.Active() {
			return s, nil
		}
		return NewState(), []Effect{ReleaseCapture{}}
	}
	return s, nil
}
