/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"gostoryboard/internal/document"
	"gostoryboard/internal/domain"
)

// Controller keeps the gesture state between events. It is not safe for concurrent use;
// the owning session serializes calls.
type Controller struct {
	state    State
	captured bool
}

// NewController returns an idle controller.
func NewController() *Controller {
	return &Controller{state: NewState()}
}

// State returns the current gesture slots.
func (c *Controller) State() State { return c.state }

// Captured reports whether the global pointer listener is attached.
func (c *Controller) Captured() bool { return c.captured }

// Handle advances the gesture state by one event and applies the resulting effects to doc.
func (c *Controller) Handle(doc domain.State, ev Event) domain.State {
	next, effects := Step(c.state, ev)
	c.state = next
	return c.Apply(doc, effects)
}

// Apply executes effects against doc in order. Panel edits for ids missing from the active
// page leave doc untouched.
func (c *Controller) Apply(doc domain.State, effects []Effect) domain.State {
	for _, eff := range effects {
		switch e := eff.(type) {
		case BringToFront:
			doc = document.BringToFront(doc, e.PanelID)
		case Move:
			doc = document.MovePanel(doc, e.PanelID, e.X, e.Y)
		case Resize:
			doc = document.ResizePanel(doc, e.PanelID, e.Width)
		case Capture:
			c.captured = true
		case ReleaseCapture:
			c.captured = false
		}
	}
	return doc
}

// Reset drops any in-progress gesture, e.g. when the active page changes.
func (c *Controller) Reset() {
	c.state = NewState()
	c.captured = false
}
