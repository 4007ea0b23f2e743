/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package canvas turns pointer gestures on the freeform page canvas into panel edits.
//
// Gesture tracking is a pure transition function: Step takes the current gesture state and
// one pointer event and returns the next state plus the effects to apply. Controller owns the
// state between events and applies the effects to a document through the document package.
package canvas

import "gostoryboard/internal/document"

// Point is a position in canvas pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Gesture is one gesture slot: Idle, Dragging or Resizing.
type Gesture interface {
	isGesture()
	Active() bool
}

// Idle means no gesture of this kind is in progress.
type Idle struct{}

// Dragging translates a panel by the pointer offset from Start.
type Dragging struct {
	PanelID string
	Start   Point
	Origin  Point
}

// Resizing changes a panel width by the horizontal pointer offset from Start.
type Resizing struct {
	PanelID    string
	Start      Point
	StartWidth float64
}

func (Idle) isGesture()     {}
func (Dragging) isGesture() {}
func (Resizing) isGesture() {}

func (Idle) Active() bool     { return false }
func (Dragging) Active() bool { return true }
func (Resizing) Active() bool { return true }

// State holds the two independent gesture slots.
type State struct {
	Drag   Gesture
	Resize Gesture
}

// NewState returns a state with both slots idle.
func NewState() State { return State{Drag: Idle{}, Resize: Idle{}} }

// Active reports whether any gesture is in progress.
func (s State) Active() bool {
	return active(s.Drag) || active(s.Resize)
}

func active(g Gesture) bool { return g != nil && g.Active() }

// ClampWidth bounds a resize result.
func ClampWidth(w float64) float64 { return document.ClampWidth(w) }
