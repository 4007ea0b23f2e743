/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

// Event is a pointer event delivered to Step.
type Event interface{ isEvent() }

// DragStart is a pointer-down on a panel body.
type DragStart struct {
	PanelID  string
	Pointer  Point
	PanelPos Point
}

// ResizeStart is a pointer-down on a panel's resize handle.
type ResizeStart struct {
	PanelID string
	Pointer Point
	Width   float64
}

// PointerMove reports the pointer position while captured.
type PointerMove struct {
	Pointer Point
}

// PointerUp is a pointer release anywhere on screen.
type PointerUp struct{}

func (DragStart) isEvent()   {}
func (ResizeStart) isEvent() {}
func (PointerMove) isEvent() {}
func (PointerUp) isEvent()   {}

// Effect is an instruction produced by Step.
type Effect interface{ isEffect() }

// BringToFront raises a panel above every other panel.
type BringToFront struct{ PanelID string }

// Move sets a panel's top-left position.
type Move struct {
	PanelID string
	X, Y    float64
}

// Resize sets a panel's width.
type Resize struct {
	PanelID string
	Width   float64
}

// Capture attaches the global pointer move/up listener.
type Capture struct{}

// ReleaseCapture detaches it again.
type ReleaseCapture struct{}

func (BringToFront) isEffect()   {}
func (Move) isEffect()           {}
func (Resize) isEffect()         {}
func (Capture) isEffect()        {}
func (ReleaseCapture) isEffect() {}
