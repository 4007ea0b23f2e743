/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package generation

import (
	"context"
	"errors"
)

var (
	// ErrContentPolicy means the model refused the prompt on safety grounds.
	ErrContentPolicy = errors.New("generation blocked for safety reasons; try refining the prompt")
	// ErrUnavailable covers missing or rejected credentials. It takes the editor offline.
	ErrUnavailable = errors.New("generation service unavailable")
	// ErrTransient covers overload and network failures; the next attempt may succeed.
	ErrTransient = errors.New("generation service temporarily unreachable")
	// ErrNoImage means the call succeeded but carried no image.
	ErrNoImage = errors.New("no image data returned from model")
	// ErrBlocked means the model returned no candidates at all.
	ErrBlocked = errors.New("generation blocked by system error")
)

// Kind groups generation failures for the user-facing notice.
type Kind int

const (
	KindNone Kind = iota
	KindContentPolicy
	KindUnavailable
	KindNoImage
	KindTransient
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindContentPolicy:
		return "content_policy"
	case KindUnavailable:
		return "unavailable"
	case KindNoImage:
		return "no_image"
	case KindTransient:
		return "transient"
	default:
		return "other"
	}
}

// Classify maps an error returned by a Gateway to its Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrContentPolicy):
		return KindContentPolicy
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrNoImage), errors.Is(err, ErrBlocked):
		return KindNoImage
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindOther
	}
}

// Message returns the text shown to the user for err.
func Message(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindContentPolicy:
		return "Generation blocked for safety reasons. Try refining the prompt."
	case KindUnavailable:
		return "The image service is unavailable. Check the API key and connection; the editor is now offline."
	case KindNoImage:
		if errors.Is(err, ErrBlocked) {
			return "Generation blocked by system error."
		}
		return "No image data returned from model."
	case KindTransient:
		return "The image service did not respond. Try again in a moment."
	default:
		if errors.Is(err, context.Canceled) {
			return "Generation was interrupted."
		}
		return "Manifest failed: " + err.Error()
	}
}
