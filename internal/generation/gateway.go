/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package generation produces panel images from a director's prompt and the character codex.
// Gateway is the contract the editor depends on; GeminiGateway implements it with the
// Gemini image models.
package generation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"gostoryboard/internal/domain"
)

// Request carries everything one panel generation needs.
type Request struct {
	Prompt      string
	Characters  []domain.Character
	PriorPanels []domain.Panel
	AspectRatio domain.AspectRatio
}

// Image is raw encoded image data.
type Image struct {
	MIMEType string
	Data     []byte
}

// DataURL renders the image as a base64 data URL.
func (i Image) DataURL() string {
	mt := i.MIMEType
	if mt == "" {
		mt = "image/png"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Gateway turns a request into an image. Implementations must be safe for concurrent use.
type Gateway interface {
	Generate(ctx context.Context, req Request) (Image, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, req Request) (Image, error)

func (f GatewayFunc) Generate(ctx context.Context, req Request) (Image, error) { return f(ctx, req) }

// ParseDataURL splits "data:<mime>;base64,<payload>". A header without a mime type yields
// image/png.
func ParseDataURL(u string) (Image, error) {
	header, payload, ok := strings.Cut(u, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return Image{}, errors.New("not a data URL")
	}
	meta := strings.TrimPrefix(header, "data:")
	mt, params, _ := strings.Cut(meta, ";")
	if mt == "" {
		mt = "image/png"
	}
	var data []byte
	var err error
	if strings.Contains(params, "base64") {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// some producers drop the padding
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return Image{}, fmt.Errorf("decode data URL payload: %w", err)
		}
	} else {
		data = []byte(payload)
	}
	return Image{MIMEType: mt, Data: data}, nil
}
