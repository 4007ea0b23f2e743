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
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	applog "gostoryboard/internal/log"
)

const (
	DefaultModel     = "gemini-3-pro-image-preview"
	DefaultImageSize = "1K"
)

// GeminiOptions configures NewGeminiGateway.
type GeminiOptions struct {
	APIKey            string
	Model             string
	ImageSize         string
	StylePrompt       string
	RequestsPerMinute int
}

// contentGenerator is the slice of the genai client the gateway uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGateway generates panels with a Gemini image model.
type GeminiGateway struct {
	models    contentGenerator
	model     string
	imageSize string
	prompts   PromptBuilder
	limiter   *rate.Limiter
	log       *slog.Logger
}

// NewGeminiGateway builds a gateway. A missing API key is reported as ErrUnavailable so the
// editor can start in offline mode.
func NewGeminiGateway(ctx context.Context, opts GeminiOptions) (*GeminiGateway, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("no API key configured: %w", ErrUnavailable)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %v: %w", err, ErrUnavailable)
	}
	return newGeminiGateway(client.Models, opts), nil
}

func newGeminiGateway(models contentGenerator, opts GeminiOptions) *GeminiGateway {
	g := &GeminiGateway{
		models:    models,
		model:     opts.Model,
		imageSize: opts.ImageSize,
		prompts:   PromptBuilder{Style: opts.StylePrompt},
		log:       applog.WithComponent("generation"),
	}
	if g.model == "" {
		g.model = DefaultModel
	}
	if g.imageSize == "" {
		g.imageSize = DefaultImageSize
	}
	if opts.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 2)
	}
	return g
}

// Generate sends the prompt plus any character reference images and returns the first inline
// image of the first candidate.
func (g *GeminiGateway) Generate(ctx context.Context, req Request) (Image, error) {
	l := applog.WithOperation(g.log, "generate").With(
		slog.String("model", g.model),
		slog.String("ratio", string(req.AspectRatio)),
		slog.Int("characters", len(req.Characters)),
	)
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return Image{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	parts := []*genai.Part{genai.NewPartFromText(g.prompts.Build(req))}
	for _, ref := range ReferenceImages(req.Characters) {
		parts = append(parts, genai.NewPartFromBytes(ref.Data, ref.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: string(req.AspectRatio),
			ImageSize:   g.imageSize,
		},
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		err = classifyAPIError(err)
		l.Error("generation failed", slog.Any("err", err))
		return Image{}, err
	}
	img, err := imageFromResponse(resp)
	if err != nil {
		l.Warn("generation returned no image", slog.Any("err", err))
		return Image{}, err
	}
	l.Info("panel generated", slog.Duration("took", time.Since(start).Round(time.Millisecond)), slog.Int("bytes", len(img.Data)))
	return img, nil
}

func imageFromResponse(resp *genai.GenerateContentResponse) (Image, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return Image{}, ErrBlocked
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return Image{}, ErrContentPolicy
	}
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
				mt := p.InlineData.MIMEType
				if mt == "" {
					mt = "image/png"
				}
				return Image{MIMEType: mt, Data: p.InlineData.Data}, nil
			}
		}
	}
	return Image{}, ErrNoImage
}

// classifyAPIError marks rejected credentials with ErrUnavailable and overload or network
// failures with ErrTransient.
func classifyAPIError(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code = apiErrPtr.Code
	}
	var netErr net.Error
	if code == 0 && errors.As(err, &netErr) {
		return fmt.Errorf("%v: %w", err, ErrTransient)
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%v: %w", err, ErrUnavailable)
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%v: %w", err, ErrTransient)
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(err.Error()), "safety") {
			return fmt.Errorf("%v: %w", err, ErrContentPolicy)
		}
	}
	return fmt.Errorf("generate content: %w", err)
}
