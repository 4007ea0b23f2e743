/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	// decoders for panel and reference images
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"gostoryboard/internal/generation"
)

const (
	defaultCacheExpiration = 30 * time.Minute
	cacheCleanupInterval   = time.Hour
	maxImageBytes          = 32 << 20
	maxParallelFetches     = 4
)

// Resolver turns panel image URLs (data: or http(s):) into decoded images. Decoded images
// are cached by URL, so repeated exports of the same page do not fetch again.
type Resolver struct {
	client *http.Client
	cache  *cache.Cache
}

// NewResolver uses client for remote images; nil means a client with a 30s timeout.
func NewResolver(client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Resolver{client: client, cache: cache.New(defaultCacheExpiration, cacheCleanupInterval)}
}

// ResolveAll decodes every distinct non-empty URL concurrently. Panels with an empty URL
// are simply absent from the result.
func (r *Resolver) ResolveAll(ctx context.Context, urls []string) (map[string]image.Image, error) {
	out := make(map[string]image.Image, len(urls))
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelFetches)
	seen := map[string]bool{}
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		eg.Go(func() error {
			img, err := r.Resolve(egCtx, u)
			if err != nil {
				return err
			}
			mu.Lock()
			out[u] = img
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve decodes a single URL.
func (r *Resolver) Resolve(ctx context.Context, u string) (image.Image, error) {
	if v, ok := r.cache.Get(u); ok {
		return v.(image.Image), nil
	}
	raw, err := r.load(ctx, u)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", shortURL(u), err)
	}
	r.cache.Set(u, img, cache.DefaultExpiration)
	return img, nil
}

func (r *Resolver) load(ctx context.Context, u string) ([]byte, error) {
	switch {
	case strings.HasPrefix(u, "data:"):
		img, err := generation.ParseDataURL(u)
		if err != nil {
			return nil, err
		}
		return img.Data, nil
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", shortURL(u), err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: status %d", shortURL(u), resp.StatusCode)
		}
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", shortURL(u), err)
		}
		if len(b) > maxImageBytes {
			return nil, errors.New("image exceeds size limit")
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported image URL %s", shortURL(u))
	}
}

func shortURL(u string) string {
	if len(u) > 48 {
		return u[:48] + "..."
	}
	return u
}
