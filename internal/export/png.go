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
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"
)

var (
	// Background is the export canvas color (#020202).
	Background  = color.RGBA{R: 2, G: 2, B: 2, A: 255}
	placeholder = color.RGBA{R: 24, G: 24, B: 27, A: 255}
	frameColor  = color.RGBA{R: 63, G: 63, B: 70, A: 255}
)

// maxPixels caps the raster size; larger pages fail with RenderHint instead of exhausting memory.
const maxPixels = 80_000_000

// rasterize paints layers (already in stacking order) into a region-sized RGBA at scale.
func rasterize(layers []layer, region Rect, scale float64) (*image.RGBA, error) {
	// the limit is checked on floats so far-flung panels cannot overflow int
	fw := math.Ceil(region.W * scale)
	fh := math.Ceil(region.H * scale)
	if math.IsNaN(fw) || math.IsNaN(fh) || fw <= 0 || fh <= 0 {
		return nil, fmt.Errorf("empty region %vx%v", region.W, region.H)
	}
	if fw > maxPixels || fh > maxPixels || fw*fh > maxPixels {
		return nil, fmt.Errorf("page raster %.0fx%.0f exceeds limit", fw, fh)
	}
	w, h := int(fw), int(fh)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(img, img.Bounds(), &image.Uniform{C: Background}, image.Point{}, xdraw.Src)

	for _, l := range layers {
		p := l.panel
		x0 := int(math.Round((p.X - region.X) * scale))
		y0 := int(math.Round((p.Y - region.Y) * scale))
		pw := int(math.Round(p.Width * scale))
		ph := int(math.Round(p.Height() * scale))
		dst := image.Rect(x0, y0, x0+pw, y0+ph)
		if l.img == nil {
			xdraw.Draw(img, dst, &image.Uniform{C: placeholder}, image.Point{}, xdraw.Src)
			strokeRect(img, dst, frameColor)
			continue
		}
		xdraw.CatmullRom.Scale(img, dst, l.img, coverCrop(l.img.Bounds(), dst), xdraw.Over, nil)
	}
	return img, nil
}

// coverCrop returns the centered part of src with the aspect ratio of dst, so the image fills
// the frame without distortion.
func coverCrop(src, dst image.Rectangle) image.Rectangle {
	sw, sh := float64(src.Dx()), float64(src.Dy())
	dw, dh := float64(dst.Dx()), float64(dst.Dy())
	if sw == 0 || sh == 0 || dw == 0 || dh == 0 {
		return src
	}
	want := dw / dh
	if sw/sh > want {
		cw := int(math.Round(sh * want))
		off := (src.Dx() - cw) / 2
		return image.Rect(src.Min.X+off, src.Min.Y, src.Min.X+off+cw, src.Max.Y)
	}
	ch := int(math.Round(sw / want))
	off := (src.Dy() - ch) / 2
	return image.Rect(src.Min.X, src.Min.Y+off, src.Max.X, src.Min.Y+off+ch)
}

// strokeRect draws a 1px border just inside r.
func strokeRect(img *image.RGBA, r image.Rectangle, col color.RGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, col)
		img.SetRGBA(x, r.Max.Y-1, col)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, col)
		img.SetRGBA(r.Max.X-1, y, col)
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func renderPNG(layers []layer, region Rect, scale float64) ([]byte, int, int, error) {
	img, err := rasterize(layers, region, scale)
	if err != nil {
		return nil, 0, 0, err
	}
	data, err := encodePNG(img)
	if err != nil {
		return nil, 0, 0, err
	}
	return data, img.Bounds().Dx(), img.Bounds().Dy(), nil
}
