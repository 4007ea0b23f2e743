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

	"github.com/jung-kurt/gofpdf"

	"gostoryboard/internal/version"
)

// renderPDF produces a single-page PDF whose media box matches the export region in points.
// The page content is the same raster as the PNG export, embedded at full density.
func renderPDF(layers []layer, region Rect, scale float64, title string) ([]byte, int, int, error) {
	img, err := rasterize(layers, region, scale)
	if err != nil {
		return nil, 0, 0, err
	}
	raw, err := encodePNG(img)
	if err != nil {
		return nil, 0, 0, err
	}

	size := gofpdf.SizeType{Wd: region.W, Ht: region.H}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size})
	pdf.SetTitle(title, true)
	pdf.SetCreator("gostoryboard "+version.String(), true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPageFormat("P", size)

	opt := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("page", opt, bytes.NewReader(raw))
	pdf.ImageOptions("page", 0, 0, region.W, region.H, false, opt, 0, "")
	if err := pdf.Error(); err != nil {
		return nil, 0, 0, fmt.Errorf("build pdf: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, 0, 0, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), img.Bounds().Dx(), img.Bounds().Dy(), nil
}
