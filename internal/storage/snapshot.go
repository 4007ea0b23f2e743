/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gostoryboard/internal/domain"
)

// CrashSnapshot writes st to <dir>/crash-snapshot-<stamp>.json and returns the path.
// The file uses the regular persisted layout, so it can be loaded back through a FileSlot.
func CrashSnapshot(dir string, st domain.State) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	b, err := Encode(st)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	name := fmt.Sprintf("crash-snapshot-%s.json", time.Now().Format("20060102-150405.000"))
	p := filepath.Join(dir, name)
	tmp := p + ".tmp"
	if err := writeFileSync(tmp, b); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize snapshot: %w", err)
	}
	return p, nil
}
