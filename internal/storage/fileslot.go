/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	applog "gostoryboard/internal/log"
)

const (
	BackupsDirName = "backups"

	// DefaultMaxBackups bounds the backup files kept per key; every save adds one.
	DefaultMaxBackups = 10

	backupStamp = "20060102-150405.000"
)

// FileSlot stores each key as <Dir>/<key>.json. Writes go to a temp file that is renamed over
// the target, and the previous version is copied into <Dir>/backups first. Reads fall back to
// the newest backup holding valid JSON when the primary file is missing or damaged.
type FileSlot struct {
	Dir        string
	MaxBackups int
}

// NewFileSlot creates dir (and its backups folder) if needed.
func NewFileSlot(dir string) (*FileSlot, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileSlot{Dir: dir, MaxBackups: DefaultMaxBackups}, nil
}

func (s *FileSlot) path(key string) string { return filepath.Join(s.Dir, key+".json") }

func (s *FileSlot) backupDir() string { return filepath.Join(s.Dir, BackupsDirName) }

func (s *FileSlot) Get(_ context.Context, key string) ([]byte, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "file_get").With(slog.String("key", key))
	b, err := os.ReadFile(s.path(key))
	if err == nil && json.Valid(b) {
		return b, nil
	}
	primaryMissing := errors.Is(err, os.ErrNotExist)
	if err == nil {
		err = errors.New("primary file holds invalid JSON")
	}
	bb, bname, berr := s.latestBackup(key)
	if berr != nil {
		if primaryMissing && errors.Is(berr, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w; backup attempt: %v", s.path(key), err, berr)
	}
	l.Warn("primary unreadable, using backup", slog.String("backup", bname), slog.Any("err", err))
	return bb, nil
}

func (s *FileSlot) Put(_ context.Context, key string, value []byte) error {
	target := s.path(key)
	if err := os.MkdirAll(s.backupDir(), 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(target); statErr == nil {
		bpath := filepath.Join(s.backupDir(), fmt.Sprintf("%s.json.%s.bak", key, time.Now().Format(backupStamp)))
		if err := copyFile(target, bpath); err != nil {
			return fmt.Errorf("backup current file: %w", err)
		}
		s.pruneBackups(key)
	}
	temp := filepath.Join(s.Dir, fmt.Sprintf(".%s.tmp-%d-%d", key, os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, value); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(temp, target); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", target, err)
	}
	return nil
}

// Delete removes the primary file and every backup of key.
func (s *FileSlot) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	for _, b := range s.backups(key) {
		if err := os.Remove(b); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove backup: %w", err)
		}
	}
	return nil
}

func (s *FileSlot) Close() error { return nil }

// backups lists backup paths of key, oldest first.
func (s *FileSlot) backups(key string) []string {
	ents, err := os.ReadDir(s.backupDir())
	if err != nil {
		return nil
	}
	prefix := key + ".json."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(s.backupDir(), name))
		}
	}
	sort.Strings(out)
	return out
}

func (s *FileSlot) latestBackup(key string) ([]byte, string, error) {
	list := s.backups(key)
	if len(list) == 0 {
		return nil, "", ErrNotFound
	}
	var lastErr error
	for i := len(list) - 1; i >= 0; i-- {
		b, err := os.ReadFile(list[i])
		if err != nil {
			lastErr = err
			continue
		}
		if !json.Valid(b) {
			lastErr = fmt.Errorf("%s holds invalid JSON", filepath.Base(list[i]))
			continue
		}
		return b, filepath.Base(list[i]), nil
	}
	return nil, "", lastErr
}

func (s *FileSlot) pruneBackups(key string) {
	limit := s.MaxBackups
	if limit <= 0 {
		limit = DefaultMaxBackups
	}
	list := s.backups(key)
	for len(list) > limit {
		_ = os.Remove(list[0])
		list = list[1:]
	}
}

// writeFileSync writes data and fsyncs before closing.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
