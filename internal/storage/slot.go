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
	"errors"
	"fmt"
	"strings"
	"sync"

	"gostoryboard/internal/config"
)

// ErrNotFound is returned by Slot.Get when nothing is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// Slot is a minimal key/value byte store.
type Slot interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by OpenSlot.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// OpenSlot opens the slot selected by cfg.Backend.
func OpenSlot(ctx context.Context, cfg config.StorageConfig) (Slot, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendFile:
		return NewFileSlot(cfg.Dir)
	case BackendSQLite:
		return OpenSQLiteSlot(ctx, cfg.Dir)
	case BackendPostgres:
		return OpenPostgresSlot(ctx, cfg.DSN)
	case BackendRedis:
		return OpenRedisSlot(ctx, RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	case BackendMemory:
		return NewMemorySlot(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// MemorySlot keeps values in process memory.
type MemorySlot struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemorySlot() *MemorySlot { return &MemorySlot{m: map[string][]byte{}} }

func (s *MemorySlot) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemorySlot) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemorySlot) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *MemorySlot) Close() error { return nil }
