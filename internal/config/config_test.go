/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(EnvConfigPath, filepath.Join(dir, "config.yaml"))
	for _, b := range envBindings {
		t.Setenv(b.env, "")
	}
	t.Setenv(EnvAPIKey, "")
	return dir
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	dir := isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Storage.Backend != "file" || cfg.Storage.Key != "owb_project_v6" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Storage.Dir != filepath.Join(dir, "data") || cfg.Export.Dir != filepath.Join(dir, "exports") {
		t.Fatalf("directory defaults not derived from config location: %+v %+v", cfg.Storage, cfg.Export)
	}
	if cfg.Generation.Model != "gemini-3-pro-image-preview" || cfg.Export.Scale != 1.5 {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Generation, cfg.Export)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.Dir = "/srv/storyboard"
	cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}
	cfg.General.TelemetryOptIn = true
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Storage.Backend != "sqlite" || got.Storage.Dir != "/srv/storyboard" || !got.General.TelemetryOptIn {
		t.Fatalf("values lost in round trip: %+v", got)
	}
	if len(got.Server.AllowedOrigins) != 1 || got.Server.AllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("origins lost: %v", got.Server.AllowedOrigins)
	}
}

func TestMalformedFileFallsBackToDefaults(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("storage: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg.Storage.Backend != "file" {
		t.Fatalf("defaults should survive a bad file: %+v", cfg.Storage)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvStorageBackend, "Redis")
	t.Setenv(EnvRedisAddr, "cache:6379")
	t.Setenv(EnvRedisDB, "3")
	t.Setenv(EnvTelemetryOptIn, "yes")
	t.Setenv(EnvLogLevel, "ERROR")
	t.Setenv(EnvLogSource, "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Storage.Backend != "redis" || cfg.Storage.RedisAddr != "cache:6379" || cfg.Storage.RedisDB != 3 {
		t.Fatalf("storage overrides not applied: %+v", cfg.Storage)
	}
	if !cfg.General.TelemetryOptIn || cfg.Logging.Level != "error" || !cfg.Logging.Source {
		t.Fatalf("overrides not applied: %+v %+v", cfg.General, cfg.Logging)
	}
	if env, ok := EnvOverrideFor("storage.redis_addr"); !ok || env != EnvRedisAddr {
		t.Fatalf("EnvOverrideFor = %q, %v", env, ok)
	}
	if _, ok := EnvOverrideFor("export.dir"); ok {
		t.Fatalf("export.dir is not overridden")
	}
}

func TestMergeKeepsDefaultsForEmptyFields(t *testing.T) {
	dst := Defaults()
	src := AppConfig{Logging: LoggingConfig{Level: " DEBUG ", Source: true}}
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "console" || !dst.Logging.Source {
		t.Fatalf("logging not merged correctly: %#v", dst.Logging)
	}
	if dst.Storage.Key != "owb_project_v6" || dst.Generation.RequestsPerMinute != 10 {
		t.Fatalf("empty file fields must not clobber defaults")
	}
}

type memTokens map[string]string

func (m memTokens) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}
func (m memTokens) Set(service, key, value string) error { m[service+"/"+key] = value; return nil }
func (m memTokens) Delete(service, key string) error {
	if _, ok := m[service+"/"+key]; !ok {
		return keyring.ErrNotFound
	}
	delete(m, service+"/"+key)
	return nil
}

func TestAPIKeyPrecedence(t *testing.T) {
	isolate(t)
	store := memTokens{}
	t.Cleanup(SetTokenStore(store))

	if k, err := APIKey(); err != nil || k != "" {
		t.Fatalf("missing key should be empty without error: %q %v", k, err)
	}
	if err := SaveAPIKey("from-keychain"); err != nil {
		t.Fatalf("SaveAPIKey: %v", err)
	}
	if k, _ := APIKey(); k != "from-keychain" {
		t.Fatalf("expected keychain key, got %q", k)
	}
	t.Setenv(EnvAPIKey, "from-env")
	if k, _ := APIKey(); k != "from-env" {
		t.Fatalf("env must win, got %q", k)
	}
	if err := SaveAPIKey(""); err != nil {
		t.Fatalf("clearing key: %v", err)
	}
	if err := SaveAPIKey(""); err != nil {
		t.Fatalf("clearing an absent key must not fail: %v", err)
	}
}
