/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration stored as YAML in the user's config directory.
// Environment variables override file values at runtime and are never written back.
// The Gemini API key is not part of it; see APIKey and SaveAPIKey.
type AppConfig struct {
	ConfigVersion int              `yaml:"config_version"`
	General       GeneralConfig    `yaml:"general"`
	Server        ServerConfig     `yaml:"server"`
	Generation    GenerationConfig `yaml:"generation"`
	Storage       StorageConfig    `yaml:"storage"`
	Export        ExportConfig     `yaml:"export"`
	Logging       LoggingConfig    `yaml:"logging"`
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
	// CrashDir receives crash reports and state snapshots. Empty means <config dir>/crash.
	CrashDir string `yaml:"crash_dir"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type GenerationConfig struct {
	Model             string `yaml:"model"`
	ImageSize         string `yaml:"image_size"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	StylePrompt       string `yaml:"style_prompt"`
}

// StorageConfig selects the persistence backend.
// Backend is one of file, sqlite, postgres, redis or memory.
type StorageConfig struct {
	Backend       string `yaml:"backend"`
	Dir           string `yaml:"dir"`
	DSN           string `yaml:"dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Key           string `yaml:"key"`
	TimeoutMs     int    `yaml:"timeout_ms"`
}

type ExportConfig struct {
	Dir    string  `yaml:"dir"`
	Format string  `yaml:"format"`
	Scale  float64 `yaml:"scale"`
	Margin float64 `yaml:"margin"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Server:        ServerConfig{Addr: "127.0.0.1:8080", AllowedOrigins: []string{"*"}},
		Generation: GenerationConfig{
			Model:             "gemini-3-pro-image-preview",
			ImageSize:         "1K",
			RequestsPerMinute: 10,
		},
		Storage: StorageConfig{Backend: "file", Key: "owb_project_v6", TimeoutMs: 5000},
		Export:  ExportConfig{Format: "png", Scale: 1.5, Margin: 50},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Timeout returns the per-operation storage timeout.
func (s StorageConfig) Timeout() time.Duration {
	if s.TimeoutMs <= 0 {
		return time.Duration(Defaults().Storage.TimeoutMs) * time.Millisecond
	}
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// Env var names used as overrides.
const (
	EnvConfigPath     = "GSB_CONFIG"
	EnvAPIKey         = "GSB_API_KEY"
	EnvTelemetryOptIn = "GSB_TELEMETRY_OPT_IN"
	EnvCrashDir       = "GSB_CRASH_DIR"
	EnvServerAddr     = "GSB_SERVER_ADDR"
	EnvModel          = "GSB_GENERATION_MODEL"
	EnvRatePerMinute  = "GSB_GENERATION_RPM"
	EnvStorageBackend = "GSB_STORAGE_BACKEND"
	EnvStorageDir     = "GSB_STORAGE_DIR"
	EnvStorageDSN     = "GSB_STORAGE_DSN"
	EnvRedisAddr      = "GSB_REDIS_ADDR"
	EnvRedisPassword  = "GSB_REDIS_PASSWORD"
	EnvRedisDB        = "GSB_REDIS_DB"
	EnvExportDir      = "GSB_EXPORT_DIR"
	EnvExportFormat   = "GSB_EXPORT_FORMAT"
	EnvLogLevel       = "GSB_LOG_LEVEL"
	EnvLogFormat      = "GSB_LOG_FORMAT"
	EnvLogSource      = "GSB_LOG_SOURCE"
	EnvLogFile        = "GSB_LOG_FILE"
)

// envBinding ties a dotted config key to its environment variable.
type envBinding struct {
	key   string
	env   string
	apply func(cfg *AppConfig, v string)
}

var envBindings = []envBinding{
	{"general.telemetry_opt_in", EnvTelemetryOptIn, func(c *AppConfig, v string) { c.General.TelemetryOptIn = truthy(v) }},
	{"general.crash_dir", EnvCrashDir, func(c *AppConfig, v string) { c.General.CrashDir = v }},
	{"server.addr", EnvServerAddr, func(c *AppConfig, v string) { c.Server.Addr = v }},
	{"generation.model", EnvModel, func(c *AppConfig, v string) { c.Generation.Model = v }},
	{"generation.requests_per_minute", EnvRatePerMinute, func(c *AppConfig, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.Generation.RequestsPerMinute = n
		}
	}},
	{"storage.backend", EnvStorageBackend, func(c *AppConfig, v string) { c.Storage.Backend = strings.ToLower(v) }},
	{"storage.dir", EnvStorageDir, func(c *AppConfig, v string) { c.Storage.Dir = v }},
	{"storage.dsn", EnvStorageDSN, func(c *AppConfig, v string) { c.Storage.DSN = v }},
	{"storage.redis_addr", EnvRedisAddr, func(c *AppConfig, v string) { c.Storage.RedisAddr = v }},
	{"storage.redis_password", EnvRedisPassword, func(c *AppConfig, v string) { c.Storage.RedisPassword = v }},
	{"storage.redis_db", EnvRedisDB, func(c *AppConfig, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.Storage.RedisDB = n
		}
	}},
	{"export.dir", EnvExportDir, func(c *AppConfig, v string) { c.Export.Dir = v }},
	{"export.format", EnvExportFormat, func(c *AppConfig, v string) { c.Export.Format = strings.ToLower(v) }},
	{"logging.level", EnvLogLevel, func(c *AppConfig, v string) { c.Logging.Level = strings.ToLower(v) }},
	{"logging.format", EnvLogFormat, func(c *AppConfig, v string) { c.Logging.Format = strings.ToLower(v) }},
	{"logging.source", EnvLogSource, func(c *AppConfig, v string) { c.Logging.Source = truthy(v) }},
	{"logging.file", EnvLogFile, func(c *AppConfig, v string) { c.Logging.File = v }},
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// BaseDir returns the per-user application directory.
func BaseDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoStoryboard")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoStoryboard")
	default:
		home := os.Getenv("HOME")
		if home == "" {
			return "", errors.New("cannot resolve config directory: HOME is not set")
		}
		base = filepath.Join(home, ".config", "gostoryboard")
	}
	return base, nil
}

// ConfigPath returns the config file location, honouring GSB_CONFIG.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the config file if present, merges it over the defaults, applies environment
// overrides and fills in directory defaults. A malformed file is reported but the
// defaults are still returned.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	var parseErr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			parseErr = fmt.Errorf("parse %s: %w", path, err)
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	fillDirs(&cfg, filepath.Dir(path))
	return cfg, parseErr
}

// Save writes cfg to the config file with user-only permissions.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func fillDirs(cfg *AppConfig, base string) {
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = filepath.Join(base, "data")
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = filepath.Join(base, "exports")
	}
	if cfg.General.CrashDir == "" {
		cfg.General.CrashDir = filepath.Join(base, "crash")
	}
}

func mergeInto(dst, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	setStr(&dst.General.CrashDir, src.General.CrashDir)

	setStr(&dst.Server.Addr, src.Server.Addr)
	if len(src.Server.AllowedOrigins) > 0 {
		dst.Server.AllowedOrigins = append([]string(nil), src.Server.AllowedOrigins...)
	}

	setStr(&dst.Generation.Model, src.Generation.Model)
	setStr(&dst.Generation.ImageSize, src.Generation.ImageSize)
	setStr(&dst.Generation.StylePrompt, src.Generation.StylePrompt)
	if src.Generation.RequestsPerMinute > 0 {
		dst.Generation.RequestsPerMinute = src.Generation.RequestsPerMinute
	}

	if b := strings.ToLower(strings.TrimSpace(src.Storage.Backend)); b != "" {
		dst.Storage.Backend = b
	}
	setStr(&dst.Storage.Dir, src.Storage.Dir)
	setStr(&dst.Storage.DSN, src.Storage.DSN)
	setStr(&dst.Storage.RedisAddr, src.Storage.RedisAddr)
	setStr(&dst.Storage.RedisPassword, src.Storage.RedisPassword)
	setStr(&dst.Storage.Key, src.Storage.Key)
	dst.Storage.RedisDB = src.Storage.RedisDB
	if src.Storage.TimeoutMs > 0 {
		dst.Storage.TimeoutMs = src.Storage.TimeoutMs
	}

	setStr(&dst.Export.Dir, src.Export.Dir)
	if f := strings.ToLower(strings.TrimSpace(src.Export.Format)); f != "" {
		dst.Export.Format = f
	}
	if src.Export.Scale > 0 {
		dst.Export.Scale = src.Export.Scale
	}
	if src.Export.Margin > 0 {
		dst.Export.Margin = src.Export.Margin
	}

	if l := strings.ToLower(strings.TrimSpace(src.Logging.Level)); l != "" {
		dst.Logging.Level = l
	}
	if f := strings.ToLower(strings.TrimSpace(src.Logging.Format)); f != "" {
		dst.Logging.Format = f
	}
	dst.Logging.Source = src.Logging.Source
	setStr(&dst.Logging.File, src.Logging.File)
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	for _, b := range envBindings {
		if v := strings.TrimSpace(os.Getenv(b.env)); v != "" {
			b.apply(cfg, v)
		}
	}
}

// EnvOverrideFor reports the environment variable currently overriding the dotted key.
func EnvOverrideFor(key string) (string, bool) {
	for _, b := range envBindings {
		if b.key == key && strings.TrimSpace(os.Getenv(b.env)) != "" {
			return b.env, true
		}
	}
	return "", false
}

// Keys lists the dotted keys that can be overridden from the environment.
func Keys() []string {
	out := make([]string, 0, len(envBindings))
	for _, b := range envBindings {
		out = append(out, b.key)
	}
	return out
}
