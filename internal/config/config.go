/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables are read-only overrides applied after the file is merged.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int            `yaml:"config_version"`
	General       GeneralConfig  `yaml:"general"`
	Server        ServerConfig   `yaml:"server"`
	Store         StoreConfig    `yaml:"store"`
	Detector      DetectorConfig `yaml:"detector"`
	Logging       LoggingConfig  `yaml:"logging"`
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	DataDir        string `yaml:"data_dir"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	UploadDir   string `yaml:"upload_dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// StoreConfig selects the text-region repository backend.
// Driver is one of "memory", "sqlite" or "postgres".
type StoreConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// DetectorConfig describes the external text detector and its helpers.
// The API token is not stored on disk; it lives in the OS keychain.
type DetectorConfig struct {
	URL       string `yaml:"url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	Tesseract bool   `yaml:"tesseract"`
	RedisURL  string `yaml:"redis_url"`
	CacheTTLs int    `yaml:"cache_ttl_s"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// DefaultDetectorTimeoutMs bounds a single detector call.
const DefaultDetectorTimeoutMs = 8000

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, DataDir: "data"},
		Server:        ServerConfig{Addr: ":5000", UploadDir: "uploads", MaxUploadMB: 10},
		Store:         StoreConfig{Driver: "memory", SQLitePath: filepath.Join("data", "mangaeditor.sqlite")},
		Detector:      DetectorConfig{URL: "http://localhost:5001", TimeoutMs: DefaultDetectorTimeoutMs, CacheTTLs: 3600},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile       = "MGE_CONFIG"
	EnvTelemetryOptIn   = "MGE_TELEMETRY_OPT_IN"
	EnvDataDir          = "MGE_DATA_DIR"
	EnvAddr             = "MGE_ADDR"
	EnvPort             = "PORT"
	EnvUploadDir        = "MGE_UPLOAD_DIR"
	EnvMaxUploadMB      = "MGE_MAX_UPLOAD_MB"
	EnvStoreDriver      = "MGE_STORE_DRIVER"
	EnvSQLitePath       = "MGE_SQLITE_PATH"
	EnvPostgresDSN      = "DATABASE_URL"
	EnvDetectorURL      = "MGE_DETECTOR_URL"
	EnvDetectorTimeout  = "MGE_DETECTOR_TIMEOUT_MS"
	EnvDetectorTess     = "MGE_DETECTOR_TESSERACT"
	EnvDetectorRedisURL = "MGE_REDIS_URL"
	EnvDetectorCacheTTL = "MGE_DETECTOR_CACHE_TTL_S"
	EnvLogLevel         = "MGE_LOG_LEVEL"
	EnvLogFormat        = "MGE_LOG_FORMAT"
	EnvLogSource        = "MGE_LOG_SOURCE"
	EnvLogFile          = "MGE_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "MangaEditor"
	keyringToken   = "detector_token"
)

// TokenStore abstracts the OS keyring so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

var tokenStore TokenStore = osKeyring{}

// osKeyring implements TokenStore using github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// ConfigPath returns the per-user config file path, or MGE_CONFIG when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "MangaEditor")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "MangaEditor")
	default:
		base = filepath.Join(os.Getenv("HOME"), ".config", "mangaeditor")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the config file (if present), applies defaults, and merges environment overrides.
// The detector token is read from the keyring and returned separately; a missing token is not an error.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", err
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// SaveToken stores the detector token in the OS keyring; an empty token removes it.
func SaveToken(token string) error {
	if strings.TrimSpace(token) == "" {
		err := tokenStore.Delete(keyringService, keyringToken)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	return tokenStore.Set(keyringService, keyringToken, token)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	setStr(&dst.General.DataDir, src.General.DataDir)

	setStr(&dst.Server.Addr, src.Server.Addr)
	setStr(&dst.Server.UploadDir, src.Server.UploadDir)
	if src.Server.MaxUploadMB > 0 {
		dst.Server.MaxUploadMB = src.Server.MaxUploadMB
	}

	if s := strings.ToLower(strings.TrimSpace(src.Store.Driver)); s != "" {
		dst.Store.Driver = s
	}
	setStr(&dst.Store.SQLitePath, src.Store.SQLitePath)
	setStr(&dst.Store.PostgresDSN, src.Store.PostgresDSN)

	setStr(&dst.Detector.URL, src.Detector.URL)
	if src.Detector.TimeoutMs > 0 {
		dst.Detector.TimeoutMs = src.Detector.TimeoutMs
	}
	dst.Detector.Tesseract = src.Detector.Tesseract
	setStr(&dst.Detector.RedisURL, src.Detector.RedisURL)
	if src.Detector.CacheTTLs > 0 {
		dst.Detector.CacheTTLs = src.Detector.CacheTTLs
	}

	if s := strings.ToLower(strings.TrimSpace(src.Logging.Level)); s != "" {
		dst.Logging.Level = s
	}
	if s := strings.ToLower(strings.TrimSpace(src.Logging.Format)); s != "" {
		dst.Logging.Format = s
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
	if v, ok := lookup(EnvTelemetryOptIn); ok {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v, ok := lookup(EnvDataDir); ok {
		cfg.General.DataDir = v
	}
	if v, ok := lookup(EnvPort); ok {
		cfg.Server.Addr = ":" + v
	}
	if v, ok := lookup(EnvAddr); ok {
		cfg.Server.Addr = v
	}
	if v, ok := lookup(EnvUploadDir); ok {
		cfg.Server.UploadDir = v
	}
	if v, ok := lookup(EnvMaxUploadMB); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.MaxUploadMB = n
		}
	}
	if v, ok := lookup(EnvStoreDriver); ok {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v, ok := lookup(EnvSQLitePath); ok {
		cfg.Store.SQLitePath = v
	}
	if v, ok := lookup(EnvPostgresDSN); ok {
		cfg.Store.PostgresDSN = v
	}
	if v, ok := lookup(EnvDetectorURL); ok {
		cfg.Detector.URL = v
	}
	if v, ok := lookup(EnvDetectorTimeout); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Detector.TimeoutMs = n
		}
	}
	if v, ok := lookup(EnvDetectorTess); ok {
		cfg.Detector.Tesseract = parseBool(v)
	}
	if v, ok := lookup(EnvDetectorRedisURL); ok {
		cfg.Detector.RedisURL = v
	}
	if v, ok := lookup(EnvDetectorCacheTTL); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Detector.CacheTTLs = n
		}
	}
	if v, ok := lookup(EnvLogLevel); ok {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvLogFormat); ok {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v, ok := lookup(EnvLogSource); ok {
		cfg.Logging.Source = parseBool(v)
	}
	if v, ok := lookup(EnvLogFile); ok {
		cfg.Logging.File = v
	}
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

// Timeout returns the detector timeout, falling back to the default for non-positive values.
func (d DetectorConfig) Timeout() time.Duration {
	if d.TimeoutMs <= 0 {
		return DefaultDetectorTimeoutMs * time.Millisecond
	}
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// CacheTTL returns the detection cache lifetime.
func (d DetectorConfig) CacheTTL() time.Duration {
	if d.CacheTTLs <= 0 {
		return time.Hour
	}
	return time.Duration(d.CacheTTLs) * time.Second
}

// MaxUploadBytes returns the upload cap in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	mb := s.MaxUploadMB
	if mb <= 0 {
		mb = 10
	}
	return int64(mb) << 20
}
