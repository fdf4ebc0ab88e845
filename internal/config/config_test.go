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
	"os"
	"path/filepath"
	"testing"
	"time"
)

type memTokens struct{ m map[string]string }

func (s *memTokens) Get(service, key string) (string, error) { return s.m[service+"/"+key], nil }
func (s *memTokens) Set(service, key, value string) error {
	s.m[service+"/"+key] = value
	return nil
}
func (s *memTokens) Delete(service, key string) error {
	delete(s.m, service+"/"+key)
	return nil
}

// isolate points the config file at a temp dir and stubs the keyring.
func isolate(t *testing.T) *memTokens {
	t.Helper()
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "config.yaml"))
	ts := &memTokens{m: map[string]string{}}
	old := tokenStore
	tokenStore = ts
	t.Cleanup(func() { tokenStore = old })
	return ts
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "" {
		t.Fatalf("expected empty token, got %q", tok)
	}
	if cfg.Store.Driver != "memory" || cfg.Server.MaxUploadMB != 10 {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if got := cfg.Detector.Timeout(); got != 8*time.Second {
		t.Fatalf("Detector.Timeout() = %v, want 8s", got)
	}
}

func TestEnvOverridesDetector(t *testing.T) {
	isolate(t)
	t.Setenv(EnvDetectorURL, "http://detector.test:5001")
	t.Setenv(EnvDetectorTimeout, "2500")
	t.Setenv(EnvDetectorTess, "yes")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Detector.URL != "http://detector.test:5001" || cfg.Detector.Timeout() != 2500*time.Millisecond || !cfg.Detector.Tesseract {
		t.Fatalf("detector overrides not applied: %#v", cfg.Detector)
	}
}

func TestEnvAddrBeatsPort(t *testing.T) {
	isolate(t)
	t.Setenv(EnvPort, "7000")
	t.Setenv(EnvAddr, "127.0.0.1:9000")
	cfg, _, _ := Load()
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("Server.Addr = %q", cfg.Server.Addr)
	}
}

func TestSaveAndLoadRoundTripFile(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = "/tmp/x.sqlite"
	cfg.Logging.Level = "debug"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path, _ := ConfigPath()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	got, _, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Store.Driver != "sqlite" || got.Store.SQLitePath != "/tmp/x.sqlite" || got.Logging.Level != "debug" {
		t.Fatalf("file values not merged: %#v", got)
	}
}

func TestTokenLivesInKeyring(t *testing.T) {
	ts := isolate(t)
	if err := SaveToken("s3cret"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	if ts.m[keyringService+"/"+keyringToken] != "s3cret" {
		t.Fatalf("token not stored in keyring stub")
	}
	_, tok, _ := Load()
	if tok != "s3cret" {
		t.Fatalf("Load token = %q", tok)
	}
	if err := SaveToken(""); err != nil {
		t.Fatalf("SaveToken clear: %v", err)
	}
	if _, ok := ts.m[keyringService+"/"+keyringToken]; ok {
		t.Fatalf("token not removed")
	}
}

func TestMergeKeepsDefaultsForEmptyFields(t *testing.T) {
	dst := Defaults()
	src := AppConfig{Detector: DetectorConfig{URL: " http://other:1 "}}
	mergeInto(&dst, &src)
	if dst.Detector.URL != "http://other:1" {
		t.Fatalf("URL not trimmed/merged: %q", dst.Detector.URL)
	}
	if dst.Detector.TimeoutMs != DefaultDetectorTimeoutMs || dst.Server.Addr != ":5000" {
		t.Fatalf("defaults lost: %#v", dst)
	}
}
