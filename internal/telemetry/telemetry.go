/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous usage events (project_created,
// ocr_run, export) and crash reports. Nothing is sent unless opted in and an
// endpoint is configured.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	applog "mangaeditor/internal/log"
	"mangaeditor/internal/version"
)

// Environment variables read by FromEnv.
const (
	EnvOptIn     = "MGE_TELEMETRY_OPT_IN"
	EnvEventsURL = "MGE_TELEMETRY_URL"
	EnvCrashURL  = "MGE_CRASH_UPLOAD_URL"
	EnvTimeoutMs = "MGE_TELEMETRY_TIMEOUT_MS"
	EnvDebug     = "MGE_TELEMETRY_DEBUG"
)

// Config holds endpoints and the opt-in flag.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv(EnvOptIn)),
		EventsURL:    strings.TrimSpace(os.Getenv(EnvEventsURL)),
		CrashURL:     strings.TrimSpace(os.Getenv(EnvCrashURL)),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv(EnvDebug) != "",
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(os.Getenv(EnvTimeoutMs))); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// record is the JSON body of one event.
type record struct {
	Name    string         `json:"name"`
	TS      string         `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// Client queues events on a bounded channel and sends them from one
// goroutine. Events are dropped when the queue is full or a send fails.
type Client struct {
	cfg    Config
	log    *slog.Logger
	cli    *http.Client
	q      chan record
	wg     sync.WaitGroup
	once   sync.Once
	closed chan struct{}
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Default returns the package client, creating it from the environment on first use.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// SetDefault replaces the package client and closes the previous one.
func SetDefault(c *Client) {
	defaultMu.Lock()
	old := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	if old != nil && old != c {
		old.Close()
	}
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan record, 64),
		closed: make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

// Enabled reports whether events will be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues a named event. props must not carry user content.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	rec := record{
		Name:    name,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if len(props) > 0 {
		rec.Props = make(map[string]any, len(props))
		for k, v := range props {
			rec.Props[k] = v
		}
	}
	select {
	case c.q <- rec:
	case <-c.closed:
	default:
	}
}

// Event sends through the default client.
func Event(name string, props map[string]any) { Default().Event(name, props) }

// Flush waits until the queue is empty, ctx is done or 500ms pass.
func (c *Client) Flush(ctx context.Context) {
	deadline := time.Now().Add(500 * time.Millisecond)
	for len(c.q) > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Close stops the sender goroutine and waits for it.
func (c *Client) Close() {
	c.once.Do(func() { close(c.closed) })
	c.wg.Wait()
}

func (c *Client) loop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.closed:
			return
		case rec := <-c.q:
			buf, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			c.post(c.cfg.EventsURL, "application/json", buf, "telemetry event")
		}
	}
}

func (c *Client) post(url, contentType string, body []byte, what string) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "mangaeditor/"+version.String())
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug(what+" failed", slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug(what+" sent", slog.Int("status", resp.StatusCode))
	}
}

// UploadCrash posts a crash report in the background when opted in.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	b := append([]byte(nil), report...)
	go c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", b, "crash upload")
}

// UploadCrash uses the default client.
func UploadCrash(report []byte) { Default().UploadCrash(report) }
