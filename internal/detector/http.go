/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mangaeditor/internal/apperr"
	applog "mangaeditor/internal/log"
)

// HTTP calls the comic text detection service.
type HTTP struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewHTTP returns a client for the service at baseURL. An empty token sends
// no Authorization header.
func NewHTTP(baseURL, token string) *HTTP {
	return &HTTP{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (h *HTTP) Name() string { return "comic-text-detector" }

type detectRequest struct {
	ImageURL  string `json:"image_url"`
	ImagePath string `json:"image_path,omitempty"`
}

type detectResponse struct {
	Success   bool        `json:"success"`
	TextBoxes []Detection `json:"text_boxes"`
	Error     string      `json:"error,omitempty"`
}

// Detect posts the image reference to {base}/detect_url. Transport errors,
// non-2xx statuses, malformed bodies and success=false are all reported as
// upstream errors.
func (h *HTTP) Detect(ctx context.Context, req Request) ([]Detection, error) {
	l := applog.WithOperation(applog.WithComponent("detector"), "detect_url")
	body, err := json.Marshal(detectRequest{ImageURL: req.ImageURL, ImagePath: req.ImagePath})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/detect_url", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Upstream(h.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	h.authorize(httpReq)
	start := time.Now()
	resp, err := h.client().Do(httpReq)
	if err != nil {
		return nil, apperr.Upstream(h.Name(), err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, apperr.Upstream(h.Name(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Upstream(h.Name(), fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	var out detectResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperr.Upstream(h.Name(), fmt.Errorf("decode response: %w", err))
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "detector reported failure"
		}
		return nil, apperr.Upstream(h.Name(), errors.New(msg))
	}
	l.Debug("detector responded", slog.Int("boxes", len(out.TextBoxes)), slog.Duration("took", time.Since(start)))
	return out.TextBoxes, nil
}

// Health checks {base}/health.
func (h *HTTP) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	h.authorize(req)
	resp, err := h.client().Do(req)
	if err != nil {
		return apperr.Upstream(h.Name(), err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apperr.Upstream(h.Name(), fmt.Errorf("health status %d", resp.StatusCode))
	}
	return nil
}

func (h *HTTP) authorize(r *http.Request) {
	if t := strings.TrimSpace(h.Token); t != "" {
		r.Header.Set("Authorization", "Bearer "+t)
	}
}

func (h *HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}
