/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"mangaeditor/internal/domain"
	"mangaeditor/internal/ocr"
)

// Client is a typed HTTP client for the API, used by the CLI and tests.
type Client struct {
	BaseURL string
	client  *http.Client
}

// NewClient normalizes baseURL (a trailing slash is dropped).
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("server: %d %s", e.Status, e.Message) }

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, dest any) error {
	var body io.Reader
	ct := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body, ct = bytes.NewReader(b), "application/json"
	}
	return c.do(ctx, method, path, ct, body, dest)
}

// CreateProject uploads an image file and creates a project named name.
func (c *Client) CreateProject(ctx context.Context, name, filename string, image io.Reader) (domain.Project, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("name", name); err != nil {
		return domain.Project{}, err
	}
	part, err := mw.CreateFormFile("image", filepath.Base(filename))
	if err != nil {
		return domain.Project{}, err
	}
	if _, err := io.Copy(part, image); err != nil {
		return domain.Project{}, err
	}
	if err := mw.Close(); err != nil {
		return domain.Project{}, err
	}
	var p domain.Project
	err = c.do(ctx, http.MethodPost, "/api/projects", mw.FormDataContentType(), &buf, &p)
	return p, err
}

func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var list []domain.Project
	if err := c.doJSON(ctx, http.MethodGet, "/api/projects", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) GetProject(ctx context.Context, id int64) (domain.Project, error) {
	var p domain.Project
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%d", id), nil, &p)
	return p, err
}

func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/projects/%d", id), nil, nil)
}

// OCRResult mirrors the OCR response.
type OCRResult struct {
	TextBoxes    []domain.TextBox `json:"textBoxes"`
	DetectorUsed ocr.Source       `json:"detectorUsed"`
	Detector     string           `json:"detector"`
}

func (c *Client) RunOCR(ctx context.Context, projectID int64) (OCRResult, error) {
	var res OCRResult
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/projects/%d/ocr", projectID), nil, &res)
	return res, err
}

func (c *Client) ListTextBoxes(ctx context.Context, projectID int64) ([]domain.TextBox, error) {
	var boxes []domain.TextBox
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%d/textboxes", projectID), nil, &boxes); err != nil {
		return nil, err
	}
	return boxes, nil
}

func (c *Client) UpdateTextBox(ctx context.Context, id int64, patch domain.TextBoxPatch) (domain.TextBox, error) {
	var b domain.TextBox
	err := c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/api/textboxes/%d", id), patch, &b)
	return b, err
}

func (c *Client) Undo(ctx context.Context, id int64) (domain.TextBox, error) {
	var b domain.TextBox
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/textboxes/%d/undo", id), nil, &b)
	return b, err
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Message: resp.Status}
	}
	return strings.TrimSpace(string(b)), nil
}
