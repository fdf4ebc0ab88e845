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
	"embed"
	"fmt"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"mangaeditor/internal/apperr"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	schemaProjectPatch = "project_patch"
	schemaTextBoxPatch = "textbox_patch"
	schemaTextBoxNew   = "textbox_new"
	schemaHitTest      = "hittest"
	schemaExport       = "export"
)

type schemas struct {
	byName map[string]*gojsonschema.Schema
}

func loadSchemas() (*schemas, error) {
	names := []string{schemaProjectPatch, schemaTextBoxPatch, schemaTextBoxNew, schemaHitTest, schemaExport}
	s := &schemas{byName: make(map[string]*gojsonschema.Schema, len(names))}
	for _, n := range names {
		raw, err := schemaFS.ReadFile("schemas/" + n + ".json")
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", n, err)
		}
		sc, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", n, err)
		}
		s.byName[n] = sc
	}
	return s, nil
}

// validate checks body against the named schema and reports every violation
// in one validation error.
func (s *schemas) validate(name string, body []byte) error {
	sc, ok := s.byName[name]
	if !ok {
		return apperr.Internal("unknown schema "+name, nil)
	}
	res, err := sc.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return apperr.Validationf("invalid JSON body: %v", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return apperr.Validationf("%s", strings.Join(msgs, "; "))
}
