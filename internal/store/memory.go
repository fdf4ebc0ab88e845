/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package store

import (
	"context"
	"sort"
	"sync"

	"mangaeditor/internal/apperr"
	"mangaeditor/internal/domain"
)

// Memory is a process-local Repository. Every operation runs under one
// mutex, so each call is atomic with respect to all others.
type Memory struct {
	mu        sync.Mutex
	now       Clock
	nextProj  int64
	nextBox   int64
	projects  map[int64]domain.Project
	boxes     map[int64]domain.TextBox
	byProject map[int64]map[int64]struct{}
}

// NewMemory returns an empty store. A nil clock uses the system clock.
func NewMemory(clock Clock) *Memory {
	if clock == nil {
		clock = systemClock
	}
	return &Memory{
		now:       clock,
		projects:  map[int64]domain.Project{},
		boxes:     map[int64]domain.TextBox{},
		byProject: map[int64]map[int64]struct{}{},
	}
}

func (m *Memory) CreateProject(_ context.Context, in domain.NewProject) (domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := in.Build(m.nextProj+1, m.now())
	if err != nil {
		return domain.Project{}, err
	}
	m.nextProj++
	m.projects[p.ID] = p
	m.byProject[p.ID] = map[int64]struct{}{}
	return p, nil
}

func (m *Memory) GetProject(_ context.Context, id int64) (domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return domain.Project{}, apperr.NotFound("project", id)
	}
	return p, nil
}

func (m *Memory) ListProjects(_ context.Context) ([]domain.Project, error) {
	m.mu.Lock()
	out := make([]domain.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) UpdateProject(_ context.Context, id int64, patch domain.ProjectPatch) (domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return domain.Project{}, apperr.NotFound("project", id)
	}
	p, err := patch.Apply(p, m.now())
	if err != nil {
		return domain.Project{}, err
	}
	m.projects[id] = p
	return p, nil
}

// DeleteProject removes the project and its boxes under the store lock.
func (m *Memory) DeleteProject(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return apperr.NotFound("project", id)
	}
	for boxID := range m.byProject[id] {
		delete(m.boxes, boxID)
	}
	delete(m.byProject, id)
	delete(m.projects, id)
	return nil
}

func (m *Memory) CreateTextBox(_ context.Context, in domain.NewTextBox) (domain.TextBox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[in.ProjectID]; !ok {
		return domain.TextBox{}, apperr.Validationf("project %d does not exist", in.ProjectID)
	}
	b, err := in.Build(m.nextBox+1, m.now())
	if err != nil {
		return domain.TextBox{}, err
	}
	m.nextBox++
	m.boxes[b.ID] = b
	m.byProject[b.ProjectID][b.ID] = struct{}{}
	return b, nil
}

func (m *Memory) GetTextBox(_ context.Context, id int64) (domain.TextBox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boxes[id]
	if !ok {
		return domain.TextBox{}, apperr.NotFound("text box", id)
	}
	return b, nil
}

func (m *Memory) ListTextBoxesByProject(_ context.Context, projectID int64) ([]domain.TextBox, error) {
	m.mu.Lock()
	ids, ok := m.byProject[projectID]
	if !ok {
		m.mu.Unlock()
		return nil, apperr.NotFound("project", projectID)
	}
	out := make([]domain.TextBox, 0, len(ids))
	for id := range ids {
		out = append(out, m.boxes[id])
	}
	m.mu.Unlock()
	sortBoxes(out)
	return out, nil
}

func (m *Memory) UpdateTextBox(_ context.Context, id int64, patch domain.TextBoxPatch) (domain.TextBox, domain.TextBox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.boxes[id]
	if !ok {
		return domain.TextBox{}, domain.TextBox{}, apperr.NotFound("text box", id)
	}
	b, err := patch.Apply(prev)
	if err != nil {
		return domain.TextBox{}, domain.TextBox{}, err
	}
	m.boxes[id] = b
	return b, prev, nil
}

func (m *Memory) DeleteTextBox(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boxes[id]
	if !ok {
		return apperr.NotFound("text box", id)
	}
	delete(m.boxes, id)
	delete(m.byProject[b.ProjectID], id)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

func sortBoxes(bs []domain.TextBox) {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].CreatedAt.Equal(bs[j].CreatedAt) {
			return bs[i].CreatedAt.Before(bs[j].CreatedAt)
		}
		return bs[i].ID < bs[j].ID
	})
}
