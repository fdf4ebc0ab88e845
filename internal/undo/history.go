/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps per text box edit history so patches can be undone and
// redone. States are opaque blobs, usually the JSON of a text box.
package undo

import (
	"sync"
	"time"
)

// Snapshot is a prior state of one text box.
type Snapshot struct {
	BoxID int64
	Blob  []byte
	TS    time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap over all stacks; oldest undo entries are pruned first.
	MaxBytes int
	// MaxPerBox limits undo depth per box (0 means unlimited).
	MaxPerBox int
	// MinInterval merges records for the same box that arrive within the
	// interval of the previous one; the earlier state is kept.
	MinInterval time.Duration
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Manager is an in-memory undo/redo store keyed by text box id.
// It is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex

	undo map[int64][]Snapshot
	redo map[int64][]Snapshot

	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 4 * 1024 * 1024
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{cfg: cfg, undo: make(map[int64][]Snapshot), redo: make(map[int64][]Snapshot)}
}

// Record stores before as the state preceding a change to box id and clears
// its redo stack.
func (m *Manager) Record(id int64, before []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.cfg.Now()
	m.dropRedoLocked(id)
	stack := m.undo[id]
	if n := len(stack); n > 0 && m.cfg.MinInterval > 0 && now.Sub(stack[n-1].TS) < m.cfg.MinInterval {
		return
	}
	s := Snapshot{BoxID: id, Blob: clone(before), TS: now}
	m.undo[id] = append(stack, s)
	m.totalBytes += len(s.Blob)
	m.enforceCapsLocked(id)
}

// Undo pops the latest prior state of box id. current is pushed to the redo
// stack so Redo can return to it.
func (m *Manager) Undo(id int64, current []byte) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[id]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.setUndoLocked(id, stack[:len(stack)-1])
	m.totalBytes -= len(s.Blob)
	r := Snapshot{BoxID: id, Blob: clone(current), TS: m.cfg.Now()}
	m.redo[id] = append(m.redo[id], r)
	m.totalBytes += len(r.Blob)
	m.enforceCapsLocked(id)
	return s, true
}

// Redo pops the latest undone state of box id and pushes current back onto
// the undo stack.
func (m *Manager) Redo(id int64, current []byte) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[id]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	if len(r) == 1 {
		delete(m.redo, id)
	} else {
		m.redo[id] = r[:len(r)-1]
	}
	m.totalBytes -= len(s.Blob)
	u := Snapshot{BoxID: id, Blob: clone(current), TS: m.cfg.Now()}
	m.undo[id] = append(m.undo[id], u)
	m.totalBytes += len(u.Blob)
	m.enforceCapsLocked(id)
	return s, true
}

// CanUndo and CanRedo report stack availability for box id.
func (m *Manager) CanUndo(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[id]) > 0
}

func (m *Manager) CanRedo(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[id]) > 0
}

// Clear drops all history for the given boxes.
func (m *Manager) Clear(ids ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		for _, s := range m.undo[id] {
			m.totalBytes -= len(s.Blob)
		}
		m.dropRedoLocked(id)
		delete(m.undo, id)
	}
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, boxes int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	boxes = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, boxes, totalSnapshots
}

func (m *Manager) dropRedoLocked(id int64) {
	for _, s := range m.redo[id] {
		m.totalBytes -= len(s.Blob)
	}
	delete(m.redo, id)
}

func (m *Manager) setUndoLocked(id int64, stack []Snapshot) {
	if len(stack) == 0 {
		delete(m.undo, id)
		return
	}
	m.undo[id] = stack
}

func (m *Manager) enforceCapsLocked(id int64) {
	if m.cfg.MaxPerBox > 0 {
		stack := m.undo[id]
		if len(stack) > m.cfg.MaxPerBox {
			drop := len(stack) - m.cfg.MaxPerBox
			for i := 0; i < drop; i++ {
				m.totalBytes -= len(stack[i].Blob)
			}
			m.undo[id] = append([]Snapshot{}, stack[drop:]...)
		}
	}
	// Global cap: prune the oldest bottom entry across all boxes.
	for m.totalBytes > m.cfg.MaxBytes {
		var oldestID int64
		found := false
		var oldestTS time.Time
		for bid, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) || (stack[0].TS.Equal(oldestTS) && bid < oldestID) {
				oldestID, oldestTS, found = bid, stack[0].TS, true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldestID]
		m.totalBytes -= len(stack[0].Blob)
		m.setUndoLocked(oldestID, stack[1:])
	}
}

func clone(b []byte) []byte { return append([]byte(nil), b...) }
