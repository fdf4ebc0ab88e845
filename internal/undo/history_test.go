/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) add(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(cfg Config) (*Manager, *fakeClock) {
	c := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg.Now = c.now
	return NewManager(cfg), c
}

func TestUndoRedoBasic(t *testing.T) {
	m, c := newTestManager(Config{MinInterval: 10 * time.Millisecond})
	m.Record(1, []byte("a"))
	c.add(time.Second)
	m.Record(1, []byte("b"))
	if _, boxes, total := m.Stats(); boxes != 1 || total != 2 {
		t.Fatalf("expected 1 box and 2 snapshots, got boxes=%d total=%d", boxes, total)
	}
	s, ok := m.Undo(1, []byte("c"))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v blob=%q", ok, s.Blob)
	}
	if !m.CanRedo(1) {
		t.Fatalf("expected redo to be available")
	}
	s, ok = m.Redo(1, []byte("b"))
	if !ok || string(s.Blob) != "c" {
		t.Fatalf("redo expected 'c', got ok=%v blob=%q", ok, s.Blob)
	}
	if _, ok := m.Redo(1, nil); ok {
		t.Fatalf("redo stack should be empty")
	}
	s, _ = m.Undo(1, []byte("c"))
	if string(s.Blob) != "b" {
		t.Fatalf("undo after redo expected 'b', got %q", s.Blob)
	}
}

func TestRecordClearsRedo(t *testing.T) {
	m, c := newTestManager(Config{})
	m.Record(1, []byte("a"))
	m.Undo(1, []byte("b"))
	c.add(time.Second)
	m.Record(1, []byte("a"))
	if m.CanRedo(1) {
		t.Fatalf("a new edit must clear redo")
	}
}

func TestCoalesceKeepsEarliestState(t *testing.T) {
	m, c := newTestManager(Config{MinInterval: 50 * time.Millisecond})
	m.Record(2, []byte("1"))
	c.add(10 * time.Millisecond)
	m.Record(2, []byte("2"))
	if _, _, total := m.Stats(); total != 1 {
		t.Fatalf("expected coalesced history, got %d", total)
	}
	s, _ := m.Undo(2, []byte("3"))
	if string(s.Blob) != "1" {
		t.Fatalf("expected earliest state, got %q", s.Blob)
	}
	c.add(time.Second)
	m.Record(2, []byte("x"))
	c.add(time.Second)
	m.Record(2, []byte("y"))
	if _, _, total := m.Stats(); total != 2 {
		t.Fatalf("expected separate entries outside the interval, got %d", total)
	}
}

func TestMaxPerBox(t *testing.T) {
	m, c := newTestManager(Config{MaxPerBox: 2})
	for _, s := range []string{"a", "b", "c"} {
		m.Record(3, []byte(s))
		c.add(time.Second)
	}
	first, _ := m.Undo(3, []byte("d"))
	second, _ := m.Undo(3, first.Blob)
	if string(first.Blob) != "c" || string(second.Blob) != "b" {
		t.Fatalf("unexpected order %q %q", first.Blob, second.Blob)
	}
	if m.CanUndo(3) {
		t.Fatalf("oldest entry should have been dropped")
	}
}

func TestGlobalPruneAcrossBoxes(t *testing.T) {
	m, c := newTestManager(Config{MaxBytes: 8})
	m.Record(1, []byte("xxxx"))
	c.add(time.Second)
	m.Record(2, []byte("yyyy"))
	c.add(time.Second)
	m.Record(2, []byte("zzzz"))
	if m.CanUndo(1) {
		t.Fatalf("expected box 1 to have been pruned")
	}
	if !m.CanUndo(2) {
		t.Fatalf("expected box 2 to keep history")
	}
	if tb, _, _ := m.Stats(); tb > 8 {
		t.Fatalf("byte cap exceeded: %d", tb)
	}
}

func TestClear(t *testing.T) {
	m, _ := newTestManager(Config{})
	m.Record(7, []byte("abcdef"))
	m.Record(8, []byte("gh"))
	m.Undo(8, []byte("ij"))
	m.Clear(7, 8)
	tb, boxes, total := m.Stats()
	if tb != 0 || boxes != 0 || total != 0 || m.CanRedo(8) {
		t.Fatalf("expected cleared stats, got tb=%d boxes=%d total=%d", tb, boxes, total)
	}
}

func TestRecordCopiesInput(t *testing.T) {
	m, _ := newTestManager(Config{})
	buf := []byte("keep")
	m.Record(1, buf)
	buf[0] = 'X'
	s, _ := m.Undo(1, nil)
	if string(s.Blob) != "keep" {
		t.Fatalf("blob aliased caller buffer: %q", s.Blob)
	}
}
