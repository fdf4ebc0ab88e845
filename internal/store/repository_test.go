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
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mangaeditor/internal/apperr"
	"mangaeditor/internal/domain"
)

// tickClock advances one second per call so ordering is deterministic.
type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTickClock() *tickClock {
	return &tickClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type repoFactory func(t *testing.T, clock Clock) Repository

func newMemoryRepo(t *testing.T, clock Clock) Repository { return NewMemory(clock) }

func newSQLiteRepo(t *testing.T, clock Clock) Repository {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "test.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	s.SetClock(clock)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mkProject(t *testing.T, r Repository, name string) domain.Project {
	t.Helper()
	p, err := r.CreateProject(context.Background(), domain.NewProject{Name: name, OriginalImageURL: "/uploads/" + name + ".png", Width: 800, Height: 600})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}

func mkBox(t *testing.T, r Repository, projectID int64, x int) domain.TextBox {
	t.Helper()
	b, err := r.CreateTextBox(context.Background(), domain.NewTextBox{ProjectID: projectID, X: x, Y: 1, Width: 10, Height: 10, OriginalText: domain.Ptr("t")})
	if err != nil {
		t.Fatalf("CreateTextBox: %v", err)
	}
	return b
}

func runRepositorySuite(t *testing.T, factory repoFactory) {
	t.Run("CreateGetDefaults", func(t *testing.T) {
		r := factory(t, newTickClock().Now)
		ctx := context.Background()
		p := mkProject(t, r, "a")
		got, err := r.GetProject(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetProject: %v", err)
		}
		if got.Name != "a" || got.Width != 800 || got.EditedImageURL != nil || !got.CreatedAt.Equal(p.CreatedAt) {
			t.Fatalf("unexpected project: %+v", got)
		}
		b := mkBox(t, r, p.ID, 3)
		gb, err := r.GetTextBox(ctx, b.ID)
		if err != nil {
			t.Fatalf("GetTextBox: %v", err)
		}
		if gb.FontSize != 14 || gb.FontColor != "#000000" || gb.IsBold || gb.IsItalic || gb.IsUnderline {
			t.Fatalf("defaults not applied: %+v", gb)
		}
		if gb.OriginalText == nil || *gb.OriginalText != "t" || gb.Confidence != nil || gb.BackgroundColor != nil {
			t.Fatalf("optional fields wrong: %+v", gb)
		}
	})

	t.Run("IDsIncrease", func(t *testing.T) {
		r := factory(t, newTickClock().Now)
		a := mkProject(t, r, "a")
		b := mkProject(t, r, "b")
		if b.ID <= a.ID {
			t.Fatalf("ids must increase: %d then %d", a.ID, b.ID)
		}
	})

	t.Run("CascadeDelete", func(t *testing.T) {
		r := factory(t, newTickClock().Now)
		ctx := context.Background()
		p1 := mkProject(t, r, "p1")
		p2 := mkProject(t, r, "p2")
		var p1Boxes []int64
		for i := 0; i < 2; i++ {
			p1Boxes = append(p1Boxes, mkBox(t, r, p1.ID, i).ID)
		}
		for i := 0; i < 3; i++ {
			mkBox(t, r, p2.ID, i)
		}
		if err := r.DeleteProject(ctx, p1.ID); err != nil {
			t.Fatalf("DeleteProject: %v", err)
		}
		if _, err := r.GetProject(ctx, p1.ID); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("deleted project still readable: %v", err)
		}
		for _, id := range p1Boxes {
			if _, err := r.GetTextBox(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
				t.Fatalf("box %d survived cascade: %v", id, err)
			}
		}
		if _, err := r.ListTextBoxesByProject(ctx, p1.ID); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("listing a deleted project should be not found, got %v", err)
		}
		left, err := r.ListTextBoxesByProject(ctx, p2.ID)
		if err != nil || len(left) != 3 {
			t.Fatalf("other project lost boxes: %d %v", len(left), err)
		}
	})

	t.Run("NotFoundLeavesStoreUnchanged", func(t *testing.T) {
		r := factory(t, newTickClock().Now)
		ctx := context.Background()
		p := mkProject(t, r, "only")
		mkBox(t, r, p.ID, 0)
		if err := r.DeleteProject(ctx, 999); apperr.KindOf(err) != apperr.KindNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
		if _, err := r.UpdateProject(ctx, 999, domain.ProjectPatch{Name: domain.Ptr("x")}); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if _, _, err := r.UpdateTextBox(ctx, 999, domain.TextBoxPatch{X: domain.Ptr(1)}); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if err := r.DeleteTextBox(ctx, 999); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		ps, _ := r.ListProjects(ctx)
		bs, _ := r.ListTextBoxesByProject(ctx, p.ID)
		if len(ps) != 1 || len(bs) != 1 || ps[0].Name != "only" {
			t.Fatalf("store changed after not-found operations: %v %v", ps, bs)
		}
	})

	t.Run("CreateBoxForMissingProject", func(t *testing.T) {
		r := factory(t, newTickClock().Now)
		_, err := r.CreateTextBox(context.Background(), domain.NewTextBox{ProjectID: 42})
		if !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("Ordering", func(t *testing.T) {
		r := factory(t, newTickClock().Now)
		ctx := context.Background()
		a := mkProject(t, r, "a")
		b := mkProject(t, r, "b")
		c := mkProject(t, r, "c")
		if _, err := r.UpdateProject(ctx, a.ID, domain.ProjectPatch{Name: domain.Ptr("a2")}); err != nil {
			t.Fatalf("UpdateProject: %v", err)
		}
		ps, err := r.ListProjects(ctx)
		if err != nil {
			t.Fatalf("ListProjects: %v", err)
		}
		want := []int64{a.ID, c.ID, b.ID}
		for i, p := range ps {
			if p.ID != want[i] {
				t.Fatalf("order by updatedAt desc broken: got %v at %d, want %v", p.ID, i, want[i])
			}
		}
		first := mkBox(t, r, b.ID, 5)
		second := mkBox(t, r, b.ID, 1)
		bs, _ := r.ListTextBoxesByProject(ctx, b.ID)
		if len(bs) != 2 || bs[0].ID != first.ID || bs[1].ID != second.ID {
			t.Fatalf("boxes should be in creation order: %+v", bs)
		}
	})

	t.Run("UpdateMergesAndBumps", func(t *testing.T) {
		r := factory(t, newTickClock().Now)
		ctx := context.Background()
		p := mkProject(t, r, "a")
		up, err := r.UpdateProject(ctx, p.ID, domain.ProjectPatch{EditedImageURL: domain.NullStringFrom(domain.Ptr("/uploads/e.png"))})
		if err != nil {
			t.Fatalf("UpdateProject: %v", err)
		}
		if up.Name != "a" || up.EditedImageURL == nil || !up.UpdatedAt.After(p.UpdatedAt) || !up.CreatedAt.Equal(p.CreatedAt) {
			t.Fatalf("unexpected update result: %+v", up)
		}
		b := mkBox(t, r, p.ID, 0)
		ub, prev, err := r.UpdateTextBox(ctx, b.ID, domain.TextBoxPatch{EditedText: domain.NullStringFrom(domain.Ptr("new")), IsBold: domain.Ptr(true), Confidence: domain.NullIntFrom(domain.Ptr(130))})
		if err != nil {
			t.Fatalf("UpdateTextBox: %v", err)
		}
		if prev.EditedText != nil || prev.IsBold || prev.Confidence != nil {
			t.Fatalf("prior state should be the unpatched box: %+v", prev)
		}
		got, _ := r.GetTextBox(ctx, b.ID)
		if got.DisplayText() != "new" || !got.IsBold || *got.Confidence != 100 || got.X != b.X || ub.ID != b.ID {
			t.Fatalf("patch not persisted: %+v", got)
		}
		if _, _, err := r.UpdateTextBox(ctx, b.ID, domain.TextBoxPatch{FontSize: domain.Ptr(0)}); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		got2, _ := r.GetTextBox(ctx, b.ID)
		if got2.FontSize != 14 {
			t.Fatalf("failed update must not persist: %+v", got2)
		}
	})

	t.Run("ConcurrentUpdatesChainPriorStates", func(t *testing.T) {
		r := factory(t, newTickClock().Now)
		ctx := context.Background()
		p := mkProject(t, r, "race")
		b := mkBox(t, r, p.ID, 0)

		const n = 20
		type step struct{ before, after int }
		steps := make(chan step, n)
		var wg sync.WaitGroup
		for i := 1; i <= n; i++ {
			wg.Add(1)
			go func(x int) {
				defer wg.Done()
				after, before, err := r.UpdateTextBox(ctx, b.ID, domain.TextBoxPatch{X: domain.Ptr(x)})
				if err != nil {
					t.Errorf("UpdateTextBox(%d): %v", x, err)
					return
				}
				steps <- step{before.X, after.X}
			}(i)
		}
		wg.Wait()
		close(steps)

		// Every state is replaced at most once and each prior state was a
		// committed value, so following the chain from 0 visits all writes.
		next := map[int]int{}
		for s := range steps {
			if _, dup := next[s.before]; dup {
				t.Fatalf("state x=%d reported as prior state twice", s.before)
			}
			next[s.before] = s.after
		}
		x, seen := 0, 0
		for {
			nx, ok := next[x]
			if !ok {
				break
			}
			x = nx
			seen++
		}
		final, _ := r.GetTextBox(ctx, b.ID)
		if seen != n || final.X != x {
			t.Fatalf("broken history chain: visited %d of %d, end x=%d, stored x=%d", seen, n, x, final.X)
		}
	})

	t.Run("DeleteTextBox", func(t *testing.T) {
		r := factory(t, newTickClock().Now)
		ctx := context.Background()
		p := mkProject(t, r, "a")
		b := mkBox(t, r, p.ID, 0)
		if err := r.DeleteTextBox(ctx, b.ID); err != nil {
			t.Fatalf("DeleteTextBox: %v", err)
		}
		if err := r.DeleteTextBox(ctx, b.ID); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("second delete should be not found, got %v", err)
		}
		if err := r.Ping(ctx); err != nil {
			t.Fatalf("Ping: %v", err)
		}
	})
}

func TestMemoryRepository(t *testing.T) { runRepositorySuite(t, newMemoryRepo) }

func TestSQLiteRepository(t *testing.T) { runRepositorySuite(t, newSQLiteRepo) }
