package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.Sessions()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := repo.Create(ctx, &Session{ID: "sess-1", StartedAt: started}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.EndedAt != nil {
		t.Error("new session should not have ended")
	}

	ended := started.Add(time.Minute)
	if err := repo.End(ctx, "sess-1", "HELLO", ended); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	got, _ = repo.GetByID(ctx, "sess-1")
	if got.EndedAt == nil || !got.EndedAt.Equal(ended) {
		t.Errorf("EndedAt = %v, want %v", got.EndedAt, ended)
	}
	if got.FinalWord != "HELLO" {
		t.Errorf("FinalWord = %q, want HELLO", got.FinalWord)
	}

	if err := repo.End(ctx, "missing", "", ended); !errors.Is(err, ErrNotFound) {
		t.Errorf("End(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSessionRepository_List(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.Sessions()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := repo.Create(ctx, &Session{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	all, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" {
		t.Fatalf("List() = %d sessions starting %q, want 3 starting c", len(all), all[0].ID)
	}

	limited, _ := repo.List(ctx, 2)
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d sessions", len(limited))
	}
}

func TestCommitRepository(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Sessions().Create(ctx, &Session{ID: "sess-1"}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	repo := s.Commits()
	entries := []*Commit{
		{SessionID: "sess-1", Label: "H", Appended: "H", WordAfter: "H"},
		{SessionID: "sess-1", Label: "I", Appended: "I", WordAfter: "HI"},
		{SessionID: "sess-1", Kind: CommitKindReset, WordAfter: ""},
	}
	for _, c := range entries {
		if err := repo.Append(ctx, c); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if c.ID == 0 {
			t.Error("Append() should set ID")
		}
	}

	got, err := repo.ListBySession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d commits, want 3", len(got))
	}
	if got[0].Kind != CommitKindLetter || got[1].WordAfter != "HI" || got[2].Kind != CommitKindReset {
		t.Errorf("unexpected history %+v", got)
	}

	t.Run("unknown session is rejected", func(t *testing.T) {
		err := repo.Append(ctx, &Commit{SessionID: "nope", Label: "A", WordAfter: "A"})
		if err == nil {
			t.Error("expected foreign key violation")
		}
	})
}
