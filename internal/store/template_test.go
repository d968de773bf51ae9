package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func createTemplate(t *testing.T, s *Store, id, label string) *Template {
	t.Helper()
	tmpl := &Template{ID: id, Label: label}
	if err := s.Templates().Create(context.Background(), tmpl); err != nil {
		t.Fatalf("create template %s: %v", label, err)
	}
	return tmpl
}

func TestTemplateRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.Templates()

	tmpl := createTemplate(t, s, "tmpl-a", "A")
	if tmpl.Tolerance != DefaultTolerance {
		t.Errorf("Tolerance = %f, want default %f", tmpl.Tolerance, DefaultTolerance)
	}
	if tmpl.CreatedAt.IsZero() || tmpl.UpdatedAt.IsZero() {
		t.Error("timestamps should be set after create")
	}

	t.Run("get by id and label", func(t *testing.T) {
		byID, err := repo.GetByID(ctx, "tmpl-a")
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		byLabel, err := repo.GetByLabel(ctx, "A")
		if err != nil {
			t.Fatalf("GetByLabel() error = %v", err)
		}
		if byID.ID != byLabel.ID || byID.Label != "A" {
			t.Errorf("lookups disagree: %+v vs %+v", byID, byLabel)
		}
	})

	t.Run("duplicate label", func(t *testing.T) {
		if err := repo.Create(ctx, &Template{ID: "tmpl-a2", Label: "A"}); err == nil {
			t.Error("expected unique constraint error")
		}
	})

	t.Run("list ordered by label", func(t *testing.T) {
		createTemplate(t, s, "tmpl-c", "C")
		createTemplate(t, s, "tmpl-b", "B")
		list, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		var labels string
		for _, l := range list {
			labels += l.Label
		}
		if labels != "ABC" {
			t.Errorf("labels = %q, want ABC", labels)
		}
	})

	t.Run("update", func(t *testing.T) {
		tmpl.Tolerance = 0.8
		if err := repo.Update(ctx, tmpl); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		got, _ := repo.GetByID(ctx, tmpl.ID)
		if got.Tolerance != 0.8 {
			t.Errorf("Tolerance = %f, want 0.8", got.Tolerance)
		}
		if err := repo.Update(ctx, &Template{ID: "missing", Label: "Z"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := repo.Delete(ctx, "tmpl-c"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := repo.GetByID(ctx, "tmpl-c"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetByID after delete error = %v, want ErrNotFound", err)
		}
		if err := repo.Delete(ctx, "tmpl-c"); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete() error = %v, want ErrNotFound", err)
		}
	})
}

func TestTemplateRepository_Landmarks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.Templates()
	createTemplate(t, s, "tmpl-l", "L")

	points, err := repo.Landmarks(ctx, "tmpl-l")
	if err != nil {
		t.Fatalf("Landmarks() error = %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("untrained template has %d landmarks", len(points))
	}

	first := []Point{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 2, Z: 3}}
	if err := repo.SetLandmarks(ctx, "tmpl-l", first); err != nil {
		t.Fatalf("SetLandmarks() error = %v", err)
	}
	second := []Point{{X: 4, Y: 5, Z: 6}, {X: 7, Y: 8, Z: 9}, {X: 1, Y: 1, Z: 1}}
	if err := repo.SetLandmarks(ctx, "tmpl-l", second); err != nil {
		t.Fatalf("SetLandmarks() replace error = %v", err)
	}

	points, _ = repo.Landmarks(ctx, "tmpl-l")
	if len(points) != 3 || points[0] != second[0] || points[2] != second[2] {
		t.Errorf("Landmarks() = %v, want %v", points, second)
	}

	if err := repo.SetLandmarks(ctx, "missing", first); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetLandmarks(missing) error = %v, want ErrNotFound", err)
	}

	if err := repo.Delete(ctx, "tmpl-l"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	var n int
	s.DB().QueryRow(`SELECT COUNT(*) FROM template_landmarks`).Scan(&n)
	if n != 0 {
		t.Errorf("landmarks should cascade on delete, %d remain", n)
	}
}

func TestSampleRepository(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	createTemplate(t, s, "tmpl-b", "B")
	repo := s.Samples()

	batch := []json.RawMessage{
		json.RawMessage(`{"landmarks":[{"x":0,"y":0,"z":0}]}`),
		json.RawMessage(`{"landmarks":[{"x":1,"y":1,"z":1}]}`),
	}

	count, err := repo.Add(ctx, "tmpl-b", batch)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	count, err = repo.Add(ctx, "tmpl-b", batch[:1])
	if err != nil {
		t.Fatalf("second Add() error = %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3 after appending", count)
	}

	samples, err := repo.ListByTemplate(ctx, "tmpl-b")
	if err != nil {
		t.Fatalf("ListByTemplate() error = %v", err)
	}
	for i, sample := range samples {
		if sample.SampleIndex != i {
			t.Errorf("sample %d has index %d", i, sample.SampleIndex)
		}
	}

	tmpl, _ := s.Templates().GetByID(ctx, "tmpl-b")
	if tmpl.Samples != 3 {
		t.Errorf("template sample count = %d, want 3", tmpl.Samples)
	}

	if err := repo.DeleteByTemplate(ctx, "tmpl-b"); err != nil {
		t.Fatalf("DeleteByTemplate() error = %v", err)
	}
	samples, _ = repo.ListByTemplate(ctx, "tmpl-b")
	tmpl, _ = s.Templates().GetByID(ctx, "tmpl-b")
	if len(samples) != 0 || tmpl.Samples != 0 {
		t.Errorf("after delete: %d samples, count %d", len(samples), tmpl.Samples)
	}

	if _, err := repo.Add(ctx, "missing", batch); err == nil {
		t.Error("Add() to unknown template should fail")
	}
}
