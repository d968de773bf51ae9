package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestBindingRepository(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.Bindings()

	all := &Binding{ID: "b-all", PluginName: "keyboard", ActionName: "type", Enabled: true}
	space := &Binding{
		ID:         "b-space",
		Label:      "_SPACE",
		PluginName: "keyboard",
		ActionName: "key",
		Config:     json.RawMessage(`{"key":"space"}`),
		Enabled:    true,
	}
	disabled := &Binding{ID: "b-off", Label: "A", PluginName: "keyboard", ActionName: "type"}

	for _, b := range []*Binding{all, space, disabled} {
		if err := repo.Create(ctx, b); err != nil {
			t.Fatalf("Create(%s) error = %v", b.ID, err)
		}
	}

	t.Run("get fills empty config", func(t *testing.T) {
		got, err := repo.GetByID(ctx, "b-all")
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if string(got.Config) != "{}" || !got.Enabled {
			t.Errorf("unexpected binding %+v", got)
		}
	})

	t.Run("list for label", func(t *testing.T) {
		tests := []struct {
			label string
			want  []string
		}{
			{label: "A", want: []string{"b-all"}},
			{label: "_SPACE", want: []string{"b-all", "b-space"}},
			{label: "Q", want: []string{"b-all"}},
		}
		for _, tt := range tests {
			got, err := repo.ListForLabel(ctx, tt.label)
			if err != nil {
				t.Fatalf("ListForLabel(%s) error = %v", tt.label, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListForLabel(%s) = %d bindings, want %d", tt.label, len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("ListForLabel(%s)[%d] = %s, want %s", tt.label, i, got[i].ID, id)
				}
			}
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		disabled.Enabled = true
		if err := repo.Update(ctx, disabled); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		got, _ := repo.ListForLabel(ctx, "A")
		if len(got) != 2 {
			t.Errorf("enabled binding should now match, got %d", len(got))
		}

		if err := repo.Delete(ctx, "b-off"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := repo.Delete(ctx, "b-off"); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete() error = %v, want ErrNotFound", err)
		}
		list, _ := repo.List(ctx)
		if len(list) != 2 {
			t.Errorf("List() = %d bindings, want 2", len(list))
		}
	})
}
