package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, root string, m Manifest) string {
	t.Helper()
	dir := filepath.Join(root, m.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return dir
}

func TestManager_Discover(t *testing.T) {
	root := t.TempDir()
	dir := writeManifest(t, root, Manifest{
		Name:        "keyboard",
		Version:     "1.0.0",
		Description: "Types committed letters",
		Executable:  "keyboard",
		Actions:     []string{"type", "keystroke"},
	})

	manager := NewManager(root, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}
	p := plugins[0]
	if p.Manifest.Name != "keyboard" || p.Manifest.Version != "1.0.0" || len(p.Manifest.Actions) != 2 {
		t.Errorf("unexpected manifest %+v", p.Manifest)
	}
	if p.Path != dir {
		t.Errorf("expected path %q, got %q", dir, p.Path)
	}
	if p.Executable != filepath.Join(dir, "keyboard") {
		t.Errorf("unexpected executable %q", p.Executable)
	}
}

func TestManager_List_SortedByName(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		writeManifest(t, root, Manifest{Name: name, Executable: name})
	}

	manager := NewManager(root, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 3 {
		t.Fatalf("expected 3 plugins, got %d", len(plugins))
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if plugins[i].Manifest.Name != want {
			t.Errorf("plugins[%d] = %q, want %q", i, plugins[i].Manifest.Name, want)
		}
	}
}

func TestManager_Discover_SkipsBadEntries(t *testing.T) {
	root := t.TempDir()

	bad := filepath.Join(root, "bad-plugin")
	if err := os.MkdirAll(bad, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bad, manifestFile), []byte("not valid json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "no-manifest"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "stray-file"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	manager := NewManager(root, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed unexpectedly: %v", err)
	}
	if n := len(manager.List()); n != 0 {
		t.Fatalf("expected 0 plugins, got %d", n)
	}
}

func TestManager_Discover_MissingDir(t *testing.T) {
	for _, dir := range []string{"", "/path/that/does/not/exist"} {
		manager := NewManager(dir, nil)
		if err := manager.Discover(); err != nil {
			t.Fatalf("Discover(%q) failed: %v", dir, err)
		}
		if n := len(manager.List()); n != 0 {
			t.Fatalf("expected 0 plugins, got %d", n)
		}
	}
}

func TestManager_Discover_DropsRemovedPlugins(t *testing.T) {
	root := t.TempDir()
	dir := writeManifest(t, root, Manifest{Name: "gone", Executable: "gone"})

	manager := NewManager(root, nil)
	if err := manager.Discover(); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := manager.Discover(); err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Get("gone"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound after rescan, got %v", err)
	}
}

func TestManager_Get(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, Manifest{Name: "my-plugin", Version: "2.0.0", Executable: "bin"})

	manager := NewManager(root, nil)
	if err := manager.Discover(); err != nil {
		t.Fatal(err)
	}

	p, err := manager.Get("my-plugin")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if p.Manifest.Version != "2.0.0" {
		t.Errorf("expected version '2.0.0', got %q", p.Manifest.Version)
	}

	if _, err := manager.Get("nonexistent-plugin"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
	if manager.Dir() != root {
		t.Errorf("Dir() = %q, want %q", manager.Dir(), root)
	}
}
